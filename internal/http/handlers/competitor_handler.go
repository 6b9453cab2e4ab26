package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/customer-voice-api/internal/services"
)

// CompetitorRequest is the body of POST and PATCH /competitors. On PATCH,
// omitted fields are left unchanged.
type CompetitorRequest struct {
	Name        *string  `json:"name" binding:"omitempty,max=255" example:"Acme Analytics"`
	URL         *string  `json:"url" binding:"omitempty,url" example:"https://acme.example.com"`
	Description *string  `json:"description" binding:"omitempty,max=2000" example:"Direct competitor in the SMB segment"`
	Tags        []string `json:"tags" binding:"omitempty,dive,max=64" example:"smb,analytics"`
}

func (r CompetitorRequest) input() services.CompetitorInput {
	return services.CompetitorInput{
		Name:        r.Name,
		URL:         r.URL,
		Description: r.Description,
		Tags:        r.Tags,
	}
}

// CreateCompetitor godoc
// @ID          createCompetitor
// @Summary     Create a competitor
// @Tags        Competitors
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CompetitorRequest  true  "Competitor (name required)"
//
// @Success     201  {object}  domain.Competitor
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     409  {object}  handlers.ErrorResponse  "Name already used"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /competitors [post]
func (h *Handlers) CreateCompetitor(c *gin.Context) {
	var req CompetitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}
	comp, err := h.competitors.Create(c.Request.Context(), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, comp)
}

// ListCompetitors godoc
// @ID          listCompetitors
// @Summary     List competitors
// @Description Returns competitors, newest first.
// @Tags        Competitors
// @Produce     json
//
// @Param       page       query  int  false  "Page number (>=1)"   default(1)   minimum(1)
// @Param       page_size  query  int  false  "Page size (1..100)"  default(20)  minimum(1) maximum(100)
//
// @Success     200  {object}  services.CompetitorList
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /competitors [get]
func (h *Handlers) ListCompetitors(c *gin.Context) {
	page, valid := bindList(c, DefaultListPageSize)
	if !valid {
		return
	}
	res, err := h.competitors.ListPage(c.Request.Context(), page)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// GetCompetitor godoc
// @ID          getCompetitor
// @Summary     Get a competitor
// @Tags        Competitors
// @Produce     json
// @Param       id   path      string  true  "Competitor ID"
// @Success     200  {object}  domain.Competitor
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /competitors/{id} [get]
func (h *Handlers) GetCompetitor(c *gin.Context) {
	comp, err := h.competitors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, comp)
}

// UpdateCompetitor godoc
// @ID          updateCompetitor
// @Summary     Update a competitor
// @Description Applies the supplied fields; omitted fields are unchanged.
// @Tags        Competitors
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                      true  "Competitor ID"
// @Param       body  body  handlers.CompetitorRequest  true  "Fields to change"
//
// @Success     200  {object}  domain.Competitor
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Name already used"
// @Router      /competitors/{id} [patch]
func (h *Handlers) UpdateCompetitor(c *gin.Context) {
	var req CompetitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}
	comp, err := h.competitors.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, comp)
}

// DeleteCompetitor godoc
// @ID          deleteCompetitor
// @Summary     Delete a competitor
// @Description Removes the competitor. Its reviews are kept and become unattributed.
// @Tags        Competitors
// @Param       id   path  string  true  "Competitor ID"
// @Success     204  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /competitors/{id} [delete]
func (h *Handlers) DeleteCompetitor(c *gin.Context) {
	if err := h.competitors.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ComparisonParams bound the window of a comparison.
type ComparisonParams struct {
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// CompareCompetitor godoc
// @ID          compareCompetitor
// @Summary     Compare a competitor with the own product
// @Description Contrasts sentiment and the most discussed topics of the competitor's reviews against the own reviews.
// @Tags        Competitors
// @Produce     json
//
// @Param       id          path   string  true   "Competitor ID"
// @Param       start_date  query  string  false  "First day (YYYY-MM-DD, UTC)"  format(date)
// @Param       end_date    query  string  false  "Last day (YYYY-MM-DD, UTC)"   format(date)
//
// @Success     200  {object}  services.CompetitorComparison
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /competitors/{id}/comparison [get]
func (h *Handlers) CompareCompetitor(c *gin.Context) {
	var p ComparisonParams
	if err := c.ShouldBindQuery(&p); err != nil {
		failBind(c, err)
		return
	}
	window, issues := windowFilter(p.StartDate, p.EndDate)
	if len(issues) > 0 {
		fail(c, http.StatusBadRequest, ErrCodeValidation, MsgValidationFailed, issues...)
		return
	}
	res, err := h.competitors.Compare(c.Request.Context(), c.Param("id"), window)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
