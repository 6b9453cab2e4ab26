package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/customer-voice-api/internal/digest"
	"github.com/tbourn/customer-voice-api/internal/http/middleware"
	"github.com/tbourn/customer-voice-api/internal/services"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

// DigestRunRequest is the optional body of POST /digest/run.
type DigestRunRequest struct {
	TimeframeStart     *string `json:"timeframe_start" format:"date-time" example:"2024-05-01T00:00:00Z"`
	TimeframeEnd       *string `json:"timeframe_end" format:"date-time" example:"2024-05-08T00:00:00Z"`
	IncludeCompetitors *bool   `json:"include_competitors" example:"true"`
}

// request parses the timestamps; include_competitors defaults to true.
func (r DigestRunRequest) request() (digest.Request, []services.FieldIssue) {
	out := digest.Request{IncludeCompetitors: true}
	if r.IncludeCompetitors != nil {
		out.IncludeCompetitors = *r.IncludeCompetitors
	}
	var issues []services.FieldIssue
	parse := func(field string, v *string) *time.Time {
		if v == nil || *v == "" {
			return nil
		}
		t, err := utils.ParseTimestamp(*v)
		if err != nil {
			issues = append(issues, services.FieldIssue{Field: field, Issue: err.Error()})
			return nil
		}
		return &t
	}
	out.Start = parse("timeframe_start", r.TimeframeStart)
	out.End = parse("timeframe_end", r.TimeframeEnd)
	return out, issues
}

// RunDigest godoc
// @ID          runDigest
// @Summary     Generate a digest
// @Description Assembles and stores a digest for the window (default: the seven days before now).
// @Tags        Digests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.DigestRunRequest  false  "Window and options"
//
// @Success     200  {object}  digest.Payload
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or wrong token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /digest/run [post]
func (h *Handlers) RunDigest(c *gin.Context) {
	var body DigestRunRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		failBind(c, err)
		return
	}
	req, issues := body.request()
	if len(issues) > 0 {
		fail(c, http.StatusBadRequest, ErrCodeValidation, MsgValidationFailed, issues...)
		return
	}
	p, err := h.digests.Run(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	middleware.LoggerFrom(c).Info().Str("digest_id", p.DigestID).Msg("digest generated")
	ok(c, http.StatusOK, p)
}

// ListDigests godoc
// @ID          listDigests
// @Summary     Digest history
// @Description Returns stored digests, newest first.
// @Tags        Digests
// @Produce     json
//
// @Param       page       query  int  false  "Page number (>=1)"   default(1)   minimum(1)
// @Param       page_size  query  int  false  "Page size (1..100)"  default(20)  minimum(1) maximum(100)
//
// @Success     200  {object}  services.DigestList
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Router      /digests [get]
func (h *Handlers) ListDigests(c *gin.Context) {
	page, valid := bindList(c, DefaultListPageSize)
	if !valid {
		return
	}
	res, err := h.digests.ListPage(c.Request.Context(), page)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// GetDigest godoc
// @ID          getDigest
// @Summary     Get a digest
// @Tags        Digests
// @Produce     json
// @Param       id   path      string  true  "Digest ID"
// @Success     200  {object}  digest.Payload
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /digests/{id} [get]
func (h *Handlers) GetDigest(c *gin.Context) {
	p, err := h.digests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}
