package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/services"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

// DefaultListPageSize is the page size of /sources, /competitors and /digests.
const DefaultListPageSize = 20

// InsightsParams are the query parameters of GET /insights.
type InsightsParams struct {
	Page         *int   `form:"page" binding:"omitempty,min=1"`
	PageSize     *int   `form:"page_size" binding:"omitempty,min=1,max=100"`
	StartDate    string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate      string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
	SourceID     string `form:"source_id" binding:"omitempty,uuid"`
	CompetitorID string `form:"competitor_id" binding:"omitempty,uuid|eq=none"`
	Sentiment    string `form:"sentiment" binding:"omitempty,oneof=Positive Neutral Negative"`
}

// windowFilter resolves start/end dates to inclusive UTC day bounds.
func windowFilter(start, end string) (repo.ReviewFilter, []services.FieldIssue) {
	var (
		f      repo.ReviewFilter
		issues []services.FieldIssue
	)
	if start != "" {
		t, err := utils.ParseDate(start)
		if err != nil {
			issues = append(issues, services.FieldIssue{Field: "start_date", Issue: err.Error()})
		} else {
			f.Start = &t
		}
	}
	if end != "" {
		t, err := utils.ParseDate(end)
		if err != nil {
			issues = append(issues, services.FieldIssue{Field: "end_date", Issue: err.Error()})
		} else {
			e := utils.EndOfDay(t)
			f.End = &e
		}
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		issues = append(issues, services.FieldIssue{Field: "end_date", Issue: "must not be before start_date"})
	}
	return f, issues
}

// query converts the bound parameters into a service query.
func (p InsightsParams) query() (services.InsightsQuery, []services.FieldIssue) {
	f, issues := windowFilter(p.StartDate, p.EndDate)
	f.SourceID = p.SourceID
	switch {
	case strings.EqualFold(p.CompetitorID, "none"):
		f.OwnOnly = true
	case p.CompetitorID != "":
		f.CompetitorID = p.CompetitorID
	}
	f.Sentiment = domain.SentimentLabel(p.Sentiment)

	n, size := 1, services.DefaultInsightsPageSize
	if p.Page != nil {
		n = *p.Page
	}
	if p.PageSize != nil {
		size = *p.PageSize
	}
	return services.InsightsQuery{
		Filter: f,
		Page:   utils.NewPage(n, size, services.DefaultInsightsPageSize, services.MaxInsightsPageSize),
	}, issues
}

// insightsETag derives a weak validator from the query and the watermark of
// the reviews, sources and competitors behind the response.
func insightsETag(q services.InsightsQuery, w repo.Watermark) string {
	f := q.Filter
	var b strings.Builder
	fmt.Fprintf(&b, "p=%d;s=%d;src=%s;cmp=%s;own=%t;sent=%s;n=%d;ns=%d;nc=%d",
		q.Page.Number, q.Page.Size, f.SourceID, f.CompetitorID, f.OwnOnly, f.Sentiment,
		w.Reviews, w.Sources, w.Competitors)
	if f.Start != nil {
		b.WriteString(";from=" + f.Start.Format(time.RFC3339))
	}
	if f.End != nil {
		b.WriteString(";to=" + f.End.Format(time.RFC3339Nano))
	}
	stamp := func(key string, t *time.Time) {
		if t != nil {
			b.WriteString(";" + key + "=" + strconv.FormatInt(t.UTC().UnixNano(), 10))
		}
	}
	stamp("max", w.NewestReview)
	stamp("srcu", w.SourcesUpdated)
	stamp("cmpu", w.CompetitorsUpdated)
	return `W/"insights-` + strconv.FormatUint(xxhash.Sum64String(b.String()), 16) + `"`
}

// Insights godoc
// @ID          getInsights
// @Summary     Review analytics
// @Description Returns one page of reviews (newest first) together with sentiment summary, daily sentiment trend, topic distribution and source breakdown over the whole filtered set.
// @Description Supports conditional requests via weak ETag (If-None-Match → 304).
// @Tags        Insights
// @Produce     json
//
// @Param       page           query   int     false  "Page number (>=1)"                default(1)     minimum(1)
// @Param       page_size      query   int     false  "Page size (1..100)"               default(25)    minimum(1) maximum(100)
// @Param       start_date     query   string  false  "First day (YYYY-MM-DD, UTC)"      format(date)
// @Param       end_date       query   string  false  "Last day (YYYY-MM-DD, UTC)"       format(date)
// @Param       source_id      query   string  false  "Source UUID"                      format(uuid)
// @Param       competitor_id  query   string  false  "Competitor UUID, or none for own reviews"
// @Param       sentiment      query   string  false  "Sentiment label"                  Enums(Positive, Neutral, Negative)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object}  services.InsightsReport
// @Success     304  {string}  string  "Not Modified"
// @Header      200  {string}  ETag  "Weak validator of the response"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /insights [get]
func (h *Handlers) Insights(c *gin.Context) {
	var p InsightsParams
	if err := c.ShouldBindQuery(&p); err != nil {
		failBind(c, err)
		return
	}
	q, issues := p.query()
	if len(issues) > 0 {
		fail(c, http.StatusBadRequest, ErrCodeValidation, MsgValidationFailed, issues...)
		return
	}

	ctx := c.Request.Context()
	mark, err := h.insights.Stats(ctx, q.Filter)
	if err != nil {
		failErr(c, err)
		return
	}
	etag := insightsETag(q, mark)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Header("ETag", etag)
		c.Status(http.StatusNotModified)
		return
	}

	report, err := h.insights.Report(ctx, q)
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("ETag", etag)
	ok(c, http.StatusOK, report)
}

// ListSources godoc
// @ID          listSources
// @Summary     List sources
// @Description Returns review sources, newest first.
// @Tags        Insights
// @Produce     json
//
// @Param       page       query  int  false  "Page number (>=1)"   default(1)   minimum(1)
// @Param       page_size  query  int  false  "Page size (1..100)"  default(20)  minimum(1) maximum(100)
//
// @Success     200  {object}  services.SourceList
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sources [get]
func (h *Handlers) ListSources(c *gin.Context) {
	page, valid := bindList(c, DefaultListPageSize)
	if !valid {
		return
	}
	res, err := h.sources.ListPage(c.Request.Context(), page)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
