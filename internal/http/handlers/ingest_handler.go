package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/customer-voice-api/internal/classifier"
	"github.com/tbourn/customer-voice-api/internal/http/middleware"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/services"
)

//
// DTOs
//

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Text     string  `json:"text" binding:"required,min=1" example:"The new dashboard is great but exports are slow."`
	Language *string `json:"language" example:"en"`
}

// AnalyzeResponse carries the classification of a text.
type AnalyzeResponse struct {
	Sentiment classifier.Sentiment    `json:"sentiment"`
	Topics    []classifier.TopicScore `json:"topics"`
}

// Ingest godoc
// @ID          ingestReviews
// @Summary     Ingest a batch of reviews
// @Description Classifies and stores a batch of reviews for one source. Reviews already stored for the source are counted as duplicates.
// @Description The whole batch is rejected on any validation problem and rolled back on any storage failure.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Ingestion
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    services.IngestBatch  true  "Review batch"
//
// @Success     202  {object}  services.IngestResult
// @Header      202  {string}  Idempotency-Replayed  "true when the response was replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     409  {object}  handlers.ErrorResponse  "Source metadata conflict"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /ingest [post]
func (h *Handlers) Ingest(c *gin.Context) {
	ctx := c.Request.Context()
	scope := middleware.IdempotencyScope(c)
	key, hasKey := middleware.GetIdempotencyKey(c)

	// Replay path.
	if hasKey && h.idem != nil {
		rec, err := h.idem.Lookup(ctx, scope, key, time.Now().UTC())
		switch {
		case err == nil && rec != nil:
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			c.Data(rec.Status, "application/json; charset=utf-8", rec.Response)
			return
		case err != nil && !errors.Is(err, repo.ErrNotFound):
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		}
	}

	var batch services.IngestBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		failBind(c, err)
		return
	}
	if err := h.ingest.Validate(&batch); err != nil {
		failErr(c, err)
		return
	}

	res, err := h.ingest.Ingest(ctx, &batch)
	if err != nil {
		failErr(c, err)
		return
	}

	body, err := json.Marshal(res)
	if err != nil {
		failErr(c, err)
		return
	}
	// Store path (best effort).
	if hasKey && h.idem != nil {
		if err := h.idem.Save(ctx, scope, key, http.StatusAccepted, body); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency save failed")
		}
	}

	middleware.LoggerFrom(c).Info().
		Str("source_id", batch.SourceID).
		Int("ingested", res.IngestedCount).
		Int("duplicates", res.DuplicateCount).
		Msg("batch ingested")
	c.Data(http.StatusAccepted, "application/json; charset=utf-8", body)
}

// Analyze godoc
// @ID          analyzeText
// @Summary     Classify a text
// @Description Returns the sentiment and topics of the given text. Nothing is stored.
// @Tags        Ingestion
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.AnalyzeRequest  true  "Text to analyze"
//
// @Success     200  {object}  handlers.AnalyzeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Router      /analyze [post]
func (h *Handlers) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}
	text := classifier.PlainText(req.Text)
	ok(c, http.StatusOK, AnalyzeResponse{
		Sentiment: h.analyzer.Score(text),
		Topics:    h.analyzer.Topics(text),
	})
}
