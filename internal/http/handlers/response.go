package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/customer-voice-api/internal/digest"
	"github.com/tbourn/customer-voice-api/internal/http/middleware"
	"github.com/tbourn/customer-voice-api/internal/services"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

// ErrorResponse is the body of every non-2xx response; Details is always
// an array:
//
//	{"request_id":"123e4567-...","error":"not_found","message":"competitor not found","details":[]}
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable kind (see errors.go constants)
	Error string `json:"error" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"competitor not found"`
	// Field-level issues; empty when not applicable
	Details []services.FieldIssue `json:"details"`
}

func init() {
	// Report form/json names instead of Go field names in validation details.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"form", "json"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	}
}

// fail aborts with the envelope; 5xx responses are also logged.
func fail(c *gin.Context, status int, code, msg string, details ...services.FieldIssue) {
	if details == nil {
		details = []services.FieldIssue{}
	}
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().Int("status", status).Str("error", code).Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Error:     code,
		Message:   msg,
		Details:   details,
	})
}

// Fail writes the envelope without field details; used by the router's
// fallback handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr translates err into the envelope. Unknown errors become
// internal_server_error with a generic message; the cause is logged.
func failErr(c *gin.Context, err error) {
	var (
		verr *services.ValidationError
		serr *services.StorageError
	)
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, ErrCodeValidation, MsgValidationFailed, verr.Details...)
	case errors.Is(err, digest.ErrInvalidTimeframe):
		fail(c, http.StatusBadRequest, ErrCodeValidation, MsgValidationFailed,
			services.FieldIssue{Field: "timeframe_end", Issue: err.Error()})
	case errors.Is(err, services.ErrCompetitorNotFound),
		errors.Is(err, services.ErrDigestNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrDuplicateCompetitor),
		errors.Is(err, services.ErrSourceConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.As(err, &serr):
		middleware.LoggerFrom(c).Error().Err(serr.Err).Str("op", serr.Op).Msg("storage failure")
		fail(c, http.StatusInternalServerError, ErrCodeDatabase, "the change could not be stored; nothing was written")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// failBind reports a request decoding or validation failure.
func failBind(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", mbe.Limit))
		return
	}
	fail(c, http.StatusBadRequest, ErrCodeValidation, MsgValidationFailed, bindIssues(err)...)
}

// bindIssues converts binding errors to field details.
func bindIssues(err error) []services.FieldIssue {
	var (
		ves validator.ValidationErrors
		ute *json.UnmarshalTypeError
		se  *json.SyntaxError
	)
	switch {
	case errors.As(err, &ves):
		out := make([]services.FieldIssue, 0, len(ves))
		for _, fe := range ves {
			out = append(out, services.FieldIssue{Field: fieldPath(fe), Issue: issueFor(fe)})
		}
		return out
	case errors.As(err, &ute):
		field := ute.Field
		if field == "" {
			field = "body"
		}
		return []services.FieldIssue{{Field: field, Issue: "must be a " + ute.Type.String()}}
	case errors.As(err, &se):
		return []services.FieldIssue{{Field: "body", Issue: "malformed JSON"}}
	case errors.Is(err, utils.ErrBadTimestamp):
		return []services.FieldIssue{{Field: "published_at", Issue: err.Error()}}
	default:
		return []services.FieldIssue{{Field: "body", Issue: err.Error()}}
	}
}

// fieldPath drops the top-level struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func issueFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid", "uuid4":
		return "must be a UUID"
	case "datetime":
		return "must be a date in " + fe.Param() + " layout"
	case "url":
		return "must be a URL"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
