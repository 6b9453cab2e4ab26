package handlers

// Values of the envelope's "error" field. The middleware package writes
// "unauthorized" (401), "forbidden" (403) and "rate_limited" (429) itself.
const (
	ErrCodeValidation       = "validation_error"      // 400
	ErrCodeNotFound         = "not_found"             // 404
	ErrCodeMethodNotAllowed = "method_not_allowed"    // 405
	ErrCodeConflict         = "conflict"              // 409
	ErrCodePayloadTooLarge  = "payload_too_large"     // 413
	ErrCodeDatabase         = "database_error"        // 500
	ErrCodeInternal         = "internal_server_error" // 500
)

// MsgValidationFailed is the message of every validation_error response.
const MsgValidationFailed = "Request validation failed."
