// Package services defines the business logic for ingestion, insights,
// sources, competitors, and digests. This file centralizes the service-level
// error values so that they can be returned consistently by service methods
// and checked by callers.
//
// Translation into HTTP status codes and user-facing messages happens in the
// handler layer.
package services

import (
	"errors"
	"strings"
)

// Lookup and conflict errors.
var (
	// ErrCompetitorNotFound indicates that the requested competitor does not exist.
	ErrCompetitorNotFound = errors.New("competitor not found")

	// ErrDuplicateCompetitor is returned when a competitor name is already taken.
	ErrDuplicateCompetitor = errors.New("competitor already exists")

	// ErrSourceConflict is returned when source metadata collides with another
	// source on (platform, external_id).
	ErrSourceConflict = errors.New("source metadata conflicts with an existing source")

	// ErrDigestNotFound indicates that the requested digest does not exist.
	ErrDigestNotFound = errors.New("digest not found")
)

// FieldIssue names one invalid input field.
type FieldIssue struct {
	Field string `json:"field" example:"reviews[0].body"`
	Issue string `json:"issue" example:"is required"`
}

// ValidationError carries every field-level problem found in a request.
type ValidationError struct {
	Message string
	Details []FieldIssue
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+" "+d.Issue)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// add records an issue for field.
func (e *ValidationError) add(field, issue string) {
	e.Details = append(e.Details, FieldIssue{Field: field, Issue: issue})
}

// orNil returns e when it holds at least one issue.
func (e *ValidationError) orNil() error {
	if len(e.Details) == 0 {
		return nil
	}
	return e
}

// StorageError wraps a persistence failure. The batch or operation that
// produced it was rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }
