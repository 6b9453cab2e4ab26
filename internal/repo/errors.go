package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is gorm.ErrRecordNotFound under the repo's name; matching
// either works.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate reports an insert that hit a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// uniqueMarkers are lower-cased fragments of unique-violation messages from
// glebarez/sqlite and pgx. Neither driver reliably returns a typed error.
var uniqueMarkers = []string{
	"unique constraint failed",
	"constraint failed: unique",
	"duplicate key",
	"sqlstate 23505",
}

// IsUniqueViolation reports whether err came from a unique constraint on
// either backend.
func IsUniqueViolation(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, ErrDuplicate):
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range uniqueMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
