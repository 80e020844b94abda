package catalog

import (
	"errors"

	"github.com/hyperjump/certiquest/internal/storage"
)

var (
	// ErrInvalidInput reports a request with missing or malformed fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicate reports a certification (title+provider) or user (email) that already exists.
	ErrDuplicate = errors.New("already exists")
	// ErrForbidden reports an action the acting user's role does not permit.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is storage.ErrNotFound, re-exported for callers of this package.
	ErrNotFound = storage.ErrNotFound
)
