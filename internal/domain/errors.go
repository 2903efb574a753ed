package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrMarkerCommit means the batch ran but the last-sent marker could not be persisted.
	ErrMarkerCommit = errors.New("failed to commit dispatch marker")
	// ErrRecipientsUnavailable means the recipient list could not be loaded at all.
	ErrRecipientsUnavailable = errors.New("recipients unavailable")
)
