package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrProviderDisabled      = errors.New("fixture provider is not configured")
	ErrNoBaseline            = errors.New("no fixture baseline available")
)
