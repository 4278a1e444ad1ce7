package service

import "errors"

// Error kinds surfaced by AuthService.  Handlers map them to HTTP statuses
// with errors.Is; anything else is an internal failure.
var (
	ErrValidation            = errors.New("validation failed")
	ErrDuplicateEmail        = errors.New("duplicate email")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUnauthorized          = errors.New("not authorized to access this route")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidOrExpiredToken = errors.New("invalid token")
	ErrNotFound              = errors.New("not found")
)
