package models

import "errors"

// Domain specific errors for authentication and authorization.
var (
	ErrNotFound          = errors.New("requested item not found")
	ErrUnauthenticated   = errors.New("authentication required or invalid credentials")
	ErrForbidden         = errors.New("action forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrValidation        = errors.New("validation failed")
	ErrSessionExpired    = errors.New("session expired")
	ErrInvalidCallback   = errors.New("invalid identity provider callback")
	ErrVerifyUnavailable = errors.New("security verification unavailable")
	ErrCacheInvalidation = errors.New("identity cache invalidation failed")
)
