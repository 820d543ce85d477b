package service

import "errors"

// Sentinel errors for the auth and resource services. Handlers translate
// these to HTTP statuses; anything not in this list is treated as a storage
// failure and reported as a generic 503 with the detail kept in the logs.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrAccountLocked       = errors.New("account disabled")
	ErrForbidden           = errors.New("forbidden")
	ErrUsernameTaken       = errors.New("username already registered")
	ErrEmailTaken          = errors.New("email already registered")
	ErrNoteNotFound        = errors.New("note not found")
	ErrAlreadyShared       = errors.New("note already shared")
	ErrInvalidCategory     = errors.New("invalid category")
)
