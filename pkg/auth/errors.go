package auth

import "errors"

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrUnauthenticated    = errors.New("login required")
	ErrInvalidSession     = errors.New("invalid session")
	ErrInvalidKey         = errors.New("invalid principal key")
	ErrDuplicateStaff     = errors.New("staff id already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotApproved        = errors.New("account not yet approved")
)
