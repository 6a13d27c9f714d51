package session

import "errors"

var (
	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// ErrNotAuthenticated is returned by RequireRole when nobody is logged in.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrForbiddenRole is returned by RequireRole when the profile lacks the role.
	ErrForbiddenRole = errors.New("role not permitted")

	// ErrCorruptTokenFile is returned when the token file is not a JSON object.
	ErrCorruptTokenFile = errors.New("corrupt token file")
)
