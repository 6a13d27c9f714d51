package identity

import "errors"

// Sentinel error kinds (stable for errors.Is).
var (
	ErrInvalidProfile = errors.New("invalid_profile")
	ErrInvalidRole    = errors.New("invalid_role")
)
