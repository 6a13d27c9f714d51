package token

import "errors"

var (
	// ErrEmptyToken is returned when a token is blank after trimming.
	ErrEmptyToken = errors.New("empty token")

	ErrFingerprintKeyMissing  = errors.New("token fingerprint key missing")
	ErrFingerprintKeyTooShort = errors.New("token fingerprint key too short")
)
