package app

import (
	"errors"

	"coyote/cmd/security/token"
)

// ValidateSecurityConfig enforces the token logging policy at startup.
// Fail-fast: falling back to unkeyed fingerprints under policy is not allowed.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireFingerprintKey {
		return nil
	}

	if _, err := token.FingerprintKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrFingerprintKeyMissing):
			return errors.New("security policy: COYOTE_REQUIRE_TOKEN_FINGERPRINT_KEY=true but COYOTE_TOKEN_FINGERPRINT_KEY is missing")
		case errors.Is(err, token.ErrFingerprintKeyTooShort):
			return errors.New("security policy: COYOTE_REQUIRE_TOKEN_FINGERPRINT_KEY=true but COYOTE_TOKEN_FINGERPRINT_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.FingerprintKeyed() {
		return errors.New("security policy: token fingerprints are not keyed")
	}
	return nil
}
