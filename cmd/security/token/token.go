package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// FingerprintKeyEnv is the env var name for the optional fingerprint key.
	// #nosec G101 -- not a credential; it's an environment variable name.
	FingerprintKeyEnv = "COYOTE_TOKEN_FINGERPRINT_KEY"

	fingerprintLen = 12
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// FingerprintKeyFromEnv returns the fingerprint key, requiring at least minBytes.
// Length is measured in bytes because the key is used as raw HMAC key material.
func FingerprintKeyFromEnv(minBytes int) ([]byte, error) {
	key := strings.TrimSpace(os.Getenv(FingerprintKeyEnv))
	if key == "" {
		return nil, ErrFingerprintKeyMissing
	}
	if len(key) < minBytes {
		return nil, ErrFingerprintKeyTooShort
	}
	return []byte(key), nil
}

// FingerprintKeyed reports whether Fingerprint is running in HMAC mode.
func FingerprintKeyed() bool {
	return strings.TrimSpace(os.Getenv(FingerprintKeyEnv)) != ""
}

// Fingerprint returns a short stable digest of tok suitable for logs.
// Blank tokens yield "none".
func Fingerprint(tok string) string {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "none"
	}
	var digest string
	if key := strings.TrimSpace(os.Getenv(FingerprintKeyEnv)); key != "" {
		digest = HashHMACSHA256Hex(tok, []byte(key))
	} else {
		digest = HashSHA256Hex(tok)
	}
	return digest[:fingerprintLen]
}

// Normalize trims a token read from storage or a response body.
func Normalize(tok string) (string, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", ErrEmptyToken
	}
	return tok, nil
}

// BearerHeader formats tok as an Authorization header value.
func BearerHeader(tok string) string {
	return "Bearer " + tok
}
