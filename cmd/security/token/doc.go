// Package token derives log-safe fingerprints of bearer tokens.
//
// The client must never write a bearer token to logs or metrics. Components that
// need to correlate log lines for the same session log Fingerprint(token) instead.
//
// Environment:
// - COYOTE_TOKEN_FINGERPRINT_KEY: when set, fingerprints are HMAC-SHA256 keyed,
//   so fingerprints from different installations cannot be compared.
package token
