// Package coyoteapi is the HTTP client of the CoyoteApp backend.
//
// Every endpoint declares whether it sends the stored bearer token (never,
// when present, or always with a fail-fast ErrMissingCredential). Any 401/403
// answer deletes the stored token before the error is returned, and the
// unauthorized hook lets the session store drop its profile.
//
// All failures are *Error values carrying a sentinel Kind; the backend's
// {"message": ...} text is surfaced verbatim when present.
package coyoteapi
