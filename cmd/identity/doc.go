// Package identity models CoyoteApp users as the client sees them.
//
// It owns the Profile projection returned by the backend, the closed role set,
// control-number canonicalization and the strict decoding rules applied at the
// API boundary (an id is only accepted when it is a strictly positive integer).
package identity
