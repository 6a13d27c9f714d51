package session

import "context"

// TokenKey is the fixed key the bearer token is persisted under.
// #nosec G101 -- key name, not a credential.
const TokenKey = "userToken"

// TokenStore persists the single session token slot.
//
// Implementations must make Save and Delete atomic with respect to Load and
// must treat Delete of an absent token as success.
type TokenStore interface {
	// Load returns the persisted token; ok is false when none is stored.
	Load(ctx context.Context) (token string, ok bool, err error)

	// Save replaces the persisted token.
	Save(ctx context.Context, token string) error

	// Delete removes the persisted token (idempotent).
	Delete(ctx context.Context) error
}
