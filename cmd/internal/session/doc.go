// Package session holds the client's authentication state.
//
// A Store is the single source of truth for "is anyone logged in, and who".
// It moves through Loading -> Unauthenticated | Authenticated(profile) and is
// hydrated from the bearer token persisted in a TokenStore.
//
// The persisted token is a single key-value entry (TokenKey). Backends:
// process memory, a 0600 JSON file, or a Postgres key-value table.
//
// The Store never talks HTTP itself; it asks a ProfileFetcher (the API client)
// to resolve the token into a profile.
package session
