package session

import (
	"context"
	"sync"

	"coyote/cmd/security/token"
)

// MemoryTokenStore keeps the token in process memory.
// It backs tests and COYOTE_TOKEN_STORE=memory (one-shot scripted runs).
type MemoryTokenStore struct {
	mu  sync.Mutex
	tok string
}

// NewMemoryTokenStore constructs an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Load returns the stored token.
func (s *MemoryTokenStore) Load(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok, s.tok != "", nil
}

// Save replaces the stored token.
func (s *MemoryTokenStore) Save(ctx context.Context, tok string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tok, err := token.Normalize(tok)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tok = tok
	s.mu.Unlock()
	return nil
}

// Delete clears the stored token.
func (s *MemoryTokenStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.tok = ""
	s.mu.Unlock()
	return nil
}
