package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"coyote/cmd/security/token"
)

// FileTokenStore persists the token as one entry of a small JSON key-value file.
//
// Writes go to a temp file in the same directory and are renamed into place, so a
// crash never leaves a half-written token. Other keys in the file are preserved.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

// DefaultTokenFile returns <UserConfigDir>/coyote/session.json.
func DefaultTokenFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "coyote", "session.json"), nil
}

// NewFileTokenStore constructs a file-backed token store. An empty path selects DefaultTokenFile.
func NewFileTokenStore(path string) (*FileTokenStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		def, err := DefaultTokenFile()
		if err != nil {
			return nil, fmt.Errorf("%w: token file: %v", ErrConfig, err)
		}
		path = def
	}
	return &FileTokenStore{path: path}, nil
}

// Path returns the backing file path.
func (s *FileTokenStore) Path() string { return s.path }

// Load returns the stored token; a missing file means no token.
func (s *FileTokenStore) Load(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return "", false, err
	}
	tok := strings.TrimSpace(kv[TokenKey])
	return tok, tok != "", nil
}

// Save writes the token entry.
func (s *FileTokenStore) Save(ctx context.Context, tok string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tok, err := token.Normalize(tok)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil && !errors.Is(err, ErrCorruptTokenFile) {
		return err
	}
	if kv == nil {
		kv = make(map[string]string, 1)
	}
	kv[TokenKey] = tok
	return s.write(kv)
}

// Delete removes the token entry; the file is removed once it holds no keys.
func (s *FileTokenStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if errors.Is(err, ErrCorruptTokenFile) {
		return s.remove()
	}
	if err != nil {
		return err
	}
	if _, ok := kv[TokenKey]; !ok {
		return nil
	}
	delete(kv, TokenKey)
	if len(kv) == 0 {
		return s.remove()
	}
	return s.write(kv)
}

func (s *FileTokenStore) read() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return map[string]string{}, nil
	}
	kv := map[string]string{}
	if err := json.Unmarshal(b, &kv); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptTokenFile, s.path, err)
	}
	return kv, nil
}

func (s *FileTokenStore) write(kv map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

func (s *FileTokenStore) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
