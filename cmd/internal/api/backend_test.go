package coyoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"coyote/cmd/internal/session"
)

// backend is an httptest server that counts and records calls per route pattern.
type backend struct {
	t   *testing.T
	mux *http.ServeMux
	srv *httptest.Server

	mu    sync.Mutex
	calls map[string]int
	reqs  map[string][]recorded
}

type recorded struct {
	Header http.Header
	Body   []byte
	Query  url.Values
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{
		t:     t,
		mux:   http.NewServeMux(),
		calls: make(map[string]int),
		reqs:  make(map[string][]recorded),
	}
	b.srv = httptest.NewServer(b.mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) baseURL() string { return b.srv.URL + "/api" }

// handle registers h under pattern (e.g. "GET /api/users/me").
func (b *backend) handle(pattern string, h http.HandlerFunc) {
	b.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.calls[pattern]++
		b.reqs[pattern] = append(b.reqs[pattern], recorded{
			Header: r.Header.Clone(),
			Body:   body,
			Query:  r.URL.Query(),
		})
		b.mu.Unlock()

		r.Body = io.NopCloser(bytes.NewReader(body))
		h(w, r)
	})
}

func (b *backend) count(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[pattern]
}

func (b *backend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

func (b *backend) last(pattern string) recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	rs := b.reqs[pattern]
	if len(rs) == 0 {
		b.t.Fatalf("no request recorded for %q", pattern)
	}
	return rs[len(rs)-1]
}

func jsonReply(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func rawReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, b *backend, tokens session.TokenStore, opts ...Option) *Client {
	t.Helper()

	base := []Option{WithHTTPClient(b.srv.Client()), WithLogger(quietLogger())}
	c, err := NewClient(Config{BaseURL: b.baseURL()}, tokens, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func tokenWith(t *testing.T, tok string) *session.MemoryTokenStore {
	t.Helper()

	s := session.NewMemoryTokenStore()
	if tok != "" {
		if err := s.Save(context.Background(), tok); err != nil {
			t.Fatalf("seed token: %v", err)
		}
	}
	return s
}

func hasToken(t *testing.T, s session.TokenStore) bool {
	t.Helper()

	_, ok, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load token: %v", err)
	}
	return ok
}

var studentJSON = map[string]any{
	"id":            7,
	"controlNumber": "21940001",
	"fullName":      "Ana López",
	"career":        "ISC",
	"semester":      5,
	"age":           20,
	"role":          "student",
}
