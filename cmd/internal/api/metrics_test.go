package coyoteapi

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RequestsAndInvalidations(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	b := newBackend(t)
	b.handle("GET /api/videos", jsonReply(200, []any{}))
	b.handle("GET /api/videos/latest", jsonReply(401, map[string]string{"message": "expired"}))
	tokens := tokenWith(t, "tok")
	c := newTestClient(t, b, tokens, WithMetrics(m))

	if _, err := c.ListPosts(context.Background()); err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if _, err := c.ListLatestPosts(context.Background()); !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("videos.list", "2xx")); got != 1 {
		t.Fatalf("videos.list 2xx=%v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("videos.latest", "4xx")); got != 1 {
		t.Fatalf("videos.latest 4xx=%v", got)
	}
	if got := testutil.ToFloat64(m.invalidations.WithLabelValues(InvalidationUnauthorized)); got != 1 {
		t.Fatalf("unauthorized invalidations=%v", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Fatalf("duration series=%d want 2", n)
	}

	// Nothing left to delete, so a second sign out records nothing new.
	_ = tokens.Save(context.Background(), "tok-2")
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if got := testutil.ToFloat64(m.invalidations.WithLabelValues(InvalidationSignOut)); got != 1 {
		t.Fatalf("signout invalidations=%v", got)
	}
}

func TestNewMetrics_RegisterTwiceReusesCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("first NewMetrics: %v", err)
	}
	second, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("second NewMetrics: %v", err)
	}

	second.tokenInvalidated(InvalidationSignInFailed)
	if got := testutil.ToFloat64(first.invalidations.WithLabelValues(InvalidationSignInFailed)); got != 1 {
		t.Fatalf("collectors not shared, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.observeRequest("videos.list", "2xx", 0)
	m.tokenInvalidated(InvalidationSignOut)

	if _, err := NewMetrics(nil); err != nil {
		t.Fatalf("NewMetrics(nil): %v", err)
	}
}
