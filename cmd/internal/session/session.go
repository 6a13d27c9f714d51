package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"coyote/cmd/identity"
	"coyote/cmd/security/token"
)

// State is the authentication state of a Store.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the Store at one point in time.
type Snapshot struct {
	State   State             `json:"-"`
	Profile *identity.Profile `json:"user"`
	Loading bool              `json:"loading"`
}

// IsLogged reports whether the snapshot holds an authenticated profile.
func (s Snapshot) IsLogged() bool {
	return s.State == StateAuthenticated && s.Profile != nil
}

// ProfileFetcher resolves the persisted token into a profile.
// ok=false with a nil error means there is no token to resolve.
type ProfileFetcher interface {
	CurrentUser(ctx context.Context) (p identity.Profile, ok bool, err error)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store is the process-wide authentication state.
//
// All transitions happen under mu; subscribers are invoked after mu is released,
// in subscription order.
type Store struct {
	tokens   TokenStore
	profiles ProfileFetcher
	log      *slog.Logger

	// hydrateMu serializes Initialize/Reload so two loads never interleave.
	hydrateMu sync.Mutex

	mu      sync.Mutex
	state   State
	profile *identity.Profile
	subs    map[int]func(Snapshot)
	nextSub int

	doneOnce sync.Once
	done     chan struct{}
}

// NewStore constructs a Store in the Loading state.
func NewStore(tokens TokenStore, profiles ProfileFetcher, opts ...StoreOption) *Store {
	s := &Store{
		tokens:   tokens,
		profiles: profiles,
		log:      slog.Default(),
		state:    StateLoading,
		subs:     make(map[int]func(Snapshot)),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Initialize hydrates the Store from the persisted token.
//
// No token means Unauthenticated without any profile request. When the profile
// cannot be resolved for any reason, the persisted token is deleted and the
// Store ends Unauthenticated. Initialize never fails; problems are logged.
func (s *Store) Initialize(ctx context.Context) Snapshot {
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()

	s.transition(StateLoading, nil, "initialize")

	p, ok := s.hydrate(ctx)
	var snap Snapshot
	if ok {
		snap = s.transition(StateAuthenticated, &p, "initialize")
	} else {
		snap = s.transition(StateUnauthenticated, nil, "initialize")
	}
	s.doneOnce.Do(func() { close(s.done) })
	return snap
}

// Reload re-resolves the current user from the persisted token.
// It has the same semantics as Initialize.
func (s *Store) Reload(ctx context.Context) Snapshot {
	return s.Initialize(ctx)
}

func (s *Store) hydrate(ctx context.Context) (identity.Profile, bool) {
	tok, ok, err := s.tokens.Load(ctx)
	if err != nil {
		s.log.Warn("session.token.load.fail", "err", err)
		s.dropToken(ctx, "load_failed")
		return identity.Profile{}, false
	}
	if !ok {
		s.log.Debug("session.token.absent")
		return identity.Profile{}, false
	}

	fp := token.Fingerprint(tok)
	p, found, err := s.profiles.CurrentUser(ctx)
	switch {
	case err != nil:
		s.log.Warn("session.profile.fetch.fail", "token_fp", fp, "err", err)
		s.dropToken(ctx, "fetch_failed")
		return identity.Profile{}, false
	case !found:
		s.log.Info("session.profile.absent", "token_fp", fp)
		s.dropToken(ctx, "profile_absent")
		return identity.Profile{}, false
	}
	return p, true
}

func (s *Store) dropToken(ctx context.Context, reason string) {
	// Cleanup must not be skipped because the caller's context expired.
	ctx = context.WithoutCancel(ctx)
	if err := s.tokens.Delete(ctx); err != nil {
		s.log.Error("session.token.clear.fail", "reason", reason, "err", err)
		return
	}
	s.log.Info("session.token.cleared", "reason", reason)
}

// SetAuthenticated records a freshly signed-in profile.
func (s *Store) SetAuthenticated(p identity.Profile) Snapshot {
	return s.transition(StateAuthenticated, &p, "set_authenticated")
}

// Clear drops the profile. The persisted token is left untouched; callers that
// need it gone delete it through the TokenStore or the API client.
func (s *Store) Clear() Snapshot {
	return s.transition(StateUnauthenticated, nil, "clear")
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Profile returns the authenticated profile, if any.
func (s *Store) Profile() (identity.Profile, bool) {
	snap := s.Snapshot()
	if !snap.IsLogged() {
		return identity.Profile{}, false
	}
	return *snap.Profile, true
}

// IsLoading reports whether a load is in progress.
func (s *Store) IsLoading() bool {
	return s.Snapshot().Loading
}

// Done is closed once the first Initialize completes.
func (s *Store) Done() <-chan struct{} { return s.done }

// Subscribe registers fn to be called after every transition.
// The returned cancel func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// RequireRole checks the current profile against role.
func (s *Store) RequireRole(role identity.Role) (identity.Profile, error) {
	p, ok := s.Profile()
	if !ok {
		return identity.Profile{}, ErrNotAuthenticated
	}
	if p.Role != role {
		return identity.Profile{}, ErrForbiddenRole
	}
	return p, nil
}

func (s *Store) transition(to State, p *identity.Profile, cause string) Snapshot {
	s.mu.Lock()
	from := s.state
	s.state = to
	if to == StateAuthenticated && p != nil {
		cp := *p
		s.profile = &cp
	} else {
		s.profile = nil
	}
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	attrs := []any{"from", from.String(), "to", to.String(), "cause", cause}
	if snap.Profile != nil {
		attrs = append(attrs, "user_id", snap.Profile.ID, "role", string(snap.Profile.Role))
	}
	s.log.Debug("session.state", attrs...)

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state, Loading: s.state == StateLoading}
	if s.profile != nil {
		cp := *s.profile
		snap.Profile = &cp
	}
	return snap
}

func (s *Store) subscribersLocked() []func(Snapshot) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}
