// Package gate decides whether the current browser may see a protected
// admin page. A Gate resolves the session, then the role, then applies
// the role policy, and re-resolves whenever the auth state changes.
package gate

import (
	"context"
	"errors"
	"sync"

	"evenup_web/internal/backend"
	"evenup_web/internal/rbac"
)

type State int

const (
	StateLoading State = iota
	StateError
	StateUnauthenticated
	StateNoRole
	StateInsufficientRole
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateNoRole:
		return "no_role"
	case StateInsufficientRole:
		return "insufficient_role"
	case StateAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Snapshot is the gate's view at one point in time.
type Snapshot struct {
	State    State
	Required rbac.Role
	Session  *backend.Session
	Role     rbac.Role
	HasRole  bool
	Err      error
}

func (s Snapshot) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.User.ID
}

// ErrorMessage is the message shown on the error screen.
func (s Snapshot) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// IsRoleError reports whether the failure came from the role lookup.
func (s Snapshot) IsRoleError() bool {
	var re *RoleLookupError
	return errors.As(s.Err, &re)
}

type Option func(*Gate)

// WithRequiredRole sets the minimum role; the default is viewer.
func WithRequiredRole(r rbac.Role) Option {
	return func(g *Gate) { g.required = r }
}

// Gate holds at most one auth subscription, taken in Mount and released
// in Unmount. After Unmount no state change is applied or observed.
type Gate struct {
	sessions *SessionResolver
	roles    *RoleResolver
	required rbac.Role

	mu        sync.Mutex
	snap      Snapshot
	gen       uint64
	pending   chan struct{} // non-nil while snap is loading; closed when it settles
	mounted   bool
	unmounted bool
	sub       backend.Subscription
	bg        context.Context
	cancel    context.CancelFunc
	observers map[int]func(Snapshot)
	nextObs   int
}

func New(sessions SessionSource, roles RoleLookup, opts ...Option) *Gate {
	g := &Gate{
		sessions:  NewSessionResolver(sessions),
		roles:     NewRoleResolver(roles),
		required:  rbac.RoleViewer,
		observers: make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(g)
	}
	g.snap = Snapshot{State: StateLoading, Required: g.required}
	g.pending = make(chan struct{})
	return g
}

// Snapshot returns the current view.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// OnChange registers fn to receive every applied snapshot. The returned
// func removes it.
func (g *Gate) OnChange(fn func(Snapshot)) (remove func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextObs++
	id := g.nextObs
	g.observers[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.observers, id)
	}
}

// Mount subscribes to auth changes and runs the first resolution. Calling
// Mount again only refreshes.
func (g *Gate) Mount(ctx context.Context) Snapshot {
	g.mu.Lock()
	if g.unmounted {
		snap := g.snap
		g.mu.Unlock()
		return snap
	}
	if !g.mounted {
		g.mounted = true
		g.bg, g.cancel = context.WithCancel(context.WithoutCancel(ctx))
		bg := g.bg
		g.sub = g.sessions.Subscribe(func() { g.Refresh(bg) })
	}
	g.mu.Unlock()
	return g.Refresh(ctx)
}

// Unmount releases the subscription and cancels in-flight refreshes.
func (g *Gate) Unmount() {
	g.mu.Lock()
	if g.unmounted {
		g.mu.Unlock()
		return
	}
	g.unmounted = true
	g.mounted = false
	sub := g.sub
	g.sub = nil
	if g.cancel != nil {
		g.cancel()
	}
	if g.pending != nil {
		close(g.pending)
		g.pending = nil
	}
	clear(g.observers)
	g.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Refresh re-runs session then role resolution. A refresh superseded by a
// later one is discarded and waits for the newest one to settle, so the
// caller never gets a loading snapshot unless ctx ends or the gate is
// unmounted first.
func (g *Gate) Refresh(ctx context.Context) Snapshot {
	g.mu.Lock()
	if g.unmounted {
		snap := g.snap
		g.mu.Unlock()
		return snap
	}
	g.gen++
	gen := g.gen
	g.mu.Unlock()

	g.apply(gen, Snapshot{State: StateLoading, Required: g.required})
	if snap := g.apply(gen, g.resolve(ctx)); snap.State != StateLoading {
		return snap
	}
	return g.settle(ctx)
}

// settle blocks until the current snapshot is no longer loading.
func (g *Gate) settle(ctx context.Context) Snapshot {
	for {
		g.mu.Lock()
		snap, pending := g.snap, g.pending
		g.mu.Unlock()
		if pending == nil {
			return snap
		}
		select {
		case <-pending:
		case <-ctx.Done():
			return g.Snapshot()
		}
	}
}

func (g *Gate) resolve(ctx context.Context) Snapshot {
	snap := Snapshot{Required: g.required}

	session, err := g.sessions.Resolve(ctx)
	if err != nil {
		snap.State = StateError
		snap.Err = err
		return snap
	}
	if session == nil {
		snap.State = StateUnauthenticated
		return snap
	}
	snap.Session = session

	role, ok, err := g.roles.Resolve(ctx, session.User.ID)
	switch {
	case err != nil:
		snap.State = StateError
		snap.Err = err
	case !ok:
		snap.State = StateNoRole
	case !rbac.HasRequired(role, g.required):
		snap.State = StateInsufficientRole
		snap.Role, snap.HasRole = role, true
	default:
		snap.State = StateAuthorized
		snap.Role, snap.HasRole = role, true
	}
	return snap
}

func (g *Gate) apply(gen uint64, snap Snapshot) Snapshot {
	g.mu.Lock()
	if g.unmounted || gen != g.gen {
		cur := g.snap
		g.mu.Unlock()
		return cur
	}
	g.snap = snap
	switch {
	case snap.State == StateLoading && g.pending == nil:
		g.pending = make(chan struct{})
	case snap.State != StateLoading && g.pending != nil:
		close(g.pending)
		g.pending = nil
	}
	observers := make([]func(Snapshot), 0, len(g.observers))
	for _, fn := range g.observers {
		observers = append(observers, fn)
	}
	g.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return snap
}
