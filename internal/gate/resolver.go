package gate

import (
	"context"
	"sync/atomic"

	"evenup_web/internal/backend"
	"evenup_web/internal/rbac"
)

// SessionSource is the part of an auth client the gate reads.
type SessionSource interface {
	GetSession(ctx context.Context) (*backend.Session, error)
	OnAuthStateChange(fn backend.Handler) backend.Subscription
}

// RoleLookup returns the stored role string for a user, or nil when the
// user has no assignment row.
type RoleLookup interface {
	FindRole(ctx context.Context, userID string) (*string, error)
}

// SessionResolver reports the current session and announces auth changes.
type SessionResolver struct {
	source SessionSource
	// A token refresh triggered by Resolve is already reflected in its
	// result: inflight covers the call itself, last the token it returned.
	inflight atomic.Int32
	last     atomic.Pointer[string]
}

func NewSessionResolver(source SessionSource) *SessionResolver {
	return &SessionResolver{source: source}
}

// Resolve returns the current session, nil when signed out.
func (r *SessionResolver) Resolve(ctx context.Context) (*backend.Session, error) {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)
	s, err := r.source.GetSession(ctx)
	if s != nil {
		r.last.Store(&s.AccessToken)
	}
	if err != nil {
		return nil, &SessionLookupError{Message: err.Error(), Err: err}
	}
	return s, nil
}

// Subscribe calls fn on every sign-in, sign-out and token refresh, except
// refreshes produced by this resolver's own lookups.
func (r *SessionResolver) Subscribe(fn func()) backend.Subscription {
	return r.source.OnAuthStateChange(func(ev backend.AuthEvent, s *backend.Session) {
		if ev == backend.EventTokenRefreshed && r.resolved(s) {
			return
		}
		fn()
	})
}

func (r *SessionResolver) resolved(s *backend.Session) bool {
	if r.inflight.Load() > 0 {
		return true
	}
	last := r.last.Load()
	return s != nil && last != nil && *last == s.AccessToken
}

// RoleResolver maps a user id to its assigned role.
type RoleResolver struct {
	lookup RoleLookup
}

func NewRoleResolver(lookup RoleLookup) *RoleResolver {
	return &RoleResolver{lookup: lookup}
}

// Resolve returns the user's role and whether one is assigned. A missing
// row and an unrecognized stored value both mean no role.
func (r *RoleResolver) Resolve(ctx context.Context, userID string) (rbac.Role, bool, error) {
	if userID == "" {
		return rbac.RoleViewer, false, nil
	}
	stored, err := r.lookup.FindRole(ctx, userID)
	if err != nil {
		return rbac.RoleViewer, false, &RoleLookupError{Message: err.Error(), Err: err}
	}
	if stored == nil {
		return rbac.RoleViewer, false, nil
	}
	role, ok := rbac.ParseRole(*stored)
	return role, ok, nil
}
