package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evenup_web/internal/backend"
	"evenup_web/internal/backend/backendtest"
	"evenup_web/internal/rbac"
)

type fakeRoles struct {
	mu    sync.Mutex
	roles map[string]string
	err   error
	calls int
	hook  func(call int)
}

func (f *fakeRoles) FindRole(_ context.Context, userID string) (*string, error) {
	f.mu.Lock()
	f.calls++
	call, hook := f.calls, f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.roles[userID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRoles) set(userID, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = role
}

func (f *fakeRoles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type env struct {
	fake   *backendtest.FakeAuth
	hub    *backend.Hub
	client *backend.AuthClient
	roles  *fakeRoles
	user   backend.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tokens := backend.NewTokens("gate-secret")
	fake := backendtest.NewFakeAuth(tokens)
	hub := backend.NewHub()
	client := backend.NewClientFactory(fake, tokens, hub).Client(backend.NewMemoryStorage("browser"))
	return &env{
		fake:   fake,
		hub:    hub,
		client: client,
		roles:  &fakeRoles{roles: map[string]string{}},
		user:   fake.AddUser("u-1", "ops@evenup.in", nil),
	}
}

func (e *env) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, e.client.SetSession(e.fake.Issue(e.user, time.Hour)))
}

type erroringSource struct{ hub *backend.Hub }

func (erroringSource) GetSession(context.Context) (*backend.Session, error) {
	return nil, errors.New("Auth session missing!")
}

func (s erroringSource) OnAuthStateChange(fn backend.Handler) backend.Subscription {
	return s.hub.Subscribe("x", fn)
}

func TestGate_SignedOutIsUnauthenticated(t *testing.T) {
	e := newEnv(t)
	g := New(e.client, e.roles)
	assert.Equal(t, StateLoading, g.Snapshot().State)

	snap := g.Refresh(context.Background())
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Zero(t, e.roles.callCount(), "role lookup waits for a session")
}

func TestGate_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		stored   *string
		required rbac.Role
		want     State
	}{
		{"no row", nil, rbac.RoleViewer, StateNoRole},
		{"unrecognized value", ptr("superadmin"), rbac.RoleViewer, StateNoRole},
		{"case mismatch", ptr("Admin"), rbac.RoleViewer, StateNoRole},
		{"viewer needs admin", ptr("viewer"), rbac.RoleAdmin, StateInsufficientRole},
		{"admin meets viewer", ptr("admin"), rbac.RoleViewer, StateAuthorized},
		{"owner meets owner", ptr("owner"), rbac.RoleOwner, StateAuthorized},
		{"admin below owner", ptr("admin"), rbac.RoleOwner, StateInsufficientRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.signIn(t)
			if tt.stored != nil {
				e.roles.set("u-1", *tt.stored)
			}
			snap := New(e.client, e.roles, WithRequiredRole(tt.required)).Refresh(context.Background())
			assert.Equal(t, tt.want, snap.State)
			assert.Equal(t, "u-1", snap.UserID())
			assert.Equal(t, tt.required, snap.Required)
		})
	}
}

func TestGate_InsufficientRoleCarriesRoles(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.roles.set("u-1", "viewer")

	snap := New(e.client, e.roles, WithRequiredRole(rbac.RoleAdmin)).Refresh(context.Background())
	require.Equal(t, StateInsufficientRole, snap.State)
	assert.True(t, snap.HasRole)
	assert.Equal(t, rbac.RoleViewer, snap.Role)
	assert.Equal(t, rbac.RoleAdmin, snap.Required)
}

func TestGate_SessionErrorWins(t *testing.T) {
	e := newEnv(t)
	src := erroringSource{hub: backend.NewHub()}
	snap := New(src, e.roles).Refresh(context.Background())

	require.Equal(t, StateError, snap.State)
	assert.Equal(t, "Auth session missing!", snap.ErrorMessage())
	var se *SessionLookupError
	assert.ErrorAs(t, snap.Err, &se)
	assert.False(t, snap.IsRoleError())
	assert.Zero(t, e.roles.callCount())
}

func TestGate_RoleLookupErrorIsErrorState(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.roles.err = errors.New(`relation "admin_user_roles" does not exist`)

	snap := New(e.client, e.roles).Refresh(context.Background())
	require.Equal(t, StateError, snap.State)
	assert.True(t, snap.IsRoleError())
	assert.Equal(t, `relation "admin_user_roles" does not exist`, snap.ErrorMessage())
	assert.Equal(t, "u-1", snap.UserID())
}

func TestGate_SingleSubscriptionPerMount(t *testing.T) {
	e := newEnv(t)
	g := New(e.client, e.roles)

	g.Mount(context.Background())
	g.Mount(context.Background())
	assert.Equal(t, 1, e.hub.Subscribers("browser"))

	g.Unmount()
	g.Unmount()
	assert.Zero(t, e.hub.Subscribers("browser"))
}

func TestGate_ReResolvesOnSignIn(t *testing.T) {
	e := newEnv(t)
	e.roles.set("u-1", "admin")
	g := New(e.client, e.roles)

	seen := make(chan State, 16)
	g.OnChange(func(s Snapshot) {
		select {
		case seen <- s.State:
		default:
		}
	})
	require.Equal(t, StateUnauthenticated, g.Mount(context.Background()).State)
	defer g.Unmount()

	_, err := e.client.VerifyOTP(context.Background(), "ops@evenup.in", backendtest.Code)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return g.Snapshot().State == StateAuthorized
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, seen)
}

func TestGate_ReResolvesOnSignOut(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.roles.set("u-1", "viewer")
	g := New(e.client, e.roles)
	require.Equal(t, StateAuthorized, g.Mount(context.Background()).State)
	defer g.Unmount()

	require.NoError(t, e.client.SignOut(context.Background()))
	require.Eventually(t, func() bool {
		return g.Snapshot().State == StateUnauthenticated
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGate_NoUpdatesAfterUnmount(t *testing.T) {
	e := newEnv(t)
	e.roles.set("u-1", "owner")
	g := New(e.client, e.roles)

	var mu sync.Mutex
	calls := 0
	g.OnChange(func(Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	g.Mount(context.Background())
	g.Unmount()

	mu.Lock()
	before := calls
	mu.Unlock()

	e.signIn(t)
	snap := g.Refresh(context.Background())
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Equal(t, StateUnauthenticated, g.Snapshot().State)
	mu.Lock()
	assert.Equal(t, before, calls)
	mu.Unlock()
}

func TestGate_StaleRefreshIsDiscarded(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.roles.set("u-1", "viewer")

	release := make(chan struct{})
	entered := make(chan struct{})
	e.roles.hook = func(call int) {
		if call == 1 {
			close(entered)
			<-release
		}
	}
	g := New(e.client, e.roles, WithRequiredRole(rbac.RoleAdmin))

	done := make(chan Snapshot)
	go func() { done <- g.Refresh(context.Background()) }()
	<-entered

	e.roles.set("u-1", "admin")
	second := g.Refresh(context.Background())
	require.Equal(t, StateAuthorized, second.State)

	// the blocked lookup now reads viewer and would resolve to insufficient
	e.roles.set("u-1", "viewer")
	close(release)
	first := <-done
	assert.Equal(t, StateAuthorized, first.State, "the older result must not overwrite the newer one")
	assert.Equal(t, StateAuthorized, g.Snapshot().State)
}

func TestGate_MountWithExpiredTokenSettles(t *testing.T) {
	for i := 0; i < 20; i++ {
		e := newEnv(t)
		require.NoError(t, e.client.SetSession(e.fake.Issue(e.user, -time.Minute)))
		e.roles.set("u-1", "owner")
		e.roles.hook = func(call int) {
			switch call {
			case 1:
				time.Sleep(5 * time.Millisecond)
			case 2:
				time.Sleep(15 * time.Millisecond)
			}
		}
		g := New(e.client, e.roles, WithRequiredRole(rbac.RoleAdmin))

		snap := g.Mount(context.Background())
		g.Unmount()
		require.Equal(t, StateAuthorized, snap.State, "run %d", i)
		assert.Equal(t, 1, e.fake.Refreshes())
	}
}

func TestGate_OwnTokenRefreshDoesNotReResolve(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.client.SetSession(e.fake.Issue(e.user, -time.Minute)))
	e.roles.set("u-1", "admin")
	g := New(e.client, e.roles)
	require.Equal(t, StateAuthorized, g.Mount(context.Background()).State)
	defer g.Unmount()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, e.roles.callCount())
	assert.Equal(t, StateAuthorized, g.Snapshot().State)
}

func TestGate_SupersededRefreshWaitsForNewest(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.roles.set("u-1", "admin")

	firstIn := make(chan struct{})
	secondIn := make(chan struct{})
	release := make(chan struct{})
	e.roles.hook = func(call int) {
		switch call {
		case 1:
			close(firstIn)
			<-secondIn
		case 2:
			close(secondIn)
			<-release
		}
	}
	g := New(e.client, e.roles)

	done := make(chan Snapshot, 1)
	go func() { done <- g.Refresh(context.Background()) }()
	<-firstIn
	second := make(chan Snapshot, 1)
	go func() { second <- g.Refresh(context.Background()) }()

	select {
	case snap := <-done:
		t.Fatalf("superseded refresh returned %s before the newest settled", snap.State)
	case <-time.After(30 * time.Millisecond):
	}
	close(release)
	assert.Equal(t, StateAuthorized, (<-done).State)
	assert.Equal(t, StateAuthorized, (<-second).State)
}

func TestGate_SupersededRefreshHonoursContext(t *testing.T) {
	e := newEnv(t)
	e.signIn(t)
	e.roles.set("u-1", "admin")

	firstIn := make(chan struct{})
	secondIn := make(chan struct{})
	release := make(chan struct{})
	e.roles.hook = func(call int) {
		switch call {
		case 1:
			close(firstIn)
			<-secondIn
		case 2:
			close(secondIn)
			<-release
		}
	}
	g := New(e.client, e.roles)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan Snapshot, 1)
	go func() { done <- g.Refresh(ctx) }()
	<-firstIn
	go g.Refresh(context.Background())

	assert.Equal(t, StateLoading, (<-done).State)
	close(release)
	require.Eventually(t, func() bool {
		return g.Snapshot().State == StateAuthorized
	}, 2*time.Second, 10*time.Millisecond)
}

func ptr(s string) *string { return &s }
