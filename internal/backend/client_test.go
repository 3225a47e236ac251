package backend_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evenup_web/internal/backend"
	"evenup_web/internal/backend/backendtest"
)

type eventRecord struct {
	event   backend.AuthEvent
	session *backend.Session
}

func setup(t *testing.T) (*backendtest.FakeAuth, *backend.Hub, *backend.MemoryStorage, *backend.AuthClient) {
	t.Helper()
	tokens := backend.NewTokens("test-secret")
	fake := backendtest.NewFakeAuth(tokens)
	hub := backend.NewHub()
	storage := backend.NewMemoryStorage("browser-1")
	client := backend.NewClientFactory(fake, tokens, hub).Client(storage)
	return fake, hub, storage, client
}

func subscribe(client *backend.AuthClient) (<-chan eventRecord, backend.Subscription) {
	ch := make(chan eventRecord, 8)
	sub := client.OnAuthStateChange(func(e backend.AuthEvent, s *backend.Session) {
		ch <- eventRecord{e, s}
	})
	return ch, sub
}

func waitEvent(t *testing.T, ch <-chan eventRecord) eventRecord {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no auth event delivered")
		return eventRecord{}
	}
}

func TestGetSession_SignedOutIsNil(t *testing.T) {
	_, _, _, client := setup(t)
	s, err := client.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestVerifyOTP_PersistsAndPublishesSignedIn(t *testing.T) {
	fake, _, storage, client := setup(t)
	fake.AddUser("u-1", "ops@evenup.in", nil)
	events, sub := subscribe(client)
	defer sub.Unsubscribe()

	s, err := client.VerifyOTP(context.Background(), "ops@evenup.in", backendtest.Code)
	require.NoError(t, err)
	assert.Equal(t, "u-1", s.User.ID)
	assert.Positive(t, storage.Saves())

	ev := waitEvent(t, events)
	assert.Equal(t, backend.EventSignedIn, ev.event)

	got, err := client.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.AccessToken, got.AccessToken)
}

func TestVerifyOTP_WrongCodeKeepsProviderMessage(t *testing.T) {
	fake, _, _, client := setup(t)
	fake.AddUser("u-1", "ops@evenup.in", nil)

	_, err := client.VerifyOTP(context.Background(), "ops@evenup.in", "000000")
	require.Error(t, err)
	assert.Equal(t, "Token has expired or is invalid", err.Error())

	s, err := client.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetSession_RefreshesExpiredToken(t *testing.T) {
	fake, _, _, client := setup(t)
	u := fake.AddUser("u-1", "ops@evenup.in", nil)
	require.NoError(t, client.SetSession(fake.Issue(u, -time.Minute)))
	events, sub := subscribe(client)
	defer sub.Unsubscribe()

	s, err := client.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, fake.Refreshes())
	assert.Equal(t, backend.EventTokenRefreshed, waitEvent(t, events).event)

	_, err = client.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Refreshes(), "fresh token must not refresh again")
}

func TestGetSession_FailedRefreshClearsSession(t *testing.T) {
	fake, _, _, client := setup(t)
	u := fake.AddUser("u-1", "ops@evenup.in", nil)
	require.NoError(t, client.SetSession(fake.Issue(u, -time.Minute)))
	fake.RefreshErr = errors.New("Invalid Refresh Token: Already Used")

	s, err := client.GetSession(context.Background())
	assert.Nil(t, s)
	require.EqualError(t, err, "Invalid Refresh Token: Already Used")

	s, err = client.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetSession_ForeignSignatureIsRejected(t *testing.T) {
	fake, _, _, client := setup(t)
	u := fake.AddUser("u-1", "ops@evenup.in", nil)
	other := backendtest.NewFakeAuth(backend.NewTokens("another-secret"))
	require.NoError(t, client.SetSession(other.Issue(u, time.Hour)))

	_, err := client.GetSession(context.Background())
	assert.ErrorIs(t, err, backend.ErrInvalidToken)
}

func TestSignOut_ClearsAndPublishes(t *testing.T) {
	fake, hub, storage, client := setup(t)
	u := fake.AddUser("u-1", "ops@evenup.in", nil)
	require.NoError(t, client.SetSession(fake.Issue(u, time.Hour)))
	events, sub := subscribe(client)

	require.NoError(t, client.SignOut(context.Background()))
	assert.Equal(t, 1, fake.SignOuts())
	assert.Equal(t, backend.EventSignedOut, waitEvent(t, events).event)
	_, ok := storage.Get("auth.session")
	assert.False(t, ok)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Zero(t, hub.Subscribers("browser-1"))
}

func TestHub_ScopesEventsToKey(t *testing.T) {
	hub := backend.NewHub()
	got := make(chan string, 2)
	a := hub.Subscribe("a", func(backend.AuthEvent, *backend.Session) { got <- "a" })
	b := hub.Subscribe("b", func(backend.AuthEvent, *backend.Session) { got <- "b" })
	defer a.Unsubscribe()
	defer b.Unsubscribe()

	hub.Publish("b", backend.EventSignedOut, nil)
	select {
	case key := <-got:
		assert.Equal(t, "b", key)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	assert.Equal(t, 1, hub.Subscribers("a"))
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "nick", backend.User{Metadata: map[string]any{"nickname": "nick", "name": "A", "full_name": "Asha"}}.DisplayName())
	assert.Equal(t, "A", backend.User{Metadata: map[string]any{"name": "A", "full_name": "Asha"}}.DisplayName())
	assert.Equal(t, "Asha", backend.User{Email: "a@x.in", Metadata: map[string]any{"full_name": "Asha"}}.DisplayName())
	assert.Equal(t, "Admin User", backend.User{Email: "a@x.in", Metadata: map[string]any{"full_name": 42}}.DisplayName())
	assert.Equal(t, "Admin User", backend.User{}.DisplayName())
}

func TestUser_Contact(t *testing.T) {
	assert.Equal(t, "a@x.in", backend.User{ID: "u-1", Email: "a@x.in"}.Contact())
	assert.Equal(t, "u-1", backend.User{ID: "u-1"}.Contact())
}

func TestTokens_ExpiredAndTampered(t *testing.T) {
	tokens := backend.NewTokens("s3cret")
	u := backend.User{ID: "u-9", Email: "x@y.z"}

	tok, _, err := tokens.Sign(u, time.Minute)
	require.NoError(t, err)
	claims, err := tokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-9", claims.Subject)
	assert.Equal(t, "x@y.z", claims.Email)

	_, err = tokens.Parse(tok + "x")
	assert.ErrorIs(t, err, backend.ErrInvalidToken)
}
