// Package backendtest provides an in-memory auth provider for tests.
package backendtest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"evenup_web/internal/backend"
)

// Code is the one-time code every FakeAuth email carries.
const Code = "123456"

type SentOTP struct {
	Email      string
	CreateUser bool
}

// FakeAuth implements backend.AuthAPI with real signed tokens so that
// AuthClient verification and refresh behave as in production.
type FakeAuth struct {
	Tokens    *backend.Tokens
	AccessTTL time.Duration
	// ConfirmedAt, when set, is the email confirmation time stamped on
	// verified users instead of the current time.
	ConfirmedAt time.Time

	mu         sync.Mutex
	users      map[string]backend.User
	links      map[string]string
	refresh    map[string]backend.User
	sent       []SentOTP
	refreshes  int
	signOuts   int
	SendErr    error
	VerifyErr  error
	RefreshErr error
}

func NewFakeAuth(tokens *backend.Tokens) *FakeAuth {
	return &FakeAuth{
		Tokens:    tokens,
		AccessTTL: time.Hour,
		users:     make(map[string]backend.User),
		links:     make(map[string]string),
		refresh:   make(map[string]backend.User),
	}
}

// AddUser registers an account that may receive codes.
func (f *FakeAuth) AddUser(id, email string, metadata map[string]any) backend.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := backend.User{ID: id, Email: email, Metadata: metadata}
	f.users[email] = u
	return u
}

// AddLink registers an email confirmation token hash for email.
func (f *FakeAuth) AddLink(tokenHash, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[tokenHash] = email
}

// Issue mints a session for u whose access token lives for ttl. A negative
// ttl yields an already expired token.
func (f *FakeAuth) Issue(u backend.User, ttl time.Duration) *backend.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLocked(u, ttl)
}

func (f *FakeAuth) issueLocked(u backend.User, ttl time.Duration) *backend.Session {
	access, exp, err := f.Tokens.Sign(u, ttl)
	if err != nil {
		panic(err)
	}
	rt := uuid.NewString()
	f.refresh[rt] = u
	return &backend.Session{AccessToken: access, RefreshToken: rt, ExpiresAt: exp, User: u}
}

func (f *FakeAuth) SendOTP(_ context.Context, email string, opts backend.OTPOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, SentOTP{Email: email, CreateUser: opts.CreateUser})
	if f.SendErr != nil {
		return f.SendErr
	}
	if _, ok := f.users[email]; !ok && !opts.CreateUser {
		return &backend.Error{Status: http.StatusUnprocessableEntity, Code: "otp_disabled", Message: "Signups not allowed for otp"}
	}
	return nil
}

func (f *FakeAuth) VerifyOTP(_ context.Context, email, code string) (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.VerifyErr != nil {
		return nil, f.VerifyErr
	}
	u, ok := f.users[email]
	if !ok || code != Code {
		return nil, &backend.Error{Status: http.StatusForbidden, Code: "otp_expired", Message: "Token has expired or is invalid"}
	}
	u.EmailConfirmedAt = f.confirmedAt()
	return f.issueLocked(u, f.AccessTTL), nil
}

func (f *FakeAuth) VerifyEmailLink(_ context.Context, tokenHash, _ string) (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.links[tokenHash]
	if !ok {
		return nil, &backend.Error{Status: http.StatusForbidden, Code: "otp_expired", Message: "Email link is invalid or has expired"}
	}
	delete(f.links, tokenHash)
	u := f.users[email]
	u.EmailConfirmedAt = f.confirmedAt()
	return f.issueLocked(u, f.AccessTTL), nil
}

func (f *FakeAuth) confirmedAt() *time.Time {
	at := f.ConfirmedAt
	if at.IsZero() {
		at = time.Now()
	}
	return &at
}

func (f *FakeAuth) Refresh(_ context.Context, refreshToken string) (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	u, ok := f.refresh[refreshToken]
	if !ok {
		return nil, &backend.Error{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
	}
	delete(f.refresh, refreshToken)
	return f.issueLocked(u, f.AccessTTL), nil
}

func (f *FakeAuth) SignOut(_ context.Context, s *backend.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	delete(f.refresh, s.RefreshToken)
	return nil
}

func (f *FakeAuth) Sent() []SentOTP {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentOTP(nil), f.sent...)
}

func (f *FakeAuth) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *FakeAuth) SignOuts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOuts
}
