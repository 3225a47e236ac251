package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

const sessionKey = "auth.session"

// ClientFactory builds AuthClients for individual browser sessions. All
// clients share one provider, token verifier and event hub.
type ClientFactory struct {
	api    AuthAPI
	tokens *Tokens
	hub    *Hub
}

func NewClientFactory(api AuthAPI, tokens *Tokens, hub *Hub) *ClientFactory {
	return &ClientFactory{api: api, tokens: tokens, hub: hub}
}

func (f *ClientFactory) Client(storage Storage) *AuthClient {
	return &AuthClient{api: f.api, tokens: f.tokens, hub: f.hub, storage: storage}
}

func (f *ClientFactory) Hub() *Hub { return f.hub }

// AuthClient is the auth view of one browser: it persists the session in
// Storage, refreshes expired access tokens and publishes auth events.
type AuthClient struct {
	api     AuthAPI
	tokens  *Tokens
	hub     *Hub
	storage Storage
}

// GetSession returns the stored session, or nil when signed out. An
// expired access token is refreshed once; a failed refresh clears the
// stored session and returns the provider error.
func (c *AuthClient) GetSession(ctx context.Context) (*Session, error) {
	raw, ok := c.storage.Get(sessionKey)
	if !ok || raw == "" {
		return nil, nil
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		c.clear()
		return nil, fmt.Errorf("stored session is unreadable: %w", err)
	}

	_, err := c.tokens.Parse(s.AccessToken)
	switch {
	case err == nil:
		return &s, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return c.refresh(ctx, &s)
	default:
		c.clear()
		return nil, err
	}
}

func (c *AuthClient) refresh(ctx context.Context, s *Session) (*Session, error) {
	if s.RefreshToken == "" {
		c.clear()
		return nil, nil
	}
	next, err := c.api.Refresh(ctx, s.RefreshToken)
	if err != nil {
		c.clear()
		c.hub.Publish(c.storage.Key(), EventSignedOut, nil)
		return nil, err
	}
	if err := c.store(next); err != nil {
		return nil, err
	}
	c.hub.Publish(c.storage.Key(), EventTokenRefreshed, next)
	return next, nil
}

// OnAuthStateChange subscribes to auth events for this browser.
func (c *AuthClient) OnAuthStateChange(fn Handler) Subscription {
	return c.hub.Subscribe(c.storage.Key(), fn)
}

func (c *AuthClient) SignInWithOTP(ctx context.Context, email string, opts OTPOptions) error {
	return c.api.SendOTP(ctx, email, opts)
}

// VerifyOTP exchanges an emailed code for a session and signs the browser in.
func (c *AuthClient) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	s, err := c.api.VerifyOTP(ctx, email, code)
	if err != nil {
		return nil, err
	}
	return s, c.signIn(s)
}

// VerifyEmailLink completes an email-confirmation link and signs the
// browser in with the resulting session.
func (c *AuthClient) VerifyEmailLink(ctx context.Context, tokenHash, linkType string) (*Session, error) {
	s, err := c.api.VerifyEmailLink(ctx, tokenHash, linkType)
	if err != nil {
		return nil, err
	}
	return s, c.signIn(s)
}

// SetSession persists a session obtained elsewhere.
func (c *AuthClient) SetSession(s *Session) error {
	return c.signIn(s)
}

func (c *AuthClient) signIn(s *Session) error {
	if err := c.store(s); err != nil {
		return err
	}
	c.hub.Publish(c.storage.Key(), EventSignedIn, s)
	return nil
}

// SignOut revokes the session with the provider and always clears it
// locally. The provider error, if any, is returned after the local clear.
func (c *AuthClient) SignOut(ctx context.Context) error {
	var apiErr error
	if raw, ok := c.storage.Get(sessionKey); ok && raw != "" {
		var s Session
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			apiErr = c.api.SignOut(ctx, &s)
		}
	}
	if err := c.clear(); err != nil {
		return err
	}
	c.hub.Publish(c.storage.Key(), EventSignedOut, nil)
	return apiErr
}

func (c *AuthClient) store(s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	c.storage.Set(sessionKey, string(raw))
	return c.storage.Save()
}

func (c *AuthClient) clear() error {
	c.storage.Delete(sessionKey)
	return c.storage.Save()
}
