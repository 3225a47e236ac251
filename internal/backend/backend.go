// Package backend holds the identity types and capabilities the portal
// needs from its auth provider, plus the per-browser client built on them.
package backend

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrUnsupported  = errors.New("backend: operation not supported by provider")
	ErrInvalidToken = errors.New("backend: invalid access token")
)

// User is the identity attached to a session.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	Metadata         map[string]any `json:"user_metadata,omitempty"`
}

// DisplayName is the metadata nickname, then name, then full_name, then
// "Admin User".
func (u User) DisplayName() string {
	for _, key := range []string{"nickname", "name", "full_name"} {
		if v, ok := u.Metadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "Admin User"
}

// Contact is the email, or the user id when there is none.
func (u User) Contact() string {
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// Session is an authenticated identity plus its tokens.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

type OTPOptions struct {
	CreateUser bool
}

// AuthAPI is the provider surface: passwordless email codes, email-link
// verification, token refresh and sign-out.
type AuthAPI interface {
	SendOTP(ctx context.Context, email string, opts OTPOptions) error
	VerifyOTP(ctx context.Context, email, code string) (*Session, error)
	VerifyEmailLink(ctx context.Context, tokenHash, linkType string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, s *Session) error
}

// Error is a failure reported by the provider. Message is shown to the
// user unchanged.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }
