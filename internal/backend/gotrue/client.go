// Package gotrue talks to the hosted GoTrue auth REST API.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"evenup_web/internal/backend"
)

// Client implements backend.AuthAPI over HTTP.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the project at baseURL, e.g.
// https://<ref>.supabase.co, authenticating with the anon key.
func New(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type otpRequest struct {
	Email      string `json:"email"`
	CreateUser bool   `json:"create_user"`
}

type verifyRequest struct {
	Type      string `json:"type"`
	Email     string `json:"email,omitempty"`
	Token     string `json:"token,omitempty"`
	TokenHash string `json:"token_hash,omitempty"`
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID               string         `json:"id"`
		Email            string         `json:"email"`
		EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
		UserMetadata     map[string]any `json:"user_metadata"`
	} `json:"user"`
}

func (c *Client) SendOTP(ctx context.Context, email string, opts backend.OTPOptions) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/otp", "", otpRequest{Email: email, CreateUser: opts.CreateUser}, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*backend.Session, error) {
	return c.session(ctx, "/auth/v1/verify", verifyRequest{Type: "email", Email: email, Token: code})
}

func (c *Client) VerifyEmailLink(ctx context.Context, tokenHash, linkType string) (*backend.Session, error) {
	if linkType == "" {
		linkType = "email"
	}
	return c.session(ctx, "/auth/v1/verify", verifyRequest{Type: linkType, TokenHash: tokenHash})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	return c.session(ctx, "/auth/v1/token?grant_type=refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) SignOut(ctx context.Context, s *backend.Session) error {
	if s == nil || s.AccessToken == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", s.AccessToken, nil, nil)
}

func (c *Client) session(ctx context.Context, path string, body any) (*backend.Session, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &backend.Error{Status: http.StatusBadGateway, Message: "auth service returned no session"}
	}
	expires := time.Unix(resp.ExpiresAt, 0)
	if resp.ExpiresAt == 0 {
		expires = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return &backend.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expires,
		User: backend.User{
			ID:               resp.User.ID,
			Email:            resp.User.Email,
			EmailConfirmedAt: resp.User.EmailConfirmedAt,
			Metadata:         resp.User.UserMetadata,
		},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gotrue: encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("gotrue: build request: %w", err)
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("gotrue: read response: %w", err)
	}
	if res.StatusCode >= 400 {
		return decodeError(res.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("gotrue: decode response: %w", err)
	}
	return nil
}

// decodeError reads the error shapes GoTrue has used across versions.
func decodeError(status int, data []byte) error {
	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
		ErrorCode        string `json:"error_code"`
	}
	_ = json.Unmarshal(data, &body)

	e := &backend.Error{Status: status, Code: body.ErrorCode}
	if e.Code == "" {
		e.Code = body.Error
	}
	switch {
	case body.Msg != "":
		e.Message = body.Msg
	case body.ErrorDescription != "":
		e.Message = body.ErrorDescription
	case body.Message != "":
		e.Message = body.Message
	default:
		e.Message = http.StatusText(status)
	}
	return e
}
