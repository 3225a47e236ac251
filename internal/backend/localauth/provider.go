// Package localauth is an in-process identity provider for development
// and self-hosted deployments. Accounts are user_profiles rows; codes are
// emailed and kept hashed in a CodeStore.
package localauth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"evenup_web/internal/backend"
	mailer "evenup_web/internal/mail"
	"evenup_web/internal/models"
)

// Directory looks up and creates the accounts codes are sent to.
type Directory interface {
	FindProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	FindProfile(ctx context.Context, id string) (*models.UserProfile, error)
	CreateProfile(ctx context.Context, p *models.UserProfile) error
}

type Config struct {
	CodeTTL      time.Duration
	MaxAttempts  int
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SendInterval time.Duration // minimum gap between codes to one address
	AppName      string
}

func DefaultConfig() Config {
	return Config{
		CodeTTL:      10 * time.Minute,
		MaxAttempts:  5,
		AccessTTL:    time.Hour,
		RefreshTTL:   30 * 24 * time.Hour,
		SendInterval: 60 * time.Second,
		AppName:      "EvenUp",
	}
}

var (
	errSignupsDisabled = &backend.Error{Status: http.StatusUnprocessableEntity, Code: "otp_disabled", Message: "Signups not allowed for otp"}
	errInvalidCode     = &backend.Error{Status: http.StatusForbidden, Code: "otp_expired", Message: "Token has expired or is invalid"}
	errBadRefresh      = &backend.Error{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
)

type codeRecord struct {
	Hash      string    `json:"hash"`
	UserID    string    `json:"user_id"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Provider struct {
	dir    Directory
	codes  CodeStore
	sender mailer.Sender
	tokens *backend.Tokens
	cfg    Config
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	locks    map[string]*emailLock
}

// emailLock serializes reads and writes of one address's code record.
type emailLock struct {
	sync.Mutex
	refs int
}

func New(dir Directory, codes CodeStore, sender mailer.Sender, tokens *backend.Tokens, cfg Config) *Provider {
	return &Provider{
		dir:      dir,
		codes:    codes,
		sender:   sender,
		tokens:   tokens,
		cfg:      cfg,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
		locks:    make(map[string]*emailLock),
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &backend.Error{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unable to validate email address: invalid format"}
	}
	return email, nil
}

func (p *Provider) allow(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[email]
	if !ok {
		l = rate.NewLimiter(rate.Every(p.cfg.SendInterval), 1)
		p.limiters[email] = l
	}
	return l.AllowN(p.now(), 1)
}

func (p *Provider) lock(email string) (unlock func()) {
	p.mu.Lock()
	l, ok := p.locks[email]
	if !ok {
		l = &emailLock{}
		p.locks[email] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(p.locks, email)
		}
		p.mu.Unlock()
	}
}

func (p *Provider) SendOTP(ctx context.Context, email string, opts backend.OTPOptions) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	profile, err := p.dir.FindProfileByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("localauth: lookup account: %w", err)
	}
	if profile == nil {
		if !opts.CreateUser {
			return errSignupsDisabled
		}
		status := string(models.UserInvited)
		profile = &models.UserProfile{ID: uuid.NewString(), Email: &email, Status: &status}
		if err := p.dir.CreateProfile(ctx, profile); err != nil {
			return fmt.Errorf("localauth: create account: %w", err)
		}
	}
	if !p.allow(email) {
		return &backend.Error{
			Status:  http.StatusTooManyRequests,
			Code:    "over_email_send_rate_limit",
			Message: fmt.Sprintf("For security purposes, you can only request this after %d seconds.", int(p.cfg.SendInterval.Seconds())),
		}
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("localauth: hash code: %w", err)
	}
	rec := codeRecord{Hash: string(hash), UserID: profile.ID, ExpiresAt: p.now().Add(p.cfg.CodeTTL)}
	unlock := p.lock(email)
	err = p.putCode(ctx, email, rec)
	unlock()
	if err != nil {
		return err
	}
	return p.sender.SendOTP(ctx, mailer.OTPEmail{
		To:           email,
		Code:         code,
		ExpiresInMin: int(p.cfg.CodeTTL.Minutes()),
		AppName:      p.cfg.AppName,
	})
}

func (p *Provider) putCode(ctx context.Context, email string, rec codeRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(p.now())
	if ttl <= 0 {
		return p.codes.Delete(ctx, "otp:"+email)
	}
	return p.codes.Put(ctx, "otp:"+email, string(raw), ttl)
}

func (p *Provider) VerifyOTP(ctx context.Context, email, code string) (*backend.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	unlock := p.lock(email)
	defer unlock()
	raw, err := p.codes.Get(ctx, "otp:"+email)
	if errors.Is(err, ErrNotFound) {
		return nil, errInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("localauth: load code: %w", err)
	}
	var rec codeRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || p.now().After(rec.ExpiresAt) {
		_ = p.codes.Delete(ctx, "otp:"+email)
		return nil, errInvalidCode
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.Hash), []byte(strings.TrimSpace(code))) != nil {
		rec.Attempts++
		if rec.Attempts >= p.cfg.MaxAttempts {
			_ = p.codes.Delete(ctx, "otp:"+email)
		} else if err := p.putCode(ctx, email, rec); err != nil {
			return nil, err
		}
		return nil, errInvalidCode
	}
	if err := p.codes.Delete(ctx, "otp:"+email); err != nil {
		return nil, err
	}

	profile, err := p.dir.FindProfile(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("localauth: load account: %w", err)
	}
	if profile == nil {
		return nil, errInvalidCode
	}
	confirmed := p.now()
	return p.issue(ctx, userFor(profile, &confirmed))
}

// VerifyEmailLink is served by the hosted provider only.
func (p *Provider) VerifyEmailLink(context.Context, string, string) (*backend.Session, error) {
	return nil, backend.ErrUnsupported
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	userID, err := p.codes.Get(ctx, "refresh:"+refreshToken)
	if errors.Is(err, ErrNotFound) {
		return nil, errBadRefresh
	}
	if err != nil {
		return nil, fmt.Errorf("localauth: load refresh token: %w", err)
	}
	if err := p.codes.Delete(ctx, "refresh:"+refreshToken); err != nil {
		return nil, err
	}
	profile, err := p.dir.FindProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("localauth: load account: %w", err)
	}
	if profile == nil {
		return nil, errBadRefresh
	}
	return p.issue(ctx, userFor(profile, profile.EmailVerifiedAt))
}

func (p *Provider) SignOut(ctx context.Context, s *backend.Session) error {
	if s == nil || s.RefreshToken == "" {
		return nil
	}
	return p.codes.Delete(ctx, "refresh:"+s.RefreshToken)
}

func (p *Provider) issue(ctx context.Context, u backend.User) (*backend.Session, error) {
	access, exp, err := p.tokens.Sign(u, p.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	rt := uuid.NewString()
	if err := p.codes.Put(ctx, "refresh:"+rt, u.ID, p.cfg.RefreshTTL); err != nil {
		return nil, fmt.Errorf("localauth: store refresh token: %w", err)
	}
	return &backend.Session{AccessToken: access, RefreshToken: rt, ExpiresAt: exp, User: u}, nil
}

func userFor(p *models.UserProfile, confirmed *time.Time) backend.User {
	u := backend.User{ID: p.ID, EmailConfirmedAt: confirmed}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Nickname != nil && *p.Nickname != "" {
		u.Metadata = map[string]any{"name": *p.Nickname}
	}
	return u
}

// generateCode returns a 6-digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("localauth: generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
