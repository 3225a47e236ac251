package localauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evenup_web/internal/backend"
	mailer "evenup_web/internal/mail"
	"evenup_web/internal/models"
)

type memDirectory struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
}

func newDirectory(profiles ...*models.UserProfile) *memDirectory {
	d := &memDirectory{profiles: make(map[string]*models.UserProfile)}
	for _, p := range profiles {
		d.profiles[p.ID] = p
	}
	return d
}

func (d *memDirectory) FindProfileByEmail(_ context.Context, email string) (*models.UserProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.profiles {
		if p.Email != nil && *p.Email == email {
			return p, nil
		}
	}
	return nil, nil
}

func (d *memDirectory) FindProfile(_ context.Context, id string) (*models.UserProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.profiles[id], nil
}

func (d *memDirectory) CreateProfile(_ context.Context, p *models.UserProfile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
	return nil
}

type outbox struct {
	mu   sync.Mutex
	sent []mailer.OTPEmail
}

func (o *outbox) SendOTP(_ context.Context, data mailer.OTPEmail) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, data)
	return nil
}

func (o *outbox) SendEmail(context.Context, mailer.Message) error { return nil }

func (o *outbox) last(t *testing.T) mailer.OTPEmail {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	return o.sent[len(o.sent)-1]
}

func strPtr(s string) *string { return &s }

type fixture struct {
	p      *Provider
	dir    *memDirectory
	box    *outbox
	tokens *backend.Tokens
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codes, err := NewBuntStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = codes.Close() })

	f := &fixture{
		dir:    newDirectory(&models.UserProfile{ID: "u-1", Email: strPtr("ops@evenup.in"), Nickname: strPtr("Ops")}),
		box:    &outbox{},
		tokens: backend.NewTokens("local-secret"),
		clock:  time.Now(),
	}
	f.p = New(f.dir, codes, f.box, f.tokens, DefaultConfig())
	f.p.now = func() time.Time { return f.clock }
	return f
}

func asBackendError(t *testing.T, err error) *backend.Error {
	t.Helper()
	var be *backend.Error
	require.True(t, errors.As(err, &be), "expected backend error, got %v", err)
	return be
}

func TestSendOTP_UnknownEmailWithoutSignup(t *testing.T) {
	f := newFixture(t)
	err := f.p.SendOTP(context.Background(), "stranger@evenup.in", backend.OTPOptions{CreateUser: false})
	assert.Equal(t, "Signups not allowed for otp", asBackendError(t, err).Message)
	assert.Empty(t, f.box.sent)
}

func TestSendOTP_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	err := f.p.SendOTP(context.Background(), "not-an-email", backend.OTPOptions{})
	assert.Equal(t, "validation_failed", asBackendError(t, err).Code)
}

func TestOTP_RoundTripIssuesVerifiableSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.p.SendOTP(ctx, " OPS@evenup.in ", backend.OTPOptions{}))

	mail := f.box.last(t)
	assert.Equal(t, "ops@evenup.in", mail.To)
	assert.Len(t, mail.Code, 6)
	assert.Equal(t, 10, mail.ExpiresInMin)

	s, err := f.p.VerifyOTP(ctx, "ops@evenup.in", mail.Code)
	require.NoError(t, err)
	assert.Equal(t, "u-1", s.User.ID)
	assert.NotNil(t, s.User.EmailConfirmedAt)
	assert.Equal(t, "Ops", s.User.DisplayName())

	claims, err := f.tokens.Parse(s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)

	_, err = f.p.VerifyOTP(ctx, "ops@evenup.in", mail.Code)
	assert.Equal(t, "Token has expired or is invalid", asBackendError(t, err).Message, "codes are single use")
}

func TestVerifyOTP_LocksAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.p.SendOTP(ctx, "ops@evenup.in", backend.OTPOptions{}))
	code := f.box.last(t).Code
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < DefaultConfig().MaxAttempts; i++ {
		_, err := f.p.VerifyOTP(ctx, "ops@evenup.in", wrong)
		require.Error(t, err)
	}
	_, err := f.p.VerifyOTP(ctx, "ops@evenup.in", code)
	assert.Error(t, err)
}

func TestVerifyOTP_ConcurrentGuessesShareTheCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.p.SendOTP(ctx, "ops@evenup.in", backend.OTPOptions{}))
	code := f.box.last(t).Code
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.p.VerifyOTP(ctx, "ops@evenup.in", wrong)
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	_, err := f.p.VerifyOTP(ctx, "ops@evenup.in", code)
	assert.Equal(t, "Token has expired or is invalid", asBackendError(t, err).Message)
	assert.Empty(t, f.p.locks)
}

func TestVerifyOTP_ExpiredCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.p.SendOTP(ctx, "ops@evenup.in", backend.OTPOptions{}))
	code := f.box.last(t).Code

	f.clock = f.clock.Add(11 * time.Minute)
	_, err := f.p.VerifyOTP(ctx, "ops@evenup.in", code)
	assert.Equal(t, "otp_expired", asBackendError(t, err).Code)
}

func TestSendOTP_RateLimitedPerAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.p.SendOTP(ctx, "ops@evenup.in", backend.OTPOptions{}))

	err := f.p.SendOTP(ctx, "ops@evenup.in", backend.OTPOptions{})
	be := asBackendError(t, err)
	assert.Equal(t, 429, be.Status)
	assert.Contains(t, be.Message, "60 seconds")

	f.clock = f.clock.Add(61 * time.Second)
	assert.NoError(t, f.p.SendOTP(ctx, "ops@evenup.in", backend.OTPOptions{}))
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.p.SendOTP(ctx, "ops@evenup.in", backend.OTPOptions{}))
	s, err := f.p.VerifyOTP(ctx, "ops@evenup.in", f.box.last(t).Code)
	require.NoError(t, err)

	next, err := f.p.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.RefreshToken, next.RefreshToken)

	_, err = f.p.Refresh(ctx, s.RefreshToken)
	assert.Equal(t, "refresh_token_not_found", asBackendError(t, err).Code)

	require.NoError(t, f.p.SignOut(ctx, next))
	_, err = f.p.Refresh(ctx, next.RefreshToken)
	assert.Error(t, err)
}

func TestSendOTP_CreateUserAddsInvitedProfile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.p.SendOTP(context.Background(), "new@evenup.in", backend.OTPOptions{CreateUser: true}))
	p, err := f.dir.FindProfileByEmail(context.Background(), "new@evenup.in")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "invited", *p.Status)
}

func TestOpenCodeStore(t *testing.T) {
	s, err := OpenCodeStore("memory")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", "v", time.Minute))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = OpenCodeStore("etcd:whatever")
	assert.Error(t, err)
}
