package gate

import (
	"context"
	"encoding/json"
	"strings"

	"evenup_web/internal/backend"
)

type Step string

const (
	StepEmail Step = "email"
	StepOTP   Step = "otp"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusVerifying Status = "verifying"
	StatusVerified  Status = "verified"
	StatusError     Status = "error"
)

const (
	MsgOTPSent     = "OTP sent. Enter the code from your email."
	MsgOTPVerified = "OTP verified. Checking admin access..."
)

// OTPClient sends and verifies emailed sign-in codes.
type OTPClient interface {
	SignInWithOTP(ctx context.Context, email string, opts backend.OTPOptions) error
	VerifyOTP(ctx context.Context, email, code string) (*backend.Session, error)
}

// SignInFlow is the two-step email code form shown to signed-out users.
type SignInFlow struct {
	Step    Step   `json:"step"`
	Status  Status `json:"status"`
	Email   string `json:"email"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewSignInFlow() *SignInFlow {
	return &SignInFlow{Step: StepEmail, Status: StatusIdle}
}

// Busy reports whether a submission is in flight.
func (f *SignInFlow) Busy() bool {
	return f.Status == StatusSending || f.Status == StatusVerifying
}

func (f *SignInFlow) IsError() bool { return f.Status == StatusError }

// SubmitEmail asks the provider to email a code. Unknown addresses are
// refused by the provider rather than signed up.
func (f *SignInFlow) SubmitEmail(ctx context.Context, c OTPClient, email string) error {
	f.Email = strings.TrimSpace(email)
	f.Status = StatusSending
	f.Message = ""

	if err := c.SignInWithOTP(ctx, f.Email, backend.OTPOptions{CreateUser: false}); err != nil {
		f.Status = StatusError
		f.Message = err.Error()
		return &OTPSendError{Message: err.Error(), Err: err}
	}
	f.Step = StepOTP
	f.Status = StatusSent
	f.Message = MsgOTPSent
	return nil
}

// SubmitCode verifies the code for the remembered email. On success the
// client's session changes and subscribed gates re-resolve.
func (f *SignInFlow) SubmitCode(ctx context.Context, c OTPClient, code string) error {
	f.Code = strings.TrimSpace(code)
	f.Status = StatusVerifying
	f.Message = ""

	if _, err := c.VerifyOTP(ctx, f.Email, f.Code); err != nil {
		f.Status = StatusError
		f.Message = err.Error()
		return &OTPVerifyError{Message: err.Error(), Err: err}
	}
	f.Status = StatusVerified
	f.Message = MsgOTPVerified
	return nil
}

// UseDifferentEmail returns to the email step and forgets the code.
func (f *SignInFlow) UseDifferentEmail() {
	f.Step = StepEmail
	f.Code = ""
	f.Status = StatusIdle
	f.Message = ""
}

const flowKey = "signin.flow"

// LoadSignInFlow restores the flow kept in browser storage, or starts a
// new one.
func LoadSignInFlow(st backend.Storage) *SignInFlow {
	raw, ok := st.Get(flowKey)
	if !ok {
		return NewSignInFlow()
	}
	f := NewSignInFlow()
	if err := json.Unmarshal([]byte(raw), f); err != nil {
		return NewSignInFlow()
	}
	return f
}

// Store writes the flow to browser storage; the caller saves.
func (f *SignInFlow) Store(st backend.Storage) {
	raw, _ := json.Marshal(f)
	st.Set(flowKey, string(raw))
}

// ClearSignInFlow drops any stored flow.
func ClearSignInFlow(st backend.Storage) {
	st.Delete(flowKey)
}
