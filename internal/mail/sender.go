package mail

import (
	"context"
	"fmt"
	"log/slog"
)

// OTPEmail carries a sign-in code.
type OTPEmail struct {
	To           string
	Code         string
	ExpiresInMin int
	AppName      string
}

// Message is a generic plain-text email.
type Message struct {
	To       string
	Subject  string
	TextBody string
}

// Sender delivers portal emails.
type Sender interface {
	SendOTP(ctx context.Context, data OTPEmail) error
	SendEmail(ctx context.Context, msg Message) error
}

// Config selects and configures the sender.
type Config struct {
	Driver   string
	From     string
	Host     string
	Port     int
	Username string
	Password string
}

// New returns the sender named by cfg.Driver. Unknown drivers fall back to
// the console sender.
func New(cfg Config, log *slog.Logger) (Sender, error) {
	switch cfg.Driver {
	case "smtp":
		if cfg.Host == "" {
			return nil, fmt.Errorf("mail: smtp host not set")
		}
		return NewSMTPSender(cfg), nil
	case "noop":
		return NoOpSender{}, nil
	default:
		return NewConsoleSender(log), nil
	}
}

func otpText(data OTPEmail) (subject, body string) {
	app := data.AppName
	if app == "" {
		app = "EvenUp"
	}
	subject = fmt.Sprintf("Your %s sign-in code", app)
	body = fmt.Sprintf("Your %s admin sign-in code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this email.\n",
		app, data.Code, data.ExpiresInMin)
	return subject, body
}

// ConsoleSender logs emails instead of sending them.
type ConsoleSender struct {
	log *slog.Logger
}

func NewConsoleSender(log *slog.Logger) *ConsoleSender {
	if log == nil {
		log = slog.Default()
	}
	return &ConsoleSender{log: log}
}

func (c *ConsoleSender) SendOTP(ctx context.Context, data OTPEmail) error {
	c.log.InfoContext(ctx, "[EMAIL] sign-in code", "to", data.To, "code", data.Code, "expires_in_min", data.ExpiresInMin)
	return nil
}

func (c *ConsoleSender) SendEmail(ctx context.Context, msg Message) error {
	c.log.InfoContext(ctx, "[EMAIL] message", "to", msg.To, "subject", msg.Subject, "body", msg.TextBody)
	return nil
}

// NoOpSender discards emails.
type NoOpSender struct{}

func (NoOpSender) SendOTP(context.Context, OTPEmail) error { return nil }

func (NoOpSender) SendEmail(context.Context, Message) error { return nil }
