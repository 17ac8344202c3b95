package email

import (
	"context"
	"errors"

	"portal_insights_backend/platform/config"
	"portal_insights_backend/platform/logger"
)

// ErrNotConfigured is returned by NoopSender so queued email is marked failed
// instead of silently dropped.
var ErrNotConfigured = errors.New("email delivery is not configured")

// LeadMessage is an assistant-composed email to a lead.
type LeadMessage struct {
	ToEmail  string
	LeadName string
	Subject  string
	Body     string
}

type Sender interface {
	SendLeadMessage(ctx context.Context, msg LeadMessage) error
}

type NoopSender struct{}

func (NoopSender) SendLeadMessage(context.Context, LeadMessage) error {
	return ErrNotConfigured
}

// NewSender returns an SMTP sender when SMTP is configured, otherwise a
// NoopSender.
func NewSender(cfg config.SMTPConfig, log *logger.Logger) Sender {
	if !cfg.IsSMTPEnabled() {
		log.Warn("SMTP not configured, queued emails will fail")
		return NoopSender{}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
}
