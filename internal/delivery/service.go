// Package delivery sends messages queued by the assistant's send_message tool
// and records the outcome on the outbox row.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"portal_insights_backend/internal/email"
	"portal_insights_backend/internal/insights/repository"
	"portal_insights_backend/internal/whatsapp"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/logger"

	"github.com/google/uuid"
)

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

type Outbox interface {
	GetOutboundMessage(ctx context.Context, accountID, messageID uuid.UUID) (repository.OutboundMessage, error)
	MarkMessageSent(ctx context.Context, accountID, messageID uuid.UUID) error
	MarkMessageFailed(ctx context.Context, accountID, messageID uuid.UUID, reason string) error
}

type WhatsAppSender interface {
	SendMessage(ctx context.Context, phoneNumber string, message string) error
}

type Service struct {
	outbox   Outbox
	mail     email.Sender
	whatsapp WhatsAppSender
	log      *logger.Logger
}

func New(outbox Outbox, mail email.Sender, wa WhatsAppSender, log *logger.Logger) *Service {
	return &Service{outbox: outbox, mail: mail, whatsapp: wa, log: log}
}

// Deliver sends one queued message. Messages that already left the queued
// state are skipped. The row is marked failed on a permanent error, or on any
// error when lastAttempt is set; otherwise the error is returned for retry.
func (s *Service) Deliver(ctx context.Context, accountID, messageID uuid.UUID, lastAttempt bool) error {
	msg, err := s.outbox.GetOutboundMessage(ctx, accountID, messageID)
	if apperr.Is(err, apperr.KindNotFound) {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	if err != nil {
		return fmt.Errorf("load outbound message: %w", err)
	}
	if msg.Status != repository.MessageQueued {
		s.log.Debug("outbound message already handled", "message_id", messageID, "status", msg.Status)
		return nil
	}

	sendErr := s.send(ctx, msg)
	if sendErr == nil {
		if err := s.outbox.MarkMessageSent(ctx, accountID, messageID); err != nil {
			// The message is out; a retry would send it twice.
			s.log.Error("outbound message sent but not marked", "message_id", messageID, "error", err)
		}
		s.log.Info("outbound message delivered", "message_id", messageID, "channel", msg.Channel)
		return nil
	}

	permanent := isPermanent(sendErr)
	if !permanent && !lastAttempt {
		return fmt.Errorf("deliver %s message: %w", msg.Channel, sendErr)
	}
	if err := s.outbox.MarkMessageFailed(ctx, accountID, messageID, sendErr.Error()); err != nil {
		s.log.Error("failed to mark outbound message failed", "message_id", messageID, "error", err)
	}
	s.log.Warn("outbound message failed", "message_id", messageID, "channel", msg.Channel, "error", sendErr)
	return fmt.Errorf("%w: %w", ErrPermanent, sendErr)
}

func (s *Service) send(ctx context.Context, msg repository.OutboundMessage) error {
	switch msg.Channel {
	case repository.ChannelEmail:
		return s.mail.SendLeadMessage(ctx, email.LeadMessage{
			ToEmail:  msg.Recipient,
			LeadName: msg.LeadName,
			Subject:  msg.Subject,
			Body:     msg.Content,
		})
	case repository.ChannelWhatsApp:
		return s.whatsapp.SendMessage(ctx, msg.Recipient, msg.Content)
	default:
		return fmt.Errorf("%w: unsupported channel %q", ErrPermanent, msg.Channel)
	}
}

func isPermanent(err error) bool {
	if errors.Is(err, ErrPermanent) ||
		errors.Is(err, email.ErrNotConfigured) ||
		errors.Is(err, whatsapp.ErrNotConfigured) ||
		errors.Is(err, whatsapp.ErrInvalidPhone) {
		return true
	}
	var statusErr *whatsapp.StatusError
	return errors.As(err, &statusErr) && statusErr.Permanent()
}
