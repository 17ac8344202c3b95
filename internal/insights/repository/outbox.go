package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Message channels.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// Outbound message states.
const (
	MessageQueued = "queued"
	MessageSent   = "sent"
	MessageFailed = "failed"
)

type QueueMessageParams struct {
	AccountID uuid.UUID
	OrgScope  *uuid.UUID
	LeadID    uuid.UUID
	Channel   string
	Subject   string
	Content   string
}

type OutboundMessage struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	LeadID    uuid.UUID
	LeadKind  domain.LeadKind
	LeadName  string
	Channel   string
	Recipient string
	Subject   string
	Content   string
	Status    string
	LastError string
	CreatedAt time.Time
	SentAt    *time.Time
}

const insertOutboundMessageQuery = `
	INSERT INTO outbound_messages (id, account_id, lead_id, lead_kind, lead_name, channel, recipient, subject, content, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, 'queued')
	RETURNING created_at`

// QueueMessage resolves the lead's address for the channel and stores the
// message for asynchronous delivery.
func (r *Repository) QueueMessage(ctx context.Context, params QueueMessageParams) (OutboundMessage, error) {
	lead, err := r.FindLeadContact(ctx, domain.Scope{AccountID: params.AccountID, OrgScope: params.OrgScope}, params.LeadID)
	if err != nil {
		return OutboundMessage{}, err
	}

	var recipient string
	switch params.Channel {
	case ChannelEmail:
		recipient = strings.TrimSpace(lead.Email)
	case ChannelWhatsApp:
		if phone.IsDialable(lead.Phone) {
			recipient = phone.NormalizeE164(lead.Phone)
		}
	default:
		return OutboundMessage{}, apperr.Validation(fmt.Sprintf("unsupported channel %q", params.Channel))
	}
	if recipient == "" {
		return OutboundMessage{}, apperr.Validation(fmt.Sprintf("lead %s has no %s address", lead.Name, params.Channel))
	}

	msg := OutboundMessage{
		ID:        uuid.New(),
		AccountID: params.AccountID,
		LeadID:    lead.ID,
		LeadKind:  lead.Kind,
		LeadName:  lead.Name,
		Channel:   params.Channel,
		Recipient: recipient,
		Subject:   params.Subject,
		Content:   params.Content,
		Status:    MessageQueued,
	}
	err = r.pool.QueryRow(ctx, insertOutboundMessageQuery,
		msg.ID, msg.AccountID, msg.LeadID, string(msg.LeadKind), msg.LeadName, msg.Channel, msg.Recipient, msg.Subject, msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return OutboundMessage{}, fmt.Errorf("insert outbound message: %w", err)
	}
	return msg, nil
}

const getOutboundMessageQuery = `
	SELECT id, account_id, lead_id, lead_kind, lead_name, channel, recipient, COALESCE(subject, ''), content, status,
		COALESCE(last_error, ''), created_at, sent_at
	FROM outbound_messages
	WHERE id = $1 AND account_id = $2`

func (r *Repository) GetOutboundMessage(ctx context.Context, accountID, messageID uuid.UUID) (OutboundMessage, error) {
	var m OutboundMessage
	var kind string
	err := r.pool.QueryRow(ctx, getOutboundMessageQuery, messageID, accountID).Scan(
		&m.ID, &m.AccountID, &m.LeadID, &kind, &m.LeadName, &m.Channel, &m.Recipient, &m.Subject, &m.Content, &m.Status,
		&m.LastError, &m.CreatedAt, &m.SentAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutboundMessage{}, apperr.NotFound("outbound message not found")
	}
	if err != nil {
		return OutboundMessage{}, err
	}
	m.LeadKind = domain.LeadKind(kind)
	return m, nil
}

const markMessageEnqueuedQuery = `
	UPDATE outbound_messages SET enqueued_at = now()
	WHERE id = $1 AND account_id = $2 AND status = 'queued'`

// MarkMessageEnqueued records that a delivery task exists for the message.
func (r *Repository) MarkMessageEnqueued(ctx context.Context, accountID, messageID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, markMessageEnqueuedQuery, messageID, accountID)
	return err
}

// QueuedRef identifies an outbox row awaiting a delivery task.
type QueuedRef struct {
	ID        uuid.UUID
	AccountID uuid.UUID
}

// Rows still queued whose task was never enqueued, or was enqueued so long ago
// that it must have been lost. Claiming stamps enqueued_at so concurrent
// sweepers skip them.
const claimStrandedMessagesQuery = `
	UPDATE outbound_messages m SET enqueued_at = now()
	FROM (
		SELECT id FROM outbound_messages
		WHERE status = 'queued'
			AND created_at < now() - make_interval(secs => $1)
			AND (enqueued_at IS NULL OR enqueued_at < now() - make_interval(secs => $2))
		ORDER BY created_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	) stranded
	WHERE m.id = stranded.id
	RETURNING m.id, m.account_id`

// ClaimStrandedMessages returns queued messages older than grace that have no
// live delivery task. A task counts as lost after requeueAfter.
func (r *Repository) ClaimStrandedMessages(ctx context.Context, grace, requeueAfter time.Duration, limit int) ([]QueuedRef, error) {
	rows, err := r.pool.Query(ctx, claimStrandedMessagesQuery, grace.Seconds(), requeueAfter.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("claim stranded messages: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (QueuedRef, error) {
		var ref QueuedRef
		err := row.Scan(&ref.ID, &ref.AccountID)
		return ref, err
	})
}

const markMessageSentQuery = `
	UPDATE outbound_messages SET status = 'sent', sent_at = now(), last_error = NULL
	WHERE id = $1 AND account_id = $2 AND status = 'queued'`

const markMessageFailedQuery = `
	UPDATE outbound_messages SET status = 'failed', last_error = $3
	WHERE id = $1 AND account_id = $2 AND status = 'queued'`

func (r *Repository) MarkMessageSent(ctx context.Context, accountID, messageID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, markMessageSentQuery, messageID, accountID)
	return err
}

func (r *Repository) MarkMessageFailed(ctx context.Context, accountID, messageID uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, markMessageFailedQuery, messageID, accountID, reason)
	return err
}
