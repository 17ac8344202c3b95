// Package ports defines the interfaces the assistant needs from other
// bounded contexts. Implementations live in internal/adapters.
package ports

import (
	"context"
	"time"

	insightsdomain "portal_insights_backend/internal/insights/domain"

	"github.com/google/uuid"
)

// SnapshotProvider returns the aggregated account view used for prompts,
// suggestions and list_data.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, accountID uuid.UUID, orgScope *uuid.UUID) (insightsdomain.Snapshot, error)
}

// SnapshotInvalidator drops cached snapshots for an account so the next read
// reflects a write the assistant just made.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

type NewTask struct {
	Title       string
	Description string
	Priority    string
	DueAt       *time.Time
	LeadID      *uuid.UUID
}

type CreatedTask struct {
	ID       uuid.UUID  `json:"id"`
	Title    string     `json:"title"`
	Priority string     `json:"priority"`
	DueAt    *time.Time `json:"dueAt,omitempty"`
}

// StatusChange describes a status transition on a lead or campaign.
type StatusChange struct {
	EntityID uuid.UUID `json:"entityId"`
	Name     string    `json:"name"`
	Previous string    `json:"previousStatus"`
	Current  string    `json:"status"`
}

type OutboundMessage struct {
	LeadID  uuid.UUID
	Channel string
	Subject string
	Content string
}

type QueuedMessage struct {
	ID        uuid.UUID `json:"id"`
	LeadName  string    `json:"leadName"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
}

type EntityLabel struct {
	Type  string    `json:"entityType"`
	ID    uuid.UUID `json:"entityId"`
	Label string    `json:"label"`
}

// RecordWriter is the write side of the record store. Every method must
// check that the target belongs to the scope's account and, when the scope
// names an organization, to that organization. Anything else is reported as
// an apperr.NotFound error.
type RecordWriter interface {
	CreateTask(ctx context.Context, scope insightsdomain.Scope, task NewTask) (CreatedTask, error)
	UpdateLeadStatus(ctx context.Context, scope insightsdomain.Scope, leadID uuid.UUID, status string) (StatusChange, error)
	SetCampaignStatus(ctx context.Context, scope insightsdomain.Scope, campaignID uuid.UUID, status string) (StatusChange, error)
	QueueMessage(ctx context.Context, scope insightsdomain.Scope, msg OutboundMessage) (QueuedMessage, error)
	FindEntity(ctx context.Context, scope insightsdomain.Scope, entityType string, entityID uuid.UUID) (EntityLabel, error)
}

// MessageDelivery hands a queued message to the background worker.
type MessageDelivery interface {
	EnqueueDelivery(ctx context.Context, accountID, messageID uuid.UUID) error
}
