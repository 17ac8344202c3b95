package adapters

import (
	"context"
	"fmt"

	"portal_insights_backend/internal/assistant/ports"
	insightsdomain "portal_insights_backend/internal/insights/domain"
	insightsrepo "portal_insights_backend/internal/insights/repository"
	"portal_insights_backend/platform/apperr"

	"github.com/google/uuid"
)

// InsightsRecordStore is the write side of the insights repository.
type InsightsRecordStore interface {
	CreateTask(ctx context.Context, params insightsrepo.CreateTaskParams) (insightsdomain.Task, error)
	UpdateLeadStatus(ctx context.Context, scope insightsdomain.Scope, leadID uuid.UUID, status string) (insightsrepo.LeadStatusChange, error)
	SetCampaignStatus(ctx context.Context, scope insightsdomain.Scope, campaignID uuid.UUID, status string) (insightsrepo.CampaignStatusChange, error)
	QueueMessage(ctx context.Context, params insightsrepo.QueueMessageParams) (insightsrepo.OutboundMessage, error)
	FindEntityForDeepLink(ctx context.Context, scope insightsdomain.Scope, entityType insightsdomain.EntityType, entityID uuid.UUID) (insightsrepo.EntityLabel, error)
}

// AssistantRecordWriter adapts the insights repository to the assistant's
// RecordWriter port.
type AssistantRecordWriter struct {
	store InsightsRecordStore
}

func NewAssistantRecordWriter(store InsightsRecordStore) *AssistantRecordWriter {
	return &AssistantRecordWriter{store: store}
}

func (a *AssistantRecordWriter) CreateTask(ctx context.Context, scope insightsdomain.Scope, task ports.NewTask) (ports.CreatedTask, error) {
	created, err := a.store.CreateTask(ctx, insightsrepo.CreateTaskParams{
		AccountID:   scope.AccountID,
		OrgScope:    scope.OrgScope,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		DueAt:       task.DueAt,
		LeadID:      task.LeadID,
	})
	if err != nil {
		return ports.CreatedTask{}, err
	}
	return ports.CreatedTask{
		ID:       created.ID,
		Title:    created.Title,
		Priority: created.Priority,
		DueAt:    created.DueAt,
	}, nil
}

func (a *AssistantRecordWriter) UpdateLeadStatus(ctx context.Context, scope insightsdomain.Scope, leadID uuid.UUID, status string) (ports.StatusChange, error) {
	change, err := a.store.UpdateLeadStatus(ctx, scope, leadID, status)
	if err != nil {
		return ports.StatusChange{}, err
	}
	return ports.StatusChange{
		EntityID: change.LeadID,
		Name:     change.Name,
		Previous: change.PreviousStatus,
		Current:  change.Status,
	}, nil
}

func (a *AssistantRecordWriter) SetCampaignStatus(ctx context.Context, scope insightsdomain.Scope, campaignID uuid.UUID, status string) (ports.StatusChange, error) {
	change, err := a.store.SetCampaignStatus(ctx, scope, campaignID, status)
	if err != nil {
		return ports.StatusChange{}, err
	}
	return ports.StatusChange{
		EntityID: change.CampaignID,
		Name:     change.Name,
		Previous: change.PreviousStatus,
		Current:  change.Status,
	}, nil
}

func (a *AssistantRecordWriter) QueueMessage(ctx context.Context, scope insightsdomain.Scope, msg ports.OutboundMessage) (ports.QueuedMessage, error) {
	queued, err := a.store.QueueMessage(ctx, insightsrepo.QueueMessageParams{
		AccountID: scope.AccountID,
		OrgScope:  scope.OrgScope,
		LeadID:    msg.LeadID,
		Channel:   msg.Channel,
		Subject:   msg.Subject,
		Content:   msg.Content,
	})
	if err != nil {
		return ports.QueuedMessage{}, err
	}
	return ports.QueuedMessage{
		ID:        queued.ID,
		LeadName:  queued.LeadName,
		Channel:   queued.Channel,
		Recipient: queued.Recipient,
	}, nil
}

func (a *AssistantRecordWriter) FindEntity(ctx context.Context, scope insightsdomain.Scope, entityType string, entityID uuid.UUID) (ports.EntityLabel, error) {
	kind, ok := entityTypes[entityType]
	if !ok {
		return ports.EntityLabel{}, apperr.Validation(fmt.Sprintf("unsupported entity type %q", entityType))
	}
	label, err := a.store.FindEntityForDeepLink(ctx, scope, kind, entityID)
	if err != nil {
		return ports.EntityLabel{}, err
	}
	return ports.EntityLabel{Type: string(label.Type), ID: label.ID, Label: label.Label}, nil
}

var entityTypes = map[string]insightsdomain.EntityType{
	string(insightsdomain.EntityLead):       insightsdomain.EntityLead,
	string(insightsdomain.EntityCampaign):   insightsdomain.EntityCampaign,
	string(insightsdomain.EntityProperty):   insightsdomain.EntityProperty,
	string(insightsdomain.EntityConnection): insightsdomain.EntityConnection,
	string(insightsdomain.EntityTask):       insightsdomain.EntityTask,
}

var _ ports.RecordWriter = (*AssistantRecordWriter)(nil)
