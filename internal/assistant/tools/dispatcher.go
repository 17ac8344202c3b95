// Package tools is the closed set of side-effecting operations the assistant
// may run on behalf of an account.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portal_insights_backend/internal/assistant/domain"
	"portal_insights_backend/internal/assistant/ports"
	"portal_insights_backend/internal/events"
	insightsdomain "portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/logger"
	"portal_insights_backend/platform/validator"

	"github.com/google/uuid"
)

// Error codes reported in ToolResult.Error.
const (
	ErrCodeUnknownTool     = "unknown_tool"
	ErrCodeInvalidParams   = "invalid_params"
	ErrCodeNotFound        = "not_found"
	ErrCodeExecutionFailed = "execution_failed"
)

const defaultListLimit = 10

// Dispatcher validates and runs tool calls. It never returns an error: every
// failure becomes an unsuccessful ToolResult.
type Dispatcher struct {
	records     ports.RecordWriter
	snapshots   ports.SnapshotProvider
	invalidator ports.SnapshotInvalidator
	delivery    ports.MessageDelivery
	bus         events.Publisher
	val         *validator.Validator
	baseURL     string
	log         *logger.Logger
}

func NewDispatcher(records ports.RecordWriter, snapshots ports.SnapshotProvider, bus events.Publisher, val *validator.Validator, baseURL string, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		records:   records,
		snapshots: snapshots,
		bus:       bus,
		val:       val,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       log,
	}
}

// SetMessageDelivery enables background delivery for send_message. Without
// it messages stay queued in the outbox.
func (d *Dispatcher) SetMessageDelivery(delivery ports.MessageDelivery) {
	d.delivery = delivery
}

// SetSnapshotInvalidator makes every successful write drop the account's
// cached snapshots before Execute returns, so later calls in the same batch
// read fresh data.
func (d *Dispatcher) SetSnapshotInvalidator(invalidator ports.SnapshotInvalidator) {
	d.invalidator = invalidator
}

// ExecuteAll runs calls one after another, in order. A failed call does not
// stop the rest.
func (d *Dispatcher) ExecuteAll(ctx context.Context, scope insightsdomain.Scope, calls []domain.ToolCall) []domain.ToolResult {
	results := make([]domain.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, d.Execute(ctx, scope, call))
	}
	return results
}

// Execute runs one call.
func (d *Dispatcher) Execute(ctx context.Context, scope insightsdomain.Scope, call domain.ToolCall) domain.ToolResult {
	result := d.execute(ctx, scope, call)
	d.log.WithContext(ctx).ToolExecuted(scope.AccountID.String(), call.Name, result.Success, result.Message)
	return result
}

func (d *Dispatcher) execute(ctx context.Context, scope insightsdomain.Scope, call domain.ToolCall) domain.ToolResult {
	inv, err := Parse(call.Name, call.Args)
	if err != nil {
		var unknown *UnknownToolError
		if errors.As(err, &unknown) {
			return failure(call.Name, fmt.Sprintf("Unknown tool %q. Available tools: %s.", call.Name, strings.Join(names(), ", ")), ErrCodeUnknownTool)
		}
		return failure(call.Name, err.Error(), ErrCodeInvalidParams)
	}
	if err := d.val.Struct(inv); err != nil {
		return failure(call.Name, "Invalid parameters: "+validator.Describe(err), ErrCodeInvalidParams)
	}

	out, err := inv.invoke(ctx, d, scope)
	if err != nil {
		return d.failureFor(ctx, call.Name, err)
	}

	if out.changed {
		if d.invalidator != nil {
			if err := d.invalidator.Invalidate(ctx, scope.AccountID); err != nil {
				d.log.WithContext(ctx).Warn("snapshot invalidation failed", "tool", call.Name, "error", err)
			}
		}
		var entityID *uuid.UUID
		if id, err := uuid.Parse(out.entityID); err == nil {
			entityID = &id
		}
		d.bus.Publish(ctx, events.NewAssistantActionExecuted(scope.AccountID, scope.OrgScope, call.Name, string(out.entityType), entityID))
	}
	return domain.ToolResult{Tool: call.Name, Success: true, Message: out.message, Data: out.data}
}

func (d *Dispatcher) failureFor(ctx context.Context, tool string, err error) domain.ToolResult {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperr.KindNotFound:
			return failure(tool, "The record was not found or does not belong to this account.", ErrCodeNotFound)
		case apperr.KindValidation, apperr.KindBadRequest:
			return failure(tool, appErr.Message, ErrCodeInvalidParams)
		}
	}
	d.log.WithContext(ctx).Error("tool execution failed", "tool", tool, "error", err)
	return failure(tool, "The action could not be completed. Please try again later.", ErrCodeExecutionFailed)
}

func failure(tool, message, code string) domain.ToolResult {
	return domain.ToolResult{Tool: tool, Success: false, Message: message, Error: code}
}

func names() []string {
	out := make([]string, 0, len(catalog))
	for _, spec := range catalog {
		out = append(out, spec.name)
	}
	return out
}

// -----------------------------------------------------------------------------
// Operations
// -----------------------------------------------------------------------------

func (p *ListDataParams) invoke(ctx context.Context, d *Dispatcher, scope insightsdomain.Scope) (outcome, error) {
	snap, err := d.snapshots.Snapshot(ctx, scope.AccountID, scope.OrgScope)
	if err != nil {
		return outcome{}, err
	}
	limit := p.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	switch p.Domain {
	case "leads":
		s := snap.Leads.Stats
		return outcome{
			message: fmt.Sprintf("%d leads: %d hot, %d need follow-up, %d new this week.", s.Total, s.Hot, s.Stale, s.NewThisWeek),
			data:    map[string]any{"stats": s, "staleList": head(snap.Leads.StaleList, limit), "recentActivity": head(snap.Leads.RecentActivity, limit)},
		}, nil
	case "campaigns":
		s := snap.Campaigns.Stats
		return outcome{
			message: fmt.Sprintf("%d campaigns (%d active), %d issues found.", s.Total, s.Active, len(snap.Campaigns.Issues)),
			data:    map[string]any{"stats": s, "issues": head(snap.Campaigns.Issues, limit), "topPerformers": head(snap.Campaigns.TopPerformers, limit)},
		}, nil
	case "properties":
		s := snap.Properties.Stats
		return outcome{
			message: fmt.Sprintf("%d properties: %d active, %d stale, %d incomplete.", s.Total, s.Active, s.Stale, s.IncompleteCount),
			data:    map[string]any{"stats": s, "staleList": head(snap.Properties.StaleList, limit), "recentActivity": head(snap.Properties.RecentActivity, limit)},
		}, nil
	case "connections":
		s := snap.Connections.Stats
		return outcome{
			message: fmt.Sprintf("%d connections, %d with errors.", s.Total, s.Errored),
			data:    map[string]any{"stats": s, "issues": head(snap.Connections.Issues, limit)},
		}, nil
	case "tasks":
		s := snap.Tasks.Stats
		return outcome{
			message: fmt.Sprintf("%d open tasks, %d overdue, %d due today.", s.Open, s.Overdue, s.DueToday),
			data:    map[string]any{"stats": s, "overdueList": head(snap.Tasks.OverdueList, limit)},
		}, nil
	default:
		recs := head(snap.Recommendations, limit)
		return outcome{
			message: fmt.Sprintf("%d recommendations.", len(recs)),
			data:    map[string]any{"recommendations": recs},
		}, nil
	}
}

func (p *CreateTaskParams) invoke(ctx context.Context, d *Dispatcher, scope insightsdomain.Scope) (outcome, error) {
	task := ports.NewTask{
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	if p.DueDate != "" {
		due, err := parseDueDate(p.DueDate)
		if err != nil {
			return outcome{}, err
		}
		task.DueAt = &due
	}
	if p.LeadID != "" {
		leadID := uuid.MustParse(p.LeadID)
		task.LeadID = &leadID
	}

	created, err := d.records.CreateTask(ctx, scope, task)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		message:    fmt.Sprintf("Created task %q.", created.Title),
		data:       created,
		changed:    true,
		entityType: insightsdomain.EntityTask,
		entityID:   created.ID.String(),
	}, nil
}

func parseDueDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Validation("dueDate must be YYYY-MM-DD or an RFC 3339 timestamp")
}

func (p *UpdateLeadStatusParams) invoke(ctx context.Context, d *Dispatcher, scope insightsdomain.Scope) (outcome, error) {
	change, err := d.records.UpdateLeadStatus(ctx, scope, uuid.MustParse(p.LeadID), p.Status)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		message:    fmt.Sprintf("Moved %s from %s to %s.", change.Name, change.Previous, change.Current),
		data:       change,
		changed:    change.Previous != change.Current,
		entityType: insightsdomain.EntityLead,
		entityID:   change.EntityID.String(),
	}, nil
}

func (p *PauseCampaignParams) invoke(ctx context.Context, d *Dispatcher, scope insightsdomain.Scope) (outcome, error) {
	return d.setCampaignStatus(ctx, scope, p.CampaignID, "PAUSED")
}

func (p *ResumeCampaignParams) invoke(ctx context.Context, d *Dispatcher, scope insightsdomain.Scope) (outcome, error) {
	return d.setCampaignStatus(ctx, scope, p.CampaignID, "ACTIVE")
}

func (d *Dispatcher) setCampaignStatus(ctx context.Context, scope insightsdomain.Scope, campaignID, status string) (outcome, error) {
	change, err := d.records.SetCampaignStatus(ctx, scope, uuid.MustParse(campaignID), status)
	if err != nil {
		return outcome{}, err
	}

	verb := "Paused"
	if status == "ACTIVE" {
		verb = "Resumed"
	}
	message := fmt.Sprintf("%s campaign %s.", verb, change.Name)
	if change.Previous == change.Current {
		message = fmt.Sprintf("Campaign %s is already %s.", change.Name, strings.ToLower(change.Current))
	}
	return outcome{
		message:    message,
		data:       change,
		changed:    change.Previous != change.Current,
		entityType: insightsdomain.EntityCampaign,
		entityID:   change.EntityID.String(),
	}, nil
}

func (p *SendMessageParams) invoke(ctx context.Context, d *Dispatcher, scope insightsdomain.Scope) (outcome, error) {
	queued, err := d.records.QueueMessage(ctx, scope, ports.OutboundMessage{
		LeadID:  uuid.MustParse(p.LeadID),
		Channel: p.Channel,
		Subject: p.Subject,
		Content: p.Content,
	})
	if err != nil {
		return outcome{}, err
	}

	message := fmt.Sprintf("Queued a %s message to %s.", queued.Channel, queued.LeadName)
	if d.delivery != nil {
		if err := d.delivery.EnqueueDelivery(ctx, scope.AccountID, queued.ID); err != nil {
			d.log.WithContext(ctx).Warn("message delivery enqueue failed", "message_id", queued.ID, "error", err)
			message = fmt.Sprintf("Saved a %s message to %s; delivery will be retried.", queued.Channel, queued.LeadName)
		}
	}
	return outcome{
		message:    message,
		data:       queued,
		changed:    true,
		entityType: insightsdomain.EntityLead,
		entityID:   p.LeadID,
	}, nil
}

var entityPaths = map[insightsdomain.EntityType]string{
	insightsdomain.EntityLead:       "leads",
	insightsdomain.EntityCampaign:   "campaigns",
	insightsdomain.EntityProperty:   "properties",
	insightsdomain.EntityConnection: "settings/connections",
	insightsdomain.EntityTask:       "tasks",
}

func (p *OpenEntityParams) invoke(ctx context.Context, d *Dispatcher, scope insightsdomain.Scope) (outcome, error) {
	entityType := insightsdomain.EntityType(p.EntityType)
	label, err := d.records.FindEntity(ctx, scope, p.EntityType, uuid.MustParse(p.EntityID))
	if err != nil {
		return outcome{}, err
	}

	url := fmt.Sprintf("%s/%s/%s", d.baseURL, entityPaths[entityType], label.ID)
	return outcome{
		message: fmt.Sprintf("Open %s: %s", label.Label, url),
		data: map[string]any{
			"entityType": label.Type,
			"entityId":   label.ID,
			"label":      label.Label,
			"url":        url,
		},
	}, nil
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
