package adapters

import (
	"context"

	"portal_insights_backend/internal/assistant/ports"
	insightsdomain "portal_insights_backend/internal/insights/domain"
	insightssvc "portal_insights_backend/internal/insights/service"

	"github.com/google/uuid"
)

type SnapshotGetter interface {
	GetSnapshot(ctx context.Context, req insightssvc.SnapshotRequest) (insightsdomain.Snapshot, error)
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

// AssistantSnapshotProvider serves the assistant from the shared snapshot
// cache with the default window.
type AssistantSnapshotProvider struct {
	snapshots SnapshotGetter
}

func NewAssistantSnapshotProvider(snapshots SnapshotGetter) *AssistantSnapshotProvider {
	return &AssistantSnapshotProvider{snapshots: snapshots}
}

func (a *AssistantSnapshotProvider) Snapshot(ctx context.Context, accountID uuid.UUID, orgScope *uuid.UUID) (insightsdomain.Snapshot, error) {
	return a.snapshots.GetSnapshot(ctx, insightssvc.SnapshotRequest{
		AccountID:  accountID,
		OrgScope:   orgScope,
		WindowDays: insightssvc.DefaultWindowDays,
	})
}

func (a *AssistantSnapshotProvider) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	return a.snapshots.Invalidate(ctx, accountID)
}

var (
	_ ports.SnapshotProvider    = (*AssistantSnapshotProvider)(nil)
	_ ports.SnapshotInvalidator = (*AssistantSnapshotProvider)(nil)
)
