package adapters

import (
	"context"
	"sync"
	"testing"
	"time"

	assistantdomain "portal_insights_backend/internal/assistant/domain"
	"portal_insights_backend/internal/assistant/tools"
	"portal_insights_backend/internal/events"
	"portal_insights_backend/internal/insights/cache"
	insightsdomain "portal_insights_backend/internal/insights/domain"
	insightsrepo "portal_insights_backend/internal/insights/repository"
	insightssvc "portal_insights_backend/internal/insights/service"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/logger"
	"portal_insights_backend/platform/validator"

	"github.com/google/uuid"
)

// campaignBook is a tiny record store that serves both the read gateway and
// the write side, so writes show up in the next snapshot build.
type campaignBook struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]insightsdomain.Campaign
}

func (b *campaignBook) ListEcommerceLeads(context.Context, insightsdomain.Scope, int) ([]insightsdomain.EcommerceLead, error) {
	return nil, nil
}

func (b *campaignBook) ListRealEstateLeads(context.Context, insightsdomain.Scope, int) ([]insightsdomain.RealEstateLead, error) {
	return nil, nil
}

func (b *campaignBook) ListCampaigns(context.Context, insightsdomain.Scope) ([]insightsdomain.Campaign, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]insightsdomain.Campaign, 0, len(b.campaigns))
	for _, c := range b.campaigns {
		out = append(out, c)
	}
	return out, nil
}

func (b *campaignBook) ListInsights(context.Context, insightsdomain.Scope, int) ([]insightsdomain.Insight, error) {
	return nil, nil
}

func (b *campaignBook) ListProperties(context.Context, insightsdomain.Scope) ([]insightsdomain.Property, error) {
	return nil, nil
}

func (b *campaignBook) ListConnections(context.Context, insightsdomain.Scope) ([]insightsdomain.Connection, error) {
	return nil, nil
}

func (b *campaignBook) ListTasks(context.Context, insightsdomain.Scope) ([]insightsdomain.Task, error) {
	return nil, nil
}

func (b *campaignBook) GetAccountProfile(_ context.Context, accountID uuid.UUID) (insightsdomain.AccountProfile, error) {
	return insightsdomain.AccountProfile{AccountID: accountID}, nil
}

func (b *campaignBook) CreateTask(context.Context, insightsrepo.CreateTaskParams) (insightsdomain.Task, error) {
	return insightsdomain.Task{}, apperr.NotFound("record not found")
}

func (b *campaignBook) UpdateLeadStatus(context.Context, insightsdomain.Scope, uuid.UUID, string) (insightsrepo.LeadStatusChange, error) {
	return insightsrepo.LeadStatusChange{}, apperr.NotFound("record not found")
}

func (b *campaignBook) SetCampaignStatus(_ context.Context, _ insightsdomain.Scope, campaignID uuid.UUID, status string) (insightsrepo.CampaignStatusChange, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.campaigns[campaignID]
	if !ok {
		return insightsrepo.CampaignStatusChange{}, apperr.NotFound("record not found")
	}
	prev := c.Status
	c.Status = status
	b.campaigns[campaignID] = c
	return insightsrepo.CampaignStatusChange{CampaignID: campaignID, Name: c.Name, PreviousStatus: prev, Status: status}, nil
}

func (b *campaignBook) QueueMessage(context.Context, insightsrepo.QueueMessageParams) (insightsrepo.OutboundMessage, error) {
	return insightsrepo.OutboundMessage{}, apperr.NotFound("record not found")
}

func (b *campaignBook) FindEntityForDeepLink(context.Context, insightsdomain.Scope, insightsdomain.EntityType, uuid.UUID) (insightsrepo.EntityLabel, error) {
	return insightsrepo.EntityLabel{}, apperr.NotFound("record not found")
}

func TestListDataAfterWriteInSameBatchSeesTheWrite(t *testing.T) {
	campaign := uuid.New()
	book := &campaignBook{campaigns: map[uuid.UUID]insightsdomain.Campaign{
		campaign: {ID: campaign, Name: "Spring sale", Platform: "meta", Status: "ACTIVE"},
	}}
	svc := insightssvc.New(book, cache.NewMemory(time.Hour), 0, logger.Discard())
	provider := NewAssistantSnapshotProvider(svc)

	// The event subscriber that would invalidate asynchronously is held back
	// until the batch is done.
	bus := events.NewInMemoryBus(logger.Discard())
	release := make(chan struct{})
	bus.Subscribe(events.AssistantActionExecuted{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		<-release
		return svc.Invalidate(ctx, e.(events.AssistantActionExecuted).AccountID)
	}))
	defer bus.Wait()
	defer close(release)

	dispatcher := tools.NewDispatcher(NewAssistantRecordWriter(book), provider, bus, validator.New(), "https://app.example.com", logger.Discard())
	dispatcher.SetSnapshotInvalidator(provider)

	scope := insightsdomain.Scope{AccountID: uuid.New()}
	ctx := context.Background()
	warm, err := provider.Snapshot(ctx, scope.AccountID, nil)
	if err != nil {
		t.Fatalf("warm snapshot: %v", err)
	}
	if warm.Campaigns.Stats.Active != 1 {
		t.Fatalf("expected one active campaign before the batch, got %+v", warm.Campaigns.Stats)
	}

	results := dispatcher.ExecuteAll(ctx, scope, []assistantdomain.ToolCall{
		{Name: tools.ToolPauseCampaign, Args: map[string]any{"campaignId": campaign.String()}},
		{Name: tools.ToolListData, Args: map[string]any{"domain": "campaigns"}},
	})
	if len(results) != 2 || !results[0].Success || !results[1].Success {
		t.Fatalf("unexpected results %+v", results)
	}

	data, ok := results[1].Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected list_data payload %T", results[1].Data)
	}
	stats, ok := data["stats"].(insightsdomain.CampaignStats)
	if !ok {
		t.Fatalf("unexpected stats payload %T", data["stats"])
	}
	if stats.Active != 0 || stats.Paused != 1 {
		t.Fatalf("list_data read a stale snapshot: %+v", stats)
	}
}
