package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"portal_insights_backend/internal/assistant/domain"
	"portal_insights_backend/internal/assistant/ratelimit"
	"portal_insights_backend/internal/assistant/session"
	"portal_insights_backend/internal/insights/cache"
	insightsdomain "portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/internal/insights/service"
	"portal_insights_backend/platform/ai/openaicompat"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/goleak"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.Add(-time.Duration(n) * 24 * time.Hour)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

// fakeLLM answers every request with respond and keeps the requests.
type fakeLLM struct {
	mu       sync.Mutex
	requests []*model.LLMRequest
	respond  func(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error)
}

func (f *fakeLLM) Name() string { return "fake-model" }

func (f *fakeLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		yield(f.respond(ctx, req))
	}
}

func (f *fakeLLM) lastRequest(t *testing.T) *model.LLMRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("model was not called")
	}
	return f.requests[len(f.requests)-1]
}

func textResponse(text string, tokens int32) func(context.Context, *model.LLMRequest) (*model.LLMResponse, error) {
	return func(context.Context, *model.LLMRequest) (*model.LLMResponse, error) {
		return &model.LLMResponse{
			Content:       genai.NewContentFromText(text, genai.RoleModel),
			UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: tokens},
		}, nil
	}
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls []domain.ToolCall
}

func (f *fakeExecutor) ExecuteAll(_ context.Context, _ insightsdomain.Scope, calls []domain.ToolCall) []domain.ToolResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, calls...)
	out := make([]domain.ToolResult, 0, len(calls))
	for _, c := range calls {
		out = append(out, domain.ToolResult{Tool: c.Name, Success: true, Message: "did " + c.Name})
	}
	return out
}

type staticSnapshots struct {
	snapshot insightsdomain.Snapshot
	err      error
}

func (s *staticSnapshots) Snapshot(context.Context, uuid.UUID, *uuid.UUID) (insightsdomain.Snapshot, error) {
	return s.snapshot, s.err
}

// serviceSnapshots feeds the orchestrator from the real aggregator.
type serviceSnapshots struct {
	svc *service.Service
}

func (s serviceSnapshots) Snapshot(ctx context.Context, accountID uuid.UUID, orgScope *uuid.UUID) (insightsdomain.Snapshot, error) {
	return s.svc.GetSnapshot(ctx, service.SnapshotRequest{AccountID: accountID, OrgScope: orgScope})
}

// scenarioGateway is an account with four stale leads (one HOT), an active
// campaign that spent $80 in the last week without converting, a connection
// failing for five days and five overdue tasks.
type scenarioGateway struct {
	campaignID uuid.UUID
}

func (g scenarioGateway) ListEcommerceLeads(context.Context, insightsdomain.Scope, int) ([]insightsdomain.EcommerceLead, error) {
	return []insightsdomain.EcommerceLead{
		{ID: uuid.New(), FullName: "Hot Harriet", Temperature: "HOT", FunnelStage: "NEW", CreatedAt: daysAgo(6)},
		{ID: uuid.New(), FullName: "Warm Walter", Temperature: "WARM", FunnelStage: "CONTACTED", CreatedAt: daysAgo(20), LastContactedAt: ptrTime(daysAgo(9))},
	}, nil
}

func (g scenarioGateway) ListRealEstateLeads(context.Context, insightsdomain.Scope, int) ([]insightsdomain.RealEstateLead, error) {
	return []insightsdomain.RealEstateLead{
		{ID: uuid.New(), ContactName: "Cold Carla", Status: "NEW", Score: "COLD", CreatedAt: daysAgo(12)},
		{ID: uuid.New(), ContactName: "Cold Cees", Status: "VIEWING", Score: "COLD", CreatedAt: daysAgo(30), LastInteractionAt: ptrTime(daysAgo(5))},
	}, nil
}

func (g scenarioGateway) ListCampaigns(context.Context, insightsdomain.Scope) ([]insightsdomain.Campaign, error) {
	return []insightsdomain.Campaign{
		{ID: g.campaignID, ExternalID: "ext-1", Name: "Spring open house", Platform: "meta", Status: "ACTIVE", LastSyncedAt: ptrTime(daysAgo(1))},
	}, nil
}

func (g scenarioGateway) ListInsights(context.Context, insightsdomain.Scope, int) ([]insightsdomain.Insight, error) {
	out := make([]insightsdomain.Insight, 0, 4)
	for i := 1; i <= 4; i++ {
		out = append(out, insightsdomain.Insight{CampaignExternalID: "ext-1", Date: daysAgo(i), Spend: 20, Clicks: 25, Impressions: 1250})
	}
	return out, nil
}

func (g scenarioGateway) ListProperties(context.Context, insightsdomain.Scope) ([]insightsdomain.Property, error) {
	return nil, nil
}

func (g scenarioGateway) ListConnections(context.Context, insightsdomain.Scope) ([]insightsdomain.Connection, error) {
	return []insightsdomain.Connection{
		{ID: uuid.New(), Provider: "meta", Name: "Meta Ads", Status: "ERROR", LastError: "token expired", UpdatedAt: daysAgo(5)},
	}, nil
}

func (g scenarioGateway) ListTasks(context.Context, insightsdomain.Scope) ([]insightsdomain.Task, error) {
	out := make([]insightsdomain.Task, 0, 5)
	for i := 1; i <= 5; i++ {
		out = append(out, insightsdomain.Task{ID: uuid.New(), Title: "Call back", Status: "TODO", Priority: "medium", DueAt: ptrTime(daysAgo(i)), CreatedAt: daysAgo(10)})
	}
	return out, nil
}

func (g scenarioGateway) GetAccountProfile(_ context.Context, accountID uuid.UUID) (insightsdomain.AccountProfile, error) {
	return insightsdomain.AccountProfile{AccountID: accountID, Name: "Acme Realty", Language: "en", Timezone: "Europe/Amsterdam"}, nil
}

type fixture struct {
	orch     *Orchestrator
	llm      *fakeLLM
	executor *fakeExecutor
	sessions *session.Store
}

func newFixture(t *testing.T, snapshots interface {
	Snapshot(context.Context, uuid.UUID, *uuid.UUID) (insightsdomain.Snapshot, error)
}, limiter ratelimit.Limiter) *fixture {
	t.Helper()
	catalog, err := LoadCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if limiter == nil {
		limiter = ratelimit.NewMemory(time.Minute, 100)
	}
	f := &fixture{
		llm:      &fakeLLM{respond: textResponse("Hello!", 42)},
		executor: &fakeExecutor{},
		sessions: session.NewStore(),
	}
	f.orch = New(limiter, f.sessions, snapshots, f.executor, f.llm, catalog, logger.Discard())
	return f
}

func TestWelcomeEndToEndScenario(t *testing.T) {
	campaignID := uuid.New()
	svc := service.New(scenarioGateway{campaignID: campaignID}, cache.NewMemory(10*time.Minute), 0, logger.Discard()).
		WithClock(func() time.Time { return testNow })
	f := newFixture(t, serviceSnapshots{svc: svc}, nil)
	f.llm.respond = textResponse("Welcome back! Harriet is waiting and your Meta connection needs attention.", 120)
	account := uuid.New()

	reply, err := f.orch.Welcome(context.Background(), WelcomeRequest{AccountID: account})
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if strings.TrimSpace(reply.Message) == "" {
		t.Fatal("expected a non-empty welcome message")
	}
	if reply.IsFallback() {
		t.Fatal("expected a model reply, got fallback")
	}
	if reply.Metadata.Tokens != 120 || reply.Metadata.Model != "fake-model" {
		t.Fatalf("unexpected metadata %+v", reply.Metadata)
	}
	if len(reply.Suggestions) == 0 || len(reply.Suggestions) > MaxSuggestions {
		t.Fatalf("expected 1..%d suggestions, got %d", MaxSuggestions, len(reply.Suggestions))
	}

	snap, err := svc.GetSnapshot(context.Background(), service.SnapshotRequest{AccountID: account})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Recommendations) < 3 {
		t.Fatalf("expected at least 3 recommendations, got %d", len(snap.Recommendations))
	}
	want := map[insightsdomain.RecommendationType]insightsdomain.Priority{
		insightsdomain.RecommendFollowUpLead:  insightsdomain.PriorityHigh,
		insightsdomain.RecommendPauseCampaign: insightsdomain.PriorityHigh,
		insightsdomain.RecommendFixConnection: insightsdomain.PriorityHigh,
		insightsdomain.RecommendCreateTask:    insightsdomain.PriorityMedium,
	}
	for typ, prio := range want {
		found := false
		for _, rec := range snap.Recommendations {
			if rec.Type == typ && rec.Priority == prio {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing %s recommendation with priority %s in %+v", typ, prio, snap.Recommendations)
		}
	}

	req := f.llm.lastRequest(t)
	system := req.Config.SystemInstruction.Parts[0].Text
	if !strings.Contains(system, "Hot Harriet") || !strings.Contains(system, "Spring open house") {
		t.Fatalf("system prompt should carry snapshot examples:\n%s", system)
	}
	if len(req.Config.Tools) != 1 || len(req.Config.Tools[0].FunctionDeclarations) == 0 {
		t.Fatal("model must receive the tool schema")
	}
	prompt := req.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "Hot Harriet") {
		t.Fatalf("welcome prompt should name the most urgent stale lead: %s", prompt)
	}

	history := f.sessions.History(reply.SessionID)
	if len(history) != 1 || history[0].Role != domain.RoleAssistant {
		t.Fatalf("expected the greeting stored as first assistant message, got %+v", history)
	}
}

func TestWelcomeSuggestionsFollowReplyLanguage(t *testing.T) {
	svc := service.New(scenarioGateway{campaignID: uuid.New()}, cache.NewMemory(10*time.Minute), 0, logger.Discard()).
		WithClock(func() time.Time { return testNow })
	f := newFixture(t, serviceSnapshots{svc: svc}, nil)
	f.llm.respond = textResponse("¡Bienvenido de nuevo!", 40)
	account := uuid.New()

	reply, err := f.orch.Welcome(context.Background(), WelcomeRequest{AccountID: account, Language: "es"})
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	snap, err := svc.GetSnapshot(context.Background(), service.SnapshotRequest{AccountID: account})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	english := map[string]bool{}
	for _, rec := range snap.Recommendations {
		english[rec.Title] = true
	}
	labels := make([]string, 0, len(reply.Suggestions))
	for _, s := range reply.Suggestions {
		if english[s.Label] || strings.Contains(s.Prompt, "Help me") {
			t.Fatalf("suggestion %+v is not in Spanish", s)
		}
		labels = append(labels, s.Label)
	}
	if len(labels) != MaxSuggestions || labels[2] != "Reconectar Meta Ads" {
		t.Fatalf("expected the connection suggestion in Spanish third, got %q", labels)
	}
}

func TestModelTimeoutFallsBack(t *testing.T) {
	f := newFixture(t, &staticSnapshots{}, nil)
	f.orch.WithModelTimeout(20 * time.Millisecond)
	f.llm.respond = func(ctx context.Context, _ *model.LLMRequest) (*model.LLMResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	reply, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: uuid.New(), Message: "How are my leads?"})
	if err != nil {
		t.Fatalf("a model timeout must not surface as an error: %v", err)
	}
	if reply.Metadata.Model != domain.FallbackModel || reply.Metadata.Tokens != 0 {
		t.Fatalf("expected fallback metadata, got %+v", reply.Metadata)
	}
	if reply.Message == "" {
		t.Fatal("fallback reply must carry a message")
	}
}

func TestModelIgnoringContextStillTimesOut(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	f := newFixture(t, &staticSnapshots{}, nil)
	f.orch.WithModelTimeout(20 * time.Millisecond)
	f.llm.respond = func(context.Context, *model.LLMRequest) (*model.LLMResponse, error) {
		<-release
		return nil, errors.New("too late")
	}

	start := time.Now()
	reply, err := f.orch.Welcome(context.Background(), WelcomeRequest{AccountID: uuid.New()})
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if !reply.IsFallback() {
		t.Fatal("expected fallback")
	}
	if time.Since(start) > time.Second {
		t.Fatal("turn should end at the timeout")
	}
}

func TestModelErrorAndEmptyReplyFallBack(t *testing.T) {
	cases := map[string]func(context.Context, *model.LLMRequest) (*model.LLMResponse, error){
		"error": func(context.Context, *model.LLMRequest) (*model.LLMResponse, error) {
			return nil, errors.New("provider returned 500")
		},
		"nil content": func(context.Context, *model.LLMRequest) (*model.LLMResponse, error) {
			return &model.LLMResponse{}, nil
		},
		"blank text": textResponse("   ", 3),
	}
	for name, respond := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, &staticSnapshots{}, nil)
			f.llm.respond = respond

			reply, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: uuid.New(), Message: "hi"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reply.IsFallback() || reply.Metadata.Tokens != 0 {
				t.Fatalf("expected fallback, got %+v", reply.Metadata)
			}
		})
	}
}

func TestSnapshotFailureFallsBackInRequestedLanguage(t *testing.T) {
	f := newFixture(t, &staticSnapshots{err: apperr.Unavailable("failed to load account records", errors.New("db down"))}, nil)

	reply, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: uuid.New(), Message: "hola", Language: "es-MX"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.IsFallback() {
		t.Fatal("expected fallback")
	}
	if reply.Language != "es" || !strings.HasPrefix(reply.Message, "Lo siento") {
		t.Fatalf("expected Spanish fallback, got %q (%s)", reply.Message, reply.Language)
	}
	if len(f.llm.requests) != 0 {
		t.Fatal("model must not be called without a snapshot")
	}
}

func TestRateLimitedTurnIsAnError(t *testing.T) {
	f := newFixture(t, &staticSnapshots{}, ratelimit.NewMemory(time.Minute, 1))
	account := uuid.New()

	if _, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: account, Message: "one"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: account, Message: "two"})
	if !apperr.Is(err, apperr.KindRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.RetryAfter <= 0 {
		t.Fatal("rate limit error must carry the wait time")
	}
	if len(f.llm.requests) != 1 {
		t.Fatal("rejected turns must stop before the model")
	}
}

func TestChatAppendsUserAndAssistantMessages(t *testing.T) {
	f := newFixture(t, &staticSnapshots{}, nil)
	account := uuid.New()

	first, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: account, Message: "first"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	second, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: account, SessionID: first.SessionID, Message: "second"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatal("expected the session to continue")
	}

	history := f.sessions.History(first.SessionID)
	roles := make([]domain.Role, 0, len(history))
	for _, m := range history {
		roles = append(roles, m.Role)
	}
	want := []domain.Role{domain.RoleUser, domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant}
	if len(roles) != len(want) {
		t.Fatalf("expected %v, got %v", want, roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, roles)
		}
	}
	if history[3].Metadata == nil || history[3].Metadata.Tokens != 42 {
		t.Fatal("assistant message must carry metadata")
	}

	contents := f.llm.lastRequest(t).Contents
	if len(contents) != 3 || contents[2].Parts[0].Text != "second" {
		t.Fatalf("expected history plus new message, got %d contents", len(contents))
	}
}

func TestChatPromptKeepsLastEightMessages(t *testing.T) {
	f := newFixture(t, &staticSnapshots{}, nil)
	account := uuid.New()
	sess := f.sessions.GetOrCreate(account, "", "en")
	for i := 0; i < 12; i++ {
		_ = f.sessions.Append(sess.ID, domain.Message{Role: domain.RoleUser, Content: "old"})
	}

	if _, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: account, SessionID: sess.ID, Message: "new"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got := len(f.llm.lastRequest(t).Contents); got != historyWindow+1 {
		t.Fatalf("expected %d contents, got %d", historyWindow+1, got)
	}
}

func TestToolCallsAreExecutedAndMalformedOnesDropped(t *testing.T) {
	f := newFixture(t, &staticSnapshots{}, nil)
	f.llm.respond = func(context.Context, *model.LLMRequest) (*model.LLMResponse, error) {
		return &model.LLMResponse{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{Name: "create_task", Args: map[string]any{"title": "Call Ada"}}},
			{FunctionCall: &genai.FunctionCall{Name: "pause_campaign", Args: map[string]any{openaicompat.RawArgsKey: "{campaignId:"}}},
		}}}, nil
	}

	reply, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: uuid.New(), Message: "remind me to call Ada"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.IsFallback() {
		t.Fatal("a malformed tool call must not fail the turn")
	}
	if len(f.executor.calls) != 1 || f.executor.calls[0].Name != "create_task" {
		t.Fatalf("expected only the valid call executed, got %+v", f.executor.calls)
	}
	if len(reply.ToolResults) != 1 || !reply.ToolResults[0].Success {
		t.Fatalf("unexpected results %+v", reply.ToolResults)
	}
	if !strings.Contains(reply.Message, "did create_task") {
		t.Fatalf("expected tool summary as message, got %q", reply.Message)
	}
}

func TestOnlyMalformedToolCallStillAnswers(t *testing.T) {
	f := newFixture(t, &staticSnapshots{}, nil)
	f.llm.respond = func(context.Context, *model.LLMRequest) (*model.LLMResponse, error) {
		return &model.LLMResponse{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{Name: "create_task", Args: map[string]any{openaicompat.RawArgsKey: "nope"}}},
		}}}, nil
	}

	reply, err := f.orch.Chat(context.Background(), ChatRequest{AccountID: uuid.New(), Message: "do it"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply.IsFallback() || reply.Message == "" {
		t.Fatalf("expected a degraded model reply, got %+v", reply)
	}
	if len(f.executor.calls) != 0 {
		t.Fatal("nothing should run")
	}
}
