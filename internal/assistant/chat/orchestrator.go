// Package chat runs conversational turns: it admits the request, loads the
// account snapshot, prompts the model, executes requested tools and shapes
// the reply. Every failure after admission degrades to a fallback reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portal_insights_backend/internal/assistant/domain"
	"portal_insights_backend/internal/assistant/ports"
	"portal_insights_backend/internal/assistant/ratelimit"
	"portal_insights_backend/internal/assistant/session"
	"portal_insights_backend/internal/assistant/tools"
	insightsdomain "portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/platform/ai/openaicompat"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/logger"

	"github.com/google/uuid"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// DefaultModelTimeout bounds a single model call.
const DefaultModelTimeout = 30 * time.Second

// State is a step of a conversational turn. Fallback is reachable from every
// state after RateChecked.
type State string

const (
	StateIdle          State = "idle"
	StateRateChecked   State = "rate_checked"
	StateSnapshotReady State = "snapshot_ready"
	StatePromptBuilt   State = "prompt_built"
	StateModelCalled   State = "model_called"
	StateToolsParsed   State = "tools_parsed"
	StateToolsExecuted State = "tools_executed"
	StateResponded     State = "responded"
	StateFallback      State = "fallback"
)

var errEmptyResponse = errors.New("model returned no message")

// ToolExecutor runs parsed tool calls in order.
type ToolExecutor interface {
	ExecuteAll(ctx context.Context, scope insightsdomain.Scope, calls []domain.ToolCall) []domain.ToolResult
}

type WelcomeRequest struct {
	AccountID uuid.UUID
	OrgScope  *uuid.UUID
	SessionID string
	Language  string
}

type ChatRequest struct {
	AccountID uuid.UUID
	OrgScope  *uuid.UUID
	SessionID string
	Message   string
	Language  string
}

type Orchestrator struct {
	limiter      ratelimit.Limiter
	sessions     *session.Store
	snapshots    ports.SnapshotProvider
	executor     ToolExecutor
	llm          model.LLM
	catalog      *Catalog
	modelTimeout time.Duration
	now          func() time.Time
	log          *logger.Logger
}

func New(limiter ratelimit.Limiter, sessions *session.Store, snapshots ports.SnapshotProvider, executor ToolExecutor, llm model.LLM, catalog *Catalog, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		limiter:      limiter,
		sessions:     sessions,
		snapshots:    snapshots,
		executor:     executor,
		llm:          llm,
		catalog:      catalog,
		modelTimeout: DefaultModelTimeout,
		now:          time.Now,
		log:          log,
	}
}

// WithModelTimeout overrides DefaultModelTimeout.
func (o *Orchestrator) WithModelTimeout(d time.Duration) *Orchestrator {
	if d > 0 {
		o.modelTimeout = d
	}
	return o
}

// WithClock replaces the time source used for message timestamps and durations.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// turn carries one request through the state machine.
type turn struct {
	state     State
	start     time.Time
	scope     insightsdomain.Scope
	language  string
	loc       Locale
	sessionID string
	snapshot  *insightsdomain.Snapshot
	userMsg   *domain.Message
}

// Welcome generates the opening message of a session. The greeting is stored
// as the session's first assistant message.
func (o *Orchestrator) Welcome(ctx context.Context, req WelcomeRequest) (domain.Reply, error) {
	t, err := o.begin(ctx, req.AccountID, req.OrgScope)
	if err != nil {
		return domain.Reply{}, err
	}

	snap, err := o.snapshots.Snapshot(ctx, req.AccountID, req.OrgScope)
	if err != nil {
		o.resolveLanguage(t, req.Language, "")
		t.sessionID = o.sessions.GetOrCreate(req.AccountID, req.SessionID, t.language).ID
		return o.fallback(ctx, t, "fallback_welcome", err), nil
	}
	t.snapshot = &snap
	t.state = StateSnapshotReady
	o.resolveLanguage(t, req.Language, snap.Meta.Language)
	t.sessionID = o.sessions.GetOrCreate(req.AccountID, req.SessionID, t.language).ID

	llmReq := o.buildRequest(snap, t.loc, []*genai.Content{genai.NewContentFromText(welcomePrompt(snap, t.loc), genai.RoleUser)})
	t.state = StatePromptBuilt

	return o.complete(ctx, t, llmReq, "fallback_welcome"), nil
}

// Chat answers one user message within a session.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (domain.Reply, error) {
	t, err := o.begin(ctx, req.AccountID, req.OrgScope)
	if err != nil {
		return domain.Reply{}, err
	}
	user := o.message(domain.RoleUser, strings.TrimSpace(req.Message))
	t.userMsg = &user

	snap, err := o.snapshots.Snapshot(ctx, req.AccountID, req.OrgScope)
	if err != nil {
		o.resolveLanguage(t, req.Language, "")
		t.sessionID = o.sessions.GetOrCreate(req.AccountID, req.SessionID, t.language).ID
		return o.fallback(ctx, t, "fallback_chat", err), nil
	}
	t.snapshot = &snap
	t.state = StateSnapshotReady
	o.resolveLanguage(t, req.Language, snap.Meta.Language)

	sess := o.sessions.GetOrCreate(req.AccountID, req.SessionID, t.language)
	t.sessionID = sess.ID

	llmReq := o.buildRequest(snap, t.loc, chatContents(sess.Messages, user.Content))
	t.state = StatePromptBuilt

	return o.complete(ctx, t, llmReq, "fallback_chat"), nil
}

// begin runs the rate check. It is the only step whose failure reaches the
// caller as an error.
func (o *Orchestrator) begin(ctx context.Context, accountID uuid.UUID, orgScope *uuid.UUID) (*turn, error) {
	t := &turn{
		state: StateIdle,
		start: o.now(),
		scope: insightsdomain.Scope{AccountID: accountID, OrgScope: orgScope},
	}

	decision, err := o.limiter.Admit(ctx, accountID)
	if err != nil {
		// Fail open: a limiter store outage admits the request.
		o.log.WithContext(ctx).Warn("rate limiter unavailable, admitting request", "account_id", accountID, "error", err)
	} else if !decision.Allowed {
		o.log.WithContext(ctx).RateLimitExceeded(accountID.String(), "assistant")
		return nil, apperr.RateLimited("too many assistant requests, please wait", decision.RetryAfter)
	}
	t.state = StateRateChecked
	return t, nil
}

func (o *Orchestrator) resolveLanguage(t *turn, requested, accountDefault string) {
	t.language = o.catalog.Match(requested, accountDefault)
	t.loc = o.catalog.Locale(t.language)
}

func (o *Orchestrator) buildRequest(snap insightsdomain.Snapshot, loc Locale, contents []*genai.Content) *model.LLMRequest {
	return &model.LLMRequest{
		Model:    o.llm.Name(),
		Contents: contents,
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(systemPrompt(snap, loc))}},
			Tools:             []*genai.Tool{{FunctionDeclarations: tools.Declarations()}},
		},
	}
}

// complete runs the model and tool steps and assembles the reply.
func (o *Orchestrator) complete(ctx context.Context, t *turn, llmReq *model.LLMRequest, fallbackKey string) domain.Reply {
	resp, err := o.callModel(ctx, llmReq)
	if err != nil {
		return o.fallback(ctx, t, fallbackKey, err)
	}
	t.state = StateModelCalled

	text, calls, dropped := o.parseResponse(ctx, t, resp)
	t.state = StateToolsParsed
	if text == "" && len(calls) == 0 && dropped == 0 {
		return o.fallback(ctx, t, fallbackKey, errEmptyResponse)
	}

	var results []domain.ToolResult
	if len(calls) > 0 {
		results = o.executor.ExecuteAll(ctx, t.scope, calls)
	}
	t.state = StateToolsExecuted

	if text == "" {
		text = toolSummary(t.loc, results)
	}

	meta := domain.Metadata{
		Model:      o.llm.Name(),
		DurationMs: o.now().Sub(t.start).Milliseconds(),
	}
	if resp.UsageMetadata != nil {
		meta.Tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	reply := domain.Reply{
		SessionID:   t.sessionID,
		Message:     text,
		ToolCalls:   calls,
		ToolResults: results,
		Suggestions: Suggestions(*t.snapshot, t.loc),
		Language:    t.language,
		Metadata:    meta,
	}
	assistant := o.message(domain.RoleAssistant, text)
	assistant.ToolCalls = calls
	assistant.ToolResults = results
	assistant.Metadata = &meta
	o.record(ctx, t, assistant)

	t.state = StateResponded
	return reply
}

// callModel enforces the timeout even against a model that ignores its
// context.
func (o *Orchestrator) callModel(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.modelTimeout)
	defer cancel()

	type result struct {
		resp *model.LLMResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var out result
		for resp, err := range o.llm.GenerateContent(ctx, req, false) {
			if err != nil {
				out = result{err: err}
				break
			}
			if resp != nil {
				out.resp = resp
			}
		}
		done <- out
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("model call: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("model call: %w", out.err)
		}
		if out.resp == nil || out.resp.Content == nil {
			return nil, errEmptyResponse
		}
		return out.resp, nil
	}
}

// parseResponse splits the model output into text and tool calls. Calls whose
// arguments could not be decoded are logged and dropped.
func (o *Orchestrator) parseResponse(ctx context.Context, t *turn, resp *model.LLMResponse) (string, []domain.ToolCall, int) {
	var texts []string
	var calls []domain.ToolCall
	dropped := 0
	for _, part := range resp.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			texts = append(texts, part.Text)
		}
		fc := part.FunctionCall
		if fc == nil {
			continue
		}
		if _, malformed := fc.Args[openaicompat.RawArgsKey]; malformed || fc.Name == "" {
			o.log.WithContext(ctx).Warn("dropping unparseable tool call", "account_id", t.scope.AccountID, "tool", fc.Name)
			dropped++
			continue
		}
		calls = append(calls, domain.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
	}

	text := strings.TrimSpace(strings.Join(texts, "\n"))
	if text == "" && len(calls) == 0 && dropped > 0 {
		text = t.loc.Text("tool_call_unreadable")
	}
	return text, calls, dropped
}

func toolSummary(loc Locale, results []domain.ToolResult) string {
	lines := []string{loc.Text("tools_done")}
	for _, r := range results {
		lines = append(lines, "- "+r.Message)
	}
	return strings.Join(lines, "\n")
}

// fallback is the terminal state for every failure after admission.
func (o *Orchestrator) fallback(ctx context.Context, t *turn, key string, cause error) domain.Reply {
	failedAt := t.state
	t.state = StateFallback
	if t.loc.Lang == "" {
		o.resolveLanguage(t, "", "")
	}
	o.log.WithContext(ctx).ModelFallback(t.scope.AccountID.String(), string(failedAt), cause)

	meta := domain.Metadata{
		Tokens:     0,
		Model:      domain.FallbackModel,
		DurationMs: o.now().Sub(t.start).Milliseconds(),
	}
	reply := domain.Reply{
		SessionID: t.sessionID,
		Message:   t.loc.Text(key),
		Language:  t.language,
		Metadata:  meta,
	}
	if t.snapshot != nil {
		reply.Suggestions = Suggestions(*t.snapshot, t.loc)
	}

	assistant := o.message(domain.RoleAssistant, reply.Message)
	assistant.Metadata = &meta
	o.record(ctx, t, assistant)
	return reply
}

// record appends the turn's messages: the user message first when there is
// one, then the assistant message.
func (o *Orchestrator) record(ctx context.Context, t *turn, assistant domain.Message) {
	if t.sessionID == "" {
		return
	}
	msgs := []domain.Message{assistant}
	if t.userMsg != nil {
		msgs = []domain.Message{*t.userMsg, assistant}
	}
	if err := o.sessions.Append(t.sessionID, msgs...); err != nil {
		o.log.WithContext(ctx).Warn("session append failed", "session_id", t.sessionID, "error", err)
	}
}

func (o *Orchestrator) message(role domain.Role, content string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: o.now(),
	}
}
