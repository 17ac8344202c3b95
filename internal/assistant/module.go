// Package assistant is the conversational bounded context: rate limiting,
// sessions, the turn orchestrator and the tool dispatcher.
package assistant

import (
	"fmt"
	"time"

	"portal_insights_backend/internal/assistant/chat"
	"portal_insights_backend/internal/assistant/handler"
	"portal_insights_backend/internal/assistant/ports"
	"portal_insights_backend/internal/assistant/ratelimit"
	"portal_insights_backend/internal/assistant/session"
	"portal_insights_backend/internal/assistant/tools"
	"portal_insights_backend/internal/events"
	apphttp "portal_insights_backend/internal/http"
	"portal_insights_backend/platform/config"
	"portal_insights_backend/platform/logger"
	"portal_insights_backend/platform/validator"

	"google.golang.org/adk/model"
)

// Deps are the collaborators the composition root constructs once.
type Deps struct {
	Limiter      ratelimit.Limiter
	Sessions     *session.Store
	Snapshots    ports.SnapshotProvider
	Invalidator  ports.SnapshotInvalidator
	Records      ports.RecordWriter
	Bus          events.Publisher
	LLM          model.LLM
	ModelTimeout time.Duration
	Links        config.DeepLinkConfig
	Validator    *validator.Validator
	Log          *logger.Logger
}

type Module struct {
	handler    *handler.Handler
	dispatcher *tools.Dispatcher
}

func NewModule(deps Deps) (*Module, error) {
	catalog, err := chat.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	dispatcher := tools.NewDispatcher(deps.Records, deps.Snapshots, deps.Bus, deps.Validator, deps.Links.GetAppBaseURL(), deps.Log)
	if deps.Invalidator != nil {
		dispatcher.SetSnapshotInvalidator(deps.Invalidator)
	}
	orchestrator := chat.New(deps.Limiter, deps.Sessions, deps.Snapshots, dispatcher, deps.LLM, catalog, deps.Log).
		WithModelTimeout(deps.ModelTimeout)

	return &Module{
		handler:    handler.New(orchestrator, deps.Sessions, deps.Validator),
		dispatcher: dispatcher,
	}, nil
}

// SetMessageDelivery wires the queue that sends outbound messages. Without it
// send_message leaves messages queued in the outbox.
func (m *Module) SetMessageDelivery(delivery ports.MessageDelivery) {
	m.dispatcher.SetMessageDelivery(delivery)
}

func (m *Module) Name() string {
	return "assistant"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/assistant")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
