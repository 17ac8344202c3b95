// Package insights is the snapshot aggregation bounded context.
package insights

import (
	"context"

	"portal_insights_backend/internal/events"
	apphttp "portal_insights_backend/internal/http"
	"portal_insights_backend/internal/insights/cache"
	"portal_insights_backend/internal/insights/handler"
	"portal_insights_backend/internal/insights/repository"
	"portal_insights_backend/internal/insights/service"
	"portal_insights_backend/platform/config"
	"portal_insights_backend/platform/logger"
	"portal_insights_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
	log     *logger.Logger
}

func NewModule(pool *pgxpool.Pool, store cache.Store, cfg config.InsightsConfig, bus events.Subscriber, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, store, cfg.GetSnapshotBuildTimeout(), log)

	m := &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
		log:     log,
	}
	m.subscribe(bus)
	return m
}

func (m *Module) subscribe(bus events.Subscriber) {
	bus.Subscribe(events.AssistantActionExecuted{}.EventName(), events.HandlerFunc(m.onActionExecuted))
}

// Service exposes the aggregator for cross-module adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the record gateway, including its write operations.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) Name() string {
	return "insights"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/insights")
	m.handler.RegisterRoutes(group)
}

// onActionExecuted drops cached snapshots once a tool changed account data, so
// the next turn sees the change.
func (m *Module) onActionExecuted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.AssistantActionExecuted)
	if !ok {
		return nil
	}
	m.log.Debug("invalidating snapshots after assistant action", "account_id", e.AccountID, "tool", e.Tool)
	return m.service.Invalidate(ctx, e.AccountID)
}

var _ apphttp.Module = (*Module)(nil)
