// Package service builds account snapshots: it fans out over the record
// gateway, classifies the results, ranks recommendations and caches the outcome.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"portal_insights_backend/internal/insights/cache"
	"portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultWindowDays = defaultWindowDays
	defaultLanguage   = "en"
	defaultTimezone   = "UTC"
	defaultScopeKey   = "default"
)

// Gateway is the read side of the record store. Every call is scoped to one
// account and must not mutate anything.
type Gateway interface {
	ListEcommerceLeads(ctx context.Context, scope domain.Scope, windowDays int) ([]domain.EcommerceLead, error)
	ListRealEstateLeads(ctx context.Context, scope domain.Scope, windowDays int) ([]domain.RealEstateLead, error)
	ListCampaigns(ctx context.Context, scope domain.Scope) ([]domain.Campaign, error)
	ListInsights(ctx context.Context, scope domain.Scope, windowDays int) ([]domain.Insight, error)
	ListProperties(ctx context.Context, scope domain.Scope) ([]domain.Property, error)
	ListConnections(ctx context.Context, scope domain.Scope) ([]domain.Connection, error)
	ListTasks(ctx context.Context, scope domain.Scope) ([]domain.Task, error)
	GetAccountProfile(ctx context.Context, accountID uuid.UUID) (domain.AccountProfile, error)
}

// SnapshotRequest selects one cached snapshot variant.
type SnapshotRequest struct {
	AccountID    uuid.UUID
	OrgScope     *uuid.UUID
	WindowDays   int
	ForceRefresh bool
}

// Service is safe for concurrent use.
type Service struct {
	gateway      Gateway
	cache        cache.Store
	flight       singleflight.Group
	generations  sync.Map // uuid.UUID -> *atomic.Uint64, bumped by Invalidate
	buildTimeout time.Duration
	now          func() time.Time
	log          *logger.Logger
}

// New wires the aggregator. A positive buildTimeout bounds the whole fan-out.
func New(gateway Gateway, store cache.Store, buildTimeout time.Duration, log *logger.Logger) *Service {
	return &Service{
		gateway:      gateway,
		cache:        store,
		buildTimeout: buildTimeout,
		now:          time.Now,
		log:          log,
	}
}

// WithClock replaces the time source used for classification.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CacheKey is "{accountId}:{orgScope|default}:{windowDays}".
func CacheKey(accountID uuid.UUID, orgScope *uuid.UUID, windowDays int) string {
	scope := defaultScopeKey
	if orgScope != nil {
		scope = orgScope.String()
	}
	return fmt.Sprintf("%s:%s:%d", accountID, scope, windowDays)
}

func accountPrefix(accountID uuid.UUID) string {
	return accountID.String() + ":"
}

func (s *Service) generation(accountID uuid.UUID) *atomic.Uint64 {
	if g, ok := s.generations.Load(accountID); ok {
		return g.(*atomic.Uint64)
	}
	g, _ := s.generations.LoadOrStore(accountID, new(atomic.Uint64))
	return g.(*atomic.Uint64)
}

// GetSnapshot returns the cached snapshot when fresh, otherwise builds a new
// one. Concurrent misses for the same key share one build, but a request that
// arrives after Invalidate never joins a build started before it.
func (s *Service) GetSnapshot(ctx context.Context, req SnapshotRequest) (domain.Snapshot, error) {
	if req.WindowDays <= 0 {
		req.WindowDays = DefaultWindowDays
	}
	key := CacheKey(req.AccountID, req.OrgScope, req.WindowDays)
	log := s.log.WithContext(ctx)

	if !req.ForceRefresh {
		entry, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Warn("snapshot cache read failed", "key", key, "error", err)
		} else if ok {
			return entry.Snapshot, nil
		}
	}

	gen := s.generation(req.AccountID).Load()
	ch := s.flight.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (interface{}, error) {
		return s.build(context.WithoutCancel(ctx), req, key, gen)
	})
	select {
	case <-ctx.Done():
		return domain.Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Snapshot{}, res.Err
		}
		return res.Val.(domain.Snapshot), nil
	}
}

// Invalidate drops every scope and window variant cached for the account.
// Builds already in flight still answer their callers but are not cached.
func (s *Service) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	s.generation(accountID).Add(1)
	removed, err := s.cache.InvalidatePrefix(ctx, accountPrefix(accountID))
	if err != nil {
		return fmt.Errorf("invalidate snapshots: %w", err)
	}
	s.log.WithContext(ctx).Debug("snapshots invalidated", "account_id", accountID, "removed", removed)
	return nil
}

type fetched struct {
	ecommerce   []domain.EcommerceLead
	realEstate  []domain.RealEstateLead
	campaigns   []domain.Campaign
	insights    []domain.Insight
	properties  []domain.Property
	connections []domain.Connection
	tasks       []domain.Task
	profile     domain.AccountProfile
}

func (s *Service) build(ctx context.Context, req SnapshotRequest, key string, gen uint64) (domain.Snapshot, error) {
	started := time.Now()
	if s.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.buildTimeout)
		defer cancel()
	}

	data, err := s.fetchAll(ctx, req)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return domain.Snapshot{}, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Snapshot{}, apperr.Unavailable("snapshot build timed out", err)
		}
		return domain.Snapshot{}, apperr.Unavailable("failed to load account records", err)
	}

	now := s.now()
	raw := RawRecords{
		Leads:       domain.NormalizeLeads(data.ecommerce, data.realEstate),
		Campaigns:   data.campaigns,
		Insights:    data.insights,
		Properties:  data.properties,
		Connections: data.connections,
		Tasks:       data.tasks,
	}
	classified := Classify(raw, req.WindowDays, now)

	snapshot := domain.Snapshot{
		Meta: domain.Meta{
			AccountID:   req.AccountID,
			OrgScope:    req.OrgScope,
			WindowDays:  req.WindowDays,
			GeneratedAt: now,
			Language:    orDefault(data.profile.Language, defaultLanguage),
			Timezone:    orDefault(data.profile.Timezone, defaultTimezone),
		},
		Leads:           classified.Leads,
		Campaigns:       classified.Campaigns,
		Properties:      classified.Properties,
		Connections:     classified.Connections,
		Tasks:           classified.Tasks,
		Recommendations: Rank(classified),
	}

	s.store(ctx, req.AccountID, key, gen, snapshot)
	s.log.SnapshotBuilt(req.AccountID.String(), key, time.Since(started), len(snapshot.Recommendations))
	return snapshot, nil
}

// store writes the snapshot through unless the account was invalidated while
// it was being built. The second check catches an Invalidate that lands
// between the first check and the write.
func (s *Service) store(ctx context.Context, accountID uuid.UUID, key string, gen uint64, snapshot domain.Snapshot) {
	current := s.generation(accountID)
	if current.Load() != gen {
		s.log.Debug("discarding snapshot built before invalidation", "key", key)
		return
	}
	if err := s.cache.Set(ctx, key, snapshot); err != nil {
		s.log.Warn("snapshot cache write failed", "key", key, "error", err)
		return
	}
	if current.Load() != gen {
		if _, err := s.cache.InvalidatePrefix(ctx, accountPrefix(accountID)); err != nil {
			s.log.Warn("snapshot cache cleanup failed", "key", key, "error", err)
		}
	}
}

// fetchAll waits for every read; the first failure cancels the rest.
func (s *Service) fetchAll(ctx context.Context, req SnapshotRequest) (fetched, error) {
	scope := domain.Scope{AccountID: req.AccountID, OrgScope: req.OrgScope}
	var out fetched

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.ecommerce, err = s.gateway.ListEcommerceLeads(gctx, scope, req.WindowDays)
		return wrapFetch("ecommerce leads", err)
	})
	g.Go(func() (err error) {
		out.realEstate, err = s.gateway.ListRealEstateLeads(gctx, scope, req.WindowDays)
		return wrapFetch("real estate leads", err)
	})
	g.Go(func() (err error) {
		out.campaigns, err = s.gateway.ListCampaigns(gctx, scope)
		return wrapFetch("campaigns", err)
	})
	g.Go(func() (err error) {
		out.insights, err = s.gateway.ListInsights(gctx, scope, req.WindowDays)
		return wrapFetch("campaign insights", err)
	})
	g.Go(func() (err error) {
		out.properties, err = s.gateway.ListProperties(gctx, scope)
		return wrapFetch("properties", err)
	})
	g.Go(func() (err error) {
		out.connections, err = s.gateway.ListConnections(gctx, scope)
		return wrapFetch("connections", err)
	})
	g.Go(func() (err error) {
		out.tasks, err = s.gateway.ListTasks(gctx, scope)
		return wrapFetch("tasks", err)
	})
	g.Go(func() (err error) {
		out.profile, err = s.gateway.GetAccountProfile(gctx, req.AccountID)
		return wrapFetch("account profile", err)
	})

	if err := g.Wait(); err != nil {
		return fetched{}, err
	}
	return out, nil
}

func wrapFetch(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("list %s: %w", what, err)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
