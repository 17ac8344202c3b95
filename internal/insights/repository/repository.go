// Package repository is the pgx-backed record gateway. Every query is scoped
// by account_id and, when present, by organization.
package repository

import (
	"context"
	"errors"

	"portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const listEcommerceLeadsQuery = `
	SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(full_name, ''),
		COALESCE(email, ''), COALESCE(phone, ''), funnel_stage, temperature, created_at, last_contacted_at
	FROM ecommerce_leads
	WHERE account_id = $1
		AND ($2::uuid IS NULL OR organization_id = $2)
		AND (created_at >= now() - make_interval(days => $3)
			OR last_contacted_at >= now() - make_interval(days => $3)
			OR funnel_stage NOT IN ('WON', 'LOST'))
	ORDER BY created_at DESC`

func (r *Repository) ListEcommerceLeads(ctx context.Context, scope domain.Scope, windowDays int) ([]domain.EcommerceLead, error) {
	rows, err := r.pool.Query(ctx, listEcommerceLeadsQuery, scope.AccountID, scope.OrgScope, windowDays)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.EcommerceLead, error) {
		var l domain.EcommerceLead
		err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.FullName, &l.Email, &l.Phone,
			&l.FunnelStage, &l.Temperature, &l.CreatedAt, &l.LastContactedAt)
		return l, err
	})
}

const listRealEstateLeadsQuery = `
	SELECT id, COALESCE(contact_name, ''), COALESCE(email, ''), COALESCE(phone, ''),
		status, COALESCE(score, ''), created_at, last_interaction_at
	FROM real_estate_leads
	WHERE account_id = $1
		AND ($2::uuid IS NULL OR organization_id = $2)
		AND (created_at >= now() - make_interval(days => $3)
			OR last_interaction_at >= now() - make_interval(days => $3)
			OR status NOT IN ('CLOSED', 'LOST'))
	ORDER BY created_at DESC`

func (r *Repository) ListRealEstateLeads(ctx context.Context, scope domain.Scope, windowDays int) ([]domain.RealEstateLead, error) {
	rows, err := r.pool.Query(ctx, listRealEstateLeadsQuery, scope.AccountID, scope.OrgScope, windowDays)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RealEstateLead, error) {
		var l domain.RealEstateLead
		err := row.Scan(&l.ID, &l.ContactName, &l.Email, &l.Phone, &l.Status, &l.Score, &l.CreatedAt, &l.LastInteractionAt)
		return l, err
	})
}

const listCampaignsQuery = `
	SELECT id, external_id, name, platform, status, daily_budget::float8, last_synced_at
	FROM campaigns
	WHERE account_id = $1
		AND ($2::uuid IS NULL OR organization_id = $2)
	ORDER BY name ASC`

func (r *Repository) ListCampaigns(ctx context.Context, scope domain.Scope) ([]domain.Campaign, error) {
	rows, err := r.pool.Query(ctx, listCampaignsQuery, scope.AccountID, scope.OrgScope)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Campaign, error) {
		var c domain.Campaign
		err := row.Scan(&c.ID, &c.ExternalID, &c.Name, &c.Platform, &c.Status, &c.DailyBudget, &c.LastSyncedAt)
		return c, err
	})
}

// Insights are keyed by campaign external id, so the organization filter
// goes through the campaigns table.
const listInsightsQuery = `
	SELECT ci.campaign_external_id, ci.date::timestamptz, ci.spend::float8, ci.clicks, ci.impressions, ci.conversions
	FROM campaign_insights ci
	WHERE ci.account_id = $1
		AND ci.date >= (now() - make_interval(days => $3))::date
		AND ($2::uuid IS NULL OR EXISTS (
			SELECT 1 FROM campaigns c
			WHERE c.account_id = ci.account_id
				AND c.external_id = ci.campaign_external_id
				AND c.organization_id = $2))
	ORDER BY ci.date DESC`

func (r *Repository) ListInsights(ctx context.Context, scope domain.Scope, windowDays int) ([]domain.Insight, error) {
	rows, err := r.pool.Query(ctx, listInsightsQuery, scope.AccountID, scope.OrgScope, windowDays)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Insight, error) {
		var in domain.Insight
		err := row.Scan(&in.CampaignExternalID, &in.Date, &in.Spend, &in.Clicks, &in.Impressions, &in.Conversions)
		return in, err
	})
}

const listPropertiesQuery = `
	SELECT id, title, status, description, bedrooms, bathrooms, area_sqm::float8, created_at, updated_at
	FROM properties
	WHERE account_id = $1
		AND ($2::uuid IS NULL OR organization_id = $2)
	ORDER BY updated_at ASC`

func (r *Repository) ListProperties(ctx context.Context, scope domain.Scope) ([]domain.Property, error) {
	rows, err := r.pool.Query(ctx, listPropertiesQuery, scope.AccountID, scope.OrgScope)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Property, error) {
		var p domain.Property
		err := row.Scan(&p.ID, &p.Title, &p.Status, &p.Description, &p.Bedrooms, &p.Bathrooms, &p.AreaSqm, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
}

const listConnectionsQuery = `
	SELECT id, provider, name, status, COALESCE(last_error, ''), updated_at
	FROM connections
	WHERE account_id = $1
		AND ($2::uuid IS NULL OR organization_id = $2)
	ORDER BY provider ASC, name ASC`

func (r *Repository) ListConnections(ctx context.Context, scope domain.Scope) ([]domain.Connection, error) {
	rows, err := r.pool.Query(ctx, listConnectionsQuery, scope.AccountID, scope.OrgScope)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Connection, error) {
		var c domain.Connection
		err := row.Scan(&c.ID, &c.Provider, &c.Name, &c.Status, &c.LastError, &c.UpdatedAt)
		return c, err
	})
}

const listTasksQuery = `
	SELECT id, title, status, priority, due_at, lead_id, created_at, completed_at
	FROM tasks
	WHERE account_id = $1
		AND ($2::uuid IS NULL OR organization_id = $2)
		AND (completed_at IS NULL OR completed_at >= now() - interval '30 days')
	ORDER BY due_at ASC NULLS LAST`

func (r *Repository) ListTasks(ctx context.Context, scope domain.Scope) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, listTasksQuery, scope.AccountID, scope.OrgScope)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Task, error) {
		var t domain.Task
		err := row.Scan(&t.ID, &t.Title, &t.Status, &t.Priority, &t.DueAt, &t.LeadID, &t.CreatedAt, &t.CompletedAt)
		return t, err
	})
}

const getAccountProfileQuery = `
	SELECT id, name, preferred_language, timezone
	FROM accounts
	WHERE id = $1`

func (r *Repository) GetAccountProfile(ctx context.Context, accountID uuid.UUID) (domain.AccountProfile, error) {
	var p domain.AccountProfile
	err := r.pool.QueryRow(ctx, getAccountProfileQuery, accountID).Scan(&p.AccountID, &p.Name, &p.Language, &p.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AccountProfile{}, apperr.NotFound("account not found")
	}
	return p, err
}
