package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Write operations return apperr.NotFound both when the record does not
// exist and when it belongs to another account, or to another organization
// than the caller's scope.

var errNotOwned = apperr.NotFound("record not found or not owned by this account")

// LeadContact is the subset of a lead needed to confirm or deliver to it.
type LeadContact struct {
	ID     uuid.UUID
	Kind   domain.LeadKind
	Name   string
	Email  string
	Phone  string
	Status string
}

const findLeadContactQuery = `
	SELECT id, 'ecommerce' AS kind,
		COALESCE(NULLIF(full_name, ''), NULLIF(TRIM(COALESCE(first_name, '') || ' ' || COALESCE(last_name, '')), ''), email, ''),
		COALESCE(email, ''), COALESCE(phone, ''), funnel_stage
	FROM ecommerce_leads
	WHERE id = $1 AND account_id = $2 AND ($3::uuid IS NULL OR organization_id = $3)
	UNION ALL
	SELECT id, 'real_estate' AS kind, COALESCE(NULLIF(contact_name, ''), email, ''),
		COALESCE(email, ''), COALESCE(phone, ''), status
	FROM real_estate_leads
	WHERE id = $1 AND account_id = $2 AND ($3::uuid IS NULL OR organization_id = $3)
	LIMIT 1`

// FindLeadContact looks the lead up in both source tables.
func (r *Repository) FindLeadContact(ctx context.Context, scope domain.Scope, leadID uuid.UUID) (LeadContact, error) {
	var c LeadContact
	var kind string
	err := r.pool.QueryRow(ctx, findLeadContactQuery, leadID, scope.AccountID, scope.OrgScope).Scan(&c.ID, &kind, &c.Name, &c.Email, &c.Phone, &c.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadContact{}, errNotOwned
	}
	if err != nil {
		return LeadContact{}, err
	}
	c.Kind = domain.LeadKind(kind)
	return c, nil
}

type CreateTaskParams struct {
	AccountID   uuid.UUID
	OrgScope    *uuid.UUID
	Title       string
	Description string
	Priority    string
	DueAt       *time.Time
	LeadID      *uuid.UUID
}

const createTaskQuery = `
	INSERT INTO tasks (id, account_id, organization_id, title, description, status, priority, due_at, lead_id)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), 'TODO', $6, $7, $8)
	RETURNING id, title, status, priority, due_at, lead_id, created_at, completed_at`

func (r *Repository) CreateTask(ctx context.Context, params CreateTaskParams) (domain.Task, error) {
	if params.LeadID != nil {
		scope := domain.Scope{AccountID: params.AccountID, OrgScope: params.OrgScope}
		if _, err := r.FindLeadContact(ctx, scope, *params.LeadID); err != nil {
			return domain.Task{}, err
		}
	}

	var t domain.Task
	err := r.pool.QueryRow(ctx, createTaskQuery,
		uuid.New(), params.AccountID, params.OrgScope, params.Title, params.Description, params.Priority, params.DueAt, params.LeadID,
	).Scan(&t.ID, &t.Title, &t.Status, &t.Priority, &t.DueAt, &t.LeadID, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

type LeadStatusChange struct {
	LeadID         uuid.UUID
	Kind           domain.LeadKind
	Name           string
	PreviousStatus string
	Status         string
}

const updateEcommerceLeadStatusQuery = `
	UPDATE ecommerce_leads l
	SET funnel_stage = $4, updated_at = now()
	FROM (SELECT id, funnel_stage FROM ecommerce_leads
		WHERE id = $1 AND account_id = $2 AND ($3::uuid IS NULL OR organization_id = $3)
		FOR UPDATE) prev
	WHERE l.id = prev.id
	RETURNING l.id, COALESCE(NULLIF(l.full_name, ''), TRIM(COALESCE(l.first_name, '') || ' ' || COALESCE(l.last_name, ''))), prev.funnel_stage`

const updateRealEstateLeadStatusQuery = `
	UPDATE real_estate_leads l
	SET status = $4, updated_at = now()
	FROM (SELECT id, status FROM real_estate_leads
		WHERE id = $1 AND account_id = $2 AND ($3::uuid IS NULL OR organization_id = $3)
		FOR UPDATE) prev
	WHERE l.id = prev.id
	RETURNING l.id, COALESCE(l.contact_name, ''), prev.status`

// UpdateLeadStatus moves a lead of either kind to a new funnel stage.
func (r *Repository) UpdateLeadStatus(ctx context.Context, scope domain.Scope, leadID uuid.UUID, status string) (LeadStatusChange, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	change := LeadStatusChange{Status: status}

	err := r.pool.QueryRow(ctx, updateEcommerceLeadStatusQuery, leadID, scope.AccountID, scope.OrgScope, status).
		Scan(&change.LeadID, &change.Name, &change.PreviousStatus)
	if err == nil {
		change.Kind = domain.LeadKindEcommerce
		return change, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return LeadStatusChange{}, fmt.Errorf("update ecommerce lead status: %w", err)
	}

	err = r.pool.QueryRow(ctx, updateRealEstateLeadStatusQuery, leadID, scope.AccountID, scope.OrgScope, status).
		Scan(&change.LeadID, &change.Name, &change.PreviousStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadStatusChange{}, errNotOwned
	}
	if err != nil {
		return LeadStatusChange{}, fmt.Errorf("update real estate lead status: %w", err)
	}
	change.Kind = domain.LeadKindRealEstate
	return change, nil
}

type CampaignStatusChange struct {
	CampaignID     uuid.UUID
	Name           string
	PreviousStatus string
	Status         string
}

const setCampaignStatusQuery = `
	UPDATE campaigns c
	SET status = $4, updated_at = now()
	FROM (SELECT id, status FROM campaigns
		WHERE id = $1 AND account_id = $2 AND ($3::uuid IS NULL OR organization_id = $3)
		FOR UPDATE) prev
	WHERE c.id = prev.id
	RETURNING c.id, c.name, prev.status`

// SetCampaignStatus accepts "ACTIVE" or "PAUSED".
func (r *Repository) SetCampaignStatus(ctx context.Context, scope domain.Scope, campaignID uuid.UUID, status string) (CampaignStatusChange, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "ACTIVE" && status != "PAUSED" {
		return CampaignStatusChange{}, apperr.Validation("campaign status must be ACTIVE or PAUSED")
	}

	change := CampaignStatusChange{Status: status}
	err := r.pool.QueryRow(ctx, setCampaignStatusQuery, campaignID, scope.AccountID, scope.OrgScope, status).
		Scan(&change.CampaignID, &change.Name, &change.PreviousStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return CampaignStatusChange{}, errNotOwned
	}
	if err != nil {
		return CampaignStatusChange{}, fmt.Errorf("update campaign status: %w", err)
	}
	return change, nil
}

// EntityLabel is what a deep link needs: the record exists, is owned, and has
// a display label.
type EntityLabel struct {
	Type  domain.EntityType
	ID    uuid.UUID
	Label string
}

const ownedByScope = `id = $1 AND account_id = $2 AND ($3::uuid IS NULL OR organization_id = $3)`

var entityLabelQueries = map[domain.EntityType]string{
	domain.EntityLead: `
		SELECT COALESCE(NULLIF(full_name, ''), email, 'Lead') FROM ecommerce_leads WHERE ` + ownedByScope + `
		UNION ALL
		SELECT COALESCE(NULLIF(contact_name, ''), email, 'Lead') FROM real_estate_leads WHERE ` + ownedByScope + `
		LIMIT 1`,
	domain.EntityCampaign:   `SELECT name FROM campaigns WHERE ` + ownedByScope,
	domain.EntityProperty:   `SELECT title FROM properties WHERE ` + ownedByScope,
	domain.EntityConnection: `SELECT name FROM connections WHERE ` + ownedByScope,
	domain.EntityTask:       `SELECT title FROM tasks WHERE ` + ownedByScope,
}

// FindEntityForDeepLink confirms ownership and returns the entity's label.
func (r *Repository) FindEntityForDeepLink(ctx context.Context, scope domain.Scope, entityType domain.EntityType, entityID uuid.UUID) (EntityLabel, error) {
	query, ok := entityLabelQueries[entityType]
	if !ok {
		return EntityLabel{}, apperr.Validation(fmt.Sprintf("unsupported entity type %q", entityType))
	}

	label := EntityLabel{Type: entityType, ID: entityID}
	err := r.pool.QueryRow(ctx, query, entityID, scope.AccountID, scope.OrgScope).Scan(&label.Label)
	if errors.Is(err, pgx.ErrNoRows) {
		return EntityLabel{}, errNotOwned
	}
	if err != nil {
		return EntityLabel{}, fmt.Errorf("find %s: %w", entityType, err)
	}
	return label, nil
}
