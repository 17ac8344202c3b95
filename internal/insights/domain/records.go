// Package domain holds the record shapes read from the record store and the
// immutable snapshot assembled from them.
package domain

import (
	"strings"
	"time"

	"portal_insights_backend/platform/phone"

	"github.com/google/uuid"
)

// Score is the lead temperature.
type Score string

const (
	ScoreHot  Score = "HOT"
	ScoreWarm Score = "WARM"
	ScoreCold Score = "COLD"
)

// LeadKind identifies which source a lead came from.
type LeadKind string

const (
	LeadKindEcommerce  LeadKind = "ecommerce"
	LeadKindRealEstate LeadKind = "real_estate"
)

const unknownLeadName = "Unknown lead"

// LeadSource is one of EcommerceLead or RealEstateLead.
type LeadSource interface {
	leadSource()
}

// EcommerceLead is a lead row captured by the web shop funnel.
type EcommerceLead struct {
	ID              uuid.UUID
	FirstName       string
	LastName        string
	FullName        string
	Email           string
	Phone           string
	FunnelStage     string
	Temperature     string
	CreatedAt       time.Time
	LastContactedAt *time.Time
}

// RealEstateLead is a lead row captured by property enquiries.
type RealEstateLead struct {
	ID                uuid.UUID
	ContactName       string
	Email             string
	Phone             string
	Status            string
	Score             string
	CreatedAt         time.Time
	LastInteractionAt *time.Time
}

func (EcommerceLead) leadSource()  {}
func (RealEstateLead) leadSource() {}

// LeadRecord is the canonical lead shape the classifier works on.
type LeadRecord struct {
	ID            uuid.UUID
	Kind          LeadKind
	Name          string
	Email         string
	Phone         string
	Status        string
	Score         Score
	CreatedAt     time.Time
	LastContactAt *time.Time
}

// NormalizeLead maps either source onto LeadRecord. Every field has a
// fallback so the result is always usable.
func NormalizeLead(src LeadSource) LeadRecord {
	switch l := src.(type) {
	case EcommerceLead:
		return LeadRecord{
			ID:            l.ID,
			Kind:          LeadKindEcommerce,
			Name:          firstNonEmpty(l.FullName, joinName(l.FirstName, l.LastName), l.Email, unknownLeadName),
			Email:         strings.TrimSpace(l.Email),
			Phone:         phone.NormalizeE164(l.Phone),
			Status:        normalizeStatus(l.FunnelStage),
			Score:         ParseScore(l.Temperature),
			CreatedAt:     l.CreatedAt,
			LastContactAt: l.LastContactedAt,
		}
	case RealEstateLead:
		return LeadRecord{
			ID:            l.ID,
			Kind:          LeadKindRealEstate,
			Name:          firstNonEmpty(l.ContactName, l.Email, unknownLeadName),
			Email:         strings.TrimSpace(l.Email),
			Phone:         phone.NormalizeE164(l.Phone),
			Status:        normalizeStatus(l.Status),
			Score:         ParseScore(l.Score),
			CreatedAt:     l.CreatedAt,
			LastContactAt: l.LastInteractionAt,
		}
	default:
		return LeadRecord{Name: unknownLeadName, Status: "NEW", Score: ScoreCold}
	}
}

// NormalizeLeads merges both sources into one slice, e-commerce first.
func NormalizeLeads(ecommerce []EcommerceLead, realEstate []RealEstateLead) []LeadRecord {
	out := make([]LeadRecord, 0, len(ecommerce)+len(realEstate))
	for _, l := range ecommerce {
		out = append(out, NormalizeLead(l))
	}
	for _, l := range realEstate {
		out = append(out, NormalizeLead(l))
	}
	return out
}

// ParseScore accepts any casing and defaults to COLD.
func ParseScore(raw string) Score {
	switch Score(strings.ToUpper(strings.TrimSpace(raw))) {
	case ScoreHot:
		return ScoreHot
	case ScoreWarm:
		return ScoreWarm
	default:
		return ScoreCold
	}
}

func normalizeStatus(raw string) string {
	status := strings.ToUpper(strings.TrimSpace(raw))
	if status == "" {
		return "NEW"
	}
	return status
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Campaign is an ad campaign as synced from the ad platform.
type Campaign struct {
	ID           uuid.UUID
	ExternalID   string
	Name         string
	Platform     string
	Status       string
	DailyBudget  *float64
	LastSyncedAt *time.Time
}

// IsActive reports whether the campaign is currently delivering.
func (c Campaign) IsActive() bool {
	return strings.EqualFold(strings.TrimSpace(c.Status), "ACTIVE")
}

// Insight is one day of delivery metrics for a campaign.
type Insight struct {
	CampaignExternalID string
	Date               time.Time
	Spend              float64
	Clicks             int64
	Impressions        int64
	Conversions        int64
}

// Property is a listing owned by the account.
type Property struct {
	ID          uuid.UUID
	Title       string
	Status      string
	Description string
	Bedrooms    *int
	Bathrooms   *int
	AreaSqm     *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Connection is a third-party integration.
type Connection struct {
	ID        uuid.UUID
	Provider  string
	Name      string
	Status    string
	LastError string
	UpdatedAt time.Time
}

// Task is a to-do item, optionally tied to a lead.
type Task struct {
	ID          uuid.UUID
	Title       string
	Status      string
	Priority    string
	DueAt       *time.Time
	LeadID      *uuid.UUID
	CreatedAt   time.Time
	CompletedAt *time.Time
}

var closedTaskStatuses = map[string]bool{
	"DONE":      true,
	"COMPLETED": true,
	"CANCELLED": true,
	"CANCELED":  true,
}

// IsOpen reports whether the task still needs work.
func (t Task) IsOpen() bool {
	if t.CompletedAt != nil {
		return false
	}
	return !closedTaskStatuses[strings.ToUpper(strings.TrimSpace(t.Status))]
}

// AccountProfile carries the account settings that shape the snapshot.
type AccountProfile struct {
	AccountID uuid.UUID
	Name      string
	Language  string
	Timezone  string
}

// Scope selects the records of one account, optionally narrowed to one
// organization.
type Scope struct {
	AccountID uuid.UUID
	OrgScope  *uuid.UUID
}
