package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority orders recommendations and issue severities.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns a sort weight; higher sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// IssueKind is a campaign health problem.
type IssueKind string

const (
	IssueLowCTR    IssueKind = "low_ctr"
	IssueHighCPC   IssueKind = "high_cpc"
	IssueNoTraffic IssueKind = "no_traffic"
	IssueOverspend IssueKind = "overspend"
	IssueStale     IssueKind = "stale"
)

// RecommendationType names what a recommendation asks the user to do.
type RecommendationType string

const (
	RecommendFollowUpLead   RecommendationType = "follow_up_lead"
	RecommendPauseCampaign  RecommendationType = "pause_campaign"
	RecommendUpdateProperty RecommendationType = "update_property"
	RecommendFixConnection  RecommendationType = "fix_connection"
	RecommendCreateTask     RecommendationType = "create_task"
)

// EntityType names a linkable record kind.
type EntityType string

const (
	EntityLead       EntityType = "lead"
	EntityCampaign   EntityType = "campaign"
	EntityProperty   EntityType = "property"
	EntityConnection EntityType = "connection"
	EntityTask       EntityType = "task"
)

// Snapshot is the aggregated view of one account. It is built once and never
// modified; a refresh produces a new value.
type Snapshot struct {
	Meta            Meta              `json:"meta"`
	Leads           LeadSection       `json:"leads"`
	Campaigns       CampaignSection   `json:"campaigns"`
	Properties      PropertySection   `json:"properties"`
	Connections     ConnectionSection `json:"connections"`
	Tasks           TaskSection       `json:"tasks"`
	Recommendations []Recommendation  `json:"recommendations"`
}

type Meta struct {
	AccountID   uuid.UUID  `json:"accountId"`
	OrgScope    *uuid.UUID `json:"orgScope,omitempty"`
	WindowDays  int        `json:"windowDays"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Language    string     `json:"language"`
	Timezone    string     `json:"timezone"`
}

// ActivityItem is one entry of a recent-activity feed.
type ActivityItem struct {
	EntityID uuid.UUID `json:"entityId"`
	Title    string    `json:"title"`
	Event    string    `json:"event"`
	At       time.Time `json:"at"`
}

type LeadStats struct {
	Total          int            `json:"total"`
	Hot            int            `json:"hot"`
	Warm           int            `json:"warm"`
	Cold           int            `json:"cold"`
	Stale          int            `json:"stale"`
	NeverContacted int            `json:"neverContacted"`
	NewThisWeek    int            `json:"newThisWeek"`
	ByStatus       map[string]int `json:"byStatus"`
	ByKind         map[string]int `json:"byKind"`
}

type LeadSummary struct {
	ID               uuid.UUID `json:"id"`
	Kind             LeadKind  `json:"kind"`
	Name             string    `json:"name"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Status           string    `json:"status"`
	Score            Score     `json:"score"`
	DaysSinceCreated int       `json:"daysSinceCreated"`
	DaysSinceContact *int      `json:"daysSinceContact,omitempty"`
}

// IdleDays is days since contact, or since creation for never-contacted leads.
func (l LeadSummary) IdleDays() int {
	if l.DaysSinceContact != nil {
		return *l.DaysSinceContact
	}
	return l.DaysSinceCreated
}

type LeadSection struct {
	Stats          LeadStats      `json:"stats"`
	StaleList      []LeadSummary  `json:"staleList"`
	RecentActivity []ActivityItem `json:"recentActivity"`
}

// Rollup sums delivery metrics over a period.
type Rollup struct {
	Spend       float64 `json:"spend"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	Conversions int64   `json:"conversions"`
}

// CTR is click-through rate in percent.
func (r Rollup) CTR() float64 {
	if r.Impressions == 0 {
		return 0
	}
	return float64(r.Clicks) / float64(r.Impressions) * 100
}

// CPC is cost per click.
func (r Rollup) CPC() float64 {
	if r.Clicks == 0 {
		return 0
	}
	return r.Spend / float64(r.Clicks)
}

func (r *Rollup) Add(in Insight) {
	r.Spend += in.Spend
	r.Clicks += in.Clicks
	r.Impressions += in.Impressions
	r.Conversions += in.Conversions
}

type CampaignStats struct {
	Total     int     `json:"total"`
	Active    int     `json:"active"`
	Paused    int     `json:"paused"`
	Last7Days Rollup  `json:"last7Days"`
	Window    Rollup  `json:"window"`
	CTR7d     float64 `json:"ctr7d"`
	CPC7d     float64 `json:"cpc7d"`
}

type CampaignIssue struct {
	CampaignID   uuid.UUID `json:"campaignId"`
	CampaignName string    `json:"campaignName"`
	IssueKind    IssueKind `json:"issueKind"`
	Severity     Priority  `json:"severity"`
	Metric       float64   `json:"metric"`
	Threshold    float64   `json:"threshold"`
	Suggestion   string    `json:"suggestion"`
}

type CampaignPerformer struct {
	CampaignID  uuid.UUID `json:"campaignId"`
	Name        string    `json:"name"`
	Conversions int64     `json:"conversions"`
	CTR         float64   `json:"ctr"`
	Spend       float64   `json:"spend"`
}

type CampaignSection struct {
	Stats         CampaignStats       `json:"stats"`
	Issues        []CampaignIssue     `json:"issues"`
	TopPerformers []CampaignPerformer `json:"topPerformers"`
}

type PropertyStats struct {
	Total           int `json:"total"`
	Active          int `json:"active"`
	Stale           int `json:"stale"`
	IncompleteCount int `json:"incompleteCount"`
}

type PropertySummary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Status          string    `json:"status"`
	DaysSinceUpdate int       `json:"daysSinceUpdate"`
	MissingFields   []string  `json:"missingFields,omitempty"`
}

type PropertySection struct {
	Stats          PropertyStats     `json:"stats"`
	StaleList      []PropertySummary `json:"staleList"`
	RecentActivity []ActivityItem    `json:"recentActivity"`
}

type ConnectionStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Errored int `json:"errored"`
}

type ConnectionIssue struct {
	ConnectionID    uuid.UUID `json:"connectionId"`
	Provider        string    `json:"provider"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	LastError       string    `json:"lastError,omitempty"`
	DaysSinceUpdate int       `json:"daysSinceUpdate"`
}

type ConnectionSection struct {
	Stats  ConnectionStats   `json:"stats"`
	Issues []ConnectionIssue `json:"issues"`
}

type TaskStats struct {
	Total     int `json:"total"`
	Open      int `json:"open"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
	DueToday  int `json:"dueToday"`
}

type TaskSummary struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Priority    string     `json:"priority"`
	DueAt       time.Time  `json:"dueAt"`
	DaysOverdue int        `json:"daysOverdue"`
	LeadID      *uuid.UUID `json:"leadId,omitempty"`
}

type TaskSection struct {
	Stats       TaskStats     `json:"stats"`
	OverdueList []TaskSummary `json:"overdueList"`
}

// Action is a ready-to-run tool invocation.
type Action struct {
	ToolName string         `json:"toolName"`
	Params   map[string]any `json:"params"`
}

type EntityRef struct {
	Type EntityType `json:"type"`
	ID   uuid.UUID  `json:"id"`
}

// Recommendation titles are English. Target is the display name of the
// record it concerns, or the count for backlog recommendations, so clients
// can build their own localized labels.
type Recommendation struct {
	ID          string             `json:"id"`
	Type        RecommendationType `json:"type"`
	Priority    Priority           `json:"priority"`
	Title       string             `json:"title"`
	Target      string             `json:"target,omitempty"`
	Description string             `json:"description"`
	Action      Action             `json:"action"`
	EntityRef   *EntityRef         `json:"entityRef,omitempty"`
}

// RecommendationID is deterministic so regenerating a snapshot yields the same ids.
func RecommendationID(kind RecommendationType, source string) string {
	return fmt.Sprintf("%s:%s", kind, source)
}
