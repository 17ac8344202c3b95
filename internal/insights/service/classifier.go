package service

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"portal_insights_backend/internal/insights/domain"
)

const (
	leadStaleAfterDays     = 3
	propertyStaleAfterDays = 14
	campaignStaleAfterDays = 7
	recentActivityDays     = 7
	unknownSyncDays        = 999

	staleLeadCap        = 10
	recentActivityCap   = 5
	campaignIssueCap    = 5
	topPerformerCap     = 3
	stalePropertyCap    = 10
	overdueTaskCap      = 10
	minDescriptionChars = 50

	lowCTRMinImpressions  = 1000
	lowCTRThresholdPct    = 1.0
	highCPCMinClicks      = 50
	highCPCThreshold      = 2.0
	noTrafficImpressions  = 100
	overspendThreshold    = 50.0
	topPerformerMinCTRPct = 2.0
	defaultWindowDays     = 30
	shortRollupWindowDays = 7
)

// RawRecords is everything the gateway returned for one account.
type RawRecords struct {
	Leads       []domain.LeadRecord
	Campaigns   []domain.Campaign
	Insights    []domain.Insight
	Properties  []domain.Property
	Connections []domain.Connection
	Tasks       []domain.Task
}

// Classified is the per-domain output of Classify.
type Classified struct {
	Leads       domain.LeadSection
	Campaigns   domain.CampaignSection
	Properties  domain.PropertySection
	Connections domain.ConnectionSection
	Tasks       domain.TaskSection
}

// DaysBetween is the whole-day floor of (now - ts).
func DaysBetween(ts, now time.Time) int {
	return int(math.Floor(now.Sub(ts).Hours() / 24))
}

func withinDays(ts, now time.Time, days int) bool {
	if ts.IsZero() || ts.After(now) {
		return false
	}
	return now.Sub(ts) <= time.Duration(days)*24*time.Hour
}

// Classify is pure: the same records and now always give the same result.
func Classify(raw RawRecords, windowDays int, now time.Time) Classified {
	return Classified{
		Leads:       ClassifyLeads(raw.Leads, now),
		Campaigns:   ClassifyCampaigns(raw.Campaigns, raw.Insights, windowDays, now),
		Properties:  ClassifyProperties(raw.Properties, now),
		Connections: ClassifyConnections(raw.Connections, now),
		Tasks:       ClassifyTasks(raw.Tasks, now),
	}
}

// IsStaleLead: contacted leads go stale 3 days after the last contact,
// never-contacted leads 3 days after creation.
func IsStaleLead(lead domain.LeadRecord, now time.Time) bool {
	if lead.LastContactAt != nil {
		return DaysBetween(*lead.LastContactAt, now) > leadStaleAfterDays
	}
	return DaysBetween(lead.CreatedAt, now) > leadStaleAfterDays
}

func summarizeLead(lead domain.LeadRecord, now time.Time) domain.LeadSummary {
	s := domain.LeadSummary{
		ID:               lead.ID,
		Kind:             lead.Kind,
		Name:             lead.Name,
		Email:            lead.Email,
		Phone:            lead.Phone,
		Status:           lead.Status,
		Score:            lead.Score,
		DaysSinceCreated: DaysBetween(lead.CreatedAt, now),
	}
	if lead.LastContactAt != nil {
		d := DaysBetween(*lead.LastContactAt, now)
		s.DaysSinceContact = &d
	}
	return s
}

func ClassifyLeads(leads []domain.LeadRecord, now time.Time) domain.LeadSection {
	stats := domain.LeadStats{
		Total:    len(leads),
		ByStatus: map[string]int{},
		ByKind:   map[string]int{},
	}
	stale := make([]domain.LeadSummary, 0)
	activity := make([]domain.ActivityItem, 0)

	for _, lead := range leads {
		switch lead.Score {
		case domain.ScoreHot:
			stats.Hot++
		case domain.ScoreWarm:
			stats.Warm++
		default:
			stats.Cold++
		}
		stats.ByStatus[lead.Status]++
		stats.ByKind[string(lead.Kind)]++
		if lead.LastContactAt == nil {
			stats.NeverContacted++
		}
		if withinDays(lead.CreatedAt, now, recentActivityDays) {
			stats.NewThisWeek++
		}

		if IsStaleLead(lead, now) {
			stale = append(stale, summarizeLead(lead, now))
		}

		if item, ok := leadActivity(lead, now); ok {
			activity = append(activity, item)
		}
	}
	stats.Stale = len(stale)

	sort.SliceStable(stale, func(i, j int) bool {
		hi, hj := stale[i].Score == domain.ScoreHot, stale[j].Score == domain.ScoreHot
		if hi != hj {
			return hi
		}
		return stale[i].IdleDays() > stale[j].IdleDays()
	})

	return domain.LeadSection{
		Stats:          stats,
		StaleList:      capSlice(stale, staleLeadCap),
		RecentActivity: capSlice(sortActivity(activity), recentActivityCap),
	}
}

func leadActivity(lead domain.LeadRecord, now time.Time) (domain.ActivityItem, bool) {
	if lead.LastContactAt != nil && lead.LastContactAt.After(lead.CreatedAt) && withinDays(*lead.LastContactAt, now, recentActivityDays) {
		return domain.ActivityItem{EntityID: lead.ID, Title: lead.Name, Event: "contacted", At: *lead.LastContactAt}, true
	}
	if withinDays(lead.CreatedAt, now, recentActivityDays) {
		return domain.ActivityItem{EntityID: lead.ID, Title: lead.Name, Event: "created", At: lead.CreatedAt}, true
	}
	return domain.ActivityItem{}, false
}

func sortActivity(items []domain.ActivityItem) []domain.ActivityItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].At.After(items[j].At)
	})
	return items
}

type campaignRollups struct {
	last7  domain.Rollup
	window domain.Rollup
}

func rollupInsights(insights []domain.Insight, windowDays int, now time.Time) map[string]*campaignRollups {
	out := make(map[string]*campaignRollups)
	for _, in := range insights {
		age := DaysBetween(in.Date, now)
		if age >= windowDays {
			continue
		}
		r, ok := out[in.CampaignExternalID]
		if !ok {
			r = &campaignRollups{}
			out[in.CampaignExternalID] = r
		}
		r.window.Add(in)
		if age < shortRollupWindowDays {
			r.last7.Add(in)
		}
	}
	return out
}

func ClassifyCampaigns(campaigns []domain.Campaign, insights []domain.Insight, windowDays int, now time.Time) domain.CampaignSection {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	rollups := rollupInsights(insights, windowDays, now)

	stats := domain.CampaignStats{Total: len(campaigns)}
	issues := make([]domain.CampaignIssue, 0)
	performers := make([]domain.CampaignPerformer, 0)

	for _, c := range campaigns {
		r := campaignRollups{}
		if found, ok := rollups[c.ExternalID]; ok {
			r = *found
		}
		stats.Last7Days.Spend += r.last7.Spend
		stats.Last7Days.Clicks += r.last7.Clicks
		stats.Last7Days.Impressions += r.last7.Impressions
		stats.Last7Days.Conversions += r.last7.Conversions
		stats.Window.Spend += r.window.Spend
		stats.Window.Clicks += r.window.Clicks
		stats.Window.Impressions += r.window.Impressions
		stats.Window.Conversions += r.window.Conversions

		if c.IsActive() {
			stats.Active++
			issues = append(issues, activeCampaignIssues(c, r.last7)...)
		} else if strings.EqualFold(c.Status, "PAUSED") {
			stats.Paused++
		}

		syncDays := unknownSyncDays
		if c.LastSyncedAt != nil {
			syncDays = DaysBetween(*c.LastSyncedAt, now)
		}
		if syncDays > campaignStaleAfterDays {
			issues = append(issues, newIssue(c, domain.IssueStale, domain.PriorityLow, float64(syncDays), campaignStaleAfterDays,
				"Reconnect the ad account so metrics sync again."))
		}

		if r.window.Conversions > 0 && r.window.CTR() > topPerformerMinCTRPct {
			performers = append(performers, domain.CampaignPerformer{
				CampaignID:  c.ID,
				Name:        c.Name,
				Conversions: r.window.Conversions,
				CTR:         r.window.CTR(),
				Spend:       r.window.Spend,
			})
		}
	}
	stats.CTR7d = stats.Last7Days.CTR()
	stats.CPC7d = stats.Last7Days.CPC()

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Severity.Rank() > issues[j].Severity.Rank()
	})
	sort.SliceStable(performers, func(i, j int) bool {
		return performers[i].Conversions > performers[j].Conversions
	})

	return domain.CampaignSection{
		Stats:         stats,
		Issues:        capSlice(issues, campaignIssueCap),
		TopPerformers: capSlice(performers, topPerformerCap),
	}
}

func activeCampaignIssues(c domain.Campaign, r domain.Rollup) []domain.CampaignIssue {
	var issues []domain.CampaignIssue
	if r.Impressions > lowCTRMinImpressions && r.CTR() < lowCTRThresholdPct {
		issues = append(issues, newIssue(c, domain.IssueLowCTR, domain.PriorityMedium, r.CTR(), lowCTRThresholdPct,
			"Refresh the ad creative or tighten targeting to lift click-through."))
	}
	if r.Clicks > highCPCMinClicks && r.CPC() > highCPCThreshold {
		issues = append(issues, newIssue(c, domain.IssueHighCPC, domain.PriorityMedium, r.CPC(), highCPCThreshold,
			"Review bids and audience overlap to bring the cost per click down."))
	}
	if r.Impressions < noTrafficImpressions {
		issues = append(issues, newIssue(c, domain.IssueNoTraffic, domain.PriorityMedium, float64(r.Impressions), noTrafficImpressions,
			"Check budget, schedule and ad approval; the campaign is barely delivering."))
	}
	if r.Spend > overspendThreshold && r.Conversions == 0 {
		issues = append(issues, newIssue(c, domain.IssueOverspend, domain.PriorityHigh, r.Spend, overspendThreshold,
			"Pause the campaign or fix conversion tracking before spending more."))
	}
	return issues
}

func newIssue(c domain.Campaign, kind domain.IssueKind, severity domain.Priority, metric, threshold float64, suggestion string) domain.CampaignIssue {
	return domain.CampaignIssue{
		CampaignID:   c.ID,
		CampaignName: c.Name,
		IssueKind:    kind,
		Severity:     severity,
		Metric:       metric,
		Threshold:    threshold,
		Suggestion:   suggestion,
	}
}

// MissingPropertyFields lists the listing fields a buyer would expect but are absent.
func MissingPropertyFields(p domain.Property) []string {
	var missing []string
	if utf8.RuneCountInString(strings.TrimSpace(p.Description)) < minDescriptionChars {
		missing = append(missing, "description")
	}
	if p.Bedrooms == nil {
		missing = append(missing, "bedrooms")
	}
	if p.Bathrooms == nil {
		missing = append(missing, "bathrooms")
	}
	if p.AreaSqm == nil || *p.AreaSqm <= 0 {
		missing = append(missing, "area")
	}
	return missing
}

func ClassifyProperties(properties []domain.Property, now time.Time) domain.PropertySection {
	stats := domain.PropertyStats{Total: len(properties)}
	stale := make([]domain.PropertySummary, 0)
	activity := make([]domain.ActivityItem, 0)

	for _, p := range properties {
		missing := MissingPropertyFields(p)
		if len(missing) > 0 {
			stats.IncompleteCount++
		}
		active := strings.EqualFold(strings.TrimSpace(p.Status), "active")
		if active {
			stats.Active++
		}
		daysSinceUpdate := DaysBetween(p.UpdatedAt, now)
		if active && daysSinceUpdate > propertyStaleAfterDays {
			stale = append(stale, domain.PropertySummary{
				ID:              p.ID,
				Title:           p.Title,
				Status:          p.Status,
				DaysSinceUpdate: daysSinceUpdate,
				MissingFields:   missing,
			})
		}

		switch {
		case p.UpdatedAt.After(p.CreatedAt) && withinDays(p.UpdatedAt, now, recentActivityDays):
			activity = append(activity, domain.ActivityItem{EntityID: p.ID, Title: p.Title, Event: "updated", At: p.UpdatedAt})
		case withinDays(p.CreatedAt, now, recentActivityDays):
			activity = append(activity, domain.ActivityItem{EntityID: p.ID, Title: p.Title, Event: "created", At: p.CreatedAt})
		}
	}
	stats.Stale = len(stale)

	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].DaysSinceUpdate > stale[j].DaysSinceUpdate
	})

	return domain.PropertySection{
		Stats:          stats,
		StaleList:      capSlice(stale, stalePropertyCap),
		RecentActivity: capSlice(sortActivity(activity), recentActivityCap),
	}
}

func ClassifyConnections(connections []domain.Connection, now time.Time) domain.ConnectionSection {
	stats := domain.ConnectionStats{Total: len(connections)}
	issues := make([]domain.ConnectionIssue, 0)

	for _, c := range connections {
		switch strings.ToUpper(strings.TrimSpace(c.Status)) {
		case "ERROR", "EXPIRED":
			stats.Errored++
			issues = append(issues, domain.ConnectionIssue{
				ConnectionID:    c.ID,
				Provider:        c.Provider,
				Name:            c.Name,
				Status:          strings.ToUpper(c.Status),
				LastError:       c.LastError,
				DaysSinceUpdate: DaysBetween(c.UpdatedAt, now),
			})
		case "ACTIVE", "CONNECTED":
			stats.Active++
		}
	}

	return domain.ConnectionSection{Stats: stats, Issues: issues}
}

func ClassifyTasks(tasks []domain.Task, now time.Time) domain.TaskSection {
	stats := domain.TaskStats{Total: len(tasks)}
	overdue := make([]domain.TaskSummary, 0)
	y, m, d := now.Date()

	for _, t := range tasks {
		if !t.IsOpen() {
			stats.Completed++
			continue
		}
		stats.Open++
		if t.DueAt == nil {
			continue
		}
		if dy, dm, dd := t.DueAt.In(now.Location()).Date(); dy == y && dm == m && dd == d {
			stats.DueToday++
		}
		if t.DueAt.Before(now) {
			overdue = append(overdue, domain.TaskSummary{
				ID:          t.ID,
				Title:       t.Title,
				Priority:    t.Priority,
				DueAt:       *t.DueAt,
				DaysOverdue: DaysBetween(*t.DueAt, now),
				LeadID:      t.LeadID,
			})
		}
	}
	stats.Overdue = len(overdue)

	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].DaysOverdue > overdue[j].DaysOverdue
	})

	return domain.TaskSection{Stats: stats, OverdueList: capSlice(overdue, overdueTaskCap)}
}

func capSlice[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit:limit]
	}
	return items
}
