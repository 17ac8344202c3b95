package service

import (
	"fmt"
	"sort"
	"strconv"

	"portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/platform/sanitize"
)

const (
	recommendationCap       = 5
	followUpLeadLimit       = 3
	pauseCampaignLimit      = 2
	updatePropertyLimit     = 2
	overdueTaskMetaMinimum  = 3
	overdueRecommendationID = "overdue"

	// Keeps "Follow up with {name}" inside create_task's 200 character title.
	titleNameLimit = 150
)

// Tool names referenced by recommendation actions. They must match the
// assistant's dispatcher.
const (
	ToolCreateTask    = "create_task"
	ToolPauseCampaign = "pause_campaign"
	ToolOpenEntity    = "open_entity"
)

// Rank turns classifier output into at most five recommendations, highest
// priority first. Within one priority the first recommendation of every type
// precedes the second of any type, then generation order decides, so the cap
// trims repeats before it drops a whole category.
func Rank(c Classified) []domain.Recommendation {
	recs := make([]domain.Recommendation, 0, recommendationCap)

	for i, lead := range c.Leads.StaleList {
		if i == followUpLeadLimit {
			break
		}
		priority := domain.PriorityMedium
		if lead.Score == domain.ScoreHot {
			priority = domain.PriorityHigh
		}
		name := sanitize.Truncate(lead.Name, titleNameLimit)
		title := fmt.Sprintf("Follow up with %s", name)
		recs = append(recs, domain.Recommendation{
			ID:          domain.RecommendationID(domain.RecommendFollowUpLead, lead.ID.String()),
			Type:        domain.RecommendFollowUpLead,
			Priority:    priority,
			Title:       title,
			Target:      name,
			Description: fmt.Sprintf("%s lead with no contact for %d days.", lead.Score, lead.IdleDays()),
			Action: domain.Action{
				ToolName: ToolCreateTask,
				Params:   map[string]any{"title": title, "leadId": lead.ID.String()},
			},
			EntityRef: &domain.EntityRef{Type: domain.EntityLead, ID: lead.ID},
		})
	}

	paused := make(map[string]bool, pauseCampaignLimit)
	for _, issue := range c.Campaigns.Issues {
		if len(paused) == pauseCampaignLimit {
			break
		}
		if issue.IssueKind != domain.IssueOverspend && issue.IssueKind != domain.IssueNoTraffic {
			continue
		}
		if paused[issue.CampaignID.String()] {
			continue
		}
		paused[issue.CampaignID.String()] = true
		priority := domain.PriorityMedium
		if issue.Severity == domain.PriorityHigh {
			priority = domain.PriorityHigh
		}
		recs = append(recs, domain.Recommendation{
			ID:          domain.RecommendationID(domain.RecommendPauseCampaign, issue.CampaignID.String()),
			Type:        domain.RecommendPauseCampaign,
			Priority:    priority,
			Title:       fmt.Sprintf("Pause %s", issue.CampaignName),
			Target:      issue.CampaignName,
			Description: issue.Suggestion,
			Action: domain.Action{
				ToolName: ToolPauseCampaign,
				Params:   map[string]any{"campaignId": issue.CampaignID.String()},
			},
			EntityRef: &domain.EntityRef{Type: domain.EntityCampaign, ID: issue.CampaignID},
		})
	}

	for i, p := range c.Properties.StaleList {
		if i == updatePropertyLimit {
			break
		}
		recs = append(recs, domain.Recommendation{
			ID:          domain.RecommendationID(domain.RecommendUpdateProperty, p.ID.String()),
			Type:        domain.RecommendUpdateProperty,
			Priority:    domain.PriorityMedium,
			Title:       fmt.Sprintf("Refresh listing %s", p.Title),
			Target:      p.Title,
			Description: fmt.Sprintf("Not updated for %d days.", p.DaysSinceUpdate),
			Action:      openEntityAction(domain.EntityProperty, p.ID.String()),
			EntityRef:   &domain.EntityRef{Type: domain.EntityProperty, ID: p.ID},
		})
	}

	for _, issue := range c.Connections.Issues {
		recs = append(recs, domain.Recommendation{
			ID:          domain.RecommendationID(domain.RecommendFixConnection, issue.ConnectionID.String()),
			Type:        domain.RecommendFixConnection,
			Priority:    domain.PriorityHigh,
			Title:       fmt.Sprintf("Reconnect %s", issue.Name),
			Target:      issue.Name,
			Description: fmt.Sprintf("%s connection is %s for %d days.", issue.Provider, issue.Status, issue.DaysSinceUpdate),
			Action:      openEntityAction(domain.EntityConnection, issue.ConnectionID.String()),
			EntityRef:   &domain.EntityRef{Type: domain.EntityConnection, ID: issue.ConnectionID},
		})
	}

	if overdue := c.Tasks.Stats.Overdue; overdue > overdueTaskMetaMinimum {
		title := fmt.Sprintf("Review %d overdue tasks", overdue)
		recs = append(recs, domain.Recommendation{
			ID:          domain.RecommendationID(domain.RecommendCreateTask, overdueRecommendationID),
			Type:        domain.RecommendCreateTask,
			Priority:    domain.PriorityMedium,
			Title:       title,
			Target:      strconv.Itoa(overdue),
			Description: "Block time to clear or reschedule the backlog.",
			Action: domain.Action{
				ToolName: ToolCreateTask,
				Params:   map[string]any{"title": title, "priority": string(domain.PriorityHigh)},
			},
		})
	}

	ordinal := make([]int, len(recs))
	seen := make(map[domain.RecommendationType]int)
	for i, r := range recs {
		ordinal[i] = seen[r.Type]
		seen[r.Type]++
	}
	idx := make([]int, len(recs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := recs[idx[a]].Priority.Rank(), recs[idx[b]].Priority.Rank()
		if ra != rb {
			return ra > rb
		}
		return ordinal[idx[a]] < ordinal[idx[b]]
	})

	out := make([]domain.Recommendation, 0, recommendationCap)
	for _, i := range idx {
		if len(out) == recommendationCap {
			break
		}
		out = append(out, recs[i])
	}
	return out
}

func openEntityAction(kind domain.EntityType, id string) domain.Action {
	return domain.Action{
		ToolName: ToolOpenEntity,
		Params:   map[string]any{"entityType": string(kind), "entityId": id},
	}
}
