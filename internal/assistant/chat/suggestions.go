package chat

import (
	"portal_insights_backend/internal/assistant/domain"
	insightsdomain "portal_insights_backend/internal/insights/domain"
)

// MaxSuggestions caps the quick actions attached to a reply.
const MaxSuggestions = 3

// Recommendation types with suggest_rec_<type>_label/_prompt texts.
var suggestedTypes = map[insightsdomain.RecommendationType]bool{
	insightsdomain.RecommendFollowUpLead:   true,
	insightsdomain.RecommendPauseCampaign:  true,
	insightsdomain.RecommendUpdateProperty: true,
	insightsdomain.RecommendFixConnection:  true,
	insightsdomain.RecommendCreateTask:     true,
}

// Suggestions derives quick actions from the snapshot: the most urgent stale
// lead, the most severe campaign issue, then the top recommendation not
// already covered. An overview prompt fills a remaining slot.
func Suggestions(snap insightsdomain.Snapshot, loc Locale) []domain.Suggestion {
	out := make([]domain.Suggestion, 0, MaxSuggestions)
	covered := map[insightsdomain.RecommendationType]bool{}

	if len(snap.Leads.StaleList) > 0 {
		name := snap.Leads.StaleList[0].Name
		out = append(out, domain.Suggestion{
			Label:  loc.Format("suggest_follow_up_label", "name", name),
			Prompt: loc.Format("suggest_follow_up_prompt", "name", name),
			Kind:   string(insightsdomain.EntityLead),
		})
		covered[insightsdomain.RecommendFollowUpLead] = true
	}
	if len(snap.Campaigns.Issues) > 0 {
		campaign := snap.Campaigns.Issues[0].CampaignName
		out = append(out, domain.Suggestion{
			Label:  loc.Format("suggest_campaign_label", "campaign", campaign),
			Prompt: loc.Format("suggest_campaign_prompt", "campaign", campaign),
			Kind:   string(insightsdomain.EntityCampaign),
		})
		covered[insightsdomain.RecommendPauseCampaign] = true
	}
	for _, rec := range snap.Recommendations {
		if covered[rec.Type] || !suggestedTypes[rec.Type] {
			continue
		}
		key := "suggest_rec_" + string(rec.Type)
		out = append(out, domain.Suggestion{
			Label:  loc.Format(key+"_label", "name", rec.Target, "count", rec.Target),
			Prompt: loc.Format(key+"_prompt", "name", rec.Target, "count", rec.Target),
			Kind:   "recommendation",
		})
		break
	}
	if len(out) < MaxSuggestions {
		out = append(out, domain.Suggestion{
			Label:  loc.Text("suggest_overview_label"),
			Prompt: loc.Text("suggest_overview_prompt"),
			Kind:   "overview",
		})
	}
	return head(out, MaxSuggestions)
}
