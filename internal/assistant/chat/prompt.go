package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"portal_insights_backend/internal/assistant/domain"
	insightsdomain "portal_insights_backend/internal/insights/domain"

	"google.golang.org/genai"
)

const (
	historyWindow     = 8
	promptListLimit   = 3
	promptRecsLimit   = 5
	generatedAtLayout = "2006-01-02 15:04"
)

// systemPrompt is the role framing followed by a localized summary of the
// snapshot.
func systemPrompt(snap insightsdomain.Snapshot, loc Locale) string {
	var b strings.Builder
	b.WriteString(loc.Text("framing"))
	b.WriteString("\n\n")

	b.WriteString(loc.Format("context",
		"window", itoa(snap.Meta.WindowDays),
		"generated", localTime(snap.Meta.GeneratedAt, snap.Meta.Timezone),
		"timezone", snap.Meta.Timezone,
	))
	b.WriteString("\n")

	ls := snap.Leads.Stats
	line(&b, loc.Format("summary_leads",
		"total", itoa(ls.Total), "hot", itoa(ls.Hot), "warm", itoa(ls.Warm), "cold", itoa(ls.Cold),
		"stale", itoa(ls.Stale), "new", itoa(ls.NewThisWeek),
	))
	cs := snap.Campaigns.Stats
	line(&b, loc.Format("summary_campaigns",
		"active", itoa(cs.Active), "total", itoa(cs.Total),
		"spend", fmt.Sprintf("%.2f", cs.Last7Days.Spend),
		"clicks", strconv.FormatInt(cs.Last7Days.Clicks, 10),
		"ctr", fmt.Sprintf("%.2f", cs.CTR7d),
		"conversions", strconv.FormatInt(cs.Last7Days.Conversions, 10),
		"issues", itoa(len(snap.Campaigns.Issues)),
	))
	ps := snap.Properties.Stats
	line(&b, loc.Format("summary_properties",
		"active", itoa(ps.Active), "total", itoa(ps.Total), "stale", itoa(ps.Stale), "incomplete", itoa(ps.IncompleteCount),
	))
	cn := snap.Connections.Stats
	line(&b, loc.Format("summary_connections",
		"active", itoa(cn.Active), "total", itoa(cn.Total), "errored", itoa(cn.Errored),
	))
	ts := snap.Tasks.Stats
	line(&b, loc.Format("summary_tasks",
		"open", itoa(ts.Open), "overdue", itoa(ts.Overdue), "today", itoa(ts.DueToday),
	))

	if leads := snap.Leads.StaleList; len(leads) > 0 {
		b.WriteString("\n")
		line(&b, loc.Text("stale_leads_header"))
		for _, l := range head(leads, promptListLimit) {
			line(&b, fmt.Sprintf("- %s (id %s, %s, %s, %d days idle)", l.Name, l.ID, l.Score, l.Status, l.IdleDays()))
		}
	}
	if issues := snap.Campaigns.Issues; len(issues) > 0 {
		b.WriteString("\n")
		line(&b, loc.Text("campaign_issues_header"))
		for _, is := range head(issues, promptListLimit) {
			line(&b, fmt.Sprintf("- [%s] %s (id %s): %s", is.Severity, is.CampaignName, is.CampaignID, is.Suggestion))
		}
	}
	if recs := snap.Recommendations; len(recs) > 0 {
		b.WriteString("\n")
		line(&b, loc.Text("recommendations_header"))
		for _, r := range head(recs, promptRecsLimit) {
			line(&b, fmt.Sprintf("- [%s] %s (tool %s)", r.Priority, r.Title, r.Action.ToolName))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// welcomePrompt is the templated opening line plus at most one stale lead
// and one campaign issue as examples.
func welcomePrompt(snap insightsdomain.Snapshot, loc Locale) string {
	parts := []string{loc.Text("welcome_opening")}
	if len(snap.Leads.StaleList) > 0 {
		l := snap.Leads.StaleList[0]
		parts = append(parts, loc.Format("welcome_lead_example", "name", l.Name, "days", itoa(l.IdleDays())))
	}
	if len(snap.Campaigns.Issues) > 0 {
		is := snap.Campaigns.Issues[0]
		parts = append(parts, loc.Format("welcome_campaign_example", "campaign", is.CampaignName, "suggestion", is.Suggestion))
	}
	return strings.Join(parts, " ")
}

// chatContents is the last historyWindow session messages followed by the new
// user message. System messages stay out of the model history.
func chatContents(history []domain.Message, message string) []*genai.Content {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case domain.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		}
	}
	return append(contents, genai.NewContentFromText(message, genai.RoleUser))
}

func localTime(t time.Time, tz string) string {
	if loc, err := time.LoadLocation(tz); err == nil {
		t = t.In(loc)
	}
	return t.Format(generatedAtLayout)
}

func line(b *strings.Builder, s string) {
	b.WriteString(s)
	b.WriteString("\n")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
