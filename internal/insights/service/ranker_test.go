package service

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"portal_insights_backend/internal/insights/domain"

	"github.com/google/uuid"
)

func TestRankHotLeadAndConnectionErrorAreBothHigh(t *testing.T) {
	leads := []domain.LeadRecord{{ID: uuid.New(), Name: "Ana", Score: domain.ScoreHot, CreatedAt: daysAgo(10)}}
	connections := []domain.Connection{{ID: uuid.New(), Provider: "meta", Name: "Meta Ads", Status: "ERROR", UpdatedAt: daysAgo(5)}}

	recs := Rank(Classify(RawRecords{Leads: leads, Connections: connections}, 30, testNow))

	found := map[domain.RecommendationType]domain.Priority{}
	for _, r := range recs {
		found[r.Type] = r.Priority
	}
	if found[domain.RecommendFollowUpLead] != domain.PriorityHigh || found[domain.RecommendFixConnection] != domain.PriorityHigh {
		t.Fatalf("expected both high priority, got %+v", recs)
	}
}

func TestRankIsCappedSortedAndDeterministic(t *testing.T) {
	raw := RawRecords{}
	for i := 0; i < 6; i++ {
		raw.Leads = append(raw.Leads, domain.LeadRecord{ID: uuid.New(), Name: "lead", Score: domain.ScoreWarm, CreatedAt: daysAgo(10 + i)})
		raw.Connections = append(raw.Connections, domain.Connection{ID: uuid.New(), Name: "c", Status: "ERROR", UpdatedAt: daysAgo(1)})
	}

	first := Rank(Classify(raw, 30, testNow))
	second := Rank(Classify(raw, 30, testNow))

	if len(first) != recommendationCap {
		t.Fatalf("expected %d recommendations, got %d", recommendationCap, len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].Priority.Rank() < first[i].Priority.Rank() {
			t.Fatalf("recommendations not sorted by priority at %d", i)
		}
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("ranking not deterministic at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestRankActionsNameDispatcherTools(t *testing.T) {
	campaignID := uuid.New()
	propertyID := uuid.New()
	raw := RawRecords{
		Campaigns: []domain.Campaign{{ID: campaignID, ExternalID: "x", Name: "Burner", Status: "ACTIVE", LastSyncedAt: ptrTime(testNow)}},
		Insights:  []domain.Insight{{CampaignExternalID: "x", Date: daysAgo(1), Spend: 80, Impressions: 20}},
		Properties: []domain.Property{
			{ID: propertyID, Title: "Loft", Status: "active", CreatedAt: daysAgo(60), UpdatedAt: daysAgo(30)},
		},
	}

	recs := Rank(Classify(raw, 30, testNow))

	if len(recs) != 2 {
		t.Fatalf("expected one pause and one property recommendation, got %+v", recs)
	}
	pause := recs[0]
	if pause.Type != domain.RecommendPauseCampaign || pause.Priority != domain.PriorityHigh || pause.ID != "pause_campaign:"+campaignID.String() {
		t.Fatalf("unexpected pause recommendation %+v", pause)
	}
	if pause.Action.ToolName != ToolPauseCampaign || pause.Action.Params["campaignId"] != campaignID.String() {
		t.Fatalf("unexpected pause action %+v", pause.Action)
	}
	prop := recs[1]
	if prop.Action.ToolName != ToolOpenEntity || prop.Action.Params["entityType"] != "property" || prop.EntityRef.ID != propertyID {
		t.Fatalf("unexpected property recommendation %+v", prop)
	}
}

func TestRankEndToEndMix(t *testing.T) {
	raw := RawRecords{
		Leads: []domain.LeadRecord{
			{ID: uuid.New(), Name: "Hot", Score: domain.ScoreHot, CreatedAt: daysAgo(6)},
			{ID: uuid.New(), Name: "W1", Score: domain.ScoreWarm, CreatedAt: daysAgo(7)},
			{ID: uuid.New(), Name: "W2", Score: domain.ScoreWarm, CreatedAt: daysAgo(8)},
			{ID: uuid.New(), Name: "C1", Score: domain.ScoreCold, CreatedAt: daysAgo(9)},
		},
		Campaigns:   []domain.Campaign{{ID: uuid.New(), ExternalID: "x", Name: "Spend", Status: "ACTIVE", LastSyncedAt: ptrTime(testNow)}},
		Insights:    []domain.Insight{{CampaignExternalID: "x", Date: daysAgo(2), Spend: 80, Clicks: 40, Impressions: 4000}},
		Connections: []domain.Connection{{ID: uuid.New(), Name: "Meta", Status: "ERROR", UpdatedAt: daysAgo(5)}},
	}
	for i := 0; i < 5; i++ {
		raw.Tasks = append(raw.Tasks, domain.Task{ID: uuid.New(), Title: "t", Status: "TODO", DueAt: ptrTime(testNow.Add(-time.Duration(i+1) * 24 * time.Hour))})
	}

	recs := Rank(Classify(raw, 30, testNow))

	var got []domain.RecommendationType
	for _, r := range recs {
		got = append(got, r.Type)
	}
	want := []domain.RecommendationType{
		domain.RecommendFollowUpLead,
		domain.RecommendPauseCampaign,
		domain.RecommendFixConnection,
		domain.RecommendCreateTask,
		domain.RecommendFollowUpLead,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if recs[3].Priority != domain.PriorityMedium || recs[3].ID != "create_task:overdue" {
		t.Fatalf("unexpected meta task recommendation %+v", recs[3])
	}
}

func TestRankFollowUpTitleFitsTaskTitleLimit(t *testing.T) {
	long := strings.Repeat("Wolfeschlegelsteinhausen ", 12)
	leads := []domain.LeadRecord{{ID: uuid.New(), Name: long, Score: domain.ScoreHot, CreatedAt: daysAgo(10)}}

	recs := Rank(Classify(RawRecords{Leads: leads}, 30, testNow))
	if len(recs) == 0 || recs[0].Type != domain.RecommendFollowUpLead {
		t.Fatalf("expected a follow-up recommendation, got %+v", recs)
	}
	title, _ := recs[0].Action.Params["title"].(string)
	if n := utf8.RuneCountInString(title); n > 200 {
		t.Fatalf("task title has %d runes", n)
	}
	if !strings.HasPrefix(title, "Follow up with Wolfeschlegelsteinhausen") || recs[0].Target == long {
		t.Fatalf("unexpected title %q / target %q", title, recs[0].Target)
	}
}
