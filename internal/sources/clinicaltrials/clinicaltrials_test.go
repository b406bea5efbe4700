package clinicaltrials

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/mkoziy/biomed-miners/internal/apiclient"
	"github.com/mkoziy/biomed-miners/internal/database"
	"github.com/mkoziy/biomed-miners/internal/migrations"
)

type mockLimiter struct{}

func (mockLimiter) Wait(ctx context.Context) error       { return nil }
func (mockLimiter) RetryAfter(attempt int) time.Duration { return 0 }

func studyJSON(nct string) string {
	return fmt.Sprintf(`{
  "protocolSection": {
    "identificationModule": {"nctId": %q, "briefTitle": "Aspirin in Primary Prevention", "acronym": "ASPREE"},
    "statusModule": {"overallStatus": "COMPLETED", "startDateStruct": {"date": "2010-03"}, "completionDateStruct": {"date": "2017-06-12"}},
    "sponsorCollaboratorsModule": {"leadSponsor": {"name": "Monash University", "class": "OTHER"}, "collaborators": [{"name": "NIA", "class": "NIH"}]},
    "conditionsModule": {"conditions": ["Dementia", "Cardiovascular Disease"], "keywords": ["aspirin"]},
    "designModule": {"studyType": "INTERVENTIONAL", "phases": ["PHASE4"], "enrollmentInfo": {"count": 19114}},
    "armsInterventionsModule": {"interventions": [{"type": "DRUG", "name": "Aspirin"}]},
    "outcomesModule": {"primaryOutcomes": [{"measure": "Disability-free survival", "timeFrame": "5 years"}], "secondaryOutcomes": [{"measure": "Cancer"}]},
    "eligibilityModule": {"eligibilityCriteria": "Age >= 70", "healthyVolunteers": true, "sex": "ALL", "stdAges": ["OLDER_ADULT"]},
    "contactsLocationsModule": {"locations": [{"facility": "Monash", "city": "Melbourne", "country": "Australia", "geoPoint": {"lat": -37.8, "lon": 144.9}}]},
    "referencesModule": {"references": [{"pmid": "30221596", "type": "RESULT", "citation": "McNeil JJ et al."}]}
  },
  "resultsSection": {"adverseEventsModule": {"seriousEvents": [{"term": "Bleeding", "organSystem": "Vascular", "stats": [{"groupId": "EG000", "numAffected": 3, "numAtRisk": 100}, {"groupId": "EG001", "numAffected": 1, "numAtRisk": 100}]}]}},
  "hasResults": true
}`, nct)
}

func setup(t *testing.T, handler http.Handler) (*bun.DB, *Client) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := baseURL
	baseURL = ts.URL
	t.Cleanup(func() { baseURL = old })

	db, err := database.NewDB(filepath.Join(t.TempDir(), "ct.db"), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := migrations.Run(context.Background(), db, migrations.New(Schema), zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, NewClient(mockLimiter{}, apiclient.Options{MaxRetries: 2}, nil)
}

func TestHarvestFollowsPageTokens(t *testing.T) {
	var tokens []string
	db, client := setup(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/studies" {
			http.NotFound(w, r)
			return
		}
		token := r.URL.Query().Get("pageToken")
		tokens = append(tokens, token)
		switch token {
		case "":
			fmt.Fprintf(w, `{"studies": [%s], "nextPageToken": "page2", "totalCount": 2}`, studyJSON("NCT01038583"))
		case "page2":
			fmt.Fprintf(w, `{"studies": [%s], "totalCount": 2}`, studyJSON("NCT00000001"))
		default:
			t.Errorf("unexpected token %q", token)
		}
	}))

	ctx := context.Background()
	rep, err := NewHarvester(db, client, nil, nil).Run(ctx, "aspirin", 100)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if rep.Created != 2 || rep.Total != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected two page requests, got %v", tokens)
	}

	trial := new(Trial)
	if err := db.NewSelect().Model(trial).Where("nct_id = ?", "NCT01038583").Scan(ctx); err != nil {
		t.Fatalf("select trial: %v", err)
	}
	if trial.Enrollment == nil || *trial.Enrollment != 19114 {
		t.Fatalf("unexpected enrollment %v", trial.Enrollment)
	}
	if trial.StartDate == nil || trial.StartDate.Year() != 2010 || trial.StartDate.Month() != time.March {
		t.Fatalf("unexpected start date %v", trial.StartDate)
	}
	if len(trial.Phases) != 1 || trial.Phases[0] != "PHASE4" {
		t.Fatalf("unexpected phases %v", trial.Phases)
	}

	ae := new(AdverseEvent)
	if err := db.NewSelect().Model(ae).Where("nct_id = ?", "NCT01038583").Scan(ctx); err != nil {
		t.Fatalf("select adverse event: %v", err)
	}
	if !ae.Serious || ae.NumAffected != 4 || ae.NumAtRisk != 200 {
		t.Fatalf("unexpected adverse event %+v", ae)
	}

	var orgs []Organization
	if err := db.NewSelect().Model(&orgs).Where("nct_id = ?", "NCT01038583").Order("id").Scan(ctx); err != nil {
		t.Fatalf("select orgs: %v", err)
	}
	if len(orgs) != 2 || orgs[0].Role != "sponsor" || orgs[1].Role != "collaborator" {
		t.Fatalf("unexpected organizations %+v", orgs)
	}
}

func TestSaveReplacesChildren(t *testing.T) {
	db, _ := setup(t, http.NotFoundHandler())
	ctx := context.Background()

	b := &Bundle{
		Trial:      &Trial{NctID: "NCT1", UpdatedAt: time.Now()},
		Conditions: []Condition{{NctID: "NCT1", Name: "A"}, {NctID: "NCT1", Name: "B"}},
	}
	if err := Save(ctx, db, b); err != nil {
		t.Fatalf("save: %v", err)
	}

	title := "updated"
	b.Trial.BriefTitle = &title
	b.Conditions = []Condition{{NctID: "NCT1", Name: "C"}}
	if err := Save(ctx, db, b); err != nil {
		t.Fatalf("resave: %v", err)
	}

	var conds []Condition
	if err := db.NewSelect().Model(&conds).Scan(ctx); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(conds) != 1 || conds[0].Name != "C" {
		t.Fatalf("expected replaced conditions, got %+v", conds)
	}

	n, err := db.NewSelect().Model((*Trial)(nil)).Where("brief_title = ?", "updated").Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected upsert to overwrite scalar fields, got %d (%v)", n, err)
	}
}

func TestMapStudyRejectsMissingID(t *testing.T) {
	if _, err := MapStudy(Study{}); err == nil {
		t.Fatalf("expected invalid record error")
	}
}

func TestParseDate(t *testing.T) {
	if d := ParseDate("2017-06-12"); d == nil || d.Day() != 12 {
		t.Fatalf("unexpected full date %v", d)
	}
	if d := ParseDate("2010-03"); d == nil || d.Month() != time.March {
		t.Fatalf("unexpected month date %v", d)
	}
	if ParseDate("sometime") != nil {
		t.Fatalf("expected nil for unparseable date")
	}
}
