package http

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/domain"
	"edu-duel-service/internal/infra/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	directory := memory.NewDirectory(memory.Fixture{
		Subjects:      map[string][]string{"math": nil},
		Classes:       map[string][]string{"class-1": {"alice", "bob", "carol"}},
		ClassSubjects: map[string][]string{"class-1": {"math"}},
		Questions: map[string][]domain.PoolQuestion{
			"math": {
				{ID: "q1", Prompt: "2+2?", Options: []domain.PoolOption{
					{ID: "q1-a", Text: "3", SortOrder: 1},
					{ID: "q1-b", Text: "4", Correct: true, SortOrder: 2},
				}},
				{ID: "q2", Prompt: "3*3?", Options: []domain.PoolOption{
					{ID: "q2-a", Text: "9", Correct: true, SortOrder: 1},
					{ID: "q2-b", Text: "6", SortOrder: 2},
				}},
			},
		},
	})
	repo := memory.NewDuelRepository()
	hub := app.NewWatchHub()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var tick time.Duration
	service := app.NewDuelService(repo, directory, directory,
		app.NewEligibilityChecker(directory, directory, directory),
		hub, app.Defaults{}).
		WithClock(func() time.Time { tick += time.Second; return base.Add(tick) }).
		WithRand(rand.New(rand.NewSource(1)))
	stats := app.NewStatsService(repo)
	return NewRouter(service, stats, hub)
}

func doJSON(t *testing.T, router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeDuel(t *testing.T, rec *httptest.ResponseRecorder) app.DuelView {
	t.Helper()
	var view app.DuelView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode duel view: %v (body %s)", err, rec.Body.String())
	}
	return view
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rec.Code)
	}
}

func TestMissingUserHeaderRejected(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/duels", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestDuelLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	// Create.
	rec := doJSON(t, router, http.MethodPost, "/api/duels", "alice", gin.H{"subjectId": "math", "bestOf": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	duel := decodeDuel(t, rec)
	if duel.Status != domain.DuelStatusPending || duel.BestOf != 1 {
		t.Fatalf("unexpected created duel: %+v", duel)
	}

	// Invite and accept.
	rec = doJSON(t, router, http.MethodPost, "/api/duels/"+duel.ID+"/invite", "alice", gin.H{"inviteeId": "bob"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("invite = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/duels/invitations", "bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("invitations = %d", rec.Code)
	}
	var invitations struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &invitations); err != nil || invitations.Total != 1 {
		t.Fatalf("expected 1 invitation, got %s (%v)", rec.Body.String(), err)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/duels/"+duel.ID+"/accept", "bob", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("accept = %d: %s", rec.Code, rec.Body.String())
	}

	// The duel is active with an open round that hides the correct index.
	rec = doJSON(t, router, http.MethodGet, "/api/duels/"+duel.ID, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d: %s", rec.Code, rec.Body.String())
	}
	active := decodeDuel(t, rec)
	if active.Status != domain.DuelStatusActive || len(active.Rounds) != 1 {
		t.Fatalf("expected active duel with round 1: %+v", active)
	}
	round := active.Rounds[0]
	if round.CorrectIndex != nil {
		t.Fatalf("open round leaked the correct index")
	}

	// Both answer; the match is best-of-1 so it completes.
	for _, sub := range []struct {
		user   string
		option string
		ms     int
	}{
		{user: "alice", option: round.QuestionID + "-b", ms: 700},
		{user: "bob", option: round.QuestionID + "-a", ms: 900},
	} {
		body := gin.H{"questionId": round.QuestionID, "optionId": sub.option, "responseTimeMs": sub.ms}
		rec = doJSON(t, router, http.MethodPost, "/api/duels/"+duel.ID+"/answers", sub.user, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("answer by %s = %d: %s", sub.user, rec.Code, rec.Body.String())
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/api/duels/"+duel.ID, "bob", nil)
	done := decodeDuel(t, rec)
	if done.Status != domain.DuelStatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Rounds[0].CorrectIndex == nil {
		t.Fatalf("closed round must reveal the correct index")
	}

	// Stats reflect the result.
	rec = doJSON(t, router, http.MethodGet, "/api/stats?subjectId=math", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d: %s", rec.Code, rec.Body.String())
	}
	var stats domain.DuelStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 1 || stats.Wins != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	// Unknown subject -> 404.
	rec := doJSON(t, router, http.MethodPost, "/api/duels", "alice", gin.H{"subjectId": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown subject = %d, want 404", rec.Code)
	}

	// Missing required field -> 400.
	rec = doJSON(t, router, http.MethodPost, "/api/duels", "alice", gin.H{"bestOf": 3})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing subjectId = %d, want 400", rec.Code)
	}

	// Unknown duel -> 404.
	rec = doJSON(t, router, http.MethodGet, "/api/duels/missing", "alice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown duel = %d, want 404", rec.Code)
	}

	// Bad status filter -> 400.
	rec = doJSON(t, router, http.MethodGet, "/api/duels?status=bogus", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter = %d, want 400", rec.Code)
	}

	// Accept without an invitation -> 409.
	rec = doJSON(t, router, http.MethodPost, "/api/duels", "alice", gin.H{"subjectId": "math"})
	duel := decodeDuel(t, rec)
	rec = doJSON(t, router, http.MethodPost, "/api/duels/"+duel.ID+"/accept", "alice", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("uninvited accept = %d, want 409", rec.Code)
	}

	// Non-participant fetch -> 403.
	rec = doJSON(t, router, http.MethodGet, "/api/duels/"+duel.ID, "carol", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider get = %d, want 403", rec.Code)
	}
}

func TestClassmatesEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/duels/classmates?subjectId=math", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("classmates = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Classmates []string `json:"classmates"`
		Total      int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Classmates) != 2 {
		t.Fatalf("expected bob and carol, got %+v", resp)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/duels/classmates", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing subjectId = %d, want 400", rec.Code)
	}
}
