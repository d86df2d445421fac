package app_test

import (
	"context"
	"math/rand"
	"testing"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/domain"
	"edu-duel-service/internal/infra/memory"
)

func TestRoundsNeverRepeatQuestions(t *testing.T) {
	env := newTestEnv(t, 3)
	duelID := env.activeDuel(t, 5)

	// Nobody scores, so the engine keeps drawing rounds until the 3-question
	// pool runs dry and the duel force-completes.
	for i := 0; i < 3; i++ {
		if err := env.answer(t, duelID, "u1", false, 500); err != nil {
			t.Fatalf("round %d u1: %v", i+1, err)
		}
		if err := env.answer(t, duelID, "u2", false, 600); err != nil {
			t.Fatalf("round %d u2: %v", i+1, err)
		}
	}

	duel := env.storedDuel(t, duelID)
	if duel.Status != domain.DuelStatusCompleted {
		t.Fatalf("expected completion once the pool is exhausted, got %s", duel.Status)
	}
	seen := make(map[string]bool, len(duel.Rounds))
	for i, round := range duel.Rounds {
		if round.Number != i+1 {
			t.Fatalf("round numbers must increase from 1, got %d at position %d", round.Number, i)
		}
		if seen[round.QuestionID] {
			t.Fatalf("question %s repeated within the duel", round.QuestionID)
		}
		seen[round.QuestionID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all 3 pool questions used, got %d", len(seen))
	}
}

func TestSnapshotOrdersOptionsBySortOrder(t *testing.T) {
	directory := memory.NewDirectory(memory.Fixture{
		Subjects:      map[string][]string{"sub-1": nil},
		Classes:       map[string][]string{"class-1": {"u1", "u2"}},
		ClassSubjects: map[string][]string{"class-1": {"sub-1"}},
		Questions: map[string][]domain.PoolQuestion{
			"sub-1": {{
				ID:     "q1",
				Prompt: "Pick the largest number",
				Options: []domain.PoolOption{
					{ID: "opt-last", Text: "9", Correct: true, SortOrder: 3},
					{ID: "opt-first", Text: "1", SortOrder: 1},
					{ID: "opt-mid", Text: "5", SortOrder: 2},
				},
			}},
		},
	})
	repo := memory.NewDuelRepository()
	service := app.NewDuelService(repo, directory, directory,
		app.NewEligibilityChecker(directory, directory, directory),
		app.NewWatchHub(), app.Defaults{TimeLimitSec: 20}).
		WithClock(newFakeClock().Now).
		WithRand(rand.New(rand.NewSource(1)))

	ctx := context.Background()
	view, err := service.Create(ctx, "u1", "sub-1", nil, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := service.Invite(ctx, view.ID, "u1", "u2"); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := service.Accept(ctx, view.ID, "u2"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	duel, err := repo.Get(ctx, view.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	round := duel.Rounds[0]
	want := []string{"1", "5", "9"}
	if len(round.Options) != 3 {
		t.Fatalf("expected 3 option texts, got %d", len(round.Options))
	}
	for i, text := range want {
		if round.Options[i] != text {
			t.Fatalf("option %d = %q, want %q", i, round.Options[i], text)
		}
	}
	if round.CorrectIndex != 2 {
		t.Fatalf("correct index = %d, want 2 after sorting", round.CorrectIndex)
	}
	if idx, ok := round.OptionIndex["opt-mid"]; !ok || idx != 1 {
		t.Fatalf("option-id lookup for opt-mid = %d (%v), want 1", idx, ok)
	}
	if round.TimeLimitSec != 20 {
		t.Fatalf("time limit = %d, want the configured 20", round.TimeLimitSec)
	}
}

func TestSnapshotIsImmuneToPoolEdits(t *testing.T) {
	questions := []domain.PoolQuestion{poolQuestion("q1"), poolQuestion("q2")}
	directory := memory.NewDirectory(memory.Fixture{
		Subjects:      map[string][]string{"sub-1": nil},
		Classes:       map[string][]string{"class-1": {"u1", "u2"}},
		ClassSubjects: map[string][]string{"class-1": {"sub-1"}},
		Questions:     map[string][]domain.PoolQuestion{"sub-1": questions},
	})
	repo := memory.NewDuelRepository()
	service := app.NewDuelService(repo, directory, directory,
		app.NewEligibilityChecker(directory, directory, directory),
		app.NewWatchHub(), app.Defaults{}).
		WithClock(newFakeClock().Now).
		WithRand(rand.New(rand.NewSource(1)))

	ctx := context.Background()
	view, err := service.Create(ctx, "u1", "sub-1", nil, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := service.Invite(ctx, view.ID, "u1", "u2"); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := service.Accept(ctx, view.ID, "u2"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	duel, err := repo.Get(ctx, view.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	round := duel.Rounds[0]
	frozenPrompt := round.Prompt
	frozenOptions := append([]string(nil), round.Options...)

	// Rewrite the source slice the fixture was built from.
	for i := range questions {
		questions[i].Prompt = "EDITED"
		for j := range questions[i].Options {
			questions[i].Options[j].Text = "EDITED"
		}
	}

	duel, err = repo.Get(ctx, view.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	round = duel.Rounds[0]
	if round.Prompt != frozenPrompt {
		t.Fatalf("prompt changed after pool edit: %q", round.Prompt)
	}
	for i, text := range frozenOptions {
		if round.Options[i] != text {
			t.Fatalf("option %d changed after pool edit: %q", i, round.Options[i])
		}
	}
}

func TestLevelScopedPool(t *testing.T) {
	directory := memory.NewDirectory(memory.Fixture{
		Subjects:      map[string][]string{"sub-1": {"l1", "l2"}},
		Classes:       map[string][]string{"class-1": {"u1", "u2"}},
		ClassSubjects: map[string][]string{"class-1": {"sub-1"}},
		Questions: map[string][]domain.PoolQuestion{
			"sub-1":    {poolQuestion("subject-wide")},
			"sub-1/l1": {poolQuestion("level-only")},
		},
	})
	repo := memory.NewDuelRepository()
	service := app.NewDuelService(repo, directory, directory,
		app.NewEligibilityChecker(directory, directory, directory),
		app.NewWatchHub(), app.Defaults{}).
		WithClock(newFakeClock().Now).
		WithRand(rand.New(rand.NewSource(1)))

	ctx := context.Background()
	level := "l1"
	view, err := service.Create(ctx, "u1", "sub-1", &level, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := service.Invite(ctx, view.ID, "u1", "u2"); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := service.Accept(ctx, view.ID, "u2"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	duel, err := repo.Get(ctx, view.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := duel.Rounds[0].QuestionID; got != "level-only" {
		t.Fatalf("level duel drew %q, want the level-scoped question", got)
	}
}
