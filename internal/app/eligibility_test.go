package app_test

import (
	"context"
	"testing"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/infra/memory"
)

func newChecker() *app.EligibilityChecker {
	directory := memory.NewDirectory(memory.Fixture{
		Subjects: map[string][]string{
			"flat":    nil,
			"leveled": {"lv-1", "lv-2"},
			"remote":  {"lv-9"},
		},
		Classes: map[string][]string{
			"class-1": {"u1", "u2", "u3"},
			"class-2": {"u3", "u4"},
		},
		ClassSubjects: map[string][]string{
			"class-1": {"leveled"},
		},
		SubjectProgress: map[string]bool{
			"u4/leveled": true,
		},
		ClearedLevels: map[string]bool{
			"u5/lv-9": true,
		},
	})
	return app.NewEligibilityChecker(directory, directory, directory)
}

func TestCanCreateDuel(t *testing.T) {
	ctx := context.Background()
	checker := newChecker()

	for _, tc := range []struct {
		name    string
		user    string
		subject string
		want    bool
	}{
		{name: "subject taught in user's class", user: "u1", subject: "leveled", want: true},
		{name: "progress record grants access", user: "u4", subject: "leveled", want: true},
		{name: "subject without levels is open", user: "u4", subject: "flat", want: true},
		{name: "all levels cleared", user: "u5", subject: "remote", want: true},
		{name: "no class, no progress, uncleared levels", user: "u4", subject: "remote", want: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := checker.CanCreateDuel(ctx, tc.user, tc.subject)
			if err != nil {
				t.Fatalf("CanCreateDuel: %v", err)
			}
			if got != tc.want {
				t.Fatalf("CanCreateDuel(%s, %s) = %v, want %v", tc.user, tc.subject, got, tc.want)
			}
		})
	}
}

func TestSameClass(t *testing.T) {
	ctx := context.Background()
	checker := newChecker()

	ok, err := checker.SameClass(ctx, "u1", "u2")
	if err != nil || !ok {
		t.Fatalf("u1/u2 share class-1: got %v, %v", ok, err)
	}
	// u3 bridges both classes.
	ok, err = checker.SameClass(ctx, "u1", "u3")
	if err != nil || !ok {
		t.Fatalf("u1/u3 share class-1: got %v, %v", ok, err)
	}
	ok, err = checker.SameClass(ctx, "u1", "u4")
	if err != nil || ok {
		t.Fatalf("u1/u4 share nothing: got %v, %v", ok, err)
	}
	ok, err = checker.SameClass(ctx, "u1", "nobody")
	if err != nil || ok {
		t.Fatalf("unknown user shares nothing: got %v, %v", ok, err)
	}
}

func TestEligibleClassmatesFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	checker := newChecker()

	// u3's classmates span both classes: u1, u2 (class-1) and u4 (class-2).
	// For "leveled", u1 and u2 qualify through class-1 and u4 through its
	// progress record.
	got, err := checker.EligibleClassmates(ctx, "u3", "leveled")
	if err != nil {
		t.Fatalf("EligibleClassmates: %v", err)
	}
	want := []string{"u1", "u2", "u4"}
	if len(got) != len(want) {
		t.Fatalf("classmates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("classmates = %v, want %v", got, want)
		}
	}

	// For "remote" nobody qualifies.
	got, err = checker.EligibleClassmates(ctx, "u3", "remote")
	if err != nil {
		t.Fatalf("EligibleClassmates: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no eligible classmates for remote, got %v", got)
	}
}

func TestEligibleClassmatesExcludesSelf(t *testing.T) {
	ctx := context.Background()
	checker := newChecker()

	got, err := checker.EligibleClassmates(ctx, "u1", "leveled")
	if err != nil {
		t.Fatalf("EligibleClassmates: %v", err)
	}
	for _, id := range got {
		if id == "u1" {
			t.Fatalf("result must not contain the requesting user: %v", got)
		}
	}
}
