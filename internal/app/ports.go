package app

import (
	"context"

	"edu-duel-service/internal/domain"
)

// DuelRepository abstracts how duel aggregates are stored (in-memory,
// Postgres, etc). Mutate is the engine's single write path: the
// implementation must load the duel under a per-duel exclusive boundary (a
// database transaction with a row lock, or an equivalent mutex), apply fn and
// persist the aggregate only when fn returns nil.
type DuelRepository interface {
	Create(ctx context.Context, duel *domain.Duel) error
	Get(ctx context.Context, id string) (*domain.Duel, error)
	Mutate(ctx context.Context, id string, fn func(duel *domain.Duel) error) error

	ListForUser(ctx context.Context, userID string, status *domain.DuelStatus) ([]*domain.Duel, error)
	ListInvitations(ctx context.Context, userID string) ([]*domain.Duel, error)
	// ListCompletedForUser returns completed duels the user took part in,
	// ordered by end time descending. An empty subjectID means all subjects.
	ListCompletedForUser(ctx context.Context, userID, subjectID string) ([]*domain.Duel, error)
}

// QuestionPool is the read-only view over published quiz content, provided by
// the quiz/content subsystem. A nil levelID returns the whole subject pool.
type QuestionPool interface {
	PublishedQuestions(ctx context.Context, subjectID string, levelID *string) ([]domain.PoolQuestion, error)
}

// ContentDirectory exposes the subject/level hierarchy of the content
// subsystem.
type ContentDirectory interface {
	SubjectExists(ctx context.Context, subjectID string) (bool, error)
	LevelBelongsToSubject(ctx context.Context, levelID, subjectID string) (bool, error)
	SubjectLevelIDs(ctx context.Context, subjectID string) ([]string, error)
}

// ClassDirectory exposes class membership, used for eligibility and classmate
// checks.
type ClassDirectory interface {
	ClassIDsOf(ctx context.Context, userID string) ([]string, error)
	MemberIDsOf(ctx context.Context, classID string) ([]string, error)
	ClassIDsForSubject(ctx context.Context, subjectID string) ([]string, error)
}

// ProgressReader exposes per-user study progress. Reading the study text or
// completing the level quiz both count as having cleared a level.
type ProgressReader interface {
	HasSubjectProgress(ctx context.Context, userID, subjectID string) (bool, error)
	LevelCleared(ctx context.Context, userID, levelID string) (bool, error)
}
