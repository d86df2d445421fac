package app

import (
	"context"
	"fmt"
	"sort"

	"edu-duel-service/internal/domain"
)

// createRound picks an unused published question for the duel's subject/level,
// snapshots its content and appends the new round as open. Callers hold the
// duel's transaction boundary; only one path may create rounds for a duel at a
// time.
func (s *DuelService) createRound(ctx context.Context, duel *domain.Duel) error {
	questions, err := s.pool.PublishedQuestions(ctx, duel.SubjectID, duel.LevelID)
	if err != nil {
		return fmt.Errorf("load question pool: %w", err)
	}

	used := duel.UsedQuestionIDs()
	eligible := questions[:0:0]
	for _, q := range questions {
		if _, taken := used[q.ID]; !taken {
			eligible = append(eligible, q)
		}
	}
	if len(eligible) == 0 {
		return domain.ErrQuestionPoolExhausted
	}

	// Ordering by id is a determinism aid for seeded selection, not a
	// correctness requirement.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })
	s.rndMu.Lock()
	question := eligible[s.rnd.Intn(len(eligible))]
	s.rndMu.Unlock()

	round, err := s.snapshotRound(duel, question)
	if err != nil {
		return err
	}
	duel.Rounds = append(duel.Rounds, round)
	return nil
}

// snapshotRound freezes the question's stem, its options in sort order and the
// correct option's index, plus a lookup table from source option id to
// snapshot index for answer mapping.
func (s *DuelService) snapshotRound(duel *domain.Duel, question domain.PoolQuestion) (*domain.DuelRound, error) {
	options := append([]domain.PoolOption(nil), question.Options...)
	sort.SliceStable(options, func(i, j int) bool { return options[i].SortOrder < options[j].SortOrder })

	texts := make([]string, len(options))
	index := make(map[string]int, len(options))
	correct := domain.NoSelection
	for i, opt := range options {
		texts[i] = opt.Text
		index[opt.ID] = i
		if opt.Correct && correct == domain.NoSelection {
			correct = i
		}
	}
	if correct == domain.NoSelection {
		return nil, fmt.Errorf("question %s has no correct option", question.ID)
	}

	return &domain.DuelRound{
		ID:           s.newID(),
		DuelID:       duel.ID,
		Number:       len(duel.Rounds) + 1,
		QuestionID:   question.ID,
		Prompt:       question.Prompt,
		Options:      texts,
		CorrectIndex: correct,
		OptionIndex:  index,
		TimeLimitSec: s.defaults.TimeLimitSec,
		StartedAt:    s.now(),
	}, nil
}
