package app

import (
	"context"
	"errors"

	"edu-duel-service/internal/domain"
	"edu-duel-service/internal/logger"
)

// AnswerSubmission models one participant's answer for the open round. A nil
// OptionID, or an option id that cannot be mapped back to the round snapshot,
// records a "no selection" answer.
type AnswerSubmission struct {
	QuestionID     string
	OptionID       *string
	ResponseTimeMs int
}

// SubmitAnswer records one answer per participant per round. The last answer
// to arrive resolves the round: it closes it, awards the point and either
// creates the next round or completes the match. The whole sequence runs under
// the repository's per-duel boundary, so two simultaneous submissions can
// never both resolve the round.
func (s *DuelService) SubmitAnswer(ctx context.Context, duelID, userID string, sub AnswerSubmission) error {
	var updated *domain.Duel
	err := s.duels.Mutate(ctx, duelID, func(duel *domain.Duel) error {
		if duel.Status != domain.DuelStatusActive {
			return domain.ErrDuelNotActive
		}
		if duel.Participant(userID) == nil {
			return domain.ErrNotParticipant
		}
		round := duel.OpenRound()
		if round == nil {
			if len(duel.Rounds) > 0 && duel.Rounds[len(duel.Rounds)-1].QuestionID == sub.QuestionID {
				return domain.ErrRoundClosed
			}
			return domain.ErrNoOpenRound
		}
		if round.QuestionID != sub.QuestionID {
			return domain.ErrQuestionMismatch
		}
		if round.AnswerOf(userID) != nil {
			return domain.ErrAlreadyAnswered
		}

		selected := domain.NoSelection
		if sub.OptionID != nil {
			if idx, ok := round.OptionIndex[*sub.OptionID]; ok {
				selected = idx
			}
		}
		responseTime := sub.ResponseTimeMs
		if responseTime < 0 {
			responseTime = 0
		}
		round.Answers = append(round.Answers, &domain.DuelAnswer{
			RoundID:        round.ID,
			UserID:         userID,
			SelectedIndex:  selected,
			Correct:        selected != domain.NoSelection && selected == round.CorrectIndex,
			ResponseTimeMs: responseTime,
			AnsweredAt:     s.now(),
		})

		if len(round.Answers) >= len(duel.Participants) {
			if err := s.resolveRound(ctx, duel, round); err != nil {
				return err
			}
		}
		updated = duel
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(updated)
	return nil
}

// resolveRound closes the round, awards the point and decides between a next
// round and match completion. It runs exactly once per round, guarded by the
// caller's transaction boundary.
func (s *DuelService) resolveRound(ctx context.Context, duel *domain.Duel, round *domain.DuelRound) error {
	now := s.now()
	round.EndedAt = &now

	if winnerID, ok := roundWinner(round); ok {
		if p := duel.Participant(winnerID); p != nil {
			p.Score++
		}
	}

	threshold := duel.MajorityThreshold()
	decided := false
	for _, p := range duel.Participants {
		if p.Score >= threshold {
			decided = true
			break
		}
	}
	if decided || len(duel.Rounds) >= duel.BestOf {
		s.completeLocked(duel)
		return nil
	}

	if err := s.createRound(ctx, duel); err != nil {
		if errors.Is(err, domain.ErrQuestionPoolExhausted) {
			// No unused question remains: finish the match with the scores
			// accumulated so far rather than repeating a question.
			logger.Warn("question pool exhausted mid-match, completing duel",
				"duelId", duel.ID,
				"roundsPlayed", len(duel.Rounds),
			)
			s.completeLocked(duel)
			return nil
		}
		return err
	}
	return nil
}

// roundWinner picks the participant awarded the round's point: the single
// correct answerer, or the fastest one when several were correct. No point is
// awarded when nobody was correct.
func roundWinner(round *domain.DuelRound) (string, bool) {
	var winner *domain.DuelAnswer
	for _, a := range round.Answers {
		if !a.Correct {
			continue
		}
		if winner == nil || a.ResponseTimeMs < winner.ResponseTimeMs {
			winner = a
		}
	}
	if winner == nil {
		return "", false
	}
	return winner.UserID, true
}
