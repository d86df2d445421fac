package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"edu-duel-service/internal/domain"
	"edu-duel-service/internal/logger"
)

// Defaults carries the tunable engine parameters.
type Defaults struct {
	BestOf       int
	TimeLimitSec int
}

// DuelService owns the duel state machine: creation, invitation handshake,
// start, round-by-round play and completion. All mutations run through the
// repository's per-duel transaction boundary.
type DuelService struct {
	duels       DuelRepository
	pool        QuestionPool
	content     ContentDirectory
	eligibility *EligibilityChecker
	hub         *WatchHub
	defaults    Defaults

	now   func() time.Time
	newID func() string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewDuelService(duels DuelRepository, pool QuestionPool, content ContentDirectory, eligibility *EligibilityChecker, hub *WatchHub, defaults Defaults) *DuelService {
	if defaults.BestOf <= 0 {
		defaults.BestOf = domain.DefaultBestOf
	}
	if defaults.TimeLimitSec <= 0 {
		defaults.TimeLimitSec = domain.DefaultTimeLimitSec
	}
	return &DuelService{
		duels:       duels,
		pool:        pool,
		content:     content,
		eligibility: eligibility,
		hub:         hub,
		defaults:    defaults,
		now:         time.Now,
		newID:       uuid.NewString,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *DuelService) WithClock(now func() time.Time) *DuelService {
	s.now = now
	return s
}

// WithRand is test-only for deterministic question selection.
func (s *DuelService) WithRand(rnd *rand.Rand) *DuelService {
	s.rnd = rnd
	return s
}

// Create validates the subject/level pairing and the initiator's eligibility,
// then creates a pending duel with the initiator as sole, uninvited
// participant. BestOf is normalized to a positive odd number.
func (s *DuelService) Create(ctx context.Context, initiatorID, subjectID string, levelID *string, bestOf int) (*DuelView, error) {
	exists, err := s.content.SubjectExists(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("check subject: %w", err)
	}
	if !exists {
		return nil, domain.ErrSubjectNotFound
	}
	if levelID != nil {
		ok, err := s.content.LevelBelongsToSubject(ctx, *levelID, subjectID)
		if err != nil {
			return nil, fmt.Errorf("check level: %w", err)
		}
		if !ok {
			return nil, domain.ErrLevelMismatch
		}
	}
	eligible, err := s.eligibility.CanCreateDuel(ctx, initiatorID, subjectID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, domain.ErrNotEligible
	}

	if bestOf <= 0 {
		bestOf = s.defaults.BestOf
	}
	now := s.now()
	duel := &domain.Duel{
		ID:        s.newID(),
		SubjectID: subjectID,
		LevelID:   levelID,
		Status:    domain.DuelStatusPending,
		BestOf:    domain.NormalizeBestOf(bestOf),
		CreatedAt: now,
		Participants: []*domain.DuelParticipant{{
			UserID:   initiatorID,
			Accepted: true,
			JoinedAt: now,
		}},
	}
	duel.Participants[0].DuelID = duel.ID
	if err := s.duels.Create(ctx, duel); err != nil {
		return nil, fmt.Errorf("store duel: %w", err)
	}
	logger.Info("duel created",
		"duelId", duel.ID,
		"subjectId", subjectID,
		"initiator", initiatorID,
		"bestOf", duel.BestOf,
	)
	return s.publish(duel), nil
}

// Invite adds a classmate to a pending duel. The inviter must already be a
// participant, the invitee must not be, and the engine caps the roster at two
// players.
func (s *DuelService) Invite(ctx context.Context, duelID, inviterID, inviteeID string) error {
	classmates, err := s.eligibility.SameClass(ctx, inviterID, inviteeID)
	if err != nil {
		return err
	}
	var updated *domain.Duel
	err = s.duels.Mutate(ctx, duelID, func(duel *domain.Duel) error {
		if duel.Status != domain.DuelStatusPending {
			return domain.ErrDuelNotPending
		}
		if duel.Participant(inviterID) == nil {
			return domain.ErrNotParticipant
		}
		if duel.Participant(inviteeID) != nil {
			return domain.ErrAlreadyParticipant
		}
		if len(duel.Participants) >= 2 {
			return domain.ErrDuelFull
		}
		if !classmates {
			return domain.ErrNotClassmates
		}
		inviter := inviterID
		duel.Participants = append(duel.Participants, &domain.DuelParticipant{
			DuelID:        duel.ID,
			UserID:        inviteeID,
			InviterUserID: &inviter,
			JoinedAt:      s.now(),
		})
		updated = duel
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("duel invitation sent", "duelId", duelID, "inviter", inviterID, "invitee", inviteeID)
	s.publish(updated)
	return nil
}

// Accept consumes the user's pending invitation. Once the second participant
// is in, the duel goes active and round 1 is created.
func (s *DuelService) Accept(ctx context.Context, duelID, userID string) error {
	var updated *domain.Duel
	err := s.duels.Mutate(ctx, duelID, func(duel *domain.Duel) error {
		p := duel.Participant(userID)
		if p == nil {
			return domain.ErrNotParticipant
		}
		if !p.Invited() {
			return domain.ErrNotInvited
		}
		p.Accepted = true
		if duel.Status == domain.DuelStatusPending && len(duel.Participants) >= 2 {
			duel.Status = domain.DuelStatusActive
			if err := s.startLocked(ctx, duel); err != nil {
				return err
			}
		}
		updated = duel
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("duel invitation accepted", "duelId", duelID, "user", userID, "status", updated.Status)
	s.publish(updated)
	return nil
}

// Decline turns down an open invitation and removes the invitee from the
// roster. Once the invitation has been accepted the match is on and can no
// longer be declined.
func (s *DuelService) Decline(ctx context.Context, duelID, userID string) error {
	var updated *domain.Duel
	err := s.duels.Mutate(ctx, duelID, func(duel *domain.Duel) error {
		if duel.Status != domain.DuelStatusPending {
			return domain.ErrDuelNotPending
		}
		p := duel.Participant(userID)
		if p == nil {
			return domain.ErrNotParticipant
		}
		if !p.Invited() {
			// Only an open invitation can be declined. The creator and
			// accepted participants have none.
			return domain.ErrNotInvited
		}
		kept := duel.Participants[:0]
		for _, other := range duel.Participants {
			if other.UserID != userID {
				kept = append(kept, other)
			}
		}
		duel.Participants = kept
		updated = duel
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("duel invitation declined", "duelId", duelID, "user", userID)
	s.publish(updated)
	return nil
}

// Start marks the match start and creates round 1. It is idempotent: a duel
// that already started is left untouched.
func (s *DuelService) Start(ctx context.Context, duelID string) error {
	var updated *domain.Duel
	err := s.duels.Mutate(ctx, duelID, func(duel *domain.Duel) error {
		if duel.Status != domain.DuelStatusActive {
			return domain.ErrDuelNotActive
		}
		if len(duel.Participants) < 2 {
			return domain.ErrNotEnoughParticipants
		}
		if err := s.startLocked(ctx, duel); err != nil {
			return err
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

// startLocked sets the start timestamp and creates round 1 if no rounds exist.
// Callers hold the duel's transaction boundary.
func (s *DuelService) startLocked(ctx context.Context, duel *domain.Duel) error {
	if duel.StartedAt == nil {
		now := s.now()
		duel.StartedAt = &now
	}
	if len(duel.Rounds) == 0 {
		if err := s.createRound(ctx, duel); err != nil {
			return err
		}
	}
	return nil
}

// ForceComplete is the administrative escape hatch: it finishes an active duel
// with the current scores.
func (s *DuelService) ForceComplete(ctx context.Context, duelID string) error {
	var updated *domain.Duel
	err := s.duels.Mutate(ctx, duelID, func(duel *domain.Duel) error {
		if duel.Status != domain.DuelStatusActive {
			return domain.ErrDuelNotActive
		}
		s.completeLocked(duel)
		updated = duel
		return nil
	})
	if err != nil {
		return err
	}
	logger.Warn("duel force-completed", "duelId", duelID)
	s.publish(updated)
	return nil
}

// completeLocked is the terminal transition: status, end timestamp and
// win/lose/draw assignment for the two players. Callers hold the duel's
// transaction boundary.
func (s *DuelService) completeLocked(duel *domain.Duel) {
	now := s.now()
	duel.Status = domain.DuelStatusCompleted
	duel.EndedAt = &now

	if len(duel.Participants) != 2 {
		// The engine is restricted to two players; anything else ends drawn.
		for _, p := range duel.Participants {
			res := domain.ResultDraw
			p.Result = &res
		}
		return
	}
	a, b := duel.Participants[0], duel.Participants[1]
	switch {
	case a.Score > b.Score:
		win, lose := domain.ResultWin, domain.ResultLose
		a.Result, b.Result = &win, &lose
	case b.Score > a.Score:
		win, lose := domain.ResultWin, domain.ResultLose
		b.Result, a.Result = &win, &lose
	default:
		drawA, drawB := domain.ResultDraw, domain.ResultDraw
		a.Result, b.Result = &drawA, &drawB
	}
}

// Get returns the duel as seen by a participant. The view never exposes the
// correct-answer index of an open round.
func (s *DuelService) Get(ctx context.Context, duelID, userID string) (*DuelView, error) {
	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return nil, err
	}
	if duel.Participant(userID) == nil {
		return nil, domain.ErrNotParticipant
	}
	return NewDuelView(duel), nil
}

// ListForUser returns the user's duels, optionally filtered by status.
func (s *DuelService) ListForUser(ctx context.Context, userID string, status *domain.DuelStatus) ([]*DuelView, error) {
	duels, err := s.duels.ListForUser(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	return viewsOf(duels), nil
}

// ListInvitations returns duels where the user has an unanswered invitation.
func (s *DuelService) ListInvitations(ctx context.Context, userID string) ([]*DuelView, error) {
	duels, err := s.duels.ListInvitations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return viewsOf(duels), nil
}

// EligibleClassmates lists classmates the user could invite for a subject.
func (s *DuelService) EligibleClassmates(ctx context.Context, userID, subjectID string) ([]string, error) {
	exists, err := s.content.SubjectExists(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("check subject: %w", err)
	}
	if !exists {
		return nil, domain.ErrSubjectNotFound
	}
	return s.eligibility.EligibleClassmates(ctx, userID, subjectID)
}

// publish pushes the sanitized state to watchers and returns it.
func (s *DuelService) publish(duel *domain.Duel) *DuelView {
	view := NewDuelView(duel)
	if s.hub != nil {
		s.hub.Publish(view)
	}
	return view
}

func viewsOf(duels []*domain.Duel) []*DuelView {
	views := make([]*DuelView, 0, len(duels))
	for _, d := range duels {
		views = append(views, NewDuelView(d))
	}
	return views
}
