package domain

import "time"

// DuelStatus is the lifecycle state of a duel. Transitions only move forward:
// pending -> active -> completed.
type DuelStatus string

const (
	DuelStatusPending   DuelStatus = "pending"
	DuelStatusActive    DuelStatus = "active"
	DuelStatusCompleted DuelStatus = "completed"
)

// ParticipantResult is assigned once, when the duel completes.
type ParticipantResult string

const (
	ResultWin  ParticipantResult = "win"
	ResultLose ParticipantResult = "lose"
	ResultDraw ParticipantResult = "draw"
)

const (
	// DefaultBestOf is used when a caller passes a non-positive round target.
	DefaultBestOf = 5
	// DefaultTimeLimitSec is the advisory per-round time limit. The engine
	// records it but does not enforce it.
	DefaultTimeLimitSec = 30
	// NoSelection marks an answer whose option could not be mapped back to the
	// round snapshot (or where the participant submitted nothing).
	NoSelection = -1
)

// NormalizeBestOf forces the round target to a positive odd number: a
// non-positive value falls back to the default, an even value is bumped by one.
func NormalizeBestOf(n int) int {
	if n <= 0 {
		n = DefaultBestOf
	}
	if n%2 == 0 {
		n++
	}
	return n
}

// Duel is one head-to-head match instance over a subject (optionally scoped to
// a level). It owns its participants (ordered by join time) and rounds
// (ordered by round number).
type Duel struct {
	ID        string     `json:"id"`
	SubjectID string     `json:"subjectId"`
	LevelID   *string    `json:"levelId,omitempty"`
	Status    DuelStatus `json:"status"`
	BestOf    int        `json:"bestOf"`
	CreatedAt time.Time  `json:"createdAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	Participants []*DuelParticipant `json:"participants"`
	Rounds       []*DuelRound       `json:"rounds"`
}

// DuelParticipant is one user's membership in a duel. The creator is the only
// participant without an inviter.
type DuelParticipant struct {
	DuelID        string             `json:"duelId"`
	UserID        string             `json:"userId"`
	InviterUserID *string            `json:"inviterUserId,omitempty"`
	Accepted      bool               `json:"accepted"`
	Score         int                `json:"score"`
	Result        *ParticipantResult `json:"result,omitempty"`
	JoinedAt      time.Time          `json:"joinedAt"`
}

// Invited reports whether the participant joined via an invitation that has
// not been accepted yet.
func (p *DuelParticipant) Invited() bool {
	return p.InviterUserID != nil && !p.Accepted
}

// DuelRound is one question cycle within a duel. The question content is
// snapshotted at creation time so later edits to the question bank cannot
// alter an in-progress or historical round.
type DuelRound struct {
	ID         string `json:"id"`
	DuelID     string `json:"duelId"`
	Number     int    `json:"number"`
	QuestionID string `json:"questionId"`

	Prompt       string         `json:"prompt"`
	Options      []string       `json:"options"`
	CorrectIndex int            `json:"correctIndex"`
	OptionIndex  map[string]int `json:"optionIndex"`

	TimeLimitSec int        `json:"timeLimitSec"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`

	Answers []*DuelAnswer `json:"answers"`
}

// Open reports whether the round still accepts answers.
func (r *DuelRound) Open() bool {
	return r.EndedAt == nil
}

// AnswerOf returns the participant's recorded answer, or nil.
func (r *DuelRound) AnswerOf(userID string) *DuelAnswer {
	for _, a := range r.Answers {
		if a.UserID == userID {
			return a
		}
	}
	return nil
}

// DuelAnswer is one participant's submission for a round. Immutable once
// written.
type DuelAnswer struct {
	RoundID        string    `json:"roundId"`
	UserID         string    `json:"userId"`
	SelectedIndex  int       `json:"selectedIndex"`
	Correct        bool      `json:"correct"`
	ResponseTimeMs int       `json:"responseTimeMs"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// Participant returns the membership record for userID, or nil.
func (d *Duel) Participant(userID string) *DuelParticipant {
	for _, p := range d.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// OpenRound returns the single open round, or nil. Rounds are ordered by
// number and only the latest one can be open.
func (d *Duel) OpenRound() *DuelRound {
	if len(d.Rounds) == 0 {
		return nil
	}
	last := d.Rounds[len(d.Rounds)-1]
	if last.Open() {
		return last
	}
	return nil
}

// UsedQuestionIDs lists question ids already consumed by this duel's rounds.
func (d *Duel) UsedQuestionIDs() map[string]struct{} {
	used := make(map[string]struct{}, len(d.Rounds))
	for _, r := range d.Rounds {
		used[r.QuestionID] = struct{}{}
	}
	return used
}

// MajorityThreshold is the score that decides the match: ceil(bestOf/2).
func (d *Duel) MajorityThreshold() int {
	return (d.BestOf + 1) / 2
}

// Clone deep-copies the aggregate. Stores hand out clones so callers can never
// mutate shared state outside a transaction boundary.
func (d *Duel) Clone() *Duel {
	cp := *d
	if d.LevelID != nil {
		lv := *d.LevelID
		cp.LevelID = &lv
	}
	if d.StartedAt != nil {
		t := *d.StartedAt
		cp.StartedAt = &t
	}
	if d.EndedAt != nil {
		t := *d.EndedAt
		cp.EndedAt = &t
	}
	cp.Participants = make([]*DuelParticipant, len(d.Participants))
	for i, p := range d.Participants {
		pc := *p
		if p.InviterUserID != nil {
			inv := *p.InviterUserID
			pc.InviterUserID = &inv
		}
		if p.Result != nil {
			res := *p.Result
			pc.Result = &res
		}
		cp.Participants[i] = &pc
	}
	cp.Rounds = make([]*DuelRound, len(d.Rounds))
	for i, r := range d.Rounds {
		rc := *r
		if r.EndedAt != nil {
			t := *r.EndedAt
			rc.EndedAt = &t
		}
		rc.Options = append([]string(nil), r.Options...)
		rc.OptionIndex = make(map[string]int, len(r.OptionIndex))
		for k, v := range r.OptionIndex {
			rc.OptionIndex[k] = v
		}
		rc.Answers = make([]*DuelAnswer, len(r.Answers))
		for j, a := range r.Answers {
			ac := *a
			rc.Answers[j] = &ac
		}
		cp.Rounds[i] = &rc
	}
	return &cp
}

// PoolOption is one answer choice of a published pool question.
type PoolOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Correct   bool   `json:"correct"`
	SortOrder int    `json:"sortOrder"`
}

// PoolQuestion is a published question eligible for duel rounds.
type PoolQuestion struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Options []PoolOption `json:"options"`
}

// DuelStats summarizes a user's completed duels.
type DuelStats struct {
	Total         int     `json:"total"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Draws         int     `json:"draws"`
	WinRate       float64 `json:"winRate"`
	CurrentStreak int     `json:"currentStreak"`
}
