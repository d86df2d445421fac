package app

import (
	"time"

	"edu-duel-service/internal/domain"
)

// DuelView is the duel state as exposed to clients. Open rounds never carry
// the correct-answer index or other participants' selections; closed rounds
// reveal both.
type DuelView struct {
	ID           string            `json:"id"`
	SubjectID    string            `json:"subjectId"`
	LevelID      *string           `json:"levelId,omitempty"`
	Status       domain.DuelStatus `json:"status"`
	BestOf       int               `json:"bestOf"`
	CreatedAt    time.Time         `json:"createdAt"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	EndedAt      *time.Time        `json:"endedAt,omitempty"`
	Participants []ParticipantView `json:"participants"`
	Rounds       []RoundView       `json:"rounds"`
}

type ParticipantView struct {
	UserID        string                    `json:"userId"`
	InviterUserID *string                   `json:"inviterUserId,omitempty"`
	Accepted      bool                      `json:"accepted"`
	Score         int                       `json:"score"`
	Result        *domain.ParticipantResult `json:"result,omitempty"`
}

type RoundView struct {
	Number       int          `json:"number"`
	QuestionID   string       `json:"questionId"`
	Prompt       string       `json:"prompt"`
	Options      []string     `json:"options"`
	CorrectIndex *int         `json:"correctIndex,omitempty"`
	TimeLimitSec int          `json:"timeLimitSec"`
	StartedAt    time.Time    `json:"startedAt"`
	EndedAt      *time.Time   `json:"endedAt,omitempty"`
	Answers      []AnswerView `json:"answers"`
}

type AnswerView struct {
	UserID         string `json:"userId"`
	SelectedIndex  *int   `json:"selectedIndex,omitempty"`
	Correct        *bool  `json:"correct,omitempty"`
	ResponseTimeMs int    `json:"responseTimeMs"`
}

// NewDuelView sanitizes a duel aggregate for client consumption.
func NewDuelView(duel *domain.Duel) *DuelView {
	view := &DuelView{
		ID:        duel.ID,
		SubjectID: duel.SubjectID,
		LevelID:   duel.LevelID,
		Status:    duel.Status,
		BestOf:    duel.BestOf,
		CreatedAt: duel.CreatedAt,
		StartedAt: duel.StartedAt,
		EndedAt:   duel.EndedAt,
	}
	for _, p := range duel.Participants {
		view.Participants = append(view.Participants, ParticipantView{
			UserID:        p.UserID,
			InviterUserID: p.InviterUserID,
			Accepted:      p.Accepted,
			Score:         p.Score,
			Result:        p.Result,
		})
	}
	for _, r := range duel.Rounds {
		rv := RoundView{
			Number:       r.Number,
			QuestionID:   r.QuestionID,
			Prompt:       r.Prompt,
			Options:      append([]string(nil), r.Options...),
			TimeLimitSec: r.TimeLimitSec,
			StartedAt:    r.StartedAt,
			EndedAt:      r.EndedAt,
		}
		closed := !r.Open()
		if closed {
			correct := r.CorrectIndex
			rv.CorrectIndex = &correct
		}
		for _, a := range r.Answers {
			av := AnswerView{UserID: a.UserID, ResponseTimeMs: a.ResponseTimeMs}
			if closed {
				selected := a.SelectedIndex
				isCorrect := a.Correct
				av.SelectedIndex = &selected
				av.Correct = &isCorrect
			}
			rv.Answers = append(rv.Answers, av)
		}
		view.Rounds = append(view.Rounds, rv)
	}
	return view
}
