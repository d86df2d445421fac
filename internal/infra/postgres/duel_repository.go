package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/domain"
)

// DuelRepository persists duel aggregates with bun. Mutate runs the
// read-modify-write sequence inside one transaction with a SELECT ... FOR
// UPDATE on the duel row, so concurrent submissions for the same duel
// serialize and a round can never resolve twice.
type DuelRepository struct {
	db *bun.DB
}

func NewDuelRepository(db *bun.DB) *DuelRepository {
	return &DuelRepository{db: db}
}

type duelRow struct {
	bun.BaseModel `bun:"table:duels,alias:d"`

	ID        string     `bun:"id,pk"`
	SubjectID string     `bun:"subject_id,notnull"`
	LevelID   *string    `bun:"level_id"`
	Status    string     `bun:"status,notnull"`
	BestOf    int        `bun:"best_of,notnull"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
	StartedAt *time.Time `bun:"started_at"`
	EndedAt   *time.Time `bun:"ended_at"`

	Participants []*participantRow `bun:"rel:has-many,join:id=duel_id"`
	Rounds       []*roundRow       `bun:"rel:has-many,join:id=duel_id"`
}

type participantRow struct {
	bun.BaseModel `bun:"table:duel_participants,alias:dp"`

	DuelID        string    `bun:"duel_id,pk"`
	UserID        string    `bun:"user_id,pk"`
	InviterUserID *string   `bun:"inviter_user_id"`
	Accepted      bool      `bun:"accepted,notnull"`
	Score         int       `bun:"score,notnull"`
	Result        *string   `bun:"result"`
	JoinedAt      time.Time `bun:"joined_at,notnull"`
}

type roundRow struct {
	bun.BaseModel `bun:"table:duel_rounds,alias:dr"`

	ID           string         `bun:"id,pk"`
	DuelID       string         `bun:"duel_id,notnull"`
	Number       int            `bun:"number,notnull"`
	QuestionID   string         `bun:"question_id,notnull"`
	Prompt       string         `bun:"prompt,notnull"`
	Options      []string       `bun:"options,array"`
	CorrectIndex int            `bun:"correct_index,notnull"`
	OptionIndex  map[string]int `bun:"option_index,type:jsonb"`
	TimeLimitSec int            `bun:"time_limit_sec,notnull"`
	StartedAt    time.Time      `bun:"started_at,notnull"`
	EndedAt      *time.Time     `bun:"ended_at"`

	Answers []*answerRow `bun:"rel:has-many,join:id=round_id"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:duel_answers,alias:da"`

	RoundID        string    `bun:"round_id,pk"`
	UserID         string    `bun:"user_id,pk"`
	SelectedIndex  int       `bun:"selected_index,notnull"`
	Correct        bool      `bun:"correct,notnull"`
	ResponseTimeMs int       `bun:"response_time_ms,notnull"`
	AnsweredAt     time.Time `bun:"answered_at,notnull"`
}

func (r *DuelRepository) Create(ctx context.Context, duel *domain.Duel) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return insertAggregate(ctx, tx, duel)
	})
}

func insertAggregate(ctx context.Context, tx bun.Tx, duel *domain.Duel) error {
	row, parts, rounds, answers := toRows(duel)
	if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert duel: %w", err)
	}
	if len(parts) > 0 {
		if _, err := tx.NewInsert().Model(&parts).Exec(ctx); err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
	}
	if len(rounds) > 0 {
		if _, err := tx.NewInsert().Model(&rounds).Exec(ctx); err != nil {
			return fmt.Errorf("insert rounds: %w", err)
		}
	}
	if len(answers) > 0 {
		if _, err := tx.NewInsert().Model(&answers).Exec(ctx); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
	}
	return nil
}

func (r *DuelRepository) Get(ctx context.Context, id string) (*domain.Duel, error) {
	row := new(duelRow)
	err := r.db.NewSelect().
		Model(row).
		Relation("Participants", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("joined_at ASC", "user_id ASC")
		}).
		Relation("Rounds", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("number ASC")
		}).
		Relation("Rounds.Answers", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("answered_at ASC", "user_id ASC")
		}).
		Where("d.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDuelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load duel: %w", err)
	}
	return toDomain(row), nil
}

func (r *DuelRepository) Mutate(ctx context.Context, id string, fn func(duel *domain.Duel) error) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		row := new(duelRow)
		err := tx.NewSelect().Model(row).Where("d.id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrDuelNotFound
		}
		if err != nil {
			return fmt.Errorf("lock duel: %w", err)
		}
		if err := loadChildren(ctx, tx, row); err != nil {
			return err
		}

		duel := toDomain(row)
		if err := fn(duel); err != nil {
			return err
		}
		return saveAggregate(ctx, tx, duel)
	})
}

func loadChildren(ctx context.Context, tx bun.Tx, row *duelRow) error {
	if err := tx.NewSelect().Model(&row.Participants).
		Where("duel_id = ?", row.ID).
		Order("joined_at ASC", "user_id ASC").
		Scan(ctx); err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	if err := tx.NewSelect().Model(&row.Rounds).
		Where("duel_id = ?", row.ID).
		Order("number ASC").
		Scan(ctx); err != nil {
		return fmt.Errorf("load rounds: %w", err)
	}
	for _, round := range row.Rounds {
		if err := tx.NewSelect().Model(&round.Answers).
			Where("round_id = ?", round.ID).
			Order("answered_at ASC", "user_id ASC").
			Scan(ctx); err != nil {
			return fmt.Errorf("load answers: %w", err)
		}
	}
	return nil
}

// saveAggregate writes the mutated aggregate back: duel row updated,
// participants upserted (removed ones deleted, for declines), rounds upserted
// (only ended_at and the score-bearing columns ever change after creation) and
// answers inserted once, never updated.
func saveAggregate(ctx context.Context, tx bun.Tx, duel *domain.Duel) error {
	row, parts, rounds, answers := toRows(duel)

	if _, err := tx.NewUpdate().Model(row).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("update duel: %w", err)
	}

	userIDs := make([]string, 0, len(parts))
	for _, p := range parts {
		userIDs = append(userIDs, p.UserID)
	}
	del := tx.NewDelete().Model((*participantRow)(nil)).Where("duel_id = ?", duel.ID)
	if len(userIDs) > 0 {
		del = del.Where("user_id NOT IN (?)", bun.In(userIDs))
	}
	if _, err := del.Exec(ctx); err != nil {
		return fmt.Errorf("prune participants: %w", err)
	}
	if len(parts) > 0 {
		if _, err := tx.NewInsert().Model(&parts).
			On("CONFLICT (duel_id, user_id) DO UPDATE").
			Set("accepted = EXCLUDED.accepted").
			Set("score = EXCLUDED.score").
			Set("result = EXCLUDED.result").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert participants: %w", err)
		}
	}

	if len(rounds) > 0 {
		if _, err := tx.NewInsert().Model(&rounds).
			On("CONFLICT (id) DO UPDATE").
			Set("ended_at = EXCLUDED.ended_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert rounds: %w", err)
		}
	}
	if len(answers) > 0 {
		if _, err := tx.NewInsert().Model(&answers).
			On("CONFLICT (round_id, user_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
	}
	return nil
}

func (r *DuelRepository) ListForUser(ctx context.Context, userID string, status *domain.DuelStatus) ([]*domain.Duel, error) {
	var rows []*duelRow
	q := r.baseList(&rows).
		Where("EXISTS (SELECT 1 FROM duel_participants p WHERE p.duel_id = d.id AND p.user_id = ?)", userID).
		Order("d.created_at DESC")
	if status != nil {
		q = q.Where("d.status = ?", string(*status))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list duels: %w", err)
	}
	return domainList(rows), nil
}

func (r *DuelRepository) ListInvitations(ctx context.Context, userID string) ([]*domain.Duel, error) {
	var rows []*duelRow
	q := r.baseList(&rows).
		Where("EXISTS (SELECT 1 FROM duel_participants p WHERE p.duel_id = d.id AND p.user_id = ? AND p.inviter_user_id IS NOT NULL AND NOT p.accepted)", userID).
		Where("d.status = ?", string(domain.DuelStatusPending)).
		Order("d.created_at DESC")
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return domainList(rows), nil
}

func (r *DuelRepository) ListCompletedForUser(ctx context.Context, userID, subjectID string) ([]*domain.Duel, error) {
	var rows []*duelRow
	q := r.baseList(&rows).
		Where("EXISTS (SELECT 1 FROM duel_participants p WHERE p.duel_id = d.id AND p.user_id = ?)", userID).
		Where("d.status = ?", string(domain.DuelStatusCompleted)).
		Order("d.ended_at DESC")
	if subjectID != "" {
		q = q.Where("d.subject_id = ?", subjectID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list completed duels: %w", err)
	}
	return domainList(rows), nil
}

func (r *DuelRepository) baseList(rows *[]*duelRow) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(rows).
		Relation("Participants", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("joined_at ASC", "user_id ASC")
		}).
		Relation("Rounds", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("number ASC")
		}).
		Relation("Rounds.Answers", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("answered_at ASC", "user_id ASC")
		})
}

func domainList(rows []*duelRow) []*domain.Duel {
	duels := make([]*domain.Duel, 0, len(rows))
	for _, row := range rows {
		duels = append(duels, toDomain(row))
	}
	return duels
}

func toRows(duel *domain.Duel) (*duelRow, []participantRow, []roundRow, []answerRow) {
	row := &duelRow{
		ID:        duel.ID,
		SubjectID: duel.SubjectID,
		LevelID:   duel.LevelID,
		Status:    string(duel.Status),
		BestOf:    duel.BestOf,
		CreatedAt: duel.CreatedAt,
		StartedAt: duel.StartedAt,
		EndedAt:   duel.EndedAt,
	}
	var parts []participantRow
	for _, p := range duel.Participants {
		var result *string
		if p.Result != nil {
			res := string(*p.Result)
			result = &res
		}
		parts = append(parts, participantRow{
			DuelID:        duel.ID,
			UserID:        p.UserID,
			InviterUserID: p.InviterUserID,
			Accepted:      p.Accepted,
			Score:         p.Score,
			Result:        result,
			JoinedAt:      p.JoinedAt,
		})
	}
	var rounds []roundRow
	var answers []answerRow
	for _, r := range duel.Rounds {
		rounds = append(rounds, roundRow{
			ID:           r.ID,
			DuelID:       duel.ID,
			Number:       r.Number,
			QuestionID:   r.QuestionID,
			Prompt:       r.Prompt,
			Options:      r.Options,
			CorrectIndex: r.CorrectIndex,
			OptionIndex:  r.OptionIndex,
			TimeLimitSec: r.TimeLimitSec,
			StartedAt:    r.StartedAt,
			EndedAt:      r.EndedAt,
		})
		for _, a := range r.Answers {
			answers = append(answers, answerRow{
				RoundID:        r.ID,
				UserID:         a.UserID,
				SelectedIndex:  a.SelectedIndex,
				Correct:        a.Correct,
				ResponseTimeMs: a.ResponseTimeMs,
				AnsweredAt:     a.AnsweredAt,
			})
		}
	}
	return row, parts, rounds, answers
}

func toDomain(row *duelRow) *domain.Duel {
	duel := &domain.Duel{
		ID:        row.ID,
		SubjectID: row.SubjectID,
		LevelID:   row.LevelID,
		Status:    domain.DuelStatus(row.Status),
		BestOf:    row.BestOf,
		CreatedAt: row.CreatedAt,
		StartedAt: row.StartedAt,
		EndedAt:   row.EndedAt,
	}
	for _, p := range row.Participants {
		var result *domain.ParticipantResult
		if p.Result != nil {
			res := domain.ParticipantResult(*p.Result)
			result = &res
		}
		duel.Participants = append(duel.Participants, &domain.DuelParticipant{
			DuelID:        p.DuelID,
			UserID:        p.UserID,
			InviterUserID: p.InviterUserID,
			Accepted:      p.Accepted,
			Score:         p.Score,
			Result:        result,
			JoinedAt:      p.JoinedAt,
		})
	}
	for _, r := range row.Rounds {
		round := &domain.DuelRound{
			ID:           r.ID,
			DuelID:       r.DuelID,
			Number:       r.Number,
			QuestionID:   r.QuestionID,
			Prompt:       r.Prompt,
			Options:      r.Options,
			CorrectIndex: r.CorrectIndex,
			OptionIndex:  r.OptionIndex,
			TimeLimitSec: r.TimeLimitSec,
			StartedAt:    r.StartedAt,
			EndedAt:      r.EndedAt,
		}
		for _, a := range r.Answers {
			round.Answers = append(round.Answers, &domain.DuelAnswer{
				RoundID:        a.RoundID,
				UserID:         a.UserID,
				SelectedIndex:  a.SelectedIndex,
				Correct:        a.Correct,
				ResponseTimeMs: a.ResponseTimeMs,
				AnsweredAt:     a.AnsweredAt,
			})
		}
		duel.Rounds = append(duel.Rounds, round)
	}
	return duel
}

var _ app.DuelRepository = (*DuelRepository)(nil)
