package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/domain"
)

// QuestionPool reads published quiz content from Postgres. The same question
// may belong to several published quizzes; the pool deduplicates by question
// id.
type QuestionPool struct {
	pool *pgxpool.Pool
}

func NewQuestionPool(pool *pgxpool.Pool) *QuestionPool {
	return &QuestionPool{pool: pool}
}

func (p *QuestionPool) PublishedQuestions(ctx context.Context, subjectID string, levelID *string) ([]domain.PoolQuestion, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT q.id, q.stem, o.id, o.text, o.is_correct, o.sort_order
		FROM quizzes z
		JOIN questions q ON q.quiz_id = z.id
		JOIN question_options o ON o.question_id = q.id
		WHERE z.published
		  AND z.subject_id = $1
		  AND ($2::text IS NULL OR z.level_id = $2)
		ORDER BY q.id, o.sort_order`, subjectID, levelID)
	if err != nil {
		return nil, fmt.Errorf("query question pool: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.PoolQuestion)
	var order []string
	for rows.Next() {
		var (
			questionID, stem, optionID, text string
			correct                          bool
			sortOrder                        int
		)
		if err := rows.Scan(&questionID, &stem, &optionID, &text, &correct, &sortOrder); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		q, ok := byID[questionID]
		if !ok {
			q = &domain.PoolQuestion{ID: questionID, Prompt: stem}
			byID[questionID] = q
			order = append(order, questionID)
		}
		q.Options = append(q.Options, domain.PoolOption{
			ID:        optionID,
			Text:      text,
			Correct:   correct,
			SortOrder: sortOrder,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question rows: %w", err)
	}

	questions := make([]domain.PoolQuestion, 0, len(order))
	for _, id := range order {
		questions = append(questions, *byID[id])
	}
	return questions, nil
}

var _ app.QuestionPool = (*QuestionPool)(nil)
