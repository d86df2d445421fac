package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"edu-duel-service/internal/app"
)

// Directory serves the subject/level hierarchy, class membership and user
// progress contracts from Postgres. All queries are read-only; the record
// management living behind these tables belongs to other subsystems.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1)`, subjectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check subject: %w", err)
	}
	return exists, nil
}

func (d *Directory) LevelBelongsToSubject(ctx context.Context, levelID, subjectID string) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM levels WHERE id = $1 AND subject_id = $2)`, levelID, subjectID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check level: %w", err)
	}
	return ok, nil
}

func (d *Directory) SubjectLevelIDs(ctx context.Context, subjectID string) ([]string, error) {
	return d.stringList(ctx,
		`SELECT id FROM levels WHERE subject_id = $1 ORDER BY sort_order, id`, subjectID)
}

func (d *Directory) ClassIDsOf(ctx context.Context, userID string) ([]string, error) {
	return d.stringList(ctx,
		`SELECT class_id FROM class_members WHERE user_id = $1 ORDER BY class_id`, userID)
}

func (d *Directory) MemberIDsOf(ctx context.Context, classID string) ([]string, error) {
	return d.stringList(ctx,
		`SELECT user_id FROM class_members WHERE class_id = $1 ORDER BY user_id`, classID)
}

func (d *Directory) ClassIDsForSubject(ctx context.Context, subjectID string) ([]string, error) {
	return d.stringList(ctx,
		`SELECT class_id FROM class_subjects WHERE subject_id = $1 ORDER BY class_id`, subjectID)
}

func (d *Directory) HasSubjectProgress(ctx context.Context, userID, subjectID string) (bool, error) {
	var has bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_progress p
			JOIN levels l ON l.id = p.level_id
			WHERE p.user_id = $1 AND l.subject_id = $2
		)`, userID, subjectID).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("check subject progress: %w", err)
	}
	return has, nil
}

// LevelCleared accepts either proxy for completion: the study text was read or
// the level quiz was completed.
func (d *Directory) LevelCleared(ctx context.Context, userID, levelID string) (bool, error) {
	var cleared bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_progress
			WHERE user_id = $1 AND level_id = $2
			  AND (study_text_read OR quiz_completed)
		)`, userID, levelID).Scan(&cleared)
	if err != nil {
		return false, fmt.Errorf("check level cleared: %w", err)
	}
	return cleared, nil
}

func (d *Directory) stringList(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := d.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query directory: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan directory row: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directory rows: %w", err)
	}
	return out, nil
}

var (
	_ app.ContentDirectory = (*Directory)(nil)
	_ app.ClassDirectory   = (*Directory)(nil)
	_ app.ProgressReader   = (*Directory)(nil)
)
