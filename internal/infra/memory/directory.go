package memory

import (
	"context"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/domain"
)

// Fixture is a static snapshot of the collaborator subsystems (content,
// classes, progress), useful for tests and the demo server mode.
type Fixture struct {
	// Subjects maps subject id to its level ids, in order.
	Subjects map[string][]string
	// Classes maps class id to member user ids.
	Classes map[string][]string
	// ClassSubjects maps class id to the subject ids taught in it.
	ClassSubjects map[string][]string
	// Questions maps subject id to its published pool. Level-scoped pools use
	// the "subject/level" key and fall back to the subject pool when absent.
	Questions map[string][]domain.PoolQuestion
	// SubjectProgress holds "user/subject" keys for users with any progress
	// record on a subject.
	SubjectProgress map[string]bool
	// ClearedLevels holds "user/level" keys for cleared levels.
	ClearedLevels map[string]bool
}

// Directory serves all read-only collaborator contracts from a Fixture.
type Directory struct {
	fx Fixture
}

func NewDirectory(fx Fixture) *Directory {
	if fx.Subjects == nil {
		fx.Subjects = map[string][]string{}
	}
	if fx.Classes == nil {
		fx.Classes = map[string][]string{}
	}
	if fx.ClassSubjects == nil {
		fx.ClassSubjects = map[string][]string{}
	}
	if fx.Questions == nil {
		fx.Questions = map[string][]domain.PoolQuestion{}
	}
	if fx.SubjectProgress == nil {
		fx.SubjectProgress = map[string]bool{}
	}
	if fx.ClearedLevels == nil {
		fx.ClearedLevels = map[string]bool{}
	}
	return &Directory{fx: fx}
}

func (d *Directory) SubjectExists(_ context.Context, subjectID string) (bool, error) {
	_, ok := d.fx.Subjects[subjectID]
	return ok, nil
}

func (d *Directory) LevelBelongsToSubject(_ context.Context, levelID, subjectID string) (bool, error) {
	for _, lv := range d.fx.Subjects[subjectID] {
		if lv == levelID {
			return true, nil
		}
	}
	return false, nil
}

func (d *Directory) SubjectLevelIDs(_ context.Context, subjectID string) ([]string, error) {
	return append([]string(nil), d.fx.Subjects[subjectID]...), nil
}

func (d *Directory) ClassIDsOf(_ context.Context, userID string) ([]string, error) {
	var out []string
	for classID, members := range d.fx.Classes {
		for _, m := range members {
			if m == userID {
				out = append(out, classID)
				break
			}
		}
	}
	return out, nil
}

func (d *Directory) MemberIDsOf(_ context.Context, classID string) ([]string, error) {
	return append([]string(nil), d.fx.Classes[classID]...), nil
}

func (d *Directory) ClassIDsForSubject(_ context.Context, subjectID string) ([]string, error) {
	var out []string
	for classID, subjects := range d.fx.ClassSubjects {
		for _, s := range subjects {
			if s == subjectID {
				out = append(out, classID)
				break
			}
		}
	}
	return out, nil
}

func (d *Directory) PublishedQuestions(_ context.Context, subjectID string, levelID *string) ([]domain.PoolQuestion, error) {
	if levelID != nil {
		if pool, ok := d.fx.Questions[subjectID+"/"+*levelID]; ok {
			return append([]domain.PoolQuestion(nil), pool...), nil
		}
	}
	return append([]domain.PoolQuestion(nil), d.fx.Questions[subjectID]...), nil
}

func (d *Directory) HasSubjectProgress(_ context.Context, userID, subjectID string) (bool, error) {
	return d.fx.SubjectProgress[userID+"/"+subjectID], nil
}

func (d *Directory) LevelCleared(_ context.Context, userID, levelID string) (bool, error) {
	return d.fx.ClearedLevels[userID+"/"+levelID], nil
}

var (
	_ app.ContentDirectory = (*Directory)(nil)
	_ app.ClassDirectory   = (*Directory)(nil)
	_ app.QuestionPool     = (*Directory)(nil)
	_ app.ProgressReader   = (*Directory)(nil)
)
