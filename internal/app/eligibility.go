package app

import (
	"context"
	"fmt"
	"sort"
)

// EligibilityChecker gates duel creation and invitations. It only consults
// external collaborators and never mutates state.
type EligibilityChecker struct {
	classes  ClassDirectory
	content  ContentDirectory
	progress ProgressReader
}

func NewEligibilityChecker(classes ClassDirectory, content ContentDirectory, progress ProgressReader) *EligibilityChecker {
	return &EligibilityChecker{classes: classes, content: content, progress: progress}
}

// CanCreateDuel reports whether the user has been exposed to the subject's
// content: the subject is taught in one of the user's classes, the user has
// any progress record for it, the subject has no levels at all, or the user
// has cleared every level.
func (e *EligibilityChecker) CanCreateDuel(ctx context.Context, userID, subjectID string) (bool, error) {
	userClasses, err := e.classes.ClassIDsOf(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load user classes: %w", err)
	}
	subjectClasses, err := e.classes.ClassIDsForSubject(ctx, subjectID)
	if err != nil {
		return false, fmt.Errorf("load subject classes: %w", err)
	}
	if intersects(userClasses, subjectClasses) {
		return true, nil
	}

	hasProgress, err := e.progress.HasSubjectProgress(ctx, userID, subjectID)
	if err != nil {
		return false, fmt.Errorf("load subject progress: %w", err)
	}
	if hasProgress {
		return true, nil
	}

	levelIDs, err := e.content.SubjectLevelIDs(ctx, subjectID)
	if err != nil {
		return false, fmt.Errorf("load subject levels: %w", err)
	}
	if len(levelIDs) == 0 {
		return true, nil
	}
	for _, levelID := range levelIDs {
		cleared, err := e.progress.LevelCleared(ctx, userID, levelID)
		if err != nil {
			return false, fmt.Errorf("check level %s: %w", levelID, err)
		}
		if !cleared {
			return false, nil
		}
	}
	return true, nil
}

// SameClass reports whether two users share at least one class. Duels are only
// permitted between classmates.
func (e *EligibilityChecker) SameClass(ctx context.Context, userA, userB string) (bool, error) {
	classesA, err := e.classes.ClassIDsOf(ctx, userA)
	if err != nil {
		return false, fmt.Errorf("load classes of %s: %w", userA, err)
	}
	classesB, err := e.classes.ClassIDsOf(ctx, userB)
	if err != nil {
		return false, fmt.Errorf("load classes of %s: %w", userB, err)
	}
	return intersects(classesA, classesB), nil
}

// EligibleClassmates lists the user's classmates who could themselves start a
// duel on the subject, sorted for stable output.
func (e *EligibilityChecker) EligibleClassmates(ctx context.Context, userID, subjectID string) ([]string, error) {
	classIDs, err := e.classes.ClassIDsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user classes: %w", err)
	}
	seen := map[string]struct{}{userID: {}}
	var eligible []string
	for _, classID := range classIDs {
		members, err := e.classes.MemberIDsOf(ctx, classID)
		if err != nil {
			return nil, fmt.Errorf("load members of class %s: %w", classID, err)
		}
		for _, member := range members {
			if _, ok := seen[member]; ok {
				continue
			}
			seen[member] = struct{}{}
			ok, err := e.CanCreateDuel(ctx, member, subjectID)
			if err != nil {
				return nil, err
			}
			if ok {
				eligible = append(eligible, member)
			}
		}
	}
	sort.Strings(eligible)
	return eligible, nil
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
