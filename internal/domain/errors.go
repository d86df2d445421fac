package domain

import "errors"

// Not-found conditions.
var (
	// ErrDuelNotFound is returned when the referenced duel does not exist.
	ErrDuelNotFound = errors.New("duel not found")
	// ErrSubjectNotFound indicates the referenced subject does not exist.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrLevelNotFound indicates the referenced level does not exist.
	ErrLevelNotFound = errors.New("level not found")
)

// Validation conditions.
var (
	// ErrLevelMismatch indicates the level does not belong to the duel's subject.
	ErrLevelMismatch = errors.New("level does not belong to subject")
)

// Authorization conditions.
var (
	// ErrNotEligible indicates the user has not been exposed to the subject's
	// content yet and may not start a duel on it.
	ErrNotEligible = errors.New("user is not eligible to duel on this subject")
	// ErrNotClassmates indicates inviter and invitee share no class.
	ErrNotClassmates = errors.New("users do not share a class")
	// ErrNotParticipant indicates the acting user is not part of the duel.
	ErrNotParticipant = errors.New("user is not a duel participant")
)

// Conflict conditions: the action violates the duel's current state.
var (
	// ErrDuelNotPending is returned for invitations against a started duel.
	ErrDuelNotPending = errors.New("duel is not pending")
	// ErrDuelNotActive is returned for answers against a duel that has not
	// started or has already finished.
	ErrDuelNotActive = errors.New("duel is not active")
	// ErrAlreadyParticipant indicates the invitee already joined the duel.
	ErrAlreadyParticipant = errors.New("user is already a participant")
	// ErrDuelFull indicates the duel already has its two players.
	ErrDuelFull = errors.New("duel already has two participants")
	// ErrNotInvited indicates there is no pending invitation to accept or decline.
	ErrNotInvited = errors.New("user has no pending invitation")
	// ErrNotEnoughParticipants is returned when starting a duel with fewer than
	// two players.
	ErrNotEnoughParticipants = errors.New("duel needs two participants to start")
	// ErrNoOpenRound indicates the duel currently has no round accepting answers.
	ErrNoOpenRound = errors.New("no open round")
	// ErrQuestionMismatch indicates the submitted question is not the open
	// round's question.
	ErrQuestionMismatch = errors.New("question does not match the open round")
	// ErrRoundClosed indicates the round already resolved.
	ErrRoundClosed = errors.New("round is closed")
	// ErrAlreadyAnswered indicates the participant already answered this round.
	ErrAlreadyAnswered = errors.New("round already answered")
)

// ErrQuestionPoolExhausted is the one fatal mid-match condition: no unused
// published question remains for the duel's subject/level. The engine cannot
// silently repeat a question.
var ErrQuestionPoolExhausted = errors.New("question pool exhausted")
