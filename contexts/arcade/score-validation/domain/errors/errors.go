package errors

import "errors"

var (
	ErrInvalidSubmission    = errors.New("invalid score submission")
	ErrInvalidVoteInput     = errors.New("invalid vote input")
	ErrInvalidReasonCode    = errors.New("invalid rejection reason code")
	ErrScoreNotFound        = errors.New("score not found")
	ErrInvalidVoter         = errors.New("voters cannot vote on their own score")
	ErrScoreAlreadyResolved = errors.New("score is already resolved")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrConflict             = errors.New("write conflict")
	ErrPrecheckUnavailable  = errors.New("automated pre-check unavailable")
)
