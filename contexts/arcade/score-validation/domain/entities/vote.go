package entities

import "time"

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

type ReasonCode string

const (
	ReasonMachineMismatch ReasonCode = "machine_mismatch"
	ReasonScoreMismatch   ReasonCode = "score_mismatch"
	ReasonPhotoUnreadable ReasonCode = "photo_unreadable"
	ReasonSuspectedTamper ReasonCode = "suspected_tamper"
	ReasonOther           ReasonCode = "other"
)

// ValidReasonCode reports membership in the closed rejection-reason set.
func ValidReasonCode(code ReasonCode) bool {
	switch code {
	case ReasonMachineMismatch, ReasonScoreMismatch, ReasonPhotoUnreadable,
		ReasonSuspectedTamper, ReasonOther:
		return true
	default:
		return false
	}
}

// Vote is the single live verdict a voter holds for a score. The pair
// (ScoreID, VoterID) is unique; re-casting overwrites in place.
type Vote struct {
	VoteID     string
	ScoreID    string
	VoterID    string
	Verdict    Verdict
	ReasonCode ReasonCode
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
