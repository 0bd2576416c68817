package entities

import "time"

type ValidationState string

const (
	ValidationStatePending  ValidationState = "pending"
	ValidationStateAccepted ValidationState = "accepted"
	ValidationStateDeclined ValidationState = "declined"
)

// IsTerminal reports whether no further state transition is possible.
func (s ValidationState) IsTerminal() bool {
	return s == ValidationStateAccepted || s == ValidationStateDeclined
}

type Score struct {
	ScoreID         string
	OwnerID         string
	MachineName     string
	LocationName    string
	ClaimedValue    int64
	PhotoReference  string
	ValidationState ValidationState
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// ScoreCounts is the live vote aggregate for a score, recomputed from the
// vote ledger on every read rather than cached.
type ScoreCounts struct {
	ScoreID      string
	ApproveCount int
	RejectCount  int
}
