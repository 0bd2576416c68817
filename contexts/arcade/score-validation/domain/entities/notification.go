package entities

import "time"

type NotificationType string

const (
	NotificationScoreAccepted      NotificationType = "score_accepted"
	NotificationScoreDeclined      NotificationType = "score_declined"
	NotificationScorePendingReview NotificationType = "score_pending_review"
)

// NotificationPayload carries the display fields the notification UI needs
// without a second lookup.
type NotificationPayload struct {
	ScoreID      string `json:"score_id"`
	MachineName  string `json:"machine_name"`
	ClaimedValue int64  `json:"claimed_value"`
	ApproveCount int    `json:"approve_count"`
	RejectCount  int    `json:"reject_count"`
}

// Notification is created exactly once per terminal transition plus once at
// submission time; only the Read flag mutates afterwards.
type Notification struct {
	NotificationID string
	RecipientID    string
	Type           NotificationType
	Payload        NotificationPayload
	Read           bool
	CreatedAt      time.Time
}
