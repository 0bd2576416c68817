package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SubmitScoreRequest struct {
	MachineName    string `json:"machine_name"`
	LocationName   string `json:"location_name"`
	ClaimedValue   int64  `json:"claimed_value"`
	PhotoReference string `json:"photo_reference,omitempty"`
}

type ScoreResponse struct {
	ScoreID         string `json:"score_id"`
	OwnerID         string `json:"owner_id"`
	MachineName     string `json:"machine_name"`
	LocationName    string `json:"location_name"`
	ClaimedValue    int64  `json:"claimed_value"`
	PhotoReference  string `json:"photo_reference,omitempty"`
	ValidationState string `json:"validation_state"`
	ApproveCount    int    `json:"approve_count"`
	RejectCount     int    `json:"reject_count"`
	CreatedAt       string `json:"created_at"`
	ResolvedAt      string `json:"resolved_at,omitempty"`
}

type SubmitScoreResponse struct {
	Score        ScoreResponse `json:"score"`
	AutoAccepted bool          `json:"auto_accepted"`
}

type CastVoteRequest struct {
	Verdict    string `json:"verdict"`
	ReasonCode string `json:"reason_code,omitempty"`
}

type CastVoteResponse struct {
	ScoreID         string `json:"score_id"`
	ValidationState string `json:"validation_state"`
	ApproveCount    int    `json:"approve_count"`
	RejectCount     int    `json:"reject_count"`
	Transitioned    bool   `json:"transitioned"`
}

type ReviewQueueResponse struct {
	Items []ScoreResponse `json:"items"`
}

type PendingScoreItem struct {
	Score              ScoreResponse `json:"score"`
	ApprovalsRemaining int           `json:"approvals_remaining"`
}

type MyPendingResponse struct {
	Items []PendingScoreItem `json:"items"`
}

type NotificationResponse struct {
	NotificationID string `json:"notification_id"`
	Type           string `json:"type"`
	ScoreID        string `json:"score_id"`
	MachineName    string `json:"machine_name"`
	ClaimedValue   int64  `json:"claimed_value"`
	ApproveCount   int    `json:"approve_count"`
	RejectCount    int    `json:"reject_count"`
	Read           bool   `json:"read"`
	CreatedAt      string `json:"created_at"`
}

type NotificationListResponse struct {
	Items []NotificationResponse `json:"items"`
}
