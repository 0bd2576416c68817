package ports

import (
	"context"
	"time"

	"tiltcheck/contexts/arcade/score-validation/domain/entities"
)

type ScoreRepository interface {
	CreateScore(ctx context.Context, score entities.Score) error
	GetScore(ctx context.Context, scoreID string) (entities.Score, error)
	// TransitionState is the single conditional write on validation_state:
	// it succeeds only while the score is still pending and reports whether
	// this caller performed the transition.
	TransitionState(ctx context.Context, scoreID string, to entities.ValidationState, resolvedAt time.Time) (bool, error)
	ListReviewable(ctx context.Context, requesterID string) ([]entities.Score, error)
	ListPendingByOwner(ctx context.Context, ownerID string) ([]entities.Score, error)
}

type VoteRepository interface {
	// UpsertVote inserts or overwrites the voter's single live vote for the
	// score, keyed by (score_id, voter_id).
	UpsertVote(ctx context.Context, vote entities.Vote) (entities.Vote, error)
	GetVoteByIdentity(ctx context.Context, scoreID string, voterID string) (entities.Vote, bool, error)
	// CountVerdicts aggregates the live vote ledger for the score.
	CountVerdicts(ctx context.Context, scoreID string) (entities.ScoreCounts, error)
	ListVotesByScore(ctx context.Context, scoreID string) ([]entities.Vote, error)
}

type NotificationRepository interface {
	AddNotification(ctx context.Context, notification entities.Notification) error
	ListNotificationsByRecipient(ctx context.Context, recipientID string) ([]entities.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string, recipientID string) error
}

// EventEnvelope is the wire shape delivered to the notification sink.
type EventEnvelope struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	SourceService  string    `json:"source_service"`
	OccurredAtUTC  time.Time `json:"occurred_at_utc"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	PayloadVersion int       `json:"payload_version"`
	Payload        any       `json:"payload"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	Status       string
	RetryCount   int
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
	MarkOutboxFailed(ctx context.Context, outboxID string, failedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type PrecheckConfidence string

const (
	PrecheckConfidenceNone   PrecheckConfidence = "none"
	PrecheckConfidenceLow    PrecheckConfidence = "low"
	PrecheckConfidenceMedium PrecheckConfidence = "medium"
	PrecheckConfidenceHigh   PrecheckConfidence = "high"
)

type PrecheckRequest struct {
	PhotoReference string
	MachineName    string
	ClaimedValue   int64
}

type PrecheckResult struct {
	MachineMatch      bool
	ScoreMatch        bool
	MachineConfidence PrecheckConfidence
	ScoreConfidence   PrecheckConfidence
}

// FullMatch is the only outcome that bypasses community review.
func (r PrecheckResult) FullMatch() bool {
	return r.MachineMatch && r.ScoreMatch
}

// PrecheckClient wraps the external AI vision service. A single bounded
// attempt per submission; unavailability surfaces as
// domainerrors.ErrPrecheckUnavailable and callers treat it as no opinion.
type PrecheckClient interface {
	Analyze(ctx context.Context, req PrecheckRequest) (PrecheckResult, error)
}

// QuorumPolicy is the injected resolution policy; thresholds come from
// configuration rather than module constants.
type QuorumPolicy struct {
	ApprovalsToAccept   int
	RejectionsToDecline int
}

// Normalized replaces unset or non-positive thresholds with the default of
// two, so a zero-value policy cannot resolve scores on no votes.
func (p QuorumPolicy) Normalized() QuorumPolicy {
	if p.ApprovalsToAccept < 1 {
		p.ApprovalsToAccept = 2
	}
	if p.RejectionsToDecline < 1 {
		p.RejectionsToDecline = 2
	}
	return p
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
