package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"tiltcheck/contexts/arcade/score-validation/domain/entities"
	domainerrors "tiltcheck/contexts/arcade/score-validation/domain/errors"
	"tiltcheck/contexts/arcade/score-validation/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message ports.OutboxMessage
}

// Store is the in-memory implementation of every score-validation port.
// A single mutex gives it the same write-serialization guarantees the
// postgres adapter gets from conditional updates, which keeps concurrency
// tests honest.
type Store struct {
	mu sync.Mutex

	scores        map[string]entities.Score
	votes         map[string]entities.Vote
	notifications map[string]entities.Notification
	outbox        map[string]outboxRecord
}

func NewStore(seed []entities.Score) *Store {
	scores := make(map[string]entities.Score, len(seed))
	for _, score := range seed {
		scores[score.ScoreID] = score
	}
	return &Store{
		scores:        scores,
		votes:         make(map[string]entities.Vote),
		notifications: make(map[string]entities.Notification),
		outbox:        make(map[string]outboxRecord),
	}
}

func (s *Store) CreateScore(_ context.Context, score entities.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scoreID := strings.TrimSpace(score.ScoreID)
	if _, ok := s.scores[scoreID]; ok {
		return domainerrors.ErrConflict
	}
	s.scores[scoreID] = score
	return nil
}

func (s *Store) GetScore(_ context.Context, scoreID string) (entities.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[strings.TrimSpace(scoreID)]
	if !ok {
		return entities.Score{}, domainerrors.ErrScoreNotFound
	}
	return score, nil
}

func (s *Store) TransitionState(
	_ context.Context,
	scoreID string,
	to entities.ValidationState,
	resolvedAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[strings.TrimSpace(scoreID)]
	if !ok {
		return false, domainerrors.ErrScoreNotFound
	}
	if score.ValidationState != entities.ValidationStatePending {
		return false, nil
	}
	resolved := resolvedAt.UTC()
	score.ValidationState = to
	score.ResolvedAt = &resolved
	s.scores[score.ScoreID] = score
	return true, nil
}

func (s *Store) ListReviewable(_ context.Context, requesterID string) ([]entities.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requesterID = strings.TrimSpace(requesterID)
	items := make([]entities.Score, 0)
	for _, score := range s.scores {
		if score.ValidationState != entities.ValidationStatePending {
			continue
		}
		if strings.EqualFold(score.OwnerID, requesterID) {
			continue
		}
		if _, voted := s.votes[voteKey(score.ScoreID, requesterID)]; voted {
			continue
		}
		items = append(items, score)
	}
	sortScoresByCreation(items)
	return items, nil
}

func (s *Store) ListPendingByOwner(_ context.Context, ownerID string) ([]entities.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ownerID = strings.TrimSpace(ownerID)
	items := make([]entities.Score, 0)
	for _, score := range s.scores {
		if score.ValidationState == entities.ValidationStatePending && strings.EqualFold(score.OwnerID, ownerID) {
			items = append(items, score)
		}
	}
	sortScoresByCreation(items)
	return items, nil
}

func (s *Store) UpsertVote(_ context.Context, vote entities.Vote) (entities.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[strings.TrimSpace(vote.ScoreID)]
	if !ok {
		return entities.Vote{}, domainerrors.ErrScoreNotFound
	}
	if score.ValidationState != entities.ValidationStatePending {
		return entities.Vote{}, domainerrors.ErrScoreAlreadyResolved
	}
	key := voteKey(vote.ScoreID, vote.VoterID)
	if existing, ok := s.votes[key]; ok {
		vote.VoteID = existing.VoteID
		vote.CreatedAt = existing.CreatedAt
	}
	if vote.Verdict == entities.VerdictApprove {
		vote.ReasonCode = ""
	}
	s.votes[key] = vote
	return vote, nil
}

func (s *Store) GetVoteByIdentity(_ context.Context, scoreID string, voterID string) (entities.Vote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vote, ok := s.votes[voteKey(scoreID, voterID)]
	return vote, ok, nil
}

func (s *Store) CountVerdicts(_ context.Context, scoreID string) (entities.ScoreCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := entities.ScoreCounts{ScoreID: strings.TrimSpace(scoreID)}
	for _, vote := range s.votes {
		if vote.ScoreID != counts.ScoreID {
			continue
		}
		switch vote.Verdict {
		case entities.VerdictApprove:
			counts.ApproveCount++
		case entities.VerdictReject:
			counts.RejectCount++
		}
	}
	return counts, nil
}

func (s *Store) ListVotesByScore(_ context.Context, scoreID string) ([]entities.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scoreID = strings.TrimSpace(scoreID)
	items := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.ScoreID == scoreID {
			items = append(items, vote)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) AddNotification(_ context.Context, notification entities.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[strings.TrimSpace(notification.NotificationID)] = notification
	return nil
}

func (s *Store) ListNotificationsByRecipient(_ context.Context, recipientID string) ([]entities.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recipientID = strings.TrimSpace(recipientID)
	items := make([]entities.Notification, 0)
	for _, notification := range s.notifications {
		if strings.EqualFold(notification.RecipientID, recipientID) {
			items = append(items, notification)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, notificationID string, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[strings.TrimSpace(notificationID)]
	if !ok || !strings.EqualFold(notification.RecipientID, strings.TrimSpace(recipientID)) {
		return domainerrors.ErrNotificationNotFound
	}
	notification.Read = true
	s.notifications[notification.NotificationID] = notification
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox[envelope.EventID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     envelope.EventID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.EntityID,
			Payload:      payload,
			Status:       "pending",
			CreatedAt:    envelope.OccurredAtUTC,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, record := range s.outbox {
		if record.message.Status == "pending" {
			items = append(items, record.message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	return s.setOutboxStatus(outboxID, "published")
}

func (s *Store) MarkOutboxFailed(_ context.Context, outboxID string, _ time.Time) error {
	return s.setOutboxStatus(outboxID, "failed")
}

func (s *Store) setOutboxStatus(outboxID string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	record.message.Status = status
	if status == "failed" {
		record.message.RetryCount++
	}
	s.outbox[record.message.OutboxID] = record
	return nil
}

// Notifications exposes a copy of all notification rows for tests.
func (s *Store) Notifications() []entities.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]entities.Notification, 0, len(s.notifications))
	for _, notification := range s.notifications {
		items = append(items, notification)
	}
	return items
}

// OutboxMessages exposes a copy of all outbox rows for tests.
func (s *Store) OutboxMessages() []ports.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, record := range s.outbox {
		items = append(items, record.message)
	}
	return items
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func voteKey(scoreID string, voterID string) string {
	return strings.TrimSpace(scoreID) + "|" + strings.TrimSpace(voterID)
}

func sortScoresByCreation(items []entities.Score) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

var _ ports.ScoreRepository = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
var _ ports.NotificationRepository = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
