package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tiltcheck/contexts/arcade/score-validation/domain/entities"
	domainerrors "tiltcheck/contexts/arcade/score-validation/domain/errors"
	"tiltcheck/contexts/arcade/score-validation/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
	outboxStatusFailed    = "failed"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateScore(ctx context.Context, score entities.Score) error {
	row := scoreModelFromEntity(score)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("validation_repo_create_score_failed", err,
			"score_id", strings.TrimSpace(score.ScoreID),
			"owner_id", strings.TrimSpace(score.OwnerID),
		)
	}
	return nil
}

func (r *Repository) GetScore(ctx context.Context, scoreID string) (entities.Score, error) {
	var row scoreModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(scoreID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Score{}, domainerrors.ErrScoreNotFound
		}
		return entities.Score{}, r.logError("validation_repo_get_score_failed", err, "score_id", strings.TrimSpace(scoreID))
	}
	return row.toEntity(), nil
}

// TransitionState is the compare-and-swap on validation_state: the update is
// guarded by "only if currently pending", so exactly one concurrent caller
// observes RowsAffected == 1 and performs the terminal transition.
func (r *Repository) TransitionState(
	ctx context.Context,
	scoreID string,
	to entities.ValidationState,
	resolvedAt time.Time,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&scoreModel{}).
		Where("id = ?", strings.TrimSpace(scoreID)).
		Where("validation_state = ?", string(entities.ValidationStatePending)).
		Updates(map[string]any{
			"validation_state": string(to),
			"resolved_at":      resolvedAt.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("validation_repo_transition_state_failed", result.Error,
			"score_id", strings.TrimSpace(scoreID),
			"to_state", string(to),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ListReviewable(ctx context.Context, requesterID string) ([]entities.Score, error) {
	requesterID = strings.TrimSpace(requesterID)
	var rows []scoreModel
	err := r.db.WithContext(ctx).
		Model(&scoreModel{}).
		Where("validation_state = ?", string(entities.ValidationStatePending)).
		Where("owner_id <> ?", requesterID).
		Where("NOT EXISTS (SELECT 1 FROM votes v WHERE v.score_id = scores.id AND v.voter_id = ?)", requesterID).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("validation_repo_list_reviewable_failed", err,
			"requester_id", requesterID,
		)
	}
	return toScoreEntities(rows), nil
}

func (r *Repository) ListPendingByOwner(ctx context.Context, ownerID string) ([]entities.Score, error) {
	var rows []scoreModel
	err := r.db.WithContext(ctx).
		Where("validation_state = ?", string(entities.ValidationStatePending)).
		Where("owner_id = ?", strings.TrimSpace(ownerID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("validation_repo_list_pending_by_owner_failed", err,
			"owner_id", strings.TrimSpace(ownerID),
		)
	}
	return toScoreEntities(rows), nil
}

func (r *Repository) UpsertVote(ctx context.Context, vote entities.Vote) (entities.Vote, error) {
	row := voteModelFromEntity(vote)
	var live voteModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Share-lock the score row for the duration of the write so a
		// concurrent terminal transition cannot land between the state check
		// and the vote upsert. Votes on resolved scores are rejected here
		// exactly like the memory adapter does.
		var states []string
		if err := tx.Model(&scoreModel{}).
			Clauses(clause.Locking{Strength: "SHARE"}).
			Where("id = ?", row.ScoreID).
			Pluck("validation_state", &states).Error; err != nil {
			return err
		}
		if len(states) == 0 {
			return domainerrors.ErrScoreNotFound
		}
		if entities.ValidationState(states[0]) != entities.ValidationStatePending {
			return domainerrors.ErrScoreAlreadyResolved
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "score_id"}, {Name: "voter_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"verdict":     row.Verdict,
				"reason_code": row.ReasonCode,
				"updated_at":  row.UpdatedAt,
			}),
		}).Create(&row).Error; err != nil {
			return err
		}

		// The conflict path keeps the original row id, so read the live row
		// back by identity rather than trusting the generated one.
		return tx.
			Where("score_id = ?", row.ScoreID).
			Where("voter_id = ?", row.VoterID).
			First(&live).
			Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrScoreNotFound) || errors.Is(err, domainerrors.ErrScoreAlreadyResolved) {
			return entities.Vote{}, err
		}
		return entities.Vote{}, r.logError("validation_repo_upsert_vote_failed", err,
			"score_id", strings.TrimSpace(vote.ScoreID),
			"voter_id", strings.TrimSpace(vote.VoterID),
		)
	}
	return live.toEntity(), nil
}

func (r *Repository) GetVoteByIdentity(ctx context.Context, scoreID string, voterID string) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("score_id = ?", strings.TrimSpace(scoreID)).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.logError("validation_repo_get_vote_by_identity_failed", err,
			"score_id", strings.TrimSpace(scoreID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) CountVerdicts(ctx context.Context, scoreID string) (entities.ScoreCounts, error) {
	scoreID = strings.TrimSpace(scoreID)
	type verdictCount struct {
		Verdict string
		Total   int
	}
	var rows []verdictCount
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Select("verdict, COUNT(*) AS total").
		Where("score_id = ?", scoreID).
		Group("verdict").
		Scan(&rows).
		Error
	if err != nil {
		return entities.ScoreCounts{}, r.logError("validation_repo_count_verdicts_failed", err,
			"score_id", scoreID,
		)
	}
	counts := entities.ScoreCounts{ScoreID: scoreID}
	for _, row := range rows {
		switch entities.Verdict(row.Verdict) {
		case entities.VerdictApprove:
			counts.ApproveCount = row.Total
		case entities.VerdictReject:
			counts.RejectCount = row.Total
		}
	}
	return counts, nil
}

func (r *Repository) ListVotesByScore(ctx context.Context, scoreID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("score_id = ?", strings.TrimSpace(scoreID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("validation_repo_list_votes_by_score_failed", err,
			"score_id", strings.TrimSpace(scoreID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AddNotification(ctx context.Context, notification entities.Notification) error {
	row, err := notificationModelFromEntity(notification)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("validation_repo_add_notification_failed", err,
			"notification_id", strings.TrimSpace(notification.NotificationID),
			"recipient_id", strings.TrimSpace(notification.RecipientID),
		)
	}
	return nil
}

func (r *Repository) ListNotificationsByRecipient(ctx context.Context, recipientID string) ([]entities.Notification, error) {
	var rows []notificationModel
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ?", strings.TrimSpace(recipientID)).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("validation_repo_list_notifications_failed", err,
			"recipient_id", strings.TrimSpace(recipientID),
		)
	}
	items := make([]entities.Notification, 0, len(rows))
	for _, row := range rows {
		entity, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, entity)
	}
	return items, nil
}

func (r *Repository) MarkNotificationRead(ctx context.Context, notificationID string, recipientID string) error {
	result := r.db.WithContext(ctx).
		Model(&notificationModel{}).
		Where("id = ?", strings.TrimSpace(notificationID)).
		Where("recipient_id = ?", strings.TrimSpace(recipientID)).
		Update("read", true)
	if result.Error != nil {
		return r.logError("validation_repo_mark_notification_read_failed", result.Error,
			"notification_id", strings.TrimSpace(notificationID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotificationNotFound
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    envelope.EventType,
		PartitionKey: envelope.EntityID,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAtUTC.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("validation_repo_append_outbox_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("validation_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			Status:       row.Status,
			RetryCount:   row.RetryCount,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("validation_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) MarkOutboxFailed(ctx context.Context, outboxID string, failedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusFailed,
			"published_at": failedAt.UTC(),
			"retry_count":  gorm.Expr("retry_count + 1"),
		})
	if result.Error != nil {
		return r.logError("validation_repo_mark_outbox_failed_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "arcade/score-validation",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("score validation repository operation failed", fields...)
	return err
}

type scoreModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	OwnerID         string     `gorm:"column:owner_id"`
	MachineName     string     `gorm:"column:machine_name"`
	LocationName    string     `gorm:"column:location_name"`
	ClaimedValue    int64      `gorm:"column:claimed_value"`
	PhotoReference  *string    `gorm:"column:photo_reference"`
	ValidationState string     `gorm:"column:validation_state"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at"`
}

func (scoreModel) TableName() string {
	return "scores"
}

func scoreModelFromEntity(score entities.Score) scoreModel {
	row := scoreModel{
		ID:              strings.TrimSpace(score.ScoreID),
		OwnerID:         strings.TrimSpace(score.OwnerID),
		MachineName:     strings.TrimSpace(score.MachineName),
		LocationName:    strings.TrimSpace(score.LocationName),
		ClaimedValue:    score.ClaimedValue,
		ValidationState: string(score.ValidationState),
		CreatedAt:       score.CreatedAt.UTC(),
		ResolvedAt:      normalizeOptionalTime(score.ResolvedAt),
	}
	if strings.TrimSpace(score.PhotoReference) != "" {
		photo := strings.TrimSpace(score.PhotoReference)
		row.PhotoReference = &photo
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m scoreModel) toEntity() entities.Score {
	photo := ""
	if m.PhotoReference != nil {
		photo = strings.TrimSpace(*m.PhotoReference)
	}
	return entities.Score{
		ScoreID:         m.ID,
		OwnerID:         m.OwnerID,
		MachineName:     m.MachineName,
		LocationName:    m.LocationName,
		ClaimedValue:    m.ClaimedValue,
		PhotoReference:  photo,
		ValidationState: entities.ValidationState(m.ValidationState),
		CreatedAt:       m.CreatedAt.UTC(),
		ResolvedAt:      normalizeOptionalTime(m.ResolvedAt),
	}
}

type voteModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ScoreID    string    `gorm:"column:score_id;uniqueIndex:uq_votes_score_voter"`
	VoterID    string    `gorm:"column:voter_id;uniqueIndex:uq_votes_score_voter"`
	Verdict    string    `gorm:"column:verdict"`
	ReasonCode *string   `gorm:"column:reason_code"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	row := voteModel{
		ID:        strings.TrimSpace(vote.VoteID),
		ScoreID:   strings.TrimSpace(vote.ScoreID),
		VoterID:   strings.TrimSpace(vote.VoterID),
		Verdict:   string(vote.Verdict),
		CreatedAt: vote.CreatedAt.UTC(),
		UpdatedAt: vote.UpdatedAt.UTC(),
	}
	if vote.Verdict == entities.VerdictReject && vote.ReasonCode != "" {
		reason := string(vote.ReasonCode)
		row.ReasonCode = &reason
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m voteModel) toEntity() entities.Vote {
	reason := entities.ReasonCode("")
	if m.ReasonCode != nil {
		reason = entities.ReasonCode(*m.ReasonCode)
	}
	return entities.Vote{
		VoteID:     m.ID,
		ScoreID:    m.ScoreID,
		VoterID:    m.VoterID,
		Verdict:    entities.Verdict(m.Verdict),
		ReasonCode: reason,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type notificationModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	RecipientID string    `gorm:"column:recipient_id"`
	Type        string    `gorm:"column:type"`
	Payload     []byte    `gorm:"column:payload"`
	Read        bool      `gorm:"column:read"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (notificationModel) TableName() string {
	return "notifications"
}

func notificationModelFromEntity(notification entities.Notification) (notificationModel, error) {
	payload, err := json.Marshal(notification.Payload)
	if err != nil {
		return notificationModel{}, err
	}
	row := notificationModel{
		ID:          strings.TrimSpace(notification.NotificationID),
		RecipientID: strings.TrimSpace(notification.RecipientID),
		Type:        string(notification.Type),
		Payload:     payload,
		Read:        notification.Read,
		CreatedAt:   notification.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row, nil
}

func (m notificationModel) toEntity() (entities.Notification, error) {
	var payload entities.NotificationPayload
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return entities.Notification{}, err
		}
	}
	return entities.Notification{
		NotificationID: m.ID,
		RecipientID:    m.RecipientID,
		Type:           entities.NotificationType(m.Type),
		Payload:        payload,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt.UTC(),
	}, nil
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	RetryCount   int        `gorm:"column:retry_count"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "notification_outbox"
}

func toScoreEntities(rows []scoreModel) []entities.Score {
	items := make([]entities.Score, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ScoreRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.NotificationRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
