package application

import (
	"context"
	"log/slog"
	"time"

	"tiltcheck/contexts/arcade/score-validation/domain/entities"
	"tiltcheck/contexts/arcade/score-validation/ports"
)

// Notifier is the only writer of notification rows. Each emission persists
// the notification for the excluded UI and appends an outbox envelope so the
// relay worker can deliver it to the sink without the caller blocking on
// delivery.
type Notifier struct {
	Notifications ports.NotificationRepository
	Outbox        ports.OutboxWriter
	IDGen         ports.IDGenerator
	Logger        *slog.Logger
}

func (n Notifier) Emit(
	ctx context.Context,
	recipientID string,
	notificationType entities.NotificationType,
	payload entities.NotificationPayload,
	occurredAt time.Time,
) error {
	logger := ResolveLogger(n.Logger)
	notificationID, err := n.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	notification := entities.Notification{
		NotificationID: notificationID,
		RecipientID:    recipientID,
		Type:           notificationType,
		Payload:        payload,
		Read:           false,
		CreatedAt:      occurredAt,
	}
	if err := n.Notifications.AddNotification(ctx, notification); err != nil {
		return err
	}

	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if n.Outbox == nil {
		return nil
	}
	eventID, err := n.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope := ports.EventEnvelope{
		EventID:        eventID,
		EventType:      "notification." + string(notificationType),
		SourceService:  "tiltcheck",
		OccurredAtUTC:  occurredAt,
		EntityType:     "notification",
		EntityID:       notificationID,
		PayloadVersion: 1,
		Payload: map[string]any{
			"notification_id": notificationID,
			"recipient_id":    recipientID,
			"type":            string(notificationType),
			"score_id":        payload.ScoreID,
			"machine_name":    payload.MachineName,
			"claimed_value":   payload.ClaimedValue,
			"approve_count":   payload.ApproveCount,
			"reject_count":    payload.RejectCount,
		},
	}
	if err := n.Outbox.AppendOutbox(ctx, envelope); err != nil {
		return err
	}
	logger.Info("notification emitted",
		"event", "validation_notification_emitted",
		"module", "arcade/score-validation",
		"layer", "application",
		"notification_id", notificationID,
		"recipient_id", recipientID,
		"type", string(notificationType),
		"score_id", payload.ScoreID,
	)
	return nil
}
