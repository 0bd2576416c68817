package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "tiltcheck/contexts/arcade/score-validation/application"
	"tiltcheck/contexts/arcade/score-validation/ports"
)

// NotificationRelay publishes persisted outbox rows to the notification
// sink. Delivery is retried once in-cycle on failure; a second failure marks
// the row failed and is logged, never rolled back into score state.
type NotificationRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Topic     string
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r NotificationRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("notification outbox list failed",
			"event", "validation_outbox_list_failed",
			"module", "arcade/score-validation",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	published := 0
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("notification outbox decode failed",
				"event", "validation_outbox_decode_failed",
				"module", "arcade/score-validation",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			if err := r.Outbox.MarkOutboxFailed(ctx, row.OutboxID, now); err != nil {
				return err
			}
			continue
		}

		if err := r.publishWithRetry(ctx, event); err != nil {
			logger.Error("notification delivery failed after retry",
				"event", "validation_outbox_delivery_failed",
				"module", "arcade/score-validation",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			if err := r.Outbox.MarkOutboxFailed(ctx, row.OutboxID, now); err != nil {
				return err
			}
			continue
		}
		// A bookkeeping failure on one row must not starve the rest of the
		// batch; the row stays pending and is retried next cycle.
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("notification outbox mark published failed",
				"event", "validation_outbox_mark_published_failed",
				"module", "arcade/score-validation",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			continue
		}
		published++
	}

	logger.Info("notification relay cycle completed",
		"event", "validation_outbox_relay_completed",
		"module", "arcade/score-validation",
		"layer", "worker",
		"pending_count", len(pending),
		"published_count", published,
	)
	return nil
}

func (r NotificationRelay) publishWithRetry(ctx context.Context, event ports.EventEnvelope) error {
	err := r.Publisher.Publish(ctx, r.Topic, event)
	if err == nil {
		return nil
	}
	return r.Publisher.Publish(ctx, r.Topic, event)
}
