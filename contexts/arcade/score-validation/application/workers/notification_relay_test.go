package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"tiltcheck/contexts/arcade/score-validation/adapters/memory"
	"tiltcheck/contexts/arcade/score-validation/ports"
)

type countingPublisher struct {
	failFirst int
	calls     int
	topics    []string
}

func (p *countingPublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	p.calls++
	p.topics = append(p.topics, topic)
	if p.calls <= p.failFirst {
		return errors.New("broker unavailable")
	}
	return nil
}

func seedOutbox(t *testing.T, store *memory.Store, eventID string, offset time.Duration) {
	t.Helper()
	err := store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:        eventID,
		EventType:      "notification.score_accepted",
		SourceService:  "tiltcheck",
		OccurredAtUTC:  time.Date(2026, time.March, 13, 7, 0, 0, 0, time.UTC).Add(offset),
		EntityType:     "notification",
		EntityID:       "notification-1",
		PayloadVersion: 1,
		Payload:        map[string]any{"score_id": "score-1"},
	})
	if err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}
}

func outboxStatus(t *testing.T, store *memory.Store, eventID string) ports.OutboxMessage {
	t.Helper()
	for _, message := range store.OutboxMessages() {
		if message.OutboxID == eventID {
			return message
		}
	}
	t.Fatalf("outbox row %s not found", eventID)
	return ports.OutboxMessage{}
}

func TestRelayPublishesPendingRows(t *testing.T) {
	store := memory.NewStore(nil)
	seedOutbox(t, store, "event-1", 0)
	publisher := &countingPublisher{}
	relay := NotificationRelay{
		Outbox:    store,
		Publisher: publisher,
		Topic:     "score-validation.notifications",
		Clock:     store,
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay cycle failed: %v", err)
	}
	if publisher.calls != 1 {
		t.Fatalf("expected one publish, got %d", publisher.calls)
	}
	if publisher.topics[0] != "score-validation.notifications" {
		t.Fatalf("published to wrong topic: %s", publisher.topics[0])
	}
	if status := outboxStatus(t, store, "event-1").Status; status != "published" {
		t.Fatalf("expected published row, got %s", status)
	}
}

func TestRelayRetriesOnceThenSucceeds(t *testing.T) {
	store := memory.NewStore(nil)
	seedOutbox(t, store, "event-1", 0)
	publisher := &countingPublisher{failFirst: 1}
	relay := NotificationRelay{
		Outbox:    store,
		Publisher: publisher,
		Topic:     "score-validation.notifications",
		Clock:     store,
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay cycle failed: %v", err)
	}
	if publisher.calls != 2 {
		t.Fatalf("expected failed attempt plus one retry, got %d calls", publisher.calls)
	}
	if status := outboxStatus(t, store, "event-1").Status; status != "published" {
		t.Fatalf("expected published after retry, got %s", status)
	}
}

func TestRelayMarksFailedWhenRetryExhausted(t *testing.T) {
	store := memory.NewStore(nil)
	seedOutbox(t, store, "event-1", 0)
	publisher := &countingPublisher{failFirst: 10}
	relay := NotificationRelay{
		Outbox:    store,
		Publisher: publisher,
		Topic:     "score-validation.notifications",
		Clock:     store,
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("delivery failure must not abort the cycle: %v", err)
	}
	if publisher.calls != 2 {
		t.Fatalf("expected exactly two attempts, got %d", publisher.calls)
	}
	row := outboxStatus(t, store, "event-1")
	if row.Status != "failed" {
		t.Fatalf("expected failed row, got %s", row.Status)
	}
	if row.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", row.RetryCount)
	}
}

func TestRelayFailureDoesNotBlockLaterRows(t *testing.T) {
	store := memory.NewStore(nil)
	seedOutbox(t, store, "event-1", 0)
	seedOutbox(t, store, "event-2", time.Second)
	// Both attempts for the first row fail, the second row goes through.
	publisher := &countingPublisher{failFirst: 2}
	relay := NotificationRelay{
		Outbox:    store,
		Publisher: publisher,
		Topic:     "score-validation.notifications",
		Clock:     store,
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay cycle failed: %v", err)
	}
	statuses := map[string]string{}
	for _, message := range store.OutboxMessages() {
		statuses[message.OutboxID] = message.Status
	}
	if statuses["event-1"] != "failed" || statuses["event-2"] != "published" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
}

type brokenBookkeepingOutbox struct {
	*memory.Store
	failOutboxID string
}

func (o *brokenBookkeepingOutbox) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	if outboxID == o.failOutboxID {
		return errors.New("row locked")
	}
	return o.Store.MarkOutboxPublished(ctx, outboxID, publishedAt)
}

func TestRelayBookkeepingFailureDoesNotStarveBatch(t *testing.T) {
	store := memory.NewStore(nil)
	seedOutbox(t, store, "event-1", 0)
	seedOutbox(t, store, "event-2", time.Second)
	publisher := &countingPublisher{}
	relay := NotificationRelay{
		Outbox:    &brokenBookkeepingOutbox{Store: store, failOutboxID: "event-1"},
		Publisher: publisher,
		Topic:     "score-validation.notifications",
		Clock:     store,
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("bookkeeping failure must not abort the cycle: %v", err)
	}
	if publisher.calls != 2 {
		t.Fatalf("expected both rows published, got %d calls", publisher.calls)
	}
	statuses := map[string]string{}
	for _, message := range store.OutboxMessages() {
		statuses[message.OutboxID] = message.Status
	}
	// The unmarked row stays pending for the next cycle; the rest of the
	// batch still goes out.
	if statuses["event-1"] != "pending" || statuses["event-2"] != "published" {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
}

func TestRelayEmptyOutboxIsNoop(t *testing.T) {
	store := memory.NewStore(nil)
	publisher := &countingPublisher{}
	relay := NotificationRelay{Outbox: store, Publisher: publisher, Topic: "t", Clock: store}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("empty cycle failed: %v", err)
	}
	if publisher.calls != 0 {
		t.Fatalf("expected no publishes, got %d", publisher.calls)
	}
}
