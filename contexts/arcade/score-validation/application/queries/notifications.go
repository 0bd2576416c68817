package queries

import (
	"context"
	"strings"

	"tiltcheck/contexts/arcade/score-validation/domain/entities"
	domainerrors "tiltcheck/contexts/arcade/score-validation/domain/errors"
	"tiltcheck/contexts/arcade/score-validation/ports"
)

// NotificationUseCase reads a recipient's notifications and applies the only
// permitted mutation, the read flag.
type NotificationUseCase struct {
	Notifications ports.NotificationRepository
}

func (uc NotificationUseCase) ListForRecipient(ctx context.Context, recipientID string) ([]entities.Notification, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, domainerrors.ErrInvalidVoteInput
	}
	return uc.Notifications.ListNotificationsByRecipient(ctx, recipientID)
}

func (uc NotificationUseCase) MarkRead(ctx context.Context, notificationID string, recipientID string) error {
	notificationID = strings.TrimSpace(notificationID)
	recipientID = strings.TrimSpace(recipientID)
	if notificationID == "" || recipientID == "" {
		return domainerrors.ErrNotificationNotFound
	}
	return uc.Notifications.MarkNotificationRead(ctx, notificationID, recipientID)
}
