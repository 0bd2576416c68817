package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"tiltcheck/contexts/arcade/score-validation/application/commands"
	"tiltcheck/contexts/arcade/score-validation/application/queries"
	"tiltcheck/contexts/arcade/score-validation/domain/entities"
	httptransport "tiltcheck/contexts/arcade/score-validation/transport/http"
)

type Handler struct {
	Submissions   commands.SubmitScoreUseCase
	Votes         commands.CastVoteUseCase
	Queues        queries.ReviewQueueUseCase
	Notifications queries.NotificationUseCase
	Logger        *slog.Logger
}

func (h Handler) SubmitScoreHandler(
	ctx context.Context,
	ownerID string,
	req httptransport.SubmitScoreRequest,
) (httptransport.SubmitScoreResponse, error) {
	result, err := h.Submissions.Submit(ctx, commands.SubmitScoreCommand{
		OwnerID:        ownerID,
		MachineName:    req.MachineName,
		LocationName:   req.LocationName,
		ClaimedValue:   req.ClaimedValue,
		PhotoReference: req.PhotoReference,
	})
	if err != nil {
		return httptransport.SubmitScoreResponse{}, err
	}
	return httptransport.SubmitScoreResponse{
		Score:        mapScore(result.Score, 0, 0),
		AutoAccepted: result.AutoAccepted,
	}, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	scoreID string,
	voterID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		ScoreID:    scoreID,
		VoterID:    voterID,
		Verdict:    entities.Verdict(req.Verdict),
		ReasonCode: entities.ReasonCode(req.ReasonCode),
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		ScoreID:         result.Score.ScoreID,
		ValidationState: string(result.Score.ValidationState),
		ApproveCount:    result.ApproveCount,
		RejectCount:     result.RejectCount,
		Transitioned:    result.Transitioned,
	}, nil
}

func (h Handler) GetScoreHandler(ctx context.Context, scoreID string) (httptransport.ScoreResponse, error) {
	view, err := h.Queues.GetScore(ctx, scoreID)
	if err != nil {
		return httptransport.ScoreResponse{}, err
	}
	return mapScore(view.Score, view.ApproveCount, view.RejectCount), nil
}

func (h Handler) ReviewQueueHandler(ctx context.Context, requesterID string) (httptransport.ReviewQueueResponse, error) {
	views, err := h.Queues.ReviewableBy(ctx, requesterID)
	if err != nil {
		return httptransport.ReviewQueueResponse{}, err
	}
	items := make([]httptransport.ScoreResponse, 0, len(views))
	for _, view := range views {
		items = append(items, mapScore(view.Score, view.ApproveCount, view.RejectCount))
	}
	return httptransport.ReviewQueueResponse{Items: items}, nil
}

func (h Handler) MyPendingHandler(ctx context.Context, ownerID string) (httptransport.MyPendingResponse, error) {
	views, err := h.Queues.MyPending(ctx, ownerID)
	if err != nil {
		return httptransport.MyPendingResponse{}, err
	}
	items := make([]httptransport.PendingScoreItem, 0, len(views))
	for _, view := range views {
		items = append(items, httptransport.PendingScoreItem{
			Score:              mapScore(view.Score, view.ApproveCount, view.RejectCount),
			ApprovalsRemaining: view.ApprovalsRemaining,
		})
	}
	return httptransport.MyPendingResponse{Items: items}, nil
}

func (h Handler) ListNotificationsHandler(ctx context.Context, recipientID string) (httptransport.NotificationListResponse, error) {
	notifications, err := h.Notifications.ListForRecipient(ctx, recipientID)
	if err != nil {
		return httptransport.NotificationListResponse{}, err
	}
	items := make([]httptransport.NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		items = append(items, httptransport.NotificationResponse{
			NotificationID: notification.NotificationID,
			Type:           string(notification.Type),
			ScoreID:        notification.Payload.ScoreID,
			MachineName:    notification.Payload.MachineName,
			ClaimedValue:   notification.Payload.ClaimedValue,
			ApproveCount:   notification.Payload.ApproveCount,
			RejectCount:    notification.Payload.RejectCount,
			Read:           notification.Read,
			CreatedAt:      notification.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.NotificationListResponse{Items: items}, nil
}

func (h Handler) MarkNotificationReadHandler(ctx context.Context, notificationID string, recipientID string) error {
	return h.Notifications.MarkRead(ctx, notificationID, recipientID)
}

func mapScore(score entities.Score, approveCount int, rejectCount int) httptransport.ScoreResponse {
	resolvedAt := ""
	if score.ResolvedAt != nil {
		resolvedAt = score.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return httptransport.ScoreResponse{
		ScoreID:         score.ScoreID,
		OwnerID:         score.OwnerID,
		MachineName:     score.MachineName,
		LocationName:    score.LocationName,
		ClaimedValue:    score.ClaimedValue,
		PhotoReference:  score.PhotoReference,
		ValidationState: string(score.ValidationState),
		ApproveCount:    approveCount,
		RejectCount:     rejectCount,
		CreatedAt:       score.CreatedAt.UTC().Format(time.RFC3339),
		ResolvedAt:      resolvedAt,
	}
}
