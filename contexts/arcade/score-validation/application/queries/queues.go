package queries

import (
	"context"
	"strings"

	"tiltcheck/contexts/arcade/score-validation/domain/entities"
	domainerrors "tiltcheck/contexts/arcade/score-validation/domain/errors"
	"tiltcheck/contexts/arcade/score-validation/ports"
)

// PendingScoreView annotates an owner's pending score with how many more
// approvals it needs under the current policy.
type PendingScoreView struct {
	Score              entities.Score
	ApproveCount       int
	RejectCount        int
	ApprovalsRemaining int
}

// ScoreView is the detail read model: a score plus its live ledger counts.
type ScoreView struct {
	Score        entities.Score
	ApproveCount int
	RejectCount  int
}

// ReviewQueueUseCase serves the read-side projections. Both views read the
// score and vote ledgers directly, so a terminal transition disappears from
// them on the next read with no staleness window of its own.
type ReviewQueueUseCase struct {
	Scores ports.ScoreRepository
	Votes  ports.VoteRepository
	Policy ports.QuorumPolicy
}

// ReviewableBy lists pending scores the requester can still vote on: not
// their own, and with no vote already cast by them. Each entry carries the
// live ledger counts.
func (uc ReviewQueueUseCase) ReviewableBy(ctx context.Context, requesterID string) ([]ScoreView, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, domainerrors.ErrInvalidVoteInput
	}
	scores, err := uc.Scores.ListReviewable(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	views := make([]ScoreView, 0, len(scores))
	for _, score := range scores {
		counts, err := uc.Votes.CountVerdicts(ctx, score.ScoreID)
		if err != nil {
			return nil, err
		}
		views = append(views, ScoreView{
			Score:        score,
			ApproveCount: counts.ApproveCount,
			RejectCount:  counts.RejectCount,
		})
	}
	return views, nil
}

// MyPending lists the requester's own pending scores with remaining-approval
// annotations.
func (uc ReviewQueueUseCase) MyPending(ctx context.Context, ownerID string) ([]PendingScoreView, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, domainerrors.ErrInvalidVoteInput
	}
	scores, err := uc.Scores.ListPendingByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	policy := uc.Policy.Normalized()
	views := make([]PendingScoreView, 0, len(scores))
	for _, score := range scores {
		counts, err := uc.Votes.CountVerdicts(ctx, score.ScoreID)
		if err != nil {
			return nil, err
		}
		remaining := policy.ApprovalsToAccept - counts.ApproveCount
		if remaining < 0 {
			remaining = 0
		}
		views = append(views, PendingScoreView{
			Score:              score,
			ApproveCount:       counts.ApproveCount,
			RejectCount:        counts.RejectCount,
			ApprovalsRemaining: remaining,
		})
	}
	return views, nil
}

// GetScore returns one score with its current counts.
func (uc ReviewQueueUseCase) GetScore(ctx context.Context, scoreID string) (ScoreView, error) {
	score, err := uc.Scores.GetScore(ctx, strings.TrimSpace(scoreID))
	if err != nil {
		return ScoreView{}, err
	}
	counts, err := uc.Votes.CountVerdicts(ctx, score.ScoreID)
	if err != nil {
		return ScoreView{}, err
	}
	return ScoreView{
		Score:        score,
		ApproveCount: counts.ApproveCount,
		RejectCount:  counts.RejectCount,
	}, nil
}
