package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "tiltcheck/contexts/arcade/score-validation/application"
	"tiltcheck/contexts/arcade/score-validation/domain/entities"
	domainerrors "tiltcheck/contexts/arcade/score-validation/domain/errors"
	"tiltcheck/contexts/arcade/score-validation/ports"
)

// CastVoteCommand is the write-model input for casting or changing a vote.
type CastVoteCommand struct {
	ScoreID    string
	VoterID    string
	Verdict    entities.Verdict
	ReasonCode entities.ReasonCode
}

// CastVoteResult returns the post-vote score state and ledger counts so UIs
// can drop resolved scores from review queues without a second read.
type CastVoteResult struct {
	Score        entities.Score
	ApproveCount int
	RejectCount  int
	// Transitioned is true only for the caller whose vote performed the
	// terminal transition.
	Transitioned bool
}

// CastVoteUseCase is the consensus resolver: it maintains the vote ledger
// invariants and decides quorum-based terminal transitions. Exactly-once
// transition and notification are guaranteed by the conditional
// pending-guarded state update in ScoreRepository.TransitionState; the loser
// of a concurrent threshold race observes the already-resolved score and
// emits nothing.
type CastVoteUseCase struct {
	Scores   ports.ScoreRepository
	Votes    ports.VoteRepository
	Policy   ports.QuorumPolicy
	Notifier application.Notifier
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func (uc CastVoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	scoreID := strings.TrimSpace(cmd.ScoreID)
	voterID := strings.TrimSpace(cmd.VoterID)
	logger.Info("vote cast processing started",
		"event", "validation_vote_cast_started",
		"module", "arcade/score-validation",
		"layer", "application",
		"score_id", scoreID,
		"voter_id", voterID,
		"verdict", string(cmd.Verdict),
	)
	if scoreID == "" || voterID == "" ||
		(cmd.Verdict != entities.VerdictApprove && cmd.Verdict != entities.VerdictReject) {
		logger.Warn("vote cast validation failed",
			"event", "validation_vote_cast_validation_failed",
			"module", "arcade/score-validation",
			"layer", "application",
			"score_id", scoreID,
			"voter_id", voterID,
		)
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}
	if cmd.Verdict == entities.VerdictReject && !entities.ValidReasonCode(cmd.ReasonCode) {
		return CastVoteResult{}, domainerrors.ErrInvalidReasonCode
	}

	score, err := uc.Scores.GetScore(ctx, scoreID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if strings.EqualFold(strings.TrimSpace(score.OwnerID), voterID) {
		logger.Warn("vote cast rejected for score owner",
			"event", "validation_vote_cast_self_vote",
			"module", "arcade/score-validation",
			"layer", "application",
			"score_id", scoreID,
			"voter_id", voterID,
		)
		return CastVoteResult{}, domainerrors.ErrInvalidVoter
	}
	if score.ValidationState.IsTerminal() {
		return CastVoteResult{}, domainerrors.ErrScoreAlreadyResolved
	}

	now := uc.now()
	vote := entities.Vote{
		ScoreID:   scoreID,
		VoterID:   voterID,
		Verdict:   cmd.Verdict,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cmd.Verdict == entities.VerdictReject {
		vote.ReasonCode = cmd.ReasonCode
	}
	if existing, found, err := uc.Votes.GetVoteByIdentity(ctx, scoreID, voterID); err != nil {
		return CastVoteResult{}, err
	} else if found {
		vote.VoteID = existing.VoteID
		vote.CreatedAt = existing.CreatedAt
	} else {
		voteID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return CastVoteResult{}, err
		}
		vote.VoteID = voteID
	}
	vote, err = uc.Votes.UpsertVote(ctx, vote)
	if err != nil {
		return CastVoteResult{}, err
	}

	// Counts always come from re-aggregating the ledger so verdict flips
	// move both buckets in one recomputation and nothing can drift.
	counts, err := uc.Votes.CountVerdicts(ctx, scoreID)
	if err != nil {
		return CastVoteResult{}, err
	}

	policy := uc.Policy.Normalized()
	target := entities.ValidationStatePending
	switch {
	case counts.ApproveCount >= policy.ApprovalsToAccept:
		target = entities.ValidationStateAccepted
	case counts.RejectCount >= policy.RejectionsToDecline:
		target = entities.ValidationStateDeclined
	}
	if target == entities.ValidationStatePending {
		logger.Info("vote recorded",
			"event", "validation_vote_recorded",
			"module", "arcade/score-validation",
			"layer", "application",
			"score_id", scoreID,
			"voter_id", voterID,
			"verdict", string(vote.Verdict),
			"approve_count", counts.ApproveCount,
			"reject_count", counts.RejectCount,
		)
		return CastVoteResult{
			Score:        score,
			ApproveCount: counts.ApproveCount,
			RejectCount:  counts.RejectCount,
		}, nil
	}

	transitioned, err := uc.Scores.TransitionState(ctx, scoreID, target, now)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !transitioned {
		// Another voter won the transition race; re-read the terminal state
		// and do not re-emit a notification.
		resolved, err := uc.Scores.GetScore(ctx, scoreID)
		if err != nil {
			return CastVoteResult{}, err
		}
		logger.Info("vote lost transition race",
			"event", "validation_vote_transition_lost",
			"module", "arcade/score-validation",
			"layer", "application",
			"score_id", scoreID,
			"voter_id", voterID,
			"validation_state", string(resolved.ValidationState),
		)
		return CastVoteResult{
			Score:        resolved,
			ApproveCount: counts.ApproveCount,
			RejectCount:  counts.RejectCount,
		}, nil
	}

	score.ValidationState = target
	score.ResolvedAt = &now

	notificationType := entities.NotificationScoreAccepted
	if target == entities.ValidationStateDeclined {
		notificationType = entities.NotificationScoreDeclined
	}
	// The validation decision is authoritative regardless of notification
	// outcome, so emission failures are logged and never surfaced to voters.
	if err := uc.Notifier.Emit(ctx, score.OwnerID, notificationType, entities.NotificationPayload{
		ScoreID:      score.ScoreID,
		MachineName:  score.MachineName,
		ClaimedValue: score.ClaimedValue,
		ApproveCount: counts.ApproveCount,
		RejectCount:  counts.RejectCount,
	}, now); err != nil {
		logger.Error("resolution notification emit failed",
			"event", "validation_notification_emit_failed",
			"module", "arcade/score-validation",
			"layer", "application",
			"score_id", scoreID,
			"recipient_id", score.OwnerID,
			"error", err.Error(),
		)
	}

	logger.Info("score resolved by quorum",
		"event", "validation_score_resolved",
		"module", "arcade/score-validation",
		"layer", "application",
		"score_id", scoreID,
		"validation_state", string(target),
		"approve_count", counts.ApproveCount,
		"reject_count", counts.RejectCount,
	)
	return CastVoteResult{
		Score:        score,
		ApproveCount: counts.ApproveCount,
		RejectCount:  counts.RejectCount,
		Transitioned: true,
	}, nil
}

func (uc CastVoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
