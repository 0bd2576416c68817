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

// SubmitScoreCommand is the write-model input for score submission.
type SubmitScoreCommand struct {
	OwnerID        string
	MachineName    string
	LocationName   string
	ClaimedValue   int64
	PhotoReference string
}

type SubmitScoreResult struct {
	Score entities.Score
	// AutoAccepted is true when the pre-check full match bypassed community
	// review entirely.
	AutoAccepted bool
}

// SubmitScoreUseCase persists new submissions and runs the one-shot
// automated pre-check. Pre-check is pure best effort: unavailability, a
// partial match, or a missing photo all leave the score pending for
// community review and are never visible to the submitter as an error.
type SubmitScoreUseCase struct {
	Scores   ports.ScoreRepository
	Precheck ports.PrecheckClient
	Notifier application.Notifier
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func (uc SubmitScoreUseCase) Submit(ctx context.Context, cmd SubmitScoreCommand) (SubmitScoreResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	ownerID := strings.TrimSpace(cmd.OwnerID)
	machineName := strings.TrimSpace(cmd.MachineName)
	if ownerID == "" || machineName == "" || cmd.ClaimedValue <= 0 {
		logger.Warn("score submission validation failed",
			"event", "validation_submit_validation_failed",
			"module", "arcade/score-validation",
			"layer", "application",
			"owner_id", ownerID,
			"machine_name", machineName,
		)
		return SubmitScoreResult{}, domainerrors.ErrInvalidSubmission
	}

	now := uc.now()
	scoreID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return SubmitScoreResult{}, err
	}
	score := entities.Score{
		ScoreID:         scoreID,
		OwnerID:         ownerID,
		MachineName:     machineName,
		LocationName:    strings.TrimSpace(cmd.LocationName),
		ClaimedValue:    cmd.ClaimedValue,
		PhotoReference:  strings.TrimSpace(cmd.PhotoReference),
		ValidationState: entities.ValidationStatePending,
		CreatedAt:       now,
	}
	if err := uc.Scores.CreateScore(ctx, score); err != nil {
		return SubmitScoreResult{}, err
	}
	logger.Info("score submitted",
		"event", "validation_score_submitted",
		"module", "arcade/score-validation",
		"layer", "application",
		"score_id", scoreID,
		"owner_id", ownerID,
		"machine_name", machineName,
		"claimed_value", cmd.ClaimedValue,
		"has_photo", score.PhotoReference != "",
	)

	if score.PhotoReference != "" && uc.Precheck != nil {
		if uc.runPrecheck(ctx, &score, now) {
			return SubmitScoreResult{Score: score, AutoAccepted: true}, nil
		}
	}

	if err := uc.Notifier.Emit(ctx, ownerID, entities.NotificationScorePendingReview, entities.NotificationPayload{
		ScoreID:      score.ScoreID,
		MachineName:  score.MachineName,
		ClaimedValue: score.ClaimedValue,
	}, now); err != nil {
		logger.Error("pending acknowledgment notification failed",
			"event", "validation_notification_emit_failed",
			"module", "arcade/score-validation",
			"layer", "application",
			"score_id", scoreID,
			"recipient_id", ownerID,
			"error", err.Error(),
		)
	}
	return SubmitScoreResult{Score: score}, nil
}

// runPrecheck performs the single bounded pre-check attempt and, on a full
// match, transitions the just-created score to accepted. It reports whether
// the score was auto-accepted.
func (uc SubmitScoreUseCase) runPrecheck(ctx context.Context, score *entities.Score, now time.Time) bool {
	logger := application.ResolveLogger(uc.Logger)
	result, err := uc.Precheck.Analyze(ctx, ports.PrecheckRequest{
		PhotoReference: score.PhotoReference,
		MachineName:    score.MachineName,
		ClaimedValue:   score.ClaimedValue,
	})
	if err != nil {
		// No opinion, never a rejection: the score stays pending.
		logger.Warn("automated pre-check unavailable; degrading to community review",
			"event", "validation_precheck_unavailable",
			"module", "arcade/score-validation",
			"layer", "application",
			"score_id", score.ScoreID,
			"error", err.Error(),
		)
		return false
	}
	logger.Info("automated pre-check completed",
		"event", "validation_precheck_completed",
		"module", "arcade/score-validation",
		"layer", "application",
		"score_id", score.ScoreID,
		"machine_match", result.MachineMatch,
		"score_match", result.ScoreMatch,
		"machine_confidence", string(result.MachineConfidence),
		"score_confidence", string(result.ScoreConfidence),
	)
	if !result.FullMatch() {
		return false
	}

	transitioned, err := uc.Scores.TransitionState(ctx, score.ScoreID, entities.ValidationStateAccepted, now)
	if err != nil || !transitioned {
		if err != nil {
			logger.Error("pre-check auto-accept transition failed",
				"event", "validation_precheck_transition_failed",
				"module", "arcade/score-validation",
				"layer", "application",
				"score_id", score.ScoreID,
				"error", err.Error(),
			)
		}
		return false
	}
	score.ValidationState = entities.ValidationStateAccepted
	score.ResolvedAt = &now

	if err := uc.Notifier.Emit(ctx, score.OwnerID, entities.NotificationScoreAccepted, entities.NotificationPayload{
		ScoreID:      score.ScoreID,
		MachineName:  score.MachineName,
		ClaimedValue: score.ClaimedValue,
	}, now); err != nil {
		logger.Error("auto-accept notification failed",
			"event", "validation_notification_emit_failed",
			"module", "arcade/score-validation",
			"layer", "application",
			"score_id", score.ScoreID,
			"recipient_id", score.OwnerID,
			"error", err.Error(),
		)
	}
	logger.Info("score auto-accepted by pre-check",
		"event", "validation_score_auto_accepted",
		"module", "arcade/score-validation",
		"layer", "application",
		"score_id", score.ScoreID,
	)
	return true
}

func (uc SubmitScoreUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
