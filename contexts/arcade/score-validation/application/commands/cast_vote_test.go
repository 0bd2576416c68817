package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tiltcheck/contexts/arcade/score-validation/adapters/memory"
	"tiltcheck/contexts/arcade/score-validation/application"
	"tiltcheck/contexts/arcade/score-validation/domain/entities"
	domainerrors "tiltcheck/contexts/arcade/score-validation/domain/errors"
	"tiltcheck/contexts/arcade/score-validation/ports"
)

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time { return f.now }

func seedScore(owner string) entities.Score {
	return entities.Score{
		ScoreID:         "score-1",
		OwnerID:         owner,
		MachineName:     "Galaga",
		LocationName:    "Barcade Downtown",
		ClaimedValue:    1250000,
		ValidationState: entities.ValidationStatePending,
		CreatedAt:       time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

func newCastVoteFixture(policy ports.QuorumPolicy) (CastVoteUseCase, *memory.Store) {
	store := memory.NewStore([]entities.Score{seedScore("owner-1")})
	useCase := CastVoteUseCase{
		Scores: store,
		Votes:  store,
		Policy: policy,
		Notifier: application.Notifier{
			Notifications: store,
			Outbox:        store,
			IDGen:         store,
		},
		Clock: fixedClock{now: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)},
		IDGen: store,
	}
	return useCase, store
}

func approve(scoreID string, voterID string) CastVoteCommand {
	return CastVoteCommand{ScoreID: scoreID, VoterID: voterID, Verdict: entities.VerdictApprove}
}

func reject(scoreID string, voterID string, reason entities.ReasonCode) CastVoteCommand {
	return CastVoteCommand{ScoreID: scoreID, VoterID: voterID, Verdict: entities.VerdictReject, ReasonCode: reason}
}

func TestCastVoteSecondApprovalAccepts(t *testing.T) {
	useCase, store := newCastVoteFixture(ports.QuorumPolicy{ApprovalsToAccept: 2, RejectionsToDecline: 2})

	first, err := useCase.CastVote(context.Background(), approve("score-1", "voter-a"))
	if err != nil {
		t.Fatalf("first approval failed: %v", err)
	}
	if first.Transitioned || first.Score.ValidationState != entities.ValidationStatePending {
		t.Fatalf("expected score still pending after one approval, got %+v", first)
	}
	if first.ApproveCount != 1 || first.RejectCount != 0 {
		t.Fatalf("unexpected counts after first approval: %d/%d", first.ApproveCount, first.RejectCount)
	}

	second, err := useCase.CastVote(context.Background(), approve("score-1", "voter-b"))
	if err != nil {
		t.Fatalf("second approval failed: %v", err)
	}
	if !second.Transitioned {
		t.Fatalf("expected second approval to perform the transition")
	}
	if second.Score.ValidationState != entities.ValidationStateAccepted {
		t.Fatalf("expected accepted, got %s", second.Score.ValidationState)
	}
	if second.Score.ResolvedAt == nil {
		t.Fatalf("expected resolved timestamp to be set")
	}

	notifications := store.Notifications()
	if len(notifications) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notifications))
	}
	notification := notifications[0]
	if notification.Type != entities.NotificationScoreAccepted {
		t.Fatalf("expected score_accepted notification, got %s", notification.Type)
	}
	if notification.RecipientID != "owner-1" {
		t.Fatalf("expected notification for score owner, got %s", notification.RecipientID)
	}
	if notification.Payload.ApproveCount != 2 {
		t.Fatalf("expected payload approve count 2, got %d", notification.Payload.ApproveCount)
	}
}

func TestCastVoteSecondRejectionDeclines(t *testing.T) {
	useCase, store := newCastVoteFixture(ports.QuorumPolicy{ApprovalsToAccept: 2, RejectionsToDecline: 2})

	if _, err := useCase.CastVote(context.Background(), reject("score-1", "voter-a", entities.ReasonScoreMismatch)); err != nil {
		t.Fatalf("first rejection failed: %v", err)
	}
	result, err := useCase.CastVote(context.Background(), reject("score-1", "voter-b", entities.ReasonPhotoUnreadable))
	if err != nil {
		t.Fatalf("second rejection failed: %v", err)
	}
	if !result.Transitioned || result.Score.ValidationState != entities.ValidationStateDeclined {
		t.Fatalf("expected declined transition, got %+v", result)
	}

	votes, err := store.ListVotesByScore(context.Background(), "score-1")
	if err != nil {
		t.Fatalf("list votes failed: %v", err)
	}
	for _, vote := range votes {
		if vote.ReasonCode == "" {
			t.Fatalf("expected reason code on rejection vote %s", vote.VoteID)
		}
	}

	notifications := store.Notifications()
	if len(notifications) != 1 || notifications[0].Type != entities.NotificationScoreDeclined {
		t.Fatalf("expected one score_declined notification, got %+v", notifications)
	}
}

func TestCastVoteRejectRequiresKnownReason(t *testing.T) {
	useCase, store := newCastVoteFixture(ports.QuorumPolicy{})

	_, err := useCase.CastVote(context.Background(), reject("score-1", "voter-a", ""))
	if !errors.Is(err, domainerrors.ErrInvalidReasonCode) {
		t.Fatalf("expected ErrInvalidReasonCode for missing reason, got %v", err)
	}
	_, err = useCase.CastVote(context.Background(), reject("score-1", "voter-a", "looked_fishy"))
	if !errors.Is(err, domainerrors.ErrInvalidReasonCode) {
		t.Fatalf("expected ErrInvalidReasonCode for unknown reason, got %v", err)
	}

	if _, found, _ := store.GetVoteByIdentity(context.Background(), "score-1", "voter-a"); found {
		t.Fatalf("expected no vote row after rejected input")
	}
}

func TestCastVoteOwnerCannotVote(t *testing.T) {
	useCase, store := newCastVoteFixture(ports.QuorumPolicy{})

	_, err := useCase.CastVote(context.Background(), approve("score-1", "owner-1"))
	if !errors.Is(err, domainerrors.ErrInvalidVoter) {
		t.Fatalf("expected ErrInvalidVoter, got %v", err)
	}
	if _, found, _ := store.GetVoteByIdentity(context.Background(), "score-1", "owner-1"); found {
		t.Fatalf("self-vote must not leave a vote row")
	}
}

func TestCastVoteOnResolvedScoreFails(t *testing.T) {
	useCase, store := newCastVoteFixture(ports.QuorumPolicy{ApprovalsToAccept: 2, RejectionsToDecline: 2})

	if _, err := useCase.CastVote(context.Background(), approve("score-1", "voter-a")); err != nil {
		t.Fatalf("setup approval failed: %v", err)
	}
	if _, err := useCase.CastVote(context.Background(), approve("score-1", "voter-b")); err != nil {
		t.Fatalf("resolving approval failed: %v", err)
	}

	_, err := useCase.CastVote(context.Background(), reject("score-1", "voter-c", entities.ReasonOther))
	if !errors.Is(err, domainerrors.ErrScoreAlreadyResolved) {
		t.Fatalf("expected ErrScoreAlreadyResolved, got %v", err)
	}
	counts, err := store.CountVerdicts(context.Background(), "score-1")
	if err != nil {
		t.Fatalf("count verdicts failed: %v", err)
	}
	if counts.ApproveCount != 2 || counts.RejectCount != 0 {
		t.Fatalf("counts changed after rejected late vote: %d/%d", counts.ApproveCount, counts.RejectCount)
	}
}

func TestCastVoteRepeatIsIdempotent(t *testing.T) {
	useCase, store := newCastVoteFixture(ports.QuorumPolicy{ApprovalsToAccept: 2, RejectionsToDecline: 2})

	first, err := useCase.CastVote(context.Background(), approve("score-1", "voter-a"))
	if err != nil {
		t.Fatalf("first approval failed: %v", err)
	}
	repeat, err := useCase.CastVote(context.Background(), approve("score-1", "voter-a"))
	if err != nil {
		t.Fatalf("repeated approval failed: %v", err)
	}
	if repeat.ApproveCount != 1 || repeat.RejectCount != 0 {
		t.Fatalf("repeat approval changed counts: %d/%d", repeat.ApproveCount, repeat.RejectCount)
	}
	if repeat.Score.ValidationState != first.Score.ValidationState {
		t.Fatalf("repeat approval changed state to %s", repeat.Score.ValidationState)
	}

	vote, found, err := store.GetVoteByIdentity(context.Background(), "score-1", "voter-a")
	if err != nil || !found {
		t.Fatalf("expected one vote row, found=%v err=%v", found, err)
	}
	if vote.VoteID == "" {
		t.Fatalf("expected stable vote id")
	}
}

func TestCastVoteFlipMovesBothBuckets(t *testing.T) {
	useCase, store := newCastVoteFixture(ports.QuorumPolicy{ApprovalsToAccept: 2, RejectionsToDecline: 2})

	if _, err := useCase.CastVote(context.Background(), approve("score-1", "voter-a")); err != nil {
		t.Fatalf("initial approval failed: %v", err)
	}
	flipped, err := useCase.CastVote(context.Background(), reject("score-1", "voter-a", entities.ReasonSuspectedTamper))
	if err != nil {
		t.Fatalf("flip to reject failed: %v", err)
	}
	if flipped.ApproveCount != 0 || flipped.RejectCount != 1 {
		t.Fatalf("flip left stale counts: %d/%d", flipped.ApproveCount, flipped.RejectCount)
	}
	vote, _, err := store.GetVoteByIdentity(context.Background(), "score-1", "voter-a")
	if err != nil {
		t.Fatalf("get vote failed: %v", err)
	}
	if vote.Verdict != entities.VerdictReject || vote.ReasonCode != entities.ReasonSuspectedTamper {
		t.Fatalf("flip did not overwrite verdict: %+v", vote)
	}

	back, err := useCase.CastVote(context.Background(), approve("score-1", "voter-a"))
	if err != nil {
		t.Fatalf("flip back to approve failed: %v", err)
	}
	if back.ApproveCount != 1 || back.RejectCount != 0 {
		t.Fatalf("second flip left stale counts: %d/%d", back.ApproveCount, back.RejectCount)
	}
	vote, _, err = store.GetVoteByIdentity(context.Background(), "score-1", "voter-a")
	if err != nil {
		t.Fatalf("get vote after flip back failed: %v", err)
	}
	if vote.ReasonCode != "" {
		t.Fatalf("approve vote kept stale reason code %s", vote.ReasonCode)
	}
}

func TestCastVoteAcceptWinsWhenBothThresholdsMet(t *testing.T) {
	useCase, store := newCastVoteFixture(ports.QuorumPolicy{ApprovalsToAccept: 1, RejectionsToDecline: 1})

	// Seed a rejection directly so the next approval sees both thresholds met
	// in the same evaluation.
	now := time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)
	if _, err := store.UpsertVote(context.Background(), entities.Vote{
		VoteID:     "vote-seeded",
		ScoreID:    "score-1",
		VoterID:    "voter-r",
		Verdict:    entities.VerdictReject,
		ReasonCode: entities.ReasonOther,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("seeding rejection failed: %v", err)
	}

	result, err := useCase.CastVote(context.Background(), approve("score-1", "voter-a"))
	if err != nil {
		t.Fatalf("approval failed: %v", err)
	}
	if result.Score.ValidationState != entities.ValidationStateAccepted {
		t.Fatalf("expected accept to take precedence, got %s", result.Score.ValidationState)
	}
}

// resolveAfterReadScores resolves the score right after the first read, so
// the use case's pending check passes against a score that is terminal by
// the time the vote write lands.
type resolveAfterReadScores struct {
	*memory.Store
	raced bool
}

func (r *resolveAfterReadScores) GetScore(ctx context.Context, scoreID string) (entities.Score, error) {
	score, err := r.Store.GetScore(ctx, scoreID)
	if err == nil && !r.raced {
		r.raced = true
		if _, err := r.Store.TransitionState(ctx, scoreID, entities.ValidationStateAccepted, time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)); err != nil {
			return entities.Score{}, err
		}
	}
	return score, err
}

func TestCastVoteRejectsWriteOnScoreResolvedMidFlight(t *testing.T) {
	store := memory.NewStore([]entities.Score{seedScore("owner-1")})
	useCase := CastVoteUseCase{
		Scores: &resolveAfterReadScores{Store: store},
		Votes:  store,
		Policy: ports.QuorumPolicy{ApprovalsToAccept: 2, RejectionsToDecline: 2},
		Notifier: application.Notifier{
			Notifications: store,
			Outbox:        store,
			IDGen:         store,
		},
		Clock: fixedClock{now: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)},
		IDGen: store,
	}

	_, err := useCase.CastVote(context.Background(), approve("score-1", "voter-a"))
	if !errors.Is(err, domainerrors.ErrScoreAlreadyResolved) {
		t.Fatalf("expected ErrScoreAlreadyResolved for mid-flight resolution, got %v", err)
	}
	if _, found, _ := store.GetVoteByIdentity(context.Background(), "score-1", "voter-a"); found {
		t.Fatalf("no vote row may be written against a resolved score")
	}
	if len(store.Notifications()) != 0 {
		t.Fatalf("losing voter must not emit notifications")
	}
}

func TestCastVoteUnknownScore(t *testing.T) {
	useCase, _ := newCastVoteFixture(ports.QuorumPolicy{})

	_, err := useCase.CastVote(context.Background(), approve("missing", "voter-a"))
	if !errors.Is(err, domainerrors.ErrScoreNotFound) {
		t.Fatalf("expected ErrScoreNotFound, got %v", err)
	}
}

func TestCastVoteConcurrentQuorumNotifiesOnce(t *testing.T) {
	useCase, store := newCastVoteFixture(ports.QuorumPolicy{ApprovalsToAccept: 2, RejectionsToDecline: 2})

	if _, err := useCase.CastVote(context.Background(), approve("score-1", "voter-seed")); err != nil {
		t.Fatalf("seed approval failed: %v", err)
	}

	const racers = 8
	results := make([]CastVoteResult, racers)
	failures := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			voter := "voter-" + string(rune('a'+idx))
			result, err := useCase.CastVote(context.Background(), approve("score-1", voter))
			results[idx] = result
			failures[idx] = err
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < racers; i++ {
		if failures[i] != nil && !errors.Is(failures[i], domainerrors.ErrScoreAlreadyResolved) {
			t.Fatalf("racer %d failed unexpectedly: %v", i, failures[i])
		}
		if failures[i] == nil && results[i].Transitioned {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one transition winner, got %d", winners)
	}

	score, err := store.GetScore(context.Background(), "score-1")
	if err != nil {
		t.Fatalf("get score failed: %v", err)
	}
	if score.ValidationState != entities.ValidationStateAccepted {
		t.Fatalf("expected accepted, got %s", score.ValidationState)
	}

	accepted := 0
	for _, notification := range store.Notifications() {
		if notification.Type == entities.NotificationScoreAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one acceptance notification, got %d", accepted)
	}
}
