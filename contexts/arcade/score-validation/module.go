package scorevalidation

import (
	"log/slog"

	httpadapter "tiltcheck/contexts/arcade/score-validation/adapters/http"
	"tiltcheck/contexts/arcade/score-validation/adapters/memory"
	"tiltcheck/contexts/arcade/score-validation/application"
	"tiltcheck/contexts/arcade/score-validation/application/commands"
	"tiltcheck/contexts/arcade/score-validation/application/queries"
	"tiltcheck/contexts/arcade/score-validation/domain/entities"
	"tiltcheck/contexts/arcade/score-validation/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Scores        ports.ScoreRepository
	Votes         ports.VoteRepository
	Notifications ports.NotificationRepository
	Outbox        ports.OutboxWriter
	Precheck      ports.PrecheckClient
	Policy        ports.QuorumPolicy
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	notifier := application.Notifier{
		Notifications: deps.Notifications,
		Outbox:        deps.Outbox,
		IDGen:         deps.IDGen,
		Logger:        deps.Logger,
	}
	submitUseCase := commands.SubmitScoreUseCase{
		Scores:   deps.Scores,
		Precheck: deps.Precheck,
		Notifier: notifier,
		Clock:    deps.Clock,
		IDGen:    deps.IDGen,
		Logger:   deps.Logger,
	}
	castVoteUseCase := commands.CastVoteUseCase{
		Scores:   deps.Scores,
		Votes:    deps.Votes,
		Policy:   deps.Policy.Normalized(),
		Notifier: notifier,
		Clock:    deps.Clock,
		IDGen:    deps.IDGen,
		Logger:   deps.Logger,
	}
	queueUseCase := queries.ReviewQueueUseCase{
		Scores: deps.Scores,
		Votes:  deps.Votes,
		Policy: deps.Policy.Normalized(),
	}
	notificationUseCase := queries.NotificationUseCase{
		Notifications: deps.Notifications,
	}
	return Module{
		Handler: httpadapter.Handler{
			Submissions:   submitUseCase,
			Votes:         castVoteUseCase,
			Queues:        queueUseCase,
			Notifications: notificationUseCase,
			Logger:        deps.Logger,
		},
	}
}

// NewInMemoryModule wires the module against the in-memory store; used by
// tests and local runs without postgres.
func NewInMemoryModule(seed []entities.Score, precheck ports.PrecheckClient, policy ports.QuorumPolicy, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Scores:        store,
		Votes:         store,
		Notifications: store,
		Outbox:        store,
		Precheck:      precheck,
		Policy:        policy,
		Clock:         store,
		IDGen:         store,
		Logger:        logger,
	})
	module.Store = store
	return module
}
