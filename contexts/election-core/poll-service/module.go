package pollservice

import (
	"log/slog"
	"time"

	httpadapter "caucus/contexts/election-core/poll-service/adapters/http"
	"caucus/contexts/election-core/poll-service/adapters/memory"
	"caucus/contexts/election-core/poll-service/application/commands"
	"caucus/contexts/election-core/poll-service/application/queries"
	"caucus/contexts/election-core/poll-service/domain/entities"
	"caucus/contexts/election-core/poll-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Polls          ports.PollRepository
	Ballots        ports.BallotReader
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Rand           ports.TallyRand
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	pollUseCase := commands.PollUseCase{
		Polls:          deps.Polls,
		Ballots:        deps.Ballots,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Rand:           deps.Rand,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Polls: pollUseCase,
			Standings: queries.StandingsQuery{
				Polls:   deps.Polls,
				Ballots: deps.Ballots,
				Rand:    deps.Rand,
				Logger:  deps.Logger,
			},
			ActivePolls: queries.ActivePollsQuery{
				Polls:   deps.Polls,
				Ballots: deps.Ballots,
				Logger:  deps.Logger,
			},
			GetPoll: queries.GetPollQuery{
				Polls: deps.Polls,
			},
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule wires the module onto the in-memory store, including the
// store's local ballot projection, for tests and local runs.
func NewInMemoryModule(seed []entities.Poll, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Polls:          store,
		Ballots:        store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
