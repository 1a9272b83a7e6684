package ballotservice

import (
	"log/slog"
	"time"

	httpadapter "caucus/contexts/election-core/ballot-service/adapters/http"
	"caucus/contexts/election-core/ballot-service/adapters/memory"
	"caucus/contexts/election-core/ballot-service/application/commands"
	"caucus/contexts/election-core/ballot-service/application/queries"
	"caucus/contexts/election-core/ballot-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Ballots        ports.BallotRepository
	Polls          ports.PollDirectory
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	ballotUseCase := commands.BallotUseCase{
		Ballots:        deps.Ballots,
		Polls:          deps.Polls,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Ballots: ballotUseCase,
			Reads: queries.GetBallotQuery{
				Ballots: deps.Ballots,
			},
			Logger: deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Ballots:        store,
		Polls:          store,
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
