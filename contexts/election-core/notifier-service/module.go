package notifierservice

import (
	"log/slog"
	"time"

	"caucus/contexts/election-core/notifier-service/adapters/memory"
	"caucus/contexts/election-core/notifier-service/application/workers"
	"caucus/contexts/election-core/notifier-service/ports"
)

type Module struct {
	Consumer workers.PollEventsConsumer
	Gateway  *memory.Gateway
}

type Dependencies struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Chat          ports.ChatGateway
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Consumer: workers.PollEventsConsumer{
			Subscriber:    deps.Subscriber,
			Dedup:         deps.Dedup,
			Chat:          deps.Chat,
			Clock:         deps.Clock,
			ConsumerGroup: deps.ConsumerGroup,
			DedupTTL:      deps.DedupTTL,
			Disabled:      deps.Disabled,
			Logger:        deps.Logger,
		},
	}
}

// NewInMemoryModule wires the consumer onto the recording gateway, which
// also serves as the dedup store.
func NewInMemoryModule(subscriber ports.EventSubscriber, logger *slog.Logger) Module {
	gateway := memory.NewGateway()
	module := NewModule(Dependencies{
		Subscriber: subscriber,
		Dedup:      gateway,
		Chat:       gateway,
		Clock:      gateway,
		DedupTTL:   24 * time.Hour,
		Logger:     logger,
	})
	module.Gateway = gateway
	return module
}
