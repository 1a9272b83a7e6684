package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	ballotservice "caucus/contexts/election-core/ballot-service"
	ballotpostgres "caucus/contexts/election-core/ballot-service/adapters/postgres"
	ballotdomainerrors "caucus/contexts/election-core/ballot-service/domain/errors"
	ballotports "caucus/contexts/election-core/ballot-service/ports"
	notifierservice "caucus/contexts/election-core/notifier-service"
	notifiermemory "caucus/contexts/election-core/notifier-service/adapters/memory"
	"caucus/contexts/election-core/notifier-service/adapters/webhook"
	notifierports "caucus/contexts/election-core/notifier-service/ports"
	pollservice "caucus/contexts/election-core/poll-service"
	pollpostgres "caucus/contexts/election-core/poll-service/adapters/postgres"
	pollworkers "caucus/contexts/election-core/poll-service/application/workers"
	"caucus/contexts/election-core/poll-service/domain/entities"
	polldomainerrors "caucus/contexts/election-core/poll-service/domain/errors"
	"caucus/contexts/election-core/poll-service/domain/tally"
	pollports "caucus/contexts/election-core/poll-service/ports"
	"caucus/internal/platform/config"
	"caucus/internal/platform/db"
	"caucus/internal/platform/httpserver"
	"caucus/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  pollworkers.OutboxRelay
	notifier     notifierservice.Module
	relayEnabled bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	pollRepo := pollpostgres.NewRepository(pg.DB, logger)
	ballotRepo := ballotpostgres.NewRepository(pg.DB, logger)

	pollModule := pollservice.NewModule(pollservice.Dependencies{
		Polls:          pollRepo,
		Ballots:        ballotRepo,
		Idempotency:    pollRepo,
		Outbox:         pollRepo,
		Clock:          pollpostgres.SystemClock{},
		IDGen:          pollpostgres.UUIDGenerator{},
		Rand:           tally.Default(),
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	})

	ballotModule := ballotservice.NewModule(ballotservice.Dependencies{
		Ballots:        ballotRepo,
		Polls:          pollDirectory{polls: pollRepo},
		Idempotency:    ballotRepo,
		Outbox:         pollOutboxBridge{outbox: pollRepo},
		Clock:          ballotpostgres.SystemClock{},
		IDGen:          ballotpostgres.UUIDGenerator{},
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	})

	server := httpserver.New(pollModule, ballotModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	pollRepo := pollpostgres.NewRepository(pg.DB, logger)

	var chat notifierports.ChatGateway
	if cfg.ChatWebhookURL != "" {
		chat = webhook.NewGateway(cfg.ChatWebhookURL, logger)
	} else {
		chat = notifiermemory.NewGateway()
	}

	notifier := notifierservice.NewModule(notifierservice.Dependencies{
		Subscriber: busSubscriber{bus: kafka},
		Dedup:      pollRepo,
		Chat:       chat,
		Clock:      pollpostgres.SystemClock{},
		DedupTTL:   cfg.IdempotencyTTL,
		Disabled:   !cfg.EnablePollEventsConsumer,
		Logger:     logger,
	})

	return &WorkerApp{
		postgres: pg,
		outboxRelay: pollworkers.OutboxRelay{
			Outbox:    pollRepo,
			Publisher: kafka,
			Clock:     pollpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		notifier:     notifier,
		relayEnabled: cfg.EnableOutboxRelay,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.notifier.Consumer.Start(ctx); err != nil {
		return err
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"relay_enabled", w.relayEnabled,
		"poll_interval", w.pollInterval.String(),
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if !w.relayEnabled {
			w.logger.Info("outbox relay disabled by config",
				"event", "bootstrap_outbox_relay_disabled",
				"module", "internal/app/bootstrap",
				"layer", "platform",
			)
			<-ctx.Done()
			return nil
		}

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// pollDirectory projects poll lifecycle and option facts into the ballot
// module without coupling it to poll storage.
type pollDirectory struct {
	polls pollports.PollRepository
}

func (d pollDirectory) GetPollFacts(ctx context.Context, pollID string) (ballotports.PollFacts, error) {
	poll, err := d.polls.GetPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, polldomainerrors.ErrPollNotFound) {
			return ballotports.PollFacts{}, ballotdomainerrors.ErrPollNotFound
		}
		return ballotports.PollFacts{}, err
	}
	optionIDs := make([]string, 0, len(poll.Options))
	for _, option := range poll.Options {
		optionIDs = append(optionIDs, option.OptionID)
	}
	return ballotports.PollFacts{
		PollID:    poll.PollID,
		ChannelID: poll.ChannelID,
		Open:      poll.Status == entities.PollStatusOpen,
		OptionIDs: optionIDs,
	}, nil
}

// pollOutboxBridge lets ballot events share the poll outbox table. The two
// modules declare structurally identical envelopes, so the bridge is a
// field-for-field copy.
type pollOutboxBridge struct {
	outbox pollports.OutboxWriter
}

func (b pollOutboxBridge) AppendOutbox(ctx context.Context, envelope ballotports.EventEnvelope) error {
	return b.outbox.AppendOutbox(ctx, pollports.EventEnvelope{
		EventID:          envelope.EventID,
		EventType:        envelope.EventType,
		OccurredAt:       envelope.OccurredAt,
		SourceService:    envelope.SourceService,
		TraceID:          envelope.TraceID,
		SchemaVersion:    envelope.SchemaVersion,
		PartitionKeyPath: envelope.PartitionKeyPath,
		PartitionKey:     envelope.PartitionKey,
		Data:             envelope.Data,
	})
}

// busSubscriber adapts the bus envelope to the notifier's declared shape.
type busSubscriber struct {
	bus *messaging.Kafka
}

func (s busSubscriber) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, notifierports.EventEnvelope) error,
) error {
	return s.bus.Subscribe(ctx, topic, consumerGroup, func(ctx context.Context, event pollports.EventEnvelope) error {
		return handler(ctx, notifierports.EventEnvelope{
			EventID:          event.EventID,
			EventType:        event.EventType,
			OccurredAt:       event.OccurredAt,
			SourceService:    event.SourceService,
			TraceID:          event.TraceID,
			SchemaVersion:    event.SchemaVersion,
			PartitionKeyPath: event.PartitionKeyPath,
			PartitionKey:     event.PartitionKey,
			Data:             event.Data,
		})
	})
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
