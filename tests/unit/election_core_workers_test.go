package unit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	notifiermemory "caucus/contexts/election-core/notifier-service/adapters/memory"
	notifierworkers "caucus/contexts/election-core/notifier-service/application/workers"
	notifierports "caucus/contexts/election-core/notifier-service/ports"
	pollworkers "caucus/contexts/election-core/poll-service/application/workers"
	pollports "caucus/contexts/election-core/poll-service/ports"
)

type publishedEvent struct {
	Topic string
	Event pollports.EventEnvelope
}

type collectingPublisher struct {
	published []publishedEvent
	failAfter int
}

func (p *collectingPublisher) Publish(_ context.Context, topic string, event pollports.EventEnvelope) error {
	if p.failAfter > 0 && len(p.published) >= p.failAfter {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, publishedEvent{Topic: topic, Event: event})
	return nil
}

// syncBus registers notifier handlers and delivers bus envelopes inline, so
// tests observe chat posts without goroutine coordination.
type syncBus struct {
	handlers map[string]func(context.Context, notifierports.EventEnvelope) error
}

func newSyncBus() *syncBus {
	return &syncBus{handlers: make(map[string]func(context.Context, notifierports.EventEnvelope) error)}
}

func (b *syncBus) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, notifierports.EventEnvelope) error,
) error {
	b.handlers[topic] = handler
	return nil
}

func (b *syncBus) deliver(t *testing.T, event pollports.EventEnvelope) {
	t.Helper()
	handler, ok := b.handlers[event.EventType]
	if !ok {
		t.Fatalf("no notifier handler for topic %q", event.EventType)
	}
	if err := handler(context.Background(), notifierports.EventEnvelope{
		EventID:          event.EventID,
		EventType:        event.EventType,
		OccurredAt:       event.OccurredAt,
		SourceService:    event.SourceService,
		TraceID:          event.TraceID,
		SchemaVersion:    event.SchemaVersion,
		PartitionKeyPath: event.PartitionKeyPath,
		PartitionKey:     event.PartitionKey,
		Data:             event.Data,
	}); err != nil {
		t.Fatalf("notifier handler %q: %v", event.EventType, err)
	}
}

func TestOutboxRelayDrainsElectionEvents(t *testing.T) {
	h := newElectionHarness()
	poll, byLabel := openLunchPoll(t, h)
	ctx := context.Background()

	castBallot(t, h, poll.PollID, "voter-1", []string{byLabel["Tacos"]})
	castBallot(t, h, poll.PollID, "voter-2", []string{byLabel["Tacos"]})
	if _, err := h.polls.Handler.ClosePollHandler(ctx, poll.PollID, "ana", "idem-close-1"); err != nil {
		t.Fatalf("close poll: %v", err)
	}

	publisher := &collectingPublisher{}
	relay := pollworkers.OutboxRelay{
		Outbox:    h.pollStore,
		Publisher: publisher,
		Clock:     h.pollStore,
		BatchSize: 100,
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run: %v", err)
	}

	counts := map[string]int{}
	for _, item := range publisher.published {
		counts[item.Topic]++
		if item.Event.PartitionKey != "chan-lunch" {
			t.Fatalf("event %s has partition key %q", item.Topic, item.Event.PartitionKey)
		}
	}
	if counts["poll.opened"] != 1 || counts["ballot.submitted"] != 2 || counts["poll.closed"] != 1 {
		t.Fatalf("unexpected published topics: %v", counts)
	}

	pending, err := h.pollStore.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected outbox drained, %d rows remain", len(pending))
	}
}

func TestOutboxRelayStopsOnPublishFailure(t *testing.T) {
	h := newElectionHarness()
	poll, byLabel := openLunchPoll(t, h)
	ctx := context.Background()

	castBallot(t, h, poll.PollID, "voter-1", []string{byLabel["Tacos"]})

	publisher := &collectingPublisher{failAfter: 1}
	relay := pollworkers.OutboxRelay{
		Outbox:    h.pollStore,
		Publisher: publisher,
		Clock:     h.pollStore,
		BatchSize: 100,
	}
	if err := relay.RunOnce(ctx); err == nil {
		t.Fatalf("expected relay to surface publish failure")
	}

	pending, err := h.pollStore.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) == 0 {
		t.Fatalf("expected unpublished rows to stay pending")
	}
}

func TestNotifierAnnouncesElectionLifecycle(t *testing.T) {
	h := newElectionHarness()
	poll, byLabel := openLunchPoll(t, h)
	ctx := context.Background()

	castBallot(t, h, poll.PollID, "voter-1", []string{byLabel["Tacos"]})
	castBallot(t, h, poll.PollID, "voter-2", []string{byLabel["Tacos"], byLabel["Ramen"]})
	if _, err := h.polls.Handler.ClosePollHandler(ctx, poll.PollID, "ana", "idem-close-1"); err != nil {
		t.Fatalf("close poll: %v", err)
	}

	publisher := &collectingPublisher{}
	relay := pollworkers.OutboxRelay{
		Outbox:    h.pollStore,
		Publisher: publisher,
		Clock:     h.pollStore,
		BatchSize: 100,
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run: %v", err)
	}

	bus := newSyncBus()
	gateway := notifiermemory.NewGateway()
	consumer := notifierworkers.PollEventsConsumer{
		Subscriber: bus,
		Dedup:      gateway,
		Chat:       gateway,
		Clock:      gateway,
		DedupTTL:   time.Hour,
	}
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer: %v", err)
	}
	for _, item := range publisher.published {
		bus.deliver(t, item.Event)
	}

	messages := gateway.Messages("chan-lunch")
	// Prompt, two submission acks, final result, anonymized ballots. Both
	// voters picked Tacos first so the tally ends without a runoff round.
	if len(messages) != 5 {
		t.Fatalf("expected 5 channel messages, got %d", len(messages))
	}
	if !strings.Contains(messages[0].Text, "🗳️ Lunch spot") {
		t.Fatalf("unexpected first message: %q", messages[0].Text)
	}
	if !strings.Contains(messages[3].Text, "🏆 Tacos 🏆") {
		t.Fatalf("unexpected result message: %q", messages[3].Text)
	}
	if !strings.HasPrefix(messages[4].Text, "Anonymized results:") {
		t.Fatalf("unexpected ballots message: %q", messages[4].Text)
	}
}

func TestNotifierDisabledRegistersNoHandlers(t *testing.T) {
	bus := newSyncBus()
	gateway := notifiermemory.NewGateway()
	consumer := notifierworkers.PollEventsConsumer{
		Subscriber: bus,
		Dedup:      gateway,
		Chat:       gateway,
		Clock:      gateway,
		Disabled:   true,
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start consumer: %v", err)
	}
	if len(bus.handlers) != 0 {
		t.Fatalf("expected no subscriptions while disabled, got %d", len(bus.handlers))
	}
}
