package workers

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"caucus/contexts/election-core/notifier-service/adapters/memory"
	"caucus/contexts/election-core/notifier-service/ports"
)

// fakeBus delivers events synchronously so tests can assert the posted
// messages without goroutine coordination.
type fakeBus struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]func(context.Context, ports.EventEnvelope) error)}
}

func (b *fakeBus) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) deliver(t *testing.T, event ports.EventEnvelope) {
	t.Helper()
	handler, ok := b.handlers[event.EventType]
	if !ok {
		t.Fatalf("no handler subscribed for topic %q", event.EventType)
	}
	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("handler %q: %v", event.EventType, err)
	}
}

func envelope(t *testing.T, eventID string, eventType string, data map[string]any) ports.EventEnvelope {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		SourceService: "poll-service",
		SchemaVersion: 1,
		PartitionKey:  "chan-1",
		Data:          payload,
	}
}

func startConsumer(t *testing.T) (*fakeBus, *memory.Gateway) {
	t.Helper()
	bus := newFakeBus()
	gateway := memory.NewGateway()
	consumer := PollEventsConsumer{
		Subscriber: bus,
		Dedup:      gateway,
		Chat:       gateway,
		Clock:      gateway,
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start consumer: %v", err)
	}
	return bus, gateway
}

func TestPollOpenedPostsPrompt(t *testing.T) {
	bus, gateway := startConsumer(t)
	bus.deliver(t, envelope(t, "evt-1", "poll.opened", map[string]any{
		"channel_id":  "chan-1",
		"title":       "Lunch spot",
		"description": "Pick one",
		"created_by":  "ana",
	}))

	messages := gateway.Messages("chan-1")
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	if !strings.Contains(messages[0].Text, "🗳️ Lunch spot") {
		t.Fatalf("unexpected prompt: %q", messages[0].Text)
	}
}

func TestPollClosedPostsResultBallotsAndRounds(t *testing.T) {
	bus, gateway := startConsumer(t)
	bus.deliver(t, envelope(t, "evt-1", "poll.closed", map[string]any{
		"channel_id":       "chan-1",
		"title":            "Lunch spot",
		"winner_option_id": "a",
		"option_labels":    map[string]string{"a": "Tacos", "b": "Ramen"},
		"anonymized_ballots": [][]string{
			{"a", "b"},
			{"b"},
		},
		"rounds": [][][]string{
			{{"a"}, {"b"}},
		},
	}))

	messages := gateway.Messages("chan-1")
	if len(messages) != 3 {
		t.Fatalf("expected result, ballots, and rounds messages, got %d", len(messages))
	}
	if !strings.Contains(messages[0].Text, "🏆 Tacos 🏆") {
		t.Fatalf("unexpected result message: %q", messages[0].Text)
	}
	if !strings.HasPrefix(messages[1].Text, "Anonymized results:") {
		t.Fatalf("unexpected ballots message: %q", messages[1].Text)
	}
	if !strings.HasPrefix(messages[2].Text, "After round 1:") {
		t.Fatalf("unexpected rounds message: %q", messages[2].Text)
	}
}

func TestPollClosedWithoutRoundsSkipsBreakdown(t *testing.T) {
	bus, gateway := startConsumer(t)
	bus.deliver(t, envelope(t, "evt-1", "poll.closed", map[string]any{
		"channel_id":         "chan-1",
		"title":              "Lunch spot",
		"winner_option_id":   "a",
		"option_labels":      map[string]string{"a": "Tacos"},
		"anonymized_ballots": [][]string{{"a"}},
		"rounds":             [][][]string{},
	}))

	messages := gateway.Messages("chan-1")
	if len(messages) != 2 {
		t.Fatalf("expected result and ballots only, got %d", len(messages))
	}
}

func TestDuplicateEventPostsOnce(t *testing.T) {
	bus, gateway := startConsumer(t)
	event := envelope(t, "evt-1", "poll.reminder", map[string]any{
		"channel_id": "chan-1",
	})
	bus.deliver(t, event)
	bus.deliver(t, event)

	messages := gateway.Messages("chan-1")
	if len(messages) != 1 {
		t.Fatalf("expected dedup to suppress replay, got %d messages", len(messages))
	}
	if messages[0].Text != "Don't forget to vote!" {
		t.Fatalf("unexpected reminder text: %q", messages[0].Text)
	}
}

func TestBallotSubmittedThanksVoter(t *testing.T) {
	bus, gateway := startConsumer(t)
	bus.deliver(t, envelope(t, "evt-1", "ballot.submitted", map[string]any{
		"channel_id": "chan-1",
		"voter_id":   "user-7",
	}))

	messages := gateway.Messages("chan-1")
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	if !strings.Contains(messages[0].Text, "<@user-7> voted!") {
		t.Fatalf("unexpected ack: %q", messages[0].Text)
	}
}

func TestPollCancelledNamesActor(t *testing.T) {
	bus, gateway := startConsumer(t)
	bus.deliver(t, envelope(t, "evt-1", "poll.cancelled", map[string]any{
		"channel_id":   "chan-1",
		"cancelled_by": "user-3",
	}))

	messages := gateway.Messages("chan-1")
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}
	if messages[0].Text != "<@user-3> cancelled the election" {
		t.Fatalf("unexpected cancellation: %q", messages[0].Text)
	}
}
