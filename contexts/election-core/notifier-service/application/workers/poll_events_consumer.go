package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "caucus/contexts/election-core/notifier-service/application"
	"caucus/contexts/election-core/notifier-service/domain/render"
	"caucus/contexts/election-core/notifier-service/ports"
)

const (
	pollOpenedTopic      = "poll.opened"
	pollClosedTopic      = "poll.closed"
	pollCancelledTopic   = "poll.cancelled"
	pollReminderTopic    = "poll.reminder"
	ballotSubmittedTopic = "ballot.submitted"
	defaultNotifierCG    = "notifier-poll-cg"
)

// PollEventsConsumer turns poll and ballot lifecycle events into channel
// messages. Delivery is at-least-once, so each event passes a dedup gate
// before anything is posted.
type PollEventsConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Chat          ports.ChatGateway
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c PollEventsConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("poll events consumer disabled by feature flag",
			"event", "notifier_consumer_disabled",
			"module", "election-core/notifier-service",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultNotifierCG
	}
	subscriptions := []struct {
		topic   string
		handler func(context.Context, ports.EventEnvelope) error
	}{
		{pollOpenedTopic, c.handlePollOpened},
		{pollClosedTopic, c.handlePollClosed},
		{pollCancelledTopic, c.handlePollCancelled},
		{pollReminderTopic, c.handlePollReminder},
		{ballotSubmittedTopic, c.handleBallotSubmitted},
	}
	for _, sub := range subscriptions {
		if err := c.Subscriber.Subscribe(ctx, sub.topic, group, sub.handler); err != nil {
			logger.Error("poll events consumer subscribe failed",
				"event", "notifier_consumer_subscribe_failed",
				"module", "election-core/notifier-service",
				"layer", "worker",
				"topic", sub.topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("poll events consumer subscriptions active",
		"event", "notifier_consumer_started",
		"module", "election-core/notifier-service",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c PollEventsConsumer) handlePollOpened(ctx context.Context, event ports.EventEnvelope) error {
	if skip, err := c.reserveEvent(ctx, event); err != nil || skip {
		return err
	}
	var payload struct {
		ChannelID   string `json:"channel_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		CreatedBy   string `json:"created_by"`
	}
	if err := c.decode(event, &payload); err != nil {
		return err
	}
	return c.post(ctx, event, payload.ChannelID,
		render.PollPrompt(payload.Title, payload.Description, payload.CreatedBy))
}

func (c PollEventsConsumer) handlePollClosed(ctx context.Context, event ports.EventEnvelope) error {
	if skip, err := c.reserveEvent(ctx, event); err != nil || skip {
		return err
	}
	var payload struct {
		ChannelID         string            `json:"channel_id"`
		Title             string            `json:"title"`
		WinnerOptionID    string            `json:"winner_option_id"`
		OptionLabels      map[string]string `json:"option_labels"`
		AnonymizedBallots [][]string        `json:"anonymized_ballots"`
		Rounds            [][][]string      `json:"rounds"`
	}
	if err := c.decode(event, &payload); err != nil {
		return err
	}

	winnerLabel := payload.WinnerOptionID
	if label, ok := payload.OptionLabels[payload.WinnerOptionID]; ok {
		winnerLabel = label
	}
	if err := c.post(ctx, event, payload.ChannelID,
		render.FinalResult(payload.Title, winnerLabel)); err != nil {
		return err
	}
	if err := c.post(ctx, event, payload.ChannelID,
		render.AnonymizedResults(payload.OptionLabels, payload.AnonymizedBallots)); err != nil {
		return err
	}
	if len(payload.Rounds) > 0 {
		return c.post(ctx, event, payload.ChannelID,
			render.RoundBreakdown(payload.OptionLabels, payload.Rounds))
	}
	return nil
}

func (c PollEventsConsumer) handlePollCancelled(ctx context.Context, event ports.EventEnvelope) error {
	if skip, err := c.reserveEvent(ctx, event); err != nil || skip {
		return err
	}
	var payload struct {
		ChannelID   string `json:"channel_id"`
		CancelledBy string `json:"cancelled_by"`
	}
	if err := c.decode(event, &payload); err != nil {
		return err
	}
	return c.post(ctx, event, payload.ChannelID, render.Cancellation(payload.CancelledBy))
}

func (c PollEventsConsumer) handlePollReminder(ctx context.Context, event ports.EventEnvelope) error {
	if skip, err := c.reserveEvent(ctx, event); err != nil || skip {
		return err
	}
	var payload struct {
		ChannelID string `json:"channel_id"`
	}
	if err := c.decode(event, &payload); err != nil {
		return err
	}
	return c.post(ctx, event, payload.ChannelID, render.Reminder())
}

func (c PollEventsConsumer) handleBallotSubmitted(ctx context.Context, event ports.EventEnvelope) error {
	if skip, err := c.reserveEvent(ctx, event); err != nil || skip {
		return err
	}
	var payload struct {
		ChannelID string `json:"channel_id"`
		VoterID   string `json:"voter_id"`
	}
	if err := c.decode(event, &payload); err != nil {
		return err
	}
	return c.post(ctx, event, payload.ChannelID, render.SubmittedAck(payload.VoterID))
}

func (c PollEventsConsumer) decode(event ports.EventEnvelope, target any) error {
	if err := json.Unmarshal(event.Data, target); err != nil {
		application.ResolveLogger(c.Logger).Error("poll event payload decode failed",
			"event", "notifier_event_decode_failed",
			"module", "election-core/notifier-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (c PollEventsConsumer) post(
	ctx context.Context,
	event ports.EventEnvelope,
	channelID string,
	text string,
) error {
	logger := application.ResolveLogger(c.Logger)
	if err := c.Chat.Post(ctx, ports.ChatMessage{
		ChannelID: strings.TrimSpace(channelID),
		Text:      text,
	}); err != nil {
		logger.Error("chat post failed",
			"event", "notifier_chat_post_failed",
			"module", "election-core/notifier-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"channel_id", strings.TrimSpace(channelID),
			"error", err.Error(),
		)
		return err
	}
	logger.Info("chat message posted",
		"event", "notifier_chat_posted",
		"module", "election-core/notifier-service",
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"channel_id", strings.TrimSpace(channelID),
	)
	return nil
}

func (c PollEventsConsumer) reserveEvent(ctx context.Context, event ports.EventEnvelope) (bool, error) {
	logger := application.ResolveLogger(c.Logger)
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), c.now().Add(c.dedupTTL()))
	if err != nil {
		logger.Error("poll event dedupe failed",
			"event", "notifier_event_dedupe_failed",
			"module", "election-core/notifier-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return false, err
	}
	if alreadyProcessed {
		logger.Debug("poll event replay skipped",
			"event", "notifier_event_replayed",
			"module", "election-core/notifier-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
	}
	return alreadyProcessed, nil
}

func (c PollEventsConsumer) now() time.Time {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	return now
}

func (c PollEventsConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
