package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "caucus/contexts/election-core/poll-service/application"
	"caucus/contexts/election-core/poll-service/domain/entities"
	domainerrors "caucus/contexts/election-core/poll-service/domain/errors"
	"caucus/contexts/election-core/poll-service/domain/tally"
	"caucus/contexts/election-core/poll-service/ports"
)

// OpenPollCommand is the write-model input for starting a poll in a channel.
type OpenPollCommand struct {
	ChannelID      string
	Title          string
	Description    string
	OptionLabels   []string
	CreatedBy      string
	IdempotencyKey string
}

type OpenPollResult struct {
	Poll     entities.Poll
	Replayed bool
}

// ClosePollCommand finalizes a poll: it tallies submitted ballots, records
// the winner, and emits the result event.
type ClosePollCommand struct {
	PollID         string
	ActorID        string
	IdempotencyKey string
}

type ClosePollResult struct {
	Poll              entities.Poll
	WinnerOptionID    string
	Rounds            []entities.RoundTrace
	AnonymizedBallots [][]string
	Replayed          bool
}

type CancelPollCommand struct {
	PollID         string
	ActorID        string
	IdempotencyKey string
}

// RemindVotersCommand asks the notifier to nudge a channel about an open
// poll. Reminders are repeatable by design, so no idempotency key is taken.
type RemindVotersCommand struct {
	PollID  string
	ActorID string
}

// PollUseCase orchestrates the poll lifecycle: open, close (tally), cancel,
// and reminders. Mutations are replay-safe via idempotency key + request
// hash validation, and lifecycle events flow through the outbox.
type PollUseCase struct {
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

// OpenPoll creates a poll with at least two options. A channel can hold only
// one open poll at a time.
func (uc PollUseCase) OpenPoll(ctx context.Context, cmd OpenPollCommand) (OpenPollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("poll open processing started",
		"event", "poll_open_started",
		"module", "election-core/poll-service",
		"layer", "application",
		"channel_id", strings.TrimSpace(cmd.ChannelID),
		"created_by", strings.TrimSpace(cmd.CreatedBy),
	)
	if strings.TrimSpace(cmd.ChannelID) == "" ||
		strings.TrimSpace(cmd.Title) == "" ||
		strings.TrimSpace(cmd.CreatedBy) == "" {
		logger.Warn("poll open validation failed",
			"event", "poll_open_validation_failed",
			"module", "election-core/poll-service",
			"layer", "application",
			"channel_id", strings.TrimSpace(cmd.ChannelID),
		)
		return OpenPollResult{}, domainerrors.ErrInvalidPollInput
	}
	labels := make([]string, 0, len(cmd.OptionLabels))
	for _, label := range cmd.OptionLabels {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			labels = append(labels, trimmed)
		}
	}
	if len(labels) < 2 {
		return OpenPollResult{}, domainerrors.ErrNotEnoughOptions
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return OpenPollResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashOpenPollCommand(cmd, labels)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return OpenPollResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return OpenPollResult{}, domainerrors.ErrIdempotencyConflict
		}
		poll, err := uc.Polls.GetPoll(ctx, record.PollID)
		if err != nil {
			return OpenPollResult{}, err
		}
		logger.Info("poll open replayed",
			"event", "poll_open_replayed",
			"module", "election-core/poll-service",
			"layer", "application",
			"poll_id", poll.PollID,
		)
		return OpenPollResult{Poll: poll, Replayed: true}, nil
	}

	if _, found, err := uc.Polls.GetOpenPollByChannel(ctx, cmd.ChannelID); err != nil {
		return OpenPollResult{}, err
	} else if found {
		logger.Warn("poll open rejected: channel busy",
			"event", "poll_open_channel_busy",
			"module", "election-core/poll-service",
			"layer", "application",
			"channel_id", strings.TrimSpace(cmd.ChannelID),
		)
		return OpenPollResult{}, domainerrors.ErrChannelHasOpenPoll
	}

	pollID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return OpenPollResult{}, err
	}
	options := make([]entities.PollOption, 0, len(labels))
	for _, label := range labels {
		id, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return OpenPollResult{}, err
		}
		options = append(options, entities.PollOption{
			OptionID: shortOptionID(id),
			Label:    label,
		})
	}

	poll := entities.Poll{
		PollID:      pollID,
		ChannelID:   strings.TrimSpace(cmd.ChannelID),
		Title:       strings.TrimSpace(cmd.Title),
		Description: strings.TrimSpace(cmd.Description),
		Options:     options,
		Status:      entities.PollStatusOpen,
		CreatedBy:   strings.TrimSpace(cmd.CreatedBy),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.Polls.SavePoll(ctx, poll); err != nil {
		return OpenPollResult{}, err
	}
	if err := uc.appendPollEvent(ctx, "poll.opened", poll, now, map[string]any{
		"description":   poll.Description,
		"created_by":    poll.CreatedBy,
		"option_labels": labels,
	}); err != nil {
		return OpenPollResult{}, err
	}
	if err := uc.putIdempotency(ctx, cmd.IdempotencyKey, requestHash, poll.PollID, now); err != nil {
		return OpenPollResult{}, err
	}

	logger.Info("poll opened",
		"event", "poll_opened",
		"module", "election-core/poll-service",
		"layer", "application",
		"poll_id", poll.PollID,
		"channel_id", poll.ChannelID,
		"option_count", len(options),
	)
	return OpenPollResult{Poll: poll}, nil
}

// ClosePoll tallies the submitted ballots with instant-runoff elimination
// and finalizes the poll. A tally invariant violation aborts the close: the
// poll stays open and the outcome must be treated as undefined.
func (uc PollUseCase) ClosePoll(ctx context.Context, cmd ClosePollCommand) (ClosePollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("poll close processing started",
		"event", "poll_close_started",
		"module", "election-core/poll-service",
		"layer", "application",
		"poll_id", strings.TrimSpace(cmd.PollID),
		"actor_id", strings.TrimSpace(cmd.ActorID),
	)
	if strings.TrimSpace(cmd.PollID) == "" || strings.TrimSpace(cmd.ActorID) == "" {
		return ClosePollResult{}, domainerrors.ErrInvalidPollInput
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return ClosePollResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashPollActionCommand("close_poll", cmd.PollID, cmd.ActorID)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return ClosePollResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return ClosePollResult{}, domainerrors.ErrIdempotencyConflict
		}
		poll, err := uc.Polls.GetPoll(ctx, record.PollID)
		if err != nil {
			return ClosePollResult{}, err
		}
		return ClosePollResult{
			Poll:           poll,
			WinnerOptionID: poll.WinnerOptionID,
			Replayed:       true,
		}, nil
	}

	poll, err := uc.Polls.GetPoll(ctx, strings.TrimSpace(cmd.PollID))
	if err != nil {
		return ClosePollResult{}, err
	}
	if !poll.IsOpen() {
		return ClosePollResult{}, domainerrors.ErrPollNotOpen
	}

	rankings, err := uc.Ballots.SubmittedRankings(ctx, poll.PollID)
	if err != nil {
		return ClosePollResult{}, err
	}
	if len(rankings) == 0 {
		return ClosePollResult{}, domainerrors.ErrNoBallotsSubmitted
	}

	rng := uc.rand()
	result, err := tally.Tally(toBallotSet(rankings), rng)
	if err != nil {
		logger.Error("poll tally aborted",
			"event", "poll_tally_invariant_violation",
			"module", "election-core/poll-service",
			"layer", "application",
			"poll_id", poll.PollID,
			"error", err.Error(),
		)
		return ClosePollResult{}, domainerrors.ErrTallyFailed
	}
	if result.Winner == "" {
		// Every submitted ballot was empty; there is nothing to elect.
		return ClosePollResult{}, domainerrors.ErrNoBallotsSubmitted
	}

	anonymized := anonymizeBallots(rankings, rng)
	rounds := toRoundTraces(result.Rounds)

	closedAt := now
	poll.Status = entities.PollStatusClosed
	poll.WinnerOptionID = result.Winner
	poll.ClosedAt = &closedAt
	poll.UpdatedAt = now
	if err := uc.Polls.SavePoll(ctx, poll); err != nil {
		return ClosePollResult{}, err
	}
	if err := uc.appendPollEvent(ctx, "poll.closed", poll, now, map[string]any{
		"closed_by":          strings.TrimSpace(cmd.ActorID),
		"winner_option_id":   result.Winner,
		"option_labels":      poll.OptionLabels(),
		"anonymized_ballots": anonymized,
		"rounds":             rounds,
	}); err != nil {
		return ClosePollResult{}, err
	}
	if err := uc.putIdempotency(ctx, cmd.IdempotencyKey, requestHash, poll.PollID, now); err != nil {
		return ClosePollResult{}, err
	}

	logger.Info("poll closed",
		"event", "poll_closed",
		"module", "election-core/poll-service",
		"layer", "application",
		"poll_id", poll.PollID,
		"channel_id", poll.ChannelID,
		"winner_option_id", result.Winner,
		"ballot_count", len(rankings),
		"round_count", len(rounds),
	)
	return ClosePollResult{
		Poll:              poll,
		WinnerOptionID:    result.Winner,
		Rounds:            rounds,
		AnonymizedBallots: anonymized,
	}, nil
}

// CancelPoll abandons an open poll without tallying.
func (uc PollUseCase) CancelPoll(ctx context.Context, cmd CancelPollCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.PollID) == "" || strings.TrimSpace(cmd.ActorID) == "" {
		return domainerrors.ErrInvalidPollInput
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashPollActionCommand("cancel_poll", cmd.PollID, cmd.ActorID)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return err
	} else if found {
		if record.RequestHash != requestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}

	poll, err := uc.Polls.GetPoll(ctx, strings.TrimSpace(cmd.PollID))
	if err != nil {
		return err
	}
	if !poll.IsOpen() {
		return domainerrors.ErrPollNotOpen
	}

	poll.Status = entities.PollStatusCancelled
	poll.UpdatedAt = now
	if err := uc.Polls.SavePoll(ctx, poll); err != nil {
		return err
	}
	if err := uc.appendPollEvent(ctx, "poll.cancelled", poll, now, map[string]any{
		"cancelled_by": strings.TrimSpace(cmd.ActorID),
	}); err != nil {
		return err
	}
	if err := uc.putIdempotency(ctx, cmd.IdempotencyKey, requestHash, poll.PollID, now); err != nil {
		return err
	}
	logger.Info("poll cancelled",
		"event", "poll_cancelled",
		"module", "election-core/poll-service",
		"layer", "application",
		"poll_id", poll.PollID,
		"channel_id", poll.ChannelID,
		"cancelled_by", strings.TrimSpace(cmd.ActorID),
	)
	return nil
}

// RemindVoters emits a reminder event for an open poll.
func (uc PollUseCase) RemindVoters(ctx context.Context, cmd RemindVotersCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.PollID) == "" {
		return domainerrors.ErrInvalidPollInput
	}
	poll, err := uc.Polls.GetPoll(ctx, strings.TrimSpace(cmd.PollID))
	if err != nil {
		return err
	}
	if !poll.IsOpen() {
		return domainerrors.ErrPollNotOpen
	}
	now := uc.now()
	if err := uc.appendPollEvent(ctx, "poll.reminder", poll, now, map[string]any{
		"requested_by": strings.TrimSpace(cmd.ActorID),
	}); err != nil {
		return err
	}
	logger.Info("poll reminder emitted",
		"event", "poll_reminder_emitted",
		"module", "election-core/poll-service",
		"layer", "application",
		"poll_id", poll.PollID,
		"channel_id", poll.ChannelID,
	)
	return nil
}

func (uc PollUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc PollUseCase) rand() ports.TallyRand {
	if uc.Rand != nil {
		return uc.Rand
	}
	return tally.Default()
}

func (uc PollUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func (uc PollUseCase) putIdempotency(
	ctx context.Context,
	key string,
	requestHash string,
	pollID string,
	now time.Time,
) error {
	return uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         strings.TrimSpace(key),
		RequestHash: requestHash,
		PollID:      pollID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	})
}

func (uc PollUseCase) appendPollEvent(
	ctx context.Context,
	eventType string,
	poll entities.Poll,
	occurredAt time.Time,
	extra map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"poll_id":     poll.PollID,
		"channel_id":  poll.ChannelID,
		"title":       poll.Title,
		"status":      string(poll.Status),
		"occurred_at": occurredAt.Format(time.RFC3339),
	}
	for key, value := range extra {
		data[key] = value
	}
	envelope, err := newPollEnvelope(eventID, eventType, poll.ChannelID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func toBallotSet(rankings map[string][]string) tally.BallotSet {
	set := make(tally.BallotSet, len(rankings))
	for voterID, ballot := range rankings {
		set[voterID] = append(tally.Ballot(nil), ballot...)
	}
	return set
}

func toRoundTraces(rounds []tally.RoundSnapshot) []entities.RoundTrace {
	traces := make([]entities.RoundTrace, 0, len(rounds))
	for _, round := range rounds {
		trace := make(entities.RoundTrace, 0, len(round))
		for _, ballot := range round {
			trace = append(trace, append([]string(nil), ballot...))
		}
		traces = append(traces, trace)
	}
	return traces
}

// anonymizeBallots copies the submitted rankings and shuffles them so the
// published list carries no voter correlation.
func anonymizeBallots(rankings map[string][]string, rng ports.TallyRand) [][]string {
	voters := make([]string, 0, len(rankings))
	for voterID := range rankings {
		voters = append(voters, voterID)
	}
	// Canonical order before the shuffle keeps the permutation rng-driven
	// rather than map-iteration driven.
	sortStrings(voters)
	ballots := make([][]string, 0, len(voters))
	for _, voterID := range voters {
		ballots = append(ballots, append([]string(nil), rankings[voterID]...))
	}
	rng.Shuffle(len(ballots), func(i, j int) {
		ballots[i], ballots[j] = ballots[j], ballots[i]
	})
	return ballots
}

func shortOptionID(id string) string {
	// Option tokens stay short for readable ballots, mirroring the 8-char
	// identifiers voters see in ranked lists.
	trimmed := strings.ReplaceAll(id, "-", "")
	if len(trimmed) > 8 {
		return trimmed[:8]
	}
	return trimmed
}

func hashOpenPollCommand(cmd OpenPollCommand, labels []string) string {
	payload := map[string]any{
		"channel_id":  strings.TrimSpace(cmd.ChannelID),
		"title":       strings.TrimSpace(cmd.Title),
		"description": strings.TrimSpace(cmd.Description),
		"options":     labels,
		"created_by":  strings.TrimSpace(cmd.CreatedBy),
		"op":          "open_poll",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashPollActionCommand(op string, pollID string, actorID string) string {
	payload := map[string]string{
		"poll_id":  strings.TrimSpace(pollID),
		"actor_id": strings.TrimSpace(actorID),
		"op":       op,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func sortStrings(items []string) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j] < items[j-1]; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
