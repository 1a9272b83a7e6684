package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "caucus/contexts/election-core/ballot-service/application"
	"caucus/contexts/election-core/ballot-service/domain/entities"
	domainerrors "caucus/contexts/election-core/ballot-service/domain/errors"
	"caucus/contexts/election-core/ballot-service/ports"
)

type RankOptionCommand struct {
	PollID   string
	VoterID  string
	OptionID string
}

type RankOptionResult struct {
	Ballot entities.Ballot
	// AlreadyRanked is true when the option was on the ballot before the
	// call; the ballot is returned unchanged.
	AlreadyRanked bool
}

type ClearBallotCommand struct {
	PollID  string
	VoterID string
}

type SubmitBallotCommand struct {
	PollID         string
	VoterID        string
	IdempotencyKey string
}

type SubmitBallotResult struct {
	Ballot   entities.Ballot
	Replayed bool
}

// BallotUseCase collects rankings one option at a time, lets voters restart,
// and freezes the ballot on submit. Submission publishes ballot.submitted
// through the shared outbox.
type BallotUseCase struct {
	Ballots        ports.BallotRepository
	Polls          ports.PollDirectory
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// RankOption appends the option to the voter's working ballot. Ranking an
// option twice is a no-op, not an error, so a voter can safely retry.
func (uc BallotUseCase) RankOption(ctx context.Context, cmd RankOptionCommand) (RankOptionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	voterID := strings.TrimSpace(cmd.VoterID)
	optionID := strings.TrimSpace(cmd.OptionID)
	if pollID == "" || voterID == "" || optionID == "" {
		return RankOptionResult{}, domainerrors.ErrInvalidBallotInput
	}

	facts, err := uc.Polls.GetPollFacts(ctx, pollID)
	if err != nil {
		return RankOptionResult{}, err
	}
	if !facts.Open {
		return RankOptionResult{}, domainerrors.ErrPollNotOpen
	}
	if !facts.HasOption(optionID) {
		return RankOptionResult{}, domainerrors.ErrUnknownOption
	}

	now := uc.now()
	ballot, err := uc.loadOrStartBallot(ctx, pollID, voterID, now)
	if err != nil {
		return RankOptionResult{}, err
	}
	if ballot.Submitted {
		return RankOptionResult{}, domainerrors.ErrBallotAlreadySubmitted
	}
	if ballot.HasRanked(optionID) {
		return RankOptionResult{Ballot: ballot, AlreadyRanked: true}, nil
	}

	ballot.Rankings = append(ballot.Rankings, optionID)
	ballot.UpdatedAt = now
	if err := uc.Ballots.SaveBallot(ctx, ballot); err != nil {
		return RankOptionResult{}, err
	}
	logger.Info("option ranked",
		"event", "ballot_option_ranked",
		"module", "election-core/ballot-service",
		"layer", "application",
		"poll_id", pollID,
		"option_id", optionID,
		"rank", len(ballot.Rankings),
	)
	return RankOptionResult{Ballot: ballot}, nil
}

// ClearBallot wipes the voter's working rankings so they can start over.
func (uc BallotUseCase) ClearBallot(ctx context.Context, cmd ClearBallotCommand) (entities.Ballot, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	voterID := strings.TrimSpace(cmd.VoterID)
	if pollID == "" || voterID == "" {
		return entities.Ballot{}, domainerrors.ErrInvalidBallotInput
	}

	facts, err := uc.Polls.GetPollFacts(ctx, pollID)
	if err != nil {
		return entities.Ballot{}, err
	}
	if !facts.Open {
		return entities.Ballot{}, domainerrors.ErrPollNotOpen
	}

	now := uc.now()
	ballot, err := uc.loadOrStartBallot(ctx, pollID, voterID, now)
	if err != nil {
		return entities.Ballot{}, err
	}
	if ballot.Submitted {
		return entities.Ballot{}, domainerrors.ErrBallotAlreadySubmitted
	}

	ballot.Rankings = nil
	ballot.UpdatedAt = now
	if err := uc.Ballots.SaveBallot(ctx, ballot); err != nil {
		return entities.Ballot{}, err
	}
	logger.Info("ballot cleared",
		"event", "ballot_cleared",
		"module", "election-core/ballot-service",
		"layer", "application",
		"poll_id", pollID,
	)
	return ballot, nil
}

// SubmitBallot freezes the voter's rankings. An empty ballot may be
// submitted; it simply exhausts immediately in the tally.
func (uc BallotUseCase) SubmitBallot(ctx context.Context, cmd SubmitBallotCommand) (SubmitBallotResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	voterID := strings.TrimSpace(cmd.VoterID)
	if pollID == "" || voterID == "" {
		return SubmitBallotResult{}, domainerrors.ErrInvalidBallotInput
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return SubmitBallotResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.now()
	requestHash := hashSubmitCommand(pollID, voterID)
	if record, found, err := uc.Idempotency.Get(ctx, cmd.IdempotencyKey, now); err != nil {
		return SubmitBallotResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return SubmitBallotResult{}, domainerrors.ErrIdempotencyConflict
		}
		ballot, err := uc.Ballots.GetBallot(ctx, pollID, voterID)
		if err != nil {
			return SubmitBallotResult{}, err
		}
		return SubmitBallotResult{Ballot: ballot, Replayed: true}, nil
	}

	facts, err := uc.Polls.GetPollFacts(ctx, pollID)
	if err != nil {
		return SubmitBallotResult{}, err
	}
	if !facts.Open {
		return SubmitBallotResult{}, domainerrors.ErrPollNotOpen
	}

	ballot, err := uc.Ballots.GetBallot(ctx, pollID, voterID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrBallotNotFound) {
			ballot = entities.Ballot{
				PollID:    pollID,
				VoterID:   voterID,
				CreatedAt: now,
			}
		} else {
			return SubmitBallotResult{}, err
		}
	}
	if ballot.Submitted {
		return SubmitBallotResult{}, domainerrors.ErrBallotAlreadySubmitted
	}

	ballot.Submitted = true
	ballot.UpdatedAt = now
	if err := uc.Ballots.SaveBallot(ctx, ballot); err != nil {
		return SubmitBallotResult{}, err
	}
	if err := uc.emitSubmitted(ctx, facts, voterID, now, len(ballot.Rankings)); err != nil {
		return SubmitBallotResult{}, err
	}
	if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:         strings.TrimSpace(cmd.IdempotencyKey),
		RequestHash: requestHash,
		BallotRef:   pollID + "/" + voterID,
		ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
	}); err != nil {
		return SubmitBallotResult{}, err
	}

	logger.Info("ballot submitted",
		"event", "ballot_submitted",
		"module", "election-core/ballot-service",
		"layer", "application",
		"poll_id", pollID,
		"ranked_count", len(ballot.Rankings),
	)
	return SubmitBallotResult{Ballot: ballot}, nil
}

func (uc BallotUseCase) loadOrStartBallot(
	ctx context.Context,
	pollID string,
	voterID string,
	now time.Time,
) (entities.Ballot, error) {
	ballot, err := uc.Ballots.GetBallot(ctx, pollID, voterID)
	if err == nil {
		return ballot, nil
	}
	if errors.Is(err, domainerrors.ErrBallotNotFound) {
		return entities.Ballot{
			PollID:    pollID,
			VoterID:   voterID,
			CreatedAt: now,
		}, nil
	}
	return entities.Ballot{}, err
}

// emitSubmitted publishes the fact of submission only. Rankings never leave
// this module attributed to a voter; the tally side reads them in bulk and
// anonymizes before anything is published.
func (uc BallotUseCase) emitSubmitted(
	ctx context.Context,
	facts ports.PollFacts,
	voterID string,
	occurredAt time.Time,
	rankedCount int,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"poll_id":      facts.PollID,
		"channel_id":   facts.ChannelID,
		"voter_id":     voterID,
		"ranked_count": rankedCount,
		"occurred_at":  occurredAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        "ballot.submitted",
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "ballot-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "channel_id",
		PartitionKey:     facts.ChannelID,
		Data:             payload,
	})
}

func (uc BallotUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc BallotUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func hashSubmitCommand(pollID string, voterID string) string {
	raw, _ := json.Marshal(map[string]string{
		"poll_id":  pollID,
		"voter_id": voterID,
		"op":       "submit_ballot",
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
