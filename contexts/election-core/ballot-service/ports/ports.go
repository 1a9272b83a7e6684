package ports

import (
	"context"
	"encoding/json"
	"time"

	"caucus/contexts/election-core/ballot-service/domain/entities"
)

type BallotRepository interface {
	SaveBallot(ctx context.Context, ballot entities.Ballot) error
	GetBallot(ctx context.Context, pollID string, voterID string) (entities.Ballot, error)
	ListSubmittedByPoll(ctx context.Context, pollID string) ([]entities.Ballot, error)
}

// PollFacts is the slice of poll state ballot collection needs: lifecycle
// and the declared option universe.
type PollFacts struct {
	PollID    string
	ChannelID string
	Open      bool
	OptionIDs []string
}

func (f PollFacts) HasOption(optionID string) bool {
	for _, id := range f.OptionIDs {
		if id == optionID {
			return true
		}
	}
	return false
}

// PollDirectory resolves poll facts from the poll module without coupling
// ballot collection to its storage.
type PollDirectory interface {
	GetPollFacts(ctx context.Context, pollID string) (PollFacts, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	BallotRef   string
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// EventEnvelope mirrors the repository canonical event contract.
type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
