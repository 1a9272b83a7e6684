package ports

import (
	"context"
	"encoding/json"
	"time"

	"caucus/contexts/election-core/poll-service/domain/entities"
)

type PollRepository interface {
	SavePoll(ctx context.Context, poll entities.Poll) error
	GetPoll(ctx context.Context, pollID string) (entities.Poll, error)
	GetOpenPollByChannel(ctx context.Context, channelID string) (entities.Poll, bool, error)
	ListOpenPolls(ctx context.Context) ([]entities.Poll, error)
}

// BallotReader exposes the submitted ballots of a poll, keyed by voter ID.
// Rankings are option IDs in preference order; the ballot-collection side
// guarantees deduplication against the poll's declared options.
type BallotReader interface {
	SubmittedRankings(ctx context.Context, pollID string) (map[string][]string, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	PollID      string
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// EventEnvelope is the event shape this module appends to its outbox and
// publishes on the bus. Fields align with the repository canonical event
// contract.
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

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// TallyRand supplies the randomness the tally engine needs for snapshot
// shuffling and exhaustion tie-breaks. Implementations shared across
// concurrent tallies must be safe for concurrent use.
type TallyRand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}
