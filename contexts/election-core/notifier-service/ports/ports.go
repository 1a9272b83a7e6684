package ports

import (
	"context"
	"encoding/json"
	"time"
)

// ChatMessage is one outbound channel post.
type ChatMessage struct {
	ChannelID string
	Text      string
}

// ChatGateway delivers messages to the chat workspace.
type ChatGateway interface {
	Post(ctx context.Context, message ChatMessage) error
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

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type Clock interface {
	Now() time.Time
}
