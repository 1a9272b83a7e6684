package commands

import (
	"encoding/json"
	"time"

	"caucus/contexts/election-core/poll-service/ports"
)

func newPollEnvelope(
	eventID string,
	eventType string,
	channelID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Poll lifecycle events are partitioned by channel so per-channel
	// consumers observe them in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "poll-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "channel_id",
		PartitionKey:     channelID,
		Data:             payload,
	}, nil
}
