package events

import (
	"encoding/json"
	"fmt"
	"time"

	eventsv1 "baton/contracts/gen/events/v1"
)

// New wraps a domain payload in the canonical cross-runtime envelope.
// Partition key keeps per-actor ordering when the bus is sharded.
func New(eventID, eventType, sourceService, traceID, partitionKey string, occurredAt time.Time, data any) (eventsv1.Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return eventsv1.Envelope{}, fmt.Errorf("marshal event data: %w", err)
	}
	return eventsv1.Envelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		TraceID:          traceID,
		SchemaVersion:    1,
		PartitionKeyPath: "data.actor",
		PartitionKey:     partitionKey,
		Data:             raw,
	}, nil
}
