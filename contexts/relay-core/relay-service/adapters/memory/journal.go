package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/ports"
	sharedevents "baton/internal/shared/events"
	"baton/internal/shared/outbox"
)

// outcomeEventData is the envelope payload carried by relay outcome events.
type outcomeEventData struct {
	JobID     string           `json:"job_id"`
	Operation string           `json:"operation"`
	Actor     string           `json:"actor"`
	Status    string           `json:"status"`
	Outcome   entities.Outcome `json:"outcome"`
}

// Journal is the in-memory journal and outbox pair. Outcome and outbox writes
// happen under one lock, mirroring the single transaction the postgres
// adapter uses.
type Journal struct {
	mu      sync.Mutex
	entries map[string]entities.JournalEntry
	digests map[string]string
	pending []ports.OutboxMessage
	seq     int

	failInsert error
	failRecord error
}

func NewJournal() *Journal {
	return &Journal{
		entries: make(map[string]entities.JournalEntry),
		digests: make(map[string]string),
	}
}

func (j *Journal) Insert(ctx context.Context, entry entities.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.failInsert != nil {
		err := j.failInsert
		j.failInsert = nil
		return err
	}

	digest := strings.ToLower(entry.IntentDigest)
	if jobID, ok := j.digests[digest]; ok {
		return fmt.Errorf("%w: already journaled as job %s", domainerrors.ErrIntentInFlight, jobID)
	}
	j.digests[digest] = entry.JobID
	j.entries[entry.JobID] = cloneEntry(entry)
	return nil
}

func (j *Journal) RecordOutcomeWithOutbox(ctx context.Context, entry entities.JournalEntry, event ports.OutcomeEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.failRecord != nil {
		err := j.failRecord
		j.failRecord = nil
		return err
	}

	envelope, err := sharedevents.New(
		event.EventID,
		event.EventType,
		"relay-service",
		event.JobID,
		event.PartitionKey,
		event.OccurredAt,
		outcomeEventData{
			JobID:     event.JobID,
			Operation: event.Operation,
			Actor:     event.Actor,
			Status:    event.Status,
			Outcome:   event.Outcome,
		},
	)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	j.entries[entry.JobID] = cloneEntry(entry)
	j.seq++
	j.pending = append(j.pending, ports.OutboxMessage{
		OutboxID:  fmt.Sprintf("outbox-%06d", j.seq),
		EventType: event.EventType,
		Payload:   payload,
		Status:    outbox.StatusPending,
		CreatedAt: event.OccurredAt,
	})
	return nil
}

func (j *Journal) Get(ctx context.Context, jobID string) (entities.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, ok := j.entries[jobID]
	if !ok {
		return entities.JournalEntry{}, fmt.Errorf("%w: %s", domainerrors.ErrJobNotFound, jobID)
	}
	return cloneEntry(entry), nil
}

func (j *Journal) ListStalePartials(ctx context.Context, before time.Time, limit int) ([]entities.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stale := make([]entities.JournalEntry, 0)
	for _, entry := range j.entries {
		if entry.Status == entities.JobPartial && entry.UpdatedAt.Before(before) {
			stale = append(stale, cloneEntry(entry))
		}
	}
	sort.Slice(stale, func(a, b int) bool { return stale[a].UpdatedAt.Before(stale[b].UpdatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (j *Journal) BumpAttempt(ctx context.Context, jobID, lastError string, stuck bool, now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry, ok := j.entries[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", domainerrors.ErrJobNotFound, jobID)
	}
	entry.Attempts++
	entry.UpdatedAt = now
	entry.Outcome.Error = lastError
	if stuck {
		entry.Status = entities.JobStuck
	}
	j.entries[jobID] = entry
	return nil
}

func (j *Journal) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	messages := make([]ports.OutboxMessage, 0, limit)
	for _, message := range j.pending {
		if message.Status != outbox.StatusPending {
			continue
		}
		messages = append(messages, message)
		if limit > 0 && len(messages) == limit {
			break
		}
	}
	return messages, nil
}

func (j *Journal) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i := range j.pending {
		if j.pending[i].OutboxID == outboxID {
			at := sentAt
			j.pending[i].Status = outbox.StatusSent
			j.pending[i].SentAt = &at
			return nil
		}
	}
	return fmt.Errorf("outbox message %s not found", outboxID)
}

// FailNextInsert makes the next Insert return err.
func (j *Journal) FailNextInsert(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failInsert = err
}

// FailNextRecord makes the next RecordOutcomeWithOutbox return err.
func (j *Journal) FailNextRecord(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failRecord = err
}

var _ ports.JournalRepository = (*Journal)(nil)
var _ ports.OutboxRepository = (*Journal)(nil)

func cloneEntry(entry entities.JournalEntry) entities.JournalEntry {
	cloned := entry
	if entry.MirrorEntries != nil {
		cloned.MirrorEntries = append([]entities.MirrorEntry(nil), entry.MirrorEntries...)
	}
	if entry.Outcome.Completed != nil {
		cloned.Outcome.Completed = append([]entities.StepRecord(nil), entry.Outcome.Completed...)
	}
	if entry.Outcome.Warnings != nil {
		cloned.Outcome.Warnings = append([]string(nil), entry.Outcome.Warnings...)
	}
	return cloned
}
