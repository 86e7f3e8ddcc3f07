package application

import (
	"context"
	"log/slog"
	"time"

	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/ports"
	contractsv1 "baton/contracts/gen/events/v1"
)

// OutcomeRecorder owns the relay journal. Begin writes the in-flight row that
// makes an intent digest visible to duplicate requests; Finish stores the
// final outcome together with the outbox event in one transaction.
//
// Finish never fails the operation: by the time it runs, transactions are on
// the ledger, so journal trouble is logged and the caller still gets the
// outcome.
type OutcomeRecorder struct {
	Journal ports.JournalRepository
	IDs     ports.IDGenerator
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (r OutcomeRecorder) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// Begin journals the intent as in-flight. A digest already journaled surfaces
// as ErrIntentInFlight from the repository and aborts the operation before any
// transaction is built.
func (r OutcomeRecorder) Begin(ctx context.Context, operation, actor, intentDigest string) (entities.JournalEntry, error) {
	jobID, err := r.IDs.NewID(ctx)
	if err != nil {
		return entities.JournalEntry{}, err
	}

	entry, err := entities.NewJournalEntry(jobID, operation, actor, intentDigest, r.now())
	if err != nil {
		return entities.JournalEntry{}, err
	}

	if err := r.Journal.Insert(ctx, entry); err != nil {
		return entities.JournalEntry{}, err
	}
	return entry, nil
}

// Finish stores the outcome and queues the outbox event. Mirror entries are
// kept only on partial outcomes so the reconciler can replay the missing leg.
func (r OutcomeRecorder) Finish(ctx context.Context, entry entities.JournalEntry, outcome entities.Outcome, mirrors []entities.MirrorEntry) entities.JournalEntry {
	logger := ResolveLogger(r.Logger)
	now := r.now()

	entry.Outcome = outcome
	entry.Status = journalStatus(outcome)
	entry.UpdatedAt = now
	if entry.Status == entities.JobPartial {
		entry.MirrorEntries = mirrors
	} else {
		entry.MirrorEntries = nil
	}

	eventID, err := r.IDs.NewID(ctx)
	if err != nil {
		logger.Error("allocate outcome event id",
			"event", "relay_outcome_event_id_failed",
			"module", "relay-core/relay-service",
			"layer", "application",
			"job_id", entry.JobID,
			"error", err)
		eventID = entry.JobID + "/outcome"
	}

	event := ports.OutcomeEvent{
		EventID:      eventID,
		EventType:    contractsv1.EventTypeRelayOutcomeRecorded,
		JobID:        entry.JobID,
		Operation:    entry.Operation,
		Actor:        entry.Actor,
		Status:       string(entry.Status),
		PartitionKey: entry.Actor,
		OccurredAt:   now,
		Outcome:      outcome,
	}

	if err := r.Journal.RecordOutcomeWithOutbox(ctx, entry, event); err != nil {
		logger.Error("record relay outcome",
			"event", "relay_outcome_record_failed",
			"module", "relay-core/relay-service",
			"layer", "application",
			"job_id", entry.JobID,
			"operation", entry.Operation,
			"status", entry.Status,
			"error", err)
	}
	return entry
}

func journalStatus(outcome entities.Outcome) entities.JobStatus {
	switch outcome.Status {
	case entities.OutcomeSuccess:
		return entities.JobSucceeded
	case entities.OutcomePartial:
		return entities.JobPartial
	default:
		return entities.JobFailed
	}
}
