package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	application "baton/contexts/relay-core/relay-service/application"
	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/ports"
	contractsv1 "baton/contracts/gen/events/v1"
)

// MirrorReconciler replays the catalog leg of partial content registrations.
// The access ledger already holds the gating write for these jobs, so the
// replay is registration only and stays idempotent: entries the catalog
// gained in the meantime are skipped. After MaxAttempts failed replays the
// row is parked as stuck for an operator.
type MirrorReconciler struct {
	Journal   ports.JournalRepository
	Registrar application.Registrar
	Engine    *application.Engine
	IDs       ports.IDGenerator
	Clock     ports.Clock

	RetryDelay  time.Duration
	MaxAttempts int
	BatchSize   int

	Logger *slog.Logger
}

func (w MirrorReconciler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	now := w.now()

	stale, err := w.Journal.ListStalePartials(ctx, now.Add(-w.retryDelay()), w.batchSize())
	if err != nil {
		logger.Error("list partial journal rows failed",
			"event", "relay_reconcile_list_failed",
			"module", "relay-core/relay-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, entry := range stale {
		w.reconcile(ctx, entry, now)
	}
	return nil
}

func (w MirrorReconciler) reconcile(ctx context.Context, entry entities.JournalEntry, now time.Time) {
	logger := application.ResolveLogger(w.Logger)

	replay := make([]entities.RegistrationEntry, 0, len(entry.MirrorEntries))
	for _, mirror := range entry.MirrorEntries {
		registration, err := mirror.ToRegistrationEntry()
		if err != nil {
			// Undecodable replay data never heals on retry.
			w.bump(ctx, entry, fmt.Sprintf("mirror entry corrupt: %v", err), true, now)
			return
		}
		replay = append(replay, registration)
	}
	if len(replay) == 0 {
		w.bump(ctx, entry, "partial journal row carries no mirror entries", true, now)
		return
	}

	count, steps := w.Registrar.EnsureRegistered(ctx, w.Engine, entities.StepMirrorCatalog, replay)
	if last := steps[len(steps)-1]; last.Err != nil {
		stuck := entry.Attempts+1 >= w.maxAttempts()
		w.bump(ctx, entry, last.Err.Error(), stuck, now)
		return
	}

	entry.Status = entities.JobReconciled
	entry.Attempts++
	entry.UpdatedAt = now
	entry.MirrorEntries = nil
	entry.Outcome.Status = entities.OutcomeSuccess
	entry.Outcome.PendingStep = ""
	entry.Outcome.Error = ""
	for _, step := range steps {
		if step.Err == nil && step.Receipt != nil {
			entry.Outcome.Completed = append(entry.Outcome.Completed, entities.StepRecord{
				Name:        step.Name,
				Ledger:      step.Ledger,
				TxHash:      step.Receipt.TxHash,
				BlockNumber: step.Receipt.BlockNumber,
			})
		}
	}
	entry.Outcome.Warnings = append(entry.Outcome.Warnings,
		fmt.Sprintf("catalog mirror reconciled after %d attempt(s)", entry.Attempts))

	eventID, err := w.IDs.NewID(ctx)
	if err != nil {
		eventID = entry.JobID + "/reconciled"
	}
	event := ports.OutcomeEvent{
		EventID:      eventID,
		EventType:    contractsv1.EventTypeRelayMirrorReconciled,
		JobID:        entry.JobID,
		Operation:    entry.Operation,
		Actor:        entry.Actor,
		Status:       string(entry.Status),
		PartitionKey: entry.Actor,
		OccurredAt:   now,
		Outcome:      entry.Outcome,
	}
	if err := w.Journal.RecordOutcomeWithOutbox(ctx, entry, event); err != nil {
		logger.Error("store reconciled outcome failed",
			"event", "relay_reconcile_store_failed",
			"module", "relay-core/relay-service",
			"layer", "worker",
			"job_id", entry.JobID,
			"error", err.Error(),
		)
		return
	}

	logger.Info("partial mirror reconciled",
		"event", "relay_mirror_reconciled",
		"module", "relay-core/relay-service",
		"layer", "worker",
		"job_id", entry.JobID,
		"operation", entry.Operation,
		"registered", count,
		"attempts", entry.Attempts,
	)
}

func (w MirrorReconciler) bump(ctx context.Context, entry entities.JournalEntry, cause string, stuck bool, now time.Time) {
	logger := application.ResolveLogger(w.Logger)

	if err := w.Journal.BumpAttempt(ctx, entry.JobID, cause, stuck, now); err != nil {
		logger.Error("bump reconcile attempt failed",
			"event", "relay_reconcile_bump_failed",
			"module", "relay-core/relay-service",
			"layer", "worker",
			"job_id", entry.JobID,
			"error", err.Error(),
		)
		return
	}

	if stuck {
		logger.Error("mirror reconciliation exhausted, row parked as stuck",
			"event", "relay_reconcile_stuck",
			"module", "relay-core/relay-service",
			"layer", "worker",
			"job_id", entry.JobID,
			"operation", entry.Operation,
			"attempts", entry.Attempts+1,
			"cause", cause,
		)
		return
	}
	logger.Warn("mirror reconciliation attempt failed",
		"event", "relay_reconcile_retry_failed",
		"module", "relay-core/relay-service",
		"layer", "worker",
		"job_id", entry.JobID,
		"attempts", entry.Attempts+1,
		"cause", cause,
	)
}

func (w MirrorReconciler) retryDelay() time.Duration {
	if w.RetryDelay > 0 {
		return w.RetryDelay
	}
	return 2 * time.Minute
}

func (w MirrorReconciler) maxAttempts() int {
	if w.MaxAttempts > 0 {
		return w.MaxAttempts
	}
	return 5
}

func (w MirrorReconciler) batchSize() int {
	if w.BatchSize > 0 {
		return w.BatchSize
	}
	return 20
}

func (w MirrorReconciler) now() time.Time {
	if w.Clock == nil {
		return time.Now().UTC()
	}
	return w.Clock.Now().UTC()
}
