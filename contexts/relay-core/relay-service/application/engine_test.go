package application

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"baton/contexts/relay-core/relay-service/adapters/memory"
	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/ports"
)

const engineActor = "0x2222222222222222222222222222222222222222"

func newTestEngine(ledgers ...*memory.Ledger) *Engine {
	submitters := make(map[entities.LedgerName]ports.LedgerSubmitter, len(ledgers))
	for _, ledger := range ledgers {
		submitters[ledger.LedgerName()] = ledger
	}
	return &Engine{
		Submitters:     submitters,
		Signer:         memory.Signer{},
		Coordinator:    NewCoordinator(),
		PollInterval:   time.Millisecond,
		ReceiptTimeout: 250 * time.Millisecond,
	}
}

func claimJob(t *testing.T, label, name string) Job {
	t.Helper()
	call, err := memory.CatalogCodec{}.ClaimName(engineActor, name)
	if err != nil {
		t.Fatalf("pack claim: %v", err)
	}
	return Job{Label: label, Call: call}
}

func TestEngineAdvancesSequenceAcrossSessions(t *testing.T) {
	catalog := memory.NewLedger(entities.LedgerCatalog, 31337)
	engine := newTestEngine(catalog)

	steps := engine.RunJobs(context.Background(), entities.LedgerCatalog, []Job{
		claimJob(t, entities.StepClaimName, "alice"),
		claimJob(t, entities.StepClaimName, "bob"),
	})
	for _, step := range steps {
		if step.Err != nil {
			t.Fatalf("step %s failed: %v", step.Name, step.Err)
		}
		if step.Receipt == nil || step.Receipt.TxHash == "" {
			t.Fatalf("step %s missing receipt", step.Name)
		}
	}

	more := engine.RunJobs(context.Background(), entities.LedgerCatalog, []Job{
		claimJob(t, entities.StepClaimName, "carol"),
	})
	if more[0].Err != nil {
		t.Fatalf("second session failed: %v", more[0].Err)
	}

	next, err := catalog.PendingNonce(context.Background(), memory.Signer{}.Address())
	if err != nil {
		t.Fatalf("pending nonce: %v", err)
	}
	if next != 3 {
		t.Fatalf("expected 3 spent sequence numbers, got %d", next)
	}
}

func TestEngineRetriesRejectedBroadcastOnce(t *testing.T) {
	catalog := memory.NewLedger(entities.LedgerCatalog, 31337)
	catalog.FailNextBroadcast(errors.New("mempool full"))
	engine := newTestEngine(catalog)

	steps := engine.RunJobs(context.Background(), entities.LedgerCatalog, []Job{
		claimJob(t, entities.StepClaimName, "alice"),
	})
	if steps[0].Err != nil {
		t.Fatalf("retry did not absorb the rejection: %v", steps[0].Err)
	}
	if catalog.OwnerOf("alice") == "" {
		t.Fatalf("claim not applied after retry")
	}
}

func TestEngineFailsWhenRetryIsRejectedToo(t *testing.T) {
	catalog := memory.NewLedger(entities.LedgerCatalog, 31337)
	catalog.FailNextBroadcasts(errors.New("mempool full"), 2)
	engine := newTestEngine(catalog)

	steps := engine.RunJobs(context.Background(), entities.LedgerCatalog, []Job{
		claimJob(t, entities.StepClaimName, "alice"),
	})
	if !errors.Is(steps[0].Err, domainerrors.ErrBroadcastFailed) {
		t.Fatalf("expected ErrBroadcastFailed, got %v", steps[0].Err)
	}
	if catalog.OwnerOf("alice") != "" {
		t.Fatalf("claim applied despite rejected broadcast")
	}
}

func TestEngineSurfacesRevertsAndKeepsSequenceSpent(t *testing.T) {
	catalog := memory.NewLedger(entities.LedgerCatalog, 31337)
	engine := newTestEngine(catalog)

	steps := engine.RunJobs(context.Background(), entities.LedgerCatalog, []Job{
		claimJob(t, entities.StepClaimName, "alice"),
		claimJob(t, entities.StepClaimName, "alice"),
	})
	if steps[0].Err != nil {
		t.Fatalf("first claim failed: %v", steps[0].Err)
	}
	if !errors.Is(steps[1].Err, domainerrors.ErrTransactionReverted) {
		t.Fatalf("expected ErrTransactionReverted, got %v", steps[1].Err)
	}

	next, err := catalog.PendingNonce(context.Background(), memory.Signer{}.Address())
	if err != nil {
		t.Fatalf("pending nonce: %v", err)
	}
	if next != 2 {
		t.Fatalf("reverted tx must spend its sequence number, got %d", next)
	}
}

func TestEngineWrapsEstimateFailures(t *testing.T) {
	catalog := memory.NewLedger(entities.LedgerCatalog, 31337)
	catalog.FailNextEstimate(errors.New("node down"))
	engine := newTestEngine(catalog)

	steps := engine.RunJobs(context.Background(), entities.LedgerCatalog, []Job{
		claimJob(t, entities.StepClaimName, "alice"),
	})
	if !errors.Is(steps[0].Err, domainerrors.ErrBroadcastFailed) {
		t.Fatalf("expected ErrBroadcastFailed, got %v", steps[0].Err)
	}
}

func TestEngineRejectsUnknownLedger(t *testing.T) {
	engine := newTestEngine(memory.NewLedger(entities.LedgerCatalog, 31337))

	steps := engine.RunJobs(context.Background(), entities.LedgerAccess, []Job{
		claimJob(t, entities.StepClaimName, "alice"),
	})
	if steps[0].Err == nil {
		t.Fatalf("expected error for unconfigured ledger")
	}
}

func TestSubmitSequencedStopsAfterFailedLeg(t *testing.T) {
	access := memory.NewLedger(entities.LedgerAccess, 31338)
	catalog := memory.NewLedger(entities.LedgerCatalog, 31337)
	engine := newTestEngine(access, catalog)

	// Consuming nonce 5 against a zero counter reverts the access leg.
	consume, err := memory.AccessCodec{}.ConsumeNonce(engineActor, big.NewInt(5))
	if err != nil {
		t.Fatalf("pack consume: %v", err)
	}

	steps := engine.SubmitSequenced(context.Background(), []SequencedLeg{
		{Ledger: entities.LedgerAccess, Jobs: []Job{{Label: entities.StepConsumeNonce, Call: consume}}},
		{Ledger: entities.LedgerCatalog, Jobs: []Job{claimJob(t, entities.StepClaimName, "alice")}},
	})

	if len(steps) != 1 {
		t.Fatalf("expected 1 step before stopping, got %d", len(steps))
	}
	if !errors.Is(steps[0].Err, domainerrors.ErrTransactionReverted) {
		t.Fatalf("expected ErrTransactionReverted, got %v", steps[0].Err)
	}
	next, err := catalog.PendingNonce(context.Background(), memory.Signer{}.Address())
	if err != nil {
		t.Fatalf("pending nonce: %v", err)
	}
	if next != 0 {
		t.Fatalf("catalog leg must not run after access failure, %d sequences spent", next)
	}
}
