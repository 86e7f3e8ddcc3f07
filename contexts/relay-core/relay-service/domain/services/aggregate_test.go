package services

import (
	"errors"
	"testing"

	"baton/contexts/relay-core/relay-service/domain/entities"
)

func TestAggregateRecordsSuccessfulSteps(t *testing.T) {
	outcome := Aggregate([]entities.StepResult{
		{Name: entities.StepConsumeNonce, Ledger: entities.LedgerCatalog, Receipt: &entities.Receipt{TxHash: "0xaa", BlockNumber: 10, Status: 1}},
		{Name: entities.StepClaimName, Ledger: entities.LedgerCatalog, Receipt: &entities.Receipt{TxHash: "0xbb", BlockNumber: 11, Status: 1}},
	}, []string{"cover skipped"})

	if outcome.Status != entities.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", outcome.Status, outcome.Error)
	}
	if len(outcome.Completed) != 2 {
		t.Fatalf("expected 2 completed steps, got %d", len(outcome.Completed))
	}
	if outcome.TxHashOf(entities.StepClaimName) != "0xbb" {
		t.Fatalf("expected tx hash 0xbb, got %q", outcome.TxHashOf(entities.StepClaimName))
	}
	if len(outcome.Warnings) != 1 || outcome.Warnings[0] != "cover skipped" {
		t.Fatalf("warnings not carried: %v", outcome.Warnings)
	}
}

func TestAggregateStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("broadcast rejected")
	outcome := Aggregate([]entities.StepResult{
		{Name: entities.StepConsumeNonce, Ledger: entities.LedgerCatalog, Err: boom},
		{Name: entities.StepPublishPost, Ledger: entities.LedgerCatalog, Receipt: &entities.Receipt{TxHash: "0xcc", Status: 1}},
	}, nil)

	if outcome.Status != entities.OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}
	if outcome.Error != boom.Error() {
		t.Fatalf("expected error %q, got %q", boom.Error(), outcome.Error)
	}
	if len(outcome.Completed) != 0 {
		t.Fatalf("steps after a failure must not be recorded, got %v", outcome.Completed)
	}
	if outcome.PendingStep != "" {
		t.Fatalf("same-ledger failure must not mark a pending step, got %q", outcome.PendingStep)
	}
}

func TestAggregateMarksCrossLedgerFailurePartial(t *testing.T) {
	outcome := Aggregate([]entities.StepResult{
		{Name: entities.StepConsumeNonce, Ledger: entities.LedgerAccess, Receipt: &entities.Receipt{TxHash: "0xaa", Status: 1}},
		{Name: entities.StepRegisterAccess, Ledger: entities.LedgerAccess, Receipt: &entities.Receipt{TxHash: "0xbb", Status: 1}},
		{Name: entities.StepMirrorCatalog, Ledger: entities.LedgerCatalog, Err: errors.New("catalog rpc down")},
	}, nil)

	if outcome.Status != entities.OutcomePartial {
		t.Fatalf("expected partial, got %s", outcome.Status)
	}
	if outcome.PendingStep != entities.StepMirrorCatalog {
		t.Fatalf("expected pending step %q, got %q", entities.StepMirrorCatalog, outcome.PendingStep)
	}
	if len(outcome.Completed) != 2 {
		t.Fatalf("committed access steps must stay recorded, got %d", len(outcome.Completed))
	}
}

func TestAggregateSameLedgerFailureStaysFailed(t *testing.T) {
	outcome := Aggregate([]entities.StepResult{
		{Name: entities.StepConsumeNonce, Ledger: entities.LedgerCatalog, Receipt: &entities.Receipt{TxHash: "0xaa", Status: 1}},
		{Name: entities.StepSubmitPlaylist, Ledger: entities.LedgerCatalog, Err: errors.New("reverted")},
	}, nil)

	if outcome.Status != entities.OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}
	if outcome.PendingStep != "" {
		t.Fatalf("expected no pending step, got %q", outcome.PendingStep)
	}
}

func TestAggregateLedgerlessStepNeverTurnsPartial(t *testing.T) {
	// A failing verification or upload step has no ledger; even after a
	// committed write it must read as failed, not partial.
	outcome := Aggregate([]entities.StepResult{
		{Name: entities.StepConsumeNonce, Ledger: entities.LedgerAccess, Receipt: &entities.Receipt{TxHash: "0xaa", Status: 1}},
		{Name: "store_document", Err: errors.New("bundler unavailable")},
	}, nil)

	if outcome.Status != entities.OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome.Status)
	}
	if outcome.PendingStep != "" {
		t.Fatalf("expected no pending step, got %q", outcome.PendingStep)
	}
}
