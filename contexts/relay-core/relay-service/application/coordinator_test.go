package application

import (
	"context"
	"testing"

	"baton/contexts/relay-core/relay-service/domain/entities"
)

func TestCoordinatorSerializesOneLedger(t *testing.T) {
	coordinator := NewCoordinator()

	release, err := coordinator.Acquire(context.Background(), entities.LedgerCatalog)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	blocked, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := coordinator.Acquire(blocked, entities.LedgerCatalog); err == nil {
		t.Fatalf("expected acquire on held slot to fail with done context")
	}

	release()
	release, err = coordinator.Acquire(context.Background(), entities.LedgerCatalog)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release()
}

func TestCoordinatorKeepsLedgersIndependent(t *testing.T) {
	coordinator := NewCoordinator()

	releaseCatalog, err := coordinator.Acquire(context.Background(), entities.LedgerCatalog)
	if err != nil {
		t.Fatalf("catalog acquire: %v", err)
	}
	defer releaseCatalog()

	releaseAccess, err := coordinator.Acquire(context.Background(), entities.LedgerAccess)
	if err != nil {
		t.Fatalf("access slot must be free while catalog is held: %v", err)
	}
	releaseAccess()
}
