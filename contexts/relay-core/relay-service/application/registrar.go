package application

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/ports"
)

const defaultExistenceChecks = 8

// Registrar keeps catalog registration idempotent. Callers hand it every
// entity an operation references; it checks the ledger for each canonical id
// and registers only the ones the catalog has never seen.
type Registrar struct {
	Catalog ports.CatalogReader
	Codec   ports.CatalogCodec

	// MaxParallelChecks caps concurrent existence reads. Zero means the default.
	MaxParallelChecks int

	Logger *slog.Logger
}

// MissingEntries dedupes the input by canonical id, keeps first-occurrence
// order and returns the subset the catalog does not know yet.
func (r Registrar) MissingEntries(ctx context.Context, entries []entities.RegistrationEntry) ([]entities.RegistrationEntry, error) {
	seen := make(map[[32]byte]struct{}, len(entries))
	deduped := make([]entities.RegistrationEntry, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.Identity.ID]; ok {
			continue
		}
		seen[entry.Identity.ID] = struct{}{}
		deduped = append(deduped, entry)
	}
	if len(deduped) == 0 {
		return nil, nil
	}

	limit := r.MaxParallelChecks
	if limit <= 0 {
		limit = defaultExistenceChecks
	}

	exists := make([]bool, len(deduped))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i := range deduped {
		group.Go(func() error {
			known, err := r.Catalog.EntityExists(groupCtx, deduped[i].Identity.ID)
			if err != nil {
				return fmt.Errorf("check %s: %w", deduped[i].Identity.Hex(), err)
			}
			exists[i] = known
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	missing := make([]entities.RegistrationEntry, 0, len(deduped))
	for i, entry := range deduped {
		if !exists[i] {
			missing = append(missing, entry)
		}
	}
	return missing, nil
}

// RegisterJob packs one batched registration call, or nil when there is
// nothing to register.
func (r Registrar) RegisterJob(label string, missing []entities.RegistrationEntry) (*Job, error) {
	if len(missing) == 0 {
		return nil, nil
	}
	call, err := r.Codec.RegisterBatch(missing)
	if err != nil {
		return nil, fmt.Errorf("pack registration batch: %w", err)
	}
	return &Job{Label: label, Call: call}, nil
}

// EnsureRegistered checks and, when needed, registers the entries on the
// catalog ledger in one transaction. It reports how many entries were actually
// written; a step without a receipt means everything already existed.
func (r Registrar) EnsureRegistered(ctx context.Context, engine *Engine, label string, entries []entities.RegistrationEntry) (int, []entities.StepResult) {
	logger := ResolveLogger(r.Logger)

	missing, err := r.MissingEntries(ctx, entries)
	if err != nil {
		return 0, []entities.StepResult{{Name: label, Ledger: entities.LedgerCatalog, Err: err}}
	}
	if len(missing) == 0 {
		return 0, []entities.StepResult{{Name: label, Ledger: entities.LedgerCatalog}}
	}

	job, err := r.RegisterJob(label, missing)
	if err != nil {
		return 0, []entities.StepResult{{Name: label, Ledger: entities.LedgerCatalog, Err: err}}
	}

	steps := engine.RunJobs(ctx, entities.LedgerCatalog, []Job{*job})
	if last := steps[len(steps)-1]; last.Err != nil {
		return 0, steps
	}

	logger.Info("registered missing catalog entries",
		"event", "catalog_entries_registered",
		"module", "relay-core/relay-service",
		"layer", "application",
		"count", len(missing))

	return len(missing), steps
}
