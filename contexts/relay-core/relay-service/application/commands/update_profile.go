package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	application "baton/contexts/relay-core/relay-service/application"
	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/domain/services"
	"baton/contexts/relay-core/relay-service/ports"
)

const maxProfileValueBytes = 512

var profileKeys = map[string]struct{}{
	"display":  {},
	"bio":      {},
	"url":      {},
	"avatar":   {},
	"location": {},
}

type UpdateProfileCommand struct {
	Actor     string
	Records   map[string]string
	Timestamp int64
	Nonce     string
	Signature []byte
}

type UpdateProfileResult struct {
	JobID       string
	UpdatedKeys []string
	TxHash      string
	Outcome     entities.Outcome
}

type UpdateProfileUseCase struct {
	Verifier application.Verifier
	Recorder application.OutcomeRecorder
	Engine   *application.Engine
	Catalog  ports.CatalogReader
	Codec    ports.CatalogCodec
	Logger   *slog.Logger
}

// Execute verifies the intent over every submitted record, then diffs against
// the ledger and writes only the keys that actually change. When nothing
// changes the operation succeeds without consuming the actor's nonce, so the
// same intent nonce stays valid for the next real write.
func (u UpdateProfileUseCase) Execute(ctx context.Context, cmd UpdateProfileCommand) (UpdateProfileResult, error) {
	logger := application.ResolveLogger(u.Logger)

	actor, err := validateActor(cmd.Actor)
	if err != nil {
		return UpdateProfileResult{}, err
	}
	if len(cmd.Records) == 0 {
		return UpdateProfileResult{}, fmt.Errorf("%w: records must not be empty", domainerrors.ErrMalformedRequest)
	}

	records := make(map[string]string, len(cmd.Records))
	keys := make([]string, 0, len(cmd.Records))
	for key, value := range cmd.Records {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if _, ok := profileKeys[normalized]; !ok {
			return UpdateProfileResult{}, fmt.Errorf("%w: unknown profile key %q", domainerrors.ErrMalformedRequest, key)
		}
		if _, dup := records[normalized]; dup {
			return UpdateProfileResult{}, fmt.Errorf("%w: duplicate profile key %q", domainerrors.ErrMalformedRequest, normalized)
		}
		trimmed := strings.TrimSpace(value)
		if len(trimmed) > maxProfileValueBytes {
			return UpdateProfileResult{}, fmt.Errorf("%w: value for %q exceeds %d bytes",
				domainerrors.ErrMalformedRequest, normalized, maxProfileValueBytes)
		}
		records[normalized] = trimmed
		keys = append(keys, normalized)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+records[key])
	}

	intent := entities.Intent{
		Actor:       actor,
		Operation:   entities.OpUpdateProfile,
		PayloadHash: services.PayloadHash(strings.Join(lines, "\n")),
		Timestamp:   cmd.Timestamp,
		Nonce:       cmd.Nonce,
		Signature:   cmd.Signature,
	}
	if err := u.Verifier.Verify(ctx, u.Catalog, intent); err != nil {
		logger.Warn("update profile rejected",
			"event", "update_profile_rejected",
			"module", "relay-core/relay-service",
			"layer", "application",
			"actor", actor,
			"error", err.Error(),
		)
		return UpdateProfileResult{}, err
	}

	changedKeys := make([]string, 0, len(keys))
	changedValues := make([]string, 0, len(keys))
	for _, key := range keys {
		current, err := u.Catalog.ProfileText(ctx, actor, key)
		if err != nil {
			return UpdateProfileResult{}, fmt.Errorf("read profile record %q: %w", key, err)
		}
		if current != records[key] {
			changedKeys = append(changedKeys, key)
			changedValues = append(changedValues, records[key])
		}
	}

	var consume, write ports.Call
	if len(changedKeys) > 0 {
		if consume, err = u.Codec.ConsumeNonce(actor, parseNonce(intent.Nonce)); err != nil {
			return UpdateProfileResult{}, fmt.Errorf("pack consume nonce: %w", err)
		}
		if write, err = u.Codec.SetProfileRecords(actor, changedKeys, changedValues); err != nil {
			return UpdateProfileResult{}, fmt.Errorf("pack profile records: %w", err)
		}
	}

	entry, err := u.Recorder.Begin(ctx, entities.OpUpdateProfile, actor, services.IntentDigest(intent))
	if err != nil {
		return UpdateProfileResult{}, err
	}

	logger.Info("update profile started",
		"event", "update_profile_started",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", entry.JobID,
		"actor", actor,
		"submitted", len(keys),
		"changed", len(changedKeys),
	)

	if len(changedKeys) == 0 {
		outcome := services.Aggregate(nil, nil)
		entry = u.Recorder.Finish(ctx, entry, outcome, nil)
		return UpdateProfileResult{JobID: entry.JobID, UpdatedKeys: nil, Outcome: outcome}, nil
	}

	steps := u.Engine.RunJobs(ctx, entities.LedgerCatalog, []application.Job{
		{Label: entities.StepConsumeNonce, Call: consume},
		{Label: entities.StepSetProfile, Call: write},
	})
	outcome := services.Aggregate(steps, nil)
	entry = u.Recorder.Finish(ctx, entry, outcome, nil)

	logger.Info("update profile finished",
		"event", "update_profile_finished",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", entry.JobID,
		"actor", actor,
		"changed", len(changedKeys),
		"status", outcome.Status,
	)

	updated := changedKeys
	if !outcome.Succeeded() {
		updated = nil
	}
	return UpdateProfileResult{
		JobID:       entry.JobID,
		UpdatedKeys: updated,
		TxHash:      outcome.TxHashOf(entities.StepSetProfile),
		Outcome:     outcome,
	}, nil
}
