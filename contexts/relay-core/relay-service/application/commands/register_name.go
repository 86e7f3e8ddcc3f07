package commands

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	application "baton/contexts/relay-core/relay-service/application"
	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/domain/services"
	"baton/contexts/relay-core/relay-service/ports"
)

var namePattern = regexp.MustCompile(`^[a-z0-9-]{3,32}$`)

type RegisterNameCommand struct {
	Actor     string
	Name      string
	Timestamp int64
	Nonce     string
	Signature []byte
}

type RegisterNameResult struct {
	JobID   string
	Name    string
	TxHash  string
	Outcome entities.Outcome
}

type RegisterNameUseCase struct {
	Verifier application.Verifier
	Recorder application.OutcomeRecorder
	Engine   *application.Engine
	Catalog  ports.CatalogReader
	Codec    ports.CatalogCodec
	Logger   *slog.Logger
}

// Execute runs the name claim workflow in this order:
// 1) shape validation and intent verification against the catalog counter
// 2) availability probe, so taken names cost nothing
// 3) journal insert (intent dedupe)
// 4) consume-nonce and claim transactions on the catalog ledger.
func (u RegisterNameUseCase) Execute(ctx context.Context, cmd RegisterNameCommand) (RegisterNameResult, error) {
	logger := application.ResolveLogger(u.Logger)

	actor, err := validateActor(cmd.Actor)
	if err != nil {
		return RegisterNameResult{}, err
	}
	label := strings.ToLower(strings.TrimSpace(cmd.Name))
	if !namePattern.MatchString(label) {
		return RegisterNameResult{}, fmt.Errorf("%w: name must be 3-32 characters of [a-z0-9-]",
			domainerrors.ErrMalformedRequest)
	}

	intent := entities.Intent{
		Actor:       actor,
		Operation:   entities.OpRegisterName,
		PayloadHash: services.PayloadHash(label),
		Timestamp:   cmd.Timestamp,
		Nonce:       cmd.Nonce,
		Signature:   cmd.Signature,
	}
	if err := u.Verifier.Verify(ctx, u.Catalog, intent); err != nil {
		logger.Warn("register name rejected",
			"event", "register_name_rejected",
			"module", "relay-core/relay-service",
			"layer", "application",
			"actor", actor,
			"error", err.Error(),
		)
		return RegisterNameResult{}, err
	}

	available, err := u.Catalog.NameAvailable(ctx, label)
	if err != nil {
		return RegisterNameResult{}, fmt.Errorf("probe name availability: %w", err)
	}
	if !available {
		return RegisterNameResult{}, fmt.Errorf("%w: %q", domainerrors.ErrNameUnavailable, label)
	}

	consume, err := u.Codec.ConsumeNonce(actor, parseNonce(intent.Nonce))
	if err != nil {
		return RegisterNameResult{}, fmt.Errorf("pack consume nonce: %w", err)
	}
	claim, err := u.Codec.ClaimName(actor, label)
	if err != nil {
		return RegisterNameResult{}, fmt.Errorf("pack claim name: %w", err)
	}

	entry, err := u.Recorder.Begin(ctx, entities.OpRegisterName, actor, services.IntentDigest(intent))
	if err != nil {
		return RegisterNameResult{}, err
	}

	logger.Info("register name started",
		"event", "register_name_started",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", entry.JobID,
		"actor", actor,
		"name", label,
	)

	steps := u.Engine.RunJobs(ctx, entities.LedgerCatalog, []application.Job{
		{Label: entities.StepConsumeNonce, Call: consume},
		{Label: entities.StepClaimName, Call: claim},
	})
	outcome := services.Aggregate(steps, nil)
	entry = u.Recorder.Finish(ctx, entry, outcome, nil)

	logger.Info("register name finished",
		"event", "register_name_finished",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", entry.JobID,
		"actor", actor,
		"name", label,
		"status", outcome.Status,
	)

	return RegisterNameResult{
		JobID:   entry.JobID,
		Name:    label,
		TxHash:  outcome.TxHashOf(entities.StepClaimName),
		Outcome: outcome,
	}, nil
}
