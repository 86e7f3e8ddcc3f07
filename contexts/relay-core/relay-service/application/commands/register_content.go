package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	application "baton/contexts/relay-core/relay-service/application"
	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/domain/services"
	"baton/contexts/relay-core/relay-service/ports"
)

// defaultSealingAlgo is the sealed-piece hash algorithm recorded on the access
// ledger when the client does not name one.
const defaultSealingAlgo uint8 = 1

type RegisterContentCommand struct {
	Actor      string
	Descriptor entities.Descriptor
	PieceRef   string
	Algo       uint8
	Cover      *ports.MediaCheck
	Timestamp  int64
	Nonce      string
	Signature  []byte
}

type RegisterContentResult struct {
	JobID        string
	TrackID      string
	AccessTxHash string
	MirrorTxHash string
	CoverRef     string
	PendingStep  string
	Outcome      entities.Outcome
}

type RegisterContentUseCase struct {
	Verifier  application.Verifier
	Recorder  application.OutcomeRecorder
	Registrar application.Registrar
	Engine    *application.Engine

	Access      ports.LedgerReader
	AccessCodec ports.AccessCodec
	Catalog     ports.CatalogReader
	Codec       ports.CatalogCodec
	Screener    ports.ContentScreener
	Store       ports.ObjectStore

	Logger *slog.Logger
}

// Execute registers a sealed track across both ledgers. The access ledger is
// the gate: its leg (consume-nonce, register) must land first, and only then
// is the canonical id mirrored into the catalog. A mirror failure after a
// committed access leg is journaled as partial so the reconciler can replay
// leg two; the access receipt is never rolled back.
//
// Cover art is auxiliary. It is screened up front but uploaded and pinned only
// after both legs succeed, and any trouble there downgrades to a warning.
func (u RegisterContentUseCase) Execute(ctx context.Context, cmd RegisterContentCommand) (RegisterContentResult, error) {
	logger := application.ResolveLogger(u.Logger)

	actor, err := validateActor(cmd.Actor)
	if err != nil {
		return RegisterContentResult{}, err
	}

	entry, err := entryFor(cmd.Descriptor)
	if err != nil {
		return RegisterContentResult{}, err
	}
	trackID := entry.Identity

	pieceRef, err := services.ParsePieceRef(cmd.PieceRef)
	if err != nil {
		return RegisterContentResult{}, err
	}
	algo := cmd.Algo
	if algo == 0 {
		algo = defaultSealingAlgo
	}

	coverDigest := absentField
	if cmd.Cover != nil {
		coverDigest = services.DigestHex(cmd.Cover.Data)
	}
	payload := strings.Join([]string{
		trackID.Hex(),
		pieceRef,
		strconv.Itoa(int(algo)),
		coverDigest,
	}, "\n")

	intent := entities.Intent{
		Actor:       actor,
		Operation:   entities.OpRegisterContent,
		PayloadHash: services.PayloadHash(payload),
		Timestamp:   cmd.Timestamp,
		Nonce:       cmd.Nonce,
		Signature:   cmd.Signature,
	}
	// Content registrations consume the actor's counter on the access ledger,
	// where the gating write lands.
	if err := u.Verifier.Verify(ctx, u.Access, intent); err != nil {
		logger.Warn("register content rejected",
			"event", "register_content_rejected",
			"module", "relay-core/relay-service",
			"layer", "application",
			"actor", actor,
			"error", err.Error(),
		)
		return RegisterContentResult{}, err
	}

	if cmd.Cover != nil {
		if _, err := u.Screener.Screen(ctx, cmd.Cover, ""); err != nil {
			return RegisterContentResult{}, err
		}
	}

	consume, err := u.AccessCodec.ConsumeNonce(actor, parseNonce(intent.Nonce))
	if err != nil {
		return RegisterContentResult{}, fmt.Errorf("pack consume nonce: %w", err)
	}
	register, err := u.AccessCodec.RegisterContent(actor, trackID.ID, pieceRef, algo)
	if err != nil {
		return RegisterContentResult{}, fmt.Errorf("pack access registration: %w", err)
	}

	missing, err := u.Registrar.MissingEntries(ctx, []entities.RegistrationEntry{entry})
	if err != nil {
		return RegisterContentResult{}, fmt.Errorf("probe catalog registration: %w", err)
	}
	var mirrorJobs []application.Job
	if len(missing) > 0 {
		job, err := u.Registrar.RegisterJob(entities.StepMirrorCatalog, missing)
		if err != nil {
			return RegisterContentResult{}, err
		}
		mirrorJobs = append(mirrorJobs, *job)
	}

	journalEntry, err := u.Recorder.Begin(ctx, entities.OpRegisterContent, actor, services.IntentDigest(intent))
	if err != nil {
		return RegisterContentResult{}, err
	}

	logger.Info("register content started",
		"event", "register_content_started",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", journalEntry.JobID,
		"actor", actor,
		"track_id", trackID.Hex(),
		"mirror_needed", len(missing) > 0,
	)

	steps := u.Engine.SubmitSequenced(ctx, []application.SequencedLeg{
		{Ledger: entities.LedgerAccess, Jobs: []application.Job{
			{Label: entities.StepConsumeNonce, Call: consume},
			{Label: entities.StepRegisterAccess, Call: register},
		}},
		{Ledger: entities.LedgerCatalog, Jobs: mirrorJobs},
	})
	if len(missing) == 0 && legCommitted(steps, entities.StepRegisterAccess) {
		// The catalog already knows this id, so the mirror leg is complete
		// without a transaction.
		steps = append(steps, entities.StepResult{Name: entities.StepMirrorCatalog, Ledger: entities.LedgerCatalog})
	}

	var warnings []string
	coverRef := ""
	if interim := services.Aggregate(steps, nil); interim.Succeeded() && cmd.Cover != nil {
		var coverSteps []entities.StepResult
		coverRef, coverSteps, warnings = u.pinCover(ctx, trackID, cmd.Cover)
		steps = append(steps, coverSteps...)
	}

	outcome := services.Aggregate(steps, warnings)

	var mirrors []entities.MirrorEntry
	if outcome.Status == entities.OutcomePartial && outcome.PendingStep == entities.StepMirrorCatalog {
		mirrors = []entities.MirrorEntry{entry.ToMirrorEntry()}
	}
	journalEntry = u.Recorder.Finish(ctx, journalEntry, outcome, mirrors)

	logger.Info("register content finished",
		"event", "register_content_finished",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", journalEntry.JobID,
		"actor", actor,
		"track_id", trackID.Hex(),
		"status", outcome.Status,
		"warnings", len(warnings),
	)

	return RegisterContentResult{
		JobID:        journalEntry.JobID,
		TrackID:      trackID.Hex(),
		AccessTxHash: outcome.TxHashOf(entities.StepRegisterAccess),
		MirrorTxHash: outcome.TxHashOf(entities.StepMirrorCatalog),
		CoverRef:     coverRef,
		PendingStep:  outcome.PendingStep,
		Outcome:      outcome,
	}, nil
}

// pinCover uploads cover art and sets it on the catalog entry unless one is
// already pinned. Failures come back as warnings only; a confirmed set-cover
// step is returned so it lands in the outcome.
func (u RegisterContentUseCase) pinCover(ctx context.Context, trackID entities.CanonicalID, cover *ports.MediaCheck) (string, []entities.StepResult, []string) {
	name := "cover-" + strings.TrimPrefix(trackID.Hex(), "0x")
	ref, err := u.Store.Put(ctx, cover.Data, cover.ContentType, name)
	if err != nil {
		return "", nil, []string{fmt.Sprintf("cover upload failed: %v", err)}
	}

	existing, err := u.Catalog.CoverOf(ctx, trackID.ID)
	if err != nil {
		return ref, nil, []string{fmt.Sprintf("cover lookup failed: %v", err)}
	}
	if existing != "" {
		return ref, nil, []string{fmt.Sprintf("cover already pinned to %s, left unchanged", existing)}
	}

	call, err := u.Codec.SetCover(trackID.ID, ref)
	if err != nil {
		return ref, nil, []string{fmt.Sprintf("pack set cover failed: %v", err)}
	}
	steps := u.Engine.RunJobs(ctx, entities.LedgerCatalog, []application.Job{
		{Label: entities.StepSetCover, Call: call},
	})
	if last := steps[len(steps)-1]; last.Err != nil {
		return ref, nil, []string{fmt.Sprintf("set cover failed: %v", last.Err)}
	}
	return ref, steps, nil
}

func legCommitted(steps []entities.StepResult, name string) bool {
	for _, step := range steps {
		if step.Name == name && step.Err == nil {
			return true
		}
	}
	return false
}
