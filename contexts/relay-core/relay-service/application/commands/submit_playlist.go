package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "baton/contexts/relay-core/relay-service/application"
	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/domain/services"
	"baton/contexts/relay-core/relay-service/ports"
)

const maxPlaylistTracks = 200

type SubmitPlaylistCommand struct {
	Actor     string
	Playlist  entities.Descriptor
	Tracks    []entities.Descriptor
	Cover     *ports.MediaCheck
	Timestamp int64
	Nonce     string
	Signature []byte
}

type SubmitPlaylistResult struct {
	JobID           string
	PlaylistID      string
	RegisteredCount int
	TxHash          string
	CoverRef        string
	Outcome         entities.Outcome
}

type SubmitPlaylistUseCase struct {
	Verifier  application.Verifier
	Recorder  application.OutcomeRecorder
	Registrar application.Registrar
	Engine    *application.Engine
	Catalog   ports.CatalogReader
	Codec     ports.CatalogCodec
	Screener  ports.ContentScreener
	Store     ports.ObjectStore
	Logger    *slog.Logger
}

// Execute submits a playlist with its full track list in one catalog session:
// any tracks the catalog has never seen are registered first, then the nonce
// is consumed and the playlist lands, all on consecutive sequence numbers.
// Cover art is uploaded before broadcast so its identifier rides in the
// calldata; if the upload fails the playlist still submits without it.
func (u SubmitPlaylistUseCase) Execute(ctx context.Context, cmd SubmitPlaylistCommand) (SubmitPlaylistResult, error) {
	logger := application.ResolveLogger(u.Logger)

	actor, err := validateActor(cmd.Actor)
	if err != nil {
		return SubmitPlaylistResult{}, err
	}
	if len(cmd.Tracks) == 0 || len(cmd.Tracks) > maxPlaylistTracks {
		return SubmitPlaylistResult{}, fmt.Errorf("%w: playlists carry 1-%d tracks",
			domainerrors.ErrMalformedRequest, maxPlaylistTracks)
	}

	playlistID, err := services.DeriveID(cmd.Playlist)
	if err != nil {
		return SubmitPlaylistResult{}, err
	}

	entries := make([]entities.RegistrationEntry, 0, len(cmd.Tracks))
	trackIDs := make([][32]byte, 0, len(cmd.Tracks))
	lines := make([]string, 0, len(cmd.Tracks)+1)
	lines = append(lines, playlistID.Hex())
	for _, track := range cmd.Tracks {
		entry, err := entryFor(track)
		if err != nil {
			return SubmitPlaylistResult{}, err
		}
		entries = append(entries, entry)
		trackIDs = append(trackIDs, entry.Identity.ID)
		lines = append(lines, entry.Identity.Hex())
	}

	intent := entities.Intent{
		Actor:       actor,
		Operation:   entities.OpSubmitPlaylist,
		PayloadHash: services.PayloadHash(strings.Join(lines, "\n")),
		Timestamp:   cmd.Timestamp,
		Nonce:       cmd.Nonce,
		Signature:   cmd.Signature,
	}
	if err := u.Verifier.Verify(ctx, u.Catalog, intent); err != nil {
		logger.Warn("submit playlist rejected",
			"event", "submit_playlist_rejected",
			"module", "relay-core/relay-service",
			"layer", "application",
			"actor", actor,
			"error", err.Error(),
		)
		return SubmitPlaylistResult{}, err
	}

	if cmd.Cover != nil {
		if _, err := u.Screener.Screen(ctx, cmd.Cover, ""); err != nil {
			return SubmitPlaylistResult{}, err
		}
	}

	var warnings []string
	coverRef := ""
	if cmd.Cover != nil {
		name := "playlist-cover-" + strings.TrimPrefix(playlistID.Hex(), "0x")
		ref, err := u.Store.Put(ctx, cmd.Cover.Data, cmd.Cover.ContentType, name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("cover upload failed, playlist submitted without cover: %v", err))
		} else {
			coverRef = ref
		}
	}

	missing, err := u.Registrar.MissingEntries(ctx, entries)
	if err != nil {
		return SubmitPlaylistResult{}, fmt.Errorf("probe catalog registration: %w", err)
	}

	jobs := make([]application.Job, 0, 3)
	if registerJob, err := u.Registrar.RegisterJob(entities.StepRegisterMissing, missing); err != nil {
		return SubmitPlaylistResult{}, err
	} else if registerJob != nil {
		jobs = append(jobs, *registerJob)
	}
	consume, err := u.Codec.ConsumeNonce(actor, parseNonce(intent.Nonce))
	if err != nil {
		return SubmitPlaylistResult{}, fmt.Errorf("pack consume nonce: %w", err)
	}
	submit, err := u.Codec.SubmitPlaylist(actor, playlistID.ID, trackIDs, coverRef)
	if err != nil {
		return SubmitPlaylistResult{}, fmt.Errorf("pack playlist submission: %w", err)
	}
	jobs = append(jobs,
		application.Job{Label: entities.StepConsumeNonce, Call: consume},
		application.Job{Label: entities.StepSubmitPlaylist, Call: submit},
	)

	entry, err := u.Recorder.Begin(ctx, entities.OpSubmitPlaylist, actor, services.IntentDigest(intent))
	if err != nil {
		return SubmitPlaylistResult{}, err
	}

	logger.Info("submit playlist started",
		"event", "submit_playlist_started",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", entry.JobID,
		"actor", actor,
		"playlist_id", playlistID.Hex(),
		"tracks", len(cmd.Tracks),
		"missing", len(missing),
	)

	steps := u.Engine.RunJobs(ctx, entities.LedgerCatalog, jobs)
	outcome := services.Aggregate(steps, warnings)
	entry = u.Recorder.Finish(ctx, entry, outcome, nil)

	logger.Info("submit playlist finished",
		"event", "submit_playlist_finished",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", entry.JobID,
		"actor", actor,
		"playlist_id", playlistID.Hex(),
		"status", outcome.Status,
	)

	registered := len(missing)
	if !legCommitted(steps, entities.StepRegisterMissing) {
		registered = 0
	}
	return SubmitPlaylistResult{
		JobID:           entry.JobID,
		PlaylistID:      playlistID.Hex(),
		RegisteredCount: registered,
		TxHash:          outcome.TxHashOf(entities.StepSubmitPlaylist),
		CoverRef:        coverRef,
		Outcome:         outcome,
	}, nil
}
