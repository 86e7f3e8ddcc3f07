package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	application "baton/contexts/relay-core/relay-service/application"
	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/domain/services"
	"baton/contexts/relay-core/relay-service/ports"
)

const maxPostTextRunes = 4000

type CreatePostCommand struct {
	Actor     string
	Text      string
	Media     *ports.MediaCheck
	Track     *entities.Descriptor
	Timestamp int64
	Nonce     string
	Signature []byte
}

type CreatePostResult struct {
	JobID   string
	PostRef string
	TrackID string
	TxHash  string
	Outcome entities.Outcome
}

type CreatePostUseCase struct {
	Verifier  application.Verifier
	Recorder  application.OutcomeRecorder
	Registrar application.Registrar
	Engine    *application.Engine
	Catalog   ports.CatalogReader
	Codec     ports.CatalogCodec
	Screener  ports.ContentScreener
	Transform ports.TransformHook
	Store     ports.ObjectStore
	Clock     ports.Clock
	Logger    *slog.Logger
}

// postDocument is the object-store payload a published post points at. The
// ledger only carries its identifier.
type postDocument struct {
	Actor          string    `json:"actor"`
	Text           string    `json:"text"`
	TranslatedText string    `json:"translated_text,omitempty"`
	MediaRef       string    `json:"media_ref,omitempty"`
	TrackID        string    `json:"track_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Execute publishes a post. Text and media go through screening before any
// paid work; classifier flags can ask the transform hook to enrich the text
// (best-effort, failure is a warning). Media and the post document are pinned
// to object storage first, then the ledger jobs run: register the referenced
// track if the catalog has never seen it, consume the nonce, publish.
func (u CreatePostUseCase) Execute(ctx context.Context, cmd CreatePostCommand) (CreatePostResult, error) {
	logger := application.ResolveLogger(u.Logger)

	actor, err := validateActor(cmd.Actor)
	if err != nil {
		return CreatePostResult{}, err
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" || utf8.RuneCountInString(text) > maxPostTextRunes {
		return CreatePostResult{}, fmt.Errorf("%w: post text must be 1-%d characters",
			domainerrors.ErrMalformedRequest, maxPostTextRunes)
	}

	trackID := ""
	var trackEntry *entities.RegistrationEntry
	if cmd.Track != nil {
		entry, err := entryFor(*cmd.Track)
		if err != nil {
			return CreatePostResult{}, err
		}
		trackEntry = &entry
		trackID = entry.Identity.Hex()
	}

	mediaDigest := absentField
	if cmd.Media != nil {
		mediaDigest = services.DigestHex(cmd.Media.Data)
	}
	trackField := absentField
	if trackID != "" {
		trackField = trackID
	}
	payload := strings.Join([]string{
		services.DigestHex([]byte(text)),
		mediaDigest,
		trackField,
	}, "\n")

	intent := entities.Intent{
		Actor:       actor,
		Operation:   entities.OpCreatePost,
		PayloadHash: services.PayloadHash(payload),
		Timestamp:   cmd.Timestamp,
		Nonce:       cmd.Nonce,
		Signature:   cmd.Signature,
	}
	if err := u.Verifier.Verify(ctx, u.Catalog, intent); err != nil {
		logger.Warn("create post rejected",
			"event", "create_post_rejected",
			"module", "relay-core/relay-service",
			"layer", "application",
			"actor", actor,
			"error", err.Error(),
		)
		return CreatePostResult{}, err
	}

	verdict, err := u.Screener.Screen(ctx, cmd.Media, text)
	if err != nil {
		return CreatePostResult{}, err
	}

	var warnings []string
	translated := ""
	for _, flag := range verdict.Flags {
		if u.Transform == nil {
			break
		}
		enriched, err := u.Transform.Apply(ctx, flag, text)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("transform %q failed: %v", flag, err))
			continue
		}
		if enriched != "" && enriched != text {
			translated = enriched
		}
	}

	mediaRef := ""
	if cmd.Media != nil {
		name := "post-media-" + mediaDigest[:16]
		ref, err := u.Store.Put(ctx, cmd.Media.Data, cmd.Media.ContentType, name)
		if err != nil {
			return CreatePostResult{}, fmt.Errorf("upload post media: %w", err)
		}
		mediaRef = ref
	}

	document := postDocument{
		Actor:          actor,
		Text:           text,
		TranslatedText: translated,
		MediaRef:       mediaRef,
		TrackID:        trackID,
		CreatedAt:      u.now(),
	}
	docBytes, err := json.Marshal(document)
	if err != nil {
		return CreatePostResult{}, fmt.Errorf("encode post document: %w", err)
	}
	postRef, err := u.Store.Put(ctx, docBytes, "application/json", "post-"+services.DigestHex(docBytes)[:16]+".json")
	if err != nil {
		return CreatePostResult{}, fmt.Errorf("upload post document: %w", err)
	}

	jobs := make([]application.Job, 0, 3)
	if trackEntry != nil {
		missing, err := u.Registrar.MissingEntries(ctx, []entities.RegistrationEntry{*trackEntry})
		if err != nil {
			return CreatePostResult{}, fmt.Errorf("probe catalog registration: %w", err)
		}
		if registerJob, err := u.Registrar.RegisterJob(entities.StepRegisterMissing, missing); err != nil {
			return CreatePostResult{}, err
		} else if registerJob != nil {
			jobs = append(jobs, *registerJob)
		}
	}
	consume, err := u.Codec.ConsumeNonce(actor, parseNonce(intent.Nonce))
	if err != nil {
		return CreatePostResult{}, fmt.Errorf("pack consume nonce: %w", err)
	}
	publish, err := u.Codec.PublishPost(actor, postRef)
	if err != nil {
		return CreatePostResult{}, fmt.Errorf("pack post publication: %w", err)
	}
	jobs = append(jobs,
		application.Job{Label: entities.StepConsumeNonce, Call: consume},
		application.Job{Label: entities.StepPublishPost, Call: publish},
	)

	entry, err := u.Recorder.Begin(ctx, entities.OpCreatePost, actor, services.IntentDigest(intent))
	if err != nil {
		return CreatePostResult{}, err
	}

	logger.Info("create post started",
		"event", "create_post_started",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", entry.JobID,
		"actor", actor,
		"post_ref", postRef,
		"track_id", trackID,
	)

	steps := u.Engine.RunJobs(ctx, entities.LedgerCatalog, jobs)
	outcome := services.Aggregate(steps, warnings)
	entry = u.Recorder.Finish(ctx, entry, outcome, nil)

	logger.Info("create post finished",
		"event", "create_post_finished",
		"module", "relay-core/relay-service",
		"layer", "application",
		"job_id", entry.JobID,
		"actor", actor,
		"status", outcome.Status,
	)

	return CreatePostResult{
		JobID:   entry.JobID,
		PostRef: postRef,
		TrackID: trackID,
		TxHash:  outcome.TxHashOf(entities.StepPublishPost),
		Outcome: outcome,
	}, nil
}

func (u CreatePostUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
