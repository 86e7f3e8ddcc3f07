package httpadapter

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	application "baton/contexts/relay-core/relay-service/application"
	"baton/contexts/relay-core/relay-service/application/commands"
	"baton/contexts/relay-core/relay-service/application/queries"
	"baton/contexts/relay-core/relay-service/domain/entities"
	domainerrors "baton/contexts/relay-core/relay-service/domain/errors"
	"baton/contexts/relay-core/relay-service/ports"
	httptransport "baton/contexts/relay-core/relay-service/transport/http"
)

type Handler struct {
	RegisterName    commands.RegisterNameUseCase
	UpdateProfile   commands.UpdateProfileUseCase
	RegisterContent commands.RegisterContentUseCase
	SubmitPlaylist  commands.SubmitPlaylistUseCase
	CreatePost      commands.CreatePostUseCase
	JobStatus       queries.JobStatusUseCase
	Logger          *slog.Logger
}

// RegisterNameHandler godoc
// @Summary Relay a name registration
// @Description Verifies the signed intent and claims the name on the catalog ledger, relayer-paid.
// @Tags relay
// @Accept json
// @Produce json
// @Param request body httptransport.RegisterNameRequest true "Signed name.register intent"
// @Success 200 {object} httptransport.RegisterNameResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /relay/names [post]
func (h Handler) RegisterNameHandler(ctx context.Context, req httptransport.RegisterNameRequest) (httptransport.RegisterNameResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("register name request received",
		"event", "http_register_name_received",
		"module", "relay-core/relay-service",
		"layer", "transport",
		"actor", req.UserAddress,
	)

	signature, err := parseSignature(req.Signature)
	if err != nil {
		return httptransport.RegisterNameResponse{}, err
	}

	result, err := h.RegisterName.Execute(ctx, commands.RegisterNameCommand{
		Actor:     req.UserAddress,
		Name:      req.Name,
		Timestamp: req.Timestamp,
		Nonce:     req.Nonce,
		Signature: signature,
	})
	if err != nil {
		logger.Error("register name request failed",
			"event", "http_register_name_failed",
			"module", "relay-core/relay-service",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.RegisterNameResponse{}, err
	}

	return httptransport.RegisterNameResponse{
		Success:  result.Outcome.Succeeded(),
		JobID:    result.JobID,
		Name:     result.Name,
		TxHash:   result.TxHash,
		Error:    result.Outcome.Error,
		Warnings: result.Outcome.Warnings,
	}, nil
}

// UpdateProfileHandler godoc
// @Summary Relay a profile update
// @Description Writes only the profile keys whose values differ from the ledger; zero changes succeed without a transaction.
// @Tags relay
// @Accept json
// @Produce json
// @Param request body httptransport.UpdateProfileRequest true "Signed profile.update intent"
// @Success 200 {object} httptransport.UpdateProfileResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /relay/profiles [post]
func (h Handler) UpdateProfileHandler(ctx context.Context, req httptransport.UpdateProfileRequest) (httptransport.UpdateProfileResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("update profile request received",
		"event", "http_update_profile_received",
		"module", "relay-core/relay-service",
		"layer", "transport",
		"actor", req.UserAddress,
	)

	signature, err := parseSignature(req.Signature)
	if err != nil {
		return httptransport.UpdateProfileResponse{}, err
	}

	result, err := h.UpdateProfile.Execute(ctx, commands.UpdateProfileCommand{
		Actor:     req.UserAddress,
		Records:   req.Records,
		Timestamp: req.Timestamp,
		Nonce:     req.Nonce,
		Signature: signature,
	})
	if err != nil {
		logger.Error("update profile request failed",
			"event", "http_update_profile_failed",
			"module", "relay-core/relay-service",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.UpdateProfileResponse{}, err
	}

	return httptransport.UpdateProfileResponse{
		Success:      result.Outcome.Succeeded(),
		JobID:        result.JobID,
		UpdatedCount: len(result.UpdatedKeys),
		UpdatedKeys:  result.UpdatedKeys,
		TxHash:       result.TxHash,
		Error:        result.Outcome.Error,
		Warnings:     result.Outcome.Warnings,
	}, nil
}

// RegisterContentHandler godoc
// @Summary Relay a sealed content registration
// @Description Registers the track on the access ledger, then mirrors its canonical id into the catalog. A partial mirror is journaled for reconciliation.
// @Tags relay
// @Accept json
// @Produce json
// @Param request body httptransport.RegisterContentRequest true "Signed content.register intent"
// @Success 200 {object} httptransport.RegisterContentResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /relay/contents [post]
func (h Handler) RegisterContentHandler(ctx context.Context, req httptransport.RegisterContentRequest) (httptransport.RegisterContentResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("register content request received",
		"event", "http_register_content_received",
		"module", "relay-core/relay-service",
		"layer", "transport",
		"actor", req.UserAddress,
	)

	signature, err := parseSignature(req.Signature)
	if err != nil {
		return httptransport.RegisterContentResponse{}, err
	}
	descriptor, err := mapDescriptor(req.Descriptor)
	if err != nil {
		return httptransport.RegisterContentResponse{}, err
	}
	cover, err := mapMedia(req.Cover, "cover")
	if err != nil {
		return httptransport.RegisterContentResponse{}, err
	}

	result, err := h.RegisterContent.Execute(ctx, commands.RegisterContentCommand{
		Actor:      req.UserAddress,
		Descriptor: descriptor,
		PieceRef:   req.PieceCID,
		Algo:       req.Algo,
		Cover:      cover,
		Timestamp:  req.Timestamp,
		Nonce:      req.Nonce,
		Signature:  signature,
	})
	if err != nil {
		logger.Error("register content request failed",
			"event", "http_register_content_failed",
			"module", "relay-core/relay-service",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.RegisterContentResponse{}, err
	}

	return httptransport.RegisterContentResponse{
		Success:      result.Outcome.Succeeded(),
		JobID:        result.JobID,
		TrackID:      result.TrackID,
		AccessTxHash: result.AccessTxHash,
		MirrorTxHash: result.MirrorTxHash,
		CoverRef:     result.CoverRef,
		PendingStep:  result.PendingStep,
		Error:        result.Outcome.Error,
		Warnings:     result.Outcome.Warnings,
	}, nil
}

// SubmitPlaylistHandler godoc
// @Summary Relay a playlist submission
// @Description Registers any unknown tracks, then submits the playlist with its full track list in one catalog session.
// @Tags relay
// @Accept json
// @Produce json
// @Param request body httptransport.SubmitPlaylistRequest true "Signed playlist.submit intent"
// @Success 200 {object} httptransport.SubmitPlaylistResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /relay/playlists [post]
func (h Handler) SubmitPlaylistHandler(ctx context.Context, req httptransport.SubmitPlaylistRequest) (httptransport.SubmitPlaylistResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("submit playlist request received",
		"event", "http_submit_playlist_received",
		"module", "relay-core/relay-service",
		"layer", "transport",
		"actor", req.UserAddress,
		"tracks", len(req.Tracks),
	)

	signature, err := parseSignature(req.Signature)
	if err != nil {
		return httptransport.SubmitPlaylistResponse{}, err
	}
	playlist, err := mapDescriptor(req.Playlist)
	if err != nil {
		return httptransport.SubmitPlaylistResponse{}, err
	}
	tracks := make([]entities.Descriptor, 0, len(req.Tracks))
	for _, dto := range req.Tracks {
		track, err := mapDescriptor(dto)
		if err != nil {
			return httptransport.SubmitPlaylistResponse{}, err
		}
		tracks = append(tracks, track)
	}
	cover, err := mapMedia(req.Cover, "cover")
	if err != nil {
		return httptransport.SubmitPlaylistResponse{}, err
	}

	result, err := h.SubmitPlaylist.Execute(ctx, commands.SubmitPlaylistCommand{
		Actor:     req.UserAddress,
		Playlist:  playlist,
		Tracks:    tracks,
		Cover:     cover,
		Timestamp: req.Timestamp,
		Nonce:     req.Nonce,
		Signature: signature,
	})
	if err != nil {
		logger.Error("submit playlist request failed",
			"event", "http_submit_playlist_failed",
			"module", "relay-core/relay-service",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.SubmitPlaylistResponse{}, err
	}

	return httptransport.SubmitPlaylistResponse{
		Success:         result.Outcome.Succeeded(),
		JobID:           result.JobID,
		PlaylistID:      result.PlaylistID,
		RegisteredCount: result.RegisteredCount,
		TxHash:          result.TxHash,
		CoverRef:        result.CoverRef,
		Error:           result.Outcome.Error,
		Warnings:        result.Outcome.Warnings,
	}, nil
}

// CreatePostHandler godoc
// @Summary Relay a post publication
// @Description Screens text and media, pins the post document to object storage and publishes its reference on the catalog ledger.
// @Tags relay
// @Accept json
// @Produce json
// @Param request body httptransport.CreatePostRequest true "Signed post.create intent"
// @Success 200 {object} httptransport.CreatePostResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /relay/posts [post]
func (h Handler) CreatePostHandler(ctx context.Context, req httptransport.CreatePostRequest) (httptransport.CreatePostResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("create post request received",
		"event", "http_create_post_received",
		"module", "relay-core/relay-service",
		"layer", "transport",
		"actor", req.UserAddress,
	)

	signature, err := parseSignature(req.Signature)
	if err != nil {
		return httptransport.CreatePostResponse{}, err
	}
	media, err := mapMedia(req.Media, "media")
	if err != nil {
		return httptransport.CreatePostResponse{}, err
	}
	var track *entities.Descriptor
	if req.Track != nil {
		mapped, err := mapDescriptor(*req.Track)
		if err != nil {
			return httptransport.CreatePostResponse{}, err
		}
		track = &mapped
	}

	result, err := h.CreatePost.Execute(ctx, commands.CreatePostCommand{
		Actor:     req.UserAddress,
		Text:      req.Text,
		Media:     media,
		Track:     track,
		Timestamp: req.Timestamp,
		Nonce:     req.Nonce,
		Signature: signature,
	})
	if err != nil {
		logger.Error("create post request failed",
			"event", "http_create_post_failed",
			"module", "relay-core/relay-service",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.CreatePostResponse{}, err
	}

	return httptransport.CreatePostResponse{
		Success:  result.Outcome.Succeeded(),
		JobID:    result.JobID,
		PostRef:  result.PostRef,
		TrackID:  result.TrackID,
		TxHash:   result.TxHash,
		Error:    result.Outcome.Error,
		Warnings: result.Outcome.Warnings,
	}, nil
}

// JobStatusHandler godoc
// @Summary Poll a relay job
// @Description Returns the journal row for a job id, including receipts and any pending reconciliation step.
// @Tags relay
// @Produce json
// @Param job_id path string true "Job id"
// @Success 200 {object} httptransport.JobStatusResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /relay/jobs/{job_id} [get]
func (h Handler) JobStatusHandler(ctx context.Context, jobID string) (httptransport.JobStatusResponse, error) {
	result, err := h.JobStatus.Execute(ctx, queries.JobStatusQuery{JobID: jobID})
	if err != nil {
		return httptransport.JobStatusResponse{}, err
	}
	return mapJournalEntry(result.Entry), nil
}

func mapJournalEntry(entry entities.JournalEntry) httptransport.JobStatusResponse {
	steps := make([]httptransport.StepDTO, 0, len(entry.Outcome.Completed))
	for _, record := range entry.Outcome.Completed {
		steps = append(steps, httptransport.StepDTO{
			Name:        record.Name,
			Ledger:      string(record.Ledger),
			TxHash:      record.TxHash,
			BlockNumber: record.BlockNumber,
		})
	}
	return httptransport.JobStatusResponse{
		JobID:       entry.JobID,
		Operation:   entry.Operation,
		Actor:       entry.Actor,
		Status:      string(entry.Status),
		Completed:   steps,
		PendingStep: entry.Outcome.PendingStep,
		Error:       entry.Outcome.Error,
		Warnings:    entry.Outcome.Warnings,
		Attempts:    entry.Attempts,
		CreatedAt:   entry.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   entry.UpdatedAt.UTC().Format(timeLayout),
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func parseSignature(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid hex", domainerrors.ErrMalformedRequest)
	}
	return raw, nil
}

func mapMedia(dto *httptransport.MediaDTO, field string) (*ports.MediaCheck, error) {
	if dto == nil {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(dto.DataBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid base64", domainerrors.ErrMalformedRequest, field)
	}
	return &ports.MediaCheck{Data: data, ContentType: dto.ContentType}, nil
}

func mapDescriptor(dto httptransport.DescriptorDTO) (entities.Descriptor, error) {
	descriptor := entities.Descriptor{
		CatalogID:    dto.CatalogID,
		AssetAddress: dto.AssetAddress,
		Title:        dto.Title,
		Artist:       dto.Artist,
		Album:        dto.Album,
	}
	switch strings.ToLower(strings.TrimSpace(dto.Kind)) {
	case "external_catalog_id":
		descriptor.Kind = entities.KindExternalCatalog
	case "asset_address":
		descriptor.Kind = entities.KindAssetAddress
	case "freeform_metadata":
		descriptor.Kind = entities.KindFreeform
	default:
		return entities.Descriptor{}, fmt.Errorf("%w: unknown descriptor kind %q",
			domainerrors.ErrMalformedDescriptor, dto.Kind)
	}
	return descriptor, nil
}
