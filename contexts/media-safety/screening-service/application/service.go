package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	domainerrors "baton/contexts/media-safety/screening-service/domain/errors"
	"baton/contexts/media-safety/screening-service/ports"
)

// DefaultMaxMediaBytes caps screened payloads when no limit is configured.
const DefaultMaxMediaBytes = 10 << 20

var defaultAllowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

type Service struct {
	Classifier    ports.Classifier
	MaxMediaBytes int64
	AllowedTypes  []string
	Logger        *slog.Logger
}

// ScreenInput carries the content of one screening request. Media and text
// are both optional but not simultaneously absent.
type ScreenInput struct {
	Media *ports.Media
	Text  string
}

// Screen validates the media envelope, then defers to the classifier. Size
// and type violations fail before any classifier spend; an unsafe verdict
// surfaces as ErrContentRejected carrying the reason.
func (s Service) Screen(ctx context.Context, input ScreenInput) (ports.Verdict, error) {
	logger := ResolveLogger(s.Logger)

	if input.Media == nil && strings.TrimSpace(input.Text) == "" {
		return ports.Verdict{}, domainerrors.ErrEmptyScreeningRequest
	}

	if input.Media != nil {
		if err := s.validateMedia(*input.Media); err != nil {
			return ports.Verdict{}, err
		}
	}

	if s.Classifier == nil {
		return ports.Verdict{}, domainerrors.ErrScreeningUnavailable
	}

	verdict, err := s.Classifier.Classify(ctx, input.Media, input.Text)
	if err != nil {
		logger.Error("classifier call failed",
			"event", "screening_classifier_failed",
			"module", "media-safety/screening-service",
			"layer", "application",
			"error", err.Error(),
		)
		return ports.Verdict{}, fmt.Errorf("%w: %v", domainerrors.ErrScreeningUnavailable, err)
	}

	if !verdict.Safe {
		logger.Info("content rejected",
			"event", "screening_content_rejected",
			"module", "media-safety/screening-service",
			"layer", "application",
			"reason", verdict.Reason,
		)
		return verdict, fmt.Errorf("%w: %s", domainerrors.ErrContentRejected, verdict.Reason)
	}

	return verdict, nil
}

func (s Service) validateMedia(media ports.Media) error {
	maxBytes := s.MaxMediaBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMediaBytes
	}
	if len(media.Data) == 0 {
		return fmt.Errorf("%w: empty payload", domainerrors.ErrInvalidMedia)
	}
	if int64(len(media.Data)) > maxBytes {
		return fmt.Errorf("%w: payload exceeds %d bytes", domainerrors.ErrInvalidMedia, maxBytes)
	}

	allowed := s.AllowedTypes
	if len(allowed) == 0 {
		allowed = defaultAllowedTypes
	}
	contentType := strings.ToLower(strings.TrimSpace(media.ContentType))
	for _, candidate := range allowed {
		if contentType == candidate {
			return nil
		}
	}
	return fmt.Errorf("%w: content type %q not allowed", domainerrors.ErrInvalidMedia, media.ContentType)
}
