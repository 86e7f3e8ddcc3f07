package httpadapter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"baton/contexts/media-safety/screening-service/application"
	domainerrors "baton/contexts/media-safety/screening-service/domain/errors"
	"baton/contexts/media-safety/screening-service/ports"
	httptransport "baton/contexts/media-safety/screening-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// CheckHandler runs one standalone screening check. A rejection is reported
// in the response body, not as an error; only malformed or oversized input
// surfaces as an error.
func (h Handler) CheckHandler(ctx context.Context, req httptransport.CheckRequest) (httptransport.CheckResponse, error) {
	input := application.ScreenInput{Text: strings.TrimSpace(req.Text)}

	if req.MediaBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.MediaBase64)
		if err != nil {
			return httptransport.CheckResponse{}, fmt.Errorf("%w: media is not valid base64", domainerrors.ErrInvalidMedia)
		}
		input.Media = &ports.Media{Data: data, ContentType: req.ContentType}
	}

	verdict, err := h.Service.Screen(ctx, input)
	if errors.Is(err, domainerrors.ErrContentRejected) {
		return httptransport.CheckResponse{Safe: false, Reason: verdict.Reason}, nil
	}
	if err != nil {
		return httptransport.CheckResponse{}, err
	}
	return httptransport.CheckResponse{Safe: true, Flags: verdict.Flags}, nil
}
