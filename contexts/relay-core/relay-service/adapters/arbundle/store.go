package arbundle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"baton/contexts/relay-core/relay-service/ports"
)

// Store uploads opaque payloads to a token-scoped bundler gateway and wraps
// the returned dataitem id as a permanent ar:// identifier. Uploads here are
// always auxiliary (covers, post documents); callers treat failures as
// warnings, so this adapter never retries on its own.
type Store struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Logger  *slog.Logger
}

// uploadResponse tolerates the id key variants different gateway versions
// answer with.
type uploadResponse struct {
	ID          string `json:"id"`
	DataitemID  string `json:"dataitem_id"`
	DataitemID2 string `json:"dataitemId"`
	Error       string `json:"error"`
}

func (s Store) Put(ctx context.Context, data []byte, contentType string, name string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("bundle upload: empty payload")
	}

	endpoint := fmt.Sprintf("%s/v1/tx/%s", strings.TrimRight(s.BaseURL, "/"), strings.TrimSpace(s.Token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build bundle upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("bundle upload request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read bundle upload response: %w", err)
	}

	var decoded uploadResponse
	if len(body) > 0 {
		// Non-JSON bodies only matter on the error path below.
		_ = json.Unmarshal(body, &decoded)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		message := decoded.Error
		if message == "" {
			message = strings.TrimSpace(string(body[:min(len(body), 256)]))
		}
		return "", fmt.Errorf("bundle upload: status %d: %s", resp.StatusCode, message)
	}

	id := firstNonEmpty(decoded.ID, decoded.DataitemID, decoded.DataitemID2)
	if id == "" {
		return "", fmt.Errorf("bundle upload: no dataitem id in response")
	}

	if s.Logger != nil {
		s.Logger.Info("bundle upload stored",
			"event", "relay_bundle_upload_stored",
			"module", "relay-core/relay-service",
			"layer", "adapter",
			"name", name,
			"content_type", contentType,
			"bytes", len(data),
			"id", id,
		)
	}
	return "ar://" + id, nil
}

var _ ports.ObjectStore = Store{}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
