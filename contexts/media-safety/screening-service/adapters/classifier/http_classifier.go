package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"baton/contexts/media-safety/screening-service/ports"
)

// HTTPClassifier calls the external moderation endpoint. The verdict source
// is opaque; this adapter only speaks its request/response wire shape.
type HTTPClassifier struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Logger  *slog.Logger
}

type classifyRequest struct {
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type classifyResponse struct {
	Safe   bool     `json:"safe"`
	Reason string   `json:"reason,omitempty"`
	Flags  []string `json:"flags,omitempty"`
}

func (c HTTPClassifier) Classify(ctx context.Context, media *ports.Media, text string) (ports.Verdict, error) {
	payload := classifyRequest{Text: text}
	if media != nil {
		payload.ImageBase64 = base64.StdEncoding.EncodeToString(media.Data)
		payload.ContentType = media.ContentType
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ports.Verdict{}, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return ports.Verdict{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return ports.Verdict{}, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ports.Verdict{}, fmt.Errorf("classify request: status %d: %s", resp.StatusCode, snippet)
	}

	var decoded classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.Verdict{}, fmt.Errorf("decode classify response: %w", err)
	}

	return ports.Verdict{Safe: decoded.Safe, Reason: decoded.Reason, Flags: decoded.Flags}, nil
}
