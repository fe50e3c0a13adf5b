package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicewidget/internal/domain"
	"voicewidget/internal/ports"
)

// misconfiguredMarker appears in the body the workflow engine returns for an
// endpoint that exists but is not armed.
const misconfiguredMarker = "not registered"

// msgGenericAck replaces a reply whose shape matches none of the known formats.
const msgGenericAck = "Vielen Dank, Ihre Nachricht wurde übermittelt."

// Config controls the primary dispatch endpoint.
type Config struct {
	URL        string
	HTTPClient *http.Client
}

// Client posts submission envelopes to the workflow webhook and extracts the
// assistant reply from heterogeneous response shapes.
type Client struct {
	cfg        Config
	http       *http.Client
	extractors []Extractor
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient, extractors: DefaultExtractors()}
}

// Dispatch posts the envelope and returns the extracted reply text. A non-2xx
// status, an empty or unparseable body, and the misconfiguration marker are
// each dispatch failures; an unknown-but-parseable reply shape is not.
func (c *Client) Dispatch(ctx context.Context, env ports.Envelope) (string, error) {
	if strings.TrimSpace(c.cfg.URL) == "" {
		return "", fmt.Errorf("%w: no endpoint configured", domain.ErrDispatch)
	}

	payload := map[string]any{
		"message":   env.Message,
		"email":     env.Email,
		"topic":     string(env.Topic),
		"timestamp": env.Timestamp.Format(time.RFC3339),
	}
	for k, v := range env.Extra {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode envelope: %v", domain.ErrDispatch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", domain.ErrDispatch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDispatch, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrDispatch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: endpoint returned %d", domain.ErrDispatch, resp.StatusCode)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", fmt.Errorf("%w: empty response body", domain.ErrDispatch)
	}
	if strings.Contains(string(raw), misconfiguredMarker) {
		return "", fmt.Errorf("%w: endpoint is not armed", domain.ErrDispatch)
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: unparseable response body: %v", domain.ErrDispatch, err)
	}

	if reply, ok := ExtractReply(parsed, c.extractors); ok {
		return reply, nil
	}
	return msgGenericAck, nil
}
