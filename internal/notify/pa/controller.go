package pa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ControllerConfig holds amplifier controller client configuration.
type ControllerConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPController drives the amplifier over its HTTP control interface.
type HTTPController struct {
	config ControllerConfig
	client *http.Client
}

// NewHTTPController creates an amplifier controller client.
func NewHTTPController(cfg ControllerConfig) *HTTPController {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPController{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Announce plays a text-to-speech announcement over the speaker zones.
func (c *HTTPController) Announce(ctx context.Context, zonesAll bool, text string) error {
	payload, err := json.Marshal(map[string]any{
		"all_zones": zonesAll,
		"text":      text,
	})
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/v1/announce", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create announcement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call amplifier controller: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("amplifier controller returned status %d", resp.StatusCode)
	}
	return nil
}
