// Package push provides mobile push notification delivery.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/havenpoint/facility-response/internal/notify"
)

// Config holds push sender configuration.
type Config struct {
	Enabled    bool
	GatewayURL string
	APIKey     string
}

// Sender delivers push notifications through the facility's mobile push
// gateway.
type Sender struct {
	config Config
	client *http.Client
}

// NewSender creates a new push sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.GatewayURL == "" {
			return nil, errors.New("push sender: gateway URL is required when enabled")
		}
	}

	slog.Info("push sender configured", "enabled", config.Enabled)

	return &Sender{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() notify.ChannelType {
	return notify.ChannelPush
}

// Send delivers one push broadcast covering all recipients.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if !s.config.Enabled {
		slog.Debug("push sender disabled, skipping send",
			"recipient_count", len(msg.Recipients),
		)
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"title":      msg.Subject,
		"body":       msg.Body,
		"priority":   string(msg.Priority),
		"recipients": msg.Recipients,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return nil
}
