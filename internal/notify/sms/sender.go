// Package sms provides SMS notification delivery through an HTTP gateway.
package sms

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
	"golang.org/x/time/rate"
)

// Config holds SMS sender configuration.
type Config struct {
	Enabled    bool
	GatewayURL string
	APIKey     string
	SenderID   string
	// RateLimit is messages per second allowed against the gateway.
	RateLimit float64
}

// Sender delivers SMS notifications through a gateway, rate limited so an
// emergency broadcast doesn't trip the provider's throttling.
type Sender struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewSender creates a new SMS sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled {
		if config.GatewayURL == "" {
			return nil, errors.New("sms sender: gateway URL is required when enabled")
		}
		if config.APIKey == "" {
			return nil, errors.New("sms sender: API key is required when enabled")
		}
	}

	if config.RateLimit <= 0 {
		config.RateLimit = 10
	}

	slog.Info("sms sender configured",
		"enabled", config.Enabled,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config:  config,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

// Type returns the channel type.
func (s *Sender) Type() notify.ChannelType {
	return notify.ChannelSMS
}

// Send delivers the message to each recipient individually.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if !s.config.Enabled {
		slog.Debug("sms sender disabled, skipping send",
			"recipient_count", len(msg.Recipients),
		)
		return nil
	}

	var lastErr error
	for _, to := range msg.Recipients {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		if err := s.sendOne(ctx, to, msg.Subject+" "+msg.Body); err != nil {
			slog.Error("sms send failed", "to", to, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func (s *Sender) sendOne(ctx context.Context, to, text string) error {
	payload, err := json.Marshal(map[string]string{
		"to":   to,
		"from": s.config.SenderID,
		"text": text,
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
