// Package actuator provides implementations of the building security
// actuator: an HTTP client for the security gateway and a logging stub for
// environments without one.
package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/havenpoint/facility-response/internal/domain"
)

// Config holds security gateway client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client drives the building security gateway over HTTP.
type Client struct {
	config Config
	client *http.Client
}

// NewClient creates a security gateway client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("security gateway base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Lockdown issues the facility-wide lockdown command.
func (c *Client) Lockdown(ctx context.Context, level domain.LockdownLevel, areas []string, duration time.Duration, exceptions []string, reason string) error {
	return c.post(ctx, "/api/v1/lockdown", map[string]any{
		"level":            string(level),
		"areas":            areas,
		"duration_minutes": int(duration.Minutes()),
		"exceptions":       exceptions,
		"reason":           reason,
	})
}

// LockArea locks one area.
func (c *Client) LockArea(ctx context.Context, area string) error {
	return c.post(ctx, "/api/v1/areas/lock", map[string]any{"area": area})
}

// UnlockArea unlocks one area.
func (c *Client) UnlockArea(ctx context.Context, area string) error {
	return c.post(ctx, "/api/v1/areas/unlock", map[string]any{"area": area})
}

// ActivateAlarms sounds evacuation alarms in the given zones.
func (c *Client) ActivateAlarms(ctx context.Context, zones []string) error {
	return c.post(ctx, "/api/v1/alarms/activate", map[string]any{"zones": zones})
}

// UnlockExits releases emergency exits along the given routes.
func (c *Client) UnlockExits(ctx context.Context, routes []string) error {
	return c.post(ctx, "/api/v1/exits/unlock", map[string]any{"routes": routes})
}

// ActivateLighting switches on emergency lighting in the given zones.
func (c *Client) ActivateLighting(ctx context.Context, zones []string) error {
	return c.post(ctx, "/api/v1/lighting/activate", map[string]any{"zones": zones})
}

// SuspendVisitorAccess suspends all active visitor access.
func (c *Client) SuspendVisitorAccess(ctx context.Context) error {
	return c.post(ctx, "/api/v1/visitors/suspend", nil)
}

// RestoreVisitorAccess restores visitor access.
func (c *Client) RestoreVisitorAccess(ctx context.Context) error {
	return c.post(ctx, "/api/v1/visitors/restore", nil)
}

// RestoreNormalOperation returns security systems to normal mode.
func (c *Client) RestoreNormalOperation(ctx context.Context) error {
	return c.post(ctx, "/api/v1/restore", nil)
}

// Ping verifies the gateway is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/v1/ping", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping security gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("security gateway ping returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call security gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("security gateway returned status %d for %s", resp.StatusCode, path)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}
