// Package occupancy provides occupancy data sources: an HTTP client for
// the badge/visitor system and a static source for environments without one.
package occupancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/havenpoint/facility-response/internal/domain"
)

// Config holds occupancy system client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client queries the badge and visitor management system.
type Client struct {
	config Config
	client *http.Client
}

// NewClient creates an occupancy system client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("occupancy system base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// CountPersonsInAreas returns the number of persons currently badged into
// the given areas.
func (c *Client) CountPersonsInAreas(ctx context.Context, areas []string) (int, error) {
	q := url.Values{}
	for _, a := range areas {
		q.Add("area", a)
	}

	var out struct {
		Count int `json:"count"`
	}
	if err := c.get(ctx, "/api/v1/occupancy/count?"+q.Encode(), &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// CurrentPersonsOnSite returns the facility-wide occupancy snapshot.
func (c *Client) CurrentPersonsOnSite(ctx context.Context) (domain.OccupancySnapshot, error) {
	var snap domain.OccupancySnapshot
	if err := c.get(ctx, "/api/v1/occupancy", &snap); err != nil {
		return domain.OccupancySnapshot{}, err
	}
	return snap, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call occupancy system: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("occupancy system returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode occupancy response: %w", err)
	}
	return nil
}

// Static reports a fixed occupancy. Used in development and tests.
type Static struct {
	Count int
}

func (s Static) CountPersonsInAreas(_ context.Context, _ []string) (int, error) {
	return s.Count, nil
}

func (s Static) CurrentPersonsOnSite(_ context.Context) (domain.OccupancySnapshot, error) {
	return domain.OccupancySnapshot{Residents: s.Count}, nil
}
