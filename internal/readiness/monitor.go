// Package readiness runs the background self-check loop that feeds the
// public status query. It reads collaborator health but never touches
// incident state.
package readiness

import (
	"context"
	"sync"
	"time"

	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
)

// Probe is a named health check for one collaborator subsystem.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// ProbeResult is the outcome of the most recent run of a probe.
type ProbeResult struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Snapshot is a point-in-time view of all probe results.
type Snapshot struct {
	Results   map[string]ProbeResult `json:"results"`
	CheckedAt time.Time              `json:"checked_at"`
}

// Healthy reports the state of a named probe. Unknown probes report
// unhealthy so a misconfigured name fails closed.
func (s Snapshot) Healthy(name string) bool {
	r, ok := s.Results[name]
	return ok && r.Healthy
}

// Monitor periodically runs a set of probes and caches the results.
type Monitor struct {
	probes   []Probe
	interval time.Duration
	timeout  time.Duration

	mu   sync.RWMutex
	snap Snapshot
}

// NewMonitor creates a monitor. Interval defaults to one minute and the
// per-probe timeout to five seconds.
func NewMonitor(probes []Probe, interval, timeout time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		probes:   probes,
		interval: interval,
		timeout:  timeout,
		snap:     Snapshot{Results: make(map[string]ProbeResult)},
	}
}

// Run checks all probes immediately and then on every interval tick until
// the context is cancelled. Blocking; run it in its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("readiness monitor started", "interval", m.interval, "probes", len(m.probes))

	m.checkAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("readiness monitor stopped")
			return
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

// Snapshot returns a copy of the latest probe results.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Snapshot{
		Results:   make(map[string]ProbeResult, len(m.snap.Results)),
		CheckedAt: m.snap.CheckedAt,
	}
	for name, r := range m.snap.Results {
		out.Results[name] = r
	}
	return out
}

func (m *Monitor) checkAll(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	now := time.Now().UTC()
	results := make(map[string]ProbeResult, len(m.probes))

	for _, p := range m.probes {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := p.Check(probeCtx)
		cancel()

		r := ProbeResult{Healthy: err == nil, CheckedAt: now}
		if err != nil {
			r.Error = err.Error()
			logger.Warn("readiness probe failed", "probe", p.Name, "error", err)
		}
		results[p.Name] = r
		recordProbe(p.Name, r.Healthy)
	}

	m.mu.Lock()
	m.snap = Snapshot{Results: results, CheckedAt: now}
	m.mu.Unlock()
}
