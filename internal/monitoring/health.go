// Package monitoring evaluates readiness of the registry and its satellite
// dependencies and tracks the outcome of scheduled maintenance jobs.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

const defaultProbeTimeout = 2 * time.Second

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Critical  bool          `json:"critical"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results.
type HealthReport struct {
	Success   bool          `json:"success"`
	Status    ProbeStatus   `json:"status"`
	Checks    []ProbeResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// ProbeFunc returns nil when the dependency is usable.
type ProbeFunc func(ctx context.Context) error

type check struct {
	name     string
	critical bool
	probe    ProbeFunc
}

// HealthManager runs the registered probes concurrently. A failing critical
// probe marks the service down; any other failure only degrades it, so a
// lost Redis or Kafka connection never takes the polling booth offline.
type HealthManager struct {
	mu      sync.RWMutex
	checks  []check
	timeout time.Duration
	now     func() time.Time
}

// NewHealthManager constructs an empty manager. timeout bounds every probe.
func NewHealthManager(timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HealthManager{timeout: timeout, now: time.Now}
}

// Register adds a probe. Empty names and nil probes are ignored.
func (m *HealthManager) Register(name string, critical bool, probe ProbeFunc) {
	if name == "" || probe == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, check{name: name, critical: critical, probe: probe})
}

// Evaluate executes every probe and folds the results into one report.
func (m *HealthManager) Evaluate(ctx context.Context) HealthReport {
	m.mu.RLock()
	checks := append([]check(nil), m.checks...)
	m.mu.RUnlock()

	results := make([]ProbeResult, len(checks))
	var wg sync.WaitGroup
	for i := range checks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.run(ctx, checks[i])
		}(i)
	}
	wg.Wait()

	report := HealthReport{
		Success:   true,
		Status:    StatusUp,
		Checks:    results,
		CheckedAt: m.now().UTC(),
	}
	for _, r := range results {
		switch {
		case r.Status == StatusUp:
		case r.Critical:
			report.Success = false
			report.Status = StatusDown
		case report.Status == StatusUp:
			report.Status = StatusDegraded
		}
	}
	return report
}

func (m *HealthManager) run(ctx context.Context, c check) (result ProbeResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	result = ProbeResult{Component: c.name, Critical: c.critical, Status: StatusUp}

	defer func() {
		if rec := recover(); rec != nil {
			result.Status = StatusDown
			result.Details = fmt.Sprintf("panic: %v", rec)
		}
		result.Duration = time.Since(start)
	}()

	if err := c.probe(probeCtx); err != nil {
		result.Status = StatusDown
		if errors.Is(err, context.DeadlineExceeded) {
			result.Status = StatusDegraded
		}
		result.Details = err.Error()
	}
	return result
}
