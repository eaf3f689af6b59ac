package monitoring

import (
	"context"
	"sync"
	"time"
)

// probe is one named dependency check with its own schedule and budget.
type probe struct {
	name     string
	run      func(ctx context.Context) (bool, error)
	interval time.Duration
	timeout  time.Duration
}

// HealthChecker aggregates dependency probes into one health verdict.
// Probes run on demand through CheckAll and, optionally, on their own
// schedule to keep dependency state warm.
type HealthChecker struct {
	mu     sync.RWMutex
	probes []probe
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) (bool, error), interval, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, probe{
		name:     name,
		run:      check,
		interval: interval,
		timeout:  timeout,
	})
}

// CheckAll runs every probe and reports "healthy" only when all pass. A
// probe's failure reason lands in the per-check map so operators see which
// dependency is down without grepping logs.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	probes := make([]probe, len(h.probes))
	copy(probes, h.probes)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(probes)),
	}

	for _, p := range probes {
		status.Checks[p.name] = h.runProbe(ctx, p)
		if status.Checks[p.name] != "healthy" {
			status.Status = "unhealthy"
		}
	}
	return status
}

func (h *HealthChecker) runProbe(ctx context.Context, p probe) string {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ok, err := p.run(probeCtx)
	switch {
	case err != nil:
		return err.Error()
	case !ok:
		return "check failed"
	default:
		return "healthy"
	}
}

// StartBackgroundChecks keeps each probe running on its interval until ctx
// is cancelled. Results are not recorded; the runs exist to surface
// dependency failures in logs and keep connections alive.
func (h *HealthChecker) StartBackgroundChecks(ctx context.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, p := range h.probes {
		go func(p probe) {
			ticker := time.NewTicker(p.interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					h.runProbe(ctx, p)
				}
			}
		}(p)
	}
}
