package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"livegate/internal/infrastructure/repositories/memory"
)

func TestHealthChecker_AllHealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("a", func(ctx context.Context) (bool, error) { return true, nil }, time.Minute, time.Second)
	h.AddCheck("b", func(ctx context.Context) (bool, error) { return true, nil }, time.Minute, time.Second)

	status := h.CheckAll(context.Background())
	if status.Status != "healthy" {
		t.Fatalf("status = %q, want healthy", status.Status)
	}
	if status.Checks["a"] != "healthy" || status.Checks["b"] != "healthy" {
		t.Fatalf("checks = %v", status.Checks)
	}
}

func TestHealthChecker_FailureReported(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("ok", func(ctx context.Context) (bool, error) { return true, nil }, time.Minute, time.Second)
	h.AddCheck("down", func(ctx context.Context) (bool, error) { return false, errors.New("connection refused") }, time.Minute, time.Second)

	status := h.CheckAll(context.Background())
	if status.Status != "unhealthy" {
		t.Fatalf("status = %q, want unhealthy", status.Status)
	}
	if status.Checks["down"] != "connection refused" {
		t.Fatalf("down check = %q", status.Checks["down"])
	}
	if status.Checks["ok"] != "healthy" {
		t.Fatalf("ok check = %q", status.Checks["ok"])
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	h := NewHealthChecker()
	// Redis is optional; with no client the repository alone decides.
	h.AddReadinessCheck(nil, memory.NewMemoryLiveRepository(), time.Minute, time.Second)

	status := h.GetReadinessStatus(context.Background())
	if status.Status != "healthy" {
		t.Fatalf("status = %q, want healthy", status.Status)
	}
	if status.Checks["readiness"] != "healthy" {
		t.Fatalf("readiness check = %q", status.Checks["readiness"])
	}
}

func TestHealthChecker_FalseWithoutError(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("flaky", func(ctx context.Context) (bool, error) { return false, nil }, time.Minute, time.Second)

	status := h.CheckAll(context.Background())
	if status.Checks["flaky"] != "check failed" {
		t.Fatalf("flaky check = %q", status.Checks["flaky"])
	}
}
