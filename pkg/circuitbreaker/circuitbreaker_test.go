package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             20 * time.Millisecond,
		MaxRequestsHalfOpen: 2,
	}
}

var errBoom = errors.New("boom")

func TestOpensAfterFailureThreshold(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errBoom }); err == nil {
			t.Fatal("Execute() = nil, want underlying error")
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	// Open circuit rejects without calling fn.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if err == nil {
		t.Fatal("Execute() = nil on open circuit, want rejection")
	}
	if called {
		t.Fatal("fn was called while circuit open")
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errBoom })
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(25 * time.Millisecond)

	// Probes succeed: circuit closes again.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d failed: %v", i+1, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after recovery", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errBoom })
	}
	time.Sleep(25 * time.Millisecond)

	cb.Execute(func() error { return errBoom })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after half-open failure", cb.State())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(testConfig())

	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return errBoom })

	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed (failures interleaved with success)", cb.State())
	}
}

func TestReset(t *testing.T) {
	cb := New(testConfig())
	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errBoom })
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v after Reset, want closed", cb.State())
	}
}
