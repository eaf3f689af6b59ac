package utils

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	if !strings.HasPrefix(id1, "req_") {
		t.Errorf("GenerateRequestID() = %q, want req_ prefix", id1)
	}
	if id1 == id2 {
		t.Errorf("two request IDs are equal: %q", id1)
	}
}

func TestGenerateMessageID(t *testing.T) {
	if id := GenerateMessageID(); !strings.HasPrefix(id, "msg_") {
		t.Errorf("GenerateMessageID() = %q, want msg_ prefix", id)
	}
}

func TestTimeUntilExpiry(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	if got := TimeUntilExpiry(past, time.Hour); got != 0 {
		t.Errorf("TimeUntilExpiry() = %v for expired timestamp, want 0", got)
	}

	fresh := time.Now()
	if got := TimeUntilExpiry(fresh, time.Hour); got <= 0 || got > time.Hour {
		t.Errorf("TimeUntilExpiry() = %v, want within (0, 1h]", got)
	}
}
