package services

import (
	"fmt"
	"testing"

	"livegate/internal/core/domain"
)

func TestDeriveActorID_Deterministic(t *testing.T) {
	identities := []domain.Identity{
		"user-7",
		"d9c1a1f0-6b55-4f7e-a2a7-0adbb6a0a8c1",
		"a",
		"some long identity string with spaces and symbols !@#",
	}

	for _, id := range identities {
		t.Run(string(id), func(t *testing.T) {
			first := DeriveActorID(id)
			for i := 0; i < 5; i++ {
				if got := DeriveActorID(id); got != first {
					t.Fatalf("DeriveActorID(%q) = %d on repeat, want %d", id, got, first)
				}
			}
		})
	}
}

func TestDeriveActorID_Range(t *testing.T) {
	// A few short strings plus generated ones that force accumulator
	// wraparound into negative territory.
	identities := []domain.Identity{"", "a", "zz", "user-7"}
	for i := 0; i < 1000; i++ {
		identities = append(identities, domain.Identity(fmt.Sprintf("identity-%d-%d", i, i*7919)))
	}

	for _, id := range identities {
		got := DeriveActorID(id)
		if got < 0 || int32(got) > domain.MaxActorID-1 {
			t.Fatalf("DeriveActorID(%q) = %d, want within [0, 2^31-2]", id, got)
		}
	}
}

func TestDeriveActorID_EmptyIsAnonymous(t *testing.T) {
	if got := DeriveActorID(""); got != 0 {
		t.Errorf("DeriveActorID(\"\") = %d, want 0", got)
	}
}

func TestDeriveActorID_KnownValues(t *testing.T) {
	// Values pinned so the mapping cannot silently change between
	// versions: clients depend on it for session continuity.
	tests := []struct {
		identity domain.Identity
		want     domain.ActorID
	}{
		{"", 0},
		{"a", 97},
		{"ab", 3105},    // 97*31 + 98
		{"abc", 96354},  // 3105*31 + 99
		{"user", 3599307},
		// Supplementary-plane input hashes per UTF-16 unit:
		// U+1F600 is the surrogate pair 0xD83D 0xDE00,
		// 0xD83D*31 + 0xDE00 = 1772899.
		{"\U0001F600", 1772899},
	}

	for _, tt := range tests {
		t.Run(string(tt.identity), func(t *testing.T) {
			if got := DeriveActorID(tt.identity); got != tt.want {
				t.Errorf("DeriveActorID(%q) = %d, want %d", tt.identity, got, tt.want)
			}
		})
	}
}

func TestDeriveActorID_DistinctInputsUsuallyDiffer(t *testing.T) {
	// Not injectivity (collisions are accepted), just a sanity check that
	// nearby identities do not map to one value.
	seen := make(map[domain.ActorID]domain.Identity)
	collisions := 0
	for i := 0; i < 200; i++ {
		id := domain.Identity(fmt.Sprintf("viewer-%d", i))
		actor := DeriveActorID(id)
		if _, ok := seen[actor]; ok {
			collisions++
		}
		seen[actor] = id
	}
	if collisions > 2 {
		t.Errorf("%d collisions across 200 nearby identities", collisions)
	}
}
