package utils

import (
	"time"
)

// TimeUntilExpiry returns the remaining validity of something issued at
// issuedAt with the given ttl, clamped at zero.
func TimeUntilExpiry(issuedAt time.Time, ttl time.Duration) time.Duration {
	remaining := time.Until(issuedAt.Add(ttl))
	if remaining < 0 {
		return 0
	}
	return remaining
}
