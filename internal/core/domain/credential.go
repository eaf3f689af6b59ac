package domain

import "time"

// Credential is the signed, time-bound artifact that authorizes one actor
// to act in one role on one channel. It is never persisted by the gateway;
// the consuming media platform verifies it.
type Credential struct {
	Token     string    `json:"token"`
	AppID     string    `json:"app_id"`
	Channel   string    `json:"channel"`
	ActorID   ActorID   `json:"actor_id"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Validity lifetimes for issued credentials.
const (
	DefaultCredentialTTL   = 24 * time.Hour
	EphemeralCredentialTTL = time.Hour
)
