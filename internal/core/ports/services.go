package ports

import (
	"context"
	"time"

	"livegate/internal/core/domain"
)

// IssueRequest carries one credential issuance attempt. RateKey is the
// quota key chosen by the orchestration layer: the caller's network
// address for anonymous traffic, the identity where authenticated.
type IssueRequest struct {
	Channel  string
	Identity domain.Identity
	Role     domain.Role
	Duration time.Duration // zero means the default validity window
	RateKey  string
}

type TokenService interface {
	IssueCredential(ctx context.Context, req IssueRequest) (*domain.Credential, error)
	TestConfiguration(ctx context.Context) bool
	ConfigInfo() ConfigInfo
}

// ConfigInfo describes credential configuration without exposing secrets.
type ConfigInfo struct {
	AppID            string `json:"app_id"`
	HasCertificate   bool   `json:"has_certificate"`
	DefaultTTLSecs   int64  `json:"default_ttl_seconds"`
	EphemeralTTLSecs int64  `json:"ephemeral_ttl_seconds"`
	Valid            bool   `json:"is_config_valid"`
}

type ViewerService interface {
	Join(ctx context.Context, liveID domain.LiveID)
	Leave(ctx context.Context, liveID domain.LiveID)
	Count(ctx context.Context, liveID domain.LiveID) int64
	// Reset clears the count for a session, used when a live ends.
	Reset(ctx context.Context, liveID domain.LiveID)
	// StartDriftSweep launches a background reconciliation loop that runs
	// until ctx is cancelled.
	StartDriftSweep(ctx context.Context, interval time.Duration)
}

type CreateLiveInput struct {
	Title       string
	Description string
	Category    string
	Tags        []string
	IsPrivate   bool
	MaxViewers  int
}

type LiveService interface {
	CreateLive(ctx context.Context, host domain.Identity, input CreateLiveInput, rateKey string) (*domain.LiveSession, *domain.Credential, error)
	GetLive(ctx context.Context, liveID domain.LiveID) (*domain.LiveSession, error)
	ListLives(ctx context.Context, limit, offset int) ([]*domain.LiveSession, error)
	EndLive(ctx context.Context, liveID domain.LiveID, caller domain.Identity) (*domain.LiveSession, error)
	JoinLive(ctx context.Context, liveID domain.LiveID, viewer domain.Identity, rateKey string) (*domain.LiveSession, *domain.Credential, error)
	LeaveLive(ctx context.Context, liveID domain.LiveID, viewer domain.Identity) error
	PostMessage(ctx context.Context, liveID domain.LiveID, sender domain.Identity, msgType domain.MessageType, content string) (*domain.ChatMessage, error)
	ListMessages(ctx context.Context, liveID domain.LiveID, limit int) ([]*domain.ChatMessage, error)
}

// MetricsRecorder lets core services report counters without depending on
// the monitoring infrastructure.
type MetricsRecorder interface {
	CredentialIssued(role domain.Role)
	RateLimitRejected(policy string)
	ViewerCount(liveID domain.LiveID, count int64)
	MessagePosted()
	LiveStarted()
	LiveEnded()
	// LiveMetricsCleared drops per-live series once a session ends so
	// label cardinality stays bounded by active sessions.
	LiveMetricsCleared(liveID domain.LiveID)
}
