package services

import (
	"context"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/pkg/errors"
	"livegate/pkg/ratelimit"
	"livegate/pkg/tracing"
	"livegate/pkg/validation"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// rtcClaims is the signed credential payload. Tampering with any field
// invalidates the HMAC signature.
type rtcClaims struct {
	AppID   string         `json:"app_id"`
	Channel string         `json:"channel"`
	ActorID domain.ActorID `json:"actor_id"`
	Role    domain.Role    `json:"role"`
	jwt.RegisteredClaims
}

type tokenService struct {
	appID        string
	secret       []byte
	defaultTTL   time.Duration
	ephemeralTTL time.Duration

	limiter ratelimit.Consumer
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger

	now func() time.Time
}

// NewTokenService builds the credential issuance service. metrics may be
// nil when no collector is wired.
func NewTokenService(
	appID, secret string,
	defaultTTL, ephemeralTTL time.Duration,
	limiter ratelimit.Consumer,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.TokenService {
	return &tokenService{
		appID:        appID,
		secret:       []byte(secret),
		defaultTTL:   defaultTTL,
		ephemeralTTL: ephemeralTTL,
		limiter:      limiter,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// IssueCredential validates the request, spends issuance quota, derives the
// actor id and signs the credential. Rate limiting runs before any signing
// work so exhausted callers fail fast.
func (s *tokenService) IssueCredential(ctx context.Context, req ports.IssueRequest) (*domain.Credential, error) {
	ctx, span := tracing.TraceCredentialIssue(ctx, req.Channel, string(req.Role))
	defer span.End()

	if err := s.checkConfigured(); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	if violations := validation.Check(
		validation.Field("channel", func() error { return validation.ValidateChannel(req.Channel) }),
		validation.Field("identity", func() error { return validation.ValidateIdentity(string(req.Identity)) }),
	); len(violations) > 0 {
		err := errors.NewInvalidInputError(violations.Error())
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if req.Role != domain.RolePublisher && req.Role != domain.RoleSubscriber {
		return nil, errors.NewInvalidInputError("role must be publisher or subscriber")
	}

	if s.limiter != nil && req.RateKey != "" {
		res, err := s.limiter.Consume(ctx, ratelimit.PolicyIssuance, req.RateKey)
		if err != nil {
			s.logger.Errorw("rate limiter unavailable", "error", err)
			return nil, errors.WrapError(err, errors.ErrCodeInternal, "rate limiter unavailable", 500)
		}
		if !res.Allowed {
			if s.metrics != nil {
				s.metrics.RateLimitRejected(ratelimit.PolicyIssuance)
			}
			return nil, errors.NewRateLimitError(res.RetryAfter)
		}
	}

	actorID := DeriveActorID(req.Identity)

	cred, err := s.build(req.Channel, actorID, req.Role, req.Duration)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	tracing.AddSpanAttributes(ctx, tracing.ActorIDKey.Int64(int64(actorID)))
	if s.metrics != nil {
		s.metrics.CredentialIssued(req.Role)
	}
	s.logger.Debugw("credential issued",
		"channel", cred.Channel,
		"actor_id", cred.ActorID,
		"role", cred.Role,
		"expires_at", cred.ExpiresAt,
	)
	return cred, nil
}

// build signs a credential for (channel, actorID, role) valid for ttl.
// Zero ttl means the default validity window.
func (s *tokenService) build(channel string, actorID domain.ActorID, role domain.Role, ttl time.Duration) (*domain.Credential, error) {
	if err := s.checkConfigured(); err != nil {
		return nil, err
	}
	if err := validation.ValidateChannel(channel); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if actorID < 0 {
		return nil, errors.NewInvalidInputError("actor id must not be negative")
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(ttl)

	claims := &rtcClaims{
		AppID:   s.appID,
		Channel: channel,
		ActorID: actorID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "failed to sign credential", 500)
	}

	return &domain.Credential{
		Token:     token,
		AppID:     s.appID,
		Channel:   channel,
		ActorID:   actorID,
		Role:      role,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *tokenService) checkConfigured() error {
	if s.appID == "" {
		return errors.NewConfigurationError("rtc app id is not configured")
	}
	if len(s.secret) == 0 {
		return errors.NewConfigurationError("rtc app certificate is not configured")
	}
	return nil
}

// TestConfiguration builds a throwaway credential against a fixed test
// channel and actor and reports whether it succeeded, without exposing
// secret material.
func (s *tokenService) TestConfiguration(ctx context.Context) bool {
	cred, err := s.build("config-test", 1, domain.RoleSubscriber, s.ephemeralTTL)
	if err != nil {
		s.logger.Warnw("credential configuration test failed", "error", err)
		return false
	}
	return len(cred.Token) > 50
}

// ConfigInfo reports credential configuration without the secret.
func (s *tokenService) ConfigInfo() ports.ConfigInfo {
	return ports.ConfigInfo{
		AppID:            s.appID,
		HasCertificate:   len(s.secret) > 0,
		DefaultTTLSecs:   int64(s.defaultTTL.Seconds()),
		EphemeralTTLSecs: int64(s.ephemeralTTL.Seconds()),
		Valid:            s.TestConfiguration(context.Background()),
	}
}
