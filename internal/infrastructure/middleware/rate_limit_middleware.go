package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"livegate/internal/core/ports"
	"livegate/pkg/config"
	"livegate/pkg/errors"
	"livegate/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterStore stores per-key (for example, per IP) rate limiters.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  make(map[string]*rate.Limiter),
		rate:      r,
		burstSize: burst,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(s.rate, s.burstSize)
		s.limiters[key] = limiter
	}
	return limiter
}

// clientIP extracts the IP part from the request's remote address.
func clientIP(r *http.Request) string {
	// Try X-Forwarded-For first (behind proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := net.ParseIP(xff)
		if parts != nil {
			return parts.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewFloodGuardMiddleware returns Gin middleware applying the per-IP flood
// guard. This is a fast token-bucket check in front of the whole API; the
// per-policy quotas run behind it and carry the real semantics.
func NewFloodGuardMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rps := cfg.RateLimiting.Flood.RequestsPerSecond
	burst := cfg.RateLimiting.Flood.Burst

	store := newRateLimiterStore(rate.Limit(rps), burst)

	var globalSem chan struct{}
	if cfg.RateLimiting.Flood.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.RateLimiting.Flood.MaxConcurrent)
	}

	return func(c *gin.Context) {
		// Global concurrent requests throttling
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error": "too many concurrent requests",
				})
				return
			}
		}

		ip := clientIP(c.Request)
		limiter := store.getLimiter(ip)
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// NewPolicyRateLimitMiddleware spends one point of the named policy's quota
// per request. The quota key is the caller's identity when authenticated,
// their network address otherwise. A limiter outage fails open: quota
// enforcement degrades rather than taking every endpoint down with it.
func NewPolicyRateLimitMiddleware(
	consumer ratelimit.Consumer,
	policy string,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) gin.HandlerFunc {
	if consumer == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		key := string(CallerIdentity(c))
		if key == "" {
			key = clientIP(c.Request)
		}

		res, err := consumer.Consume(c.Request.Context(), policy, key)
		if err != nil {
			logger.Warnw("rate limiter unavailable, failing open",
				"policy", policy,
				"error", err,
			)
			c.Next()
			return
		}

		if !res.Allowed {
			if metrics != nil {
				metrics.RateLimitRejected(policy)
			}
			c.Header("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               string(errors.ErrCodeRateLimit),
				"message":             "too many requests",
				"retry_after_seconds": int(res.RetryAfter.Seconds()),
			})
			return
		}

		c.Next()
	}
}

// RateKey returns the quota key the policy middleware would use for this
// request, so handlers pass the same key into service-level checks.
func RateKey(c *gin.Context) string {
	if identity := CallerIdentity(c); identity != "" {
		return string(identity)
	}
	return clientIP(c.Request)
}
