package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/services"
	httphandlers "livegate/internal/handlers/http"
	"livegate/internal/infrastructure/chat"
	"livegate/internal/infrastructure/middleware"
	"livegate/internal/infrastructure/monitoring"
	repositories "livegate/internal/infrastructure/repositories"
	"livegate/pkg/config"
	"livegate/pkg/logger"
	"livegate/pkg/ratelimit"
	"livegate/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/livegate/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded. Defaults carry
		// no credential secrets, so Validate below still gates startup.
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	contextLogger := logger.NewContextLogger(zapLogger)

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	// Initialize tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.Tracing.Enabled {
		tracerProvider, err = tracing.Init(tracing.Config{
			Enabled:     true,
			ServiceName: "livegate",
			JaegerURL:   cfg.Tracing.JaegerURL,
			Environment: cfg.Tracing.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			log.Fatalw("failed to initialize tracing", "error", err)
		}
		log.Info("tracing enabled")
	}

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	liveRepo := repoFactory.CreateLiveRepository()
	messageRepo := repoFactory.CreateMessageRepository()
	viewerCounter := repoFactory.CreateViewerCounter()
	rateLimiter := repoFactory.CreateRateLimiter()

	// Initialize monitoring
	prometheusCollector := monitoring.NewPrometheusCollector()

	// Initialize services
	tokenService := services.NewTokenService(
		cfg.RTC.AppID,
		cfg.RTC.AppCertificate,
		cfg.RTC.TokenTTL,
		cfg.RTC.EphemeralTTL,
		rateLimiter,
		prometheusCollector,
		log,
	)
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	viewerService := services.NewViewerService(viewerCounter, liveRepo, prometheusCollector, log)
	liveService := services.NewLiveService(
		liveRepo,
		messageRepo,
		tokenService,
		viewerService,
		rateLimiter,
		prometheusCollector,
		log,
	)

	// Background reconciliation of persisted viewer counts. Stopped with
	// everything else on shutdown.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()
	viewerService.StartDriftSweep(appCtx, time.Minute)

	// Initialize chat gateway
	gateway := chat.NewGateway(
		liveService,
		authService,
		cfg.Auth.AllowedOrigins,
		cfg.Chat.MaxMessageSizeBytes,
		prometheusCollector,
		log,
	)

	// Cross-instance chat fan-out when Redis backs the deployment.
	if client := repoFactory.RedisClient(); client != nil {
		relay := chat.NewRelay(client, log)
		gateway.SetRelay(relay)
		relay.Start(appCtx)
		log.Info("chat relay enabled")
	}

	// Health checks
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCredentialCheck(tokenService, 30*time.Second, 5*time.Second)
	healthChecker.AddRepositoryCheck(liveRepo, 30*time.Second, 5*time.Second)
	if client := repoFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 15*time.Second, 3*time.Second)
	}
	healthChecker.StartBackgroundChecks(appCtx)

	// Readiness is checked on demand, not in the background: a load
	// balancer poll should see the dependency state at poll time.
	readinessChecker := monitoring.NewHealthChecker()
	readinessChecker.AddReadinessCheck(repoFactory.RedisClient(), liveRepo, 15*time.Second, 2*time.Second)

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL)
	tokenHandler := httphandlers.NewTokenHandler(tokenService)
	liveHandler := httphandlers.NewLiveHandler(liveService, gateway)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLoggingMiddleware(contextLogger))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.NewFloodGuardMiddleware(cfg))
	router.Use(middleware.NewPolicyRateLimitMiddleware(rateLimiter, ratelimit.PolicyGeneral, prometheusCollector, log))

	optionalAuth := middleware.OptionalAuthMiddleware(authService)
	requiredAuth := middleware.AuthMiddleware(authService)

	authHandler.SetupRoutes(router, middleware.NewPolicyRateLimitMiddleware(rateLimiter, ratelimit.PolicyAuth, prometheusCollector, log))
	tokenHandler.SetupRoutes(router, optionalAuth, requiredAuth)
	liveHandler.SetupRoutes(router, optionalAuth, requiredAuth)

	// Websocket chat endpoint. Upgrade happens outside gin's middleware
	// lifecycle so the gateway handles its own auth and errors.
	router.GET("/ws/chat", gin.WrapF(gateway.HandleWebSocket))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status.Status,
			"checks":    status.Checks,
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Readiness endpoint for load balancers
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := readinessChecker.GetReadinessStatus(ctx)
		if status.Status != "healthy" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not_ready",
				"timestamp": time.Now(),
				"checks":    status.Checks,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting LiveGate server on %s (app %s, default ttl %s)",
			cfg.Server.Address, cfg.RTC.AppID, domain.DefaultCredentialTTL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down LiveGate server...")
	appCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error shutting down tracer", "error", err)
		}
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("LiveGate server stopped")
}
