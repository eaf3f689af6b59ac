package services

import (
	"context"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/pkg/circuitbreaker"
	"livegate/pkg/tracing"

	"go.uber.org/zap"
)

// viewerService maintains per-live subscriber counts through the external
// counter collaborator. Every operation is best-effort: a counter failure
// is logged and swallowed so join/leave flows never stall on accounting.
// Counts may drift while the collaborator is unavailable; the sweep below
// corrects the obvious cases without changing that contract.
type viewerService struct {
	counter  ports.ViewerCounter
	liveRepo ports.LiveRepository
	breaker  *circuitbreaker.CircuitBreaker
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewViewerService(
	counter ports.ViewerCounter,
	liveRepo ports.LiveRepository,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.ViewerService {
	return &viewerService{
		counter:  counter,
		liveRepo: liveRepo,
		breaker:  circuitbreaker.New(circuitbreaker.DefaultConfig()),
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *viewerService) Join(ctx context.Context, liveID domain.LiveID) {
	ctx, span := tracing.TraceCounterOperation(ctx, "increment", string(liveID))
	defer span.End()

	err := s.breaker.Execute(func() error {
		count, err := s.counter.Increment(ctx, liveID)
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.ViewerCount(liveID, count)
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Warnw("viewer count increment failed",
			"live_id", liveID,
			"error", err,
		)
	}
}

func (s *viewerService) Leave(ctx context.Context, liveID domain.LiveID) {
	ctx, span := tracing.TraceCounterOperation(ctx, "decrement", string(liveID))
	defer span.End()

	err := s.breaker.Execute(func() error {
		count, err := s.counter.Decrement(ctx, liveID)
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.ViewerCount(liveID, count)
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Warnw("viewer count decrement failed",
			"live_id", liveID,
			"error", err,
		)
	}
}

func (s *viewerService) Count(ctx context.Context, liveID domain.LiveID) int64 {
	count, err := s.counter.Count(ctx, liveID)
	if err != nil {
		s.logger.Warnw("viewer count read failed", "live_id", liveID, "error", err)
		return 0
	}
	return count
}

// Reset clears the counter for a session. Like the other operations it is
// best-effort.
func (s *viewerService) Reset(ctx context.Context, liveID domain.LiveID) {
	ctx, span := tracing.TraceCounterOperation(ctx, "reset", string(liveID))
	defer span.End()

	if err := s.counter.Reset(ctx, liveID); err != nil {
		tracing.RecordError(ctx, err)
		s.logger.Warnw("viewer count reset failed", "live_id", liveID, "error", err)
	}
}

// StartDriftSweep periodically reconciles the counts persisted on active
// sessions with the counter store. Swallowed failures make the two views
// drift apart; the sweep repairs the persisted side without changing the
// non-fatal contract of Join/Leave.
func (s *viewerService) StartDriftSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *viewerService) sweep(ctx context.Context) {
	if s.liveRepo == nil {
		return
	}

	lives, err := s.liveRepo.ListActive(ctx, 100, 0)
	if err != nil {
		s.logger.Warnw("drift sweep: live listing failed", "error", err)
		return
	}

	for _, live := range lives {
		count, err := s.counter.Count(ctx, live.ID)
		if err != nil {
			s.logger.Warnw("drift sweep: counter read failed", "live_id", live.ID, "error", err)
			continue
		}
		if count == live.ViewerCount {
			continue
		}
		live.ViewerCount = count
		if err := s.liveRepo.Update(ctx, live); err != nil {
			s.logger.Warnw("drift sweep: live update failed", "live_id", live.ID, "error", err)
		}
		if s.metrics != nil {
			s.metrics.ViewerCount(live.ID, count)
		}
	}
}
