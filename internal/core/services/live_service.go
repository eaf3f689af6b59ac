package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/pkg/errors"
	"livegate/pkg/ratelimit"
	"livegate/pkg/tracing"
	"livegate/pkg/utils"
	"livegate/pkg/validation"
)

type liveService struct {
	lives    ports.LiveRepository
	messages ports.MessageRepository
	tokens   ports.TokenService
	viewers  ports.ViewerService
	limiter  ratelimit.Consumer
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	now func() time.Time
}

func NewLiveService(
	lives ports.LiveRepository,
	messages ports.MessageRepository,
	tokens ports.TokenService,
	viewers ports.ViewerService,
	limiter ratelimit.Consumer,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.LiveService {
	return &liveService{
		lives:    lives,
		messages: messages,
		tokens:   tokens,
		viewers:  viewers,
		limiter:  limiter,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateLive registers a new session and issues the host's publisher
// credential in one step. The session id doubles as the channel name so
// every credential for the session is bound to it.
func (s *liveService) CreateLive(ctx context.Context, host domain.Identity, input ports.CreateLiveInput, rateKey string) (*domain.LiveSession, *domain.Credential, error) {
	ctx, span := tracing.StartSpan(ctx, "live.create")
	defer span.End()

	if host == "" {
		return nil, nil, errors.NewUnauthorizedError("host identity is required")
	}
	checks := []func() *validation.Violation{
		validation.Field("title", func() error { return validation.ValidateLiveTitle(input.Title) }),
		validation.Field("description", func() error { return validation.ValidateDescription(input.Description) }),
	}
	if input.MaxViewers != 0 {
		// Zero means no viewer cap.
		checks = append(checks, validation.Field("max_viewers", func() error { return validation.ValidateMaxViewers(input.MaxViewers) }))
	}
	if violations := validation.Check(checks...); len(violations) > 0 {
		err := errors.NewInvalidInputError(violations.Error())
		tracing.RecordError(ctx, err)
		return nil, nil, err
	}

	liveID := domain.LiveID("live_" + uuid.NewString())
	live := &domain.LiveSession{
		ID:          liveID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Tags:        input.Tags,
		HostID:      host,
		Channel:     string(liveID),
		IsPrivate:   input.IsPrivate,
		MaxViewers:  input.MaxViewers,
		IsLive:      true,
		StartedAt:   s.now(),
	}

	if err := s.lives.Create(ctx, live); err != nil {
		tracing.RecordError(ctx, err)
		return nil, nil, errors.WrapError(err, errors.ErrCodeInternal, "failed to create live session", 500)
	}

	cred, err := s.tokens.IssueCredential(ctx, ports.IssueRequest{
		Channel:  live.Channel,
		Identity: host,
		Role:     domain.RolePublisher,
		RateKey:  rateKey,
	})
	if err != nil {
		// A session without a host credential is unusable, undo the create.
		if delErr := s.lives.Delete(ctx, liveID); delErr != nil {
			s.logger.Errorw("failed to roll back live session", "live_id", liveID, "error", delErr)
		}
		tracing.RecordError(ctx, err)
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.LiveStarted()
	}
	tracing.AddSpanAttributes(ctx, tracing.LiveIDKey.String(string(liveID)))
	s.logger.Infow("live session created",
		"live_id", liveID,
		"host", host,
		"title", live.Title,
	)
	return live, cred, nil
}

func (s *liveService) GetLive(ctx context.Context, liveID domain.LiveID) (*domain.LiveSession, error) {
	live, err := s.getLive(ctx, liveID)
	if err != nil {
		return nil, err
	}
	if s.viewers != nil {
		live.ViewerCount = s.viewers.Count(ctx, liveID)
	}
	return live, nil
}

func (s *liveService) ListLives(ctx context.Context, limit, offset int) ([]*domain.LiveSession, error) {
	if limit <= 0 {
		limit = 20
	}
	if err := validation.ValidatePaginationLimit(limit); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if offset < 0 {
		offset = 0
	}

	lives, err := s.lives.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "failed to list live sessions", 500)
	}
	if s.viewers != nil {
		for _, live := range lives {
			live.ViewerCount = s.viewers.Count(ctx, live.ID)
		}
	}
	return lives, nil
}

// EndLive closes the session. Only the host may end it; ending twice is a
// conflict. The viewer counter is reset so ghost viewers from swallowed
// decrements do not outlive the session.
func (s *liveService) EndLive(ctx context.Context, liveID domain.LiveID, caller domain.Identity) (*domain.LiveSession, error) {
	ctx, span := tracing.StartSpan(ctx, "live.end")
	defer span.End()

	live, err := s.getLive(ctx, liveID)
	if err != nil {
		return nil, err
	}
	if live.HostID != caller {
		return nil, errors.NewForbiddenError("only the host can end the live session")
	}
	if !live.IsLive {
		return nil, errors.NewConflictError("live session already ended")
	}

	endedAt := s.now()
	live.IsLive = false
	live.EndedAt = &endedAt
	if err := s.lives.Update(ctx, live); err != nil {
		tracing.RecordError(ctx, err)
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "failed to end live session", 500)
	}

	if s.viewers != nil {
		live.ViewerCount = s.viewers.Count(ctx, liveID)
		s.viewers.Reset(ctx, liveID)
	}
	s.appendSystemMessage(ctx, liveID, domain.MessageSystem, "live ended")

	if s.metrics != nil {
		s.metrics.LiveEnded()
		s.metrics.LiveMetricsCleared(liveID)
	}
	s.logger.Infow("live session ended",
		"live_id", liveID,
		"host", caller,
		"duration", endedAt.Sub(live.StartedAt),
	)
	return live, nil
}

// JoinLive hands the viewer a subscriber credential for the session's
// channel. Anonymous viewers get a credential but are not counted, so the
// viewer count tracks identified participants only.
func (s *liveService) JoinLive(ctx context.Context, liveID domain.LiveID, viewer domain.Identity, rateKey string) (*domain.LiveSession, *domain.Credential, error) {
	ctx, span := tracing.StartSpan(ctx, "live.join")
	defer span.End()

	live, err := s.getLive(ctx, liveID)
	if err != nil {
		return nil, nil, err
	}
	if !live.IsLive {
		return nil, nil, errors.NewNotFoundError("live session")
	}

	count := int64(0)
	if s.viewers != nil {
		count = s.viewers.Count(ctx, liveID)
	}
	if live.MaxViewers > 0 && count >= int64(live.MaxViewers) {
		return nil, nil, errors.NewConflictError("live session is full")
	}

	cred, err := s.tokens.IssueCredential(ctx, ports.IssueRequest{
		Channel:  live.Channel,
		Identity: viewer,
		Role:     domain.RoleSubscriber,
		RateKey:  rateKey,
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, nil, err
	}

	if viewer != "" && s.viewers != nil {
		s.viewers.Join(ctx, liveID)
		s.appendSystemMessage(ctx, liveID, domain.MessageJoin, string(viewer)+" joined")
	}

	if s.viewers != nil {
		live.ViewerCount = s.viewers.Count(ctx, liveID)
	}
	return live, cred, nil
}

func (s *liveService) LeaveLive(ctx context.Context, liveID domain.LiveID, viewer domain.Identity) error {
	live, err := s.getLive(ctx, liveID)
	if err != nil {
		return err
	}

	if viewer != "" && s.viewers != nil && live.IsLive {
		s.viewers.Leave(ctx, liveID)
		s.appendSystemMessage(ctx, liveID, domain.MessageLeave, string(viewer)+" left")
	}
	return nil
}

// PostMessage appends a chat message to an active session. Messaging quota
// is keyed by the sender's identity.
func (s *liveService) PostMessage(ctx context.Context, liveID domain.LiveID, sender domain.Identity, msgType domain.MessageType, content string) (*domain.ChatMessage, error) {
	live, err := s.getLive(ctx, liveID)
	if err != nil {
		return nil, err
	}
	if !live.IsLive {
		return nil, errors.NewConflictError("live session already ended")
	}
	if sender == "" {
		return nil, errors.NewUnauthorizedError("sender identity is required")
	}

	if violations := validation.Check(
		validation.Field("content", func() error { return validation.ValidateMessageContent(content) }),
		validation.Field("type", func() error { return validation.ValidateMessageType(string(msgType)) }),
	); len(violations) > 0 {
		return nil, errors.NewInvalidInputError(violations.Error())
	}

	if s.limiter != nil {
		res, err := s.limiter.Consume(ctx, ratelimit.PolicyMessaging, string(sender))
		if err != nil {
			s.logger.Errorw("rate limiter unavailable", "error", err)
			return nil, errors.WrapError(err, errors.ErrCodeInternal, "rate limiter unavailable", 500)
		}
		if !res.Allowed {
			if s.metrics != nil {
				s.metrics.RateLimitRejected(ratelimit.PolicyMessaging)
			}
			return nil, errors.NewRateLimitError(res.RetryAfter)
		}
	}

	msg := &domain.ChatMessage{
		ID:        utils.GenerateMessageID(),
		LiveID:    liveID,
		Sender:    sender,
		Type:      msgType,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "failed to store message", 500)
	}

	if s.metrics != nil {
		s.metrics.MessagePosted()
	}
	return msg, nil
}

func (s *liveService) ListMessages(ctx context.Context, liveID domain.LiveID, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if err := validation.ValidatePaginationLimit(limit); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	if _, err := s.getLive(ctx, liveID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.List(ctx, liveID, limit)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "failed to list messages", 500)
	}
	return msgs, nil
}

func (s *liveService) getLive(ctx context.Context, liveID domain.LiveID) (*domain.LiveSession, error) {
	if err := validation.ValidateLiveID(string(liveID)); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	live, err := s.lives.GetByID(ctx, liveID)
	if err != nil {
		if stderrors.Is(err, domain.ErrLiveNotFound) {
			return nil, errors.NewNotFoundError("live session")
		}
		return nil, errors.WrapError(err, errors.ErrCodeInternal, "failed to load live session", 500)
	}
	return live, nil
}

// appendSystemMessage records lifecycle notices in the chat history.
// Failures are logged and swallowed, history is best-effort.
func (s *liveService) appendSystemMessage(ctx context.Context, liveID domain.LiveID, msgType domain.MessageType, content string) {
	if s.messages == nil {
		return
	}
	msg := &domain.ChatMessage{
		ID:        utils.GenerateMessageID(),
		LiveID:    liveID,
		Sender:    "system",
		Type:      msgType,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		s.logger.Warnw("failed to append system message", "live_id", liveID, "error", err)
	}
}
