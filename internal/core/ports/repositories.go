package ports

import (
	"context"

	"livegate/internal/core/domain"
)

type LiveRepository interface {
	Create(ctx context.Context, live *domain.LiveSession) error
	GetByID(ctx context.Context, id domain.LiveID) (*domain.LiveSession, error)
	Update(ctx context.Context, live *domain.LiveSession) error
	Delete(ctx context.Context, id domain.LiveID) error
	ListActive(ctx context.Context, limit, offset int) ([]*domain.LiveSession, error)
}

type MessageRepository interface {
	Append(ctx context.Context, msg *domain.ChatMessage) error
	List(ctx context.Context, liveID domain.LiveID, limit int) ([]*domain.ChatMessage, error)
}

// ViewerCounter is the external atomic counter collaborator backing viewer
// accounting. Decrement clamps at zero.
type ViewerCounter interface {
	Increment(ctx context.Context, liveID domain.LiveID) (int64, error)
	Decrement(ctx context.Context, liveID domain.LiveID) (int64, error)
	Count(ctx context.Context, liveID domain.LiveID) (int64, error)
	Reset(ctx context.Context, liveID domain.LiveID) error
}
