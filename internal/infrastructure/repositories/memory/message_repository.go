package memory

import (
	"context"
	"sync"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
)

// MemoryMessageRepository keeps a bounded per-live chat history. Once the
// history limit is reached the oldest messages are dropped.
type MemoryMessageRepository struct {
	messages     map[domain.LiveID][]*domain.ChatMessage
	historyLimit int
	mu           sync.RWMutex
}

func NewMemoryMessageRepository(historyLimit int) ports.MessageRepository {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &MemoryMessageRepository{
		messages:     make(map[domain.LiveID][]*domain.ChatMessage),
		historyLimit: historyLimit,
	}
}

func (r *MemoryMessageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *msg
	history := append(r.messages[msg.LiveID], &cp)
	if len(history) > r.historyLimit {
		history = history[len(history)-r.historyLimit:]
	}
	r.messages[msg.LiveID] = history
	return nil
}

// List returns up to limit of the most recent messages in chronological
// order.
func (r *MemoryMessageRepository) List(ctx context.Context, liveID domain.LiveID, limit int) ([]*domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.messages[liveID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]*domain.ChatMessage, 0, len(history))
	for _, msg := range history {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}
