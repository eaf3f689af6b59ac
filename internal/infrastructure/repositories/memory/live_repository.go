package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
)

type MemoryLiveRepository struct {
	lives map[domain.LiveID]*domain.LiveSession
	mu    sync.RWMutex
}

func NewMemoryLiveRepository() ports.LiveRepository {
	return &MemoryLiveRepository{
		lives: make(map[domain.LiveID]*domain.LiveSession),
	}
}

func (r *MemoryLiveRepository) Create(ctx context.Context, live *domain.LiveSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lives[live.ID]; exists {
		return fmt.Errorf("live session already exists: %s", live.ID)
	}

	cp := *live
	r.lives[live.ID] = &cp
	return nil
}

func (r *MemoryLiveRepository) GetByID(ctx context.Context, id domain.LiveID) (*domain.LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	live, exists := r.lives[id]
	if !exists {
		return nil, domain.ErrLiveNotFound
	}

	cp := *live
	return &cp, nil
}

func (r *MemoryLiveRepository) Update(ctx context.Context, live *domain.LiveSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lives[live.ID]; !exists {
		return domain.ErrLiveNotFound
	}

	cp := *live
	r.lives[live.ID] = &cp
	return nil
}

func (r *MemoryLiveRepository) Delete(ctx context.Context, id domain.LiveID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lives[id]; !exists {
		return domain.ErrLiveNotFound
	}

	delete(r.lives, id)
	return nil
}

// ListActive returns live sessions newest first.
func (r *MemoryLiveRepository) ListActive(ctx context.Context, limit, offset int) ([]*domain.LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*domain.LiveSession
	for _, live := range r.lives {
		if live.IsLive {
			cp := *live
			active = append(active, &cp)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].StartedAt.After(active[j].StartedAt)
	})

	if offset >= len(active) {
		return nil, nil
	}
	active = active[offset:]
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}
