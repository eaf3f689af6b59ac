package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
)

type RedisLiveRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisLiveRepository(client *redis.Client) ports.LiveRepository {
	return &RedisLiveRepository{
		client: client,
		prefix: "livegate:live:",
	}
}

func (r *RedisLiveRepository) liveKey(id domain.LiveID) string {
	return r.prefix + string(id)
}

func (r *RedisLiveRepository) activeLivesKey() string {
	return r.prefix + "active"
}

func (r *RedisLiveRepository) Create(ctx context.Context, live *domain.LiveSession) error {
	data, err := json.Marshal(live)
	if err != nil {
		return fmt.Errorf("failed to marshal live session: %w", err)
	}

	key := r.liveKey(live.ID)
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set live session in Redis: %w", err)
	}

	if live.IsLive {
		if err := r.client.SAdd(ctx, r.activeLivesKey(), string(live.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add live session to active set: %w", err)
		}
	}

	return nil
}

func (r *RedisLiveRepository) GetByID(ctx context.Context, id domain.LiveID) (*domain.LiveSession, error) {
	data, err := r.client.Get(ctx, r.liveKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrLiveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get live session from Redis: %w", err)
	}

	var live domain.LiveSession
	if err := json.Unmarshal([]byte(data), &live); err != nil {
		return nil, fmt.Errorf("failed to unmarshal live session: %w", err)
	}

	return &live, nil
}

func (r *RedisLiveRepository) Update(ctx context.Context, live *domain.LiveSession) error {
	if _, err := r.GetByID(ctx, live.ID); err != nil {
		return err
	}

	data, err := json.Marshal(live)
	if err != nil {
		return fmt.Errorf("failed to marshal live session: %w", err)
	}

	if err := r.client.Set(ctx, r.liveKey(live.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update live session in Redis: %w", err)
	}

	activeKey := r.activeLivesKey()
	if live.IsLive {
		if err := r.client.SAdd(ctx, activeKey, string(live.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add live session to active set: %w", err)
		}
	} else {
		if err := r.client.SRem(ctx, activeKey, string(live.ID)).Err(); err != nil {
			return fmt.Errorf("failed to remove live session from active set: %w", err)
		}
	}

	return nil
}

func (r *RedisLiveRepository) Delete(ctx context.Context, id domain.LiveID) error {
	if err := r.client.SRem(ctx, r.activeLivesKey(), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove live session from active set: %w", err)
	}

	if err := r.client.Del(ctx, r.liveKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete live session from Redis: %w", err)
	}

	return nil
}

// ListActive returns live sessions newest first. The active set is an
// index only; records are re-checked after load so a stale set entry
// cannot surface an ended session.
func (r *RedisLiveRepository) ListActive(ctx context.Context, limit, offset int) ([]*domain.LiveSession, error) {
	liveIDs, err := r.client.SMembers(ctx, r.activeLivesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active live sessions from Redis: %w", err)
	}

	var lives []*domain.LiveSession
	for _, id := range liveIDs {
		live, err := r.GetByID(ctx, domain.LiveID(id))
		if err != nil {
			// Skip sessions that no longer exist.
			continue
		}
		if live.IsLive {
			lives = append(lives, live)
		}
	}

	sort.Slice(lives, func(i, j int) bool {
		return lives[i].StartedAt.After(lives[j].StartedAt)
	})

	if offset >= len(lives) {
		return nil, nil
	}
	lives = lives[offset:]
	if limit > 0 && len(lives) > limit {
		lives = lives[:limit]
	}
	return lives, nil
}
