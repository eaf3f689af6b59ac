package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
)

// RedisMessageRepository stores per-live chat history in a capped list,
// newest at the head. LPUSH plus LTRIM keeps the list bounded without a
// separate cleanup pass.
type RedisMessageRepository struct {
	client       *redis.Client
	prefix       string
	historyLimit int
}

func NewRedisMessageRepository(client *redis.Client, historyLimit int) ports.MessageRepository {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &RedisMessageRepository{
		client:       client,
		prefix:       "livegate:messages:",
		historyLimit: historyLimit,
	}
}

func (r *RedisMessageRepository) messagesKey(liveID domain.LiveID) string {
	return r.prefix + string(liveID)
}

func (r *RedisMessageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := r.messagesKey(msg.LiveID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(r.historyLimit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append message in Redis: %w", err)
	}

	return nil
}

// List returns up to limit of the most recent messages in chronological
// order.
func (r *RedisMessageRepository) List(ctx context.Context, liveID domain.LiveID, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 || limit > r.historyLimit {
		limit = r.historyLimit
	}

	raw, err := r.client.LRange(ctx, r.messagesKey(liveID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages from Redis: %w", err)
	}

	// LRange returns newest first, reverse into chronological order.
	out := make([]*domain.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		out = append(out, &msg)
	}
	return out, nil
}
