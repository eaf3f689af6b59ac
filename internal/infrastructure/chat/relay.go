package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"livegate/internal/core/domain"
)

const relayChannel = "livegate:chat"

// relayEnvelope is the pubsub wire format. InstanceID lets a process skip
// messages it published itself, which its local connections already saw.
type relayEnvelope struct {
	InstanceID string             `json:"instance_id"`
	LiveID     domain.LiveID      `json:"live_id"`
	MessageID  string             `json:"message_id"`
	Sender     domain.Identity    `json:"sender"`
	Type       domain.MessageType `json:"type"`
	Content    string             `json:"content"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Relay fans chat messages out across gateway instances through Redis
// pubsub. Without it, websocket clients only see messages posted through
// the instance they happen to be connected to.
type Relay struct {
	client     *redis.Client
	instanceID string
	deliver    func(liveID domain.LiveID, msg *domain.ChatMessage)
	logger     *zap.SugaredLogger
}

func NewRelay(client *redis.Client, logger *zap.SugaredLogger) *Relay {
	return &Relay{
		client:     client,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

// Publish sends a locally posted message to the other instances.
func (r *Relay) Publish(ctx context.Context, msg *domain.ChatMessage) error {
	data, err := json.Marshal(relayEnvelope{
		InstanceID: r.instanceID,
		LiveID:     msg.LiveID,
		MessageID:  msg.ID,
		Sender:     msg.Sender,
		Type:       msg.Type,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal relay envelope: %w", err)
	}

	if err := r.client.Publish(ctx, relayChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish chat message: %w", err)
	}
	return nil
}

// Start subscribes to the relay channel and delivers remote messages to
// local connections until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	pubsub := r.client.Subscribe(ctx, relayChannel)

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return

			case m, ok := <-ch:
				if !ok {
					return
				}

				var envelope relayEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &envelope); err != nil {
					r.logger.Warnw("dropping malformed relay message", "error", err)
					continue
				}
				if envelope.InstanceID == r.instanceID {
					continue
				}
				if r.deliver == nil {
					continue
				}

				r.deliver(envelope.LiveID, &domain.ChatMessage{
					ID:        envelope.MessageID,
					LiveID:    envelope.LiveID,
					Sender:    envelope.Sender,
					Type:      envelope.Type,
					Content:   envelope.Content,
					CreatedAt: envelope.CreatedAt,
				})
			}
		}
	}()
}
