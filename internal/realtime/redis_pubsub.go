package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "adstore:feed:"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	At     int64           `json:"at"`
}

// RedisPubSub implements Publisher and Subscriber over one Redis channel per ad key.
// Messages carry the publishing instance id so an instance ignores its own echoes.
type RedisPubSub struct {
	client   *redis.Client
	channel  string
	instance string
	logger   *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for the feed of the collection stored under key.
func NewRedisPubSub(client *redis.Client, key string, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{
		client:   client,
		channel:  channelPrefix + key,
		instance: uuid.New().String(),
		logger:   logger,
	}
}

// Publish sends an event to the other instances.
func (r *RedisPubSub) Publish(event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Origin: r.instance, Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Subscribe calls handler for each event published by another instance.
// Returns a cancel function to stop the subscription.
func (r *RedisPubSub) Subscribe(handler func(event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Debug("ads feed: bad message", zap.Error(err))
					continue
				}
				if p.Origin == r.instance {
					continue
				}
				handler(p.Event, p.Data)
			}
		}
	}()
	return cancelCtx, nil
}
