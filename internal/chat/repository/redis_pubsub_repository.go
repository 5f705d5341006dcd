package repository

import (
	"context"
	"fmt"
	"strings"

	"realtime_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UserChannel per-user relay channel
func UserChannel(userID string) string {
	return fmt.Sprintf("chat:user:%s", userID)
}

// UserChannelPattern matches every UserChannel
const UserChannelPattern = "chat:user:*"

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 發布已編碼的 payload 到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

// PSubscribe 訂閱 pattern, 收到訊息後呼叫 handler; returns once the subscription is confirmed
func (r *RedisPubSub) PSubscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	sub := r.client.PSubscribe(ctx, pattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				handler(m.Channel, []byte(m.Payload))
			case <-ctx.Done():
				logger.Log.Info("redis subscription closed", zap.String("pattern", pattern))
				return
			}
		}
	}()
	return nil
}

// UserFromChannel inverse of UserChannel
func UserFromChannel(channel string) (string, bool) {
	const prefix = "chat:user:"
	if !strings.HasPrefix(channel, prefix) || len(channel) == len(prefix) {
		return "", false
	}
	return channel[len(prefix):], true
}
