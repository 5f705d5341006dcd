package app

import (
	"context"

	"realtime_chat_service/internal/chat/registry"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// LocalDeliverer delivers through this node's registry only
type LocalDeliverer struct {
	registry *registry.Registry
}

// NewLocalDeliverer create LocalDeliverer
func NewLocalDeliverer(reg *registry.Registry) *LocalDeliverer {
	return &LocalDeliverer{registry: reg}
}

// DeliverTo offline users are not an error
func (d *LocalDeliverer) DeliverTo(_ context.Context, userID string, payload []byte) error {
	n := d.registry.Deliver(userID, payload)
	logger.Log.Debug("delivered", zap.String("userID", userID), zap.Int("connections", n))
	return nil
}

// PubSub relay transport between gateway nodes
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PSubscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error
}

// RedisRelay cluster mode: every node publishes to the recipient's channel and every node
// delivers what it receives to its own connections
type RedisRelay struct {
	pubsub PubSub
	local  *LocalDeliverer
}

// NewRedisRelay create RedisRelay
func NewRedisRelay(pubsub PubSub, local *LocalDeliverer) *RedisRelay {
	return &RedisRelay{pubsub: pubsub, local: local}
}

// DeliverTo publish to the user's channel
func (r *RedisRelay) DeliverTo(ctx context.Context, userID string, payload []byte) error {
	return r.pubsub.Publish(ctx, repository.UserChannel(userID), payload)
}

// Start subscribe to every user channel until ctx is done
func (r *RedisRelay) Start(ctx context.Context) error {
	return r.pubsub.PSubscribe(ctx, repository.UserChannelPattern, func(channel string, payload []byte) {
		userID, ok := repository.UserFromChannel(channel)
		if !ok {
			logger.Log.Warn("relay message on unexpected channel", zap.String("channel", channel))
			return
		}
		_ = r.local.DeliverTo(ctx, userID, payload)
	})
}
