package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// RabbitRepo confirm-mode publisher on one amqp channel
type RabbitRepo interface {
	DeclareTopicExchange(name string) error
	// Publish returns after the broker acked the message or ctx is done
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	Close() error
}

type rabbitRepo struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
	seq      uint64
}

// NewRabbitRepository put the channel into confirm mode
func NewRabbitRepository(ch *amqp.Channel) (RabbitRepo, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("rabbitMQ confirm mode: %w", err)
	}
	return &rabbitRepo{
		channel:  ch,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 16)),
	}, nil
}

// ConnectRabbitMQWithRetry 嘗試連線到 RabbitMQ
func ConnectRabbitMQWithRetry(d Connection) (*amqp.Connection, error) {
	return dialWithRetry("rabbitMQ", d.policy(), func() (*amqp.Connection, error) {
		return amqp.Dial(d.ConnectStr)
	})
}

// GetRabbitMQChannelWithRetry 使用已有的 RabbitMQ 連線嘗試取得 Channel
func GetRabbitMQChannelWithRetry(conn *amqp.Connection, maxRetries int, baseDelay time.Duration) (*amqp.Channel, error) {
	return dialWithRetry("rabbitMQ channel", retryPolicy(maxRetries, baseDelay), conn.Channel)
}

func (r *rabbitRepo) DeclareTopicExchange(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel.ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

func (r *rabbitRepo) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.Publish(exchange, key, false, false, msg); err != nil {
		return err
	}
	r.seq++

	// 上一次 ctx 逾時留下的舊 confirm 直接略過
	for {
		select {
		case conf, ok := <-r.confirms:
			if !ok {
				return amqp.ErrClosed
			}
			if conf.DeliveryTag < r.seq {
				continue
			}
			if !conf.Ack {
				return fmt.Errorf("rabbitMQ nacked delivery %d", conf.DeliveryTag)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *rabbitRepo) Close() error {
	return r.channel.Close()
}
