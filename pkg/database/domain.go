package database

import (
	"fmt"
	"time"

	"realtime_chat_service/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Connection definition postgres / mongo / amqp connection setting
type Connection struct {
	ConnectStr string
	// MaxConns pool 上限，0 使用 driver 預設
	MaxConns int32

	RetryCount int
	// RetryInterval 以秒為單位
	RetryInterval time.Duration
}

func (c Connection) policy() backoff.BackOff {
	return retryPolicy(c.RetryCount, c.RetryInterval)
}

// MongoDB definition mongo db
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// KafkaConnection definition kafka
type KafkaConnection struct {
	Brokers       []string
	Topic         string
	RetryCount    int
	RetryInterval time.Duration
}

// RedisConnection definition redis, sentinel mode when MasterName is set
type RedisConnection struct {
	Address       string
	MasterName    string
	SentinelAddrs []string
	Password      string
	DB            int
	RetryCount    int
	RetryInterval time.Duration
}

// retryPolicy count 次嘗試、固定間隔 (秒)
func retryPolicy(count int, intervalSec time.Duration) backoff.BackOff {
	if count <= 0 {
		count = 1
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(intervalSec*time.Second), uint64(count-1))
}

// dialWithRetry 重試 dial 直到成功，每次失敗記一筆 warn
func dialWithRetry[T any](name string, policy backoff.BackOff, dial func() (T, error)) (T, error) {
	attempt := 0
	v, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		return dial()
	}, policy, func(err error, next time.Duration) {
		logger.Log.Warn(name+" unreachable, retrying...",
			zap.Int("attempt", attempt),
			zap.Duration("next", next),
			zap.Error(err))
	})
	if err != nil {
		return v, fmt.Errorf("%s: not connected after %d attempts: %w", name, attempt, err)
	}
	logger.Log.Info(name+" connected", zap.Int("attempt", attempt))
	return v, nil
}
