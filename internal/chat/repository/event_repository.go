package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/database"

	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
)

// EventPublisher message event stream for downstream consumers (search, notifications)
type EventPublisher interface {
	PublishMessage(ctx context.Context, event domain.MessageEvent) error
	Close() error
}

type nopEventPublisher struct{}

// NewNopEventPublisher publisher that drops every event
func NewNopEventPublisher() EventPublisher { return nopEventPublisher{} }

func (nopEventPublisher) PublishMessage(context.Context, domain.MessageEvent) error {
	return nil
}

func (nopEventPublisher) Close() error {
	return nil
}

// KafkaMessageWriter subset of *kafka.Writer
type KafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaEventPublisher struct {
	writer KafkaMessageWriter
}

// NewKafkaEventPublisher events keyed by thread id so one thread stays in one partition
func NewKafkaEventPublisher(writer KafkaMessageWriter) EventPublisher {
	return &kafkaEventPublisher{writer: writer}
}

func (p *kafkaEventPublisher) PublishMessage(ctx context.Context, event domain.MessageEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal message event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.Message.ThreadID, 10)),
		Value: body,
		Time:  event.OccurredAt,
	})
}

func (p *kafkaEventPublisher) Close() error {
	return p.writer.Close()
}

type rabbitEventPublisher struct {
	repo       database.RabbitRepo
	exchange   string
	routingKey string
}

// NewRabbitEventPublisher declares a durable topic exchange and publishes persistent messages to it
func NewRabbitEventPublisher(repo database.RabbitRepo, exchange, routingKey string) (EventPublisher, error) {
	if err := repo.DeclareTopicExchange(exchange); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &rabbitEventPublisher{repo: repo, exchange: exchange, routingKey: routingKey}, nil
}

func (p *rabbitEventPublisher) PublishMessage(ctx context.Context, event domain.MessageEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal message event: %w", err)
	}
	return p.repo.Publish(ctx, p.exchange, p.routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

func (p *rabbitEventPublisher) Close() error {
	return p.repo.Close()
}
