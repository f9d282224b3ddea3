package repository

import (
	"context"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
)

// Producer is the part of pkg/kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// Topics names the topic of every published event kind.
type Topics struct {
	Ticks  string
	Bars   string
	Alerts string
}

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer Producer
	topics   Topics
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer Producer, topics Topics) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topics: topics}
}

// PublishTick sends a tick keyed by symbol so partitions keep per-symbol order.
func (p *KafkaPublisher) PublishTick(ctx context.Context, t models.Tick) error {
	return p.producer.Publish(ctx, p.topics.Ticks, []byte(t.Symbol), t)
}

func (p *KafkaPublisher) PublishBar(ctx context.Context, b models.Bar) error {
	return p.producer.Publish(ctx, p.topics.Bars, []byte(b.Symbol+"|"+b.Timeframe), b)
}

func (p *KafkaPublisher) PublishNotification(ctx context.Context, n models.AlertNotification) error {
	return p.producer.Publish(ctx, p.topics.Alerts, []byte(n.AlertID), n)
}

// PublishMessage sends an arbitrary payload, used by the log collector.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher discards every event. It is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishTick(context.Context, models.Tick) error                      { return nil }
func (NopPublisher) PublishBar(context.Context, models.Bar) error                        { return nil }
func (NopPublisher) PublishNotification(context.Context, models.AlertNotification) error { return nil }
func (NopPublisher) PublishMessage(context.Context, string, interface{}) error           { return nil }
func (NopPublisher) Close() error                                                        { return nil }

var (
	_ domrepo.Publisher = (*KafkaPublisher)(nil)
	_ domrepo.Publisher = NopPublisher{}
)
