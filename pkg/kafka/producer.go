package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var compressionCodecs = map[string]kafka.Compression{
	"none":   0,
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// Producer wraps a kafka-go writer. Values are sent as JSON unless they are
// already []byte or string.
type Producer struct {
	writer *kafka.Writer
	comp   string
}

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               bal,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compressionCodecs[cfg.Compression],
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             int64(cfg.BatchBytes),
		BatchTimeout:           cfg.BatchTimeout,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: cfg.AutoCreateTopics,
	}

	producerMetricsOnce.Do(initProducerMetrics)
	return &Producer{writer: writer, comp: cfg.Compression}, nil
}

// Publish sends one message to topic. A trace id stored in ctx by the
// consumer hooks travels along as the trace_id header.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	start := time.Now()
	v, err := encodeValue(value)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   v,
		Time:    start,
		Headers: messageHeaders(ctx),
	}
	err = p.writer.WriteMessages(ctx, msg)
	observeProducerMetrics(topic, p.comp, len(v), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending batches and closes the writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func encodeValue(value interface{}) ([]byte, error) {
	switch val := value.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	case json.RawMessage:
		return val, nil
	}
	v, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return v, nil
}

func messageHeaders(ctx context.Context) []kafka.Header {
	headers := []kafka.Header{{Key: "content-type", Value: []byte("application/json")}}
	if id := TraceIDFrom(ctx); id != "" {
		headers = append(headers, kafka.Header{Key: TraceHeader, Value: []byte(id)})
	}
	return headers
}

var (
	producerMsgsTotal   *prometheus.CounterVec
	producerBytesTotal  *prometheus.CounterVec
	producerLatencyHist *prometheus.HistogramVec
	producerMetricsOnce sync.Once
	producerRegisterer  prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetProducerMetricsRegisterer sets where producer metrics register. It must
// run before the first NewProducer call.
func SetProducerMetricsRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		producerRegisterer = reg
	}
}

func initProducerMetrics() {
	f := promauto.With(producerRegisterer)
	producerMsgsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairflow_kafka_producer_messages_total",
			Help: "Messages published to Kafka by result",
		},
		[]string{"topic", "compression", "result"},
	)
	producerBytesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairflow_kafka_producer_bytes_total",
			Help: "Payload bytes published",
		},
		[]string{"topic"},
	)
	producerLatencyHist = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pairflow_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"topic"},
	)
}

func observeProducerMetrics(topic, comp string, bytes int, dur time.Duration, err error) {
	if producerMsgsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgsTotal.WithLabelValues(topic, comp, result).Inc()
	producerBytesTotal.WithLabelValues(topic).Add(float64(bytes))
	producerLatencyHist.WithLabelValues(topic).Observe(dur.Seconds())
}
