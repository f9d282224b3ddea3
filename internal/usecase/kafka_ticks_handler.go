package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "PairFlow/internal/domain/repository"
	mid "PairFlow/internal/middleware"
	"PairFlow/internal/service/feed"
	pkgkafka "PairFlow/pkg/kafka"
)

// KafkaTicksHandler ingests relay-shaped ticks from a Kafka topic through the
// same normalization and pipeline as the websocket feed.
type KafkaTicksHandler struct {
	topic   string
	pipe    mid.Proc
	status  *FeedStatusTracker
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, pipe mid.Proc, status *FeedStatusTracker, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, pipe: pipe, status: status, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// Handle normalizes one message. Malformed payloads are permanent failures
// and skip the consumer's retries.
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	ticks, err := feed.Normalize(b)
	if err != nil {
		h.metrics.RecordError("consumer_normalize")
		return pkgkafka.Permanent(err)
	}
	for _, t := range ticks {
		// E2E latency from trade time to now (approx)
		h.metrics.RecordLatency("ingest_e2e", time.Since(time.UnixMilli(t.Timestamp)).Seconds())
		if h.status != nil {
			h.status.RecordMessage(t.Symbol, t.Timestamp)
		}
		if err := h.pipe.Process(ctx, t); err != nil {
			h.metrics.RecordError("consumer_ingest")
			return fmt.Errorf("ingest %s: %w", t.Symbol, err)
		}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
