package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type recordingCommitter struct {
	mu      sync.Mutex
	offsets []int64
}

func (r *recordingCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.offsets = append(r.offsets, m.Offset)
	}
	return nil
}

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type scriptedHandler struct {
	calls int
	errs  []error
}

func (h *scriptedHandler) Topic() string { return "ticks" }

func (h *scriptedHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= len(h.errs) {
		return h.errs[h.calls-1]
	}
	return nil
}

func newTestConsumer(t *testing.T, h *scriptedHandler, dlq *recordingWriter) (*Consumer, *recordingCommitter) {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"127.0.0.1:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	c.RegisterHandler(h)
	cm := &recordingCommitter{}
	c.committers["ticks"] = cm
	if dlq != nil {
		c.dlq = dlq
	}
	return c, cm
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestStartWithoutHandlers(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"127.0.0.1:9092"}))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	if err := c.Start(); err == nil {
		t.Fatalf("expected error without handlers")
	}
}

func TestProcessRetriesThenCommits(t *testing.T) {
	h := &scriptedHandler{errs: []error{errors.New("busy"), errors.New("busy")}}
	c, cm := newTestConsumer(t, h, nil)

	c.process(delivery{topic: "ticks", km: kafka.Message{Topic: "ticks", Offset: 7}})

	if h.calls != 3 {
		t.Fatalf("calls = %d, want 3", h.calls)
	}
	if len(cm.offsets) != 1 || cm.offsets[0] != 7 {
		t.Fatalf("committed = %v", cm.offsets)
	}
}

func TestProcessPermanentGoesToDLQ(t *testing.T) {
	h := &scriptedHandler{errs: []error{Permanent(errors.New("bad json"))}}
	dlq := &recordingWriter{}
	c, cm := newTestConsumer(t, h, dlq)

	c.process(delivery{topic: "ticks", km: kafka.Message{Topic: "ticks", Partition: 2, Offset: 11, Value: []byte("{")}})

	if h.calls != 1 {
		t.Fatalf("permanent error retried: calls = %d", h.calls)
	}
	if len(dlq.msgs) != 1 {
		t.Fatalf("dlq messages = %d", len(dlq.msgs))
	}
	headers := map[string]string{}
	for _, hd := range dlq.msgs[0].Headers {
		headers[hd.Key] = string(hd.Value)
	}
	if headers["source_topic"] != "ticks" || headers["source_partition"] != "2" || headers["source_offset"] != "11" || headers["error"] != "bad json" {
		t.Fatalf("dlq headers = %v", headers)
	}
	if len(cm.offsets) != 1 {
		t.Fatalf("offset not committed after dlq")
	}
}

func TestProcessLeavesOffsetWhenDLQFails(t *testing.T) {
	h := &scriptedHandler{errs: []error{Permanent(errors.New("bad"))}}
	c, cm := newTestConsumer(t, h, &recordingWriter{err: errors.New("broker down")})

	c.process(delivery{topic: "ticks", km: kafka.Message{Topic: "ticks", Offset: 3}})

	if len(cm.offsets) != 0 {
		t.Fatalf("committed %v although dlq write failed", cm.offsets)
	}
}

func TestProcessRecoversPanics(t *testing.T) {
	c, cm := newTestConsumer(t, &scriptedHandler{}, nil)
	c.handlers["ticks"] = panicHandler{}

	c.process(delivery{topic: "ticks", km: kafka.Message{Topic: "ticks", Offset: 1}})

	if len(cm.offsets) != 0 {
		t.Fatalf("panicking message committed without dlq")
	}
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "ticks" }
func (panicHandler) Handle(context.Context, []byte) error { panic("boom") }
