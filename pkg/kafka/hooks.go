package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook wraps message handling. An error from BeforeHandle skips the
// handler and counts as a failed attempt. AfterHandle always runs and gets
// the attempt's error, if any.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, kafka.Message, error) {}

// HookError is an error raised by a hook or a recovered panic. Code is e.g.
// ERR_PANIC.
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *HookError) Unwrap() error { return e.Err }

// HookFuncs builds a ConsumerHook from functions; nil ones are skipped.
type HookFuncs struct {
	Before func(ctx context.Context, km kafka.Message) (context.Context, error)
	After  func(ctx context.Context, km kafka.Message, err error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, km, err)
	}
}

// Hooks runs several hooks as one. Before hooks run in order and stop at the
// first error; after hooks run in reverse. Panics in a hook are recovered.
type Hooks []ConsumerHook

// Chain drops nil hooks.
func Chain(hooks ...ConsumerHook) Hooks {
	out := make(Hooks, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (hs Hooks) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	for _, h := range hs {
		next, err := safeBefore(h, ctx, km)
		if err != nil {
			return ctx, err
		}
		ctx = next
	}
	return ctx, nil
}

func (hs Hooks) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	for i := len(hs) - 1; i >= 0; i-- {
		func(h ConsumerHook) {
			defer func() { _ = recover() }()
			h.AfterHandle(ctx, km, err)
		}(hs[i])
	}
}

func safeBefore(h ConsumerHook, ctx context.Context, km kafka.Message) (next context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, err = ctx, &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("hook: %v", r)}
		}
	}()
	return h.BeforeHandle(ctx, km)
}

type ctxKey int

const (
	startTimeKey ctxKey = iota
	traceIDKey
)

// TraceHeader is the message header carrying the trace id.
const TraceHeader = "trace_id"

// WithTraceID returns ctx carrying id. Producers copy it into TraceHeader.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceIDFrom returns the trace id stored by WithTraceID, or "".
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

func headerValue(km kafka.Message, key string) string {
	for _, h := range km.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// TimingHook carries the message's trace id into the handler context and
// reports how long each attempt took.
func TimingHook(observe func(topic string, d time.Duration, err error)) ConsumerHook {
	return HookFuncs{
		Before: func(ctx context.Context, km kafka.Message) (context.Context, error) {
			ctx = context.WithValue(ctx, startTimeKey, time.Now())
			return WithTraceID(ctx, headerValue(km, TraceHeader)), nil
		},
		After: func(ctx context.Context, km kafka.Message, err error) {
			start, ok := ctx.Value(startTimeKey).(time.Time)
			if ok && observe != nil {
				observe(km.Topic, time.Since(start), err)
			}
		},
	}
}
