package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"

	"PairFlow/pkg/ring"
)

// maxPending bounds entries waiting for the next flush; extra entries are
// counted as dropped.
const maxPending = 1000

// Publisher ships flushed entries, e.g. to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	Capacity      int           // panel rows kept, default 100
	FlushInterval time.Duration // publishing period, needs Publisher
	Topic         string
	Publisher     Publisher // nil keeps entries local
}

// LogEntry is one log panel row. Consecutive repeats fold into Count.
type LogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector keeps the recent warn/error entries for the panel and
// optionally publishes them in batches.
type LogCollector struct {
	cfg CollectionConfig

	mu      sync.Mutex
	panel   *ring.Buffer[*LogEntry]
	lastKey uint64
	pending []LogEntry
	dropped int

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	c := &LogCollector{
		cfg:   cfg,
		panel: ring.New[*LogEntry](cfg.Capacity),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if cfg.Publisher != nil && cfg.FlushInterval > 0 {
		go c.flushLoop()
	} else {
		close(c.done)
	}
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, caller, fields)

	c.mu.Lock()
	defer c.mu.Unlock()

	if newest, ok := c.panel.Newest(); ok && key == c.lastKey {
		newest.Count++
		newest.LastSeen = now
	} else {
		c.panel.Push(&LogEntry{Level: level, Message: message, Fields: fields, Caller: caller, Count: 1, FirstSeen: now, LastSeen: now})
		c.lastKey = key
	}

	if c.cfg.Publisher == nil {
		return
	}
	if len(c.pending) >= maxPending {
		c.dropped++
		return
	}
	c.pending = append(c.pending, LogEntry{Level: level, Message: message, Fields: fields, Caller: caller, Count: 1, FirstSeen: now, LastSeen: now})
}

// Entries returns up to limit panel entries, newest first. limit <= 0 returns all.
func (c *LogCollector) Entries(limit int) []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := c.panel.Last(limit)
	out := make([]LogEntry, len(rows))
	for i, e := range rows {
		out[len(rows)-1-i] = *e
	}
	return out
}

func (c *LogCollector) Clear() {
	c.mu.Lock()
	c.panel.Reset()
	c.lastKey = 0
	c.mu.Unlock()
}

// Close stops the flush loop after a final flush. Safe to call twice.
func (c *LogCollector) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
}

// entryKey hashes the identity of an entry. Field order does not matter.
func entryKey(level, message, caller string, fields map[string]interface{}) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, message, caller)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, fields[k])
	}
	return h.Sum64()
}

func (c *LogCollector) flushLoop() {
	defer close(c.done)
	t := time.NewTicker(c.cfg.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.flush()
		case <-c.stop:
			c.flush()
			return
		}
	}
}

func (c *LogCollector) flush() {
	c.mu.Lock()
	batch, dropped := c.pending, c.dropped
	c.pending, c.dropped = nil, 0
	c.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		// the logger itself feeds this collector, so report on stderr
		fmt.Fprintf(os.Stderr, "log collector: publish %d entries to %s: %v\n", len(batch), c.cfg.Topic, err)
	}
	if dropped > 0 {
		fmt.Fprintf(os.Stderr, "log collector: dropped %d entries over the pending limit\n", dropped)
	}
}
