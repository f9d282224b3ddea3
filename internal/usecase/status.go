package usecase

import (
	"sort"
	"sync"

	"PairFlow/internal/domain/models"
	"PairFlow/internal/store"
)

// FeedStatusTracker keeps one FeedStatus per symbol. The connection flag and
// last error are shared by every symbol of the same upstream.
type FeedStatusTracker struct {
	mu       sync.Mutex
	statuses map[string]*models.FeedStatus
}

// NewFeedStatusTracker tracks symbols from the start so they report as
// disconnected before the first message.
func NewFeedStatusTracker(symbols []string) *FeedStatusTracker {
	t := &FeedStatusTracker{statuses: make(map[string]*models.FeedStatus, len(symbols))}
	for _, s := range symbols {
		t.get(store.NormalizeSymbol(s))
	}
	return t
}

func (t *FeedStatusTracker) get(symbol string) *models.FeedStatus {
	st, ok := t.statuses[symbol]
	if !ok {
		st = &models.FeedStatus{Symbol: symbol}
		t.statuses[symbol] = st
	}
	return st
}

// RecordMessage counts one message for symbol received at ts (epoch ms).
func (t *FeedStatusTracker) RecordMessage(symbol string, ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.get(store.NormalizeSymbol(symbol))
	st.MessageCount++
	if ts > st.LastMessage {
		st.LastMessage = ts
	}
}

// SetConnected updates every tracked symbol. A nil err clears the error.
func (t *FeedStatusTracker) SetConnected(connected bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range t.statuses {
		st.Connected = connected
		st.Error = ""
		if err != nil {
			st.Error = err.Error()
		}
	}
}

// Statuses returns a copy of every status sorted by symbol.
func (t *FeedStatusTracker) Statuses() []models.FeedStatus {
	t.mu.Lock()
	out := make([]models.FeedStatus, 0, len(t.statuses))
	for _, st := range t.statuses {
		out = append(out, *st)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
