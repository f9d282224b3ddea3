// Package store keeps the bounded in-memory tick and bar history, one
// SymbolSeries per symbol.
package store

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	"PairFlow/internal/services/ohlc"
	"PairFlow/pkg/ring"
)

const (
	DefaultTickCapacity = 10_000
	DefaultBarCapacity  = ohlc.DefaultCapacity
)

// Option configures Store.
type Option func(*Config)

// Config holds store configuration.
type Config struct {
	TickCapacity int
	BarCapacity  int
	Timeframes   []domrepo.Timeframe
}

// WithTickCapacity sets the per-symbol tick ring size.
func WithTickCapacity(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.TickCapacity = n
		}
	}
}

// WithBarCapacity sets the per-timeframe bar ring size.
func WithBarCapacity(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.BarCapacity = n
		}
	}
}

// WithTimeframes sets the timeframes aggregated for every symbol.
func WithTimeframes(tfs ...domrepo.Timeframe) Option {
	return func(c *Config) {
		if len(tfs) > 0 {
			c.Timeframes = tfs
		}
	}
}

// SymbolSeries owns all state for one symbol. Every mutation happens under mu.
type SymbolSeries struct {
	mu     sync.RWMutex
	symbol string
	ticks  *ring.Buffer[models.Tick]
	aggs   map[domrepo.Timeframe]*ohlc.Aggregator
	// float64 bits of the latest price, readable without mu
	last atomic.Uint64
}

// SeriesSnapshot is a consistent copy of one symbol's history.
type SeriesSnapshot struct {
	Symbol string
	Ticks  []models.Tick
	Bars   []models.Bar
}

// Store is a keyed registry of SymbolSeries. The registry lock is held only
// to find or create a series, so different symbols never contend.
type Store struct {
	cfg    Config
	mu     sync.RWMutex
	series map[string]*SymbolSeries
}

// New creates an empty store.
func New(opts ...Option) *Store {
	cfg := Config{
		TickCapacity: DefaultTickCapacity,
		BarCapacity:  DefaultBarCapacity,
		Timeframes:   domrepo.AllTimeframes(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{cfg: cfg, series: make(map[string]*SymbolSeries)}
}

// NormalizeSymbol is the registry key for a symbol.
func NormalizeSymbol(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *Store) lookup(symbol string) *SymbolSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series[NormalizeSymbol(symbol)]
}

func (s *Store) getOrCreate(symbol string) *SymbolSeries {
	key := NormalizeSymbol(symbol)
	s.mu.RLock()
	ss, ok := s.series[key]
	s.mu.RUnlock()
	if ok {
		return ss
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ss, ok := s.series[key]; ok {
		return ss
	}
	ss = &SymbolSeries{
		symbol: key,
		ticks:  ring.New[models.Tick](s.cfg.TickCapacity),
		aggs:   make(map[domrepo.Timeframe]*ohlc.Aggregator, len(s.cfg.Timeframes)),
	}
	for _, tf := range s.cfg.Timeframes {
		ss.aggs[tf] = ohlc.New(key, tf, s.cfg.BarCapacity)
	}
	s.series[key] = ss
	return ss
}

// Ingest appends t to its symbol's series, feeds every timeframe aggregator
// and returns the bars closed by this tick. late counts the timeframes whose
// aggregator dropped t because its bucket had already closed; the raw tick is
// kept either way.
func (s *Store) Ingest(t models.Tick) (closed []models.Bar, late int) {
	t.Symbol = NormalizeSymbol(t.Symbol)
	ss := s.getOrCreate(t.Symbol)

	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.ticks.Push(t)
	ss.last.Store(math.Float64bits(t.Price))

	for _, tf := range s.cfg.Timeframes {
		bar, ok, err := ss.aggs[tf].OnTick(t)
		if errors.Is(err, ohlc.ErrLateTick) {
			late++
			continue
		}
		if ok {
			closed = append(closed, bar)
		}
	}
	return closed, late
}

// Snapshot returns a copy of the last n ticks (all if n <= 0).
func (s *Store) Snapshot(symbol string, n int) []models.Tick {
	ss := s.lookup(symbol)
	if ss == nil {
		return nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.ticks.Last(n)
}

// Bars returns a copy of the last n closed bars for tf (all if n <= 0).
func (s *Store) Bars(symbol string, tf domrepo.Timeframe, n int) []models.Bar {
	ss := s.lookup(symbol)
	if ss == nil {
		return nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	agg, ok := ss.aggs[tf]
	if !ok {
		return nil
	}
	return agg.Bars(n)
}

// Series copies ticks and bars of one symbol under a single read lock.
func (s *Store) Series(symbol string, tf domrepo.Timeframe, ticks, bars int) SeriesSnapshot {
	out := SeriesSnapshot{Symbol: NormalizeSymbol(symbol)}
	ss := s.lookup(symbol)
	if ss == nil {
		return out
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	ss.copyInto(&out, tf, ticks, bars)
	return out
}

// copyInto fills out from ss. The caller holds ss.mu.
func (ss *SymbolSeries) copyInto(out *SeriesSnapshot, tf domrepo.Timeframe, ticks, bars int) {
	out.Ticks = ss.ticks.Last(ticks)
	if agg, ok := ss.aggs[tf]; ok {
		out.Bars = agg.Bars(bars)
	}
}

// PairSeries copies two symbols' history as one snapshot. Both series locks
// are held together, taken in symbol order, so no tick lands on one leg
// between the two copies.
func (s *Store) PairSeries(a, b string, tf domrepo.Timeframe) (SeriesSnapshot, SeriesSnapshot) {
	pa := SeriesSnapshot{Symbol: NormalizeSymbol(a)}
	pb := SeriesSnapshot{Symbol: NormalizeSymbol(b)}
	sa, sb := s.lookup(a), s.lookup(b)

	locked := make([]*SymbolSeries, 0, 2)
	for _, ss := range []*SymbolSeries{sa, sb} {
		if ss != nil && (len(locked) == 0 || locked[0] != ss) {
			locked = append(locked, ss)
		}
	}
	sort.Slice(locked, func(i, j int) bool { return locked[i].symbol < locked[j].symbol })
	for _, ss := range locked {
		ss.mu.RLock()
		defer ss.mu.RUnlock()
	}

	if sa != nil {
		sa.copyInto(&pa, tf, 0, 0)
	}
	if sb != nil {
		sb.copyInto(&pb, tf, 0, 0)
	}
	return pa, pb
}

// LatestPrice returns the last ingested price, or 0 if the symbol has no ticks.
func (s *Store) LatestPrice(symbol string) float64 {
	ss := s.lookup(symbol)
	if ss == nil {
		return 0
	}
	return math.Float64frombits(ss.last.Load())
}

// Symbols lists every symbol with a series, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.series))
	for k := range s.series {
		out = append(out, k)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Has reports whether symbol has received at least one tick.
func (s *Store) Has(symbol string) bool { return s.lookup(symbol) != nil }

// Clear drops every series.
func (s *Store) Clear() {
	s.mu.Lock()
	s.series = make(map[string]*SymbolSeries)
	s.mu.Unlock()
}

// Timeframes returns the aggregated timeframes.
func (s *Store) Timeframes() []domrepo.Timeframe {
	return append([]domrepo.Timeframe(nil), s.cfg.Timeframes...)
}
