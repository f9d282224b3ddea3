// Package ohlc buckets ticks into closed OHLC bars for one (symbol, timeframe).
package ohlc

import (
	"errors"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	"PairFlow/pkg/ring"
)

// DefaultCapacity is the number of closed bars kept per timeframe.
const DefaultCapacity = 500

// ErrLateTick is returned for a tick whose bucket has already closed.
var ErrLateTick = errors.New("ohlc: tick belongs to a closed bucket")

// Aggregator is a forward-only bucket state machine. A bar is emitted only
// when a tick from a later bucket arrives, and a closed bar is never revised.
// It is not safe for concurrent use; the owning series serializes OnTick.
type Aggregator struct {
	symbol string
	tf     domrepo.Timeframe
	width  int64

	started bool
	// open is the bucket that ticks currently accumulate into. Everything
	// before it is closed (lastClosedBucket boundary).
	open    int64
	pending []models.Tick
	bars    *ring.Buffer[models.Bar]
	late    int
}

// New creates an aggregator. capacity <= 0 uses DefaultCapacity.
func New(symbol string, tf domrepo.Timeframe, capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Aggregator{
		symbol: symbol,
		tf:     tf,
		width:  tf.WidthMillis(),
		bars:   ring.New[models.Bar](capacity),
	}
}

// Bucket aligns ts (epoch ms) down to a multiple of width.
func Bucket(ts, width int64) int64 {
	if width <= 0 {
		return ts
	}
	m := ts % width
	if m < 0 {
		m += width
	}
	return ts - m
}

// OnTick folds t into the state machine and returns the bar it closed, if any.
// A tick for the open bucket joins the open bar. A tick for an earlier bucket
// is dropped with ErrLateTick and never reaches any bar.
func (a *Aggregator) OnTick(t models.Tick) (models.Bar, bool, error) {
	b := Bucket(t.Timestamp, a.width)
	if !a.started {
		a.started = true
		a.open = b
		a.pending = append(a.pending[:0], t)
		return models.Bar{}, false, nil
	}
	switch {
	case b < a.open:
		a.late++
		return models.Bar{}, false, ErrLateTick
	case b == a.open:
		a.pending = append(a.pending, t)
		return models.Bar{}, false, nil
	}

	bar, ok := a.build()
	if ok {
		a.bars.Push(bar)
	}
	a.pending = append(a.pending[:0], t)
	a.open = b
	return bar, ok, nil
}

// build summarizes pending into a bar stamped with the open bucket.
func (a *Aggregator) build() (models.Bar, bool) {
	if len(a.pending) == 0 {
		return models.Bar{}, false
	}
	first := a.pending[0]
	bar := models.Bar{
		Symbol:      a.symbol,
		Timeframe:   string(a.tf),
		BucketStart: a.open,
		Open:        first.Price,
		High:        first.Price,
		Low:         first.Price,
		Close:       a.pending[len(a.pending)-1].Price,
	}
	for _, t := range a.pending {
		if t.Price > bar.High {
			bar.High = t.Price
		}
		if t.Price < bar.Low {
			bar.Low = t.Price
		}
		bar.Volume += t.Size
		bar.Trades++
	}
	return bar, true
}

// Bars returns a copy of the newest n closed bars, oldest first.
func (a *Aggregator) Bars(n int) []models.Bar { return a.bars.Last(n) }

// Len returns the number of closed bars held.
func (a *Aggregator) Len() int { return a.bars.Len() }

// Forming returns the still-open bar built from pending ticks.
func (a *Aggregator) Forming() (models.Bar, bool) { return a.build() }

// Late returns how many ticks were dropped for a closed bucket.
func (a *Aggregator) Late() int { return a.late }

func (a *Aggregator) Timeframe() domrepo.Timeframe { return a.tf }
