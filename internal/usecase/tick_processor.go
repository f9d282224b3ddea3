package usecase

import (
	"context"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	domsvc "PairFlow/internal/domain/service"
	"PairFlow/internal/store"
	"PairFlow/pkg/logger"
)

// TickProcessor ingests validated ticks into the store and fans the tick and
// any bars it closed out to sinks and the publisher. It runs on the
// pipeline worker of the tick's symbol.
type TickProcessor struct {
	store     *store.Store
	publisher domrepo.Publisher
	metrics   domrepo.Metrics
	log       *logger.Logger
	tickSinks []domsvc.TickSink
	barSinks  []domsvc.BarSink
}

// NewTickProcessor creates a TickProcessor. publisher may be nil.
func NewTickProcessor(st *store.Store, publisher domrepo.Publisher, metrics domrepo.Metrics, log *logger.Logger) *TickProcessor {
	return &TickProcessor{store: st, publisher: publisher, metrics: metrics, log: log}
}

// AddTickSink registers s for every ingested tick. Not safe after Start.
func (p *TickProcessor) AddTickSink(s domsvc.TickSink) {
	if s != nil {
		p.tickSinks = append(p.tickSinks, s)
	}
}

// AddBarSink registers s for every closed bar. Not safe after Start.
func (p *TickProcessor) AddBarSink(s domsvc.BarSink) {
	if s != nil {
		p.barSinks = append(p.barSinks, s)
	}
}

// Process implements middleware.Proc. Publish failures and ticks too late
// for a closed bar are counted; the tick is stored regardless.
func (p *TickProcessor) Process(ctx context.Context, t models.Tick) error {
	t.Symbol = store.NormalizeSymbol(t.Symbol)
	bars, late := p.store.Ingest(t)
	if late > 0 {
		p.metrics.RecordError("late_tick")
	}

	p.metrics.RecordTick(t.Symbol)
	p.metrics.RecordLastPrice(t.Symbol, t.Price)
	for _, s := range p.tickSinks {
		s.OnTick(ctx, t)
	}
	if p.publisher != nil {
		if err := p.publisher.PublishTick(ctx, t); err != nil {
			p.metrics.RecordError("publish_tick")
			p.log.Debug("publish tick", logger.String("symbol", t.Symbol), logger.Error(err))
		}
	}

	for _, b := range bars {
		p.metrics.RecordBarClosed(b.Symbol, b.Timeframe)
		for _, s := range p.barSinks {
			s.OnBar(ctx, b)
		}
		if p.publisher != nil {
			if err := p.publisher.PublishBar(ctx, b); err != nil {
				p.metrics.RecordError("publish_bar")
				p.log.Debug("publish bar", logger.String("symbol", b.Symbol), logger.Error(err))
			}
		}
	}
	return nil
}
