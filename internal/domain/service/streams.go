package service

import (
	"context"

	"PairFlow/internal/domain/models"
)

// TickSink receives every tick accepted by the store. Implementations must not block.
type TickSink interface {
	OnTick(ctx context.Context, t models.Tick)
}

// BarSink receives bars as they close.
type BarSink interface {
	OnBar(ctx context.Context, b models.Bar)
}

// AnalyticsSource exposes the latest published analytics snapshot, or nil
// before the first cycle.
type AnalyticsSource interface {
	Latest() *models.AnalyticsResult
}
