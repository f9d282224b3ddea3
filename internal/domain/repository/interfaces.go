package repository

import (
	"context"

	"PairFlow/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher fans domain events out to downstream consumers.
type Publisher interface {
	PublishTick(ctx context.Context, t models.Tick) error
	PublishBar(ctx context.Context, b models.Bar) error
	PublishNotification(ctx context.Context, n models.AlertNotification) error
	Close() error
}

// AlertRepository persists the ordered alert list under one key.
type AlertRepository interface {
	Load(ctx context.Context) ([]models.Alert, error)
	Save(ctx context.Context, alerts []models.Alert) error
}

type Metrics interface {
	RecordTick(symbol string)
	RecordBarClosed(symbol, timeframe string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordAlertFired(alertType string)
	RecordZScore(z float64)
}
