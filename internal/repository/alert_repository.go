package repository

import (
	"context"
	"errors"
	"fmt"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	"PairFlow/pkg/cache"
)

// AlertsKey is the cache key holding the ordered alert list.
const AlertsKey = "trading_alerts"

// CacheAlertRepository implements AlertRepository on a cache.Service.
type CacheAlertRepository struct {
	cache cache.Service
	key   string
}

// NewAlertRepository creates an alert repository backed by c.
func NewAlertRepository(c cache.Service) domrepo.AlertRepository {
	return &CacheAlertRepository{cache: c, key: AlertsKey}
}

// Load returns the persisted alerts in order. A missing key is an empty
// list. Triggered is reset since edge state does not survive a restart.
func (r *CacheAlertRepository) Load(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := r.cache.Get(ctx, r.key, &alerts); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return []models.Alert{}, nil
		}
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	for i := range alerts {
		alerts[i].Triggered = false
	}
	return alerts, nil
}

// Save replaces the persisted list. Alerts never expire.
func (r *CacheAlertRepository) Save(ctx context.Context, alerts []models.Alert) error {
	if alerts == nil {
		alerts = []models.Alert{}
	}
	if err := r.cache.Set(ctx, r.key, alerts, 0); err != nil {
		return fmt.Errorf("save alerts: %w", err)
	}
	return nil
}
