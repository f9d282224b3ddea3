package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"PairFlow/internal/domain/models"
	domrepo "PairFlow/internal/domain/repository"
	domsvc "PairFlow/internal/domain/service"
	"PairFlow/internal/services/alerts"
	"PairFlow/internal/services/analytics"
	"PairFlow/pkg/logger"
)

// AlertService evaluates the alert book against the latest published
// analytics, persists alert state and publishes notifications.
type AlertService struct {
	book      *alerts.Book
	source    domsvc.AnalyticsSource
	repo      domrepo.AlertRepository
	publisher domrepo.Publisher
	metrics   domrepo.Metrics
	log       *logger.Logger
	interval  time.Duration
	now       func() time.Time

	saveMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAlertService creates the service. repo and publisher may be nil.
func NewAlertService(book *alerts.Book, source domsvc.AnalyticsSource, repo domrepo.AlertRepository, publisher domrepo.Publisher, metrics domrepo.Metrics, log *logger.Logger, interval time.Duration) *AlertService {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &AlertService{
		book:      book,
		source:    source,
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		interval:  interval,
		now:       time.Now,
	}
}

// Load replaces the book with the persisted alerts.
func (s *AlertService) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	list, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	for _, e := range s.book.Replace(list) {
		s.log.Warn("skipping persisted alert", logger.Error(e))
	}
	s.log.Info("alerts loaded", logger.Int("count", len(s.book.List())))
	return nil
}

// Start begins the periodic evaluation loop.
func (s *AlertService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop ends the loop and saves the book one last time.
func (s *AlertService) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.save(ctx)
}

// RunOnce evaluates every alert once and returns the emitted notifications.
func (s *AlertService) RunOnce(ctx context.Context) []models.AlertNotification {
	res := s.source.Latest()
	if res == nil {
		return nil
	}
	fired, changed := s.book.Check(analytics.MetricValues(res), s.now())
	for _, n := range fired {
		if a, ok := s.book.Get(n.AlertID); ok {
			s.metrics.RecordAlertFired(string(a.Type))
		}
		s.log.Info("alert fired", logger.String("alert_id", n.AlertID), logger.String("message", n.Message))
		if s.publisher != nil {
			if err := s.publisher.PublishNotification(ctx, n); err != nil {
				s.metrics.RecordError("publish_notification")
				s.log.Warn("publish notification", logger.String("alert_id", n.AlertID), logger.Error(err))
			}
		}
	}
	if changed {
		if err := s.save(ctx); err != nil {
			s.log.Warn("persist alerts", logger.Error(err))
		}
	}
	return fired
}

func (s *AlertService) save(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.repo.Save(ctx, s.book.List()); err != nil {
		s.metrics.RecordError("alerts_save")
		return err
	}
	return nil
}

// List returns every alert in order.
func (s *AlertService) List() []models.Alert { return s.book.List() }

// Create validates and adds an alert, then persists the book.
func (s *AlertService) Create(ctx context.Context, req models.CreateAlertRequest) (models.Alert, error) {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	a, err := s.book.Add(models.Alert{
		Type:      models.AlertType(req.Type),
		Symbol:    req.Symbol,
		Condition: models.AlertCondition(req.Condition),
		Value:     req.Value,
		Enabled:   enabled,
	})
	if err != nil {
		return models.Alert{}, err
	}
	s.persist(ctx)
	return a, nil
}

// Remove deletes the alert with id.
func (s *AlertService) Remove(ctx context.Context, id string) error {
	if !s.book.Remove(id) {
		return ErrAlertNotFound
	}
	s.persist(ctx)
	return nil
}

// SetEnabled enables or disables the alert with id.
func (s *AlertService) SetEnabled(ctx context.Context, id string, enabled bool) (models.Alert, error) {
	a, ok := s.book.SetEnabled(id, enabled)
	if !ok {
		return models.Alert{}, ErrAlertNotFound
	}
	s.persist(ctx)
	return a, nil
}

// Toggle flips enabled on the alert with id.
func (s *AlertService) Toggle(ctx context.Context, id string) (models.Alert, error) {
	a, ok := s.book.Toggle(id)
	if !ok {
		return models.Alert{}, ErrAlertNotFound
	}
	s.persist(ctx)
	return a, nil
}

// Notifications returns the notification log, newest first.
func (s *AlertService) Notifications() []models.AlertNotification { return s.book.Notifications() }

// ClearNotifications empties the notification log.
func (s *AlertService) ClearNotifications() { s.book.ClearNotifications() }

func (s *AlertService) persist(ctx context.Context) {
	if err := s.save(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("persist alerts", logger.Error(err))
	}
}
