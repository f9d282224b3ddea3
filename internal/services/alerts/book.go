// Package alerts holds user alerts and evaluates them as edge-triggered
// state machines over live metric values.
package alerts

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"PairFlow/internal/domain/models"
	"PairFlow/pkg/ring"

	"github.com/google/uuid"
)

const (
	DefaultThrottle         = time.Second
	DefaultMaxNotifications = 50
	// CrossTolerance is how close a value must be to count as at the threshold.
	CrossTolerance = 0.01
)

var (
	ErrInvalidType      = errors.New("alerts: invalid type")
	ErrInvalidCondition = errors.New("alerts: invalid condition")
	ErrSymbolRequired   = errors.New("alerts: symbol required")
	ErrInvalidValue     = errors.New("alerts: value must be finite")
)

// Option configures Book.
type Option func(*Config)

// Config holds evaluator configuration.
type Config struct {
	Throttle         time.Duration
	MaxNotifications int
	NewID            func() string
}

// WithThrottle sets the minimum time between two evaluations of one alert.
func WithThrottle(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Throttle = d
		}
	}
}

// WithMaxNotifications bounds the notification log.
func WithMaxNotifications(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxNotifications = n
		}
	}
}

// WithIDGenerator replaces uuid generation, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(c *Config) {
		if fn != nil {
			c.NewID = fn
		}
	}
}

// Book owns the ordered alert list, the per-alert throttle clock and the
// bounded notification log. All methods are safe for concurrent use.
type Book struct {
	cfg           Config
	mu            sync.Mutex
	alerts        []models.Alert
	lastCheck     map[string]time.Time
	notifications *ring.Buffer[models.AlertNotification]
}

// NewBook creates an empty book.
func NewBook(opts ...Option) *Book {
	cfg := Config{
		Throttle:         DefaultThrottle,
		MaxNotifications: DefaultMaxNotifications,
		NewID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Book{
		cfg:           cfg,
		lastCheck:     make(map[string]time.Time),
		notifications: ring.New[models.AlertNotification](cfg.MaxNotifications),
	}
}

// Validate checks the type/condition payload of an alert.
func Validate(a models.Alert) error {
	switch a.Type {
	case models.AlertZScore, models.AlertSpread:
	case models.AlertPrice, models.AlertVolume:
		if strings.TrimSpace(a.Symbol) == "" {
			return fmt.Errorf("%w for %s alerts", ErrSymbolRequired, a.Type)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, a.Type)
	}
	switch a.Condition {
	case models.ConditionAbove, models.ConditionBelow, models.ConditionCross:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCondition, a.Condition)
	}
	if math.IsNaN(a.Value) || math.IsInf(a.Value, 0) {
		return ErrInvalidValue
	}
	return nil
}

// Add validates and appends a new alert in the Idle state.
func (b *Book) Add(a models.Alert) (models.Alert, error) {
	a.Symbol = strings.ToLower(strings.TrimSpace(a.Symbol))
	if err := Validate(a); err != nil {
		return models.Alert{}, err
	}
	if a.ID == "" {
		a.ID = b.cfg.NewID()
	}
	a.Triggered = false
	a.LastTriggered = nil

	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = append(b.alerts, a)
	return a, nil
}

// Remove deletes an alert and reports whether it existed.
func (b *Book) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.alerts {
		if b.alerts[i].ID == id {
			b.alerts = append(b.alerts[:i], b.alerts[i+1:]...)
			delete(b.lastCheck, id)
			return true
		}
	}
	return false
}

// SetEnabled enables or disables an alert.
func (b *Book) SetEnabled(id string, enabled bool) (models.Alert, bool) {
	return b.update(id, func(a *models.Alert) { a.Enabled = enabled })
}

// Toggle flips the enabled flag.
func (b *Book) Toggle(id string) (models.Alert, bool) {
	return b.update(id, func(a *models.Alert) { a.Enabled = !a.Enabled })
}

func (b *Book) update(id string, fn func(*models.Alert)) (models.Alert, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.alerts {
		if b.alerts[i].ID == id {
			fn(&b.alerts[i])
			return b.alerts[i], true
		}
	}
	return models.Alert{}, false
}

// Get returns one alert by id.
func (b *Book) Get(id string) (models.Alert, bool) {
	return b.update(id, func(*models.Alert) {})
}

// List returns a copy of the alerts in insertion order.
func (b *Book) List() []models.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Alert{}, b.alerts...)
}

// Replace swaps in a persisted list. Triggered state never survives a reload.
// Invalid entries are skipped and returned as errors.
func (b *Book) Replace(alerts []models.Alert) []error {
	var errs []error
	next := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if err := Validate(a); err != nil {
			errs = append(errs, fmt.Errorf("alert %s: %w", a.ID, err))
			continue
		}
		if a.ID == "" {
			a.ID = b.cfg.NewID()
		}
		a.Triggered = false
		next = append(next, a)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = next
	b.lastCheck = make(map[string]time.Time)
	return errs
}

// Notifications returns the notification log, newest first.
func (b *Book) Notifications() []models.AlertNotification {
	b.mu.Lock()
	all := b.notifications.All()
	b.mu.Unlock()
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all
}

// ClearNotifications empties the notification log.
func (b *Book) ClearNotifications() {
	b.mu.Lock()
	b.notifications.Reset()
	b.mu.Unlock()
}

// Check runs one evaluation pass at time now. It returns the notifications
// emitted by Idle->Triggered transitions and whether any alert changed state.
func (b *Book) Check(values models.MetricValues, now time.Time) ([]models.AlertNotification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var fired []models.AlertNotification
	changed := false
	for i := range b.alerts {
		a := &b.alerts[i]
		if !a.Enabled {
			continue
		}
		if last, ok := b.lastCheck[a.ID]; ok && now.Sub(last) < b.cfg.Throttle {
			continue
		}
		v, ok := currentValue(*a, values)
		if !ok {
			continue
		}
		b.lastCheck[a.ID] = now

		should := shouldTrigger(*a, v)
		switch {
		case should && !a.Triggered:
			n := b.notification(*a, v, now)
			at := now
			a.Triggered = true
			a.LastTriggered = &at
			b.notifications.Push(n)
			fired = append(fired, n)
			changed = true
		case !should && a.Triggered:
			a.Triggered = false
			changed = true
		}
	}
	return fired, changed
}

func currentValue(a models.Alert, mv models.MetricValues) (float64, bool) {
	switch a.Type {
	case models.AlertZScore:
		if mv.ZScore == nil {
			return 0, false
		}
		return *mv.ZScore, true
	case models.AlertSpread:
		if mv.Spread == nil {
			return 0, false
		}
		return *mv.Spread, true
	case models.AlertPrice:
		v, ok := mv.Prices[a.Symbol]
		return v, ok
	case models.AlertVolume:
		v, ok := mv.Volume[a.Symbol]
		return v, ok
	default:
		return 0, false
	}
}

// shouldTrigger evaluates the condition. For cross the result depends on the
// current state: an Idle alert fires when the value reaches the threshold, a
// Triggered alert stays triggered only while the value is away from it.
func shouldTrigger(a models.Alert, v float64) bool {
	switch a.Condition {
	case models.ConditionAbove:
		return v > a.Value
	case models.ConditionBelow:
		return v < a.Value
	case models.ConditionCross:
		if a.Triggered {
			return math.Abs(v-a.Value) > CrossTolerance
		}
		return math.Abs(v-a.Value) <= CrossTolerance
	default:
		return false
	}
}

func (b *Book) notification(a models.Alert, v float64, now time.Time) models.AlertNotification {
	severity := models.SeverityWarning
	if a.Type == models.AlertZScore && math.Abs(v) > 2 {
		severity = models.SeverityCritical
	}
	subject := a.Symbol
	if subject == "" {
		subject = "pair"
	}
	return models.AlertNotification{
		ID:      b.cfg.NewID(),
		AlertID: a.ID,
		Message: fmt.Sprintf("%s Alert: %s %s %s (current: %.4f)",
			strings.ToUpper(string(a.Type)), subject, a.Condition,
			strconv.FormatFloat(a.Value, 'f', -1, 64), v),
		Timestamp: now,
		Severity:  severity,
	}
}
