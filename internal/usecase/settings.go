package usecase

import (
	"fmt"
	"sync"

	"PairFlow/internal/domain/models"
	"PairFlow/internal/store"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var settingsValidator = validator.New()

// SettingsStore holds the active analytics settings.
type SettingsStore struct {
	mu sync.RWMutex
	s  models.Settings
}

// NewSettingsStore validates initial and keeps it as the active settings.
func NewSettingsStore(initial models.Settings) (*SettingsStore, error) {
	s, err := normalizeSettings(initial)
	if err != nil {
		return nil, err
	}
	return &SettingsStore{s: s}, nil
}

// Get returns a copy of the active settings.
func (st *SettingsStore) Get() models.Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := st.s
	out.Symbols = append([]string(nil), st.s.Symbols...)
	return out
}

// Update replaces the active settings. Invalid settings leave the active
// ones untouched and return an error wrapping ErrInvalidSettings.
func (st *SettingsStore) Update(next models.Settings) (models.Settings, error) {
	s, err := normalizeSettings(next)
	if err != nil {
		return models.Settings{}, err
	}
	st.mu.Lock()
	st.s = s
	st.mu.Unlock()
	return st.Get(), nil
}

func normalizeSettings(s models.Settings) (models.Settings, error) {
	symbols := make([]string, len(s.Symbols))
	for i, sym := range s.Symbols {
		symbols[i] = store.NormalizeSymbol(sym)
	}
	s.Symbols = symbols
	if err := defaults.Set(&s); err != nil {
		return models.Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := settingsValidator.Struct(s); err != nil {
		return models.Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.Primary() == s.Secondary() {
		return models.Settings{}, fmt.Errorf("%w: primary and secondary symbol must differ", ErrInvalidSettings)
	}
	return s, nil
}
