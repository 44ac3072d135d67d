package session

import (
	"strconv"

	"musicinfo/internal/logger"
)

// PanelEnabledKey stores the info-panel toggle. It sits outside the cache
// namespace so clearing the cache keeps it.
const PanelEnabledKey = "musicinfo_settings_panel_enabled"

// SettingsStore is the medium settings are persisted in.
type SettingsStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Settings holds user preferences for the info panel.
type Settings struct {
	store  SettingsStore
	logger *logger.Logger
}

// NewSettings creates settings backed by store.
func NewSettings(store SettingsStore, log *logger.Logger) *Settings {
	return &Settings{store: store, logger: log}
}

// PanelEnabled reports whether the info panel is enabled. It defaults to
// true when unset or unreadable.
func (s *Settings) PanelEnabled() bool {
	raw, ok, err := s.store.Get(PanelEnabledKey)
	if err != nil {
		s.logger.Warn("failed to read panel setting: %v", err)
		return true
	}
	if !ok {
		return true
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn("ignoring malformed panel setting %q", raw)
		return true
	}
	return enabled
}

// SetPanelEnabled persists the panel toggle. Write failures are logged.
func (s *Settings) SetPanelEnabled(enabled bool) {
	if err := s.store.Set(PanelEnabledKey, strconv.FormatBool(enabled)); err != nil {
		s.logger.Warn("failed to save panel setting: %v", err)
	}
}

// TogglePanel flips the panel toggle and returns the new value.
func (s *Settings) TogglePanel() bool {
	enabled := !s.PanelEnabled()
	s.SetPanelEnabled(enabled)
	s.logger.Debug("info panel enabled: %v", enabled)
	return enabled
}
