package store

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatsim/internal/metrics"
)

// Theme is the presentation color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme returns the theme named by s.
func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, true
	case ThemeDark:
		return ThemeDark, true
	}
	return "", false
}

// Preferences stores presentation settings next to the conversation log.
type Preferences struct {
	backend Backend
	logger  zerolog.Logger
}

// NewPreferences creates a Preferences on top of backend.
func NewPreferences(backend Backend, logger zerolog.Logger) *Preferences {
	return &Preferences{
		backend: backend,
		logger:  logger.With().Str("component", "preferences").Logger(),
	}
}

// Theme returns the stored theme, light when unset or unreadable.
func (p *Preferences) Theme(ctx context.Context) Theme {
	data, err := p.backend.Get(ctx, ThemeKey)
	if err != nil {
		return ThemeLight
	}
	if t, ok := ParseTheme(string(data)); ok {
		return t
	}
	return ThemeLight
}

// SetTheme stores t.
func (p *Preferences) SetTheme(ctx context.Context, t Theme) error {
	if err := p.backend.Set(ctx, ThemeKey, []byte(t)); err != nil {
		metrics.PersistenceFailures.WithLabelValues("persist").Inc()
		p.logger.Warn().Err(err).Msg("theme not saved")
		return &PersistenceError{Op: "persist", Key: ThemeKey, Err: err}
	}
	return nil
}
