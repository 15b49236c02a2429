// Package prefs persists visitor preferences in a signed client-side cookie.
// The dashboard stores only the theme; nothing is kept on the server.
package prefs

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const themeKey = "theme"

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "stratapulse-prefs"

// ConfigError is returned when the cookie store cannot be configured.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// Store reads and writes the preference cookie.
type Store struct {
	cookies  *sessions.CookieStore
	name     string
	fallback models.Theme
	logger   *zap.Logger
}

// NewStore creates a preference store.
//
// key signs the cookie and must be at least 32 characters when secure is set.
// fallback is the theme used when the visitor has no stored preference.
func NewStore(key, name string, maxAge time.Duration, secure bool, fallback models.Theme, logger *zap.Logger) (*Store, error) {
	if key == "" {
		return nil, &ConfigError{Message: "theme cookie key is empty; provide ≥32 random chars"}
	}
	if len(key) < 32 {
		if secure {
			return nil, &ConfigError{Message: "theme cookie key is too weak for production; provide ≥32 random chars"}
		}
		logger.Warn("theme cookie key is weak; 32+ random chars required in production",
			zap.Int("length", len(key)))
	}
	if name == "" {
		name = DefaultCookieName
	}

	cookies := sessions.NewCookieStore([]byte(key))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Store{
		cookies:  cookies,
		name:     name,
		fallback: models.ParseTheme(string(fallback), models.ThemeDark),
		logger:   logger,
	}, nil
}

// Name returns the cookie name.
func (s *Store) Name() string { return s.name }

// Default returns the theme used without a stored preference.
func (s *Store) Default() models.Theme { return s.fallback }

// Theme returns the stored theme for r, or the default. A cookie that fails
// to decode is logged and ignored.
func (s *Store) Theme(r *http.Request) models.Theme {
	sess, err := s.cookies.Get(r, s.name)
	if err != nil {
		category := classifyCookieError(err)
		if category == "mac_invalid" {
			s.logger.Warn("preference cookie MAC validation failed",
				zap.String("remote_addr", r.RemoteAddr))
		} else {
			s.logger.Debug("preference cookie ignored",
				zap.String("category", category),
				zap.Error(err))
		}
		return s.fallback
	}
	v, _ := sess.Values[themeKey].(string)
	return models.ParseTheme(v, s.fallback)
}

// SetTheme writes theme to the preference cookie.
func (s *Store) SetTheme(w http.ResponseWriter, r *http.Request, theme models.Theme) error {
	// Get returns a usable new session alongside a decode error.
	sess, _ := s.cookies.Get(r, s.name)
	sess.Values[themeKey] = string(theme)
	return sess.Save(r, w)
}

// classifyCookieError categorizes a cookie decode error for logging.
func classifyCookieError(err error) string {
	var scErr securecookie.Error
	if !errors.As(err, &scErr) {
		return "unknown"
	}
	if !scErr.IsDecode() {
		return "backend"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired timestamp"):
		return "expired"
	case strings.Contains(msg, "mac") || strings.Contains(msg, "hash"):
		return "mac_invalid"
	default:
		return "decode_failed"
	}
}
