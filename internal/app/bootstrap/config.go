// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/system/phaseclock"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATAPULSE"

// Datasource names accepted by the datasource key.
const (
	DatasourcePostgres = "postgres"
	DatasourceMongo    = "mongo"
	DatasourceStatic   = "static"
)

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: datasource, postgres_dsn, etc.
//   - Environment variables: STRATAPULSE_DATASOURCE, STRATAPULSE_POSTGRES_DSN, etc.
//   - Command-line flags: --datasource, --postgres_dsn, etc.
var appConfigKeys = []config.AppKey{
	{Name: "datasource", Default: DatasourceStatic, Desc: "Where fair figures come from: 'postgres', 'mongo' or 'static'"},

	{Name: "postgres_dsn", Default: "postgres://localhost:5432/jobfair", Desc: "PostgreSQL connection string"},
	{Name: "postgres_max_conns", Default: 10, Desc: "PostgreSQL max pool connections (default: 10)"},

	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "jobfair", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "mongo_ensure_indexes", Default: true, Desc: "Create the read indexes on the fair collections at startup (needs write access)"},

	// Session cadence
	{Name: "refresh_interval", Default: "60s", Desc: "How often each dashboard refetches its data"},
	{Name: "countdown_interval", Default: "1s", Desc: "Countdown tick interval"},
	{Name: "animation_interval", Default: "1s", Desc: "Transaction reveal tick interval"},
	{Name: "animation_max_step", Default: 7, Desc: "Reveal steps until the whole day is shown"},
	{Name: "reveal_base_hour", Default: 9, Desc: "First hour of day shown by the reveal"},
	{Name: "session_idle_timeout", Default: "10m", Desc: "Close dashboard sessions with no client after this long"},
	{Name: "fetch_timeout", Default: "10s", Desc: "Timeout for one datasource query"},

	// Event window
	{Name: "event_start", Default: "2025-04-23T09:00:00+06:00", Desc: "Fair opening time (RFC3339)"},
	{Name: "event_end", Default: "2025-04-23T16:00:00+06:00", Desc: "Fair closing time (RFC3339)"},

	// Page chrome
	{Name: "event_title", Default: "Technical Job Fair", Desc: "Title shown in the dashboard header"},
	{Name: "footer_html", Default: "", Desc: "Footer text or small HTML fragment (sanitized)"},
	{Name: "chart_assets_host", Default: "", Desc: "Base URL for echarts scripts (blank uses the public CDN)"},

	// Theme preference cookie
	{Name: "default_theme", Default: string(models.ThemeDark), Desc: "Theme for first-time visitors: 'dark' or 'light'"},
	{Name: "theme_cookie_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Theme cookie signing key (must be strong in production)"},
	{Name: "theme_cookie_name", Default: "stratapulse-prefs", Desc: "Theme cookie name"},
	{Name: "theme_cookie_max_age", Default: "8760h", Desc: "Theme cookie max age (e.g., 720h, 8760h)"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATAPULSE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		Datasource: appValues.String("datasource"),

		PostgresDSN:      appValues.String("postgres_dsn"),
		PostgresMaxConns: int32(appValues.Int("postgres_max_conns")),

		MongoURI:           appValues.String("mongo_uri"),
		MongoDatabase:      appValues.String("mongo_database"),
		MongoMaxPoolSize:   uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize:   uint64(appValues.Int("mongo_min_pool_size")),
		MongoEnsureIndexes: appValues.Bool("mongo_ensure_indexes"),

		RefreshInterval:    appValues.Duration("refresh_interval", 60*time.Second),
		CountdownInterval:  appValues.Duration("countdown_interval", time.Second),
		AnimationInterval:  appValues.Duration("animation_interval", time.Second),
		AnimationMaxStep:   appValues.Int("animation_max_step"),
		RevealBaseHour:     appValues.Int("reveal_base_hour"),
		SessionIdleTimeout: appValues.Duration("session_idle_timeout", 10*time.Minute),
		FetchTimeout:       appValues.Duration("fetch_timeout", 10*time.Second),

		EventStart: appValues.String("event_start"),
		EventEnd:   appValues.String("event_end"),

		EventTitle:      appValues.String("event_title"),
		FooterHTML:      appValues.String("footer_html"),
		ChartAssetsHost: appValues.String("chart_assets_host"),

		DefaultTheme:      appValues.String("default_theme"),
		ThemeCookieKey:    appValues.String("theme_cookie_key"),
		ThemeCookieName:   appValues.String("theme_cookie_name"),
		ThemeCookieMaxAge: appValues.Duration("theme_cookie_max_age", 365*24*time.Hour),

		CSRFKey: appValues.String("csrf_key"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Every configuration error surfaces here, before any session exists.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.Datasource {
	case DatasourcePostgres:
		if appCfg.PostgresDSN == "" {
			return fmt.Errorf("datasource postgres needs postgres_dsn")
		}
	case DatasourceMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
	case DatasourceStatic:
		logger.Warn("serving built-in sample figures; set datasource to postgres or mongo for live data")
	default:
		return fmt.Errorf("unknown datasource %q (want postgres, mongo or static)", appCfg.Datasource)
	}

	if _, err := appCfg.Clock(); err != nil {
		return err
	}
	if appCfg.AnimationMaxStep < 0 {
		return fmt.Errorf("animation_max_step must not be negative, got %d", appCfg.AnimationMaxStep)
	}
	if appCfg.RevealBaseHour < 0 || appCfg.RevealBaseHour > 23 {
		return fmt.Errorf("reveal_base_hour must be an hour of day, got %d", appCfg.RevealBaseHour)
	}
	if models.ParseTheme(appCfg.DefaultTheme, "") == "" {
		return fmt.Errorf("default_theme must be dark or light, got %q", appCfg.DefaultTheme)
	}
	for name, d := range map[string]time.Duration{
		"refresh_interval":     appCfg.RefreshInterval,
		"countdown_interval":   appCfg.CountdownInterval,
		"animation_interval":   appCfg.AnimationInterval,
		"session_idle_timeout": appCfg.SessionIdleTimeout,
		"fetch_timeout":        appCfg.FetchTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	return nil
}

// Clock parses the event window.
func (c AppConfig) Clock() (phaseclock.Clock, error) {
	start, err := time.Parse(time.RFC3339, c.EventStart)
	if err != nil {
		return phaseclock.Clock{}, fmt.Errorf("event_start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, c.EventEnd)
	if err != nil {
		return phaseclock.Clock{}, fmt.Errorf("event_end: %w", err)
	}
	return phaseclock.New(start, end)
}
