// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig carries everything specific to the fair dashboard: which store
// the figures come from, the event window, the refresh cadence and the
// preference cookie.
type AppConfig struct {
	// Datasource selection: "postgres", "mongo" or "static"
	Datasource string

	// PostgreSQL connection configuration
	PostgresDSN      string // pgx connection string
	PostgresMaxConns int32  // Maximum pool connections (0 keeps the pgx default)

	// MongoDB connection configuration
	MongoURI           string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase      string // Database name within MongoDB
	MongoMaxPoolSize   uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize   uint64 // Minimum connections to keep warm (default: 10)
	MongoEnsureIndexes bool   // Create read indexes at startup; failures are logged, not fatal

	// Session cadence
	RefreshInterval    time.Duration // How often each session refetches (default: 60s)
	CountdownInterval  time.Duration // Countdown tick (default: 1s)
	AnimationInterval  time.Duration // Reveal animation tick (default: 1s)
	AnimationMaxStep   int           // Steps until the reveal completes (default: 7)
	RevealBaseHour     int           // First hour shown by the reveal (default: 9)
	SessionIdleTimeout time.Duration // Close sessions with no client after this long (default: 10m)
	FetchTimeout       time.Duration // Per-query datasource timeout (default: 10s)

	// Event window (RFC3339)
	EventStart string
	EventEnd   string

	// Page chrome
	EventTitle      string // Site name in the header
	FooterHTML      string // Sanitized footer fragment
	ChartAssetsHost string // Where chart pages load echarts from (blank uses the go-echarts CDN)

	// Theme preference cookie
	DefaultTheme      string        // "dark" or "light"
	ThemeCookieKey    string        // Signing key (32+ chars in production)
	ThemeCookieName   string        // Cookie name
	ThemeCookieMaxAge time.Duration // Cookie lifetime (default: 8760h)

	// CSRF protection configuration
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)
}
