// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratapulse/internal/app/features/errors"
	"github.com/dalemusser/stratapulse/internal/app/features/fairdash"
	healthfeature "github.com/dalemusser/stratapulse/internal/app/features/health"
	appresources "github.com/dalemusser/stratapulse/internal/app/resources"
	"github.com/dalemusser/stratapulse/internal/app/system/metrics"
	"github.com/dalemusser/stratapulse/internal/app/system/prefs"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, datasource connection and Startup
// have completed. The dashboard lives at "/", each page view opening its own
// session under /s/{sid}. Health probes and /metrics sit alongside.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if hub == nil {
		return nil, fmt.Errorf("session hub not initialized; Startup must run first")
	}
	secure := coreCfg.Env == "prod"

	// Theme preference cookie (signed, client-side only)
	prefStore, err := prefs.NewStore(
		appCfg.ThemeCookieKey,
		appCfg.ThemeCookieName,
		appCfg.ThemeCookieMaxAge,
		secure,
		models.ParseTheme(appCfg.DefaultTheme, models.ThemeDark),
		logger,
	)
	if err != nil {
		logger.Error("theme cookie store init failed", zap.Error(err))
		return nil, err
	}

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// CSRF protection for the session actions. Pages carry the token in a
	// meta tag; the client sends it as X-CSRF-Token, or as a form field on
	// the unload beacon.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratapulse_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			http.Error(w, "CSRF token invalid or missing", http.StatusForbidden)
		})),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	trustedOrigins := []string{
		"localhost:8080",
		"localhost:3000",
		"127.0.0.1:8080",
		"127.0.0.1:3000",
	}
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins(trustedOrigins))
	}
	r.Use(csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	r.Group(func(sr chi.Router) {
		// Request timeout middleware: prevents requests from hanging indefinitely.
		sr.Use(chimw.Timeout(30 * time.Second))

		// Health check endpoints for load balancers and orchestrators
		healthHandler := healthfeature.NewHandler(deps.SourceName, deps.Source, logger)
		sr.Mount("/health", healthfeature.Routes(healthHandler))
		healthfeature.MountRootEndpoints(sr, healthHandler)

		// Prometheus scrape endpoint
		sr.Handle("/metrics", metrics.Handler())

		// Static assets with pre-compressed file support (gzip/brotli)
		// /static/* serves operator-supplied files from disk (logos, fonts)
		sr.Handle("/static/*", fileserver.Handler("/static", "static"))

		// /assets/* serves embedded assets (bundled into the binary)
		sr.Handle("/assets/*", appresources.AssetsHandler("/assets"))
	})

	// Live dashboard. Its router applies the request timeout itself so the
	// websocket route stays outside it.
	dashHandler := fairdash.NewHandler(hub, prefStore, sessionOpts, errLog, logger)
	r.Mount("/", fairdash.Routes(dashHandler))

	// Error pages
	errorsHandler := errorsfeature.NewHandler(prefStore)
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	return r, nil
}
