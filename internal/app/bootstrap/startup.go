// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/stratapulse/internal/app/features/fairdash"
	"github.com/dalemusser/stratapulse/internal/app/resources"
	"github.com/dalemusser/stratapulse/internal/app/store/fairdata"
	"github.com/dalemusser/stratapulse/internal/app/system/metrics"
	"github.com/dalemusser/stratapulse/internal/app/system/render"
	"github.com/dalemusser/stratapulse/internal/app/system/tasks"
	"github.com/dalemusser/stratapulse/internal/app/system/timeouts"
	"github.com/dalemusser/stratapulse/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs once after the datasource is connected, but before the HTTP
// handler is built and requests are served.
//
// It loads the shared templates, applies the page chrome and timeouts, and
// creates the session hub with its idle reaper. Returning a non-nil error
// aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()

	viewdata.Init(viewdata.Site{
		Name:   appCfg.EventTitle,
		Footer: appCfg.FooterHTML,
	})
	timeouts.Configure(timeouts.Config{Fetch: appCfg.FetchTimeout})
	metrics.InitQueries(fairdata.Queries())

	clock, err := appCfg.Clock()
	if err != nil {
		return fmt.Errorf("event window: %w", err)
	}
	sessionOpts = fairdash.Options{
		Clock:            clock,
		RefreshEvery:     appCfg.RefreshInterval,
		CountdownEvery:   appCfg.CountdownInterval,
		AnimationEvery:   appCfg.AnimationInterval,
		AnimationMaxStep: appCfg.AnimationMaxStep,
		RevealBaseHour:   appCfg.RevealBaseHour,
	}
	hub = fairdash.NewHub(fairdash.Deps{
		Source:   deps.Source,
		Renderer: render.New(render.Options{AssetsHost: appCfg.ChartAssetsHost}),
		Options:  sessionOpts,
		Logger:   logger,
	})

	startTaskRunner(appCfg, logger)

	logger.Info("dashboard ready",
		zap.String("datasource", deps.SourceName),
		zap.Time("event_start", clock.Start()),
		zap.Time("event_end", clock.End()),
		zap.Duration("refresh_interval", appCfg.RefreshInterval),
	)
	return nil
}

var (
	// hub is the registry of open dashboard sessions, closed at shutdown.
	hub         *fairdash.Hub
	sessionOpts fairdash.Options

	// taskRunner is the global task runner instance, used for graceful shutdown.
	taskRunner *tasks.Runner
)

// startTaskRunner initializes and starts the background task runner.
func startTaskRunner(appCfg AppConfig, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	// Close sessions whose page went away without saying so
	taskRunner.Register(tasks.SessionReaperJob(hub, appCfg.SessionIdleTimeout, logger))

	taskRunner.Start(context.Background())
}
