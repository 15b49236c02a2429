// internal/app/features/fairdash/types.go
package fairdash

import (
	"errors"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/store/fairdata"
	"github.com/dalemusser/stratapulse/internal/app/system/phaseclock"
	"github.com/dalemusser/stratapulse/internal/app/system/render"
	"github.com/dalemusser/stratapulse/internal/app/system/viewdata"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"go.uber.org/zap"
)

// ErrClosed is returned for operations on a session that has been torn down.
var ErrClosed = errors.New("fairdash: session closed")

// ErrInvalidValue is returned when an action carries an unknown option.
var ErrInvalidValue = errors.New("fairdash: invalid value")

// Graph node names.
const (
	sigTab          = "tab"
	sigTheme        = "theme"
	sigNow          = "now"
	sigRefresh      = "refresh"
	sigSeries       = "series"
	sigChart        = "chart"
	sigAnimation    = "animation"
	sigSummary      = "summary"
	sigIntervals    = "intervals"
	sigTransactions = "transactions"

	nodePhase       = "phase"
	nodeSummaryRows = "summary_rows"
	nodePercentRows = "percentage_rows"
	nodePies        = "pies"
	nodeHourly      = "hourly"
	nodeCutoff      = "cutoff"
	nodeWindow      = "window"

	sinkFetch       = "fetch"
	sinkTheme       = "theme_view"
	sinkTab         = "tab_view"
	sinkCountdown   = "countdown_view"
	sinkSummary     = "summary_table"
	sinkPercent     = "percentage_table"
	sinkPies        = "pies_view"
	sinkInterval    = "interval_chart"
	sinkTransaction = "transaction_chart"
	sinkAnimation   = "animation_view"
)

// Options holds the per-session cadence and reveal settings.
type Options struct {
	Clock            phaseclock.Clock
	RefreshEvery     time.Duration
	CountdownEvery   time.Duration
	AnimationEvery   time.Duration
	AnimationMaxStep int
	RevealBaseHour   int
}

func (o Options) withDefaults() Options {
	if o.RefreshEvery <= 0 {
		o.RefreshEvery = 60 * time.Second
	}
	if o.CountdownEvery <= 0 {
		o.CountdownEvery = time.Second
	}
	if o.AnimationEvery <= 0 {
		o.AnimationEvery = time.Second
	}
	if o.AnimationMaxStep < 0 {
		o.AnimationMaxStep = 0
	}
	return o
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Source   fairdata.Source
	Renderer *render.Renderer
	Options  Options
	Logger   *zap.Logger
}

// Emitter delivers the fragments produced by one pass to a client.
type Emitter interface {
	Emit(frags []render.Fragment) error
	Close() error
}

// tabVM describes one tab button.
type tabVM struct {
	Value  string
	Label  string
	Active bool
}

// pageData is the view model for the dashboard shell. Panels are empty until
// the websocket delivers the first pass.
type pageData struct {
	viewdata.BaseVM

	SessionID   string
	Tabs        []tabVM
	Tab         string
	SeriesKind  string
	ChartKind   string
	Headline    string
	Subline     string
	EventWindow string
}

var tabLabels = map[models.Tab]string{
	models.TabSummary:     "Summary",
	models.TabApplicants:  "Applicants",
	models.TabTransaction: "৳ Transactions",
}
