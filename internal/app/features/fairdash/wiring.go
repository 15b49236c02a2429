// internal/app/features/fairdash/wiring.go
package fairdash

import (
	"context"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/store/fairdata"
	"github.com/dalemusser/stratapulse/internal/app/system/metrics"
	"github.com/dalemusser/stratapulse/internal/app/system/phaseclock"
	"github.com/dalemusser/stratapulse/internal/app/system/reactive"
	"github.com/dalemusser/stratapulse/internal/app/system/reveal"
	"github.com/dalemusser/stratapulse/internal/app/system/timeouts"
	"github.com/dalemusser/stratapulse/internal/app/system/transforms"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// buildGraph declares the session's signals, derived views and sinks.
func (s *Session) buildGraph(theme models.Theme) (*reactive.Graph, error) {
	g := reactive.New(reactive.WithLogger(s.log), reactive.WithObserver(s.flush))

	maxHour := s.opts.RevealBaseHour + s.opts.AnimationMaxStep
	decls := []func() error{
		func() error { return g.DeclareSignal(sigTab, models.TabSummary) },
		func() error { return g.DeclareSignal(sigTheme, theme) },
		func() error { return g.DeclareSignal(sigNow, time.Now()) },
		func() error { return g.DeclareSignal(sigRefresh, 0) },
		func() error { return g.DeclareSignal(sigSeries, models.SeriesFiveMinute) },
		func() error { return g.DeclareSignal(sigChart, models.ChartLine) },
		func() error { return g.DeclareSignal(sigAnimation, reveal.New(s.opts.AnimationMaxStep)) },
		func() error { return g.DeclareSignal(sigSummary, []models.SummaryRecord{}) },
		func() error { return g.DeclareSignal(sigIntervals, []models.IntervalRow{}) },
		func() error { return g.DeclareSignal(sigTransactions, []models.TransactionRow{}) },

		func() error {
			return g.DeclareDerived(nodePhase, []string{sigNow}, func(in reactive.Inputs) (any, error) {
				now, err := reactive.Read[time.Time](in, sigNow)
				if err != nil {
					return nil, err
				}
				return s.opts.Clock.Evaluate(now), nil
			})
		},
		func() error {
			return g.DeclareDerived(nodeSummaryRows, []string{sigSummary}, func(in reactive.Inputs) (any, error) {
				recs, err := reactive.Read[[]models.SummaryRecord](in, sigSummary)
				if err != nil {
					return nil, err
				}
				return transforms.SummaryRows(recs), nil
			})
		},
		func() error {
			return g.DeclareDerived(nodePercentRows, []string{sigSummary}, func(in reactive.Inputs) (any, error) {
				recs, err := reactive.Read[[]models.SummaryRecord](in, sigSummary)
				if err != nil {
					return nil, err
				}
				return transforms.PercentageRows(recs), nil
			})
		},
		func() error {
			return g.DeclareDerived(nodePies, []string{sigSummary}, func(in reactive.Inputs) (any, error) {
				recs, err := reactive.Read[[]models.SummaryRecord](in, sigSummary)
				if err != nil {
					return nil, err
				}
				return transforms.PieSlices(recs), nil
			})
		},
		func() error {
			return g.DeclareDerived(nodeHourly, []string{sigIntervals}, func(in reactive.Inputs) (any, error) {
				rows, err := reactive.Read[[]models.IntervalRow](in, sigIntervals)
				if err != nil {
					return nil, err
				}
				return transforms.HourlyAggregate(rows)
			})
		},
		func() error {
			return g.DeclareDerived(nodeCutoff, []string{sigAnimation}, func(in reactive.Inputs) (any, error) {
				st, err := reactive.Read[reveal.State](in, sigAnimation)
				if err != nil {
					return nil, err
				}
				return min(s.opts.RevealBaseHour+st.Step, maxHour), nil
			})
		},
		func() error {
			return g.DeclareDerived(nodeWindow, []string{sigTransactions, nodeCutoff}, func(in reactive.Inputs) (any, error) {
				rows, err := reactive.Read[[]models.TransactionRow](in, sigTransactions)
				if err != nil {
					return nil, err
				}
				cutoff, err := reactive.Read[int](in, nodeCutoff)
				if err != nil {
					return nil, err
				}
				return transforms.WindowedSeries(rows, cutoff), nil
			})
		},

		func() error { return g.DeclareSink(sinkFetch, []string{sigRefresh}, s.fetchSink) },
		func() error { return g.DeclareSink(sinkTheme, []string{sigTheme}, s.themeSink) },
		func() error { return g.DeclareSink(sinkTab, []string{sigTab}, s.tabSink) },
		func() error { return g.DeclareSink(sinkCountdown, []string{nodePhase}, s.countdownSink) },
		func() error {
			return g.DeclareSink(sinkSummary, []string{sigTab, sigTheme, nodeSummaryRows}, s.summarySink)
		},
		func() error {
			return g.DeclareSink(sinkPercent, []string{sigTab, sigTheme, nodePercentRows}, s.percentSink)
		},
		func() error { return g.DeclareSink(sinkPies, []string{sigTab, sigTheme, nodePies}, s.piesSink) },
		func() error {
			return g.DeclareSink(sinkInterval, []string{sigTab, sigTheme, sigSeries, sigIntervals, nodeHourly}, s.intervalSink)
		},
		func() error {
			return g.DeclareSink(sinkTransaction, []string{sigTab, sigTheme, sigChart, nodeWindow}, s.transactionSink)
		},
		func() error {
			return g.DeclareSink(sinkAnimation, []string{sigTab, sigAnimation, nodeCutoff}, s.animationSink)
		},
	}
	for _, decl := range decls {
		if err := decl(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func onTab(in reactive.Inputs, tab models.Tab) bool {
	return reactive.ReadOr(in, sigTab, models.TabSummary) == tab
}

func themeOf(in reactive.Inputs) models.Theme {
	return reactive.ReadOr(in, sigTheme, models.ThemeDark)
}

func (s *Session) themeSink(in reactive.Inputs) {
	s.emit(s.renderer.Theme(themeOf(in)), nil)
}

func (s *Session) tabSink(in reactive.Inputs) {
	s.emit(s.renderer.Tab(reactive.ReadOr(in, sigTab, models.TabSummary)), nil)
}

func (s *Session) countdownSink(in reactive.Inputs) {
	st, err := reactive.Read[phaseclock.State](in, nodePhase)
	if err != nil {
		s.log.Warn("countdown unavailable", zap.Error(err))
		return
	}
	s.emit(s.renderer.Countdown(st))
}

func (s *Session) summarySink(in reactive.Inputs) {
	if !onTab(in, models.TabSummary) {
		return
	}
	rows := reactive.ReadOr[[]transforms.SummaryRow](in, nodeSummaryRows, nil)
	s.emit(s.renderer.SummaryTable(rows, themeOf(in)))
}

func (s *Session) percentSink(in reactive.Inputs) {
	if !onTab(in, models.TabSummary) {
		return
	}
	rows := reactive.ReadOr[[]transforms.PercentageRow](in, nodePercentRows, nil)
	s.emit(s.renderer.PercentageTable(rows, themeOf(in)))
}

func (s *Session) piesSink(in reactive.Inputs) {
	if !onTab(in, models.TabApplicants) {
		return
	}
	pies := reactive.ReadOr[[]transforms.Pie](in, nodePies, nil)
	s.emit(s.renderer.Pies(pies, themeOf(in)))
}

func (s *Session) intervalSink(in reactive.Inputs) {
	if !onTab(in, models.TabTransaction) {
		return
	}
	kind := reactive.ReadOr(in, sigSeries, models.SeriesFiveMinute)
	rows := reactive.ReadOr[[]models.IntervalRow](in, sigIntervals, nil)
	counts, err := reactive.Read[[]transforms.HourCount](in, nodeHourly)
	if err != nil {
		if kind == models.SeriesHourly {
			s.log.Warn("hourly aggregate unavailable", zap.Error(err))
		}
		counts = nil
	}
	s.emit(s.renderer.IntervalChart(kind, rows, counts, themeOf(in)))
}

func (s *Session) transactionSink(in reactive.Inputs) {
	if !onTab(in, models.TabTransaction) {
		return
	}
	kind := reactive.ReadOr(in, sigChart, models.ChartLine)
	points := reactive.ReadOr[[]transforms.Point](in, nodeWindow, nil)
	s.emit(s.renderer.TransactionChart(kind, points, themeOf(in)))
}

func (s *Session) animationSink(in reactive.Inputs) {
	if !onTab(in, models.TabTransaction) {
		return
	}
	st := reactive.ReadOr(in, sigAnimation, reveal.New(s.opts.AnimationMaxStep))
	cutoff := reactive.ReadOr(in, nodeCutoff, s.opts.RevealBaseHour)
	s.emit(s.renderer.Animation(st, cutoff))
}

// fetchSink starts one refresh: the three queries run concurrently and each
// result is posted back to the loop on its own.
func (s *Session) fetchSink(in reactive.Inputs) {
	if s.emitter == nil {
		return
	}
	gen := reactive.ReadOr(in, sigRefresh, 0)
	ctx, cancel := context.WithTimeout(s.ctx, timeouts.Fetch())

	var eg errgroup.Group
	eg.Go(func() error {
		recs, err := timed(fairdata.QuerySummary, func() ([]models.SummaryRecord, error) { return s.source.Summary(ctx) })
		if err != nil {
			s.fetchFailed(fairdata.QuerySummary, err)
			recs = []models.SummaryRecord{}
		}
		s.post(func() { s.applyFetch(fairdata.QuerySummary, gen, sigSummary, recs) })
		return nil
	})
	eg.Go(func() error {
		rows, err := timed(fairdata.QueryIntervals, func() ([]models.IntervalRow, error) { return s.source.Intervals(ctx) })
		if err != nil {
			s.fetchFailed(fairdata.QueryIntervals, err)
			rows = []models.IntervalRow{}
		}
		s.post(func() { s.applyFetch(fairdata.QueryIntervals, gen, sigIntervals, rows) })
		return nil
	})
	eg.Go(func() error {
		rows, err := timed(fairdata.QueryTransactions, func() ([]models.TransactionRow, error) { return s.source.Transactions(ctx) })
		if err != nil {
			s.fetchFailed(fairdata.QueryTransactions, err)
			rows = []models.TransactionRow{}
		}
		s.post(func() { s.applyFetch(fairdata.QueryTransactions, gen, sigTransactions, rows) })
		return nil
	})
	go func() {
		defer cancel()
		_ = eg.Wait()
	}()
}

// applyFetch sets a fetched result unless a newer refresh already landed.
func (s *Session) applyFetch(query string, gen int, signal string, v any) {
	if last, ok := s.fetches[query]; ok && gen < last {
		s.log.Debug("dropping superseded fetch result", zap.String("query", query), zap.Int("gen", gen))
		return
	}
	s.fetches[query] = gen
	if err := s.graph.Set(signal, v); err != nil {
		s.log.Error("apply fetch result failed", zap.String("query", query), zap.Error(err))
	}
}

func (s *Session) fetchFailed(query string, err error) {
	if s.ctx.Err() != nil {
		return
	}
	metrics.FetchFailures.WithLabelValues(query).Inc()
	s.log.Warn("datasource query failed, showing empty result",
		zap.String("query", query),
		zap.Error(err))
}

func timed[T any](query string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	metrics.FetchDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	return v, err
}
