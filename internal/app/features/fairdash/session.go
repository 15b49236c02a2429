// internal/app/features/fairdash/session.go
package fairdash

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/store/fairdata"
	"github.com/dalemusser/stratapulse/internal/app/system/metrics"
	"github.com/dalemusser/stratapulse/internal/app/system/reactive"
	"github.com/dalemusser/stratapulse/internal/app/system/render"
	"github.com/dalemusser/stratapulse/internal/app/system/reveal"
	"github.com/dalemusser/stratapulse/internal/app/system/tasks"
	"github.com/dalemusser/stratapulse/internal/app/system/transforms"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"go.uber.org/zap"
)

const eventBuffer = 64

// Session is one browser tab's dashboard. Every graph operation runs on the
// session's event loop goroutine; other goroutines talk to it by posting
// events.
type Session struct {
	ID string

	opts     Options
	source   fairdata.Source
	renderer *render.Renderer
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	done   chan struct{}
	runner *tasks.Runner
	once   sync.Once

	// Owned by the event loop.
	graph   *reactive.Graph
	emitter Emitter
	pending []render.Fragment
	fetches map[string]int // query -> newest refresh generation applied

	mu       sync.Mutex
	lastSeen time.Time
	attached bool
}

// NewSession builds the session graph and starts its event loop and timers.
func NewSession(id string, deps Deps, theme models.Theme) (*Session, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session", id))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       id,
		opts:     deps.Options.withDefaults(),
		source:   deps.Source,
		renderer: deps.Renderer,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan func(), eventBuffer),
		done:     make(chan struct{}),
		fetches:  make(map[string]int),
		lastSeen: time.Now(),
	}

	g, err := s.buildGraph(theme)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build session graph: %w", err)
	}
	g.Release()
	s.graph = g

	s.runner = tasks.New(logger)
	s.runner.Register(tasks.Post("countdown", s.opts.CountdownEvery, false, s.postTime))
	s.runner.Register(tasks.Post("refresh", s.opts.RefreshEvery, true, func(time.Time) { s.post(s.bumpRefresh) }))
	s.runner.Register(tasks.Post("animation", s.opts.AnimationEvery, true, func(time.Time) { s.post(s.tickAnimation) }))

	go s.loop()
	s.runner.Start(ctx)

	logger.Debug("dashboard session opened", zap.String("theme", string(theme)))
	return s, nil
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			if s.ctx.Err() != nil {
				metrics.DiscardedEvents.Inc()
				return
			}
			if !s.run(ev) {
				// Close waits for this loop to exit.
				go s.Close()
				return
			}
		}
	}
}

// run executes one event. A panic closes this session only.
func (s *Session) run(ev func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			metrics.SessionPanics.Inc()
			s.log.Error("session event panicked, closing session",
				zap.Any("panic", p),
				zap.Stack("stack"))
			ok = false
		}
	}()
	ev()
	return true
}

// post queues ev for the event loop. Events posted after Close are dropped.
func (s *Session) post(ev func()) bool {
	if s.ctx.Err() != nil {
		metrics.DiscardedEvents.Inc()
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		metrics.DiscardedEvents.Inc()
		return false
	}
}

// call runs fn on the event loop and waits for its result.
func (s *Session) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	if !s.post(func() { errc <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Close stops the timers and the event loop and closes the attached client.
// Fetches still in flight are cancelled and their results discarded.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.runner.Stop(stopCtx); err != nil {
			s.log.Warn("session timers did not stop in time", zap.Error(err))
		}
		<-s.done

		// The loop has exited, so the emitter is no longer shared.
		if s.emitter != nil {
			_ = s.emitter.Close()
			s.emitter = nil
			metrics.AttachedClients.Dec()
		}
		s.log.Debug("dashboard session closed")
	})
}

// Done is closed once the event loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// IdleFor reports how long the session has had no attached client. Attached
// sessions are never idle; closed sessions always are.
func (s *Session) IdleFor(now time.Time) time.Duration {
	if s.ctx.Err() != nil {
		return math.MaxInt64
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return 0
	}
	return now.Sub(s.lastSeen)
}

// Attach makes em the session's client and sends it the full view. A
// previously attached client is closed.
func (s *Session) Attach(ctx context.Context, em Emitter) error {
	return s.call(ctx, func() error {
		if s.emitter != nil {
			_ = s.emitter.Close()
		} else {
			metrics.AttachedClients.Inc()
		}
		s.emitter = em
		s.pending = s.pending[:0]
		s.setAttached(true)
		return s.graph.Refresh()
	})
}

func (s *Session) setAttached(v bool) {
	s.mu.Lock()
	s.attached = v
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Detach drops em if it is still the attached client.
func (s *Session) Detach(em Emitter) {
	s.post(func() {
		if s.emitter != em {
			return
		}
		s.emitter = nil
		metrics.AttachedClients.Dec()
		s.setAttached(false)
	})
}

func (s *Session) set(name string, v any) error {
	s.touch()
	return s.graph.Set(name, v)
}

// SelectTab switches the visible tab.
func (s *Session) SelectTab(ctx context.Context, tab string) error {
	if !models.IsValidTab(tab) {
		return fmt.Errorf("%w: tab %q", ErrInvalidValue, tab)
	}
	return s.call(ctx, func() error { return s.set(sigTab, models.Tab(tab)) })
}

// SetTheme applies theme.
func (s *Session) SetTheme(ctx context.Context, theme models.Theme) error {
	return s.call(ctx, func() error { return s.set(sigTheme, theme) })
}

// ToggleTheme flips the theme and returns the new one.
func (s *Session) ToggleTheme(ctx context.Context) (models.Theme, error) {
	var next models.Theme
	err := s.call(ctx, func() error {
		cur := reactive.ValueOf[models.Theme](s.graph.Peek(sigTheme))
		next = cur.Toggle()
		return s.set(sigTheme, next)
	})
	return next, err
}

// SetSeries selects the 5-minute or hourly interval view.
func (s *Session) SetSeries(ctx context.Context, kind string) error {
	if !models.IsValidSeriesKind(kind) {
		return fmt.Errorf("%w: series %q", ErrInvalidValue, kind)
	}
	return s.call(ctx, func() error { return s.set(sigSeries, models.SeriesKind(kind)) })
}

// SetChart selects how the transaction series is drawn.
func (s *Session) SetChart(ctx context.Context, kind string) error {
	if !models.IsValidChartKind(kind) {
		return fmt.Errorf("%w: chart %q", ErrInvalidValue, kind)
	}
	return s.call(ctx, func() error { return s.set(sigChart, models.ChartKind(kind)) })
}

// StartAnimation begins the transaction reveal. Starting a running or
// finished animation changes nothing.
func (s *Session) StartAnimation(ctx context.Context) error {
	return s.call(ctx, func() error {
		cur := reactive.ValueOf[reveal.State](s.graph.Peek(sigAnimation))
		next := cur.Start()
		if next == cur {
			return nil
		}
		return s.set(sigAnimation, next)
	})
}

// SummaryRows returns the summary table as currently shown.
func (s *Session) SummaryRows(ctx context.Context) ([]transforms.SummaryRow, error) {
	var rows []transforms.SummaryRow
	err := s.call(ctx, func() error {
		s.touch()
		rows = reactive.ValueOf[[]transforms.SummaryRow](s.graph.Peek(nodeSummaryRows))
		return nil
	})
	return rows, err
}

func (s *Session) postTime(now time.Time) {
	s.post(func() {
		if err := s.graph.Set(sigNow, now); err != nil {
			s.log.Error("countdown tick failed", zap.Error(err))
		}
	})
}

// bumpRefresh starts the next refresh. Without a client nothing would see
// the result, so the store is not queried; Attach refreshes on connect.
func (s *Session) bumpRefresh() {
	if s.emitter == nil {
		return
	}
	n := reactive.ValueOf[int](s.graph.Peek(sigRefresh))
	if err := s.graph.Set(sigRefresh, n+1); err != nil {
		s.log.Error("refresh tick failed", zap.Error(err))
	}
}

func (s *Session) tickAnimation() {
	cur := reactive.ValueOf[reveal.State](s.graph.Peek(sigAnimation))
	if !cur.Active() {
		return
	}
	if err := s.graph.Set(sigAnimation, cur.Tick()); err != nil {
		s.log.Error("animation tick failed", zap.Error(err))
	}
}

// emit queues a fragment for the end of the current pass.
func (s *Session) emit(frag render.Fragment, err error) {
	if err != nil {
		s.log.Error("render fragment failed", zap.Error(err))
		return
	}
	s.pending = append(s.pending, frag)
}

// flush is the pass observer: it delivers the pass's fragments in one frame.
func (s *Session) flush(p reactive.Pass) {
	metrics.PassesTotal.Inc()
	metrics.NodeRecomputes.Add(float64(len(p.Recomputed)))
	metrics.SinkRuns.Add(float64(len(p.Sinks)))

	if len(s.pending) == 0 {
		return
	}
	frags := s.pending
	s.pending = nil
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(frags); err != nil {
		s.log.Warn("client write failed, detaching", zap.Error(err))
		_ = s.emitter.Close()
		s.emitter = nil
		metrics.AttachedClients.Dec()
		s.setAttached(false)
		return
	}
	for _, f := range frags {
		metrics.FragmentsSent.WithLabelValues(f.Target).Inc()
	}
}
