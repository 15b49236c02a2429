package fairdash

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/store/fairdata"
	"github.com/dalemusser/stratapulse/internal/app/system/metrics"
	"github.com/dalemusser/stratapulse/internal/app/system/phaseclock"
	"github.com/dalemusser/stratapulse/internal/app/system/reactive"
	"github.com/dalemusser/stratapulse/internal/app/system/render"
	"github.com/dalemusser/stratapulse/internal/app/system/reveal"
	"github.com/dalemusser/stratapulse/internal/app/system/transforms"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an Emitter that keeps every frame it is sent.
type recorder struct {
	mu     sync.Mutex
	frames [][]render.Fragment
	closed bool
	fail   error
}

func (r *recorder) Emit(frags []render.Fragment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.frames = append(r.frames, append([]render.Fragment(nil), frags...))
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// latest returns the newest fragment sent for target.
func (r *recorder) latest(target string) (render.Fragment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.frames) - 1; i >= 0; i-- {
		for j := len(r.frames[i]) - 1; j >= 0; j-- {
			if r.frames[i][j].Target == target {
				return r.frames[i][j], true
			}
		}
	}
	return render.Fragment{}, false
}

func testClock(t *testing.T) phaseclock.Clock {
	t.Helper()
	start := time.Now().Add(time.Hour)
	c, err := phaseclock.New(start, start.Add(7*time.Hour))
	require.NoError(t, err)
	return c
}

func testDeps(t *testing.T, src fairdata.Source) Deps {
	return Deps{
		Source:   src,
		Renderer: render.New(render.Options{}),
		Options: Options{
			Clock:            testClock(t),
			RefreshEvery:     time.Hour,
			CountdownEvery:   time.Hour,
			AnimationEvery:   time.Hour,
			AnimationMaxStep: 7,
			RevealBaseHour:   9,
		},
	}
}

func newTestSession(t *testing.T, src fairdata.Source) *Session {
	t.Helper()
	s, err := NewSession("test-session", testDeps(t, src), models.ThemeDark)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func attach(t *testing.T, s *Session) *recorder {
	t.Helper()
	rec := &recorder{}
	require.NoError(t, s.Attach(context.Background(), rec))
	return rec
}

// onLoop runs fn on the session's event loop.
func onLoop(t *testing.T, s *Session, fn func() error) {
	t.Helper()
	require.NoError(t, s.call(context.Background(), fn))
}

func TestAttachSendsFullView(t *testing.T) {
	s := newTestSession(t, fairdata.Sample())
	rec := attach(t, s)

	for _, target := range []string{render.TargetTheme, render.TargetTab, render.TargetCountdown,
		render.TargetSummaryTable, render.TargetPercentageTable} {
		_, ok := rec.latest(target)
		assert.True(t, ok, "no %s fragment after attach", target)
	}
	// Hidden tabs are not rendered.
	_, ok := rec.latest(render.TargetPies)
	assert.False(t, ok, "pies rendered while summary tab is shown")

	require.Eventually(t, func() bool {
		frag, ok := rec.latest(render.TargetSummaryTable)
		return ok && strings.Contains(frag.HTML, "4820")
	}, 2*time.Second, 10*time.Millisecond, "fetched summary never reached the client")
}

func TestSelectTabRendersPanel(t *testing.T) {
	s := newTestSession(t, fairdata.Sample())
	rec := attach(t, s)

	require.NoError(t, s.SelectTab(context.Background(), string(models.TabTransaction)))

	tab, ok := rec.latest(render.TargetTab)
	require.True(t, ok)
	assert.Equal(t, string(models.TabTransaction), tab.HTML)
	for _, target := range []string{render.TargetIntervalChart, render.TargetTransactionChart, render.TargetAnimation} {
		_, ok := rec.latest(target)
		assert.True(t, ok, "no %s fragment after switching tab", target)
	}

	err := s.SelectTab(context.Background(), "payroll")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestBatchedUpdatesRunSinkOnce(t *testing.T) {
	s := newTestSession(t, fairdata.NewStatic())
	rec := attach(t, s)

	var runs, frames int
	onLoop(t, s, func() error {
		start, sent := s.graph.Evaluations(sinkSummary), rec.frameCount()
		err := s.graph.Apply(
			reactive.Update{Name: sigTheme, Value: models.ThemeLight},
			reactive.Update{Name: sigSummary, Value: []models.SummaryRecord{}},
		)
		runs = s.graph.Evaluations(sinkSummary) - start
		frames = rec.frameCount() - sent
		return err
	})

	assert.Equal(t, 1, runs, "summary sink runs for one batched pass")
	assert.Equal(t, 1, frames, "one pass should send one frame")
}

func TestThemeToggle(t *testing.T) {
	s := newTestSession(t, fairdata.NewStatic())
	rec := attach(t, s)

	next, err := s.ToggleTheme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, next)

	frag, ok := rec.latest(render.TargetTheme)
	require.True(t, ok)
	assert.Equal(t, "light", frag.HTML)

	table, ok := rec.latest(render.TargetSummaryTable)
	require.True(t, ok)
	assert.Contains(t, table.HTML, "table-wrap--light")
}

func TestSeriesAndChartValidation(t *testing.T) {
	s := newTestSession(t, fairdata.NewStatic())
	ctx := context.Background()

	assert.NoError(t, s.SetSeries(ctx, "hourly"))
	assert.ErrorIs(t, s.SetSeries(ctx, "weekly"), ErrInvalidValue)
	assert.NoError(t, s.SetChart(ctx, "scatter"))
	assert.ErrorIs(t, s.SetChart(ctx, "pie"), ErrInvalidValue)
}

func TestAnimationLifecycle(t *testing.T) {
	s := newTestSession(t, fairdata.Sample())
	attach(t, s)
	ctx := context.Background()

	state := func() reveal.State {
		var st reveal.State
		onLoop(t, s, func() error {
			st = reactive.ValueOf[reveal.State](s.graph.Peek(sigAnimation))
			return nil
		})
		return st
	}
	tick := func() { onLoop(t, s, func() error { s.tickAnimation(); return nil }) }

	tick()
	assert.Equal(t, reveal.Idle, state().Status, "tick before start")

	require.NoError(t, s.StartAnimation(ctx))
	for i := 0; i < 7; i++ {
		tick()
	}
	st := state()
	assert.Equal(t, reveal.Done, st.Status)
	assert.Equal(t, 7, st.Step)

	// Restarting a finished animation is a no-op.
	require.NoError(t, s.StartAnimation(ctx))
	assert.Equal(t, st, state())

	var cutoff int
	onLoop(t, s, func() error {
		cutoff = reactive.ValueOf[int](s.graph.Peek(nodeCutoff))
		return nil
	})
	assert.Equal(t, 16, cutoff)
}

func TestFetchFailureShowsEmptyTable(t *testing.T) {
	src := fairdata.Sample()
	src.Fail(fairdata.QuerySummary, errors.New("connection refused"))
	failures := metrics.FetchFailures.WithLabelValues(fairdata.QuerySummary)
	before := testutil.ToFloat64(failures)

	s := newTestSession(t, src)
	rec := attach(t, s)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(failures) > before
	}, 2*time.Second, 10*time.Millisecond)

	frag, ok := rec.latest(render.TargetSummaryTable)
	require.True(t, ok)
	assert.Contains(t, frag.HTML, "No Data Available")
}

func TestSupersededFetchDropped(t *testing.T) {
	s := newTestSession(t, fairdata.NewStatic())
	v := 10.0
	stale := []models.SummaryRecord{{Visitors: &v}}

	var got []models.SummaryRecord
	onLoop(t, s, func() error {
		s.fetches[fairdata.QuerySummary] = 5
		s.applyFetch(fairdata.QuerySummary, 3, sigSummary, stale)
		got = reactive.ValueOf[[]models.SummaryRecord](s.graph.Peek(sigSummary))
		return nil
	})
	assert.Empty(t, got, "older generation overwrote a newer result")
}

func TestLateFetchAfterCloseDiscarded(t *testing.T) {
	src := fairdata.Sample()
	src.Hold()
	t.Cleanup(src.Resume)

	before := testutil.ToFloat64(metrics.DiscardedEvents)
	s, err := NewSession("late", testDeps(t, src), models.ThemeDark)
	require.NoError(t, err)
	rec := attach(t, s)
	frames := rec.frameCount()

	s.Close()
	src.Resume()

	// Each of the three blocked queries posts its result after Close.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.DiscardedEvents)-before >= 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, frames, rec.frameCount(), "frames sent after close")
	assert.True(t, rec.isClosed())

	assert.ErrorIs(t, s.SelectTab(context.Background(), "summary"), ErrClosed)
}

func TestWriteFailureDetaches(t *testing.T) {
	s := newTestSession(t, fairdata.NewStatic())
	rec := &recorder{fail: errors.New("broken pipe")}
	require.NoError(t, s.Attach(context.Background(), rec))

	assert.True(t, rec.isClosed())
	assert.Greater(t, s.IdleFor(time.Now().Add(time.Second)), time.Duration(0))
}

func TestDetachMakesSessionIdle(t *testing.T) {
	s := newTestSession(t, fairdata.NewStatic())
	rec := attach(t, s)
	assert.Zero(t, s.IdleFor(time.Now().Add(time.Hour)))

	s.Detach(rec)
	require.Eventually(t, func() bool {
		return s.IdleFor(time.Now().Add(time.Second)) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestUnattachedSessionDoesNotQuery(t *testing.T) {
	src := fairdata.Sample()
	deps := testDeps(t, src)
	deps.Options.RefreshEvery = 20 * time.Millisecond
	s, err := NewSession("unattached", deps, models.ThemeDark)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	time.Sleep(200 * time.Millisecond)
	for _, q := range fairdata.Queries() {
		assert.Zero(t, src.Calls(q), "%s queried with no client attached", q)
	}

	rec := attach(t, s)
	require.Eventually(t, func() bool {
		return src.Calls(fairdata.QuerySummary) > 0
	}, 2*time.Second, 10*time.Millisecond, "attach did not fetch")

	s.Detach(rec)
	require.Eventually(t, func() bool {
		return s.IdleFor(time.Now().Add(time.Second)) > 0
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	calls := src.Calls(fairdata.QuerySummary)
	require.Never(t, func() bool {
		return src.Calls(fairdata.QuerySummary) != calls
	}, 150*time.Millisecond, 10*time.Millisecond, "refresh kept querying after detach")
}

func TestEventPanicClosesOnlyThatSession(t *testing.T) {
	before := testutil.ToFloat64(metrics.SessionPanics)
	s := newTestSession(t, fairdata.NewStatic())
	other := newTestSession(t, fairdata.NewStatic())

	require.True(t, s.post(func() { panic("renderer exploded") }))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session loop still running after a panic")
	}
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SessionPanics))
	assert.ErrorIs(t, s.SelectTab(context.Background(), "summary"), ErrClosed)
	require.Eventually(t, func() bool {
		return s.IdleFor(time.Now()) > 24*time.Hour
	}, time.Second, 5*time.Millisecond, "panicked session not reapable")

	assert.NoError(t, other.SelectTab(context.Background(), "applicants"))
}

func TestMalformedTimestampStalesHourlyOnly(t *testing.T) {
	src := fairdata.NewStatic()
	src.SetIntervals(
		models.IntervalRow{Start: "2025-04-23T09:05:00+06:00", Count: 3},
		models.IntervalRow{Start: "not-a-time", Count: 1},
	)
	s := newTestSession(t, src)
	rec := attach(t, s)
	ctx := context.Background()

	require.Eventually(t, func() bool {
		var loaded bool
		_ = s.call(ctx, func() error {
			_, loaded = s.fetches[fairdata.QueryIntervals]
			return nil
		})
		return loaded
	}, 2*time.Second, 10*time.Millisecond, "intervals never fetched")

	var hourlyErr error
	onLoop(t, s, func() error {
		hourlyErr = s.graph.Peek(nodeHourly).Err()
		return nil
	})
	var tsErr *transforms.TimestampError
	require.ErrorAs(t, hourlyErr, &tsErr)
	assert.Equal(t, "not-a-time", tsErr.Value)

	require.NoError(t, s.SelectTab(ctx, string(models.TabTransaction)))
	require.NoError(t, s.SetSeries(ctx, string(models.SeriesHourly)))
	frag, ok := rec.latest(render.TargetIntervalChart)
	require.True(t, ok)
	assert.Contains(t, frag.HTML, `title="`+render.TitleNoData+`"`)

	require.NoError(t, s.SetSeries(ctx, string(models.SeriesFiveMinute)))
	frag, ok = rec.latest(render.TargetIntervalChart)
	require.True(t, ok)
	assert.Contains(t, frag.HTML, `title="`+render.TitleFiveMinute+`"`)
	assert.Contains(t, frag.HTML, "not-a-time")
}
