// internal/app/features/fairdash/handler.go
package fairdash

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/stratapulse/internal/app/features/errors"
	"github.com/dalemusser/stratapulse/internal/app/system/prefs"
	"github.com/dalemusser/stratapulse/internal/app/system/viewdata"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const actionTimeout = 5 * time.Second

// Handler owns the dashboard page, the session actions and exports.
type Handler struct {
	Hub    *Hub
	Prefs  *prefs.Store
	Opts   Options
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler creates a new dashboard Handler.
func NewHandler(hub *Hub, prefStore *prefs.Store, opts Options, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Hub:    hub,
		Prefs:  prefStore,
		Opts:   opts,
		ErrLog: errLog,
		Log:    logger,
	}
}

// ServePage opens a session for this page view and renders the shell. The
// panels fill in once the page's websocket attaches.
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	theme := h.Prefs.Theme(r)
	sess, err := h.Hub.Open(theme)
	if err != nil {
		h.ErrLog.Log(r, "open dashboard session failed", err)
		http.Error(w, "Dashboard unavailable", http.StatusInternalServerError)
		return
	}

	head, sub := h.Opts.Clock.Evaluate(time.Now()).Text()
	data := pageData{
		BaseVM:      viewdata.NewBaseVM(r, "Live Dashboard", string(theme)),
		SessionID:   sess.ID,
		Tab:         string(models.TabSummary),
		SeriesKind:  string(models.SeriesFiveMinute),
		ChartKind:   string(models.ChartLine),
		Headline:    head,
		Subline:     sub,
		EventWindow: eventWindow(h.Opts),
	}
	for _, t := range models.AllTabs() {
		data.Tabs = append(data.Tabs, tabVM{
			Value:  string(t),
			Label:  tabLabels[t],
			Active: t == models.TabSummary,
		})
	}

	w.Header().Set("Cache-Control", "no-store")
	templates.Render(w, r, "fairdash_page", data)
}

func eventWindow(o Options) string {
	start, end := o.Clock.Start(), o.Clock.End()
	if start.IsZero() || end.IsZero() {
		return ""
	}
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return start.Format("Mon 2 Jan 2006, 15:04") + " to " + end.Format("15:04")
	}
	return start.Format("Mon 2 Jan 2006, 15:04") + " to " + end.Format("Mon 2 Jan 2006, 15:04")
}

// session resolves the {sid} URL parameter. It writes the error response and
// returns false when the session is gone.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := h.Hub.Get(chi.URLParam(r, "sid"))
	if !ok {
		http.Error(w, "Session expired, reload the page", http.StatusGone)
		return nil, false
	}
	return sess, true
}

// action runs one session action and maps its error to a status code.
func (h *Handler) action(w http.ResponseWriter, r *http.Request, name string, fn func(ctx context.Context, s *Session) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), actionTimeout)
	defer cancel()

	err := fn(ctx, sess)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrInvalidValue):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrClosed):
		http.Error(w, "Session expired, reload the page", http.StatusGone)
	default:
		h.ErrLog.LogWithFields(r, "dashboard action failed", err, zap.String("action", name))
		http.Error(w, "Action failed", http.StatusInternalServerError)
	}
}

// HandleTab selects a tab.
func (h *Handler) HandleTab(w http.ResponseWriter, r *http.Request) {
	value := r.FormValue("value")
	h.action(w, r, "tab", func(ctx context.Context, s *Session) error {
		return s.SelectTab(ctx, value)
	})
}

// HandleTheme toggles the theme, or sets it when value names one, and
// persists the result in the preferences cookie.
func (h *Handler) HandleTheme(w http.ResponseWriter, r *http.Request) {
	value := r.FormValue("value")
	h.action(w, r, "theme", func(ctx context.Context, s *Session) error {
		var (
			theme models.Theme
			err   error
		)
		if value == "" {
			theme, err = s.ToggleTheme(ctx)
		} else {
			theme = models.ParseTheme(value, "")
			if theme == "" {
				return ErrInvalidValue
			}
			err = s.SetTheme(ctx, theme)
		}
		if err != nil {
			return err
		}
		if err := h.Prefs.SetTheme(w, r, theme); err != nil {
			h.ErrLog.Log(r, "save theme preference failed", err)
		}
		return nil
	})
}

// HandleSeries switches the interval chart between 5-minute and hourly data.
func (h *Handler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	value := r.FormValue("value")
	h.action(w, r, "series", func(ctx context.Context, s *Session) error {
		return s.SetSeries(ctx, value)
	})
}

// HandleChart switches the transaction chart type.
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	value := r.FormValue("value")
	h.action(w, r, "chart", func(ctx context.Context, s *Session) error {
		return s.SetChart(ctx, value)
	})
}

// HandleStart starts the transaction reveal animation.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "start", func(ctx context.Context, s *Session) error {
		return s.StartAnimation(ctx)
	})
}

// HandleClose tears the session down when the page unloads.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	h.Hub.Close(chi.URLParam(r, "sid"))
	w.WriteHeader(http.StatusNoContent)
}
