package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/system/prefs"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PrefsKey is a 32-character signing key for test preference stores.
const PrefsKey = "0123456789abcdef0123456789abcdef"

// NewPrefsStore returns a preference store that signs with PrefsKey and
// defaults to the dark theme.
func NewPrefsStore(t testing.TB) *prefs.Store {
	t.Helper()
	store, err := prefs.NewStore(PrefsKey, "test-prefs", time.Hour, false, models.ThemeDark, zap.NewNop())
	if err != nil {
		t.Fatalf("prefs.NewStore: %v", err)
	}
	return store
}

// WithThemeCookie attaches a signed preference cookie holding theme to r.
func WithThemeCookie(t testing.TB, store *prefs.Store, r *http.Request, theme models.Theme) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := store.SetTheme(rec, httptest.NewRequest(http.MethodGet, "/", nil), theme); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewFormRequest creates a form-encoded request.
func NewFormRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// WithURLParams sets chi route parameters on r, as the router would when
// dispatching to a handler.
func WithURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	body := r.Body.String()
	if !strings.Contains(body, expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
