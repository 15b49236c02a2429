package fairdash

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	uierrors "github.com/dalemusser/stratapulse/internal/app/features/errors"
	"github.com/dalemusser/stratapulse/internal/app/store/fairdata"
	"github.com/dalemusser/stratapulse/internal/app/system/render"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/dalemusser/stratapulse/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, src fairdata.Source) (*Handler, http.Handler) {
	t.Helper()
	deps := testDeps(t, src)
	hub := NewHub(deps)
	t.Cleanup(hub.CloseAll)
	h := NewHandler(hub, testutil.NewPrefsStore(t), deps.Options, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	return h, Routes(h)
}

func openSession(t *testing.T, h *Handler) *Session {
	t.Helper()
	sess, err := h.Hub.Open(models.ThemeDark)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return sess
}

func post(router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewFormRequest(http.MethodPost, path, form))
	return rec
}

func TestServePage_OpensSession(t *testing.T) {
	testutil.MustBootTemplates(t)
	h, router := newTestHandler(t, fairdata.Sample())

	req := testutil.WithCSRFToken(httptest.NewRequest(http.MethodGet, "/", nil))
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	if h.Hub.Len() != 1 {
		t.Fatalf("Hub.Len() = %d, want 1", h.Hub.Len())
	}
	rec.AssertContains(t, `data-target="summary-table"`)
	rec.AssertContains(t, "Technical Job Fair")
	rec.AssertContains(t, "theme-dark")
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestServePage_UsesStoredTheme(t *testing.T) {
	testutil.MustBootTemplates(t)
	h, router := newTestHandler(t, fairdata.Sample())

	req := testutil.WithThemeCookie(t, h.Prefs, httptest.NewRequest(http.MethodGet, "/", nil), models.ThemeLight)
	req = testutil.WithCSRFToken(req)
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "theme-light")
}

func TestActions(t *testing.T) {
	h, router := newTestHandler(t, fairdata.Sample())
	sess := openSession(t, h)
	base := "/s/" + sess.ID

	tests := []struct {
		name  string
		path  string
		value string
		want  int
	}{
		{"select tab", "/tab", "applicants", http.StatusNoContent},
		{"unknown tab", "/tab", "payroll", http.StatusBadRequest},
		{"hourly series", "/series", "hourly", http.StatusNoContent},
		{"unknown series", "/series", "weekly", http.StatusBadRequest},
		{"bar chart", "/chart", "bar", http.StatusNoContent},
		{"unknown chart", "/chart", "radar", http.StatusBadRequest},
		{"set theme", "/theme", "light", http.StatusNoContent},
		{"unknown theme", "/theme", "sepia", http.StatusBadRequest},
		{"start animation", "/start", "", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(router, base+tc.path, url.Values{"value": {tc.value}})
			if rec.Code != tc.want {
				t.Errorf("POST %s value=%q status = %d, want %d", tc.path, tc.value, rec.Code, tc.want)
			}
		})
	}
}

func TestThemeToggleSetsCookie(t *testing.T) {
	h, router := newTestHandler(t, fairdata.NewStatic())
	sess := openSession(t, h)

	rec := post(router, "/s/"+sess.ID+"/theme", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	if got := h.Prefs.Theme(next); got != models.ThemeLight {
		t.Errorf("stored theme = %q, want light", got)
	}
}

func TestUnknownSessionIsGone(t *testing.T) {
	_, router := newTestHandler(t, fairdata.NewStatic())

	for _, path := range []string{"/s/nope/tab", "/s/nope/start"} {
		rec := post(router, path, url.Values{"value": {"summary"}})
		if rec.Code != http.StatusGone {
			t.Errorf("POST %s status = %d, want 410", path, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/nope/export.csv", nil))
	if rec.Code != http.StatusGone {
		t.Errorf("GET export.csv status = %d, want 410", rec.Code)
	}
}

func TestCloseRemovesSession(t *testing.T) {
	h, router := newTestHandler(t, fairdata.NewStatic())
	sess := openSession(t, h)

	rec := post(router, "/s/"+sess.ID+"/close", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if h.Hub.Len() != 0 {
		t.Errorf("Hub.Len() = %d, want 0", h.Hub.Len())
	}
	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session loop still running after close")
	}

	// Closing twice is harmless.
	if rec := post(router, "/s/"+sess.ID+"/close", nil); rec.Code != http.StatusNoContent {
		t.Errorf("second close status = %d, want 204", rec.Code)
	}
}

// loadedSession opens a session and waits until its summary is fetched.
func loadedSession(t *testing.T, h *Handler) *Session {
	t.Helper()
	sess := openSession(t, h)
	if err := sess.Attach(context.Background(), &recorder{}); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rows, err := sess.SummaryRows(context.Background())
		if err != nil {
			t.Fatalf("SummaryRows: %v", err)
		}
		if len(rows) > 0 {
			return sess
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("summary never loaded")
	return nil
}

func TestServeXLSX(t *testing.T) {
	h, router := newTestHandler(t, fairdata.Sample())
	sess := loadedSession(t, h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/"+sess.ID+"/export.xlsx", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != xlsxMIME {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, xlsxFilename) {
		t.Errorf("Content-Disposition = %q, want filename %s", got, xlsxFilename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 13 {
		t.Fatalf("got %d rows, want header + 12", len(rows))
	}
	if rows[0][0] != "Attribute" || rows[0][1] != "Value" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "Total Registered" || rows[1][1] != "4820" {
		t.Errorf("first row = %v, want [Total Registered 4820]", rows[1])
	}
}

func TestServeCSV(t *testing.T) {
	h, router := newTestHandler(t, fairdata.Sample())
	sess := loadedSession(t, h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/"+sess.ID+"/export.csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.Bytes()
	if !bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("CSV missing UTF-8 BOM")
	}
	records, err := csv.NewReader(bytes.NewReader(body[3:])).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(records) != 13 {
		t.Fatalf("got %d records, want 13", len(records))
	}
	if records[12][0] != "Total Amount Collected" || records[12][1] != "60650" {
		t.Errorf("last record = %v", records[12])
	}
}

func TestExportFromClosedSessionIsGone(t *testing.T) {
	h, router := newTestHandler(t, fairdata.Sample())
	sess := loadedSession(t, h)
	// Closed but not yet removed from the hub, as after a loop failure.
	sess.Close()

	for _, path := range []string{"/export.csv", "/export.xlsx"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/s/"+sess.ID+path, nil))
		if rec.Code != http.StatusGone {
			t.Errorf("GET %s status = %d, want 410", path, rec.Code)
		}
	}
}

func TestWriteCSVSanitizesFormulas(t *testing.T) {
	var buf bytes.Buffer
	if err := writeCSV(&buf, nil); err != nil {
		t.Fatalf("writeCSV: %v", err)
	}
	if got := buf.String(); got != "\ufeffAttribute,Value\r\n" {
		t.Errorf("empty export = %q", got)
	}

	if got := sanitizeCSVField("=SUM(A1)"); got != "'=SUM(A1)" {
		t.Errorf("sanitizeCSVField(=SUM) = %q", got)
	}
	if got := sanitizeCSVField("Visitors"); got != "Visitors" {
		t.Errorf("sanitizeCSVField(Visitors) = %q", got)
	}
}

func TestServeSocketStreamsFragments(t *testing.T) {
	h, router := newTestHandler(t, fairdata.Sample())
	sess := openSession(t, h)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/s/" + sess.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	seen := make(map[string]bool)
	for _, f := range first.Fragments {
		seen[f.Target] = true
	}
	for _, target := range []string{render.TargetTheme, render.TargetTab, render.TargetCountdown, render.TargetSummaryTable} {
		if !seen[target] {
			t.Errorf("first frame missing %s", target)
		}
	}

	// An action on the session arrives as a new frame.
	if rec := post(router, "/s/"+sess.ID+"/tab", url.Values{"value": {"applicants"}}); rec.Code != http.StatusNoContent {
		t.Fatalf("tab status = %d", rec.Code)
	}
	for {
		var next frame
		if err := conn.ReadJSON(&next); err != nil {
			t.Fatalf("waiting for pies: %v", err)
		}
		for _, f := range next.Fragments {
			if f.Target == render.TargetPies {
				return
			}
		}
	}
}
