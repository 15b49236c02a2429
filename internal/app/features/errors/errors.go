// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/stratapulse/internal/app/system/prefs"
	"github.com/dalemusser/stratapulse/internal/app/system/viewdata"
	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// ErrorLogger wraps the zap logger for error logging.
type ErrorLogger struct {
	logger *zap.Logger
}

// NewErrorLogger creates a new ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{logger: logger}
}

// Log logs an error with the given message and error.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error) {
	e.logger.Error(msg,
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)
}

// LogWithFields logs an error with additional fields.
func (e *ErrorLogger) LogWithFields(r *http.Request, msg string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	}, fields...)
	e.logger.Error(msg, allFields...)
}

// Handler provides error page handlers. Pages follow the visitor's theme.
type Handler struct {
	prefs *prefs.Store
}

// NewHandler creates a new error Handler. prefStore may be nil, in which case
// pages use the dark theme.
func NewHandler(prefStore *prefs.Store) *Handler {
	return &Handler{prefs: prefStore}
}

func (h *Handler) page(r *http.Request, title string) viewdata.BaseVM {
	theme := models.ThemeDark
	if h.prefs != nil {
		theme = h.prefs.Theme(r)
	}
	return viewdata.NewBaseVM(r, title, string(theme))
}

// NotFound renders the 404 not found page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	vm := h.page(r, "Not Found")

	w.WriteHeader(http.StatusNotFound)
	templates.Render(w, r, "errors/not_found", vm)
}

// MethodNotAllowed renders the 405 page.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	vm := h.page(r, "Method Not Allowed")

	w.WriteHeader(http.StatusMethodNotAllowed)
	templates.Render(w, r, "errors/method_not_allowed", vm)
}

// InternalError renders the 500 internal server error page.
func (h *Handler) InternalError(w http.ResponseWriter, r *http.Request) {
	vm := h.page(r, "Server Error")

	w.WriteHeader(http.StatusInternalServerError)
	templates.Render(w, r, "errors/internal", vm)
}
