// internal/app/features/fairdash/routes.go
package fairdash

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Routes returns the router for the dashboard page, its session actions and
// exports. The websocket route is kept out of the request timeout.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/s/{sid}/ws", h.ServeSocket)

	r.Group(func(tr chi.Router) {
		tr.Use(chimw.Timeout(30 * time.Second))

		tr.Get("/", h.ServePage)

		// Session actions (CSRF-protected POSTs)
		tr.Post("/s/{sid}/tab", h.HandleTab)
		tr.Post("/s/{sid}/theme", h.HandleTheme)
		tr.Post("/s/{sid}/series", h.HandleSeries)
		tr.Post("/s/{sid}/chart", h.HandleChart)
		tr.Post("/s/{sid}/start", h.HandleStart)
		tr.Post("/s/{sid}/close", h.HandleClose)

		// Downloads of the summary table
		tr.Get("/s/{sid}/export.xlsx", h.ServeXLSX)
		tr.Get("/s/{sid}/export.csv", h.ServeCSV)
	})

	return r
}
