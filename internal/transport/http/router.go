package http

import (
	"net/http"

	"corrode-course/internal/metrics"
	"github.com/rs/zerolog"
)

// NewRouter mounts every endpoint on one mux behind logging and metrics middleware.
func NewRouter(api *APIHandler, web *WebHandler, ws *WSHandler, m *metrics.Metrics, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", m.Handler())

	mux.HandleFunc("POST /api/register", api.Register)
	mux.HandleFunc("POST /api/submit", api.Submit)
	mux.HandleFunc("GET /api/status/{ulid}", api.Status)
	mux.HandleFunc("GET /api/admin/stats", api.AdminStats)

	mux.HandleFunc("GET /{$}", web.Landing)
	mux.HandleFunc("POST /register", web.Register)
	mux.HandleFunc("GET /dashboard/{ulid}", web.Dashboard)
	mux.HandleFunc("GET /admin", web.Admin)

	mux.HandleFunc("GET /ws/progress/{ulid}", ws.ServeWS)

	return Chain(mux, RequestLogger(logger.With().Str("component", "http").Logger()), Instrument(m))
}
