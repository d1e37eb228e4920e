package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"corrode-course/internal/app"
	"corrode-course/internal/domain"
	"corrode-course/internal/metrics"
	"github.com/rs/zerolog"
)

// renderFailureBody is sent when a page cannot be rendered.
const renderFailureBody = "Error rendering template"

//go:embed templates/*.html
var templateFS embed.FS

// ParseTemplates loads the embedded page templates.
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// WebHandler renders the browser-facing pages.
type WebHandler struct {
	service    *app.CourseService
	adminToken string
	metrics    *metrics.Metrics
	templates  *template.Template
}

func NewWebHandler(service *app.CourseService, adminToken string, m *metrics.Metrics) (*WebHandler, error) {
	tmpl, err := ParseTemplates()
	if err != nil {
		return nil, err
	}
	return &WebHandler{service: service, adminToken: adminToken, metrics: m, templates: tmpl}, nil
}

// Landing handles GET /.
func (h *WebHandler) Landing(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "landing", nil)
}

// Register handles the landing page form and redirects to the new dashboard.
func (h *WebHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	participant, err := h.service.Register(r.Context(), r.PostForm.Get("name"))
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.metrics.IncRegistration("invalid")
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.metrics.IncRegistration("error")
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("web registration failed")
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}
	h.metrics.IncRegistration("ok")
	http.Redirect(w, r, "/dashboard/"+url.PathEscape(participant.ID), http.StatusSeeOther)
}

// Dashboard handles GET /dashboard/{ulid}.
func (h *WebHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context(), r.PathValue("ulid"))
	if err != nil {
		if errors.Is(err, domain.ErrParticipantNotFound) {
			http.Error(w, "Participant not found", http.StatusNotFound)
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("dashboard failed")
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "dashboard", dashboard)
}

// Admin handles GET /admin?token=...
func (h *WebHandler) Admin(w http.ResponseWriter, r *http.Request) {
	if !validAdminToken(h.adminToken, r.URL.Query().Get("token")) {
		http.Error(w, "Invalid admin token", http.StatusForbidden)
		return
	}
	dashboard, err := h.service.AdminDashboard(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("admin dashboard failed")
		http.Error(w, "Failed to load admin dashboard", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "admin", dashboard)
}

// render executes into a buffer first so a failing template never leaves a half-written page.
func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("template render failed")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(renderFailureBody))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
