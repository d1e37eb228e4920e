package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"corrode-course/internal/app"
	"corrode-course/internal/domain"
	"corrode-course/internal/metrics"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies; submissions carry a single source file.
const maxBodyBytes = 1 << 20

// APIHandler serves the JSON endpoints used by the CLI.
type APIHandler struct {
	service    *app.CourseService
	adminToken string
	metrics    *metrics.Metrics
}

func NewAPIHandler(service *app.CourseService, adminToken string, m *metrics.Metrics) *APIHandler {
	return &APIHandler{service: service, adminToken: adminToken, metrics: m}
}

// Register handles POST /api/register.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.IncRegistration("invalid")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	participant, err := h.service.Register(r.Context(), req.Name)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.metrics.IncRegistration("invalid")
		} else {
			h.metrics.IncRegistration("error")
		}
		writeError(w, r, err)
		return
	}
	h.metrics.IncRegistration("ok")
	writeJSON(w, http.StatusOK, RegisterResponse{ULID: participant.ID})
}

// Submit handles POST /api/submit. Success is a bare 200.
func (h *APIHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	row, err := h.service.Submit(r.Context(), domain.SubmissionInput{
		ParticipantID: req.ULID,
		ExerciseName:  req.ExerciseName,
		SourceCode:    req.SourceCode,
		TestsPassed:   req.TestsPassed,
		ClippyPassed:  req.ClippyPassed,
		FmtPassed:     req.FmtPassed,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			h.metrics.IncSubmission(metrics.OutcomeUnauthorized)
		} else {
			h.metrics.IncSubmission(metrics.OutcomeError)
		}
		writeError(w, r, err)
		return
	}
	h.metrics.IncSubmission(metrics.SubmissionOutcome(row.TestsPassed, row.Perfected()))
	w.WriteHeader(http.StatusOK)
}

// Status handles GET /api/status/{ulid}.
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("ulid")
	progress, err := h.service.Status(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.IncStatusRequests()
	zerolog.Ctx(r.Context()).Debug().
		Str("participant", id).
		Int("completed", progress.CompletedCount()).
		Int("perfected", progress.PerfectedCount()).
		Msg("status served")
	writeJSON(w, http.StatusOK, toProgressResponse(progress))
}

// AdminStats handles GET /api/admin/stats?token=...
func (h *APIHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	if !validAdminToken(h.adminToken, r.URL.Query().Get("token")) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "invalid admin token"})
		return
	}
	dashboard, err := h.service.AdminDashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func toProgressResponse(p domain.Progress) ProgressResponse {
	out := ProgressResponse{Exercises: make([]ExerciseStatus, 0, len(p.Exercises))}
	for _, e := range p.Exercises {
		out.Exercises = append(out.Exercises, ExerciseStatus{Name: e.Name, Completed: e.Completed, Perfected: e.Perfected})
	}
	return out
}

func validAdminToken(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto status codes. Anything unclassified is
// logged and answered with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unknown participant"})
	case errors.Is(err, domain.ErrParticipantNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "participant not found"})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
