package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"corrode-course/internal/app"
	"corrode-course/internal/domain"
	"corrode-course/internal/infra/memory"
	"corrode-course/internal/metrics"
	"github.com/rs/zerolog"
)

const testAdminToken = "admin-secret"

type testServer struct {
	store   *memory.Store
	service *app.CourseService
	feed    *app.Feed
	handler http.Handler
}

func newTestServer(t *testing.T, store app.SubmissionStore) *testServer {
	t.Helper()
	mem, _ := store.(*memory.Store)
	feed := app.NewFeed()
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(sampleExercises()), time.Minute)
	service := app.NewCourseService(store, catalog, app.WithNotifier(feed))
	m := metrics.New()
	web, err := NewWebHandler(service, testAdminToken, m)
	if err != nil {
		t.Fatalf("web handler: %v", err)
	}
	router := NewRouter(NewAPIHandler(service, testAdminToken, m), web, NewWSHandler(service, feed, m), m, zerolog.Nop())
	return &testServer{store: mem, service: service, feed: feed, handler: router}
}

func sampleExercises() []domain.Exercise {
	return []domain.Exercise{
		{Name: "00_hello_rust", Title: "String Formatting", Description: "Format strings."},
		{Name: "01_integer_handling", Title: "Integers", Description: "Parse numbers."},
		{Name: "02_enums_and_matching", Title: "Enums", Description: "Match on enums."},
	}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, name string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/register", RegisterRequest{Name: name})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %q: status %d body %s", name, rec.Code, rec.Body.String())
	}
	var resp RegisterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if resp.ULID == "" {
		t.Fatalf("expected ulid in response")
	}
	return resp.ULID
}

func (s *testServer) status(t *testing.T, id string) ProgressResponse {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/status/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	var resp ProgressResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return resp
}

func TestRegisterSubmitStatusFlow(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())
	id := srv.register(t, "  Alice  ")

	rec := srv.do(t, http.MethodPost, "/api/submit", SubmitRequest{
		ULID: id, ExerciseName: "00_hello_rust", SourceCode: "fn main() {}", TestsPassed: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(t, http.MethodPost, "/api/submit", SubmitRequest{
		ULID: id, ExerciseName: "01_integer_handling", TestsPassed: true, ClippyPassed: true, FmtPassed: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}

	got := srv.status(t, id)
	want := []ExerciseStatus{
		{Name: "00_hello_rust", Completed: true},
		{Name: "01_integer_handling", Completed: true, Perfected: true},
		{Name: "02_enums_and_matching"},
	}
	if len(got.Exercises) != len(want) {
		t.Fatalf("expected %d exercises, got %+v", len(want), got.Exercises)
	}
	for i := range want {
		if got.Exercises[i] != want[i] {
			t.Fatalf("exercise %d: got %+v want %+v", i, got.Exercises[i], want[i])
		}
	}
}

func TestRegisterRejectsInvalidNames(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())
	cases := map[string]string{
		"   ":                     "name cannot be empty",
		strings.Repeat("a", 101): "name too long (max 100 characters)",
	}
	for name, msg := range cases {
		rec := srv.do(t, http.MethodPost, "/api/register", RegisterRequest{Name: name})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", name, rec.Code)
		}
		var resp ErrorResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Error != msg {
			t.Fatalf("expected error %q, got %q", msg, resp.Error)
		}
	}
	if rec := srv.do(t, http.MethodPost, "/api/register", "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestSubmitUnknownParticipantIsUnauthorized(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())
	rec := srv.do(t, http.MethodPost, "/api/submit", SubmitRequest{
		ULID: "01HZZZZZZZZZZZZZZZZZZZZZZZ", ExerciseName: "00_hello_rust", TestsPassed: true,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	stats, err := srv.store.CountAdminStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalSubmissions != 0 {
		t.Fatalf("expected no stored submission, got %+v", stats)
	}
}

func TestSubmitMalformedBody(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())
	if rec := srv.do(t, http.MethodPost, "/api/submit", `{"ulid": 42}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusForUnregisteredIDIsAllIncomplete(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())
	got := srv.status(t, "never-registered")
	if len(got.Exercises) != 3 {
		t.Fatalf("expected full catalog, got %+v", got.Exercises)
	}
	for _, e := range got.Exercises {
		if e.Completed || e.Perfected {
			t.Fatalf("expected nothing completed, got %+v", e)
		}
	}
}

type failingStore struct {
	*memory.Store
}

func (failingStore) ListPassingSubmissions(context.Context, string) ([]domain.Submission, error) {
	return nil, domain.WrapStore("list passing submissions", errors.New("connection refused on 10.0.0.5"))
}

func TestStoreFailureIsGeneric500(t *testing.T) {
	srv := newTestServer(t, failingStore{memory.NewStore()})
	rec := srv.do(t, http.MethodGet, "/api/status/anyone", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Fatalf("store detail leaked to client: %s", rec.Body.String())
	}
}

func TestAdminStatsRequiresToken(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())
	id := srv.register(t, "Bob")
	srv.do(t, http.MethodPost, "/api/submit", SubmitRequest{ULID: id, ExerciseName: "00_hello_rust", TestsPassed: true})

	if rec := srv.do(t, http.MethodGet, "/api/admin/stats?token=wrong", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec := srv.do(t, http.MethodGet, "/api/admin/stats?token="+testAdminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var dashboard app.AdminDashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &dashboard); err != nil {
		t.Fatalf("decode admin stats: %v", err)
	}
	if dashboard.Stats.TotalParticipants != 1 || dashboard.Stats.TotalSubmissions != 1 {
		t.Fatalf("unexpected stats %+v", dashboard.Stats)
	}
	if len(dashboard.Participants) != 1 || dashboard.Participants[0].TotalExercises != 3 {
		t.Fatalf("unexpected participants %+v", dashboard.Participants)
	}
}

func TestRequestIDAndMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())
	rec := srv.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected ok with request id, got %d %v", rec.Code, rec.Header())
	}
	srv.status(t, "someone")
	rec = srv.do(t, http.MethodGet, "/metrics", nil)
	if !strings.Contains(rec.Body.String(), `route="GET /api/status/{ulid}"`) {
		t.Fatalf("expected route-labelled latency metric, got:\n%s", rec.Body.String())
	}
}
