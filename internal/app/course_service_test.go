package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"corrode-course/internal/app"
	"corrode-course/internal/domain"
	"corrode-course/internal/infra/memory"
	"corrode-course/internal/metrics"
)

func sampleCatalog() []domain.Exercise {
	return []domain.Exercise{
		{Name: "00_hello_rust", Title: "String Formatting"},
		{Name: "01_integer_handling", Title: "Integers"},
		{Name: "02_enums_and_matching", Title: "Enums"},
	}
}

func newTestService(opts ...app.Option) (*app.CourseService, *memory.Store) {
	store := memory.NewStore()
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(sampleCatalog()), time.Minute)
	return app.NewCourseService(store, catalog, opts...), store
}

func submit(t *testing.T, service *app.CourseService, id, exercise string, tests, clippy, fmtOK bool) domain.Submission {
	t.Helper()
	row, err := service.Submit(context.Background(), domain.SubmissionInput{
		ParticipantID: id,
		ExerciseName:  exercise,
		SourceCode:    "fn main() {}",
		TestsPassed:   tests,
		ClippyPassed:  clippy,
		FmtPassed:     fmtOK,
	})
	if err != nil {
		t.Fatalf("submit %s: %v", exercise, err)
	}
	return row
}

func TestRegisterTrimsName(t *testing.T) {
	service, _ := newTestService()
	participant, err := service.Register(context.Background(), "  Alice  ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if participant.Name != "Alice" || participant.ID == "" {
		t.Fatalf("unexpected participant %+v", participant)
	}
}

func TestRegisterRejectsBlankName(t *testing.T) {
	service, _ := newTestService()
	_, err := service.Register(context.Background(), "   ")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Kind != domain.ValidationEmpty {
		t.Fatalf("expected empty validation error, got %v", err)
	}
}

func TestSubmitBeforeRegisterIsUnauthorized(t *testing.T) {
	service, store := newTestService()
	_, err := service.Submit(context.Background(), domain.SubmissionInput{
		ParticipantID: "01J0000000000000000000000",
		ExerciseName:  "00_hello_rust",
		TestsPassed:   true,
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	rows, err := store.ListSubmissions(context.Background(), "01J0000000000000000000000")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestAliceScenario(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	alice, err := service.Register(ctx, "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	submit(t, service, alice.ID, "00_hello_rust", true, false, false)
	progress, err := service.Status(ctx, alice.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	first := progress.Exercises[0]
	if first.Name != "00_hello_rust" || !first.Completed || first.Perfected {
		t.Fatalf("expected completed but not perfected, got %+v", first)
	}

	submit(t, service, alice.ID, "00_hello_rust", true, true, true)
	progress, err = service.Status(ctx, alice.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if first := progress.Exercises[0]; !first.Completed || !first.Perfected {
		t.Fatalf("expected perfected after pedantic resubmit, got %+v", first)
	}
	if progress.CompletedCount() != 1 || progress.PerfectedCount() != 1 {
		t.Fatalf("unexpected counts %d/%d", progress.CompletedCount(), progress.PerfectedCount())
	}
}

func TestResubmitKeepsOneRowMatchingLatest(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()
	alice, _ := service.Register(ctx, "Alice")

	firstRow := submit(t, service, alice.ID, "01_integer_handling", true, true, true)
	secondRow := submit(t, service, alice.ID, "01_integer_handling", false, false, true)
	if firstRow.ID == secondRow.ID {
		t.Fatalf("expected a fresh row id on resubmission")
	}

	rows, err := store.ListSubmissions(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(rows))
	}
	if rows[0].ID != secondRow.ID || rows[0].TestsPassed || rows[0].ClippyPassed || !rows[0].FmtPassed {
		t.Fatalf("expected row to match second submission, got %+v", rows[0])
	}

	progress, _ := service.Status(ctx, alice.ID)
	if progress.Exercises[1].Completed {
		t.Fatalf("failing resubmission must clear completion, got %+v", progress.Exercises[1])
	}
}

func TestFailingTestsNeverComplete(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	alice, _ := service.Register(ctx, "Alice")
	submit(t, service, alice.ID, "02_enums_and_matching", false, true, true)

	progress, _ := service.Status(ctx, alice.ID)
	for _, e := range progress.Exercises {
		if e.Completed || e.Perfected {
			t.Fatalf("expected nothing completed, got %+v", e)
		}
	}
}

func TestStatusUnknownParticipantIsAllIncomplete(t *testing.T) {
	service, _ := newTestService()
	progress, err := service.Status(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(progress.Exercises) != len(sampleCatalog()) {
		t.Fatalf("expected full catalog, got %d entries", len(progress.Exercises))
	}
	if progress.CompletedCount() != 0 {
		t.Fatalf("expected zero completed")
	}
}

func TestOrphanExerciseStoredButNotReported(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()
	alice, _ := service.Register(ctx, "Alice")
	submit(t, service, alice.ID, "99_removed_exercise", true, true, true)

	rows, _ := store.ListSubmissions(ctx, alice.ID)
	if len(rows) != 1 {
		t.Fatalf("expected orphan row to be stored")
	}
	progress, _ := service.Status(ctx, alice.ID)
	for _, e := range progress.Exercises {
		if e.Name == "99_removed_exercise" || e.Completed {
			t.Fatalf("orphan leaked into status: %+v", e)
		}
	}
}

func TestConcurrentSubmitsForOnePair(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()
	alice, _ := service.Register(ctx, "Alice")

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.Submit(ctx, domain.SubmissionInput{
				ParticipantID: alice.ID,
				ExerciseName:  "00_hello_rust",
				SourceCode:    fmt.Sprintf("// attempt %d", i),
				TestsPassed:   i%2 == 0,
				FmtPassed:     i%3 == 0,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	rows, _ := store.ListSubmissions(ctx, alice.ID)
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	var attempt int
	if _, err := fmt.Sscanf(rows[0].SourceCode, "// attempt %d", &attempt); err != nil {
		t.Fatalf("row source does not match any input: %q", rows[0].SourceCode)
	}
	if rows[0].TestsPassed != (attempt%2 == 0) || rows[0].FmtPassed != (attempt%3 == 0) {
		t.Fatalf("row mixes fields from different submissions: %+v", rows[0])
	}
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (n *recordingNotifier) Notify(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, id)
	return n.err
}

type recordingPublisher struct {
	events []domain.SubmissionEvent
	err    error
}

func (p *recordingPublisher) PublishSubmission(_ context.Context, e domain.SubmissionEvent) error {
	p.events = append(p.events, e)
	return p.err
}

func TestSubmitFansOutAndToleratesFailures(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{err: errors.New("redis down")}
	publisher := &recordingPublisher{err: errors.New("kafka down")}
	fixed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	m := metrics.New()
	service, _ := newTestService(
		app.WithNotifier(notifier),
		app.WithEventPublisher(publisher),
		app.WithPublishFailureHook(func(error) { m.IncEventPublishFailures() }),
		app.WithClock(func() time.Time { return fixed }),
	)

	alice, _ := service.Register(ctx, "Alice")
	row := submit(t, service, alice.ID, "00_hello_rust", true, true, true)

	if len(notifier.ids) != 1 || notifier.ids[0] != alice.ID {
		t.Fatalf("expected one notification for alice, got %v", notifier.ids)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.SubmissionID != row.ID || !event.SubmittedAt.Equal(fixed) || !event.FmtPassed {
		t.Fatalf("unexpected event %+v", event)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "course_event_publish_failures_total 1") {
		t.Fatalf("expected one publish failure counted:\n%s", body)
	}
}

func TestFailingSubmissionIsNeverPerfected(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	alice, _ := service.Register(ctx, "Alice")
	submit(t, service, alice.ID, "00_hello_rust", false, true, true)

	admin, err := service.AdminDashboard(ctx)
	if err != nil {
		t.Fatalf("admin dashboard: %v", err)
	}
	if len(admin.RecentSubmissions) != 1 {
		t.Fatalf("expected one recent row, got %d", len(admin.RecentSubmissions))
	}
	if recent := admin.RecentSubmissions[0]; recent.TestsPassed || recent.Perfected {
		t.Fatalf("failing submission reported as perfected: %+v", recent)
	}
	if admin.Stats.TotalPerfected != 0 {
		t.Fatalf("unexpected perfected count %+v", admin.Stats)
	}
}

func TestDashboards(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	alice, _ := service.Register(ctx, "Alice")
	bob, _ := service.Register(ctx, "Bob")
	submit(t, service, alice.ID, "00_hello_rust", true, true, true)
	submit(t, service, alice.ID, "01_integer_handling", true, false, false)
	submit(t, service, alice.ID, "99_orphan", true, false, false)
	submit(t, service, bob.ID, "00_hello_rust", false, false, false)

	dashboard, err := service.Dashboard(ctx, alice.ID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dashboard.Participant.Name != "Alice" {
		t.Fatalf("unexpected participant %+v", dashboard.Participant)
	}
	if dashboard.Stats.TotalSubmissions != 3 || dashboard.Stats.CompletedCount != 3 || dashboard.Stats.PerfectedCount != 1 {
		t.Fatalf("unexpected stats %+v", dashboard.Stats)
	}
	if dashboard.Progress.Exercises[0].Title != "String Formatting" {
		t.Fatalf("expected titles in dashboard progress")
	}

	if _, err := service.Dashboard(ctx, "missing"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}

	admin, err := service.AdminDashboard(ctx)
	if err != nil {
		t.Fatalf("admin dashboard: %v", err)
	}
	if admin.Stats.TotalParticipants != 2 || admin.Stats.TotalSubmissions != 3 || admin.Stats.TotalPerfected != 1 {
		t.Fatalf("unexpected admin stats %+v", admin.Stats)
	}
	if len(admin.Participants) != 2 || len(admin.RecentSubmissions) != 4 {
		t.Fatalf("unexpected admin tables: %d participants, %d recent", len(admin.Participants), len(admin.RecentSubmissions))
	}
}

type brokenCatalog struct{}

func (brokenCatalog) GetCatalog(context.Context) (domain.Catalog, error) {
	return domain.Catalog{}, errors.New("examples/ directory not found")
}

func TestStatusWithoutCatalog(t *testing.T) {
	service := app.NewCourseService(memory.NewStore(), brokenCatalog{})
	if _, err := service.Status(context.Background(), "anyone"); !errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}
