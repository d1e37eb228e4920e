package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"corrode-course/internal/domain"
	"github.com/rs/zerolog"
)

// RecentSubmissionsLimit bounds the admin dashboard's recent-activity table.
const RecentSubmissionsLimit = 20

// SubmissionStore abstracts where participants and submissions persist (Postgres, SQLite, memory).
type SubmissionStore interface {
	CreateParticipant(ctx context.Context, name domain.Name, createdAt time.Time) (domain.Participant, error)
	ParticipantExists(ctx context.Context, id string) (bool, error)
	GetParticipant(ctx context.Context, id string) (domain.Participant, error)
	// UpsertSubmission must be atomic per (participant, exercise) pair.
	UpsertSubmission(ctx context.Context, in domain.SubmissionInput, submittedAt time.Time) (domain.Submission, error)
	ListPassingSubmissions(ctx context.Context, participantID string) ([]domain.Submission, error)
	ListSubmissions(ctx context.Context, participantID string) ([]domain.Submission, error)
	CountAdminStats(ctx context.Context) (domain.AdminStats, error)
	ListParticipantSummaries(ctx context.Context, totalExercises int) ([]domain.ParticipantSummary, error)
	ListRecentSubmissions(ctx context.Context, limit int) ([]domain.SubmissionSummary, error)
}

// CatalogRepository loads the exercise catalog (possibly from a cache).
type CatalogRepository interface {
	GetCatalog(ctx context.Context) (domain.Catalog, error)
}

// ProgressNotifier is told whenever a participant's stored rows change.
type ProgressNotifier interface {
	Notify(ctx context.Context, participantID string) error
}

// EventPublisher ships submission events to downstream consumers.
type EventPublisher interface {
	PublishSubmission(ctx context.Context, event domain.SubmissionEvent) error
}

// Dashboard is the participant page model.
type Dashboard struct {
	Participant domain.Participant
	Progress    domain.Progress
	Stats       domain.UserStats
}

// AdminDashboard is the admin page model.
type AdminDashboard struct {
	Participants      []domain.ParticipantSummary `json:"participants"`
	RecentSubmissions []domain.SubmissionSummary  `json:"recentSubmissions"`
	Stats             domain.AdminStats           `json:"stats"`
}

// CourseService contains the registration, submission and status use cases.
type CourseService struct {
	store    SubmissionStore
	catalog  CatalogRepository
	notifier ProgressNotifier
	events   EventPublisher
	onFail   func(error)
	logger   zerolog.Logger
	now      func() time.Time
}

// Option customizes a CourseService.
type Option func(*CourseService)

// WithNotifier wires live progress notifications.
func WithNotifier(n ProgressNotifier) Option {
	return func(s *CourseService) { s.notifier = n }
}

// WithEventPublisher wires submission event publishing.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *CourseService) { s.events = p }
}

// WithPublishFailureHook is called after every failed event publish.
func WithPublishFailureHook(fn func(error)) Option {
	return func(s *CourseService) { s.onFail = fn }
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *CourseService) { s.logger = logger.With().Str("component", "course").Logger() }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *CourseService) { s.now = now }
}

func NewCourseService(store SubmissionStore, catalog CatalogRepository, opts ...Option) *CourseService {
	s := &CourseService{
		store:   store,
		catalog: catalog,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the display name and creates a participant.
func (s *CourseService) Register(ctx context.Context, rawName string) (domain.Participant, error) {
	name, err := domain.NewName(rawName)
	if err != nil {
		return domain.Participant{}, err
	}
	participant, err := s.store.CreateParticipant(ctx, name, s.now().UTC())
	if err != nil {
		return domain.Participant{}, err
	}
	s.logger.Info().Str("participant", participant.ID).Str("name", participant.Name).Msg("participant registered")
	return participant, nil
}

// Submit records the latest attempt for a (participant, exercise) pair.
// The exercise name is stored as given, even when the catalog does not know it.
func (s *CourseService) Submit(ctx context.Context, in domain.SubmissionInput) (domain.Submission, error) {
	exists, err := s.store.ParticipantExists(ctx, in.ParticipantID)
	if err != nil {
		return domain.Submission{}, err
	}
	if !exists {
		s.logger.Warn().Str("participant", in.ParticipantID).Msg("submission for unknown participant")
		return domain.Submission{}, domain.ErrUnauthorized
	}

	row, err := s.store.UpsertSubmission(ctx, in, s.now().UTC())
	if err != nil {
		return domain.Submission{}, err
	}
	s.logger.Info().
		Str("participant", row.ParticipantID).
		Str("exercise", row.ExerciseName).
		Bool("tests", row.TestsPassed).
		Bool("perfected", row.Perfected()).
		Msg("submission recorded")

	s.afterSubmit(ctx, row)
	return row, nil
}

// afterSubmit fans out notifications; failures here never fail the submission.
func (s *CourseService) afterSubmit(ctx context.Context, row domain.Submission) {
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, row.ParticipantID); err != nil {
			s.logger.Warn().Err(err).Str("participant", row.ParticipantID).Msg("progress notify failed")
		}
	}
	if s.events != nil {
		if err := s.events.PublishSubmission(ctx, domain.NewSubmissionEvent(row)); err != nil {
			s.logger.Warn().Err(err).Str("submission", row.ID).Msg("submission event publish failed")
			if s.onFail != nil {
				s.onFail(err)
			}
		}
	}
}

// Status derives the progress view from the catalog and the stored rows.
// Unknown participants get a view with nothing completed.
func (s *CourseService) Status(ctx context.Context, participantID string) (domain.Progress, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return domain.Progress{}, err
	}
	passing, err := s.store.ListPassingSubmissions(ctx, participantID)
	if err != nil {
		return domain.Progress{}, err
	}
	return BuildProgress(catalog, passing), nil
}

// Dashboard builds the participant page model.
func (s *CourseService) Dashboard(ctx context.Context, participantID string) (Dashboard, error) {
	participant, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return Dashboard{}, err
	}
	progress, err := s.Status(ctx, participantID)
	if err != nil {
		return Dashboard{}, err
	}
	rows, err := s.store.ListSubmissions(ctx, participantID)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Participant: participant,
		Progress:    progress,
		Stats:       SummarizeSubmissions(rows),
	}, nil
}

// AdminDashboard builds the course-wide overview.
func (s *CourseService) AdminDashboard(ctx context.Context) (AdminDashboard, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return AdminDashboard{}, err
	}
	participants, err := s.store.ListParticipantSummaries(ctx, len(catalog.Exercises))
	if err != nil {
		return AdminDashboard{}, err
	}
	recent, err := s.store.ListRecentSubmissions(ctx, RecentSubmissionsLimit)
	if err != nil {
		return AdminDashboard{}, err
	}
	stats, err := s.store.CountAdminStats(ctx)
	if err != nil {
		return AdminDashboard{}, err
	}
	return AdminDashboard{
		Participants:      participants,
		RecentSubmissions: recent,
		Stats:             stats,
	}, nil
}

func (s *CourseService) loadCatalog(ctx context.Context) (domain.Catalog, error) {
	catalog, err := s.catalog.GetCatalog(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCatalogUnavailable) {
			return domain.Catalog{}, err
		}
		return domain.Catalog{}, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	return catalog, nil
}
