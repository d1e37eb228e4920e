package postgres

import (
	"context"
	"errors"
	"time"

	"corrode-course/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store implements app.SubmissionStore on a shared pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateParticipant(ctx context.Context, name domain.Name, createdAt time.Time) (domain.Participant, error) {
	p := domain.Participant{ID: domain.GenerateID(), Name: name.String(), CreatedAt: createdAt}
	_, err := s.pool.Exec(ctx, `INSERT INTO participants (id, name, created_at) VALUES ($1, $2, $3)`, p.ID, p.Name, p.CreatedAt)
	if err != nil {
		return domain.Participant{}, domain.WrapStore("create participant", err)
	}
	return p, nil
}

func (s *Store) ParticipantExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM participants WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, domain.WrapStore("participant exists", err)
	}
	return exists, nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	var p domain.Participant
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM participants WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, domain.WrapStore("get participant", err)
	}
	return p, nil
}

// UpsertSubmission relies on the (participant_id, exercise_name) unique constraint;
// concurrent calls for one pair leave exactly one winner.
func (s *Store) UpsertSubmission(ctx context.Context, in domain.SubmissionInput, submittedAt time.Time) (domain.Submission, error) {
	row := domain.Submission{
		ID:            domain.GenerateID(),
		ParticipantID: in.ParticipantID,
		ExerciseName:  in.ExerciseName,
		SourceCode:    in.SourceCode,
		TestsPassed:   in.TestsPassed,
		ClippyPassed:  in.ClippyPassed,
		FmtPassed:     in.FmtPassed,
		SubmittedAt:   submittedAt,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (id, participant_id, exercise_name, source_code, tests_passed, clippy_passed, fmt_passed, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (participant_id, exercise_name) DO UPDATE SET
			id = EXCLUDED.id,
			source_code = EXCLUDED.source_code,
			tests_passed = EXCLUDED.tests_passed,
			clippy_passed = EXCLUDED.clippy_passed,
			fmt_passed = EXCLUDED.fmt_passed,
			submitted_at = EXCLUDED.submitted_at`,
		row.ID, row.ParticipantID, row.ExerciseName, row.SourceCode,
		row.TestsPassed, row.ClippyPassed, row.FmtPassed, row.SubmittedAt,
	)
	if err != nil {
		return domain.Submission{}, domain.WrapStore("upsert submission", err)
	}
	return row, nil
}

const submissionColumns = `id, participant_id, exercise_name, source_code, tests_passed, clippy_passed, fmt_passed, submitted_at`

func (s *Store) ListPassingSubmissions(ctx context.Context, participantID string) ([]domain.Submission, error) {
	return s.listSubmissions(ctx, "list passing submissions",
		`SELECT `+submissionColumns+` FROM submissions WHERE participant_id = $1 AND tests_passed ORDER BY exercise_name`,
		participantID)
}

func (s *Store) ListSubmissions(ctx context.Context, participantID string) ([]domain.Submission, error) {
	return s.listSubmissions(ctx, "list submissions",
		`SELECT `+submissionColumns+` FROM submissions WHERE participant_id = $1 ORDER BY exercise_name`,
		participantID)
}

func (s *Store) listSubmissions(ctx context.Context, op, query string, args ...interface{}) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapStore(op, err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0)
	for rows.Next() {
		var sub domain.Submission
		if err := rows.Scan(&sub.ID, &sub.ParticipantID, &sub.ExerciseName, &sub.SourceCode,
			&sub.TestsPassed, &sub.ClippyPassed, &sub.FmtPassed, &sub.SubmittedAt); err != nil {
			return nil, domain.WrapStore(op, err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore(op, err)
	}
	return out, nil
}

func (s *Store) CountAdminStats(ctx context.Context) (domain.AdminStats, error) {
	var stats domain.AdminStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM participants),
			(SELECT COUNT(*) FROM submissions WHERE tests_passed),
			(SELECT COUNT(*) FROM submissions WHERE tests_passed AND fmt_passed AND clippy_passed)`).
		Scan(&stats.TotalParticipants, &stats.TotalSubmissions, &stats.TotalPerfected)
	if err != nil {
		return domain.AdminStats{}, domain.WrapStore("count admin stats", err)
	}
	return stats, nil
}

func (s *Store) ListParticipantSummaries(ctx context.Context, totalExercises int) ([]domain.ParticipantSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, COUNT(s.id), MAX(s.submitted_at)
		FROM participants p
		LEFT JOIN submissions s ON s.participant_id = p.id AND s.tests_passed
		GROUP BY p.id, p.name
		ORDER BY MAX(s.submitted_at) DESC NULLS LAST, p.id`)
	if err != nil {
		return nil, domain.WrapStore("list participant summaries", err)
	}
	defer rows.Close()

	out := make([]domain.ParticipantSummary, 0)
	for rows.Next() {
		summary := domain.ParticipantSummary{TotalExercises: int64(totalExercises)}
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.CompletedCount, &summary.LastActivity); err != nil {
			return nil, domain.WrapStore("list participant summaries", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore("list participant summaries", err)
	}
	return out, nil
}

func (s *Store) ListRecentSubmissions(ctx context.Context, limit int) ([]domain.SubmissionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.name, s.exercise_name, s.tests_passed, s.tests_passed AND s.fmt_passed AND s.clippy_passed, s.submitted_at, s.source_code
		FROM submissions s
		JOIN participants p ON p.id = s.participant_id
		ORDER BY s.submitted_at DESC, s.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, domain.WrapStore("list recent submissions", err)
	}
	defer rows.Close()

	out := make([]domain.SubmissionSummary, 0, limit)
	for rows.Next() {
		var sum domain.SubmissionSummary
		if err := rows.Scan(&sum.ParticipantName, &sum.ExerciseName, &sum.TestsPassed, &sum.Perfected, &sum.SubmittedAt, &sum.SourceCode); err != nil {
			return nil, domain.WrapStore("list recent submissions", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore("list recent submissions", err)
	}
	return out, nil
}
