package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"corrode-course/internal/domain"
	"corrode-course/internal/infra/sqlite/migrations"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/migrate"
)

// Open opens (creating if needed) the SQLite database at path.
// A single connection serializes writers, which SQLite requires anyway.
func Open(path string) (*sql.DB, error) {
	path = strings.TrimPrefix(path, "sqlite:")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, sqldb *sql.DB) error {
	db := bun.NewDB(sqldb, sqlitedialect.New())
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	_, err := migrator.Migrate(ctx)
	return err
}

// Store implements app.SubmissionStore on SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateParticipant(ctx context.Context, name domain.Name, createdAt time.Time) (domain.Participant, error) {
	p := domain.Participant{ID: domain.GenerateID(), Name: name.String(), CreatedAt: createdAt.UTC()}
	_, err := s.db.ExecContext(ctx, `INSERT INTO participants (id, name, created_at) VALUES (?, ?, ?)`, p.ID, p.Name, p.CreatedAt)
	if err != nil {
		return domain.Participant{}, domain.WrapStore("create participant", err)
	}
	return p, nil
}

func (s *Store) ParticipantExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM participants WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.WrapStore("participant exists", err)
	}
	return true, nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (domain.Participant, error) {
	var p domain.Participant
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM participants WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, domain.WrapStore("get participant", err)
	}
	return p, nil
}

func (s *Store) UpsertSubmission(ctx context.Context, in domain.SubmissionInput, submittedAt time.Time) (domain.Submission, error) {
	row := domain.Submission{
		ID:            domain.GenerateID(),
		ParticipantID: in.ParticipantID,
		ExerciseName:  in.ExerciseName,
		SourceCode:    in.SourceCode,
		TestsPassed:   in.TestsPassed,
		ClippyPassed:  in.ClippyPassed,
		FmtPassed:     in.FmtPassed,
		SubmittedAt:   submittedAt.UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, participant_id, exercise_name, source_code, tests_passed, clippy_passed, fmt_passed, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (participant_id, exercise_name) DO UPDATE SET
			id = excluded.id,
			source_code = excluded.source_code,
			tests_passed = excluded.tests_passed,
			clippy_passed = excluded.clippy_passed,
			fmt_passed = excluded.fmt_passed,
			submitted_at = excluded.submitted_at`,
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
		`SELECT `+submissionColumns+` FROM submissions WHERE participant_id = ? AND tests_passed = 1 ORDER BY exercise_name`,
		participantID)
}

func (s *Store) ListSubmissions(ctx context.Context, participantID string) ([]domain.Submission, error) {
	return s.listSubmissions(ctx, "list submissions",
		`SELECT `+submissionColumns+` FROM submissions WHERE participant_id = ? ORDER BY exercise_name`,
		participantID)
}

func (s *Store) listSubmissions(ctx context.Context, op, query string, args ...any) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM participants),
			(SELECT COUNT(*) FROM submissions WHERE tests_passed = 1),
			(SELECT COUNT(*) FROM submissions WHERE tests_passed = 1 AND fmt_passed = 1 AND clippy_passed = 1)`).
		Scan(&stats.TotalParticipants, &stats.TotalSubmissions, &stats.TotalPerfected)
	if err != nil {
		return domain.AdminStats{}, domain.WrapStore("count admin stats", err)
	}
	return stats, nil
}

func (s *Store) ListParticipantSummaries(ctx context.Context, totalExercises int) ([]domain.ParticipantSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, COUNT(s.id), MAX(s.submitted_at) AS last_activity
		FROM participants p
		LEFT JOIN submissions s ON s.participant_id = p.id AND s.tests_passed = 1
		GROUP BY p.id, p.name
		ORDER BY last_activity IS NULL, last_activity DESC, p.id`)
	if err != nil {
		return nil, domain.WrapStore("list participant summaries", err)
	}
	defer rows.Close()

	out := make([]domain.ParticipantSummary, 0)
	for rows.Next() {
		summary := domain.ParticipantSummary{TotalExercises: int64(totalExercises)}
		// aggregates lose the column type, so the timestamp comes back as text
		var last sql.NullString
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.CompletedCount, &last); err != nil {
			return nil, domain.WrapStore("list participant summaries", err)
		}
		if last.Valid {
			at, err := parseTimestamp(last.String)
			if err != nil {
				return nil, domain.WrapStore("list participant summaries", err)
			}
			summary.LastActivity = &at
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore("list participant summaries", err)
	}
	return out, nil
}

func (s *Store) ListRecentSubmissions(ctx context.Context, limit int) ([]domain.SubmissionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name, s.exercise_name, s.tests_passed, s.fmt_passed, s.clippy_passed, s.submitted_at, s.source_code
		FROM submissions s
		JOIN participants p ON p.id = s.participant_id
		ORDER BY s.submitted_at DESC, s.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, domain.WrapStore("list recent submissions", err)
	}
	defer rows.Close()

	out := make([]domain.SubmissionSummary, 0, limit)
	for rows.Next() {
		var (
			sum             domain.SubmissionSummary
			fmtOK, clippyOK bool
		)
		if err := rows.Scan(&sum.ParticipantName, &sum.ExerciseName, &sum.TestsPassed, &fmtOK, &clippyOK, &sum.SubmittedAt, &sum.SourceCode); err != nil {
			return nil, domain.WrapStore("list recent submissions", err)
		}
		sum.Perfected = sum.TestsPassed && fmtOK && clippyOK
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore("list recent submissions", err)
	}
	return out, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSuffix(raw, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
