package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"corrode-course/internal/domain"
)

type submissionKey struct {
	participantID string
	exerciseName  string
}

// Store is an in-memory implementation of app.SubmissionStore.
// A single mutex makes every upsert atomic per (participant, exercise) pair.
type Store struct {
	mu           sync.RWMutex
	participants map[string]domain.Participant
	submissions  map[submissionKey]domain.Submission
}

func NewStore() *Store {
	return &Store{
		participants: make(map[string]domain.Participant),
		submissions:  make(map[submissionKey]domain.Submission),
	}
}

func (s *Store) CreateParticipant(_ context.Context, name domain.Name, createdAt time.Time) (domain.Participant, error) {
	p := domain.Participant{
		ID:        domain.GenerateID(),
		Name:      name.String(),
		CreatedAt: createdAt,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = p
	return p, nil
}

func (s *Store) ParticipantExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.participants[id]
	return ok, nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p, nil
}

func (s *Store) UpsertSubmission(_ context.Context, in domain.SubmissionInput, submittedAt time.Time) (domain.Submission, error) {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[in.ParticipantID]; !ok {
		// mirrors the foreign key of the SQL stores
		return domain.Submission{}, domain.WrapStore("upsert submission", domain.ErrUnauthorized)
	}
	s.submissions[submissionKey{in.ParticipantID, in.ExerciseName}] = row
	return row, nil
}

func (s *Store) ListPassingSubmissions(ctx context.Context, participantID string) ([]domain.Submission, error) {
	rows, _ := s.ListSubmissions(ctx, participantID)
	passing := rows[:0]
	for _, row := range rows {
		if row.TestsPassed {
			passing = append(passing, row)
		}
	}
	return passing, nil
}

func (s *Store) ListSubmissions(_ context.Context, participantID string) ([]domain.Submission, error) {
	s.mu.RLock()
	rows := make([]domain.Submission, 0)
	for key, row := range s.submissions {
		if key.participantID == participantID {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].ExerciseName < rows[j].ExerciseName })
	return rows, nil
}

func (s *Store) CountAdminStats(_ context.Context) (domain.AdminStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.AdminStats{TotalParticipants: int64(len(s.participants))}
	for _, row := range s.submissions {
		if row.TestsPassed {
			stats.TotalSubmissions++
		}
		if row.Perfected() {
			stats.TotalPerfected++
		}
	}
	return stats, nil
}

func (s *Store) ListParticipantSummaries(_ context.Context, totalExercises int) ([]domain.ParticipantSummary, error) {
	s.mu.RLock()
	summaries := make(map[string]*domain.ParticipantSummary, len(s.participants))
	for id, p := range s.participants {
		summaries[id] = &domain.ParticipantSummary{
			ID:             p.ID,
			Name:           p.Name,
			TotalExercises: int64(totalExercises),
		}
	}
	for key, row := range s.submissions {
		if !row.TestsPassed {
			continue
		}
		summary := summaries[key.participantID]
		summary.CompletedCount++
		if summary.LastActivity == nil || row.SubmittedAt.After(*summary.LastActivity) {
			at := row.SubmittedAt
			summary.LastActivity = &at
		}
	}
	s.mu.RUnlock()

	out := make([]domain.ParticipantSummary, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, *summary)
	}
	// most recent activity first, idle participants last
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastActivity, out[j].LastActivity
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListRecentSubmissions(_ context.Context, limit int) ([]domain.SubmissionSummary, error) {
	s.mu.RLock()
	rows := make([]domain.Submission, 0, len(s.submissions))
	for _, row := range s.submissions {
		rows = append(rows, row)
	}
	names := make(map[string]string, len(s.participants))
	for id, p := range s.participants {
		names[id] = p.Name
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].SubmittedAt.Equal(rows[j].SubmittedAt) {
			return rows[i].SubmittedAt.After(rows[j].SubmittedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]domain.SubmissionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.SubmissionSummary{
			ParticipantName: names[row.ParticipantID],
			ExerciseName:    row.ExerciseName,
			TestsPassed:     row.TestsPassed,
			Perfected:       row.Perfected(),
			SubmittedAt:     row.SubmittedAt,
			SourceCode:      row.SourceCode,
		})
	}
	return out, nil
}
