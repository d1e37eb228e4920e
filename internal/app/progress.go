package app

import "corrode-course/internal/domain"

// BuildProgress joins the catalog with a participant's passing rows.
// Output follows catalog order; rows naming exercises outside the catalog are dropped.
func BuildProgress(catalog domain.Catalog, passing []domain.Submission) domain.Progress {
	byName := make(map[string]domain.Submission, len(passing))
	for _, row := range passing {
		if !row.TestsPassed {
			continue
		}
		byName[row.ExerciseName] = row
	}

	statuses := make([]domain.ExerciseStatus, 0, len(catalog.Exercises))
	for _, exercise := range catalog.Exercises {
		row, ok := byName[exercise.Name]
		statuses = append(statuses, domain.ExerciseStatus{
			Name:        exercise.Name,
			Title:       exercise.Title,
			Description: exercise.Description,
			Completed:   ok,
			Perfected:   ok && row.FmtPassed && row.ClippyPassed,
		})
	}
	return domain.Progress{Exercises: statuses}
}

// SummarizeSubmissions counts every stored row of a participant, catalog or not.
func SummarizeSubmissions(rows []domain.Submission) domain.UserStats {
	stats := domain.UserStats{TotalSubmissions: int64(len(rows))}
	for _, row := range rows {
		if row.TestsPassed {
			stats.CompletedCount++
		}
		if row.Perfected() {
			stats.PerfectedCount++
		}
	}
	return stats
}
