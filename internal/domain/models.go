package domain

import "time"

// Participant is a registered learner.
type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// SubmissionInput is what a client reports for one exercise attempt.
type SubmissionInput struct {
	ParticipantID string
	ExerciseName  string
	SourceCode    string
	TestsPassed   bool
	ClippyPassed  bool
	FmtPassed     bool
}

// Submission is the stored attempt for one (participant, exercise) pair.
type Submission struct {
	ID            string
	ParticipantID string
	ExerciseName  string
	SourceCode    string
	TestsPassed   bool
	ClippyPassed  bool
	FmtPassed     bool
	SubmittedAt   time.Time
}

// Perfected reports whether the row passes tests, format and lint checks.
func (s Submission) Perfected() bool {
	return s.TestsPassed && s.FmtPassed && s.ClippyPassed
}

// Exercise is a catalog entry.
type Exercise struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Catalog is the ordered, authoritative list of exercises.
type Catalog struct {
	Exercises []Exercise `json:"exercises"`
}

// ExerciseStatus is one line of a progress view.
type ExerciseStatus struct {
	Name        string `json:"name"`
	Title       string `json:"-"`
	Description string `json:"-"`
	Completed   bool   `json:"completed"`
	Perfected   bool   `json:"perfected"`
}

// Progress lists a participant's status for every catalog entry, in catalog order.
type Progress struct {
	Exercises []ExerciseStatus `json:"exercises"`
}

// CompletedCount counts completed entries.
func (p Progress) CompletedCount() int {
	n := 0
	for _, e := range p.Exercises {
		if e.Completed {
			n++
		}
	}
	return n
}

// PerfectedCount counts perfected entries.
func (p Progress) PerfectedCount() int {
	n := 0
	for _, e := range p.Exercises {
		if e.Perfected {
			n++
		}
	}
	return n
}

// UserStats summarizes every stored row of one participant.
type UserStats struct {
	CompletedCount   int64 `json:"completedCount"`
	PerfectedCount   int64 `json:"perfectedCount"`
	TotalSubmissions int64 `json:"totalSubmissions"`
}

// AdminStats are course-wide totals.
type AdminStats struct {
	TotalParticipants int64 `json:"totalParticipants"`
	TotalSubmissions  int64 `json:"totalSubmissions"`
	TotalPerfected    int64 `json:"totalPerfected"`
}

// ParticipantSummary is a row of the admin participant table.
type ParticipantSummary struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	CompletedCount int64      `json:"completedCount"`
	TotalExercises int64      `json:"totalExercises"`
	LastActivity   *time.Time `json:"lastActivity,omitempty"`
}

// SubmissionSummary is a row of the admin recent-submissions table.
type SubmissionSummary struct {
	ParticipantName string    `json:"participantName"`
	ExerciseName    string    `json:"exerciseName"`
	TestsPassed     bool      `json:"testsPassed"`
	Perfected       bool      `json:"perfected"`
	SubmittedAt     time.Time `json:"submittedAt"`
	SourceCode      string    `json:"sourceCode"`
}

// SubmissionEvent is published after a submission is recorded.
type SubmissionEvent struct {
	SubmissionID  string    `json:"submissionId"`
	ParticipantID string    `json:"participantId"`
	ExerciseName  string    `json:"exerciseName"`
	TestsPassed   bool      `json:"testsPassed"`
	ClippyPassed  bool      `json:"clippyPassed"`
	FmtPassed     bool      `json:"fmtPassed"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// NewSubmissionEvent derives the event for a stored row.
func NewSubmissionEvent(s Submission) SubmissionEvent {
	return SubmissionEvent{
		SubmissionID:  s.ID,
		ParticipantID: s.ParticipantID,
		ExerciseName:  s.ExerciseName,
		TestsPassed:   s.TestsPassed,
		ClippyPassed:  s.ClippyPassed,
		FmtPassed:     s.FmtPassed,
		SubmittedAt:   s.SubmittedAt,
	}
}
