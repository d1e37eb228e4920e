package http

// Wire types shared by the server handlers and the CLI client.

type RegisterRequest struct {
	Name string `json:"name"`
}

type RegisterResponse struct {
	ULID string `json:"ulid"`
}

type SubmitRequest struct {
	ULID         string `json:"ulid"`
	ExerciseName string `json:"exercise_name"`
	SourceCode   string `json:"source_code"`
	TestsPassed  bool   `json:"tests_passed"`
	ClippyPassed bool   `json:"clippy_passed"`
	FmtPassed    bool   `json:"fmt_passed"`
}

type ExerciseStatus struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	Perfected bool   `json:"perfected"`
}

type ProgressResponse struct {
	Exercises []ExerciseStatus `json:"exercises"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
