package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Op names the API call that failed.
type Op string

const (
	OpRegister Op = "register"
	OpSubmit   Op = "submit"
	OpStatus   Op = "status"
)

// ErrInvalidToken is matched by a 401 from the submit endpoint.
var ErrInvalidToken = errors.New("invalid token: run 'cargo course init' to register or check your token")

// NetworkError means the server could not be reached at all.
type NetworkError struct {
	Op        Op
	ServerURL string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("Cannot connect to the corrode course server at %s (%v)\n\n%s", e.ServerURL, e.Err, e.Hint())
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Hint is the offline guidance shown to the operator.
func (e *NetworkError) Hint() string {
	switch e.Op {
	case OpRegister:
		return "The course server may not be running, or you are working offline.\n" +
			"For offline practice, use manual testing instead:\n  cargo test --example 00_hello_rust"
	case OpSubmit:
		return "Your solution was tested locally but couldn't be submitted.\n" +
			"For offline practice, continue using: cargo test --example <exercise_name>"
	default:
		return "Server is not available to show your progress.\n" +
			"Continue practicing with: cargo test --example <exercise_name>"
	}
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	Op     Op
	Code   int
	Status string
}

func newStatusError(op Op, resp *http.Response) *StatusError {
	return &StatusError{Op: op, Code: resp.StatusCode, Status: resp.Status}
}

func (e *StatusError) Error() string {
	switch {
	case e.Op == OpSubmit && e.Code == http.StatusUnauthorized:
		return ErrInvalidToken.Error()
	case e.Op == OpSubmit && e.Code == http.StatusBadRequest:
		return "Invalid submission data. Please check your exercise file and try again."
	case e.Op == OpSubmit:
		return "Submission failed: " + e.Status
	case e.Op == OpRegister:
		return "Registration failed: " + e.Status
	default:
		return "Failed to fetch progress: " + e.Status
	}
}

func (e *StatusError) Is(target error) bool {
	return target == ErrInvalidToken && e.Op == OpSubmit && e.Code == http.StatusUnauthorized
}

// Phase names a step of the submission pipeline.
type Phase string

const (
	PhaseExerciseName Phase = "parse file name"
	PhaseReadFile     Phase = "read file"
	PhaseRunTests     Phase = "run tests"
	PhaseRunLint      Phase = "run lint checks"
	PhaseUpload       Phase = "upload"
)

// ErrTestsFailed is reported by batch mode for exercises whose tests fail.
var ErrTestsFailed = errors.New("tests failed")

// PhaseError ties a pipeline failure to the exercise and step that produced it.
type PhaseError struct {
	Exercise string
	Phase    Phase
	Err      error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Exercise, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
