package client

import (
	"context"
	"os"

	"corrode-course/internal/domain"
	"corrode-course/internal/infra/exercises"
	httpapi "corrode-course/internal/transport/http"
	"golang.org/x/sync/errgroup"
)

// MaxConcurrentSubmissions caps batch mode so cargo and the network are not swamped.
const MaxConcurrentSubmissions = 4

// Result is the outcome of one submitted exercise.
type Result struct {
	Exercise     string
	TestsPassed  bool
	FmtPassed    bool
	ClippyPassed bool
	TestOutput   string
}

func (r Result) Perfected() bool {
	return r.TestsPassed && r.FmtPassed && r.ClippyPassed
}

// BatchFailure records why one exercise in a batch was not submitted.
type BatchFailure struct {
	Exercise string
	Err      error
}

// BatchReport is produced once every task of a batch has finished.
type BatchReport struct {
	Submitted []Result
	Failed    []BatchFailure
}

// Submitter runs the local checks for exercise files and uploads the outcomes.
type Submitter struct {
	client      *Client
	runner      CheckRunner
	token       domain.Token
	pedantic    bool
	concurrency int
}

func NewSubmitter(client *Client, runner CheckRunner, token domain.Token, pedantic bool) *Submitter {
	return &Submitter{
		client:      client,
		runner:      runner,
		token:       token,
		pedantic:    pedantic,
		concurrency: MaxConcurrentSubmissions,
	}
}

// SubmitFile tests one exercise and submits the result whether or not tests pass.
func (s *Submitter) SubmitFile(ctx context.Context, path string) (Result, error) {
	return s.process(ctx, path, false)
}

// SubmitAll processes files with bounded concurrency. Exercises whose tests fail
// are not uploaded; a failure never stops the other tasks.
func (s *Submitter) SubmitAll(ctx context.Context, files []string) BatchReport {
	type outcome struct {
		result Result
		err    error
	}
	outcomes := make([]outcome, len(files))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, path := range files {
		g.Go(func() error {
			res, err := s.process(ctx, path, true)
			outcomes[i] = outcome{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var report BatchReport
	for i, o := range outcomes {
		if o.err != nil {
			name := o.result.Exercise
			if name == "" {
				name = files[i]
			}
			report.Failed = append(report.Failed, BatchFailure{Exercise: name, Err: o.err})
			continue
		}
		report.Submitted = append(report.Submitted, o.result)
	}
	return report
}

func (s *Submitter) process(ctx context.Context, path string, requirePassing bool) (Result, error) {
	name, err := exercises.ExerciseName(path)
	if err != nil {
		return Result{}, &PhaseError{Exercise: path, Phase: PhaseExerciseName, Err: err}
	}
	res := Result{Exercise: name}

	source, err := os.ReadFile(path)
	if err != nil {
		return res, &PhaseError{Exercise: name, Phase: PhaseReadFile, Err: err}
	}

	passed, output, err := s.runner.RunTests(ctx, name)
	if err != nil {
		return res, &PhaseError{Exercise: name, Phase: PhaseRunTests, Err: err}
	}
	res.TestsPassed, res.TestOutput = passed, output
	if requirePassing && !passed {
		return res, &PhaseError{Exercise: name, Phase: PhaseRunTests, Err: ErrTestsFailed}
	}

	if s.pedantic {
		if res.FmtPassed, err = s.runner.RunFmt(ctx); err != nil {
			return res, &PhaseError{Exercise: name, Phase: PhaseRunLint, Err: err}
		}
		if res.ClippyPassed, err = s.runner.RunClippy(ctx); err != nil {
			return res, &PhaseError{Exercise: name, Phase: PhaseRunLint, Err: err}
		}
	}

	err = s.client.Submit(ctx, httpapi.SubmitRequest{
		ULID:         s.token.String(),
		ExerciseName: name,
		SourceCode:   string(source),
		TestsPassed:  res.TestsPassed,
		ClippyPassed: res.ClippyPassed,
		FmtPassed:    res.FmtPassed,
	})
	if err != nil {
		return res, &PhaseError{Exercise: name, Phase: PhaseUpload, Err: err}
	}
	return res, nil
}
