package client

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CheckRunner runs the local checks whose outcomes are reported to the server.
type CheckRunner interface {
	RunTests(ctx context.Context, exercise string) (passed bool, output string, err error)
	RunFmt(ctx context.Context) (bool, error)
	RunClippy(ctx context.Context) (bool, error)
}

// CargoRunner shells out to cargo in Dir.
type CargoRunner struct {
	Dir string
}

func (r CargoRunner) RunTests(ctx context.Context, exercise string) (bool, string, error) {
	return r.run(ctx, "test", "--example", exercise)
}

func (r CargoRunner) RunFmt(ctx context.Context) (bool, error) {
	ok, _, err := r.run(ctx, "fmt", "--check")
	return ok, err
}

func (r CargoRunner) RunClippy(ctx context.Context) (bool, error) {
	ok, _, err := r.run(ctx, "clippy", "--", "-D", "warnings")
	return ok, err
}

// run reports a non-zero exit as a failed check; only a missing or
// unstartable cargo is an error.
func (r CargoRunner) run(ctx context.Context, args ...string) (bool, string, error) {
	cmd := exec.CommandContext(ctx, "cargo", args...)
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return true, stderr.String(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, stderr.String(), nil
	}
	return false, stderr.String(), err
}
