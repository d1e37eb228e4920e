package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"corrode-course/internal/client"
	"corrode-course/internal/domain"
	"corrode-course/internal/infra/exercises"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

// ExercisesDir is where submit --all looks for exercise files.
const ExercisesDir = "examples"

// Swapped in tests.
var (
	newRunner  = func() client.CheckRunner { return client.CargoRunner{} }
	openURL    = browser.OpenURL
	tokenStore = func() *client.TokenStore { return client.NewTokenStore(client.TokenFile) }
)

func newAPIClient() *client.Client {
	return client.New(client.ServerURL())
}

// NewInitCmd registers a participant, or stores a token given with --token.
func NewInitCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the course repository and register participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			store := tokenStore()

			if cmd.Flags().Changed("token") {
				parsed, err := domain.ParseToken(token)
				if err != nil {
					return err
				}
				if err := store.Save(parsed); err != nil {
					return err
				}
				fmt.Fprintf(out, "✅ Token saved successfully: %s\n", parsed)
				printUsageHints(out, true)
				return nil
			}

			if existing, err := store.Load(); err == nil {
				fmt.Fprintf(out, "✅ You're already registered with token: %s\n", existing)
				fmt.Fprintln(out, "💡 Use --token <TOKEN> to replace with a different token")
				return nil
			}

			fmt.Fprintln(out, "🚀 Welcome to the corrode Rust Course!")
			fmt.Fprint(out, "How should I call you? ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			name, err := domain.NewName(line)
			if err != nil {
				return err
			}
			registered, err := newAPIClient().Register(cmd.Context(), name)
			if err != nil {
				return err
			}
			if err := store.Save(registered); err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Registered successfully! Token: %s\n", registered)
			printUsageHints(out, false)
			return nil
		},
	}
	cmd.Flags().StringVarP(&token, "token", "t", "", "use an existing token instead of registering a new participant")
	return cmd
}

func printUsageHints(out io.Writer, withOpen bool) {
	fmt.Fprintln(out, "💡 Submit exercises with: cargo course submit <file>")
	fmt.Fprintln(out, "💡 For pedantic submissions (earn stars): cargo course submit <file> --pedantic")
	if withOpen {
		fmt.Fprintln(out, "💡 Open dashboard with: cargo course open")
	}
}

// NewSubmitCmd tests and submits one exercise file, or every exercise with --all.
func NewSubmitCmd() *cobra.Command {
	var pedantic, all bool
	cmd := &cobra.Command{
		Use:   "submit [file]",
		Short: "Submit an exercise solution",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenStore().Load()
			if err != nil {
				return err
			}
			submitter := client.NewSubmitter(newAPIClient(), newRunner(), token, pedantic)
			if all {
				return submitAll(cmd, submitter)
			}
			if len(args) == 0 {
				return errors.New("file path is required when not using --all")
			}
			return submitOne(cmd, submitter, args[0], pedantic)
		},
	}
	cmd.Flags().BoolVar(&pedantic, "pedantic", false, "run fmt and clippy for a pedantic submission to earn a star")
	cmd.Flags().BoolVar(&all, "all", false, "submit all exercises that pass tests")
	return cmd
}

func submitOne(cmd *cobra.Command, submitter *client.Submitter, path string, pedantic bool) error {
	out := cmd.OutOrStdout()
	res, err := submitter.SubmitFile(cmd.Context(), path)
	if err != nil {
		return err
	}
	switch {
	case res.TestsPassed && res.Perfected():
		fmt.Fprintf(out, "⭐ Exercise %s perfected! You earned a star!\n", res.Exercise)
	case res.TestsPassed:
		fmt.Fprintf(out, "✅ Exercise %s completed!\n", res.Exercise)
		if !pedantic {
			fmt.Fprintln(out, "💡 Try submitting with --pedantic to earn a star and perfect your code!")
		}
	default:
		fmt.Fprintf(out, "❌ Tests failed for %s\n", res.Exercise)
		if res.TestOutput != "" {
			fmt.Fprintf(out, "\n🔍 Test output for troubleshooting:\n%s\n", res.TestOutput)
		}
	}
	return nil
}

func submitAll(cmd *cobra.Command, submitter *client.Submitter) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🔍 Scanning for exercises...")
	files, err := exercises.FindExerciseFiles(ExercisesDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "❌ No exercise files found in %s/ directory\n", ExercisesDir)
		return nil
	}
	fmt.Fprintf(out, "📋 Found %d exercise files\n", len(files))
	fmt.Fprintf(out, "🚀 Testing exercises in parallel (up to %d at a time)...\n", client.MaxConcurrentSubmissions)

	report := submitter.SubmitAll(cmd.Context(), files)
	for _, res := range report.Submitted {
		if res.Perfected() {
			fmt.Fprintf(out, "⭐ %s perfected\n", res.Exercise)
		} else {
			fmt.Fprintf(out, "✅ %s submitted successfully\n", res.Exercise)
		}
	}
	for _, failure := range report.Failed {
		fmt.Fprintf(out, "❌ %s\n", failureReason(failure))
	}

	fmt.Fprintln(out, "\n📊 Submission Summary:")
	fmt.Fprintf(out, "✅ Successfully submitted: %d\n", len(report.Submitted))
	if len(report.Failed) > 0 {
		names := make([]string, 0, len(report.Failed))
		for _, failure := range report.Failed {
			names = append(names, failure.Exercise)
		}
		fmt.Fprintf(out, "❌ Failed exercises: %d\n   %s\n", len(report.Failed), strings.Join(names, ", "))
	}
	if len(report.Submitted) > 0 {
		fmt.Fprintln(out, "\n🎉 Use 'cargo course status' to see your updated progress!")
	}
	return nil
}

func failureReason(f client.BatchFailure) string {
	var phaseErr *client.PhaseError
	if errors.As(f.Err, &phaseErr) {
		if errors.Is(phaseErr.Err, client.ErrTestsFailed) {
			return f.Exercise + ": tests failed"
		}
		return fmt.Sprintf("%s: %s failed: %v", f.Exercise, phaseErr.Phase, phaseErr.Err)
	}
	return fmt.Sprintf("%s: %v", f.Exercise, f.Err)
}

// NewStatusCmd prints the participant's progress.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show progress and available exercises",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenStore().Load()
			if err != nil {
				return err
			}
			progress, err := newAPIClient().Progress(cmd.Context(), token)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "📚 corrode Rust Course Progress")
			completed := 0
			for _, e := range progress.Exercises {
				icon := "⏳"
				switch {
				case e.Perfected:
					icon = "⭐"
				case e.Completed:
					icon = "✅"
				}
				if e.Completed {
					completed++
				}
				fmt.Fprintf(out, "%s %s\n", icon, e.Name)
			}
			fmt.Fprintf(out, "\nProgress: %d/%d exercises\n", completed, len(progress.Exercises))
			return nil
		},
	}
}

// NewOpenCmd opens the participant dashboard in a browser.
func NewOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the course dashboard in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenStore().Load()
			if err != nil {
				return err
			}
			target := newAPIClient().DashboardURL(token)
			if err := openURL(target); err != nil {
				return fmt.Errorf("failed to open browser, please visit: %s", target)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🌐 Opening course dashboard: %s\n", target)
			return nil
		},
	}
}

// NewTokenCmd prints the stored token.
func NewTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the current token to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenStore().Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
