package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI. Invoked as a cargo subcommand ("cargo course ...")
// cargo passes the subcommand name first, which is dropped here.
func Execute() error {
	cmd := newRootCmd()
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "course" {
		args = args[1:]
	}
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:          "cargo-course",
		Short:        "Track progress through the corrode Rust course",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config (server commands)")
	start := NewStartCmd(&configPath, &port)
	start.Flags().StringVar(&port, "port", "", "port to listen on (overrides PORT and config)")
	cmd.AddCommand(start)
	cmd.AddCommand(NewMigrateCmd(&configPath))

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewSubmitCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewOpenCmd())
	cmd.AddCommand(NewTokenCmd())
	return cmd
}
