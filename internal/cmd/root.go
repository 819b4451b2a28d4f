package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Flickinny11/symphony/internal/config"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for symphony
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symphony",
		Short: "Multi-agent build orchestration engine",
		Long: `Symphony executes build plans by dispatching tasks to a pool of
specialized agents coordinated through shared memory.

It parses plan files (Markdown or YAML), orders tasks by dependency,
and runs independent tasks concurrently while arbitrating concurrent
file edits, tracking context exhaustion and handing work between
agents.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewPlanCommand())
	cmd.AddCommand(NewAgentsCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// loadConfig loads configuration from the --config flag when set,
// falling back to .symphony/config.yaml in the working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
