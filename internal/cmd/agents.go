package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Flickinny11/symphony/internal/agents"
	"github.com/Flickinny11/symphony/internal/models"
)

// NewAgentsCommand creates and returns the agents subcommand
func NewAgentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Show the agent category catalog",
		Long: `Show the agent categories the pool can spawn, their context window
sizes and their capabilities.

The built-in catalog can be overridden per category through the agents
file (default: .symphony/agents.yaml).`,
		Args: cobra.NoArgs,
		RunE: agentsCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .symphony/config.yaml)")

	return cmd
}

// agentsCommand implements the agents command logic
func agentsCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	catalog, err := agents.LoadCatalog(cfg.AgentsFile)
	if err != nil {
		return fmt.Errorf("load agent catalog: %w", err)
	}

	categories := models.Categories()
	catW := len("Category")
	for _, cat := range categories {
		if len(cat) > catW {
			catW = len(cat)
		}
	}

	head := fmt.Sprintf("%-*s  %-11s  %s", catW, "Category", "Max Context", "Capabilities")
	fmt.Fprintln(out, head)
	fmt.Fprintln(out, strings.Repeat("-", len(head)))
	for _, cat := range categories {
		fmt.Fprintf(out, "%-*s  %-11d  %s\n",
			catW, string(cat), catalog.MaxContext(cat), strings.Join(catalog.Capabilities(cat), ", "))
	}
	return nil
}
