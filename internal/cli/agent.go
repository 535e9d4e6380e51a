package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/courier/internal/config"
	"github.com/example/courier/internal/wire"
)

// AgentCmd returns the agent command
func AgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage mail-addressable agents",
		Long:  `List, inspect, and import the agents the engine answers mail for.`,
	}

	cmd.AddCommand(agentListCmd())
	cmd.AddCommand(agentShowCmd())
	cmd.AddCommand(agentImportCmd())

	return cmd
}

func agentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			dir, err := wire.Directory().Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("failed to load directory: %w", err)
			}

			if len(dir.Agents) == 0 {
				fmt.Println("No agents configured.")
				fmt.Println()
				fmt.Println("Import a roster:")
				fmt.Println("  courier agent import roster.yaml")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tADDRESS\tTEAM\tMODEL\tSTATUS")
			fmt.Fprintln(w, "--------\t-------\t----\t-----\t------")

			for _, a := range dir.Agents {
				status := color.GreenString("enabled")
				if a.Disabled {
					status = color.RedString("disabled")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.Username, a.Address, a.TeamID, a.Model, status)
			}

			w.Flush()
			return nil
		},
	}
}

func agentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [username]",
		Short: "Show agent details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			dir, err := wire.Directory().Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("failed to load directory: %w", err)
			}

			agent := dir.AgentByUsername(args[0])
			if agent == nil {
				return fmt.Errorf("agent not found: %s", args[0])
			}

			fmt.Printf("Agent: %s\n", agent.Username)
			fmt.Printf("ID: %s\n", agent.ID)
			fmt.Printf("Address: %s\n", agent.Address)
			fmt.Printf("Team: %s\n", agent.TeamID)
			fmt.Printf("Model: %s\n", agent.Model)
			fmt.Printf("Tools: %s\n", strings.Join(agent.Tools, ", "))
			fmt.Printf("Inbound rule: %s\n", agent.InboundRule)
			fmt.Printf("Outbound rule: %s\n", agent.OutboundRule)
			fmt.Printf("Max rounds: %d\n", agent.MaxRounds)
			fmt.Printf("Timeout minutes: %d\n", agent.TimeoutMinutes)
			fmt.Printf("Max depth: %d\n", agent.MaxDepth)
			fmt.Printf("Disabled: %v\n", agent.Disabled)

			return nil
		},
	}
}

func agentImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [roster.yaml]",
		Short: "Import agents and teams from a roster file",
		Long: `Import a YAML roster of agents and teams. Existing entries with the
same id are updated.

Examples:
  courier agent import roster.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			agents, teams, err := config.LoadRoster(args[0])
			if err != nil {
				return err
			}

			for _, t := range teams {
				if err := wire.Directory().SaveTeam(ctx, t); err != nil {
					return fmt.Errorf("failed to save team %s: %w", t.ID, err)
				}
			}
			for _, a := range agents {
				if err := wire.Directory().SaveAgent(ctx, a); err != nil {
					return fmt.Errorf("failed to save agent %s: %w", a.Username, err)
				}
			}

			fmt.Printf("✓ Imported %d agents and %d teams\n", len(agents), len(teams))
			return nil
		},
	}
}

// TeamCmd returns the team command
func TeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage teams",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			dir, err := wire.Directory().Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("failed to load directory: %w", err)
			}

			if len(dir.Teams) == 0 {
				fmt.Println("No teams configured.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMEMBERS")
			fmt.Fprintln(w, "--\t----\t-------")
			for _, t := range dir.Teams {
				fmt.Fprintf(w, "%s\t%s\t%d\n", t.ID, t.Name, len(t.Members))
			}
			w.Flush()
			return nil
		},
	})

	return cmd
}
