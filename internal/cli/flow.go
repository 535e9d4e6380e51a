package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/courier/internal/core/flow"
	"github.com/example/courier/internal/wire"
)

// FlowCmd returns the flow command
func FlowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Inspect conversation flows",
		Long:  `List and inspect the bounded multi-round conversations agents have run.`,
	}

	cmd.AddCommand(flowListCmd())
	cmd.AddCommand(flowShowCmd())

	return cmd
}

func flowListCmd() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list [agent-username]",
		Short: "List an agent's flows",
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

			var states []flow.State
			if state != "" {
				s := flow.State(state)
				if !s.Valid() {
					return fmt.Errorf("unknown state: %s", state)
				}
				states = append(states, s)
			}

			flows, err := wire.FlowService().ListFlows(ctx, agent.ID, states...)
			if err != nil {
				return fmt.Errorf("failed to list flows: %w", err)
			}

			if len(flows) == 0 {
				fmt.Println("No flows found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tROUNDS\tTRIGGER\tFROM\tUPDATED")
			fmt.Fprintln(w, "--\t-----\t------\t-------\t----\t-------")

			for _, f := range flows {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\t%s\n",
					f.ID,
					colorState(f.State),
					f.Round, f.MaxRounds,
					f.TriggerKind,
					f.Trigger.From,
					f.UpdatedAt.Format("2006-01-02 15:04"),
				)
			}

			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "filter by state (active, waiting, completed, timed_out, failed)")

	return cmd
}

func flowShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [flow-id]",
		Short: "Show a flow with its round history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			f, err := wire.FlowService().GetFlow(ctx, args[0])
			if err != nil {
				return fmt.Errorf("flow not found: %w", err)
			}

			fmt.Printf("Flow: %s\n", f.ID)
			fmt.Printf("Agent: %s\n", f.AgentID)
			fmt.Printf("State: %s\n", colorState(f.State))
			fmt.Printf("Rounds: %d/%d\n", f.Round, f.MaxRounds)
			fmt.Printf("Depth: %d/%d\n", f.Depth, f.MaxDepth)
			fmt.Printf("Trigger: %s from %s\n", f.TriggerKind, f.Trigger.From)
			fmt.Printf("Subject: %s\n", f.Trigger.Subject)
			fmt.Printf("Conversation: %s\n", f.ConversationID())
			if f.ParentRequestID != "" {
				fmt.Printf("Parent request: %s\n", f.ParentRequestID)
			}
			if f.Waiting != nil {
				fmt.Printf("Waiting for: %s", f.Waiting.Type)
				if f.Waiting.RequestID != "" {
					fmt.Printf(" (request %s, target %s)", f.Waiting.RequestID, f.Waiting.TargetAgentID)
				}
				fmt.Println()
			}
			if f.TimeoutAt != nil {
				fmt.Printf("Timeout at: %s\n", f.TimeoutAt.Format("2006-01-02 15:04"))
			}

			if len(f.History) > 0 {
				fmt.Println()
				fmt.Println("History:")
				for _, rec := range f.History {
					fmt.Printf("  round %d [%s] -> %s\n", rec.Index, rec.Timestamp.Format("15:04:05"), rec.Decision)
					if rec.Input != "" {
						fmt.Printf("    input (%s): %s\n", rec.From, truncate(rec.Input, 80))
					}
					for _, tc := range rec.ToolCalls {
						outcome := "ok"
						if !tc.Success {
							outcome = "failed: " + tc.Error
						}
						fmt.Printf("    tool %s: %s\n", tc.Name, outcome)
					}
					if rec.Reply != "" {
						fmt.Printf("    reply: %s\n", truncate(rec.Reply, 80))
					}
				}
			}

			return nil
		},
	}
}

func colorState(s flow.State) string {
	switch s {
	case flow.StateActive:
		return color.CyanString(string(s))
	case flow.StateWaiting:
		return color.YellowString(string(s))
	case flow.StateCompleted:
		return color.GreenString(string(s))
	case flow.StateTimedOut, flow.StateFailed:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
