package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/courier/internal/wire"
)

// SweepCmd returns the sweep command
func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Time out expired waiting flows",
		Long: `Run one sweep pass: waiting flows whose deadline has passed become
timed_out and the requester gets a final notice. The serve command runs
this periodically; the standalone command exists for cron setups and
debugging.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := wire.FlowService().SweepTimeouts(context.Background())
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			if n == 0 {
				fmt.Println("No expired flows.")
			} else {
				fmt.Printf("✓ Timed out %d flow(s)\n", n)
			}
			return nil
		},
	}
}
