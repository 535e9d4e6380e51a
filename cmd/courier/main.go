package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/courier/internal/cli"
	"github.com/example/courier/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "courier",
		Short:   "Courier - email-driven agent conversation engine",
		Version: version.String(),
		Long: `Courier runs mail-addressable AI agents. Inbound email wakes an
agent, which reasons in bounded rounds, calls tools, asks the user or
other agents for help, and replies over SMTP.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.AgentCmd())
	rootCmd.AddCommand(cli.TeamCmd())
	rootCmd.AddCommand(cli.FlowCmd())
	rootCmd.AddCommand(cli.SweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
