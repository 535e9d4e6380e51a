// Package cli contains the cobra commands of the courier binary.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/courier/internal/config"
	"github.com/example/courier/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the courier database and config",
		Long:  `Initialize the courier database at ~/.courier/courier.db and write a default config.json next to it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := db.DefaultPath()
			if err != nil {
				return fmt.Errorf("failed to get database path: %w", err)
			}

			fmt.Printf("Initializing courier database at %s\n", dbPath)

			database, err := db.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			database.Close()

			fmt.Println("✓ Database initialized successfully")

			cfgPath, err := config.DefaultPath()
			if err != nil {
				return fmt.Errorf("failed to get config path: %w", err)
			}
			if err := config.Save(cfgPath, config.Default()); err != nil {
				return err
			}

			fmt.Printf("✓ Config file at %s\n", cfgPath)
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  edit the config with your SMTP relay and model key")
			fmt.Println("  courier agent import roster.yaml")
			fmt.Println("  courier serve")

			return nil
		},
	}
}
