package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/courier/internal/config"
	"github.com/example/courier/internal/db"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the courier environment",
		Long: `Environment health check for courier.

Validates:
- Config file presence and parseability
- Database reachability and schema
- SMTP relay configuration
- Model provider credentials
- Agent directory contents

Examples:
  courier doctor          # Run full health check
  courier doctor --quiet  # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := []CheckResult{
				checkConfig(),
				checkDatabase(),
				checkSMTP(),
				checkModel(),
				checkAgents(),
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for _, r := range results {
					status := r.Status
					switch status {
					case "✓":
						status = color.GreenString(status)
					case "⚠":
						status = color.YellowString(status)
					case "✗":
						status = color.RedString(status)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", status, r.Name, r.Details)
				}
				w.Flush()
			}

			if hasErrors {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Exit code only")

	return cmd
}

func loadDoctorConfig() (config.Config, string, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return config.Config{}, "", err
	}
	if env := os.Getenv("COURIER_CONFIG"); env != "" {
		path = env
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

func checkConfig() CheckResult {
	_, path, err := loadDoctorConfig()
	if err != nil {
		return CheckResult{Name: "config", Status: "✗", Details: err.Error()}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{Name: "config", Status: "⚠", Details: "no config file, using defaults (run: courier init)"}
	}
	return CheckResult{Name: "config", Status: "✓"}
}

func checkDatabase() CheckResult {
	cfg, _, err := loadDoctorConfig()
	if err != nil {
		return CheckResult{Name: "database", Status: "✗", Details: err.Error()}
	}

	path := cfg.DB.Path
	if path == "" {
		path, err = db.DefaultPath()
		if err != nil {
			return CheckResult{Name: "database", Status: "✗", Details: err.Error()}
		}
	}

	database, err := db.Open(path)
	if err != nil {
		return CheckResult{Name: "database", Status: "✗", Details: err.Error()}
	}
	defer database.Close()

	if err := database.Ping(); err != nil {
		return CheckResult{Name: "database", Status: "✗", Details: err.Error()}
	}
	return CheckResult{Name: "database", Status: "✓"}
}

func checkSMTP() CheckResult {
	cfg, _, err := loadDoctorConfig()
	if err != nil {
		return CheckResult{Name: "smtp", Status: "✗", Details: err.Error()}
	}
	if cfg.SMTP.Host == "" {
		return CheckResult{Name: "smtp", Status: "✗", Details: "no relay host configured, outbound mail cannot be sent"}
	}
	return CheckResult{Name: "smtp", Status: "✓"}
}

func checkModel() CheckResult {
	cfg, _, err := loadDoctorConfig()
	if err != nil {
		return CheckResult{Name: "model", Status: "✗", Details: err.Error()}
	}
	if cfg.LLM.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return CheckResult{Name: "model", Status: "✗", Details: "no API key in config or OPENAI_API_KEY"}
	}
	return CheckResult{Name: "model", Status: "✓"}
}

func checkAgents() CheckResult {
	cfg, _, err := loadDoctorConfig()
	if err != nil {
		return CheckResult{Name: "agents", Status: "✗", Details: err.Error()}
	}

	path := cfg.DB.Path
	if path == "" {
		path, err = db.DefaultPath()
		if err != nil {
			return CheckResult{Name: "agents", Status: "✗", Details: err.Error()}
		}
	}
	database, err := db.Open(path)
	if err != nil {
		return CheckResult{Name: "agents", Status: "✗", Details: err.Error()}
	}
	defer database.Close()

	var count int
	row := database.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM agents")
	if err := row.Scan(&count); err != nil {
		return CheckResult{Name: "agents", Status: "✗", Details: err.Error()}
	}
	if count == 0 {
		return CheckResult{Name: "agents", Status: "⚠", Details: "no agents configured (run: courier agent import)"}
	}
	return CheckResult{Name: "agents", Status: "✓", Details: fmt.Sprintf("%d configured", count)}
}
