package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seastate/bsose-sync/internal/config"
	"github.com/seastate/bsose-sync/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the progress of the current or last run",
	Long: `Status reads the run status file from the state directory and prints it.
The file is observational only: it reports progress but is never used to
resume a run. A restarted driver always re-runs the full schedule.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	statusCmd.Flags().String("format", "", "Output format (json)")

	if err := statusCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read config flag: %w", err)
	}
	format, _ := cmd.Flags().GetString("format")

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	persistence := status.NewFilePersistence(cfg.GetStateDir())
	runStatus, err := persistence.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read run status: %w", err)
	}
	if runStatus == nil {
		fmt.Println("no run recorded in", cfg.GetStateDir())
		return nil
	}

	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runStatus)
	}

	fmt.Printf("run:       %s\n", runStatus.RunID)
	fmt.Printf("phase:     %s\n", runStatus.Phase)
	fmt.Printf("progress:  %d/%d units\n", runStatus.Completed, runStatus.Total)
	fmt.Printf("started:   %s\n", runStatus.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("updated:   %s\n", runStatus.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	if cur := runStatus.Current; cur != nil {
		fmt.Printf("current:   %s (%s, attempt %d)\n", cur.Unit.ID(), cur.Phase, cur.Attempts)
		if cur.Message != "" {
			fmt.Printf("last error: %s\n", cur.Message)
		}
	}

	return nil
}
