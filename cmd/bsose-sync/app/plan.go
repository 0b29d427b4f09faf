package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seastate/bsose-sync/internal/config"
	"github.com/seastate/bsose-sync/internal/schedule"
	"github.com/seastate/bsose-sync/internal/worker"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the work unit schedule without running anything",
	Long: `Plan enumerates the (year, latitude range) work units the run command would
execute, in order, and prints them without invoking the worker. Use it to
verify the chunking before starting a multi-day ingestion.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	planCmd.Flags().String("format", "", "Output format (json)")
	planCmd.Flags().Bool("args", false, "Show the resolved worker arguments per unit")

	if err := planCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

// planEntry is one schedule line of the plan output.
type planEntry struct {
	Unit       string   `json:"unit"`
	Year       int      `json:"year"`
	RangeStart int      `json:"rangeStart"`
	RangeEnd   int      `json:"rangeEnd"`
	WorkerArgs []string `json:"workerArgs,omitempty"`
}

func runPlan(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read config flag: %w", err)
	}
	format, _ := cmd.Flags().GetString("format")
	showArgs, _ := cmd.Flags().GetBool("args")

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	units, err := schedule.Build(cfg.ScheduleParams())
	if err != nil {
		return fmt.Errorf("failed to build schedule: %w", err)
	}

	// The plan never needs the real destination address; a placeholder keeps
	// the command usable before credentials exist.
	var builder *worker.InvocationBuilder
	if showArgs {
		builder = worker.NewInvocationBuilder(&cfg.Worker, cfg.GetDestinationEnv(), "<destination>")
	}

	entries := make([]planEntry, 0, len(units))
	for _, unit := range units {
		entry := planEntry{
			Unit:       unit.ID(),
			Year:       unit.Year,
			RangeStart: unit.RangeStart,
			RangeEnd:   unit.RangeEnd,
		}
		if builder != nil {
			entry.WorkerArgs = builder.Build(unit).Args
		}
		entries = append(entries, entry)
	}

	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	for _, entry := range entries {
		if entry.WorkerArgs != nil {
			fmt.Printf("%-16s %v\n", entry.Unit, entry.WorkerArgs)
		} else {
			fmt.Println(entry.Unit)
		}
	}
	fmt.Printf("%d work units\n", len(entries))

	return nil
}
