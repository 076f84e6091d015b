package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/analysis"
	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/history"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func runConfig(_ *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()
	cfg := e.cfg

	fmt.Printf("  Config file: %s\n", e.cfgPath)
	if config.ExistsAt(e.cfgPath) {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    History dir:   %s\n", e.history().Dir())
	fmt.Printf("    Project ID:    %s\n", orDefault(cfg.General.ProjectID, "not set"))
	fmt.Printf("    Default days:  %d\n", cfg.General.DefaultDays)
	fmt.Println()

	fmt.Println("  [opencode]")
	fmt.Printf("    Base URL:      %s\n", cfg.Opencode.BaseURL)
	fmt.Printf("    Directory:     %s\n", orDefault(cfg.Opencode.Directory, "not set"))
	fmt.Printf("    Requests/sec:  %g\n", cfg.Opencode.RequestsPerSec)
	fmt.Println()

	fmt.Println("  [Output]")
	fmt.Printf("    Max chars:     %d (compact %d)\n", cfg.Output.MaxChars, cfg.Output.CompactMaxChars)
	fmt.Printf("    Table rows:    %d\n", cfg.Output.MaxTableRows)
	fmt.Printf("    Chart points:  %d\n", cfg.Output.MaxChartPoints)
	fmt.Printf("    Compact for:   %s\n", orDefault(strings.Join(cfg.Output.CompactTriggers, ", "), "none"))
	fmt.Println()

	fmt.Println("  [Notify]")
	fmt.Printf("    Cost delta:    $%.2f\n", cfg.Notify.CostDeltaUSD)
	fmt.Printf("    Heartbeat:     %s\n", cfg.Notify.Heartbeat())
	fmt.Printf("    Toast (ms):    %d\n", cfg.Notify.ToastDurationMs)
	fmt.Println()

	fmt.Println("  [Budget]")
	budget := config.ResolvedBudget(cfg, e.log)
	for _, p := range model.Periods {
		label := analysis.PeriodLabel(p)
		if limit, ok := budget.Limit(p); ok {
			fmt.Printf("    %-13s  $%.2f\n", label+":", limit)
		} else {
			fmt.Printf("    %-13s  not set\n", label+":")
		}
	}
	warning, errPct := analysis.Thresholds(budget)
	fmt.Printf("    Thresholds:    %.0f%% / %.0f%%\n", warning, errPct)
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:       %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Ledger:        %s\n", orDefault(cfg.Daemon.LedgerPath, store.DefaultPath()))
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Printf("  Pricing overrides: %d\n", len(config.ResolvedPricing(cfg, e.log)))
	fmt.Printf("  History search:    %s\n", strings.Join(history.SearchDirs(), ", "))
	fmt.Println()

	fmt.Println("  Run `ocburn setup` to reconfigure.")
	return nil
}
