package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/analysis"
	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/history"
	"github.com/theirongolddev/ocburn/internal/model"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Spend against the configured daily, weekly and monthly limits",
	Args:  cobra.NoArgs,
	RunE:  runBudget,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
}

func runBudget(_ *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	cfg := config.ResolvedBudget(e.cfg, e.log)
	now := time.Now()
	records, err := e.history().LoadRange(now.Add(-analysis.Window(model.PeriodMonthly)), now, history.WithProject(flagProject))
	if err != nil {
		return err
	}

	statuses := analysis.BudgetStatuses(records, cfg, now)
	if len(statuses) == 0 {
		fmt.Println("\n  No budget configured. Run `ocburn setup` or set [budget] in " + e.cfgPath)
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("BUDGET"))
	fmt.Println()
	for _, s := range statuses {
		fraction := 0.0
		if s.Limit > 0 {
			fraction = s.Spent / s.Limit
		}
		fmt.Printf("  %s %-8s %s %3d%%  %s / %s\n",
			s.Severity.Icon(),
			analysis.PeriodLabel(s.Period),
			cli.RenderProgressBar(fraction, 30, s.Severity),
			s.Percentage,
			cli.FormatUSD2(s.Spent),
			cli.FormatUSD2(s.Limit),
		)
	}

	warning, errPct := analysis.Thresholds(cfg)
	fmt.Println()
	fmt.Println(cli.Muted(fmt.Sprintf("  Warning at %.0f%%, error at %.0f%%", warning, errPct)))
	return nil
}
