package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/analysis"
	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/history"
)

var flagDailyDays int

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Daily cost table from saved history",
	Args:  cobra.NoArgs,
	RunE:  runDaily,
}

func init() {
	dailyCmd.Flags().IntVarP(&flagDailyDays, "days", "n", 0, "Time window in days (default from config)")
	rootCmd.AddCommand(dailyCmd)
}

func runDaily(_ *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	days := flagDailyDays
	if days <= 0 {
		days = e.cfg.General.DefaultDays
	}

	now := time.Now()
	records, err := e.history().LoadRange(now.AddDate(0, 0, -days), now, history.WithProject(flagProject))
	if err != nil {
		return err
	}
	buckets := analysis.BucketByDay(records)
	if len(buckets) == 0 {
		fmt.Println("\n  No sessions recorded in the selected period.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("DAILY USAGE  Last %dd", days)))
	fmt.Println()

	rows := make([][]string, 0, len(buckets)+1)
	var cost float64
	var tokens int64
	var sessions int
	for _, b := range buckets {
		day, _ := time.ParseInLocation("2006-01-02", b.Date, time.Local)
		rows = append(rows, []string{
			b.Date,
			cli.FormatDayOfWeek(int(day.Weekday())),
			cli.FormatNumber(int64(b.Sessions)),
			cli.FormatTokens(b.Tokens),
			cli.FormatCost(b.Cost),
		})
		cost += b.Cost
		tokens += b.Tokens
		sessions += b.Sessions
	}
	rows = append(rows, []string{"Total", "", cli.FormatNumber(int64(sessions)), cli.FormatTokens(tokens), cli.FormatCost(cost)})

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Date", "Day", "Sessions", "Tokens", "Cost"},
		Rows:    rows,
	}))

	values := make([]float64, len(buckets))
	for i, b := range buckets {
		values[i] = b.Cost
	}
	fmt.Printf("\n  Trend %s\n", cli.Sparkline(values, cli.ChartOptions{MaxPoints: days}))
	return nil
}
