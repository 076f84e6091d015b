package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/config"
)

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Show the effective model price table",
	Args:  cobra.NoArgs,
	RunE:  runPricing,
}

func init() {
	rootCmd.AddCommand(pricingCmd)
}

func price(f float64) string {
	if f == 0 {
		return "-"
	}
	return "$" + strconv.FormatFloat(f, 'f', -1, 64)
}

func runPricing(_ *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	custom := config.ResolvedPricing(e.cfg, e.log)
	merged := config.Merge(custom)

	rows := make([][]string, 0, len(merged))
	for _, key := range merged.Keys() {
		mp := merged[key]
		source := "default"
		if _, ok := custom[key]; ok {
			source = "custom"
		}
		rows = append(rows, []string{
			key,
			price(mp.InputPerMillion),
			price(mp.OutputPerMillion),
			price(mp.CacheReadPerMillion),
			price(mp.CacheWritePerMillion),
			source,
		})
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("PRICING  USD per million tokens"))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Model", "Input", "Output", "Cache Read", "Cache Write", "Source"},
		Rows:    rows,
	}))
	return nil
}
