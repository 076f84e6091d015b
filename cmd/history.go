package cmd

import (
	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/plugin"
)

var (
	flagHistoryFrom  string
	flagHistoryTo    string
	flagHistoryScope string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Saved session costs between two dates",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&flagHistoryFrom, "from", "", "Start date, e.g. 2026-01-01 (default 30 days ago)")
	historyCmd.Flags().StringVar(&flagHistoryTo, "to", "", "End date (default now)")
	historyCmd.Flags().StringVar(&flagHistoryScope, "scope", "all", "History scope: project or all")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	p := e.pluginFor(e.client(), nil, nil)
	out := p.TokenHistory(cmd.Context(), plugin.HistoryArgs{
		From:  flagHistoryFrom,
		To:    flagHistoryTo,
		Scope: flagHistoryScope,
	})
	return printReport(out)
}
