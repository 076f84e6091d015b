package cmd

import (
	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/plugin"
)

var (
	flagStatsChildren  bool
	flagStatsTrendDays int
	flagStatsCompact   bool
	flagStatsDebug     bool
	flagStatsAgentView string
	flagStatsAgentSort string
	flagStatsTopN      int
	flagStatsScope     string
)

var statsCmd = &cobra.Command{
	Use:   "stats <session-id>",
	Short: "Token usage report for one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&flagStatsChildren, "children", false, "Include child sessions")
	statsCmd.Flags().IntVar(&flagStatsTrendDays, "trend-days", plugin.DefaultTrendDays, "Days of history in the trend section")
	statsCmd.Flags().BoolVar(&flagStatsCompact, "compact", false, "Compact output")
	statsCmd.Flags().BoolVar(&flagStatsDebug, "debug", false, "Append section sizes")
	statsCmd.Flags().StringVar(&flagStatsAgentView, "agent-view", "both", "Agent tables: both, execution or initiator")
	statsCmd.Flags().StringVar(&flagStatsAgentSort, "agent-sort", "cost", "Agent sort: cost or tokens")
	statsCmd.Flags().IntVar(&flagStatsTopN, "top-n", 10, "Agents per table (0 = row limit, negative = all)")
	statsCmd.Flags().StringVar(&flagStatsScope, "scope", "all", "History scope: project or all")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	p := e.pluginFor(e.client(), nil, nil)
	out := p.TokenStats(cmd.Context(), plugin.StatsArgs{
		SessionID:       args[0],
		IncludeChildren: flagStatsChildren,
		TrendDays:       &flagStatsTrendDays,
		Compact:         flagStatsCompact,
		Debug:           flagStatsDebug,
		AgentView:       flagStatsAgentView,
		AgentSort:       flagStatsAgentSort,
		AgentTopN:       &flagStatsTopN,
		Scope:           flagStatsScope,
	})
	return printReport(out)
}
