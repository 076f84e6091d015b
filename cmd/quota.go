package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/model"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Provider quota remaining from antigravity and codex",
	Args:  cobra.NoArgs,
	RunE:  runQuota,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}

func runQuota(_ *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	quotas := e.quotas().LoadAll()
	if len(quotas) == 0 {
		fmt.Println("\n  No quota data found.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("QUOTA"))
	fmt.Println()

	rows := make([][]string, len(quotas))
	for i, q := range quotas {
		rows[i] = []string{
			q.Severity.Icon(),
			q.Source,
			q.Scope,
			cli.RenderProgressBar(q.RemainingFraction, 20, q.Severity),
			fmt.Sprintf("%.0f%%", q.RemainingFraction*100),
			resetsLabel(q),
		}
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"", "Source", "Scope", "Remaining", "%", "Resets"},
		Rows:    rows,
	}))
	return nil
}

func resetsLabel(q model.QuotaStatus) string {
	if q.ResetsAt == "" {
		return "-"
	}
	return q.ResetsAt
}
