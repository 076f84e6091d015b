package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/store"
)

var (
	flagLedgerPath   string
	flagLedgerDays   int
	flagLedgerToasts int
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show sessions and toasts recorded by the daemon",
	Args:  cobra.NoArgs,
	RunE:  runLedger,
}

var ledgerForgetCmd = &cobra.Command{
	Use:   "forget <session-id>",
	Short: "Remove a session from the daemon ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerForget,
}

func init() {
	ledgerCmd.PersistentFlags().StringVar(&flagLedgerPath, "ledger", "", "SQLite ledger path (default from config)")
	ledgerCmd.Flags().IntVarP(&flagLedgerDays, "days", "n", 7, "Show sessions recorded in the last N days")
	ledgerCmd.Flags().IntVar(&flagLedgerToasts, "toasts", 10, "Number of recent toasts to show")
	ledgerCmd.AddCommand(ledgerForgetCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func openLedger(e *env) (*store.Ledger, error) {
	path := flagLedgerPath
	if path == "" {
		path = e.cfg.Daemon.LedgerPath
	}
	if path == "" {
		path = store.DefaultPath()
	}
	l, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return l, nil
}

func runLedger(_ *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	l, err := openLedger(e)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	since := time.Now().AddDate(0, 0, -max(1, flagLedgerDays))
	sessions, err := l.Sessions(since)
	if err != nil {
		return fmt.Errorf("reading ledger sessions: %w", err)
	}
	toasts, err := l.RecentToasts(max(0, flagLedgerToasts))
	if err != nil {
		return fmt.Errorf("reading ledger toasts: %w", err)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("LEDGER SESSIONS (%dd)", max(1, flagLedgerDays))))
	fmt.Println()
	if len(sessions) == 0 {
		fmt.Println("  No sessions recorded.")
	} else {
		rows := make([][]string, len(sessions))
		for i, s := range sessions {
			rows[i] = []string{
				s.Time().Format("2006-01-02 15:04"),
				cli.ShortID(s.SessionID, 12),
				orDefault(s.ProjectID, "-"),
				cli.FormatNumber(int64(len(s.ByModel))),
				cli.FormatTokens(s.Totals.Total),
				cli.FormatUSD(s.Cost),
				cli.FormatUSD(s.TreeCost),
			}
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Headers: []string{"Time", "Session", "Project", "Models", "Tokens", "Cost", "Tree Cost"},
			Rows:    rows,
		}))
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("RECENT TOASTS"))
	fmt.Println()
	if len(toasts) == 0 {
		fmt.Println("  No toasts recorded.")
		return nil
	}
	rows := make([][]string, len(toasts))
	for i, t := range toasts {
		rows[i] = []string{
			t.ShownAt.Local().Format("01-02 15:04:05"),
			cli.ShortID(t.SessionID, 12),
			t.Variant,
			t.Message,
		}
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Shown", "Session", "Variant", "Message"},
		Rows:    rows,
	}))
	return nil
}

func runLedgerForget(_ *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	l, err := openLedger(e)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	if err := l.DeleteSession(args[0]); err != nil {
		return fmt.Errorf("forgetting session %s: %w", args[0], err)
	}
	fmt.Printf("  Removed %s from the ledger.\n", args[0])
	return nil
}
