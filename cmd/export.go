package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/plugin"
)

var (
	flagExportFormat       string
	flagExportScope        string
	flagExportSession      string
	flagExportFrom         string
	flagExportTo           string
	flagExportChildren     bool
	flagExportOut          string
	flagExportHistoryScope string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export session records as json, csv or markdown",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagExportFormat, "format", "f", "json", "Output format: json, csv or markdown")
	exportCmd.Flags().StringVar(&flagExportScope, "scope", "", "session or range (default session when --session is set)")
	exportCmd.Flags().StringVarP(&flagExportSession, "session", "s", "", "Session ID to export")
	exportCmd.Flags().StringVar(&flagExportFrom, "from", "", "Range start date")
	exportCmd.Flags().StringVar(&flagExportTo, "to", "", "Range end date")
	exportCmd.Flags().BoolVar(&flagExportChildren, "children", false, "Include child sessions in a session export")
	exportCmd.Flags().StringVarP(&flagExportOut, "out", "o", "", "Write to this file")
	exportCmd.Flags().StringVar(&flagExportHistoryScope, "history-scope", "all", "Range scope: project or all")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	scope := flagExportScope
	if scope == "" {
		scope = plugin.ExportRange
		if flagExportSession != "" {
			scope = plugin.ExportSession
		}
	}

	p := e.pluginFor(e.client(), nil, nil)
	out := p.TokenExport(cmd.Context(), plugin.ExportArgs{
		Format:          flagExportFormat,
		Scope:           scope,
		SessionID:       flagExportSession,
		From:            flagExportFrom,
		To:              flagExportTo,
		IncludeChildren: flagExportChildren,
		FilePath:        flagExportOut,
		HistoryScope:    flagExportHistoryScope,
	})
	// Exports are data, so --pretty does not apply.
	fmt.Println(out)
	return nil
}
