package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/tui"
	"github.com/theirongolddev/ocburn/internal/tui/theme"
)

var (
	flagTopDays    int
	flagTopRefresh time.Duration
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Live dashboard of history, budget and quota",
	Args:  cobra.NoArgs,
	RunE:  runTop,
}

func init() {
	topCmd.Flags().IntVarP(&flagTopDays, "days", "n", 0, "History window in days (default from config)")
	topCmd.Flags().DurationVar(&flagTopRefresh, "refresh", tui.DefaultRefresh, "Reload interval")
	rootCmd.AddCommand(topCmd)
}

func runTop(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	theme.SetActive(e.cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	days := flagTopDays
	if days <= 0 {
		days = e.cfg.General.DefaultDays
	}

	load := tui.NewLoader(e.history(), e.quotas(), tui.LoaderConfig{
		Days:    days,
		Project: flagProject,
		Budget:  config.ResolvedBudget(e.cfg, e.log),
	})
	app := tui.NewApp(load, tui.Options{Refresh: flagTopRefresh, Days: days, Context: cmd.Context()})

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
