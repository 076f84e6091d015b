// Package cmd implements the ocburn CLI commands.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/history"
	"github.com/theirongolddev/ocburn/internal/logging"
	"github.com/theirongolddev/ocburn/internal/opencode"
	"github.com/theirongolddev/ocburn/internal/plugin"
	"github.com/theirongolddev/ocburn/internal/quota"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

var (
	flagConfig      string
	flagHistoryDir  string
	flagOpencodeURL string
	flagProject     string
	flagVerbose     bool
	flagPretty      bool
	flagQuiet       bool
)

var rootCmd = &cobra.Command{
	Use:     "ocburn",
	Short:   "Token usage and cost reports for opencode",
	Long:    "Track opencode token usage: per-session stats, history, budgets, quotas and exports.",
	Version: version,
	// Errors are printed once by Execute.
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default "+config.Path()+")")
	rootCmd.PersistentFlags().StringVar(&flagHistoryDir, "history-dir", "", "Token history directory")
	rootCmd.PersistentFlags().StringVar(&flagOpencodeURL, "opencode-url", "", "opencode server URL")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "Project ID for project-scoped queries")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", false, "Render markdown reports for the terminal")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress warnings")
}

// env is the resolved runtime shared by every command.
type env struct {
	cfg     config.Config
	cfgPath string
	log     *zap.Logger
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.Path()
}

// loadEnv loads the config file and applies the persistent flags over it.
func loadEnv() (*env, error) {
	path := configPath()
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	if flagHistoryDir != "" {
		cfg.General.HistoryDir = flagHistoryDir
	}
	if flagOpencodeURL != "" {
		cfg.Opencode.BaseURL = flagOpencodeURL
	}
	if flagProject != "" {
		cfg.General.ProjectID = flagProject
	}

	var log *zap.Logger
	if flagQuiet {
		log = zap.NewNop()
	} else if log, err = logging.ForTerminal(flagVerbose); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, cfgPath: path, log: log}, nil
}

func (e *env) close() {
	_ = e.log.Sync()
}

func (e *env) client() *opencode.Client {
	return opencode.NewClient(opencode.Options{
		BaseURL:        e.cfg.Opencode.BaseURL,
		Directory:      e.cfg.Opencode.Directory,
		RequestsPerSec: e.cfg.Opencode.RequestsPerSec,
		Timeout:        time.Duration(e.cfg.Opencode.TimeoutSec) * time.Second,
		Log:            e.log.Named("opencode"),
	})
}

func (e *env) history() *history.Store {
	return history.New(e.cfg.General.HistoryDir, e.log.Named("history"))
}

func (e *env) quotas() *quota.Loader {
	return quota.NewLoader(e.log.Named("quota"))
}

// pluginFor builds the report plugin. client serves session data and toasts;
// ledger may be nil.
func (e *env) pluginFor(client *opencode.Client, ledger plugin.Ledger, onActivity func(plugin.Activity)) *plugin.Plugin {
	deps := plugin.Deps{
		Source:  client,
		Toasts:  client,
		History: e.history(),
		Quotas:  e.quotas(),
		Ledger:  ledger,
		Log:     e.log.Named("plugin"),
	}
	return plugin.New(deps, plugin.Options{
		ProjectID:  e.cfg.General.ProjectID,
		Pricing:    config.ResolvedPricing(e.cfg, e.log),
		Budget:     config.ResolvedBudget(e.cfg, e.log),
		Output:     e.cfg.Output,
		Notify:     e.cfg.Notify,
		OnActivity: onActivity,
	})
}

// printReport writes a markdown report, rendered with glamour when --pretty
// is set and stdout is a terminal.
func printReport(md string) error {
	if flagPretty && isatty.IsTerminal(os.Stdout.Fd()) {
		out, err := cli.RenderMarkdown(md, 0, false)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
	fmt.Println(strings.TrimRight(md, "\n"))
	return nil
}
