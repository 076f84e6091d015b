package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/daemon"
	"github.com/theirongolddev/ocburn/internal/logging"
	"github.com/theirongolddev/ocburn/internal/plugin"
	"github.com/theirongolddev/ocburn/internal/store"
)

type daemonRuntimeState struct {
	PID         int       `json:"pid"`
	Addr        string    `json:"addr"`
	StartedAt   time.Time `json:"started_at"`
	OpencodeURL string    `json:"opencode_url"`
	LedgerPath  string    `json:"ledger_path"`
}

var (
	flagDaemonAddr         string
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonLedger       string
	flagDaemonNoLedger     bool
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Follow opencode events, show cost toasts and record sessions",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func stateDir() string {
	return filepath.Dir(store.DefaultPath())
}

func init() {
	defaultPID := filepath.Join(stateDir(), "ocburnd.pid")
	defaultLog := filepath.Join(stateDir(), "ocburnd.log")

	daemonCmd.PersistentFlags().StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config, "+daemon.DefaultAddr+")")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonPIDFile, "pid-file", defaultPID, "PID file path")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonLogFile, "log-file", defaultLog, "Log file path for detached mode")
	daemonCmd.PersistentFlags().IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "Max in-memory events retained (default from config)")

	daemonCmd.Flags().StringVar(&flagDaemonLedger, "ledger", "", "SQLite ledger path (default from config)")
	daemonCmd.Flags().BoolVar(&flagDaemonNoLedger, "no-ledger", false, "Do not record toasts and sessions in the ledger")
	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}

	if flagDaemonDetach {
		return startDaemonDetached()
	}

	return runDaemonForeground(cmd.Context())
}

// daemonAddr resolves the listen address from flag, config and default.
func daemonAddr(cfg config.Config) string {
	switch {
	case flagDaemonAddr != "":
		return flagDaemonAddr
	case cfg.Daemon.Addr != "":
		return cfg.Daemon.Addr
	default:
		return daemon.DefaultAddr
	}
}

func startDaemonDetached() error {
	if err := ensureDaemonNotRunning(flagDaemonPIDFile); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := filterDetachArg(os.Args[1:])
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(flagDaemonPIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}

	//nolint:gosec // daemon log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	cmd := exec.Command(exe, args...) //nolint:gosec // exe/args come from current process invocation
	cmd.Stdout = logf
	cmd.Stderr = logf
	cmd.Stdin = nil
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	addr := flagDaemonAddr
	if addr == "" {
		addr = "<config addr>"
		if cfg, err := config.LoadFile(configPath()); err == nil {
			addr = daemonAddr(cfg)
		}
	}

	fmt.Printf("  Started daemon (pid %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", flagDaemonPIDFile)
	fmt.Printf("  API: http://%s/v1/status\n", addr)
	fmt.Printf("  Log: %s\n", flagDaemonLogFile)
	return nil
}

func runDaemonForeground(parent context.Context) error {
	if err := ensureDaemonNotRunning(flagDaemonPIDFile); err != nil {
		return err
	}

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	// The detached child writes JSON logs to the log file.
	if flagDaemonChild && !flagQuiet {
		log, err := logging.New(logging.Options{Verbose: flagVerbose})
		if err != nil {
			return err
		}
		e.log = log
	}

	if err := os.MkdirAll(filepath.Dir(flagDaemonPIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}

	pid := os.Getpid()
	if err := writePID(flagDaemonPIDFile, pid); err != nil {
		return err
	}
	defer func() { _ = os.Remove(flagDaemonPIDFile) }()

	addr := daemonAddr(e.cfg)
	buffer := flagDaemonEventsBuffer
	if buffer <= 0 {
		buffer = e.cfg.Daemon.EventsBuffer
	}

	var ledger *store.Ledger
	ledgerPath := ""
	if !flagDaemonNoLedger {
		ledgerPath = flagDaemonLedger
		if ledgerPath == "" {
			ledgerPath = e.cfg.Daemon.LedgerPath
		}
		if ledgerPath == "" {
			ledgerPath = store.DefaultPath()
		}
		ledger, err = store.Open(ledgerPath)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer func() { _ = ledger.Close() }()
	}

	client := e.client()
	hist := e.history()

	// svc is assigned before any event is handled, so the activity hook can read it.
	var svc *daemon.Service
	onActivity := func(a plugin.Activity) { svc.Record(a) }

	var p *plugin.Plugin
	if ledger != nil {
		p = e.pluginFor(client, ledger, onActivity)
	} else {
		p = e.pluginFor(client, nil, onActivity)
	}

	watcher, err := config.NewWatcher(config.WatchPaths(e.cfgPath), func() {
		cfg, err := config.LoadFile(e.cfgPath)
		if err != nil {
			e.log.Warn("config reload failed, keeping previous settings", zap.Error(err))
			return
		}
		p.SetPricing(config.ResolvedPricing(cfg, e.log))
		p.SetBudget(config.ResolvedBudget(cfg, e.log))
		e.log.Info("reloaded pricing and budget")
	}, e.log.Named("watch"))
	if err != nil {
		e.log.Warn("config hot reload disabled", zap.Error(err))
	}

	deps := daemon.Deps{
		Events:  client,
		Handler: p,
		Log:     e.log.Named("daemon"),
	}
	if ledger != nil {
		deps.Ledger = ledger
	}
	if watcher != nil {
		deps.Watcher = watcher
	}
	svc = daemon.New(daemon.Config{
		Addr:         addr,
		EventsBuffer: buffer,
		OpencodeURL:  client.BaseURL(),
		HistoryDir:   hist.Dir(),
		LedgerPath:   ledgerPath,
	}, deps)

	state := daemonRuntimeState{
		PID:         pid,
		Addr:        addr,
		StartedAt:   time.Now(),
		OpencodeURL: client.BaseURL(),
		LedgerPath:  ledgerPath,
	}
	_ = writeState(statePath(flagDaemonPIDFile), state)
	defer func() { _ = os.Remove(statePath(flagDaemonPIDFile)) }()

	fmt.Printf("  ocburn daemon listening on http://%s\n", addr)
	fmt.Printf("  Following events from %s\n", client.BaseURL())
	fmt.Printf("  Stop with: ocburn daemon stop --pid-file %s\n", flagDaemonPIDFile)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagDaemonPIDFile)
	if err != nil {
		fmt.Printf("  Daemon: not running (pid file not found)\n")
		return nil
	}

	alive := processAlive(pid)
	if !alive {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := flagDaemonAddr
	if st, err := readState(statePath(flagDaemonPIDFile)); err == nil && st.Addr != "" && addr == "" {
		addr = st.Addr
	}
	if addr == "" {
		addr = daemon.DefaultAddr
	}

	fmt.Printf("  Daemon PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status") //nolint:noctx // short status probe
	if err != nil {
		fmt.Printf("  API status: unreachable (%v)\n", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("  API status: HTTP %d\n", resp.StatusCode)
		return nil
	}

	var st daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		fmt.Printf("  API status: malformed response (%v)\n", err)
		return nil
	}

	conn := "disconnected"
	if st.Connected {
		conn = "connected"
	}
	fmt.Printf("  opencode: %s (%s)\n", st.OpencodeURL, conn)
	fmt.Printf("  Uptime: %s\n", cli.FormatDuration(st.UptimeSec))
	if st.LastEventAt.IsZero() {
		fmt.Printf("  Last event: pending\n")
	} else {
		fmt.Printf("  Last event: %s (%s)\n", st.LastEventAt.Local().Format(time.RFC3339), st.LastEventType)
	}
	c := st.Counters
	fmt.Printf("  Events: %d received, %d handled, %d errors\n", c.EventsReceived, c.EventsHandled, c.HandlerErrors)
	fmt.Printf("  Reconnects: %d\n", c.Reconnects)
	fmt.Printf("  Toasts: %d  Records: %d  In flight: %d\n", c.Toasts, c.Records, st.InFlight)
	if st.LedgerPath != "" {
		fmt.Printf("  Ledger: %d sessions, %d toasts (%s)\n", st.LedgerSessions, st.LedgerToasts, st.LedgerPath)
	}
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagDaemonPIDFile)
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			_ = os.Remove(flagDaemonPIDFile)
			_ = os.Remove(statePath(flagDaemonPIDFile))
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}

func filterDetachArg(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ensureDaemonNotRunning(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	_ = os.Remove(pidFile)
	_ = os.Remove(statePath(pidFile))
	return nil
}

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

func readPID(path string) (int, error) {
	//nolint:gosec // daemon pid path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func statePath(pidFile string) string {
	return pidFile + ".json"
}

func writeState(path string, st daemonRuntimeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func readState(path string) (daemonRuntimeState, error) {
	var st daemonRuntimeState
	//nolint:gosec // daemon state path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
