package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/theirongolddev/ocburn/internal/model"
)

// Config holds all ocburn configuration.
type Config struct {
	General    GeneralConfig      `toml:"general"`
	Opencode   OpencodeConfig     `toml:"opencode"`
	Output     OutputConfig       `toml:"output"`
	Notify     NotifyConfig       `toml:"notify"`
	Budget     model.BudgetConfig `toml:"budget"`
	Daemon     DaemonConfig       `toml:"daemon"`
	Appearance AppearanceConfig   `toml:"appearance"`
	Pricing    PricingOverrides   `toml:"pricing"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	HistoryDir  string `toml:"history_dir,omitempty"`
	ProjectID   string `toml:"project_id,omitempty"`
	DefaultDays int    `toml:"default_days"`
}

// OpencodeConfig holds the opencode server connection.
type OpencodeConfig struct {
	BaseURL string `toml:"base_url"`
	// Directory is sent as the ?directory= query so the server resolves the right project.
	Directory      string  `toml:"directory,omitempty"`
	RequestsPerSec float64 `toml:"requests_per_sec"`
	TimeoutSec     int     `toml:"timeout_sec"`
}

// OutputConfig holds report size ceilings.
type OutputConfig struct {
	MaxChars        int      `toml:"max_chars"`
	MaxTableRows    int      `toml:"max_table_rows"`
	MaxChartPoints  int      `toml:"max_chart_points"`
	CompactTriggers []string `toml:"compact_triggers"`
	CompactMaxChars int      `toml:"compact_max_chars"`
}

// NotifyConfig holds toast throttling settings.
type NotifyConfig struct {
	CostDeltaUSD     float64 `toml:"cost_delta_usd"`
	HeartbeatMinutes int     `toml:"heartbeat_minutes"`
	ToastDurationMs  int     `toml:"toast_duration_ms"`
}

// DaemonConfig holds daemon runtime settings.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	EventsBuffer int    `toml:"events_buffer"`
	LedgerPath   string `toml:"ledger_path,omitempty"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// PricingOverrides allows user-defined pricing for specific model keys.
// An override replaces the whole default entry.
type PricingOverrides struct {
	Overrides PriceConfig `toml:"overrides,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DefaultDays: 30,
		},
		Opencode: OpencodeConfig{
			BaseURL:        "http://127.0.0.1:4096",
			RequestsPerSec: 10,
			TimeoutSec:     10,
		},
		Output: OutputConfig{
			MaxChars:        20000,
			MaxTableRows:    50,
			MaxChartPoints:  14,
			CompactTriggers: []string{"antigravity-", "google/antigravity-"},
			CompactMaxChars: 8000,
		},
		Notify: NotifyConfig{
			CostDeltaUSD:     0.10,
			HeartbeatMinutes: 5,
			ToastDurationMs:  5000,
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8788",
			EventsBuffer: 200,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Heartbeat returns the notify heartbeat as a duration.
func (n NotifyConfig) Heartbeat() time.Duration {
	return time.Duration(n.HeartbeatMinutes) * time.Minute
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ocburn")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ocburn")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file at Path, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config file at path, returning defaults if it doesn't exist.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // config path is chosen by the local user
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to Path.
func Save(cfg Config) error {
	return SaveFile(Path(), cfg)
}

// SaveFile writes the config to path, creating its directory.
func SaveFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // config path is chosen by the local user
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	return ExistsAt(Path())
}

// ExistsAt returns true if a config file exists at path.
func ExistsAt(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
