package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/model"
)

// Side file names shared with the opencode plugin ecosystem.
const (
	PricingFileName = "pricing.json"
	BudgetFileName  = "token-monitor.json"
)

// SearchPaths returns the conventional locations of an opencode side file,
// in lookup order: working directory, ~/.opencode, ~/.config/opencode.
func SearchPaths(name string) []string {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return []string{
		filepath.Join(cwd, name),
		filepath.Join(home, ".opencode", name),
		filepath.Join(home, ".config", "opencode", name),
	}
}

// LoadPricingFile reads a JSON PriceConfig. With an empty path the search paths
// are tried in order and the first file that parses wins. Missing or malformed
// files yield an empty config and a logged warning.
func LoadPricingFile(path string, log *zap.Logger) PriceConfig {
	for _, p := range candidates(path, PricingFileName) {
		data, err := os.ReadFile(p) //nolint:gosec // side file paths are fixed or user supplied
		if err != nil {
			continue
		}
		var pc PriceConfig
		if err := json.Unmarshal(data, &pc); err != nil {
			log.Warn("ignoring malformed pricing file", zap.String("path", p), zap.Error(err))
			continue
		}
		return pc
	}
	return PriceConfig{}
}

// LoadBudgetFile reads the "budget" object of a token-monitor.json file.
// Only numeric fields are honored. With an empty path the search paths are tried
// in order and the first file carrying a budget object wins.
func LoadBudgetFile(path string, log *zap.Logger) model.BudgetConfig {
	for _, p := range candidates(path, BudgetFileName) {
		data, err := os.ReadFile(p) //nolint:gosec // side file paths are fixed or user supplied
		if err != nil {
			continue
		}
		var raw struct {
			Budget map[string]any `json:"budget"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			log.Warn("ignoring malformed budget file", zap.String("path", p), zap.Error(err))
			continue
		}
		if raw.Budget == nil {
			continue
		}
		return budgetFromJSON(raw.Budget)
	}
	return model.BudgetConfig{}
}

func budgetFromJSON(m map[string]any) model.BudgetConfig {
	var b model.BudgetConfig
	b.Daily = number(m["daily"])
	b.Weekly = number(m["weekly"])
	b.Monthly = number(m["monthly"])
	if th, ok := m["thresholds"].(map[string]any); ok {
		b.Thresholds = &model.BudgetThresholds{
			Warning: number(th["warning"]),
			Error:   number(th["error"]),
		}
	}
	return b
}

func number(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// MergeBudget overlays the TOML budget on top of a side-file budget field by field.
func MergeBudget(file, cfg model.BudgetConfig) model.BudgetConfig {
	out := file
	if cfg.Daily != nil {
		out.Daily = cfg.Daily
	}
	if cfg.Weekly != nil {
		out.Weekly = cfg.Weekly
	}
	if cfg.Monthly != nil {
		out.Monthly = cfg.Monthly
	}
	if cfg.Thresholds != nil {
		th := model.BudgetThresholds{}
		if out.Thresholds != nil {
			th = *out.Thresholds
		}
		if cfg.Thresholds.Warning != nil {
			th.Warning = cfg.Thresholds.Warning
		}
		if cfg.Thresholds.Error != nil {
			th.Error = cfg.Thresholds.Error
		}
		out.Thresholds = &th
	}
	return out
}

// ResolvedPricing returns the effective custom pricing: the JSON side file
// overlaid with the TOML overrides. Defaults are applied later by Merge.
func ResolvedPricing(cfg Config, log *zap.Logger) PriceConfig {
	return Overlay(LoadPricingFile("", log), cfg.Pricing.Overrides)
}

// ResolvedBudget returns the effective budget config.
func ResolvedBudget(cfg Config, log *zap.Logger) model.BudgetConfig {
	return MergeBudget(LoadBudgetFile("", log), cfg.Budget)
}

func candidates(path, name string) []string {
	if path != "" {
		return []string{path}
	}
	return SearchPaths(name)
}
