package config

import (
	"sort"
)

// ModelPricing holds per-million-token prices for a model in USD.
// A zero cache rate means cache tokens of that kind are not billed.
type ModelPricing struct {
	InputPerMillion      float64 `json:"input_per_million" toml:"input_per_million"`
	OutputPerMillion     float64 `json:"output_per_million" toml:"output_per_million"`
	CacheReadPerMillion  float64 `json:"cache_read_per_million,omitempty" toml:"cache_read_per_million,omitempty"`
	CacheWritePerMillion float64 `json:"cache_write_per_million,omitempty" toml:"cache_write_per_million,omitempty"`
}

// PriceConfig maps a "provider/model" key to its pricing.
type PriceConfig map[string]ModelPricing

// DefaultPricing is the built-in price table, keyed by "provider/model".
var DefaultPricing = PriceConfig{
	// Anthropic Claude 4
	"anthropic/claude-sonnet-4": {
		InputPerMillion: 3.00, OutputPerMillion: 15.00,
		CacheReadPerMillion: 0.30, CacheWritePerMillion: 3.75,
	},
	"anthropic/claude-opus-4": {
		InputPerMillion: 15.00, OutputPerMillion: 75.00,
		CacheReadPerMillion: 1.50, CacheWritePerMillion: 18.75,
	},
	// Anthropic Claude 4.5
	"anthropic/claude-opus-4.5": {
		InputPerMillion: 5.00, OutputPerMillion: 25.00,
		CacheReadPerMillion: 0.50, CacheWritePerMillion: 6.25,
	},
	"anthropic/claude-sonnet-4.5": {
		InputPerMillion: 3.00, OutputPerMillion: 15.00,
		CacheReadPerMillion: 0.30, CacheWritePerMillion: 3.75,
	},
	"anthropic/claude-haiku-4.5": {
		InputPerMillion: 1.00, OutputPerMillion: 5.00,
		CacheReadPerMillion: 0.10, CacheWritePerMillion: 1.25,
	},
	// Anthropic Claude 3.5
	"anthropic/claude-3-5-sonnet": {
		InputPerMillion: 3.00, OutputPerMillion: 15.00,
		CacheReadPerMillion: 0.30, CacheWritePerMillion: 3.75,
	},
	"anthropic/claude-3-5-haiku": {
		InputPerMillion: 0.80, OutputPerMillion: 4.00,
		CacheReadPerMillion: 0.08, CacheWritePerMillion: 1.00,
	},
	// Google Antigravity, billed at Claude 4.5 rates
	"google/antigravity-claude-opus-4-5-thinking": {
		InputPerMillion: 5.00, OutputPerMillion: 25.00,
		CacheReadPerMillion: 0.50, CacheWritePerMillion: 6.25,
	},
	"google/antigravity-claude-opus-4-6-thinking": {
		InputPerMillion: 5.00, OutputPerMillion: 25.00,
		CacheReadPerMillion: 0.50, CacheWritePerMillion: 6.25,
	},
	"google/antigravity-claude-sonnet-4-5-thinking": {
		InputPerMillion: 3.00, OutputPerMillion: 15.00,
		CacheReadPerMillion: 0.30, CacheWritePerMillion: 3.75,
	},
	"google/antigravity-claude-sonnet-4-5": {
		InputPerMillion: 3.00, OutputPerMillion: 15.00,
		CacheReadPerMillion: 0.30, CacheWritePerMillion: 3.75,
	},
	// OpenAI GPT
	"openai/gpt-4o": {
		InputPerMillion: 2.50, OutputPerMillion: 10.00,
		CacheReadPerMillion: 1.25,
	},
	"openai/gpt-4-turbo": {
		InputPerMillion: 10.00, OutputPerMillion: 30.00,
	},
	"openai/gpt-5.2": {
		InputPerMillion: 1.75, OutputPerMillion: 14.00,
		CacheReadPerMillion: 0.175,
	},
	"openai/gpt-5.3-codex": {
		InputPerMillion: 1.75, OutputPerMillion: 14.00,
		CacheReadPerMillion: 0.175,
	},
	"openai/gpt-5-mini": {
		InputPerMillion: 0.25, OutputPerMillion: 2.00,
		CacheReadPerMillion: 0.025,
	},
	// OpenAI reasoning models
	"openai/o1": {
		InputPerMillion: 15.00, OutputPerMillion: 60.00,
		CacheReadPerMillion: 7.50,
	},
	"openai/o3": {
		InputPerMillion: 2.00, OutputPerMillion: 8.00,
		CacheReadPerMillion: 0.50,
	},
	"openai/o4-mini": {
		InputPerMillion: 1.10, OutputPerMillion: 4.40,
		CacheReadPerMillion: 0.275,
	},
	// Google Gemini
	"google/gemini-3-flash": {
		InputPerMillion: 0.50, OutputPerMillion: 3.00,
		CacheReadPerMillion: 0.05,
	},
	"google/antigravity-gemini-3-flash": {
		InputPerMillion: 0.50, OutputPerMillion: 3.00,
		CacheReadPerMillion: 0.05,
	},
	"google/gemini-pro": {
		InputPerMillion: 1.25, OutputPerMillion: 10.00,
		CacheReadPerMillion: 0.125,
	},
	"google/gemini-1.5-pro": {
		InputPerMillion: 1.25, OutputPerMillion: 10.00,
		CacheReadPerMillion: 0.125,
	},
	"google/gemini-1.5-flash": {
		InputPerMillion: 0.15, OutputPerMillion: 0.60,
		CacheReadPerMillion: 0.015,
	},
	"google/gemini-2.0-flash": {
		InputPerMillion: 0.10, OutputPerMillion: 0.40,
	},
	"google/gemini-2.5-pro": {
		InputPerMillion: 1.25, OutputPerMillion: 10.00,
		CacheReadPerMillion: 0.125,
	},
}

// Merge returns the defaults overlaid with custom. A custom entry replaces the
// whole default entry for its key; fields are never merged.
func Merge(custom PriceConfig) PriceConfig {
	merged := make(PriceConfig, len(DefaultPricing)+len(custom))
	for k, v := range DefaultPricing {
		merged[k] = v
	}
	for k, v := range custom {
		merged[k] = v
	}
	return merged
}

// Overlay returns base overlaid with top, with the same whole-entry semantics as Merge.
func Overlay(base, top PriceConfig) PriceConfig {
	out := make(PriceConfig, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

// Lookup returns the pricing for key from the merged table.
func (p PriceConfig) Lookup(key string) (ModelPricing, bool) {
	mp, ok := p[key]
	return mp, ok
}

// Keys returns the model keys sorted ascending.
func (p PriceConfig) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Cost prices the given token counts. Each term is tokens/1e6*rate with no rounding.
func (mp ModelPricing) Cost(input, output, cacheRead, cacheWrite int64) float64 {
	cost := float64(input) / 1_000_000 * mp.InputPerMillion
	cost += float64(output) / 1_000_000 * mp.OutputPerMillion
	if mp.CacheReadPerMillion != 0 {
		cost += float64(cacheRead) / 1_000_000 * mp.CacheReadPerMillion
	}
	if mp.CacheWritePerMillion != 0 {
		cost += float64(cacheWrite) / 1_000_000 * mp.CacheWritePerMillion
	}
	return cost
}
