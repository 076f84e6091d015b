package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/pipeline"
)

const maxSuggestions = 3

// Suggestion is one cost optimization hint.
type Suggestion struct {
	ID       string         `json:"id"`
	Message  string         `json:"message"`
	Metric   string         `json:"metric"`
	Severity model.Severity `json:"severity"`
}

// ModelCostSuggestions flags a single model carrying more than 70% of the cost.
func ModelCostSuggestions(byModel model.TokenStatsByModel, custom config.PriceConfig) []Suggestion {
	res := pipeline.CalculateCost(byModel, custom)
	if res.TotalCost == 0 || len(res.ByModel) == 0 {
		return nil
	}

	var top string
	var topCost float64
	for _, key := range pipeline.ModelKeys(byModel) {
		if c := res.ByModel[key]; top == "" || c > topCost {
			top, topCost = key, c
		}
	}

	pct := topCost / res.TotalCost * 100
	if pct <= 70 {
		return nil
	}
	return []Suggestion{{
		ID:       "model_cost_high_concentration",
		Message:  fmt.Sprintf("%s accounts for %.0f%% (%s) of costs. Consider lower-cost alternatives.", top, pct, cli.FormatUSD(topCost)),
		Metric:   "model_cost_distribution",
		Severity: model.SeverityWarning,
	}}
}

// CacheSuggestions flags cache writes outweighing reads by more than 2:1 once
// at least 1000 tokens were written.
func CacheSuggestions(stats model.TokenStats) []Suggestion {
	c := stats.Cache
	if c.Write < 1000 {
		return nil
	}

	ratio := math.Inf(1)
	if c.Read > 0 {
		ratio = float64(c.Write) / float64(c.Read)
	}
	if ratio <= 2 {
		return nil
	}

	writePart, readPart := "∞", "0"
	if c.Read > 0 {
		writePart, readPart = fmt.Sprintf("%d", int64(math.Floor(ratio+0.5))), "1"
	}
	return []Suggestion{{
		ID: "cache_write_heavy",
		Message: fmt.Sprintf("Cache write/read ratio is %s:%s (%s writes, %s reads). Review caching strategy.",
			writePart, readPart, cli.FormatNumber(c.Write), cli.FormatNumber(c.Read)),
		Metric:   "cache_efficiency",
		Severity: model.SeverityWarning,
	}}
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ReasoningSuggestions flags models whose reasoning tokens exceed half their output.
func ReasoningSuggestions(byModel model.TokenStatsByModel) []Suggestion {
	var out []Suggestion
	for _, key := range pipeline.ModelKeys(byModel) {
		s := byModel[key]
		if s.Output == 0 {
			continue
		}
		pct := float64(s.Reasoning) / float64(s.Output) * 100
		if pct <= 50 {
			continue
		}
		out = append(out, Suggestion{
			ID: "reasoning_heavy_" + nonAlnum.ReplaceAllString(key, "_"),
			Message: fmt.Sprintf("%s uses %.0f%% reasoning tokens (%s of %s output). Consider non-reasoning model for simpler tasks.",
				key, pct, cli.FormatNumber(s.Reasoning), cli.FormatNumber(s.Output)),
			Metric:   "reasoning_usage",
			Severity: model.SeverityInfo,
		})
	}
	return out
}

// Suggestions returns at most three hints, warnings first, then by id.
func Suggestions(stats model.TokenStats, byModel model.TokenStatsByModel, custom config.PriceConfig) []Suggestion {
	var all []Suggestion
	all = append(all, ModelCostSuggestions(byModel, custom)...)
	all = append(all, CacheSuggestions(stats)...)
	all = append(all, ReasoningSuggestions(byModel)...)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Severity != all[j].Severity {
			return all[i].Severity.Worse(all[j].Severity)
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > maxSuggestions {
		all = all[:maxSuggestions]
	}
	return all
}

// FormatOptimizationSection renders suggestions under a "Cost Optimization" heading.
func FormatOptimizationSection(suggestions []Suggestion) string {
	if len(suggestions) == 0 {
		return ""
	}
	lines := make([]string, len(suggestions))
	for i, s := range suggestions {
		lines[i] = "- " + s.Message
	}
	return "## Cost Optimization\n\n" + strings.Join(lines, "\n")
}
