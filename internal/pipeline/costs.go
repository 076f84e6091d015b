package pipeline

import (
	"fmt"
	"sort"

	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/model"
)

// CostResult holds priced totals for a model breakdown.
type CostResult struct {
	TotalCost float64            `json:"totalCost"`
	ByModel   map[string]float64 `json:"byModel"`
	Warnings  []string           `json:"warnings"`
}

// CalculateCost prices each model in stats against the default table merged with
// custom overrides. Models without pricing cost 0 and produce one warning each.
// Keys are visited in sorted order so the float sum is reproducible.
func CalculateCost(stats model.TokenStatsByModel, custom config.PriceConfig) CostResult {
	return priceWith(stats, config.Merge(custom))
}

func priceWith(stats model.TokenStatsByModel, pricing config.PriceConfig) CostResult {
	result := CostResult{
		ByModel:  make(map[string]float64, len(stats)),
		Warnings: []string{},
	}

	for _, key := range ModelKeys(stats) {
		s := stats[key]
		mp, ok := pricing.Lookup(key)
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("No pricing data available for model: %s. Cost set to $0.", key))
			result.ByModel[key] = 0
			continue
		}

		cost := mp.Cost(s.Input, s.Output, s.Cache.Read, s.Cache.Write)
		result.ByModel[key] = cost
		result.TotalCost += cost
	}

	return result
}

// AgentModelCosts sums priced agent×model entries into a cost per agent.
func AgentModelCosts(stats model.TokenStatsByAgentModel, custom config.PriceConfig) map[string]float64 {
	pricing := config.Merge(custom)
	costs := make(map[string]float64)

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		entry := stats[k]
		priced := priceWith(model.TokenStatsByModel{entry.Model: entry.TokenStats}, pricing)
		costs[entry.Agent] += priced.TotalCost
	}
	return costs
}

// AgentCosts returns the cost attributed to each execution agent.
func AgentCosts(msgs []model.AssistantMessage, custom config.PriceConfig) map[string]float64 {
	return AgentModelCosts(AggregateByAgentModel(msgs), custom)
}

// InitiatorCosts returns the cost attributed to each initiating agent.
func InitiatorCosts(msgs []model.AssistantMessage, users []model.UserMessage, custom config.PriceConfig) map[string]float64 {
	return AgentModelCosts(AggregateByInitiatorModel(msgs, users), custom)
}

// AgentModelRowCosts prices each agent×model entry on its own, keyed like stats.
func AgentModelRowCosts(stats model.TokenStatsByAgentModel, custom config.PriceConfig) map[string]float64 {
	pricing := config.Merge(custom)
	costs := make(map[string]float64, len(stats))
	for k, entry := range stats {
		costs[k] = priceWith(model.TokenStatsByModel{entry.Model: entry.TokenStats}, pricing).TotalCost
	}
	return costs
}
