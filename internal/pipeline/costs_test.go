package pipeline

import (
	"testing"

	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/model"
)

func TestCalculateCost_CustomModel(t *testing.T) {
	stats := model.TokenStatsByModel{
		"test/model": {Input: 2_500_000, Output: 750_000, Total: 3_250_000},
	}
	custom := config.PriceConfig{
		"test/model": {InputPerMillion: 4, OutputPerMillion: 12},
	}

	got := CalculateCost(stats, custom)

	if got.TotalCost != 19.0 {
		t.Fatalf("TotalCost = %v, want 19.0", got.TotalCost)
	}
	if got.ByModel["test/model"] != 19.0 {
		t.Fatalf("ByModel[test/model] = %v, want 19.0", got.ByModel["test/model"])
	}
	if len(got.Warnings) != 0 {
		t.Fatalf("Warnings = %v, want none", got.Warnings)
	}
}

func TestCalculateCost_UnknownModelWarns(t *testing.T) {
	stats := model.TokenStatsByModel{
		"nobody/nothing": {Input: 1000, Output: 1000, Total: 2000},
	}

	got := CalculateCost(stats, nil)

	if got.TotalCost != 0 {
		t.Fatalf("TotalCost = %v, want 0", got.TotalCost)
	}
	if v, ok := got.ByModel["nobody/nothing"]; !ok || v != 0 {
		t.Fatalf("ByModel entry = %v (present=%v), want 0", v, ok)
	}
	want := "No pricing data available for model: nobody/nothing. Cost set to $0."
	if len(got.Warnings) != 1 || got.Warnings[0] != want {
		t.Fatalf("Warnings = %q, want [%q]", got.Warnings, want)
	}
}

func TestCalculateCost_Empty(t *testing.T) {
	got := CalculateCost(model.TokenStatsByModel{}, nil)

	if got.TotalCost != 0 {
		t.Fatalf("TotalCost = %v, want 0", got.TotalCost)
	}
	if got.ByModel == nil || len(got.ByModel) != 0 {
		t.Fatalf("ByModel = %v, want empty non-nil map", got.ByModel)
	}
	if got.Warnings == nil || len(got.Warnings) != 0 {
		t.Fatalf("Warnings = %v, want empty non-nil slice", got.Warnings)
	}
}

func TestAgentCosts_SumToTotal(t *testing.T) {
	custom := config.PriceConfig{
		"p/a": {InputPerMillion: 1_000_000, OutputPerMillion: 2_000_000},
		"p/b": {InputPerMillion: 3_000_000},
	}
	msgs := []model.AssistantMessage{
		msg("1", "u1", "p", "a", "build", 1, 1, 0, 0, 0),
		msg("2", "u1", "p", "b", "build", 2, 0, 0, 0, 0),
		msg("3", "u2", "p", "a", "plan", 1, 0, 0, 0, 0),
	}
	users := []model.UserMessage{{ID: "u1", Agent: "plan"}}

	exec := AgentCosts(msgs, custom)
	if exec["build"] != 9 || exec["plan"] != 1 {
		t.Fatalf("AgentCosts = %v, want build=9 plan=1", exec)
	}

	byInitiator := InitiatorCosts(msgs, users, custom)
	if byInitiator["plan"] != 9 || byInitiator[model.UnknownAgent] != 1 {
		t.Fatalf("InitiatorCosts = %v, want plan=9 unknown=1", byInitiator)
	}

	total := CalculateCost(AggregateByModel(msgs), custom).TotalCost
	if exec["build"]+exec["plan"] != total {
		t.Fatalf("agent costs sum %v, want %v", exec["build"]+exec["plan"], total)
	}
}
