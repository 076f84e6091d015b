package config

import (
	"testing"
)

func TestMerge_OverrideReplacesWholeEntry(t *testing.T) {
	custom := PriceConfig{
		"anthropic/claude-sonnet-4": {InputPerMillion: 1.0, OutputPerMillion: 2.0},
	}

	merged := Merge(custom)

	got, ok := merged.Lookup("anthropic/claude-sonnet-4")
	if !ok {
		t.Fatal("Lookup returned !ok for overridden model")
	}
	if got.InputPerMillion != 1.0 || got.OutputPerMillion != 2.0 {
		t.Fatalf("override rates = %.2f/%.2f, want 1.00/2.00", got.InputPerMillion, got.OutputPerMillion)
	}
	if got.CacheReadPerMillion != 0 || got.CacheWritePerMillion != 0 {
		t.Fatalf("cache rates leaked from defaults: read=%.2f write=%.2f", got.CacheReadPerMillion, got.CacheWritePerMillion)
	}

	if _, ok := merged.Lookup("openai/gpt-4o"); !ok {
		t.Fatal("default entries missing after merge")
	}
	if DefaultPricing["anthropic/claude-sonnet-4"].InputPerMillion != 3.0 {
		t.Fatal("Merge mutated DefaultPricing")
	}
}

func TestMerge_NilCustom(t *testing.T) {
	merged := Merge(nil)
	if len(merged) != len(DefaultPricing) {
		t.Fatalf("len(merged) = %d, want %d", len(merged), len(DefaultPricing))
	}
}

func TestModelPricingCost(t *testing.T) {
	mp := ModelPricing{InputPerMillion: 4, OutputPerMillion: 12}
	got := mp.Cost(2_500_000, 750_000, 0, 0)
	if got != 19.0 {
		t.Fatalf("Cost = %v, want 19.0", got)
	}
}

func TestModelPricingCost_CacheRates(t *testing.T) {
	mp := ModelPricing{
		InputPerMillion:      3,
		OutputPerMillion:     15,
		CacheReadPerMillion:  0.3,
		CacheWritePerMillion: 3.75,
	}
	got := mp.Cost(0, 0, 1_000_000, 1_000_000)
	if got != 0.3+3.75 {
		t.Fatalf("Cost = %v, want %v", got, 0.3+3.75)
	}

	noCache := ModelPricing{InputPerMillion: 3, OutputPerMillion: 15}
	if c := noCache.Cost(0, 0, 5_000_000, 5_000_000); c != 0 {
		t.Fatalf("cache tokens billed without cache rates: %v", c)
	}
}

func TestKeysSorted(t *testing.T) {
	keys := PriceConfig{"b/x": {}, "a/y": {}, "c/z": {}}.Keys()
	want := []string{"a/y", "b/x", "c/z"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}
