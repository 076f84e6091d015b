package model

// CacheStats holds prompt-cache token counters.
type CacheStats struct {
	Read  int64 `json:"read"`
	Write int64 `json:"write"`
}

// TokenStats holds summed token counters for a group of messages.
// Total is always Input+Output; reasoning and cache tokens are informational.
type TokenStats struct {
	Input     int64      `json:"input"`
	Output    int64      `json:"output"`
	Total     int64      `json:"total"`
	Reasoning int64      `json:"reasoning"`
	Cache     CacheStats `json:"cache"`
}

// Add accumulates t into s and recomputes the total.
func (s *TokenStats) Add(t Tokens) {
	s.Input += t.Input
	s.Output += t.Output
	s.Reasoning += t.Reasoning
	s.Cache.Read += t.Cache.Read
	s.Cache.Write += t.Cache.Write
	s.Total = s.Input + s.Output
}

// Merge adds another TokenStats into s element-wise.
func (s *TokenStats) Merge(o TokenStats) {
	s.Input += o.Input
	s.Output += o.Output
	s.Total += o.Total
	s.Reasoning += o.Reasoning
	s.Cache.Read += o.Cache.Read
	s.Cache.Write += o.Cache.Write
}

// AgentTokenStats is TokenStats plus the number of contributing assistant messages.
type AgentTokenStats struct {
	TokenStats
	MessageCount int `json:"messageCount"`
}

// AgentModelTokenStats is AgentTokenStats for one agent×model pair.
type AgentModelTokenStats struct {
	AgentTokenStats
	Agent string `json:"agent"`
	Model string `json:"model"`
}

// TokenStatsByModel maps a ModelKey to its stats.
type TokenStatsByModel map[string]TokenStats

// TokenStatsByAgent maps an agent name to its stats.
type TokenStatsByAgent map[string]AgentTokenStats

// TokenStatsByAgentModel maps "agent|provider/model" to its stats.
type TokenStatsByAgentModel map[string]AgentModelTokenStats

// DailyBucket holds the spend of one local calendar day.
type DailyBucket struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Cost     float64 `json:"cost"`
	Tokens   int64   `json:"tokens"`
	Sessions int     `json:"sessions"`
}
