package model

// Period is a budget window.
type Period string

// Budget windows, in reporting order.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Periods lists every budget window in reporting order.
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly}

// BudgetThresholds holds the percentage-used cutoffs for warning and error.
type BudgetThresholds struct {
	Warning *float64 `json:"warning,omitempty" toml:"warning,omitempty"`
	Error   *float64 `json:"error,omitempty" toml:"error,omitempty"`
}

// BudgetConfig holds optional spend limits per window in USD.
type BudgetConfig struct {
	Daily      *float64          `json:"daily,omitempty" toml:"daily_usd,omitempty"`
	Weekly     *float64          `json:"weekly,omitempty" toml:"weekly_usd,omitempty"`
	Monthly    *float64          `json:"monthly,omitempty" toml:"monthly_usd,omitempty"`
	Thresholds *BudgetThresholds `json:"thresholds,omitempty" toml:"thresholds,omitempty"`
}

// Limit returns the configured limit for p.
func (c BudgetConfig) Limit(p Period) (float64, bool) {
	var v *float64
	switch p {
	case PeriodDaily:
		v = c.Daily
	case PeriodWeekly:
		v = c.Weekly
	case PeriodMonthly:
		v = c.Monthly
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// IsZero reports whether no limit is configured.
func (c BudgetConfig) IsZero() bool {
	return c.Daily == nil && c.Weekly == nil && c.Monthly == nil
}

// BudgetStatus holds spend against one configured limit.
type BudgetStatus struct {
	Period     Period   `json:"period"`
	Limit      float64  `json:"limit"`
	Spent      float64  `json:"spent"`
	Remaining  float64  `json:"remaining"`
	Percentage int      `json:"percentage"`
	Severity   Severity `json:"severity"`
}
