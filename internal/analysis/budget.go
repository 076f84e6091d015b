package analysis

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/theirongolddev/ocburn/internal/model"
)

// Default threshold percentages.
const (
	DefaultWarningPct = 50.0
	DefaultErrorPct   = 95.0
)

// Window returns the trailing duration a budget period covers.
func Window(p model.Period) time.Duration {
	switch p {
	case model.PeriodWeekly:
		return 7 * 24 * time.Hour
	case model.PeriodMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ComputeSpend sums the cost of records no older than the period window before now.
func ComputeSpend(records []model.SessionRecord, p model.Period, now time.Time) float64 {
	cutoff := now.Add(-Window(p)).UnixMilli()
	var spent float64
	for _, r := range records {
		if r.Timestamp >= cutoff {
			spent += r.Cost
		}
	}
	return spent
}

// Thresholds returns the warning and error percentages of cfg. Values outside
// [0,100] or a warning not below the error fall back to 50/95.
func Thresholds(cfg model.BudgetConfig) (warning, errPct float64) {
	warning, errPct = DefaultWarningPct, DefaultErrorPct
	if t := cfg.Thresholds; t != nil {
		if t.Warning != nil {
			warning = *t.Warning
		}
		if t.Error != nil {
			errPct = *t.Error
		}
	}
	invalid := warning < 0 || warning > 100 || errPct < 0 || errPct > 100
	if invalid || warning >= errPct {
		return DefaultWarningPct, DefaultErrorPct
	}
	return warning, errPct
}

// BudgetStatuses reports spend against each configured limit, in period order.
// Non-positive limits are ignored.
func BudgetStatuses(records []model.SessionRecord, cfg model.BudgetConfig, now time.Time) []model.BudgetStatus {
	warning, errPct := Thresholds(cfg)

	statuses := []model.BudgetStatus{}
	for _, p := range model.Periods {
		limit, ok := cfg.Limit(p)
		if !ok || limit <= 0 {
			continue
		}

		spent := ComputeSpend(records, p, now)
		pct := int(math.Floor(spent/limit*100 + 0.5))

		sev := model.SeverityInfo
		switch {
		case float64(pct) >= errPct:
			sev = model.SeverityError
		case float64(pct) >= warning:
			sev = model.SeverityWarning
		}

		statuses = append(statuses, model.BudgetStatus{
			Period:     p,
			Limit:      limit,
			Spent:      spent,
			Remaining:  limit - spent,
			Percentage: pct,
			Severity:   sev,
		})
	}
	return statuses
}

// PeriodLabel capitalizes a period name.
func PeriodLabel(p model.Period) string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatBudgetSection renders one line per budget status.
func FormatBudgetSection(statuses []model.BudgetStatus) string {
	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		lines = append(lines, fmt.Sprintf("- %s %s: $%.2f / $%.2f (%d%%)",
			s.Severity.Icon(), PeriodLabel(s.Period), s.Spent, s.Limit, s.Percentage))
	}
	return strings.Join(lines, "\n")
}
