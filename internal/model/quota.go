package model

// Severity is one of info, warning, error.
type Severity string

// Severity levels, in increasing order of urgency.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank orders severities: info < warning < error. Unknown values rank as info.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	default:
		return 0
	}
}

// Worse reports whether s is strictly more urgent than prev.
func (s Severity) Worse(prev Severity) bool {
	return s.Rank() > prev.Rank()
}

// Icon returns the markdown icon used for s.
func (s Severity) Icon() string {
	switch s {
	case SeverityError:
		return "🚨"
	case SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// Quota sources.
const (
	QuotaAntigravity = "antigravity"
	QuotaCodex       = "codex"
)

// QuotaStatus is the remaining share of one provider quota window.
// It never carries account identity or credentials.
type QuotaStatus struct {
	Source            string   `json:"source"`
	Scope             string   `json:"scope"`
	RemainingFraction float64  `json:"remainingFraction"`
	ResetsAt          string   `json:"resetsAt,omitempty"`
	Severity          Severity `json:"severity"`
}

// Key identifies the quota across polls.
func (q QuotaStatus) Key() string {
	return q.Source + "/" + q.Scope
}

// QuotaSeverity maps a remaining fraction to a severity.
func QuotaSeverity(remainingFraction float64) Severity {
	switch {
	case remainingFraction >= 0.5:
		return SeverityInfo
	case remainingFraction >= 0.2:
		return SeverityWarning
	default:
		return SeverityError
	}
}
