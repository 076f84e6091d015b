// Package notify decides when a session cost or quota toast should be shown.
package notify

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/theirongolddev/ocburn/internal/model"
)

// Defaults for Options fields left zero.
const (
	DefaultCostDelta = 0.10
	DefaultHeartbeat = 5 * time.Minute
)

// State is the toast history of one session.
type State struct {
	LastCost    float64
	LastToastAt time.Time
	// Severities holds the quota severities seen at the last toast, keyed by QuotaStatus.Key.
	Severities map[string]model.Severity
}

// Decision is the outcome of ShouldShowToast.
type Decision struct {
	Show    bool
	Message string
}

// Options configures a Notifier.
type Options struct {
	// CostDelta is the cost increase since the last toast that forces a new one.
	CostDelta float64
	// Heartbeat is the elapsed time since the last toast that forces a new one.
	Heartbeat time.Duration
	// Now overrides the clock used by UpdateState.
	Now func() time.Time
}

// Notifier holds per-session toast state. It is safe for concurrent use.
type Notifier struct {
	mu        sync.Mutex
	states    map[string]*State
	costDelta float64
	heartbeat time.Duration
	now       func() time.Time
}

// NewNotifier returns a notifier with empty state.
func NewNotifier(opts Options) *Notifier {
	n := &Notifier{
		states:    make(map[string]*State),
		costDelta: opts.CostDelta,
		heartbeat: opts.Heartbeat,
		now:       opts.Now,
	}
	if n.costDelta <= 0 {
		n.costDelta = DefaultCostDelta
	}
	if n.heartbeat <= 0 {
		n.heartbeat = DefaultHeartbeat
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// ShouldShowToast decides whether a toast is due for sessionID at now. It
// does not change state; callers that show the toast call UpdateState.
//
// Checks run in order: first toast of the session, a quota whose severity got
// worse since the last toast, a cost increase of at least the cost delta, and
// the heartbeat interval.
func (n *Notifier) ShouldShowToast(cost float64, quotas []model.QuotaStatus, sessionID string, now time.Time) Decision {
	n.mu.Lock()
	defer n.mu.Unlock()

	st, ok := n.states[sessionID]
	if !ok || st.LastToastAt.IsZero() {
		return Decision{Show: true, Message: FormatCostToast(cost)}
	}

	if len(st.Severities) > 0 {
		for _, q := range quotas {
			prev, seen := st.Severities[q.Key()]
			if seen && q.Severity.Worse(prev) {
				return Decision{Show: true, Message: FormatQuotaToast(q)}
			}
		}
	}

	if delta := cost - st.LastCost; delta >= n.costDelta {
		return Decision{Show: true, Message: FormatCostDeltaToast(cost, delta)}
	}

	if now.Sub(st.LastToastAt) >= n.heartbeat {
		return Decision{Show: true, Message: FormatCostToast(cost)}
	}
	return Decision{}
}

// UpdateState records a shown toast: the cost, the current time and the quota
// severities, which replace those stored before.
func (n *Notifier) UpdateState(sessionID string, cost float64, quotas []model.QuotaStatus) {
	sev := make(map[string]model.Severity, len(quotas))
	for _, q := range quotas {
		sev[q.Key()] = q.Severity
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.states[sessionID] = &State{LastCost: cost, LastToastAt: n.now(), Severities: sev}
}

// ResetState forgets sessionID.
func (n *Notifier) ResetState(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.states, sessionID)
}

// State returns a copy of the state of sessionID.
func (n *Notifier) State(sessionID string) (State, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	st, ok := n.states[sessionID]
	if !ok {
		return State{}, false
	}
	cp := *st
	cp.Severities = make(map[string]model.Severity, len(st.Severities))
	for k, v := range st.Severities {
		cp.Severities[k] = v
	}
	return cp, true
}

// FormatCostToast renders "Session: $x.xxxx".
func FormatCostToast(cost float64) string {
	return fmt.Sprintf("Session: $%.4f", cost)
}

// FormatCostDeltaToast renders "Session: $x.xxxx (+$d.dddd)".
func FormatCostDeltaToast(cost, delta float64) string {
	return fmt.Sprintf("Session: $%.4f (+$%.4f)", cost, delta)
}

// FormatQuotaToast renders a quota alert. Error severity gets the stronger wording.
func FormatQuotaToast(q model.QuotaStatus) string {
	pct := int(math.Floor(q.RemainingFraction*100 + 0.5))
	if q.Severity == model.SeverityError {
		return fmt.Sprintf("⚠️ %s at %d%% remaining!", q.Scope, pct)
	}
	return fmt.Sprintf("⚠️ %s quota at %d%%", q.Scope, pct)
}
