package notify

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/theirongolddev/ocburn/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

func newNotifier() *Notifier {
	return NewNotifier(Options{Now: func() time.Time { return t0 }})
}

func quota(source, scope string, remaining float64) model.QuotaStatus {
	return model.QuotaStatus{
		Source:            source,
		Scope:             scope,
		RemainingFraction: remaining,
		Severity:          model.QuotaSeverity(remaining),
	}
}

func TestShouldShowToast_FirstCall(t *testing.T) {
	n := newNotifier()
	d := n.ShouldShowToast(0.5, nil, "ses", t0)
	assert.Equal(t, Decision{Show: true, Message: "Session: $0.5000"}, d)
}

func TestShouldShowToast_Throttle(t *testing.T) {
	n := newNotifier()
	n.UpdateState("ses", 1.0, nil)

	tests := []struct {
		name    string
		cost    float64
		elapsed time.Duration
		want    Decision
	}{
		{"small delta inside heartbeat", 1.05, 2 * time.Minute, Decision{}},
		{"heartbeat elapsed", 1.05, 5 * time.Minute, Decision{Show: true, Message: "Session: $1.0500"}},
		{"delta reached", 1.10, 0, Decision{Show: true, Message: "Session: $1.1000 (+$0.1000)"}},
		{"cost went down", 0.5, time.Minute, Decision{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.ShouldShowToast(tt.cost, nil, "ses", t0.Add(tt.elapsed)))
		})
	}
}

func TestShouldShowToast_QuotaWorsened(t *testing.T) {
	n := newNotifier()
	n.UpdateState("ses", 1.0, []model.QuotaStatus{quota("codex", "5h", 0.6)})

	d := n.ShouldShowToast(1.02, []model.QuotaStatus{quota("codex", "5h", 0.3)}, "ses", t0)
	assert.Equal(t, Decision{Show: true, Message: "⚠️ 5h quota at 30%"}, d)

	n.UpdateState("ses", 1.0, []model.QuotaStatus{quota("antigravity", "claude", 0.3)})
	d = n.ShouldShowToast(1.01, []model.QuotaStatus{quota("antigravity", "claude", 0.05)}, "ses", t0)
	assert.Equal(t, Decision{Show: true, Message: "⚠️ claude at 5% remaining!"}, d)
}

func TestShouldShowToast_SeverityMonotonic(t *testing.T) {
	levels := []float64{0.9, 0.3, 0.1}
	for i, prev := range levels {
		for j, cur := range levels {
			n := newNotifier()
			n.UpdateState("ses", 1.0, []model.QuotaStatus{quota("codex", "5h", prev)})
			d := n.ShouldShowToast(1.0, []model.QuotaStatus{quota("codex", "5h", cur)}, "ses", t0)
			assert.Equal(t, j > i, d.Show, "prev=%v cur=%v", prev, cur)
		}
	}
}

func TestShouldShowToast_UnknownQuotaIgnored(t *testing.T) {
	n := newNotifier()
	n.UpdateState("ses", 1.0, []model.QuotaStatus{quota("codex", "5h", 0.9)})

	d := n.ShouldShowToast(1.0, []model.QuotaStatus{quota("codex", "weekly", 0.01)}, "ses", t0)
	assert.False(t, d.Show)
}

func TestShouldShowToast_SessionsIndependent(t *testing.T) {
	n := newNotifier()
	n.UpdateState("a", 1.0, nil)
	n.UpdateState("b", 2.0, nil)

	assert.False(t, n.ShouldShowToast(1.05, nil, "a", t0).Show)
	assert.True(t, n.ShouldShowToast(2.20, nil, "b", t0).Show)
}

func TestUpdateState_ReplacesSeverities(t *testing.T) {
	n := newNotifier()
	n.UpdateState("ses", 1.0, []model.QuotaStatus{quota("codex", "5h", 0.9), quota("codex", "week", 0.9)})
	n.UpdateState("ses", 1.2, []model.QuotaStatus{quota("codex", "5h", 0.3)})

	st, ok := n.State("ses")
	require.True(t, ok)
	assert.Equal(t, 1.2, st.LastCost)
	assert.Equal(t, t0, st.LastToastAt)
	assert.Equal(t, map[string]model.Severity{"codex/5h": model.SeverityWarning}, st.Severities)
}

func TestResetState(t *testing.T) {
	n := newNotifier()
	n.UpdateState("ses", 5.0, nil)
	n.ResetState("ses")

	_, ok := n.State("ses")
	assert.False(t, ok)
	assert.True(t, n.ShouldShowToast(0.10, nil, "ses", t0).Show)
}

func TestNewNotifier_Thresholds(t *testing.T) {
	n := NewNotifier(Options{CostDelta: 1, Heartbeat: time.Hour, Now: func() time.Time { return t0 }})
	n.UpdateState("ses", 1.0, nil)

	assert.False(t, n.ShouldShowToast(1.5, nil, "ses", t0.Add(30*time.Minute)).Show)
	assert.True(t, n.ShouldShowToast(2.0, nil, "ses", t0).Show)
	assert.True(t, n.ShouldShowToast(1.0, nil, "ses", t0.Add(time.Hour)).Show)
}

func TestFormatToasts(t *testing.T) {
	assert.Equal(t, "Session: $0.0012 (+$0.0003)", FormatCostDeltaToast(0.0012, 0.0003))
	assert.Equal(t, "Session: $2.4500", FormatCostToast(2.45))

	q := model.QuotaStatus{Scope: "5h", RemainingFraction: 0.2, Severity: model.SeverityWarning, ResetsAt: "2026-02-08T15:00:00Z"}
	msg := FormatQuotaToast(q)
	assert.Equal(t, "⚠️ 5h quota at 20%", msg)
	assert.Less(t, len(msg), 80)
}

func TestGuard(t *testing.T) {
	g := NewGuard()

	release, ok := g.TryAcquire("ses")
	require.True(t, ok)

	again, ok := g.TryAcquire("ses")
	assert.False(t, ok)
	assert.Nil(t, again)

	other, ok := g.TryAcquire("other")
	require.True(t, ok)
	assert.Equal(t, 2, g.InFlight())

	release()
	release()
	other()
	assert.Equal(t, 0, g.InFlight())

	_, ok = g.TryAcquire("ses")
	assert.True(t, ok)
}

func TestGuard_Concurrent(t *testing.T) {
	g := NewGuard()
	var admitted atomic.Int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	var releases sync.Mutex
	var held []func()
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if release, ok := g.TryAcquire("ses"); ok {
				admitted.Add(1)
				releases.Lock()
				held = append(held, release)
				releases.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	for _, r := range held {
		r()
	}
	assert.Equal(t, 0, g.InFlight())
}
