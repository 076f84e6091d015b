// Package plugin wires the usage engine to opencode: the three report tools and
// the message.updated / session.idle event handlers.
//
// A Plugin owns all mutable state (toast throttling, the in-flight guard and
// the current pricing and budget) so several instances never share it.
package plugin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/config"
	"github.com/theirongolddev/ocburn/internal/history"
	"github.com/theirongolddev/ocburn/internal/metrics"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/notify"
	"github.com/theirongolddev/ocburn/internal/opencode"
	"github.com/theirongolddev/ocburn/internal/pipeline"
	"github.com/theirongolddev/ocburn/internal/stability"
	"github.com/theirongolddev/ocburn/internal/store"
)

// ToastSink shows toasts in the opencode TUI.
type ToastSink interface {
	ShowToast(ctx context.Context, t opencode.Toast) error
}

// QuotaSource returns the current provider quota statuses.
type QuotaSource interface {
	LoadAll() []model.QuotaStatus
}

// HistoryStore persists and queries session records.
type HistoryStore interface {
	Save(r model.SessionRecord) error
	LoadRange(from, to time.Time, opts ...history.LoadOption) ([]model.SessionRecord, error)
}

// Ledger is the optional audit trail of shown toasts and recorded sessions.
type Ledger interface {
	RecordToast(t store.ToastEntry) error
	RecordSession(r model.SessionRecord, treeCost float64) error
}

// ActivityKind labels an Activity.
type ActivityKind string

// Activity kinds.
const (
	ActivityToast  ActivityKind = "toast"
	ActivityRecord ActivityKind = "record"
)

// Activity is a side effect of event handling, reported to Options.OnActivity.
type Activity struct {
	Kind      ActivityKind `json:"kind"`
	SessionID string       `json:"sessionID"`
	Message   string       `json:"message,omitempty"`
	Variant   string       `json:"variant,omitempty"`
	Cost      float64      `json:"cost"`
	At        time.Time    `json:"at"`
}

// Deps are the collaborators of a Plugin. Ledger may be nil.
type Deps struct {
	Source  pipeline.TreeSource
	Toasts  ToastSink
	History HistoryStore
	Quotas  QuotaSource
	Ledger  Ledger
	Log     *zap.Logger
}

// Options holds the tunables of a Plugin.
type Options struct {
	// ProjectID is recorded on saved sessions and used by project-scoped queries.
	ProjectID string
	Pricing   config.PriceConfig
	Budget    model.BudgetConfig
	Output    config.OutputConfig
	Notify    config.NotifyConfig
	// ExportDir receives oversized exports. Empty means the working directory.
	ExportDir  string
	Now        func() time.Time
	OnActivity func(Activity)
}

// Plugin serves reports and handles opencode events.
type Plugin struct {
	source  pipeline.TreeSource
	toasts  ToastSink
	history HistoryStore
	quotas  QuotaSource
	ledger  Ledger
	log     *zap.Logger

	notifier *notify.Notifier
	guard    *notify.Guard

	projectID     string
	output        stability.Config
	compact       stability.Compact
	toastDuration int
	exportDir     string
	now           func() time.Time
	onActivity    func(Activity)

	mu      sync.RWMutex
	pricing config.PriceConfig
	budget  model.BudgetConfig
}

// New returns a plugin over deps.
func New(deps Deps, opts Options) *Plugin {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	duration := opts.Notify.ToastDurationMs
	if duration <= 0 {
		duration = 5000
	}
	return &Plugin{
		source:  deps.Source,
		toasts:  deps.Toasts,
		history: deps.History,
		quotas:  deps.Quotas,
		ledger:  deps.Ledger,
		log:     log,
		notifier: notify.NewNotifier(notify.Options{
			CostDelta: opts.Notify.CostDeltaUSD,
			Heartbeat: opts.Notify.Heartbeat(),
			Now:       now,
		}),
		guard:     notify.NewGuard(),
		projectID: opts.ProjectID,
		output: stability.Config{
			MaxChars:       opts.Output.MaxChars,
			MaxTableRows:   opts.Output.MaxTableRows,
			MaxChartPoints: opts.Output.MaxChartPoints,
		}.Resolved(),
		compact: stability.Compact{
			Triggers: opts.Output.CompactTriggers,
			MaxChars: opts.Output.CompactMaxChars,
		},
		toastDuration: duration,
		exportDir:     opts.ExportDir,
		now:           now,
		onActivity:    opts.OnActivity,
		pricing:       opts.Pricing,
		budget:        opts.Budget,
	}
}

// SetPricing replaces the custom pricing overrides.
func (p *Plugin) SetPricing(custom config.PriceConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pricing = custom
}

// SetBudget replaces the budget limits.
func (p *Plugin) SetBudget(b model.BudgetConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.budget = b
}

// Pricing returns the custom pricing overrides in effect.
func (p *Plugin) Pricing() config.PriceConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pricing
}

// Budget returns the budget limits in effect.
func (p *Plugin) Budget() model.BudgetConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.budget
}

// InFlight returns the number of sessions whose message.updated handler is running.
func (p *Plugin) InFlight() int {
	return p.guard.InFlight()
}

// HandleEvent dispatches one opencode event. Unknown event types are ignored.
// It is safe to call concurrently.
func (p *Plugin) HandleEvent(ctx context.Context, ev opencode.Event) error {
	metrics.RecordEvent(ev.Type)

	switch ev.Type {
	case opencode.EventMessageUpdated:
		msg, ok := ev.UpdatedMessage()
		if !ok || msg.Assistant == nil {
			return nil
		}
		return p.handleMessageUpdated(ctx, msg.Assistant.SessionID)
	case opencode.EventSessionIdle:
		id, ok := ev.IdleSession()
		if !ok {
			return nil
		}
		return p.handleSessionIdle(ctx, id)
	}
	return nil
}

func (p *Plugin) handleMessageUpdated(ctx context.Context, sessionID string) error {
	release, ok := p.guard.TryAcquire(sessionID)
	if !ok {
		metrics.RecordInflightSkip()
		return nil
	}
	defer release()

	raw, err := p.source.Messages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("message.updated %s: fetching messages: %w", sessionID, err)
	}
	infos := pipeline.PrepareMessages(raw).Infos()
	if len(infos) == 0 {
		return nil
	}

	cost := pipeline.CalculateCost(pipeline.AggregateByModel(infos), p.Pricing()).TotalCost
	quotas := p.quotas.LoadAll()

	d := p.notifier.ShouldShowToast(cost, quotas, sessionID, p.now())
	if !d.Show {
		metrics.RecordToastSuppressed()
		return nil
	}
	p.notifier.UpdateState(sessionID, cost, quotas)

	variant := opencode.ToastInfo
	if strings.Contains(d.Message, "⚠️") {
		variant = opencode.ToastWarning
	}
	if err := p.toast(ctx, sessionID, d.Message, variant, cost); err != nil {
		return fmt.Errorf("message.updated %s: %w", sessionID, err)
	}
	return nil
}

func (p *Plugin) handleSessionIdle(ctx context.Context, sessionID string) error {
	raw, err := p.source.Messages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session.idle %s: fetching messages: %w", sessionID, err)
	}
	infos := pipeline.PrepareMessages(raw).Infos()
	if len(infos) == 0 {
		return nil
	}

	pricing := p.Pricing()
	byModel := pipeline.AggregateByModel(infos)
	cost := pipeline.CalculateCost(byModel, pricing).TotalCost

	treeCost := cost
	tree, err := pipeline.ListSessionTree(ctx, sessionID, p.source,
		pipeline.WithMaxDepth(pipeline.IdleTreeDepth), pipeline.WithRootMessages(raw))
	switch {
	case err != nil:
		p.log.Debug("session tree unavailable", zap.String("session", sessionID), zap.Error(err))
	case len(tree.Children) > 0:
		stats := pipeline.AggregateSessionTree(tree, pricing)
		treeCost = pipeline.CalculateCost(stats.ByModel, pricing).TotalCost
	}

	rec := model.SessionRecord{
		SessionID: sessionID,
		ProjectID: p.projectID,
		Timestamp: p.now().UnixMilli(),
		Totals:    pipeline.AggregateTokens(infos),
		ByModel:   byModel,
		Cost:      cost,
	}
	if err := p.history.Save(rec); err != nil {
		return fmt.Errorf("session.idle %s: %w", sessionID, err)
	}
	metrics.RecordSession()
	if p.ledger != nil {
		if err := p.ledger.RecordSession(rec, treeCost); err != nil {
			p.log.Warn("ledger session write failed", zap.String("session", sessionID), zap.Error(err))
		}
	}
	p.emit(Activity{Kind: ActivityRecord, SessionID: sessionID, Cost: cost, At: p.now()})

	msg := fmt.Sprintf("Session Cost: $%.4f", treeCost)
	if err := p.toast(ctx, sessionID, msg, opencode.ToastInfo, treeCost); err != nil {
		return fmt.Errorf("session.idle %s: %w", sessionID, err)
	}
	p.notifier.ResetState(sessionID)
	return nil
}

func (p *Plugin) toast(ctx context.Context, sessionID, message, variant string, cost float64) error {
	err := p.toasts.ShowToast(ctx, opencode.Toast{Message: message, Variant: variant, Duration: p.toastDuration})
	if err != nil {
		return fmt.Errorf("showing toast: %w", err)
	}
	metrics.RecordToast(variant)

	at := p.now()
	if p.ledger != nil {
		entry := store.ToastEntry{SessionID: sessionID, Message: message, Variant: variant, Cost: cost, ShownAt: at}
		if err := p.ledger.RecordToast(entry); err != nil {
			p.log.Warn("ledger toast write failed", zap.String("session", sessionID), zap.Error(err))
		}
	}
	p.emit(Activity{Kind: ActivityToast, SessionID: sessionID, Message: message, Variant: variant, Cost: cost, At: at})
	return nil
}

func (p *Plugin) emit(a Activity) {
	if p.onActivity != nil {
		p.onActivity(a)
	}
}

// historyOpts scopes history queries to the plugin project when scope is "project".
func (p *Plugin) historyOpts(scope string) []history.LoadOption {
	if scope == ScopeProject {
		return []history.LoadOption{history.WithProject(p.projectID)}
	}
	return nil
}
