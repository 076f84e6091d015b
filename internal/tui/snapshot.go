package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/theirongolddev/ocburn/internal/analysis"
	"github.com/theirongolddev/ocburn/internal/history"
	"github.com/theirongolddev/ocburn/internal/model"
)

// Snapshot is the data shown by one dashboard frame.
type Snapshot struct {
	// Records are newest first.
	Records  []model.SessionRecord
	Daily    []model.DailyBucket
	Trends   analysis.TrendStats
	Budget   []model.BudgetStatus
	Quotas   []model.QuotaStatus
	Cost     float64
	Tokens   int64
	LoadedAt time.Time
}

// Loader produces a fresh snapshot.
type Loader func(ctx context.Context) (Snapshot, error)

// HistoryReader reads saved session records.
type HistoryReader interface {
	LoadRange(from, to time.Time, opts ...history.LoadOption) ([]model.SessionRecord, error)
}

// QuotaReader reads provider quota snapshots.
type QuotaReader interface {
	LoadAll() []model.QuotaStatus
}

// LoaderConfig configures NewLoader.
type LoaderConfig struct {
	Days    int
	Project string
	Budget  model.BudgetConfig
	Now     func() time.Time
}

// NewLoader returns a Loader reading the last cfg.Days days of history. Budget
// windows are computed over at least the last 31 days so the monthly window is
// complete. quotas may be nil.
func NewLoader(hist HistoryReader, quotas QuotaReader, cfg LoaderConfig) Loader {
	if cfg.Days <= 0 {
		cfg.Days = 7
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(ctx context.Context) (Snapshot, error) {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, err
		}

		now := cfg.Now()
		lookback := max(cfg.Days, 31)
		from := now.AddDate(0, 0, -lookback)
		all, err := hist.LoadRange(from, now, history.WithProject(cfg.Project))
		if err != nil {
			return Snapshot{}, fmt.Errorf("loading history: %w", err)
		}

		cutoff := now.AddDate(0, 0, -cfg.Days).UnixMilli()
		snap := Snapshot{
			Budget:   analysis.BudgetStatuses(all, cfg.Budget, now),
			LoadedAt: now,
		}

		var window []model.SessionRecord
		for _, r := range all {
			if r.Timestamp >= cutoff {
				window = append(window, r)
			}
		}
		snap.Trends = analysis.AnalyzeTrends(window)
		snap.Daily = snap.Trends.Buckets

		snap.Records = make([]model.SessionRecord, len(window))
		for i, r := range window {
			snap.Records[len(window)-1-i] = r
			snap.Cost += r.Cost
			snap.Tokens += r.Totals.Total
		}

		if quotas != nil {
			snap.Quotas = quotas.LoadAll()
		}
		return snap, nil
	}
}
