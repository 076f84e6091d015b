package tui

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/history"
	"github.com/theirongolddev/ocburn/internal/model"
)

type fixedQuotas []model.QuotaStatus

func (q fixedQuotas) LoadAll() []model.QuotaStatus { return q }

func ptr(f float64) *float64 { return &f }

func TestNewLoader(t *testing.T) {
	now := time.Date(2026, time.March, 20, 12, 0, 0, 0, time.Local)
	store := history.New(t.TempDir(), zap.NewNop())

	save := func(id, project string, age time.Duration, cost float64) {
		t.Helper()
		require.NoError(t, store.Save(model.SessionRecord{
			SessionID: id,
			ProjectID: project,
			Timestamp: now.Add(-age).UnixMilli(),
			Totals:    model.TokenStats{Total: 1000},
			Cost:      cost,
		}))
	}
	save("recent", "p1", 2*time.Hour, 2)
	save("older", "p1", 3*24*time.Hour, 1)
	save("monthly", "p1", 20*24*time.Hour, 5)
	save("other", "p2", time.Hour, 100)

	quotas := fixedQuotas{{Source: "codex", Scope: "primary", RemainingFraction: 0.5}}
	load := NewLoader(store, quotas, LoaderConfig{
		Days:    7,
		Project: "p1",
		Budget:  model.BudgetConfig{Daily: ptr(10), Monthly: ptr(100)},
		Now:     func() time.Time { return now },
	})

	snap, err := load(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(snap.Records))
	for i, r := range snap.Records {
		ids[i] = r.SessionID
	}
	assert.Equal(t, []string{"recent", "older"}, ids)
	assert.InDelta(t, 3.0, snap.Cost, 1e-9)
	assert.Equal(t, int64(2000), snap.Tokens)
	assert.Len(t, snap.Daily, 2)
	assert.Equal(t, now, snap.LoadedAt)

	require.Len(t, snap.Budget, 2)
	assert.Equal(t, model.PeriodDaily, snap.Budget[0].Period)
	assert.InDelta(t, 2.0, snap.Budget[0].Spent, 1e-9)
	assert.Equal(t, model.PeriodMonthly, snap.Budget[1].Period)
	assert.InDelta(t, 8.0, snap.Budget[1].Spent, 1e-9)

	assert.Equal(t, []model.QuotaStatus(quotas), snap.Quotas)
}

func TestNewLoader_CanceledAndNilQuotas(t *testing.T) {
	load := NewLoader(history.New(t.TempDir(), zap.NewNop()), nil, LoaderConfig{})

	snap, err := load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
	assert.Nil(t, snap.Quotas)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
