package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/ocburn/internal/model"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", DefaultFileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func record(id string, ts int64, cost float64) model.SessionRecord {
	return model.SessionRecord{
		SessionID: id,
		ProjectID: "proj",
		Timestamp: ts,
		Totals: model.TokenStats{
			Input: 100, Output: 40, Total: 140, Reasoning: 4,
			Cache: model.CacheStats{Read: 10, Write: 2},
		},
		ByModel: model.TokenStatsByModel{
			"anthropic/claude": {Input: 60, Output: 30, Total: 90},
			"openai/gpt":       {Input: 40, Output: 10, Total: 50, Reasoning: 4, Cache: model.CacheStats{Read: 10, Write: 2}},
		},
		Cost: cost,
	}
}

func TestRecordSession_RoundTrip(t *testing.T) {
	l := openLedger(t)
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	r := record("ses_1", base.UnixMilli(), 0.75)
	require.NoError(t, l.RecordSession(r, 1.25))

	got, err := l.Sessions(base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(LedgerSession{SessionRecord: r, TreeCost: 1.25}, got[0]); diff != "" {
		t.Fatalf("ledger round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordSession_UpsertReplacesModels(t *testing.T) {
	l := openLedger(t)
	ts := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC).UnixMilli()

	require.NoError(t, l.RecordSession(record("ses_1", ts, 1), 1))

	updated := record("ses_1", ts, 2)
	updated.ByModel = model.TokenStatsByModel{"google/gemini": {Input: 1, Total: 1}}
	require.NoError(t, l.RecordSession(updated, 3))

	got, err := l.Sessions(time.UnixMilli(0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Cost)
	assert.Equal(t, 3.0, got[0].TreeCost)
	assert.Equal(t, model.TokenStatsByModel{"google/gemini": {Input: 1, Total: 1}}, got[0].ByModel)

	sessions, toasts, err := l.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 0, toasts)
}

func TestSessions_SinceFilterAndOrder(t *testing.T) {
	l := openLedger(t)
	base := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.RecordSession(record("late", base.Add(2*time.Hour).UnixMilli(), 1), 1))
	require.NoError(t, l.RecordSession(record("early", base.Add(time.Hour).UnixMilli(), 1), 1))
	require.NoError(t, l.RecordSession(record("old", base.Add(-time.Hour).UnixMilli(), 1), 1))

	got, err := l.Sessions(base)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].SessionID)
	assert.Equal(t, "late", got[1].SessionID)

	empty, err := l.Sessions(base.Add(24 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeleteSession_Cascades(t *testing.T) {
	l := openLedger(t)
	require.NoError(t, l.RecordSession(record("ses_1", 1, 1), 1))
	require.NoError(t, l.DeleteSession("ses_1"))

	var n int
	require.NoError(t, l.db.QueryRow("SELECT COUNT(*) FROM session_models").Scan(&n))
	assert.Zero(t, n)
}

func TestToasts(t *testing.T) {
	l := openLedger(t)
	at := time.Date(2026, time.May, 5, 9, 30, 0, 0, time.UTC)

	require.NoError(t, l.RecordToast(ToastEntry{SessionID: "ses_1", Message: "Session: $0.1000", Variant: "info", Cost: 0.1, ShownAt: at}))
	require.NoError(t, l.RecordToast(ToastEntry{SessionID: "ses_1", Message: "⚠️ 5h quota at 30%", Variant: "warning", Cost: 0.2, ShownAt: at.Add(time.Minute)}))
	require.NoError(t, l.RecordToast(ToastEntry{SessionID: "ses_2", Message: "Session: $1.0000", Variant: "info"}))

	got, err := l.RecentToasts(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ses_2", got[0].SessionID)
	assert.False(t, got[0].ShownAt.IsZero())
	assert.Equal(t, "⚠️ 5h quota at 30%", got[1].Message)
	assert.True(t, at.Add(time.Minute).Equal(got[1].ShownAt))

	_, toasts, err := l.Counts()
	require.NoError(t, err)
	assert.Equal(t, 3, toasts)
}
