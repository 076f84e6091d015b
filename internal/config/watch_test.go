package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWatcher_DebouncedReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	changes := make(chan struct{}, 16)
	w, err := NewWatcher([]string{path, filepath.Join(dir, "missing", PricingFileName)}, func() {
		changes <- struct{}{}
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	for i := 0; i < 3; i++ {
		writeFile(t, dir, "config.toml", "[general]\ndefault_days = 7\n")
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after writing the config file")
	}

	// Let any trailing callback of the burst through, then check unrelated
	// files are ignored.
	time.Sleep(200 * time.Millisecond)
	for len(changes) > 0 {
		<-changes
	}
	writeFile(t, dir, "notes.txt", "x")
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, changes)
}

func TestWatchPaths(t *testing.T) {
	paths := WatchPaths("/etc/ocburn/config.toml")
	require.NotEmpty(t, paths)
	assert.Equal(t, "/etc/ocburn/config.toml", paths[0])
	assert.Len(t, paths, 1+len(SearchPaths(PricingFileName))+len(SearchPaths(BudgetFileName)))
}
