package stability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateOutput_Boundary(t *testing.T) {
	cfg := Config{MaxChars: 10}

	at := TruncateOutput(strings.Repeat("a", 10), cfg)
	assert.False(t, at.Truncated)
	assert.Equal(t, strings.Repeat("a", 10), at.Content)
	assert.Equal(t, 10, at.OriginalLength)

	over := TruncateOutput(strings.Repeat("a", 11), cfg)
	require.True(t, over.Truncated)
	assert.Equal(t, 11, over.OriginalLength)
	assert.True(t, strings.HasPrefix(over.Content, strings.Repeat("a", 10)+"\n\n---\n"))
	assert.Contains(t, over.Content, "Output truncated (11 → 10 chars)")
	assert.Contains(t, over.Content, "Use `token_export` tool for full data.")
	assert.Equal(t, strings.Repeat("a", 10)+over.Message, over.Content)
}

func TestTruncateOutput_CountsRunes(t *testing.T) {
	s := strings.Repeat("€", 5)
	got := TruncateOutput(s, Config{MaxChars: 5})
	assert.False(t, got.Truncated)

	got = TruncateOutput(s, Config{MaxChars: 3})
	require.True(t, got.Truncated)
	assert.True(t, strings.HasPrefix(got.Content, "€€€\n"))
}

func TestTruncateOutput_ZeroConfigUsesDefault(t *testing.T) {
	got := TruncateOutput(strings.Repeat("x", 20000), Config{})
	assert.False(t, got.Truncated)

	got = TruncateOutput(strings.Repeat("x", 20001), Config{})
	assert.True(t, got.Truncated)
}

func TestLimitTableRows_Boundary(t *testing.T) {
	rows := []int{1, 2, 3}

	at := LimitTableRows(rows, Config{MaxTableRows: 3})
	assert.False(t, at.Truncated)
	assert.Equal(t, rows, at.Rows)
	assert.Equal(t, 0, at.Omitted())

	cut := LimitTableRows(rows, Config{MaxTableRows: 2})
	assert.True(t, cut.Truncated)
	assert.Equal(t, []int{1, 2}, cut.Rows)
	assert.Equal(t, 3, cut.TotalCount)
	assert.Equal(t, 1, cut.Omitted())
}

func TestMoreRowsNote(t *testing.T) {
	assert.Equal(t, "\n_...and 4 more rows. Use `token_export` for full data._\n", MoreRowsNote(4))
}

func TestDebugInfo(t *testing.T) {
	assert.Equal(t, "Debug Info: 0 sections", DebugInfo(nil))

	got := DebugInfo([]string{"ab\ncd", "x"})
	assert.Equal(t, "Debug Info: 2 sections\nSection 0: length: 5, lines: 2\nSection 1: length: 1, lines: 1", got)
}

func TestCompactMatches(t *testing.T) {
	c := Compact{Triggers: []string{"antigravity-", "google/antigravity-"}, MaxChars: 8000}

	assert.True(t, c.Matches("other", "antigravity-pro"))
	assert.True(t, c.Matches("google", "antigravity-flash"))
	assert.False(t, c.Matches("google", "gemini-2.5-pro"))
	assert.False(t, Compact{}.Matches("google", "antigravity-pro"))

	assert.Equal(t, 8000, c.Apply(Default()).MaxChars)
	assert.Equal(t, 20000, Compact{}.Apply(Default()).MaxChars)
}
