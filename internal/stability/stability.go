// Package stability bounds report size so that tool output stays within what
// model providers accept.
package stability

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Config bounds report output. Zero fields fall back to Default values.
type Config struct {
	MaxChars       int
	MaxTableRows   int
	MaxChartPoints int
}

// Default returns the standard limits.
func Default() Config {
	return Config{
		MaxChars:       20000,
		MaxTableRows:   50,
		MaxChartPoints: 14,
	}
}

// Resolved fills zero fields from Default.
func (c Config) Resolved() Config {
	d := Default()
	if c.MaxChars <= 0 {
		c.MaxChars = d.MaxChars
	}
	if c.MaxTableRows <= 0 {
		c.MaxTableRows = d.MaxTableRows
	}
	if c.MaxChartPoints <= 0 {
		c.MaxChartPoints = d.MaxChartPoints
	}
	return c
}

// Truncated is the outcome of TruncateOutput.
type Truncated struct {
	Content        string
	Truncated      bool
	OriginalLength int
	Message        string
}

// TruncateOutput cuts content to MaxChars characters and appends a notice.
// Content at or under the limit is returned unchanged.
func TruncateOutput(content string, cfg Config) Truncated {
	cfg = cfg.Resolved()
	n := utf8.RuneCountInString(content)
	if n <= cfg.MaxChars {
		return Truncated{Content: content, OriginalLength: n}
	}

	msg := fmt.Sprintf("\n\n---\n⚠️ Output truncated (%d → %d chars). Use `token_export` tool for full data.", n, cfg.MaxChars)
	return Truncated{
		Content:        string([]rune(content)[:cfg.MaxChars]) + msg,
		Truncated:      true,
		OriginalLength: n,
		Message:        msg,
	}
}

// Limited is the outcome of LimitTableRows.
type Limited[T any] struct {
	Rows       []T
	Truncated  bool
	TotalCount int
}

// LimitTableRows keeps at most MaxTableRows rows.
func LimitTableRows[T any](rows []T, cfg Config) Limited[T] {
	cfg = cfg.Resolved()
	if len(rows) <= cfg.MaxTableRows {
		return Limited[T]{Rows: rows, TotalCount: len(rows)}
	}
	return Limited[T]{Rows: rows[:cfg.MaxTableRows], Truncated: true, TotalCount: len(rows)}
}

// Omitted is the count of rows cut by LimitTableRows.
func (l Limited[T]) Omitted() int {
	return l.TotalCount - len(l.Rows)
}

// MoreRowsNote is appended after a table cut by LimitTableRows.
func MoreRowsNote(omitted int) string {
	return fmt.Sprintf("\n_...and %d more rows. Use `token_export` for full data._\n", omitted)
}

// DebugInfo describes section sizes without echoing their content.
func DebugInfo(sections []string) string {
	if len(sections) == 0 {
		return "Debug Info: 0 sections"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Debug Info: %d sections", len(sections))
	for i, s := range sections {
		fmt.Fprintf(&b, "\nSection %d: length: %d, lines: %d", i, utf8.RuneCountInString(s), strings.Count(s, "\n")+1)
	}
	return b.String()
}

// Compact guards providers that reject large tool output. A message matches when
// its model id or its provider/model key starts with any trigger prefix.
type Compact struct {
	Triggers []string
	MaxChars int
}

// Matches reports whether the provider/model pair triggers compact output.
func (c Compact) Matches(providerID, modelID string) bool {
	key := providerID + "/" + modelID
	for _, t := range c.Triggers {
		if t == "" {
			continue
		}
		if strings.HasPrefix(modelID, t) || strings.HasPrefix(key, t) {
			return true
		}
	}
	return false
}

// Apply returns cfg with the compact character limit.
func (c Compact) Apply(cfg Config) Config {
	if c.MaxChars > 0 {
		cfg.MaxChars = c.MaxChars
	}
	return cfg
}
