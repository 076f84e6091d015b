package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/theirongolddev/ocburn/internal/analysis"
	"github.com/theirongolddev/ocburn/internal/export"
	"github.com/theirongolddev/ocburn/internal/metrics"
	"github.com/theirongolddev/ocburn/internal/model"
	"github.com/theirongolddev/ocburn/internal/pipeline"
	"github.com/theirongolddev/ocburn/internal/report"
	"github.com/theirongolddev/ocburn/internal/stability"
)

const (
	defaultHistoryDays = 30
	// inlineExportLimit is the largest export returned inline; bigger ones go to a file.
	inlineExportLimit = 10000
	// InvalidDateMessage is returned for an unparseable from or to argument.
	InvalidDateMessage = "Error: Invalid date format. Please use ISO format (e.g., 2026-01-01)"
)

// Export scopes.
const (
	ExportSession = "session"
	ExportRange   = "range"
)

var errInvalidDate = errors.New("invalid date")

// parseBound parses an ISO date or timestamp. A bare date is the start of that
// local day, or its last millisecond when end is set.
func parseBound(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		if end {
			return t.AddDate(0, 0, 1).Add(-time.Millisecond), nil
		}
		return t, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, s)
}

// dateRange resolves from/to, defaulting to the last 30 days.
func (p *Plugin) dateRange(from, to string) (time.Time, time.Time, error) {
	now := p.now()
	lo, hi := now.AddDate(0, 0, -defaultHistoryDays), now
	var err error
	if from != "" {
		if lo, err = parseBound(from, false); err != nil {
			return lo, hi, err
		}
	}
	if to != "" {
		if hi, err = parseBound(to, true); err != nil {
			return lo, hi, err
		}
	}
	return lo, hi, nil
}

func (p *Plugin) scopeLabel(scope string) string {
	if scope != ScopeProject {
		return ScopeAll
	}
	id := p.projectID
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("project (%s)", id)
}

// HistoryArgs are the token_history arguments.
type HistoryArgs struct {
	From  string
	To    string
	Scope string
}

// TokenHistory renders saved session records between two dates.
func (p *Plugin) TokenHistory(_ context.Context, args HistoryArgs) string {
	start := time.Now()
	defer func() { metrics.ObserveReport("token_history", time.Since(start)) }()

	from, to, err := p.dateRange(args.From, args.To)
	if err != nil {
		return InvalidDateMessage
	}

	records, err := p.history.LoadRange(from, to, p.historyOpts(args.Scope)...)
	if err != nil {
		return "Error loading token history: " + err.Error()
	}

	r := report.HistoryRange{From: from, To: to, Scope: p.scopeLabel(args.Scope)}
	out := report.RenderHistory(records, analysis.AnalyzeTrends(records), r, p.output)
	return stability.TruncateOutput(out, p.output).Content
}

// ExportArgs are the token_export arguments.
type ExportArgs struct {
	Format          string
	Scope           string
	SessionID       string
	From            string
	To              string
	IncludeChildren bool
	FilePath        string
	HistoryScope    string
}

// TokenExport renders records of one session or a date range in the requested
// format. Output goes to FilePath when set; exports over 10000 characters are
// written to token-export-YYYY-MM-DD.{ext} instead of returned inline.
func (p *Plugin) TokenExport(ctx context.Context, args ExportArgs) string {
	start := time.Now()
	defer func() { metrics.ObserveReport("token_export", time.Since(start)) }()

	out, err := p.tokenExport(ctx, args)
	if err != nil {
		return "Error exporting data: " + err.Error()
	}
	return out
}

func (p *Plugin) tokenExport(ctx context.Context, args ExportArgs) (string, error) {
	format, err := export.ParseFormat(args.Format)
	if err != nil {
		return "", err
	}

	var records []model.SessionRecord
	switch args.Scope {
	case "", ExportSession:
		if args.SessionID == "" {
			return "", errSessionRequired
		}
		rec, msg, err := p.sessionRecord(ctx, args.SessionID, args.IncludeChildren)
		if err != nil || msg != "" {
			return msg, err
		}
		records = []model.SessionRecord{rec}
	case ExportRange:
		from, to, err := p.dateRange(args.From, args.To)
		if err != nil {
			return InvalidDateMessage, nil
		}
		records, err = p.history.LoadRange(from, to, p.historyOpts(args.HistoryScope)...)
		if err != nil {
			return "", err
		}
		if len(records) == 0 {
			return fmt.Sprintf("No session records found between %s and %s.", from.Format("2006-01-02"), to.Format("2006-01-02")), nil
		}
	default:
		return "", fmt.Errorf("unknown export scope %q", args.Scope)
	}

	content, err := export.Export(records, format)
	if err != nil {
		return "", err
	}

	if args.FilePath != "" {
		if err := os.WriteFile(args.FilePath, []byte(content), 0o600); err != nil {
			return "", fmt.Errorf("writing %s: %w", args.FilePath, err)
		}
		return fmt.Sprintf("Successfully exported %d record(s) to %s", len(records), args.FilePath), nil
	}

	if utf8.RuneCountInString(content) > inlineExportLimit {
		path := p.autoExportPath(format)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		return fmt.Sprintf("Export written to %s (%d bytes). Content too large for inline display.", path, len(content)), nil
	}

	return stability.TruncateOutput(content, p.output).Content, nil
}

func (p *Plugin) autoExportPath(f export.Format) string {
	name := fmt.Sprintf("token-export-%s.%s", p.now().UTC().Format("2006-01-02"), export.Extension(f))
	if p.exportDir == "" {
		return "./" + name
	}
	return filepath.Join(p.exportDir, name)
}

// sessionRecord builds a record for the current state of a session. A non-empty
// msg is a user-facing answer that replaces the export.
func (p *Plugin) sessionRecord(ctx context.Context, sessionID string, withChildren bool) (rec model.SessionRecord, msg string, err error) {
	raw, err := p.source.Messages(ctx, sessionID)
	if err != nil {
		return rec, "Error fetching session messages: " + err.Error(), nil
	}

	all := raw
	if withChildren {
		tree, err := pipeline.ListSessionTree(ctx, sessionID, p.source, pipeline.WithRootMessages(raw))
		if err != nil {
			return rec, "", err
		}
		all = pipeline.Flatten(tree)
	}

	infos := pipeline.PrepareMessages(all).Infos()
	if len(infos) == 0 {
		return rec, "No assistant messages found in this session.", nil
	}

	byModel := pipeline.AggregateByModel(infos)
	return model.SessionRecord{
		SessionID: sessionID,
		ProjectID: p.projectID,
		Timestamp: p.now().UnixMilli(),
		Totals:    pipeline.AggregateTokens(infos),
		ByModel:   byModel,
		Cost:      pipeline.CalculateCost(byModel, p.Pricing()).TotalCost,
	}, "", nil
}
