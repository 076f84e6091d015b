// Package export renders session records as JSON, CSV or a markdown table.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/ocburn/internal/cli"
	"github.com/theirongolddev/ocburn/internal/model"
)

// Format is an export encoding.
type Format string

// Supported formats.
const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
)

// ErrUnknownFormat is returned for a format name other than json, csv or markdown.
var ErrUnknownFormat = errors.New("unknown export format")

// CSVHeader is the first line of every CSV export.
const CSVHeader = "sessionID,projectID,timestamp,input,output,total,reasoning,cache_read,cache_write,cost"

const (
	markdownHeader = "| Session ID | Project ID | Date | Input | Output | Total | Reasoning | Cache R/W | Cost |\n" +
		"|------------|------------|------|-------|--------|-------|-----------|-----------|------|\n"
	markdownIDLen = 10
	noProject     = "—"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, CSV, Markdown:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Extension returns the file extension used for f, without a dot.
func Extension(f Format) string {
	if f == Markdown {
		return "md"
	}
	return string(f)
}

// Export encodes records in f.
func Export(records []model.SessionRecord, f Format) (string, error) {
	switch f {
	case JSON:
		return ToJSON(records)
	case CSV:
		return ToCSV(records)
	case Markdown:
		return ToMarkdown(records), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// ToJSON returns records as a JSON array indented by two spaces.
func ToJSON(records []model.SessionRecord) (string, error) {
	if records == nil {
		records = []model.SessionRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding json export: %w", err)
	}
	return string(data), nil
}

func isoUTC(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ToCSV returns records one per line after CSVHeader. Fields are quoted per
// RFC 4180 and the output has no trailing newline.
func ToCSV(records []model.SessionRecord) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(CSVHeader)
	if len(records) == 0 {
		return buf.String(), nil
	}
	buf.WriteString("\n")

	w := csv.NewWriter(&buf)
	for _, r := range records {
		row := []string{
			r.SessionID,
			r.ProjectID,
			isoUTC(r.Timestamp),
			strconv.FormatInt(r.Totals.Input, 10),
			strconv.FormatInt(r.Totals.Output, 10),
			strconv.FormatInt(r.Totals.Total, 10),
			strconv.FormatInt(r.Totals.Reasoning, 10),
			strconv.FormatInt(r.Totals.Cache.Read, 10),
			strconv.FormatInt(r.Totals.Cache.Write, 10),
			strconv.FormatFloat(r.Cost, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("encoding csv export: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("encoding csv export: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func cutID(id string) string {
	r := []rune(id)
	if len(r) > markdownIDLen {
		r = r[:markdownIDLen]
	}
	return string(r) + "..."
}

// ToMarkdown returns records as a markdown table with shortened ids and UTC dates.
func ToMarkdown(records []model.SessionRecord) string {
	var b strings.Builder
	b.WriteString(markdownHeader)
	if len(records) == 0 {
		b.WriteString("\nNo records to display\n")
		return b.String()
	}

	for _, r := range records {
		project := noProject
		if r.ProjectID != "" {
			project = cutID(r.ProjectID)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %d/%d | %s |\n",
			cutID(r.SessionID),
			project,
			time.UnixMilli(r.Timestamp).UTC().Format("2006-01-02"),
			cli.FormatNumber(r.Totals.Input),
			cli.FormatNumber(r.Totals.Output),
			cli.FormatNumber(r.Totals.Total),
			cli.FormatNumber(r.Totals.Reasoning),
			r.Totals.Cache.Read, r.Totals.Cache.Write,
			cli.FormatUSD(r.Cost),
		)
	}
	return b.String()
}
