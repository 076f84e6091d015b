package export

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/ocburn/internal/model"
)

var at = time.Date(2026, time.February, 7, 15, 4, 5, 123e6, time.UTC)

func sample() []model.SessionRecord {
	return []model.SessionRecord{
		{
			SessionID: "ses_abcdefghijklmnop",
			ProjectID: "proj_1234567890",
			Timestamp: at.UnixMilli(),
			Totals: model.TokenStats{
				Input: 12000, Output: 3400, Total: 15400, Reasoning: 1000,
				Cache: model.CacheStats{Read: 5000, Write: 200},
			},
			ByModel: model.TokenStatsByModel{"anthropic/claude": {Input: 12000, Output: 3400, Total: 15400}},
			Cost:    0.125,
		},
		{
			SessionID: `ses,"quoted"`,
			Timestamp: 0,
			Cost:      2,
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": JSON, "CSV": CSV, " markdown ": Markdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Export(nil, Format("xml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "json", Extension(JSON))
	assert.Equal(t, "csv", Extension(CSV))
	assert.Equal(t, "md", Extension(Markdown))
}

func TestToJSON(t *testing.T) {
	empty, err := ToJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	out, err := ToJSON(sample())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[\n  {\n    \"sessionID\": "))

	var back []model.SessionRecord
	require.NoError(t, json.Unmarshal([]byte(out), &back))
	if diff := cmp.Diff(sample(), back); diff != "" {
		t.Fatalf("json export mismatch (-want +got):\n%s", diff)
	}
}

func TestToCSV(t *testing.T) {
	empty, err := ToCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, CSVHeader, empty)

	out, err := ToCSV(sample())
	require.NoError(t, err)
	assert.False(t, strings.HasSuffix(out, "\n"))

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, CSVHeader, lines[0])
	assert.Equal(t, "ses_abcdefghijklmnop,proj_1234567890,2026-02-07T15:04:05.123Z,12000,3400,15400,1000,5000,200,0.125", lines[1])
	assert.Equal(t, `"ses,""quoted""",,1970-01-01T00:00:00.000Z,0,0,0,0,0,0,2`, lines[2])

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, `ses,"quoted"`, rows[2][0])
}

func TestToMarkdown(t *testing.T) {
	assert.Equal(t, markdownHeader+"\nNo records to display\n", ToMarkdown(nil))

	out := ToMarkdown(sample())
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| ses_abcdef... | proj_12345... | 2026-02-07 | 12,000 | 3,400 | 15,400 | 1,000 | 5000/200 | $0.1250 |", lines[2])
	assert.Equal(t, `| ses,"quote... | — | 1970-01-01 | 0 | 0 | 0 | 0 | 0/0 | $2.0000 |`, lines[3])
}

func TestExport_Dispatch(t *testing.T) {
	recs := sample()
	for _, f := range []Format{JSON, CSV, Markdown} {
		out, err := Export(recs, f)
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	}
}
