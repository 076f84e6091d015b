// Package quota reads provider quota snapshots written by other tools on this machine.
//
// Readers never fail: unreadable or malformed files yield no statuses and a
// warning in the log. Account identity and credentials in those files are never
// decoded.
package quota

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/model"
)

// Loader reads quota files from fixed locations.
type Loader struct {
	// AntigravityPath is the accounts file of the antigravity auth plugin.
	AntigravityPath string
	// CodexDir is the codex home directory containing sessions/.
	CodexDir string
	Log      *zap.Logger
}

// NewLoader returns a loader using the default locations under the home directory.
func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loader{Log: log}
	if home, err := os.UserHomeDir(); err == nil {
		l.AntigravityPath = filepath.Join(home, ".config", "opencode", "antigravity-accounts.json")
		l.CodexDir = filepath.Join(home, ".codex")
	}
	return l
}

type antigravityFile struct {
	Accounts []antigravityAccount `json:"accounts"`
}

type antigravityAccount struct {
	Enabled     *bool                      `json:"enabled"`
	CachedQuota map[string]json.RawMessage `json:"cachedQuota"`
}

type antigravityQuota struct {
	RemainingFraction *float64 `json:"remainingFraction"`
	ResetTime         *string  `json:"resetTime"`
}

// Antigravity returns one status per quota scope across enabled accounts,
// keeping the highest remaining fraction per scope. On ties an entry with a
// reset time replaces one without. Results are sorted by scope.
func (l *Loader) Antigravity() []model.QuotaStatus {
	if l.AntigravityPath == "" {
		return nil
	}
	data, err := os.ReadFile(l.AntigravityPath) //nolint:gosec // fixed config location
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		l.Log.Warn("reading antigravity quota", zap.String("path", l.AntigravityPath), zap.Error(err))
		return nil
	}

	var f antigravityFile
	if err := json.Unmarshal(data, &f); err != nil {
		l.Log.Warn("parsing antigravity quota", zap.String("path", l.AntigravityPath), zap.Error(err))
		return nil
	}

	byScope := make(map[string]model.QuotaStatus)
	for _, acct := range f.Accounts {
		if acct.Enabled != nil && !*acct.Enabled {
			continue
		}
		for scope, raw := range acct.CachedQuota {
			var q antigravityQuota
			if err := json.Unmarshal(raw, &q); err != nil || q.RemainingFraction == nil {
				continue
			}

			next := model.QuotaStatus{
				Source:            model.QuotaAntigravity,
				Scope:             scope,
				RemainingFraction: *q.RemainingFraction,
				Severity:          model.QuotaSeverity(*q.RemainingFraction),
			}
			if q.ResetTime != nil {
				next.ResetsAt = *q.ResetTime
			}

			cur, ok := byScope[scope]
			switch {
			case !ok, next.RemainingFraction > cur.RemainingFraction:
				byScope[scope] = next
			case next.RemainingFraction == cur.RemainingFraction && cur.ResetsAt == "" && next.ResetsAt != "":
				byScope[scope] = next
			}
		}
	}

	out := make([]model.QuotaStatus, 0, len(byScope))
	for _, q := range byScope {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out
}

type codexLine struct {
	RateLimits map[string]json.RawMessage `json:"rate_limits"`
	Payload    *struct {
		RateLimits map[string]json.RawMessage `json:"rate_limits"`
	} `json:"payload"`
}

type codexLimit struct {
	UsedPercent *float64        `json:"used_percent"`
	ResetsAt    json.RawMessage `json:"resets_at"`
}

// Codex returns the rate limits recorded last in the most recently modified
// codex session log. Results are sorted by scope.
func (l *Loader) Codex() []model.QuotaStatus {
	if l.CodexDir == "" {
		return nil
	}
	newest := l.newestCodexSession()
	if newest == "" {
		return nil
	}

	data, err := os.ReadFile(newest) //nolint:gosec // path comes from a directory listing under CodexDir
	if err != nil {
		l.Log.Warn("reading codex session", zap.String("path", newest), zap.Error(err))
		return nil
	}

	var last map[string]json.RawMessage
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var cl codexLine
		if err := json.Unmarshal(line, &cl); err != nil {
			continue
		}
		switch {
		case len(cl.RateLimits) > 0:
			last = cl.RateLimits
		case cl.Payload != nil && len(cl.Payload.RateLimits) > 0:
			last = cl.Payload.RateLimits
		}
	}

	out := []model.QuotaStatus{}
	for scope, raw := range last {
		var lim codexLimit
		if err := json.Unmarshal(raw, &lim); err != nil || lim.UsedPercent == nil {
			continue
		}
		remaining := 1 - *lim.UsedPercent/100
		out = append(out, model.QuotaStatus{
			Source:            model.QuotaCodex,
			Scope:             scope,
			RemainingFraction: remaining,
			ResetsAt:          resetString(lim.ResetsAt),
			Severity:          model.QuotaSeverity(remaining),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out
}

// resetString renders resets_at, which codex writes either as a string or as epoch seconds.
func resetString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (l *Loader) newestCodexSession() string {
	sessions := filepath.Join(l.CodexDir, "sessions")
	entries, err := os.ReadDir(sessions)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.Log.Warn("listing codex sessions", zap.String("path", sessions), zap.Error(err))
		}
		return ""
	}

	var newest string
	var newestMod int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(sessions, e.Name(), "session.jsonl")
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); mod > newestMod {
			newest, newestMod = p, mod
		}
	}
	return newest
}

// LoadAll returns antigravity statuses followed by codex statuses.
func (l *Loader) LoadAll() []model.QuotaStatus {
	out := l.Antigravity()
	return append(out, l.Codex()...)
}
