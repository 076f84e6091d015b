// Package history persists session usage records as month-sharded JSON files.
//
// Each shard {base}/YYYY-MM.json holds a JSON array of records for one local
// calendar month. Records are upserted by session id and never deleted. Writes
// go to a temp file that is renamed over the shard. Writers in one process are
// serialized; there is no locking across processes, so a single ocburn process
// should own a history directory.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/model"
)

// DirName is the history directory name under each search root.
const DirName = "token-history"

var (
	// ErrInvalidTimestamp is returned for a record timestamp outside years 1 to 9999.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrInvalidDate is returned for a zero date.
	ErrInvalidDate = errors.New("invalid date")
)

var (
	minTimestamp = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	maxTimestamp = time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli() - 1
)

// Store reads and writes history shards under one base directory.
type Store struct {
	dir string
	log *zap.Logger
	mu  sync.Mutex
}

// New returns a store rooted at dir, or at ResolveBaseDir when dir is empty.
func New(dir string, log *zap.Logger) *Store {
	if dir == "" {
		dir = ResolveBaseDir()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, log: log}
}

// Dir returns the base directory.
func (s *Store) Dir() string {
	return s.dir
}

// SearchDirs lists candidate base directories in priority order.
func SearchDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, DirName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".opencode", DirName),
			filepath.Join(home, ".config", "opencode", DirName),
		)
	}
	return dirs
}

// ResolveBaseDir returns the first existing search directory, else ~/.opencode/token-history.
func ResolveBaseDir() string {
	for _, d := range SearchDirs() {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			return d
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".opencode", DirName)
	}
	return filepath.Join(home, ".opencode", DirName)
}

// ShardPath returns the shard file holding records of t's local month.
func (s *Store) ShardPath(t time.Time) (string, error) {
	if t.IsZero() {
		return "", fmt.Errorf("shard path: %w", ErrInvalidDate)
	}
	return s.shardPath(t), nil
}

func (s *Store) shardPath(t time.Time) string {
	return filepath.Join(s.dir, t.Local().Format("2006-01")+".json")
}

// ValidTimestamp reports whether ms is a representable record timestamp.
func ValidTimestamp(ms int64) bool {
	return ms >= minTimestamp && ms <= maxTimestamp
}

// Save upserts r into its month shard. A shard that can't be parsed is
// replaced by one holding only r.
func (s *Store) Save(r model.SessionRecord) error {
	if !ValidTimestamp(r.Timestamp) {
		return fmt.Errorf("saving session %s: %w: %d", r.SessionID, ErrInvalidTimestamp, r.Timestamp)
	}

	path := s.shardPath(r.Time())

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	records, err := s.readShard(path)
	if err != nil {
		s.log.Warn("history shard unreadable, starting empty", zap.String("path", path), zap.Error(err))
		records = nil
	}

	replaced := false
	for i := range records {
		if records[i].SessionID == r.SessionID {
			records[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, r)
	}

	return writeShard(path, records)
}

type loadOptions struct {
	projectID string
}

// LoadOption filters LoadRange.
type LoadOption func(*loadOptions)

// WithProject keeps only records whose project id equals id. Records saved
// without a project id are excluded. An empty id disables the filter.
func WithProject(id string) LoadOption {
	return func(o *loadOptions) { o.projectID = id }
}

// LoadRange returns records with from <= timestamp <= to, ascending by timestamp.
// Missing shards are skipped; corrupt shards are skipped with a warning.
func (s *Store) LoadRange(from, to time.Time, opts ...LoadOption) ([]model.SessionRecord, error) {
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("loading history: %w", ErrInvalidDate)
	}

	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	lo, hi := from.UnixMilli(), to.UnixMilli()
	out := []model.SessionRecord{}

	for _, month := range monthsBetween(from, to) {
		path := s.shardPath(month)
		records, err := s.readShard(path)
		if err != nil {
			s.log.Warn("skipping unreadable history shard", zap.String("path", path), zap.Error(err))
			continue
		}

		for _, r := range records {
			if r.Timestamp < lo || r.Timestamp > hi {
				continue
			}
			if o.projectID != "" && r.ProjectID != o.projectID {
				continue
			}
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out, nil
}

// readShard returns the records of path. A missing file is empty, not an error.
func (s *Store) readShard(path string) ([]model.SessionRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // shard path is built from the base dir
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading shard: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return nil, errors.New("shard is not a JSON array")
	}

	var records []model.SessionRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("parsing shard: %w", err)
	}
	return records, nil
}

func writeShard(path string, records []model.SessionRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding shard: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing shard: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing shard: %w", err)
	}
	return nil
}

// monthsBetween returns the first day of every local month from from to to.
func monthsBetween(from, to time.Time) []time.Time {
	from, to = from.Local(), to.Local()
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.Local)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.Local)

	var months []time.Time
	for !cur.After(end) {
		months = append(months, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}
