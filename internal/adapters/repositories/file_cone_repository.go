package repositories

import (
	"cmp"
	"context"
	"cone-tracker-service/internal/domain"
	"cone-tracker-service/internal/platform/obs"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const defaultConeDelimiter = "|"

// Settings for a FileConeRepository.
type ConeStoreOptions struct {
	// Directory holding one file per marker, named by decimal ID.
	DataDir string
	// Single character separating record fields. Defaults to "|".
	Delimiter string
	// Minimum time between accepted updates of one marker by one IP.
	Cooldown time.Duration
	// Serialize the read-check-append sequence of Update per marker ID.
	// Without it two concurrent updates from one IP can both pass the
	// cooldown check.
	Serialize bool
	// Clock; defaults to time.Now.
	Now func() time.Time
}

// Flat-file implementation of the ConeRepository port.
// The filesystem is the only state: every call re-reads the marker file.
type FileConeRepository struct {
	dir      string
	delim    string
	cooldown time.Duration
	now      func() time.Time
	locks    *keyedLocker
}

func NewFileConeRepository(opts ConeStoreOptions) *FileConeRepository {
	delim := opts.Delimiter
	if delim == "" {
		delim = defaultConeDelimiter
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &FileConeRepository{
		dir:      opts.DataDir,
		delim:    delim,
		cooldown: opts.Cooldown,
		now:      now,
		locks:    newKeyedLocker(opts.Serialize),
	}
}

func (s *FileConeRepository) path(id int) string {
	return filepath.Join(s.dir, strconv.Itoa(id))
}

// Return the ordered history of marker id. A missing file is an empty
// history; any line without exactly four fields fails the whole load.
func (s *FileConeRepository) Load(ctx context.Context, id int) (_ []domain.ConeRecord, err error) {
	defer obs.Time(ctx, "cones.Load")(&err)

	if id < 0 {
		return nil, fmt.Errorf("load cone %d: %w", id, domain.ErrInvalidConeID)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	lines, _, _, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return recordsOf(lines), nil
}

// Return summaries of every marker file in the data directory, sorted by
// ID. Names that are not canonical decimal IDs are ignored; a missing
// directory yields an empty list.
func (s *FileConeRepository) ListMarkers(ctx context.Context) (_ []domain.ConeSummary, err error) {
	defer obs.Time(ctx, "cones.ListMarkers")(&err)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.ConeSummary{}, nil
		}
		return nil, fmt.Errorf("list cones: read dir %q: %w", s.dir, err)
	}

	summaries := make([]domain.ConeSummary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isDecimal(name) {
			continue
		}

		id, err := strconv.Atoi(name)
		if err != nil {
			log.Printf("req_id=%s list cones: skip %q: %v", obs.RequestID(ctx), name, err)
			continue
		}
		// "007" would alias file "7"
		if strconv.Itoa(id) != name {
			log.Printf("req_id=%s list cones: skip %q: not a canonical id", obs.RequestID(ctx), name)
			continue
		}

		unlock := s.locks.Lock(id)
		lines, _, _, err := s.read(ctx, id)
		unlock()
		if err != nil {
			return nil, fmt.Errorf("list cones: %w", err)
		}

		summaries = append(summaries, domain.SummarizeCone(id, recordsOf(lines)))
	}

	slices.SortStableFunc(summaries, func(a, b domain.ConeSummary) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return summaries, nil
}

// Append a location report for marker id from ip, unless ip already
// updated this marker inside the cooldown window (returns false).
// Corrupt history is fatal: the cooldown can only be enforced on data
// that parses.
func (s *FileConeRepository) Update(ctx context.Context, id int, lat, long, ip string) (_ bool, err error) {
	defer obs.Time(ctx, "cones.Update")(&err)

	if id < 0 {
		return false, fmt.Errorf("update cone %d: %w", id, domain.ErrInvalidConeID)
	}
	for _, f := range []struct{ name, value string }{
		{"lat", lat}, {"long", long}, {"ip", ip},
	} {
		if strings.Contains(f.value, s.delim) || strings.ContainsAny(f.value, "\r\n") {
			return false, fmt.Errorf("update cone %d: %s=%q: %w", id, f.name, f.value, domain.ErrInvalidField)
		}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	nowSec := unixSeconds(s.now())

	lines, raw, exists, err := s.read(ctx, id)
	if err != nil {
		return false, fmt.Errorf("update cone %d: %w", id, err)
	}

	path := s.path(id)
	if exists {
		repaired, err := ensureTrailingNewline(path, raw)
		if err != nil {
			return false, fmt.Errorf("update cone %d: %w", id, err)
		}
		if repaired {
			log.Printf("req_id=%s update cone: repaired missing trailing newline path=%s", obs.RequestID(ctx), path)
		}
	}

	minTimestamp := nowSec - s.cooldown.Seconds()
	for _, l := range lines {
		ts, err := l.rec.ParseTimestamp()
		if err != nil {
			return false, fmt.Errorf("update cone %d: %w", id, &domain.MalformedRecordError{
				Path:   path,
				Line:   l.num,
				Fields: domain.ConeRecordFields,
				Reason: fmt.Sprintf("timestamp %q is not a number", l.rec.Timestamp),
			})
		}
		if ts > minTimestamp && l.rec.IPAddress == ip {
			return false, nil
		}
	}

	rec := domain.ConeRecord{
		Lat:       lat,
		Long:      long,
		IPAddress: ip,
		Timestamp: domain.FormatTimestamp(nowSec),
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return false, fmt.Errorf("update cone %d: create data dir %q: %w", id, s.dir, err)
	}
	if err := appendToFile(path, []byte(rec.Line(s.delim)+"\n")); err != nil {
		return false, fmt.Errorf("update cone %d: append %q: %w", id, path, err)
	}

	return true, nil
}

type recordLine struct {
	rec domain.ConeRecord
	num int
}

// read loads and parses the marker file. Callers hold the marker lock.
func (s *FileConeRepository) read(ctx context.Context, id int) ([]recordLine, []byte, bool, error) {
	path := s.path(id)

	raw, exists, err := readIfExists(path)
	if err != nil {
		return nil, nil, false, fmt.Errorf("read cone file %q: %w", path, err)
	}
	if !exists {
		log.Printf("req_id=%s load cone: no data file path=%s", obs.RequestID(ctx), path)
		return nil, nil, false, nil
	}

	lines, err := parseConeLines(path, raw, s.delim)
	if err != nil {
		return nil, nil, true, err
	}
	return lines, raw, true, nil
}

func parseConeLines(path string, raw []byte, delim string) ([]recordLine, error) {
	var out []recordLine
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, delim)
		if len(parts) != domain.ConeRecordFields {
			return nil, &domain.MalformedRecordError{Path: path, Line: i + 1, Fields: len(parts)}
		}

		out = append(out, recordLine{
			rec: domain.ConeRecord{
				Lat:       parts[0],
				Long:      parts[1],
				IPAddress: parts[2],
				Timestamp: parts[3],
			},
			num: i + 1,
		})
	}
	return out, nil
}

func recordsOf(lines []recordLine) []domain.ConeRecord {
	out := make([]domain.ConeRecord, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.rec)
	}
	return out
}

func isDecimal(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return false
		}
	}
	return true
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
