package repositories

import (
	"context"
	"cone-tracker-service/internal/domain"
	"cone-tracker-service/internal/platform/obs"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Settings for a CSVMailingListRepository.
type MailingListOptions struct {
	// Path of the shared CSV file (header + rows).
	Path string
	// Configured cooldown per IP, in minutes.
	CooldownMinutes float64
	// By default the cooldown threshold is now-CooldownMinutes on a
	// seconds clock, which is how existing deployments behave: the
	// effective window is CooldownMinutes seconds. StrictMinutes
	// converts minutes to seconds first.
	StrictMinutes bool
	// Serialize the read-check-append sequence of Subscribe.
	Serialize bool
	// Clock; defaults to time.Now.
	Now func() time.Time
}

// CSV-backed implementation of the MailingListRepository port.
type CSVMailingListRepository struct {
	path      string
	window    float64 // seconds subtracted from now
	serialize bool
	now       func() time.Time

	mu sync.Mutex
}

func NewCSVMailingListRepository(opts MailingListOptions) *CSVMailingListRepository {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	window := opts.CooldownMinutes
	if opts.StrictMinutes {
		window *= 60
	}

	return &CSVMailingListRepository{
		path:      opts.Path,
		window:    window,
		serialize: opts.Serialize,
		now:       now,
	}
}

// Add email to the list unless ip subscribed within the cooldown window
// (returns false). Creates the file with a header on first use. Rows
// with an unreadable timestamp are ignored.
func (s *CSVMailingListRepository) Subscribe(ctx context.Context, email, ip string) (_ bool, err error) {
	defer obs.Time(ctx, "mailing.Subscribe")(&err)

	if s.serialize {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	nowSec := unixSeconds(s.now())
	threshold := nowSec - s.window

	if err := s.ensureFile(ctx); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	entries, err := s.readEntries(ctx)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	for _, e := range entries {
		if e.IP == ip && e.Timestamp >= threshold {
			return false, nil
		}
	}

	if err := s.appendRow([]string{email, ip, domain.FormatTimestamp(nowSec)}); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	return true, nil
}

// Return every row whose timestamp parses, in file order. A missing file
// is an empty list.
func (s *CSVMailingListRepository) ListEntries(ctx context.Context) (_ []domain.MailingListEntry, err error) {
	defer obs.Time(ctx, "mailing.ListEntries")(&err)

	if s.serialize {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	entries, err := s.readEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mailing list: %w", err)
	}
	return entries, nil
}

// Create the file with a header when it is missing or empty, and make
// sure an existing file ends in a newline.
func (s *CSVMailingListRepository) ensureFile(ctx context.Context) error {
	raw, exists, err := readIfExists(s.path)
	if err != nil {
		return fmt.Errorf("read mailing list %q: %w", s.path, err)
	}

	if exists && len(raw) > 0 {
		repaired, err := ensureTrailingNewline(s.path, raw)
		if err != nil {
			return err
		}
		if repaired {
			log.Printf("req_id=%s mailing list: repaired missing trailing newline path=%s", obs.RequestID(ctx), s.path)
		}
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create mailing list dir %q: %w", dir, err)
		}
	}
	if err := s.appendRow(domain.MailingListHeader); err != nil {
		return fmt.Errorf("write mailing list header: %w", err)
	}
	log.Printf("req_id=%s mailing list: created path=%s", obs.RequestID(ctx), s.path)
	return nil
}

func (s *CSVMailingListRepository) readEntries(ctx context.Context) ([]domain.MailingListEntry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.MailingListEntry{}, nil
		}
		return nil, fmt.Errorf("open mailing list %q: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return []domain.MailingListEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mailing list header %q: %w", s.path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	entries := make([]domain.MailingListEntry, 0, 64)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				log.Printf("req_id=%s mailing list: skip unreadable row line=%d err=%v", obs.RequestID(ctx), perr.Line, perr.Err)
				continue
			}
			return nil, fmt.Errorf("read mailing list %q: %w", s.path, err)
		}

		rawTS, ok := column(row, cols, "timestamp")
		if !ok {
			continue
		}
		ts, err := strconv.ParseFloat(strings.TrimSpace(rawTS), 64)
		if err != nil {
			continue
		}

		email, _ := column(row, cols, "email")
		ip, _ := column(row, cols, "ip")
		entries = append(entries, domain.MailingListEntry{Email: email, IP: ip, Timestamp: ts})
	}

	return entries, nil
}

func (s *CSVMailingListRepository) appendRow(row []string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open mailing list %q: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		f.Close()
		return fmt.Errorf("write mailing list row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush mailing list row: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func column(row []string, cols map[string]int, name string) (string, bool) {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}
