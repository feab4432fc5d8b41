package repositories

import (
	"cone-tracker-service/internal/domain"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Area fixture locations are drawn from.
var SeedArea = domain.BoundingBox{
	Top:    -36.841454,
	Bottom: -36.852618,
	Left:   174.755159,
	Right:  174.771960,
}

// Settings for SeedCones.
type SeedOptions struct {
	DataDir   string
	Delimiter string
	Count     int
	Rand      *rand.Rand
	Now       time.Time
}

// Write synthetic histories for markers 0..Count-1, overwriting existing
// files. Each marker gets 3 to 5 records with timestamps up to 8640s in
// the past. The last line is left without a trailing newline, matching
// files produced by hand or by older tooling.
func SeedCones(opts SeedOptions) error {
	if opts.Count < 0 {
		return fmt.Errorf("seed cones: invalid count %d", opts.Count)
	}
	if opts.Rand == nil {
		return errors.New("seed cones: rand is nil")
	}
	delim := opts.Delimiter
	if delim == "" {
		delim = defaultConeDelimiter
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return fmt.Errorf("seed cones: create dir %q: %w", opts.DataDir, err)
	}

	for id := 0; id < opts.Count; id++ {
		n := 3 + opts.Rand.Intn(3)
		lines := make([]string, 0, n)
		for i := 0; i < n; i++ {
			lines = append(lines, seedRecord(opts.Rand, now).Line(delim))
		}

		path := filepath.Join(opts.DataDir, strconv.Itoa(id))
		if err := rewriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
			return fmt.Errorf("seed cones: write cone %d: %w", id, err)
		}
	}

	return nil
}

func seedRecord(rng *rand.Rand, now time.Time) domain.ConeRecord {
	c := SeedArea.At(rng.Float64(), rng.Float64())

	octets := make([]string, 4)
	for i := range octets {
		octets[i] = strconv.Itoa(10 + rng.Intn(182))
	}

	age := float64(30 + rng.Intn(24*360-30))

	return domain.ConeRecord{
		Lat:       strconv.FormatFloat(c.Lat, 'f', -1, 64),
		Long:      strconv.FormatFloat(c.Lon, 'f', -1, 64),
		IPAddress: strings.Join(octets, "."),
		Timestamp: domain.FormatTimestamp(unixSeconds(now) - age),
	}
}
