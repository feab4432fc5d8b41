package domain

import (
	"math"
	"strconv"
	"strings"
)

// Represents one reported location event for a marker ("cone").
// Fields are kept exactly as stored on disk; numeric parsing happens
// lazily because historical data may not parse.
type ConeRecord struct {
	Lat       string `json:"lat"`
	Long      string `json:"long"`
	IPAddress string `json:"ip_address"`
	Timestamp string `json:"timestamp"`
}

// Number of delimiter-separated fields in a well-formed record line.
const ConeRecordFields = 4

// Parse the stored timestamp as float seconds since the Unix epoch.
// Surrounding whitespace is ignored, as in the summaries.
func (r ConeRecord) ParseTimestamp() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(r.Timestamp), 64)
}

// Render the record as a single line, without the trailing newline.
func (r ConeRecord) Line(delim string) string {
	return strings.Join([]string{r.Lat, r.Long, r.IPAddress, r.Timestamp}, delim)
}

// Derived read-only view of a marker: first and last known location and
// the time of the last update. Nil means absent (no history, or the
// stored value did not parse).
type ConeSummary struct {
	ID         int      `json:"id"`
	LastUpdate *float64 `json:"last_update"`
	LastLat    *float64 `json:"last_lat"`
	LastLong   *float64 `json:"last_long"`
	FirstLat   *float64 `json:"first_lat"`
	FirstLong  *float64 `json:"first_long"`
}

// Build the summary of a marker from its ordered history.
// Parsing here is fail-soft: bad numbers degrade to nil.
func SummarizeCone(id int, history []ConeRecord) ConeSummary {
	s := ConeSummary{ID: id}
	if len(history) == 0 {
		return s
	}

	first := history[0]
	last := history[len(history)-1]

	s.FirstLat = parseOptionalFloat(first.Lat)
	s.FirstLong = parseOptionalFloat(first.Long)
	s.LastLat = parseOptionalFloat(last.Lat)
	s.LastLong = parseOptionalFloat(last.Long)
	s.LastUpdate = parseOptionalFloat(last.Timestamp)

	return s
}

// NaN and Inf are treated as absent; they cannot be encoded as JSON.
func parseOptionalFloat(raw string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Format seconds-since-epoch the way record files store them: shortest
// round-trip decimal, always carrying a fractional part ("1700.0").
func FormatTimestamp(sec float64) string {
	s := strconv.FormatFloat(sec, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
