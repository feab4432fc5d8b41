package services

import (
	"cone-tracker-service/internal/domain"
	"time"
)

// Layout used for human-readable update times.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// Shown when a marker has no usable last update time.
const NeverUpdated = "Never"

// Row on the overview map: where a marker was last seen and when.
type ConeMapView struct {
	ID           int      `json:"id"`
	DisplayID    int      `json:"display_id"`
	LastUpdateTS *float64 `json:"last_update_ts"`
	LastUpdate   string   `json:"last_update"`
	Lat          *float64 `json:"lat"`
	Long         *float64 `json:"long"`
}

// Row in the marker list.
type ConeListView struct {
	ID         int    `json:"id"`
	DisplayID  int    `json:"display_id"`
	LastUpdate string `json:"last_update"`
}

// Build map rows from summaries, keeping their order.
func BuildMapViews(summaries []domain.ConeSummary, loc *time.Location) []ConeMapView {
	out := make([]ConeMapView, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, ConeMapView{
			ID:           s.ID,
			DisplayID:    DisplayID(s.ID),
			LastUpdateTS: s.LastUpdate,
			LastUpdate:   FormatLastUpdate(s.LastUpdate, loc),
			Lat:          s.LastLat,
			Long:         s.LastLong,
		})
	}
	return out
}

// Build list rows from summaries, keeping their order.
func BuildListViews(summaries []domain.ConeSummary, loc *time.Location) []ConeListView {
	out := make([]ConeListView, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, ConeListView{
			ID:         s.ID,
			DisplayID:  DisplayID(s.ID),
			LastUpdate: FormatLastUpdate(s.LastUpdate, loc),
		})
	}
	return out
}

// Markers are numbered from 0 on disk and from 1 for people.
func DisplayID(id int) int { return id + 1 }

// Format a seconds-since-epoch timestamp for display. Absent and zero
// timestamps render as NeverUpdated.
func FormatLastUpdate(ts *float64, loc *time.Location) string {
	if ts == nil || *ts == 0 {
		return NeverUpdated
	}
	if loc == nil {
		loc = time.Local
	}

	sec := int64(*ts)
	nsec := int64((*ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(loc).Format(DisplayTimeLayout)
}
