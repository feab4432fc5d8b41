package dto

import (
	"bytes"
	"cone-tracker-service/internal/domain"
	"cone-tracker-service/internal/services"
	"encoding/json"
	"fmt"
)

// Coordinate accepted either as a JSON string or a JSON number. The
// literal text is kept as sent so it is stored without reformatting.
type Coordinate string

func (c *Coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Coordinate(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("coordinate must be a string or a number: %w", err)
	}
	*c = Coordinate(n.String())
	return nil
}

type UpdateConeRequest struct {
	Lat  Coordinate `json:"lat"`
	Long Coordinate `json:"long"`
}

type UpdateConeResponse struct {
	Success bool `json:"success"`
}

type ConeHistoryResponse struct {
	ConeID    int                 `json:"cone_id"`
	DisplayID int                 `json:"display_id"`
	Records   []domain.ConeRecord `json:"records"`
}

type IndexResponse struct {
	FinishTime string                 `json:"finish_time"`
	Cones      []services.ConeMapView `json:"cones"`
}

type ListConesResponse struct {
	Cones []services.ConeListView `json:"cones"`
}

type ConeSummariesResponse struct {
	Cones []domain.ConeSummary `json:"cones"`
}
