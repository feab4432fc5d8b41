package ports

import (
	"context"
	"cone-tracker-service/internal/domain"
)

// Port: a boundary for reading and appending marker location history.
type ConeRepository interface {
	// Return the full ordered history of one marker. A marker that was
	// never updated has an empty history.
	Load(ctx context.Context, id int) ([]domain.ConeRecord, error)

	// Return a summary for every known marker, ordered by ID.
	ListMarkers(ctx context.Context) ([]domain.ConeSummary, error)

	// Append a location report unless this IP updated the same marker
	// inside the cooldown window. Returns false when rate limited.
	Update(ctx context.Context, id int, lat, long, ip string) (bool, error)
}
