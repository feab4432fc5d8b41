package domain

// Immutable geographic coordinates (latitude, longitude).
type Coordinates struct {
	Lat float64
	Lon float64
}

// Rectangular lat/lon area. Lat runs Bottom..Top, Lon runs Left..Right.
type BoundingBox struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// Report whether c lies inside the box (edges included).
func (b BoundingBox) Contains(c Coordinates) bool {
	return c.Lat >= b.Bottom && c.Lat <= b.Top && c.Lon >= b.Left && c.Lon <= b.Right
}

// Map unit-interval fractions onto a point inside the box.
func (b BoundingBox) At(latFrac, lonFrac float64) Coordinates {
	return Coordinates{
		Lat: b.Bottom + latFrac*(b.Top-b.Bottom),
		Lon: b.Left + lonFrac*(b.Right-b.Left),
	}
}
