package models

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Bounds is an axis-aligned box in coordinate degrees. It does not wrap the
// antimeridian.
type Bounds struct {
	Southwest Coordinates `json:"southwest"`
	Northeast Coordinates `json:"northeast"`
}

func (b Bounds) Contains(c Coordinates) bool {
	return c.Latitude >= b.Southwest.Latitude && c.Latitude <= b.Northeast.Latitude &&
		c.Longitude >= b.Southwest.Longitude && c.Longitude <= b.Northeast.Longitude
}

func (b Bounds) Center() Coordinates {
	return Coordinates{
		Latitude:  (b.Southwest.Latitude + b.Northeast.Latitude) / 2,
		Longitude: (b.Southwest.Longitude + b.Northeast.Longitude) / 2,
	}
}

// CameraPosition is the map viewport as the client reports it.
type CameraPosition struct {
	Target Coordinates `json:"target"`
	Zoom   float64     `json:"zoom"`
}
