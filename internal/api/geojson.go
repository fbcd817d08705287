package api

import (
	"github.com/appminic/kamera/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func toGeoJSON(reports []models.CameraReport) FeatureCollection {
	features := make([]Feature, 0, len(reports))

	for _, r := range reports {
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{r.Longitude, r.Latitude},
			},
			Properties: map[string]any{
				"id":          r.ID,
				"type":        r.Type.String(),
				"label":       r.Type.Label(),
				"icon":        r.Type.Icon(),
				"reported_by": r.ReportedBy,
				"description": r.Description,
				"thumbs_up":   r.ThumbsUp,
				"thumbs_down": r.ThumbsDown,
				"flags":       r.Flags,
				"timestamp":   r.Timestamp,
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
