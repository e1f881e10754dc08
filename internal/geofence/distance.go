package geofence

import (
	"fmt"
	"math"

	"github.com/dukerupert/questtracker/internal/model"
)

const earthRadiusMeters = 6371000.0

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the great-circle distance in metres between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// NearestStatus describes where a point is relative to the family's
// geofences. Being inside a fence beats being near one; ties go to the
// closest centre.
func NearestStatus(lat, lng float64, fences []model.Geofence) string {
	var (
		status string
		inside bool
		best   = math.MaxFloat64
	)
	for _, g := range fences {
		d := Distance(lat, lng, g.Latitude, g.Longitude)
		switch {
		case d <= g.Radius:
			if !inside || d < best {
				status, inside, best = "Inside "+g.Name, true, d
			}
		case d <= 2*g.Radius:
			if !inside && d < best {
				status, best = "Near "+g.Name, d
			}
		}
	}
	if status == "" {
		return fmt.Sprintf("Lat: %.4f, Lng: %.4f", lat, lng)
	}
	return status
}
