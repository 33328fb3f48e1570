// Package geo provides straight-line distance helpers over WGS 84 points.
package geo

import (
	"math"

	"github.com/notapoint/backend/internal/models"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle (haversine) distance between two points.
func DistanceKm(a, b models.GeoPoint) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
