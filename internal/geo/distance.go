package geo

import (
	"math"

	"github.com/njoyaf/mboa-location/internal/types"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates in
// kilometers.
func Haversine(a, b types.Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	deltaLat := toRadians(b.Lat - a.Lat)
	deltaLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// NearestCity selects the registry entry closest to p. Ties break toward
// the earlier registry entry, so iteration order is part of the contract.
// An empty registry is a precondition violation, not a runtime condition.
func NearestCity(p types.Coordinate, cities []types.City) (types.City, error) {
	if len(cities) == 0 {
		return types.City{}, types.ErrEmptyRegistry
	}

	nearest := cities[0]
	best := Haversine(p, types.Coordinate{Lat: cities[0].Lat, Lon: cities[0].Lon})
	for _, c := range cities[1:] {
		d := Haversine(p, types.Coordinate{Lat: c.Lat, Lon: c.Lon})
		if d < best {
			best = d
			nearest = c
		}
	}
	return nearest, nil
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}
