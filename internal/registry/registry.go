package registry

import (
	"strings"

	"github.com/njoyaf/mboa-location/internal/types"
)

// cities is the fixed, ordered registry the marketplace serves. Order
// matters: the first entry is the fallback default, and nearest-city
// tie-breaks follow registry order.
var cities = []types.City{
	{Name: "Douala", Region: "Littoral", Lat: 4.05, Lon: 9.77},
	{Name: "Yaounde", Region: "Centre", Lat: 3.87, Lon: 11.52},
	{Name: "Bafoussam", Region: "Ouest", Lat: 5.48, Lon: 10.42},
	{Name: "Bamenda", Region: "Nord-Ouest", Lat: 5.96, Lon: 10.15},
	{Name: "Garoua", Region: "Nord", Lat: 9.3, Lon: 13.4},
	{Name: "Maroua", Region: "Extreme-Nord", Lat: 10.59, Lon: 14.32},
	{Name: "Ngaoundere", Region: "Adamaoua", Lat: 7.32, Lon: 13.58},
	{Name: "Bertoua", Region: "Est", Lat: 4.58, Lon: 13.68},
	{Name: "Buea", Region: "Sud-Ouest", Lat: 4.15, Lon: 9.29},
	{Name: "Limbe", Region: "Sud-Ouest", Lat: 4.02, Lon: 9.21},
	{Name: "Kribi", Region: "Sud", Lat: 2.94, Lon: 9.91},
	{Name: "Ebolowa", Region: "Sud", Lat: 2.9, Lon: 11.15},
	{Name: "Kumba", Region: "Sud-Ouest", Lat: 4.64, Lon: 9.45},
	{Name: "Edea", Region: "Littoral", Lat: 3.8, Lon: 10.13},
	{Name: "Dschang", Region: "Ouest", Lat: 5.45, Lon: 10.06},
	{Name: "Foumban", Region: "Ouest", Lat: 5.73, Lon: 10.9},
}

// Cities returns the ordered registry. Callers get a copy so the registry
// itself stays immutable after load.
func Cities() []types.City {
	out := make([]types.City, len(cities))
	copy(out, cities)
	return out
}

// Lookup finds a city by name, case-insensitively.
func Lookup(name string) (types.City, bool) {
	for _, c := range cities {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return types.City{}, false
}

// Default is the hard-coded fallback city used when resolution is
// impossible. By convention it is the first registry entry.
func Default() types.City {
	return cities[0]
}
