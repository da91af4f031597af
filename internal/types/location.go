package types

import "errors"

// City is one entry of the compiled-in registry. The registry is
// configuration data: no create/update/delete lifecycle exists.
type City struct {
	Name   string  `json:"name"`
	Region string  `json:"region"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// Coordinate is a latitude/longitude pair in degrees. It is produced by a
// position source and consumed immediately by the distance resolver; it is
// never persisted.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is inside the lat/lon degree ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// ViewMode scopes search results relative to the stored location
// preference. Pure session state, never persisted.
type ViewMode string

const (
	ViewModeMyLocation ViewMode = "my-location"
	ViewModeNearby     ViewMode = "nearby"
	ViewModeAll        ViewMode = "all"
)

// ParseViewMode validates a raw view mode string.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ViewModeMyLocation, ViewModeNearby, ViewModeAll:
		return ViewMode(s), nil
	}
	return "", ErrInvalidViewMode
}

var (
	// ErrPositionUnavailable covers every way a position acquisition can
	// fail: denied, unsupported on the host, or timed out. Callers never
	// need finer-grained handling.
	ErrPositionUnavailable = errors.New("position unavailable")

	// ErrStorageUnavailable indicates the preference store could not be
	// reached. The resolution service absorbs it and re-resolves.
	ErrStorageUnavailable = errors.New("preference storage unavailable")

	// ErrSyncFailed indicates a remote profile push failed. It never
	// escapes the sync adapter.
	ErrSyncFailed = errors.New("remote location sync failed")

	// ErrNoPreference is returned by a preference store read when the
	// profile has never stored a location.
	ErrNoPreference = errors.New("no location preference stored")

	// ErrEmptyRegistry is a precondition violation: nearest-city
	// resolution requires at least one registry entry.
	ErrEmptyRegistry = errors.New("city registry is empty")

	// ErrUnknownCity rejects a manual selection that names no registry
	// entry.
	ErrUnknownCity = errors.New("city not present in registry")

	// ErrInvalidViewMode rejects view mode values outside the enum.
	ErrInvalidViewMode = errors.New("invalid view mode")
)
