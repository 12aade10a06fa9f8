package domain

import "strings"

// Role is the normalized warehouse tier a forecast column belongs to.
type Role string

const (
	RoleLDC     Role = "LDCs"
	RoleRDC     Role = "RDCs"
	RoleFW      Role = "FWs"
	RoleUnknown Role = "Unknown"
)

// Roles lists the known roles in display order.
var Roles = []Role{RoleFW, RoleRDC, RoleLDC}

// VolumeRecord is one cell of the forecast pivot in long form.
type VolumeRecord struct {
	Market        string  `json:"market"`
	ForecastLabel string  `json:"forecast_label"`
	Location      string  `json:"location"`
	Volume        float64 `json:"volume"`
}

// ClassifiedRecord is a VolumeRecord with its warehouse role resolved.
type ClassifiedRecord struct {
	VolumeRecord
	WhRole Role `json:"wh_role"`
}

// AggregatedRow is the summed volume for one (Market, Wh_Role, Location) triple.
type AggregatedRow struct {
	Market   string  `json:"market" csv:"Market"`
	WhRole   Role    `json:"wh_role" csv:"Wh_Role"`
	Location string  `json:"location" csv:"Location"`
	Volume   float64 `json:"volume" csv:"Volume"`
}

// Geo source markers recorded on a LocationEntry.
const (
	GeoSourceRegistry = "registry" // coordinates came with the registry sheet
	GeoSourcePrimary  = "primary"  // full address query matched
	GeoSourceFallback = "fallback" // city + country query matched
	GeoSourceNotFound = "not_found"
	GeoSourceFailed   = "failed"
	GeoSourceSkipped  = "skipped" // beyond the per-run cap or nothing to query
)

// LocationEntry is one normalized row of the location registry.
// Lat and Lon stay nil until a coordinate is known.
type LocationEntry struct {
	Location      string   `json:"location"`
	FullName      string   `json:"full_name,omitempty"`
	StreetAddress string   `json:"street_address,omitempty"`
	City          string   `json:"city,omitempty"`
	Country       string   `json:"country,omitempty"`
	Lat           *float64 `json:"lat"`
	Lon           *float64 `json:"lon"`
	GeoSource     string   `json:"geo_source,omitempty"`
}

// HasCoordinates reports whether both coordinates are set.
func (e LocationEntry) HasCoordinates() bool {
	return e.Lat != nil && e.Lon != nil
}

// WithCoordinates returns a copy of e carrying the given coordinates.
func (e LocationEntry) WithCoordinates(lat, lon float64, source string) LocationEntry {
	e.Lat = &lat
	e.Lon = &lon
	e.GeoSource = source
	return e
}

// MappablePoint is an AggregatedRow joined to a geocoded location.
type MappablePoint struct {
	Market   string  `json:"market" csv:"Market"`
	WhRole   Role    `json:"wh_role" csv:"Wh_Role"`
	Location string  `json:"location" csv:"Location"`
	Volume   float64 `json:"volume" csv:"Volume"`
	FullName string  `json:"full_name,omitempty" csv:"FullName"`
	City     string  `json:"city,omitempty" csv:"City"`
	Country  string  `json:"country,omitempty" csv:"Country"`
	Lat      float64 `json:"lat" csv:"lat"`
	Lon      float64 `json:"lon" csv:"lon"`
}

// NormalizeKey trims a location or market identifier. The same function is
// applied on both sides of the location join, which is an exact string match.
func NormalizeKey(s string) string {
	return strings.TrimSpace(s)
}

// IsCountableMarket reports whether a market name denotes a real market rather
// than a blank, a pandas-style "nan" placeholder, or a grand-total row.
func IsCountableMarket(market string) bool {
	m := NormalizeKey(market)
	if m == "" || strings.EqualFold(m, "nan") {
		return false
	}
	return !strings.Contains(strings.ToLower(m), "total")
}
