// Package registry normalizes the warehouse location registry sheet into
// domain.LocationEntry records.
package registry

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/forecast"
)

// ErrNoHeader is returned when the registry sheet has no non-blank row.
var ErrNoHeader = errors.New("location registry has no header row")

// Columns records which sheet column feeds each entry field; -1 means absent.
type Columns struct {
	HeaderRow int
	Key       int
	FullName  int
	Street    int
	City      int
	Country   int
	Lat       int
	Lon       int
}

// Stats summarizes a normalization pass.
type Stats struct {
	Entries    int
	BlankKeys  int
	Duplicates int
	WithCoords int
}

// IdentifyColumns locates the registry columns by header name. The join key
// is the first header containing "location", else the first non-blank header.
// Every other field is optional.
func IdentifyColumns(g forecast.Grid) (Columns, error) {
	headerRow := -1
	for r := range g {
		if !blankRow(g[r]) {
			headerRow = r
			break
		}
	}
	if headerRow < 0 {
		return Columns{}, ErrNoHeader
	}

	headers := make([]string, g.Width())
	for c := range headers {
		headers[c] = forecast.FoldText(forecast.CellText(g.Cell(headerRow, c)))
	}

	used := make(map[int]bool)
	cols := Columns{HeaderRow: headerRow}

	cols.Key = findColumn(headers, used, "location")
	if cols.Key < 0 {
		// Positional fallback, skipping blank leading header cells.
		for c, h := range headers {
			if h != "" {
				cols.Key = c
				break
			}
		}
		used[cols.Key] = true
	}

	cols.Lat = findColumn(headers, used, "latitude", "lat")
	cols.Lon = findColumn(headers, used, "longitude", "lon", "lng")
	cols.Street = findColumn(headers, used, "address", "street")
	cols.City = findColumn(headers, used, "city", "town")
	cols.Country = findColumn(headers, used, "country")
	cols.FullName = findColumn(headers, used, "name")
	return cols, nil
}

// findColumn returns the first unused header matching any needle and marks it
// used. Whole-word (prefix) matches win over plain substring matches so that
// "Capacity" does not shadow "City".
func findColumn(headers []string, used map[int]bool, needles ...string) int {
	for _, needle := range needles {
		for c, h := range headers {
			if !used[c] && hasWordPrefix(h, needle) {
				used[c] = true
				return c
			}
		}
	}
	for _, needle := range needles {
		for c, h := range headers {
			if !used[c] && strings.Contains(h, needle) {
				used[c] = true
				return c
			}
		}
	}
	return -1
}

func hasWordPrefix(header, needle string) bool {
	words := strings.FieldsFunc(header, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if strings.HasPrefix(w, needle) {
			return true
		}
	}
	return false
}

func blankRow(row []any) bool {
	for _, v := range row {
		if forecast.CellText(v) != "" {
			return false
		}
	}
	return true
}

// Normalize reads every registry row below the header into a LocationEntry.
// Keys are trimmed with domain.NormalizeKey so they match aggregated rows
// exactly. Rows with a blank key are dropped; for duplicate keys the first
// row wins. Coordinates present in the sheet are kept when both parse as
// in-range numbers.
func Normalize(g forecast.Grid, logger *slog.Logger) ([]domain.LocationEntry, Stats, error) {
	cols, err := IdentifyColumns(g)
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	seen := make(map[string]struct{})
	var out []domain.LocationEntry

	for r := cols.HeaderRow + 1; r < len(g); r++ {
		key := domain.NormalizeKey(forecast.CellText(g.Cell(r, cols.Key)))
		if key == "" {
			stats.BlankKeys++
			continue
		}
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			logger.Debug("duplicate registry location ignored", "location", key, "row", r)
			continue
		}
		seen[key] = struct{}{}

		entry := domain.LocationEntry{
			Location:      key,
			FullName:      field(g, r, cols.FullName),
			StreetAddress: field(g, r, cols.Street),
			City:          field(g, r, cols.City),
			Country:       field(g, r, cols.Country),
		}
		if lat, lon, ok := coordinates(g, r, cols); ok {
			entry = entry.WithCoordinates(lat, lon, domain.GeoSourceRegistry)
			stats.WithCoords++
		}
		out = append(out, entry)
	}

	stats.Entries = len(out)
	if stats.Duplicates > 0 {
		logger.Warn("registry has duplicate locations", "duplicates", stats.Duplicates)
	}
	return out, stats, nil
}

func field(g forecast.Grid, row, col int) string {
	if col < 0 {
		return ""
	}
	return forecast.CellText(g.Cell(row, col))
}

func coordinates(g forecast.Grid, row int, cols Columns) (lat, lon float64, ok bool) {
	if cols.Lat < 0 || cols.Lon < 0 {
		return 0, 0, false
	}
	latCell, lonCell := g.Cell(row, cols.Lat), g.Cell(row, cols.Lon)
	if forecast.CellText(latCell) == "" || forecast.CellText(lonCell) == "" {
		return 0, 0, false
	}
	lat, latOK := forecast.ParseVolume(latCell)
	lon, lonOK := forecast.ParseVolume(lonCell)
	if !latOK || !lonOK || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}
