package domain

// Join inner-joins aggregated rows with location entries on Location and keeps
// only rows whose entry has both coordinates. Rows without a matching entry,
// or matched to an entry that was never geocoded, are dropped rather than
// placed at a default coordinate.
func Join(rows []AggregatedRow, entries []LocationEntry) []MappablePoint {
	byKey := make(map[string]LocationEntry, len(entries))
	for _, e := range entries {
		k := NormalizeKey(e.Location)
		if _, dup := byKey[k]; dup {
			continue
		}
		byKey[k] = e
	}

	out := make([]MappablePoint, 0, len(rows))
	for _, r := range rows {
		e, ok := byKey[NormalizeKey(r.Location)]
		if !ok || !e.HasCoordinates() {
			continue
		}
		out = append(out, MappablePoint{
			Market:   r.Market,
			WhRole:   r.WhRole,
			Location: r.Location,
			Volume:   r.Volume,
			FullName: e.FullName,
			City:     e.City,
			Country:  e.Country,
			Lat:      *e.Lat,
			Lon:      *e.Lon,
		})
	}
	return out
}
