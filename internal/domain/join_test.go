package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coords(lat, lon float64) (*float64, *float64) {
	return &lat, &lon
}

func TestJoin_MatchesOnLocation(t *testing.T) {
	lat, lon := coords(25.2, 55.3)
	rows := []AggregatedRow{
		{Market: "AE", WhRole: RoleLDC, Location: "AE01", Volume: 12},
		{Market: "AE", WhRole: RoleLDC, Location: "ZZ99", Volume: 3},
	}
	entries := []LocationEntry{
		{Location: "AE01", City: "Dubai", Country: "UAE", Lat: lat, Lon: lon},
	}

	points := Join(rows, entries)

	require.Len(t, points, 1)
	assert.Equal(t, MappablePoint{
		Market: "AE", WhRole: RoleLDC, Location: "AE01", Volume: 12,
		City: "Dubai", Country: "UAE", Lat: 25.2, Lon: 55.3,
	}, points[0])
}

func TestJoin_NoMatchingEntry(t *testing.T) {
	rows := []AggregatedRow{{Market: "FR", WhRole: RoleRDC, Location: "FR10", Volume: 1}}
	assert.Empty(t, Join(rows, nil))
}

func TestJoin_DropsEntriesWithoutCoordinates(t *testing.T) {
	lat, _ := coords(48.8, 2.3)
	rows := []AggregatedRow{
		{Market: "FR", WhRole: RoleRDC, Location: "FR10", Volume: 1},
		{Market: "FR", WhRole: RoleRDC, Location: "FR11", Volume: 1},
	}
	entries := []LocationEntry{
		{Location: "FR10"},
		{Location: "FR11", Lat: lat},
	}

	assert.Empty(t, Join(rows, entries))
}

func TestJoin_TrimsKeysAndKeepsFirstDuplicate(t *testing.T) {
	lat1, lon1 := coords(1, 2)
	lat2, lon2 := coords(3, 4)
	rows := []AggregatedRow{{Market: "FR", WhRole: RoleFW, Location: "FR10", Volume: 9}}
	entries := []LocationEntry{
		{Location: " FR10 ", Lat: lat1, Lon: lon1},
		{Location: "FR10", Lat: lat2, Lon: lon2},
	}

	points := Join(rows, entries)

	require.Len(t, points, 1)
	assert.Equal(t, 1.0, points[0].Lat)
	assert.Equal(t, 2.0, points[0].Lon)
}
