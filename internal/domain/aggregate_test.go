package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

func classified(market, label, location string, volume float64) ClassifiedRecord {
	return ClassifiedRecord{
		VolumeRecord: VolumeRecord{Market: market, ForecastLabel: label, Location: location, Volume: volume},
		WhRole:       ClassifyRole(label),
	}
}

func TestAggregate_Filters(t *testing.T) {
	records := []ClassifiedRecord{
		classified("FR", "Forecast at LDC", "Loc1", 100),
		classified("FR", "Forecast at RDC", "Loc2", 0),
		classified("FR", "Forecast at RDC", "Loc3", -4),
		classified("FR", "Budget Notes", "Loc1", 50),
		classified("EMEA Total", "Forecast at LDC", "Loc1", 100),
		classified("grand TOTAL", "Forecast at LDC", "Loc1", 100),
		classified("NaN", "Forecast at LDC", "Loc1", 100),
		classified("   ", "Forecast at LDC", "Loc1", 100),
	}

	rows := Aggregate(records)

	assert.Equal(t, []AggregatedRow{{Market: "FR", WhRole: RoleLDC, Location: "Loc1", Volume: 100}}, rows)
}

func TestAggregate_CollapsesLabelVariants(t *testing.T) {
	records := []ClassifiedRecord{
		classified("DE", "Forecast at LDC", "AE01", 40),
		classified("DE", "Forecast at LDC (area split)", "AE01", 2.5),
		classified(" DE ", "Forecast at LDC", " AE01", 7.5),
		classified("DE", "Factory", "AE01", 3),
	}

	rows := Aggregate(records)

	assert.Equal(t, []AggregatedRow{
		{Market: "DE", WhRole: RoleFW, Location: "AE01", Volume: 3},
		{Market: "DE", WhRole: RoleLDC, Location: "AE01", Volume: 50},
	}, rows)
}

func TestAggregate_Idempotent(t *testing.T) {
	records := []ClassifiedRecord{
		classified("FR", "Forecast at LDC", "Loc1", 1),
		classified("ES", "Forecast at RDC", "Loc2", 2),
		classified("FR", "Forecast at LDC", "Loc1", 3),
		classified("IT", "FW", "Loc9", 4),
	}

	first := Aggregate(records)
	second := Aggregate(records)

	sortRows := cmpopts.SortSlices(func(a, b AggregatedRow) bool { return compareRows(a, b) < 0 })
	if diff := cmp.Diff(first, second, sortRows); diff != "" {
		t.Errorf("Aggregate not idempotent (-first +second):\n%s", diff)
	}
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestIsCountableMarket(t *testing.T) {
	tests := []struct {
		market   string
		expected bool
	}{
		{"FR", true},
		{"EMEA Total", false},
		{"Subtotal West", false},
		{"nan", false},
		{"", false},
		{"  ", false},
		{"Nantes", true},
	}

	for _, tt := range tests {
		t.Run(tt.market, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsCountableMarket(tt.market))
		})
	}
}

func TestTotalsByMarketRole(t *testing.T) {
	rows := []AggregatedRow{
		{Market: "FR", WhRole: RoleLDC, Location: "L1", Volume: 10},
		{Market: "FR", WhRole: RoleLDC, Location: "L2", Volume: 5},
		{Market: "DE", WhRole: RoleRDC, Location: "L1", Volume: 30},
	}

	totals := TotalsByMarketRole(rows)

	assert.Equal(t, []MarketRoleTotal{
		{Market: "DE", WhRole: RoleRDC, Volume: 30},
		{Market: "FR", WhRole: RoleLDC, Volume: 15},
	}, totals)
}

func TestTotalsByLocationRole(t *testing.T) {
	rows := []AggregatedRow{
		{Market: "FR", WhRole: RoleLDC, Location: "L1", Volume: 10},
		{Market: "DE", WhRole: RoleLDC, Location: "L1", Volume: 5},
		{Market: "DE", WhRole: RoleRDC, Location: "L2", Volume: 1},
	}

	totals := TotalsByLocationRole(rows)

	assert.Equal(t, []LocationRoleTotal{
		{Location: "L1", WhRole: RoleLDC, Volume: 15},
		{Location: "L2", WhRole: RoleRDC, Volume: 1},
	}, totals)
}

func TestMarkets(t *testing.T) {
	rows := []AggregatedRow{
		{Market: "FR"}, {Market: "DE"}, {Market: "FR"}, {Market: "nan"},
	}
	assert.Equal(t, []string{"DE", "FR"}, Markets(rows))
}
