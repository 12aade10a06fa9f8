package domain

import (
	"cmp"
	"slices"
	"strings"
)

type aggKey struct {
	market   string
	role     Role
	location string
}

// Aggregate filters classified records and sums the survivors per
// (Market, Wh_Role, Location). Records are dropped when the volume is not
// positive, the role is Unknown, or the market is not countable (see
// IsCountableMarket). Output is sorted by market, role and location.
func Aggregate(records []ClassifiedRecord) []AggregatedRow {
	sums := make(map[aggKey]float64)
	for _, r := range records {
		if r.Volume <= 0 || r.WhRole == RoleUnknown || !IsCountableMarket(r.Market) {
			continue
		}
		k := aggKey{
			market:   NormalizeKey(r.Market),
			role:     r.WhRole,
			location: NormalizeKey(r.Location),
		}
		sums[k] += r.Volume
	}

	out := make([]AggregatedRow, 0, len(sums))
	for k, v := range sums {
		out = append(out, AggregatedRow{Market: k.market, WhRole: k.role, Location: k.location, Volume: v})
	}
	slices.SortFunc(out, compareRows)
	return out
}

func compareRows(a, b AggregatedRow) int {
	return cmp.Or(
		strings.Compare(a.Market, b.Market),
		strings.Compare(string(a.WhRole), string(b.WhRole)),
		strings.Compare(a.Location, b.Location),
	)
}

// MarketRoleTotal is the volume of one role within one market.
type MarketRoleTotal struct {
	Market string  `json:"market"`
	WhRole Role    `json:"wh_role"`
	Volume float64 `json:"volume"`
}

// LocationRoleTotal is the volume of one role at one location across markets.
type LocationRoleTotal struct {
	Location string  `json:"location"`
	WhRole   Role    `json:"wh_role"`
	Volume   float64 `json:"volume"`
}

// TotalsByMarketRole sums aggregated rows per (Market, Wh_Role), ordered by
// volume descending with ties broken by market and role.
func TotalsByMarketRole(rows []AggregatedRow) []MarketRoleTotal {
	type key struct {
		market string
		role   Role
	}
	sums := make(map[key]float64)
	for _, r := range rows {
		sums[key{r.Market, r.WhRole}] += r.Volume
	}

	out := make([]MarketRoleTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, MarketRoleTotal{Market: k.market, WhRole: k.role, Volume: v})
	}
	slices.SortFunc(out, func(a, b MarketRoleTotal) int {
		return cmp.Or(
			cmp.Compare(b.Volume, a.Volume),
			strings.Compare(a.Market, b.Market),
			strings.Compare(string(a.WhRole), string(b.WhRole)),
		)
	})
	return out
}

// TotalsByLocationRole sums aggregated rows per (Location, Wh_Role) across all
// markets, ordered by volume descending.
func TotalsByLocationRole(rows []AggregatedRow) []LocationRoleTotal {
	type key struct {
		location string
		role     Role
	}
	sums := make(map[key]float64)
	for _, r := range rows {
		sums[key{NormalizeKey(r.Location), r.WhRole}] += r.Volume
	}

	out := make([]LocationRoleTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, LocationRoleTotal{Location: k.location, WhRole: k.role, Volume: v})
	}
	slices.SortFunc(out, func(a, b LocationRoleTotal) int {
		return cmp.Or(
			cmp.Compare(b.Volume, a.Volume),
			strings.Compare(a.Location, b.Location),
			strings.Compare(string(a.WhRole), string(b.WhRole)),
		)
	})
	return out
}

// Markets returns the distinct countable markets in sorted order.
func Markets(rows []AggregatedRow) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		if !IsCountableMarket(r.Market) {
			continue
		}
		if _, ok := seen[r.Market]; ok {
			continue
		}
		seen[r.Market] = struct{}{}
		out = append(out, r.Market)
	}
	slices.Sort(out)
	return out
}
