package domain

import "strings"

// ClassifyRole maps a forecast column label to a warehouse role.
// Rules are checked in order and the first substring hit wins, so a label
// mentioning both "LDC" and "RDC" is an LDC column.
func ClassifyRole(label string) Role {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "ldc"):
		return RoleLDC
	case strings.Contains(l, "rdc"):
		return RoleRDC
	case strings.Contains(l, "factory"), strings.Contains(l, "fw"):
		return RoleFW
	default:
		return RoleUnknown
	}
}

// Classify attaches a role to every record. Unknown records are kept here and
// dropped by Aggregate.
func Classify(records []VolumeRecord) []ClassifiedRecord {
	out := make([]ClassifiedRecord, len(records))
	for i, r := range records {
		out[i] = ClassifiedRecord{VolumeRecord: r, WhRole: ClassifyRole(r.ForecastLabel)}
	}
	return out
}
