// Package domain models the FD2W distribution-network data after it has been
// lifted out of the source spreadsheets.
//
// # Data Source
//
// Two sheets feed the pipeline. The forecast export (sheet "full") is a pivot
// of markets by forecast type by warehouse location:
//
//	              | Forecast at LDC | (merged) | Forecast at RDC
//	Market        | AE01            | AE02     | DE10
//	FR            | 100             | 0        | 35
//	EMEA Total    | 100             | 0        | 35
//
// The location registry (sheet "Sheet1") lists one warehouse per row with an
// identifier column and optional address, city, country and coordinate columns.
//
// # Warehouse Roles
//
// Forecast column labels are free text. They collapse into three roles by
// case-insensitive substring, first match wins:
//
//	"ldc"             -> LDCs (local distribution center)
//	"rdc"             -> RDCs (regional distribution center)
//	"factory" / "fw"  -> FWs  (factory warehouse)
//	anything else     -> Unknown, dropped before aggregation
//
// Several label variants ("Forecast at LDC", "Forecast at LDC (area split)")
// therefore sum into the same role.
//
// # Aggregation Rules
//
// Grand-total rows are an artifact of the export. Any market whose trimmed
// name contains "total", is blank, or reads "nan" is never counted. Volumes at
// or below zero are dropped. The remaining records are summed per
// (Market, Wh_Role, Location).
//
// # Geocoding
//
// Registry entries without coordinates are resolved through a [Geocoder]:
// first with "street, city, country", then with "city, country" when the full
// address finds nothing. Failures leave the coordinates nil. Nil coordinates
// are a valid final state and only remove the location from the map join.
package domain
