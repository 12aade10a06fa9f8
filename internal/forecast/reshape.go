package forecast

import (
	"log/slog"

	"github.com/couchcryptid/fd2w-etl/internal/domain"
)

// ReshapeStats counts what Reshape saw in the data region.
type ReshapeStats struct {
	Rows       int // data rows with a market key
	SpacerRows int // data rows dropped for a blank key
	Records    int
	Coerced    int // non-blank cells that were not numeric and became 0
}

// Reshape melts the data region of g into one VolumeRecord per (row, data
// column). Rows with a blank key cell are spacers and are dropped. No record is
// dropped for its volume; filtering happens in aggregation.
func Reshape(g Grid, plan HeaderPlan, logger *slog.Logger) ([]domain.VolumeRecord, ReshapeStats) {
	var stats ReshapeStats
	var out []domain.VolumeRecord

	for r := plan.DataStartRow; r < len(g); r++ {
		market := CellText(g.Cell(r, 0))
		if market == "" {
			stats.SpacerRows++
			continue
		}
		stats.Rows++

		for _, col := range plan.Columns {
			cell := g.Cell(r, col.Index)
			volume, ok := ParseVolume(cell)
			if !ok {
				stats.Coerced++
				logger.Debug("non-numeric volume coerced to zero",
					"row", r,
					"column", col.Index,
					"market", market,
					"value", CellText(cell),
				)
			}
			out = append(out, domain.VolumeRecord{
				Market:        market,
				ForecastLabel: col.ForecastLabel,
				Location:      domain.NormalizeKey(col.LocationLabel),
				Volume:        volume,
			})
		}
	}

	stats.Records = len(out)
	if stats.Coerced > 0 {
		logger.Info("volume cells coerced to zero", "count", stats.Coerced)
	}
	return out, stats
}
