// Package csvout writes aggregated volumes and map points as CSV.
package csvout

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"

	"github.com/couchcryptid/fd2w-etl/internal/domain"
)

// WriteVolumes writes rows under the header Market,Wh_Role,Location,Volume.
func WriteVolumes(w io.Writer, rows []domain.AggregatedRow) error {
	return write(w, domain.AggregatedRow{}, rows)
}

// WritePoints writes points under the header
// Market,Wh_Role,Location,Volume,FullName,City,Country,lat,lon.
func WritePoints(w io.Writer, points []domain.MappablePoint) error {
	return write(w, domain.MappablePoint{}, points)
}

// write always emits the header, even for an empty slice.
func write[T any](w io.Writer, header T, records []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(header); err != nil {
		return fmt.Errorf("encode csv header: %w", err)
	}
	if len(records) > 0 {
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode csv rows: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
