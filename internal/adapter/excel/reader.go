// Package excel reads workbook sheets into header-less forecast grids.
package excel

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/fd2w-etl/internal/forecast"
)

// ErrNoSheets is returned for a workbook without any worksheet.
var ErrNoSheets = errors.New("workbook has no sheets")

// Sheet is a grid read from one worksheet, with the sheet it actually came from.
type Sheet struct {
	Name string
	Grid forecast.Grid
}

// ReadFile opens the workbook at path and reads one sheet. See Read.
func ReadFile(path, sheet string) (Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Sheet{}, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

// Read reads one sheet of the workbook in r. When sheet is empty or absent
// from the workbook the first sheet is used. Cells come back raw, without
// number formats applied; numeric text becomes float64 and blank cells nil.
func Read(r io.Reader, sheet string) (Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Sheet{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

// SheetNames lists the worksheets of the workbook at path.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func readSheet(f *excelize.File, sheet string) (Sheet, error) {
	name, err := pickSheet(f, sheet)
	if err != nil {
		return Sheet{}, err
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Sheet{}, fmt.Errorf("read sheet %s: %w", name, err)
	}

	g := make(forecast.Grid, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, raw := range row {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return Sheet{}, fmt.Errorf("read sheet %s: %w", name, err)
			}
			typ, err := f.GetCellType(name, axis)
			if err != nil {
				return Sheet{}, fmt.Errorf("read sheet %s cell %s: %w", name, axis, err)
			}
			cells[j] = cellValue(raw, typ)
		}
		g[i] = cells
	}
	return Sheet{Name: name, Grid: g}, nil
}

func pickSheet(f *excelize.File, sheet string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", ErrNoSheets
	}
	if sheet == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == sheet {
			return s, nil
		}
	}
	for _, s := range sheets {
		if strings.EqualFold(s, sheet) {
			return s, nil
		}
	}
	return sheets[0], nil
}

// cellValue types a raw cell. Cells stored as text stay text, so codes such
// as "0101" survive; numeric cells become float64 and booleans bool.
func cellValue(raw string, typ excelize.CellType) any {
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return raw
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return raw
	}
	return f
}
