package excel

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteFile saves sheets as a new workbook at path. See Write.
func WriteFile(path string, sheets ...Sheet) error {
	f, err := build(sheets)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// Write encodes sheets as a workbook in sheet order. Nil cells stay blank.
func Write(w io.Writer, sheets ...Sheet) error {
	f, err := build(sheets)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func build(sheets []Sheet) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)
	for i, sh := range sheets {
		if sh.Name == "" {
			_ = f.Close()
			return nil, errors.New("sheet name is required")
		}
		var err error
		if i == 0 {
			err = f.SetSheetName(defaultSheet, sh.Name)
		} else {
			_, err = f.NewSheet(sh.Name)
		}
		if err == nil {
			err = fill(f, sh)
		}
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sheet %s: %w", sh.Name, err)
		}
	}
	return f, nil
}

func fill(f *excelize.File, sh Sheet) error {
	for r, row := range sh.Grid {
		for c, v := range row {
			if v == nil {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sh.Name, axis, v); err != nil {
				return err
			}
		}
	}
	return nil
}
