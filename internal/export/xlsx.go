// Package export writes recovered records as an xlsx workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"gemini-extract/internal/apperr"
	"gemini-extract/internal/model"
)

const (
	SheetName   = "Sheet1"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	FileName    = "extracted_data.xlsx"
)

// Columns returns the union of field names in first-seen order.
func Columns(records []model.Record) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range records {
		for _, name := range r.Names() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			cols = append(cols, name)
		}
	}
	return cols
}

// EncodeXLSX writes one header row followed by one row per record. Cells for
// fields a record does not have are left empty.
func EncodeXLSX(records []model.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	cols := Columns(records)
	for i, name := range cols {
		if err := setCell(f, i+1, 1, name); err != nil {
			return nil, err
		}
	}

	for r, rec := range records {
		for c, name := range cols {
			v, ok := rec.Get(name)
			if !ok {
				continue
			}
			if err := setCell(f, c+1, r+2, cellValue(v)); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTabularEncode, "failed to write workbook", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return apperr.Wrap(apperr.KindTabularEncode, fmt.Sprintf("invalid cell %d:%d", col, row), err)
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return apperr.Wrap(apperr.KindTabularEncode, "failed to set cell "+cell, err)
	}
	return nil
}

func cellValue(v model.Value) interface{} {
	switch v.Kind {
	case model.KindNumber:
		if f, ok := v.Float(); ok {
			return f
		}
		return v.Num
	case model.KindBool:
		return v.Bool
	default:
		return v.Str
	}
}
