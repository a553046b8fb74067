package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Format identifies a supported workbook encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DetectFormat inspects only the file name extension (case-insensitive).
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", ErrInvalidFileType
	}
}

// grid is a decoded sheet in row-major order. Rows may be ragged.
type grid [][]Cell

// decodeFunc reads the first sheet of a workbook.
type decodeFunc func(data []byte) (sheetName string, rows grid, err error)

var decoders = map[Format]decodeFunc{
	FormatXLSX: decodeXLSX,
	FormatXLS:  decodeXLS,
}

func decode(format Format, data []byte) (string, grid, error) {
	fn, ok := decoders[format]
	if !ok {
		return "", nil, ErrInvalidFileType
	}
	name, rows, err := fn(data)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return name, trimTrailingBlankRows(rows), nil
}

func decodeXLSX(data []byte) (string, grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, nil
	}
	name := sheets[0]

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", nil, err
	}

	out := make(grid, len(rows))
	for r, row := range rows {
		cells := make([]Cell, len(row))
		for c, v := range row {
			if v == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return "", nil, err
			}
			typ, err := f.GetCellType(name, axis)
			if err != nil {
				return "", nil, err
			}
			cells[c] = xlsxCell(typ, v)
		}
		out[r] = cells
	}
	return name, out, nil
}

// xlsxCell keeps string-typed cells as text even when they look numeric,
// so "007" stays "007".
func xlsxCell(typ excelize.CellType, v string) Cell {
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return TextCell(v)
	case excelize.CellTypeBool:
		if v == "1" {
			return TextCell("TRUE")
		}
		return TextCell("FALSE")
	default:
		return ParseCell(v)
	}
}

func decodeXLS(data []byte) (name string, rows grid, err error) {
	// The legacy BIFF reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xls reader: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return "", nil, err
	}
	if wb == nil {
		return "", nil, errors.New("no workbook stream")
	}
	if wb.NumSheets() == 0 {
		return "", nil, nil
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return "", nil, nil
	}

	rows = make(grid, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := sheetRow(ws, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		last := row.LastCol()
		if last < 0 {
			last = 0
		}
		cells := make([]Cell, last)
		for c := row.FirstCol(); c < last; c++ {
			if c < 0 {
				continue
			}
			cells[c] = ParseCell(strings.TrimRight(row.Col(c), "\x00"))
		}
		rows = append(rows, cells)
	}
	return ws.Name, rows, nil
}

// sheetRow returns nil for rows the sheet never defined; the reader itself
// dereferences a missing row.
func sheetRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

func trimTrailingBlankRows(rows grid) grid {
	end := len(rows)
	for end > 0 && blankRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func blankRow(row []Cell) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
