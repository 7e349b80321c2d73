package decode

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"consignrecon/internal"
)

var dateLike = regexp.MustCompile(`(?i)^\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}|\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)

func (d *Decoder) readXLSX(content []byte) (string, [][]internal.CellValue, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sheet, err := d.pickSheet(f)
	if err != nil {
		return "", nil, err
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", nil, err
	}
	formatted, err := f.GetRows(sheet)
	if err != nil {
		return "", nil, err
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	out := make([][]internal.CellValue, 0, len(raw))
	for r, row := range raw {
		cells := make([]internal.CellValue, 0, len(row))
		for c, rawValue := range row {
			shown := rawValue
			if r < len(formatted) && c < len(formatted[r]) {
				shown = formatted[r][c]
			}
			cells = append(cells, typeXLSXCell(f, sheet, r, c, rawValue, shown, date1904))
		}
		out = append(out, cells)
	}
	return sheet, out, nil
}

func (d *Decoder) pickSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if d.opts.Sheet != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, d.opts.Sheet) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found (have %s)", d.opts.Sheet, strings.Join(sheets, ", "))
	}
	if d.opts.SheetPattern != nil {
		for _, s := range sheets {
			if d.opts.SheetPattern.MatchString(s) {
				return s, nil
			}
		}
	}
	return sheets[0], nil
}

func typeXLSXCell(f *excelize.File, sheet string, r, c int, raw, shown string, date1904 bool) internal.CellValue {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return internal.EmptyCell()
	}
	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return internal.TextCell(strings.TrimSpace(shown))
	}

	// Numeric-looking text such as "0801483" must keep its leading zero.
	axis, _ := excelize.CoordinatesToCellName(c+1, r+1)
	cellType, _ := f.GetCellType(sheet, axis)
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return internal.TextCell(strings.TrimSpace(shown))
	case excelize.CellTypeDate:
		if t, err := excelize.ExcelDateToTime(num, date1904); err == nil {
			return internal.DateCell(t)
		}
	}
	if shown != raw && dateLike.MatchString(shown) {
		if t, err := excelize.ExcelDateToTime(num, date1904); err == nil {
			return internal.DateCell(t)
		}
	}
	return internal.NumberCell(num)
}
