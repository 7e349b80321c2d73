package pipeline

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"consignrecon/internal"
)

// ReadExport maps an exported workbook back to records. Deviation columns are
// checked against the quantities rather than read. Split rows come back with
// their proportional value as both TotalValue and ProportionalValue; the
// split group id is not exported.
func ReadExport(r io.Reader) ([]internal.MatchedRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("export has no header row")
	}
	for i, want := range ExportColumns {
		if i >= len(rows[0]) || strings.TrimSpace(rows[0][i]) != want {
			return nil, fmt.Errorf("column %d: expected %q", i+1, want)
		}
	}

	out := make([]internal.MatchedRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		get := func(col int) string {
			if col-1 < len(row) {
				return strings.TrimSpace(row[col-1])
			}
			return ""
		}
		ints := [5]int{}
		for i, col := range []int{6, 7, 8, 9, 10} {
			v, err := atoiCell(get(col))
			if err != nil {
				return nil, fmt.Errorf("row %d %s: %w", line, ExportColumns[col-1], err)
			}
			ints[i] = v
		}
		value, err := decimal.NewFromString(zeroIfEmpty(get(colTotalValue)))
		if err != nil {
			return nil, fmt.Errorf("row %d Total Value: %w", line, err)
		}

		rec := internal.MatchedRecord{
			ConsignNumber: get(1),
			SupplierRef:   get(2),
			Status:        internal.MatchStatus(get(3)),
			Variety:       get(4),
			CartonType:    get(5),
			CartonsSent:   ints[0],
			Received:      ints[1],
			SoldOnMarket:  ints[3],
			TotalValue:    value,
			Reconciled:    strings.EqualFold(get(12), "yes"),
		}
		switch rec.Status {
		case internal.StatusMatched, internal.StatusUnmatched:
		case internal.StatusSplit:
			rec.IsSplitTransaction = true
			rec.ProportionalValue = &value
		default:
			return nil, fmt.Errorf("row %d: unknown status %q", line, rec.Status)
		}
		if got := rec.DeviationSentReceived(); got != ints[2] {
			return nil, fmt.Errorf("row %d: deviation sent/received is %d, quantities give %d", line, ints[2], got)
		}
		if got := rec.DeviationReceivedSold(); got != ints[4] {
			return nil, fmt.Errorf("row %d: deviation received/sold is %d, quantities give %d", line, ints[4], got)
		}
		out = append(out, rec)
	}
	return out, nil
}

func atoiCell(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
