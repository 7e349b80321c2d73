package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"consignrecon/internal"
)

// ExportColumns is the fixed output layout. Downstream sheets depend on this order.
var ExportColumns = []string{
	"Consign Number", "Supplier Ref", "Status", "Variety", "Carton Type",
	"# Ctns Sent", "Received", "Deviation Sent/Received", "Sold on market",
	"Deviation Received/Sold", "Total Value", "Reconciled",
}

const (
	colTotalValue = 11
	sheetName     = "Reconciliation"
)

type ExportOptions struct {
	CurrencySymbol string
}

func ExportRecordsToXLSX(records []internal.MatchedRecord, outputPath string, opts ExportOptions) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := ExportRecords(out, records, opts); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ExportRecords writes records as a single-sheet workbook. Split rows carry
// their proportional value in Total Value.
func ExportRecords(w io.Writer, records []internal.MatchedRecord, opts ExportOptions) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	numFmt := "#,##0.00"
	if opts.CurrencySymbol != "" {
		numFmt = fmt.Sprintf(`"%s" #,##0.00`, opts.CurrencySymbol)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return err
	}

	for i, h := range ExportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(ExportColumns), 1)
	_ = f.SetCellStyle(sheetName, "A1", last, headerStyle)

	for i, rec := range records {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheetName, cell, value)
		}

		set(1, rec.ConsignNumber)
		set(2, rec.SupplierRef)
		set(3, string(rec.Status))
		set(4, rec.Variety)
		set(5, rec.CartonType)
		set(6, rec.CartonsSent)
		set(7, rec.Received)
		set(8, rec.DeviationSentReceived())
		set(9, rec.SoldOnMarket)
		set(10, rec.DeviationReceivedSold())
		set(colTotalValue, rec.EffectiveValue().InexactFloat64())
		set(12, yesNo(rec.Reconciled))
	}

	if len(records) > 0 {
		top, _ := excelize.CoordinatesToCellName(colTotalValue, 2)
		bottom, _ := excelize.CoordinatesToCellName(colTotalValue, len(records)+1)
		if err := f.SetCellStyle(sheetName, top, bottom, moneyStyle); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(ExportColumns))
	_ = f.SetColWidth(sheetName, "A", lastCol, 16)

	return f.Write(w)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
