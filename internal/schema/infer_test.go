package schema

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"consignrecon/internal"
)

func newTestInferencer(t *testing.T) *Inferencer {
	t.Helper()
	p, err := DefaultPatterns()
	if err != nil {
		t.Fatal(err)
	}
	inf, err := NewInferencer(p, Options{SampleRows: 10, SniffThreshold: 0.6, ClassifyFloor: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return inf
}

func sheetOf(name string, headers []string, rows ...[]internal.CellValue) internal.Sheet {
	s := internal.Sheet{Name: name, Headers: headers}
	for _, cells := range rows {
		row := internal.RawRow{}
		for i, c := range cells {
			row[headers[i]] = c
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func txt(s string) internal.CellValue  { return internal.TextCell(s) }
func num(f float64) internal.CellValue { return internal.NumberCell(f) }

func TestInferLoadByHeaders(t *testing.T) {
	t.Parallel()
	inf := newTestInferencer(t)
	sheet := sheetOf("Sheet1",
		[]string{"Consign Number", "Variety", "Carton Type", "# Ctns Sent"},
		[]internal.CellValue{txt("Z1C0801483"), txt("APPLE"), txt("A15C"), num(100)},
		[]internal.CellValue{txt("Z1C0801999"), txt("PEAR"), txt("A15C"), num(60)},
	)

	got := inf.Infer(sheet)
	if got.Kind != internal.ReportLoad {
		t.Fatalf("kind=%s load=%.1f sales=%.1f", got.Kind, got.Classification.LoadScore, got.Classification.SalesScore)
	}
	want := internal.ColumnMapping{
		internal.FieldConsign:     "Consign Number",
		internal.FieldVariety:     "Variety",
		internal.FieldCartonType:  "Carton Type",
		internal.FieldCartonsSent: "# Ctns Sent",
	}
	for f, col := range want {
		if got.Mapping[f] != col {
			t.Fatalf("field %s: got %q want %q", f, got.Mapping[f], col)
		}
	}
	if len(got.Missing) != 0 {
		t.Fatalf("unexpected missing: %v", got.Missing)
	}
}

func TestInferSalesByHeaders(t *testing.T) {
	t.Parallel()
	inf := newTestInferencer(t)
	sheet := sheetOf("Account Sale",
		[]string{"Supplier Ref", "Received", "Sold", "Total Value"},
		[]internal.CellValue{txt("REF1483"), num(100), num(95), txt("R 500.00")},
	)

	got := inf.Infer(sheet)
	if got.Kind != internal.ReportSales {
		t.Fatalf("kind=%s", got.Kind)
	}
	if got.Mapping[internal.FieldTotalValue] != "Total Value" || got.Mapping[internal.FieldSupplierRef] != "Supplier Ref" {
		t.Fatalf("mapping=%v", got.Mapping)
	}
}

func TestHeaderTierPriority(t *testing.T) {
	t.Parallel()
	inf := newTestInferencer(t)
	// "Value" equals a variant; "Total Value Incl" only contains one. Equality wins despite header order.
	sheet := sheetOf("s", []string{"Total Value Incl", "Value"})
	mapping, _ := inf.InferMapping(sheet, []internal.Field{internal.FieldTotalValue})
	if mapping[internal.FieldTotalValue] != "Value" {
		t.Fatalf("got %q", mapping[internal.FieldTotalValue])
	}
}

func TestHeaderTieFavoursFirstColumn(t *testing.T) {
	t.Parallel()
	inf := newTestInferencer(t)
	sheet := sheetOf("s", []string{"Sold", "sold"})
	mapping, _ := inf.InferMapping(sheet, []internal.Field{internal.FieldSold})
	if mapping[internal.FieldSold] != "Sold" {
		t.Fatalf("got %q", mapping[internal.FieldSold])
	}
}

func TestSniffFallback(t *testing.T) {
	t.Parallel()
	inf := newTestInferencer(t)
	sheet := sheetOf("s",
		[]string{"A", "B", "C"},
		[]internal.CellValue{txt("Z1C0801483"), txt("APPLE"), num(100)},
		[]internal.CellValue{txt("Z1C0801484"), txt("PEAR"), num(40)},
		[]internal.CellValue{txt("Z1C0801485"), txt("PEAR"), num(12)},
	)
	mapping, scores := inf.InferMapping(sheet, internal.LoadFields)
	if mapping[internal.FieldConsign] != "A" {
		t.Fatalf("consign=%q scores=%+v", mapping[internal.FieldConsign], scores)
	}
	if mapping[internal.FieldCartonsSent] != "C" {
		t.Fatalf("cartons=%q", mapping[internal.FieldCartonsSent])
	}
	for _, s := range scores {
		if s.Method != MethodSniff {
			t.Fatalf("expected sniffed scores only, got %+v", s)
		}
	}
}

func TestSniffBelowThresholdStaysUnresolved(t *testing.T) {
	t.Parallel()
	inf := newTestInferencer(t)
	sheet := sheetOf("s",
		[]string{"A"},
		[]internal.CellValue{txt("Z1C0801483")},
		[]internal.CellValue{txt("hello")},
		[]internal.CellValue{txt("world")},
	)
	mapping, _ := inf.InferMapping(sheet, []internal.Field{internal.FieldConsign})
	if _, ok := mapping.Column(internal.FieldConsign); ok {
		t.Fatalf("expected unresolved, got %v", mapping)
	}
}

func TestClassifyUnknown(t *testing.T) {
	t.Parallel()
	inf := newTestInferencer(t)
	sheet := sheetOf("Sheet1",
		[]string{"Name", "Colour"},
		[]internal.CellValue{txt("alpha"), txt("red")},
		[]internal.CellValue{txt("beta"), txt("blue")},
	)
	if got := inf.Classify(sheet); got.Kind != internal.ReportUnknown {
		t.Fatalf("kind=%s load=%.1f sales=%.1f", got.Kind, got.LoadScore, got.SalesScore)
	}
}

func TestClassifyLogsOnlyAtDebug(t *testing.T) {
	t.Parallel()
	p, err := DefaultPatterns()
	if err != nil {
		t.Fatal(err)
	}
	sheet := sheetOf("Sheet1",
		[]string{"Consign Number", "# Ctns Sent"},
		[]internal.CellValue{txt("Z1C0801483"), num(100)},
	)
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo} {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level}))
		inf, err := NewInferencer(p, Options{}, logger)
		if err != nil {
			t.Fatal(err)
		}
		inf.Classify(sheet)
		if got, want := strings.Contains(buf.String(), "sheet classified"), level == slog.LevelDebug; got != want {
			t.Fatalf("level %s: logged=%v\n%s", level, got, buf.String())
		}
	}
}

func TestClassifyNoRows(t *testing.T) {
	t.Parallel()
	inf := newTestInferencer(t)
	sheet := internal.Sheet{Headers: []string{"Consign Number", "# Ctns Sent"}}
	if got := inf.Classify(sheet); got.Kind != internal.ReportUnknown || got.Reason != "no_rows" {
		t.Fatalf("got %+v", got)
	}
}

func TestMissingCriticalFields(t *testing.T) {
	t.Parallel()
	inf := newTestInferencer(t)
	sheet := sheetOf("Sales",
		[]string{"Supplier Ref", "Total Value"},
		[]internal.CellValue{txt("hello"), txt("R 12.50")},
	)
	got := inf.InferAs(sheet, internal.ReportSales, Classification{Kind: internal.ReportSales})
	if len(got.Missing) != 1 || got.Missing[0] != internal.FieldReceived {
		t.Fatalf("missing=%v", got.Missing)
	}
}

func TestLoadPatternsOverride(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	blob := []byte("fields:\n  consign:\n    - manifest id\n")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPatterns(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Fields[internal.FieldConsign]) != 1 || p.Fields[internal.FieldConsign][0] != "manifest id" {
		t.Fatalf("consign variants=%v", p.Fields[internal.FieldConsign])
	}
	if len(p.Fields[internal.FieldSold]) == 0 {
		t.Fatal("default variants for other fields should survive an override")
	}
	if _, err := NewInferencer(p, Options{}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownFieldInPatterns(t *testing.T) {
	t.Parallel()
	p, err := DefaultPatterns()
	if err != nil {
		t.Fatal(err)
	}
	p.Fields["bogus"] = []string{"x"}
	if _, err := NewInferencer(p, Options{}, nil); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
