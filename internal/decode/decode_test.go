package decode

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"consignrecon/internal"
)

func mkXLSX(sheets map[string][][]any, order ...string) []byte {
	f := excelize.NewFile()
	first := f.GetSheetName(0)
	for i, name := range order {
		if i == 0 {
			_ = f.SetSheetName(first, name)
		} else {
			_, _ = f.NewSheet(name)
		}
		for r, row := range sheets[name] {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				_ = f.SetCellValue(name, cell, v)
			}
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestDecodeXLSXSkipsTitleRows(t *testing.T) {
	blob := mkXLSX(map[string][][]any{
		"Report": {
			{"LOAD REPORT MARCH"},
			{},
			{"Consign Number", "Variety", "Carton Type", "# Ctns Sent"},
			{"Z1C0801483", "APPLE", "A15C", 80},
			{"0801483", "PEAR", "A12", 20},
		},
	}, "Report")

	sheet, err := NewDecoder(Options{}, nil).Decode("load.xlsx", blob)
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Name != "Report" {
		t.Fatalf("sheet=%q", sheet.Name)
	}
	if len(sheet.Headers) != 4 || sheet.Headers[3] != "# Ctns Sent" {
		t.Fatalf("headers=%v", sheet.Headers)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("rows=%d", len(sheet.Rows))
	}
	if c := sheet.Rows[0]["# Ctns Sent"]; c.Kind != internal.CellNumber || c.Number != 80 {
		t.Fatalf("cartons=%+v", c)
	}
	if c := sheet.Rows[1]["Consign Number"]; c.Kind != internal.CellText || c.Text != "0801483" {
		t.Fatalf("leading zero lost: %+v", c)
	}
}

func TestDecodeHeaderWithBlankLabels(t *testing.T) {
	blob := mkXLSX(map[string][][]any{
		"Load": {
			{"Consign No", nil, "Variety", "Ctns", nil},
			{"Z1C0801483", "A15C", "APPLE", 80, "Cape Town"},
			{"Z1C0801999", "A12", "PEAR", 20, "Durban"},
		},
	}, "Load")

	sheet, err := NewDecoder(Options{}, nil).Decode("load.xlsx", blob)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Consign No", "Column B", "Variety", "Ctns", "Column E"}
	if strings.Join(sheet.Headers, "|") != strings.Join(want, "|") {
		t.Fatalf("headers=%q", sheet.Headers)
	}
	if len(sheet.Rows) != 2 || sheet.Rows[0]["Consign No"].Text != "Z1C0801483" {
		t.Fatalf("rows=%+v", sheet.Rows)
	}
}

func TestDecodeNumericOnlyGrid(t *testing.T) {
	sheet, err := NewDecoder(Options{}, nil).Decode("sales.csv", []byte("1,2,3\n4,5,6\n7,8,9\n"))
	if err != nil {
		t.Fatalf("numeric grid should decode: %v", err)
	}
	if strings.Join(sheet.Headers, ",") != "1,2,3" || len(sheet.Rows) != 2 {
		t.Fatalf("headers=%q rows=%d", sheet.Headers, len(sheet.Rows))
	}
	if c := sheet.Rows[1]["3"]; c.Kind != internal.CellNumber || c.Number != 9 {
		t.Fatalf("cell=%+v", c)
	}
}

func TestFindHeaderRow(t *testing.T) {
	txt := internal.TextCell
	num := internal.NumberCell
	empty := internal.EmptyCell()
	tests := []struct {
		name string
		grid [][]internal.CellValue
		want int
	}{
		{"title above header", [][]internal.CellValue{{txt("REPORT")}, {txt("a"), txt("b"), txt("c")}, {txt("x"), num(1), num(2)}}, 1},
		{"short title stays out", [][]internal.CellValue{{txt("REPORT")}, {txt("a"), txt("b")}}, 1},
		{"blank label within one", [][]internal.CellValue{{txt("a"), empty, txt("c"), txt("d")}, {txt("w"), txt("x"), txt("y"), txt("z")}}, 0},
		{"numbers only", [][]internal.CellValue{{}, {empty}, {num(1), num(2)}, {num(3), num(4)}}, 2},
		{"empty grid", [][]internal.CellValue{{}, {empty}}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findHeaderRow(tt.grid, 10); got != tt.want {
				t.Fatalf("got %d want %d", got, tt.want)
			}
		})
	}
}

func TestDecodeFile(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte("Supplier Ref,Received\nAB1234,10\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(Options{}, logger)
	sheet, err := d.DecodeFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Source != "sales.csv" || len(sheet.Rows) != 1 {
		t.Fatalf("source=%q rows=%d", sheet.Source, len(sheet.Rows))
	}
	if !strings.Contains(buf.String(), "decoded file") {
		t.Fatalf("debug log missing:\n%s", buf.String())
	}

	quiet := NewDecoder(Options{}, slog.New(slog.NewTextHandler(&buf, nil)))
	buf.Reset()
	if _, err := quiet.DecodeFile(path); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("info logger wrote debug output:\n%s", buf.String())
	}

	if _, err := d.DecodeFile(filepath.Join(t.TempDir(), "missing.csv")); !errors.Is(err, ErrDecode) {
		t.Fatalf("want ErrDecode, got %v", err)
	}
}

func TestDecodeXLSXSheetSelection(t *testing.T) {
	blob := mkXLSX(map[string][][]any{
		"Cover":      {{"Notes"}, {"nothing here"}},
		"Sales Data": {{"Supplier Ref", "Received"}, {"AB1234", 10}},
	}, "Cover", "Sales Data")

	d := NewDecoder(Options{SheetPattern: regexp.MustCompile(`(?i)sales`)}, nil)
	sheet, err := d.Decode("sales.xlsx", blob)
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Name != "Sales Data" || len(sheet.Rows) != 1 {
		t.Fatalf("sheet=%q rows=%d", sheet.Name, len(sheet.Rows))
	}

	sheet, err = d.WithSheet("cover").Decode("sales.xlsx", blob)
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Name != "Cover" {
		t.Fatalf("forced sheet=%q", sheet.Name)
	}

	if _, err := d.WithSheet("Missing").Decode("sales.xlsx", blob); !errors.Is(err, ErrDecode) {
		t.Fatalf("want ErrDecode, got %v", err)
	}
}

func TestDecodeCSVDelimiterAndBOM(t *testing.T) {
	data := "\xEF\xBB\xBFSupplier Ref;Received;Sold\nAB1234;10;9\n;;\nCD5678;5;5\n"
	sheet, err := NewDecoder(Options{}, nil).Decode("sales.csv", []byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Headers[0] != "Supplier Ref" {
		t.Fatalf("headers=%q", sheet.Headers)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("empty row not dropped: %d", len(sheet.Rows))
	}
	if c := sheet.Rows[1]["Received"]; c.Number != 5 {
		t.Fatalf("received=%+v", c)
	}
}

func TestDecodeHTMLTable(t *testing.T) {
	html := `<html><body><table><tr><td>logo</td></tr></table>
<table><tr><th>Consign No</th><th>Ctns</th></tr><tr><td>Z1C0801483</td><td>80</td></tr></table></body></html>`
	sheet, err := NewDecoder(Options{}, nil).Decode("load.html", []byte(html))
	if err != nil {
		t.Fatal(err)
	}
	if len(sheet.Rows) != 1 || sheet.Rows[0]["Ctns"].Number != 80 {
		t.Fatalf("rows=%+v", sheet.Rows)
	}
}

func TestDecodeEMLAttachment(t *testing.T) {
	msg := strings.Join([]string{
		"From: agent@example.com",
		"To: grower@example.com",
		"Subject: Account sale",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="XX"`,
		"",
		"--XX",
		"Content-Type: text/plain",
		"",
		"See attached.",
		"--XX",
		`Content-Type: text/csv; name="sales.csv"`,
		`Content-Disposition: attachment; filename="sales.csv"`,
		"",
		"Supplier Ref,Received",
		"AB1234,10",
		"--XX--",
		"",
	}, "\r\n")

	sheet, err := NewDecoder(Options{}, nil).Decode("sale.eml", []byte(msg))
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Source != "sale.eml/sales.csv" {
		t.Fatalf("source=%q", sheet.Source)
	}
	if len(sheet.Rows) != 1 || sheet.Rows[0]["Supplier Ref"].Text != "AB1234" {
		t.Fatalf("rows=%+v", sheet.Rows)
	}
}

func TestDecodeErrors(t *testing.T) {
	d := NewDecoder(Options{}, nil)
	cases := map[string][]byte{
		"empty.csv":   []byte("  \n"),
		"broken.xlsx": []byte("PK\x03\x04 not a zip"),
		"plain.html":  []byte("<p>no table</p>"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode(name, data)
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("want ErrDecode, got %v", err)
			}
			var de *Error
			if !errors.As(err, &de) || de.File != name {
				t.Fatalf("want *Error for %s, got %v", name, err)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Format
	}{
		{"a.xlsx", "", FormatXLSX},
		{"a.CSV", "", FormatCSV},
		{"a.htm", "", FormatHTML},
		{"a.eml", "", FormatEML},
		{"a.pdf", "", FormatPDF},
		{"download", "PK\x03\x04...", FormatXLSX},
		{"download", "%PDF-1.4", FormatPDF},
		{"report.xls", "  <table>", FormatHTML},
		{"message", "From: a@b.c\nSubject: hi\n\nbody", FormatEML},
		{"export", "a,b\n1,2", FormatCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.name, []byte(tt.data)); got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestMakeHeadersFillsBlanksAndDuplicates(t *testing.T) {
	row := []internal.CellValue{internal.TextCell("Value"), internal.EmptyCell(), internal.TextCell("Value")}
	got := makeHeaders(row, 4)
	want := []string{"Value", "Column B", "Value (2)", "Column D"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("headers=%q", got)
		}
	}
}
