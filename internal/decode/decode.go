package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"consignrecon/internal"
)

var ErrDecode = errors.New("file unreadable")

// Error wraps any failure to turn file bytes into rows.
type Error struct {
	File string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDecode, e.File, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrDecode, e.Err} }

func decodeError(file string, err error) error {
	return &Error{File: file, Err: err}
}

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatEML  Format = "eml"
	FormatPDF  Format = "pdf"
)

type Options struct {
	// Sheet forces a workbook sheet by name.
	Sheet string
	// SheetPattern picks the first sheet whose name matches when Sheet is empty.
	SheetPattern   *regexp.Regexp
	HeaderScanRows int
}

type Decoder struct {
	opts   Options
	logger *slog.Logger
}

func NewDecoder(opts Options, logger *slog.Logger) *Decoder {
	if opts.HeaderScanRows <= 0 {
		opts.HeaderScanRows = 10
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Decoder{opts: opts, logger: logger}
}

// WithSheet returns a copy of the decoder that reads the named sheet.
func (d *Decoder) WithSheet(sheet string) *Decoder {
	cp := *d
	cp.opts.Sheet = sheet
	return &cp
}

func (d *Decoder) DecodeFile(path string) (internal.Sheet, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.Sheet{}, decodeError(path, err)
	}
	return d.Decode(filepath.Base(path), blob)
}

// Decode turns file bytes into a header-keyed sheet. The format comes from the
// file extension, falling back to the content.
func (d *Decoder) Decode(name string, data []byte) (internal.Sheet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return internal.Sheet{}, decodeError(name, errors.New("empty file"))
	}

	format := DetectFormat(name, data)
	var (
		sheetName string
		grid      [][]string
		err       error
		typed     [][]internal.CellValue
	)
	switch format {
	case FormatXLSX:
		sheetName, typed, err = d.readXLSX(data)
	case FormatHTML:
		grid, err = readHTMLTable(data)
	case FormatEML:
		return d.readEML(name, data)
	case FormatPDF:
		grid, err = readPDF(data)
	default:
		grid, err = readCSV(data)
	}
	if err != nil {
		return internal.Sheet{}, decodeError(name, err)
	}
	if typed == nil {
		typed = typeGrid(grid)
	}

	sheet, err := buildSheet(typed, d.opts.HeaderScanRows)
	if err != nil {
		return internal.Sheet{}, decodeError(name, err)
	}
	sheet.Source = name
	sheet.Name = sheetName
	if d.logger.Enabled(context.Background(), slog.LevelDebug) {
		d.logger.Debug("decoded file", "file", name, "format", format, "sheet", sheetName, "headers", len(sheet.Headers), "rows", len(sheet.Rows))
	}
	return sheet, nil
}

// DetectFormat picks a reader by extension, then by magic bytes.
func DetectFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv", ".txt", ".tsv":
		return FormatCSV
	case ".html", ".htm":
		return FormatHTML
	case ".eml":
		return FormatEML
	case ".pdf":
		return FormatPDF
	}
	return sniffFormat(data)
}

var rfc822Header = regexp.MustCompile(`(?m)^(From|To|Subject|MIME-Version|Content-Type):`)

func sniffFormat(data []byte) Format {
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}
	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return FormatXLSX
	case bytes.HasPrefix(data, []byte("%PDF")):
		return FormatPDF
	case bytes.HasPrefix(bytes.TrimSpace(head), []byte("<")):
		return FormatHTML
	case rfc822Header.Match(head):
		return FormatEML
	default:
		return FormatCSV
	}
}

func isSpreadsheetName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls", ".csv", ".html", ".htm", ".pdf":
		return true
	}
	return false
}

func typeGrid(grid [][]string) [][]internal.CellValue {
	out := make([][]internal.CellValue, 0, len(grid))
	for _, row := range grid {
		cells := make([]internal.CellValue, 0, len(row))
		for _, raw := range row {
			cells = append(cells, internal.ParseCell(raw))
		}
		out = append(out, cells)
	}
	return out
}
