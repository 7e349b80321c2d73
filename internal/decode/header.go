package decode

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"consignrecon/internal"
	"consignrecon/internal/util"
)

var errNoHeader = errors.New("no header row found")

// buildSheet finds the header row and keys every later row by header text.
// Title rows above the header ("SALES REPORT MARCH") are skipped.
func buildSheet(grid [][]internal.CellValue, scanRows int) (internal.Sheet, error) {
	headerIdx := findHeaderRow(grid, scanRows)
	if headerIdx < 0 {
		return internal.Sheet{}, errNoHeader
	}

	width := 0
	for _, row := range grid[headerIdx:] {
		if len(row) > width {
			width = len(row)
		}
	}
	headers := makeHeaders(grid[headerIdx], width)

	rows := make([]internal.RawRow, 0, len(grid)-headerIdx-1)
	for _, cells := range grid[headerIdx+1:] {
		row := internal.RawRow{}
		empty := true
		for i, h := range headers {
			if i >= len(cells) || cells[i].IsEmpty() {
				row[h] = internal.EmptyCell()
				continue
			}
			row[h] = cells[i]
			empty = false
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}

	return internal.Sheet{Headers: headers, Rows: rows}, nil
}

// findHeaderRow picks the header among the first scanRows rows by counting
// text cells: the earliest row within one of the best count wins (exactly the
// best below 3). A grid with no text falls back to its first non-empty row;
// only an empty grid has no header.
func findHeaderRow(grid [][]internal.CellValue, scanRows int) int {
	var counts []int
	bestCount := 0
	for i, row := range grid {
		if i >= scanRows {
			break
		}
		count := 0
		for _, c := range row {
			if c.Kind == internal.CellText {
				count++
			}
		}
		counts = append(counts, count)
		bestCount = max(bestCount, count)
	}

	if bestCount == 0 {
		for i, row := range grid {
			for _, c := range row {
				if !c.IsEmpty() {
					return i
				}
			}
		}
		return -1
	}

	threshold := bestCount
	if bestCount >= 3 {
		threshold = bestCount - 1
	}
	for i, count := range counts {
		if count >= threshold {
			return i
		}
	}
	return -1
}

func makeHeaders(row []internal.CellValue, width int) []string {
	headers := make([]string, 0, width)
	seen := map[string]int{}
	for i := 0; i < width; i++ {
		name := ""
		if i < len(row) {
			name = util.NormalizeSpaces(row[i].String())
		}
		if name == "" {
			col, _ := excelize.ColumnNumberToName(i + 1)
			name = "Column " + col
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		headers = append(headers, name)
	}
	return headers
}
