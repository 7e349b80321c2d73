package decode

import (
	"bytes"
	"errors"

	"github.com/PuerkitoBio/goquery"

	"consignrecon/internal/util"
)

// readHTMLTable reads the first table with at least two rows. Many "xls"
// downloads from grower portals are really HTML tables.
func readHTMLTable(content []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var out [][]string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return true
		}
		grid := make([][]string, 0, rows.Length())
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if len(cells) > 0 {
				grid = append(grid, cells)
			}
		})
		out = grid
		return false
	})

	if len(out) == 0 {
		return nil, errors.New("no table with data rows")
	}
	return out, nil
}
