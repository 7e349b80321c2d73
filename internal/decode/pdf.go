package decode

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

var pdfCellSplit = regexp.MustCompile(`\t+|\s{2,}`)

// readPDF turns text-layer PDF reports into rows. Cells are separated by
// tabs or runs of two or more spaces.
func readPDF(content []byte) ([][]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := [][]string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			out = append(out, pdfCellSplit.Split(line, -1))
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no text layer")
	}
	return out, nil
}
