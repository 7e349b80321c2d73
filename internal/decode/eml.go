package decode

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jhillyerd/enmime"

	"consignrecon/internal"
)

// readEML decodes the first spreadsheet-like attachment of a message. A
// message without one falls back to the first table in its HTML body.
func (d *Decoder) readEML(name string, data []byte) (internal.Sheet, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return internal.Sheet{}, decodeError(name, err)
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	for _, part := range parts {
		filename := strings.TrimSpace(part.FileName)
		if !isSpreadsheetName(filename) || len(part.Content) == 0 {
			continue
		}
		if d.logger.Enabled(context.Background(), slog.LevelDebug) {
			d.logger.Debug("decoding email attachment", "file", name, "attachment", filename)
		}
		sheet, err := d.Decode(filename, part.Content)
		if err != nil {
			return internal.Sheet{}, decodeError(name, err)
		}
		sheet.Source = name + "/" + filename
		return sheet, nil
	}

	if strings.TrimSpace(env.HTML) != "" {
		sheet, err := d.Decode(name+".html", []byte(env.HTML))
		if err == nil {
			sheet.Source = name
			return sheet, nil
		}
	}
	return internal.Sheet{}, decodeError(name, errors.New("message has no spreadsheet attachment or table"))
}
