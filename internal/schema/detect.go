package schema

import (
	"context"
	"log/slog"
	"math"

	"consignrecon/internal"
)

type Classification struct {
	Kind       internal.ReportKind `json:"kind"`
	LoadScore  float64             `json:"loadScore"`
	SalesScore float64             `json:"salesScore"`
	Reason     string              `json:"reason"`
}

// Classify decides whether a sheet is a load report, a sales report, or unknown.
// Header hits weigh most; value shapes add a capped amount per sampled row;
// the sheet or file name adds a small hint.
func (i *Inferencer) Classify(sheet internal.Sheet) Classification {
	if len(sheet.Rows) == 0 {
		return Classification{Kind: internal.ReportUnknown, Reason: "no_rows"}
	}

	sample := sampleRows(sheet.Rows, i.opts.SampleRows)
	w := i.rules.classify
	load := i.kindScore(i.rules.load, w, sheet, sample)
	sales := i.kindScore(i.rules.sales, w, sheet, sample)

	out := Classification{Kind: internal.ReportUnknown, LoadScore: load, SalesScore: sales, Reason: "below_floor"}
	switch {
	case load >= i.opts.ClassifyFloor && load > sales:
		out.Kind = internal.ReportLoad
		out.Reason = "load_dominant"
	case sales >= i.opts.ClassifyFloor && sales > load:
		out.Kind = internal.ReportSales
		out.Reason = "sales_dominant"
	case load >= i.opts.ClassifyFloor && load == sales:
		out.Reason = "tie"
	}

	if i.logger.Enabled(context.Background(), slog.LevelDebug) {
		i.logger.Debug("sheet classified", "sheet", sheet.Name, "source", sheet.Source, "kind", out.Kind, "load_score", load, "sales_score", sales)
	}
	return out
}

func (i *Inferencer) kindScore(k compiledKind, w ClassificationRules, sheet internal.Sheet, sample []internal.RawRow) float64 {
	score := 0.0
	for _, re := range k.headers {
		for _, h := range sheet.Headers {
			if re.MatchString(h) {
				score += w.HeaderWeight
				break
			}
		}
	}

	valueRows := 0
	for _, row := range sample {
		if rowHasShape(k, sheet.Headers, row) {
			valueRows++
		}
	}
	valueScore := float64(valueRows) * w.ValueWeight
	if w.ValueCap > 0 {
		valueScore = math.Min(valueScore, w.ValueCap)
	}
	score += valueScore

	for _, re := range k.names {
		if re.MatchString(sheet.Name) || re.MatchString(sheet.Source) {
			score += w.NameWeight
			break
		}
	}

	if i.logger.Enabled(context.Background(), slog.LevelDebug) {
		i.logger.Debug("kind score", "sheet", sheet.Name, "value_rows", valueRows, "score", score)
	}
	return score
}

func rowHasShape(k compiledKind, headers []string, row internal.RawRow) bool {
	for _, h := range headers {
		cell := row[h]
		switch cell.Kind {
		case internal.CellEmpty:
			continue
		case internal.CellNumber:
			if k.fractional && cell.Number != math.Trunc(cell.Number) {
				return true
			}
		}
		text := cell.String()
		for _, re := range k.values {
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}
