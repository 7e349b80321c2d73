package schema

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"consignrecon/internal"
	"consignrecon/internal/util"
)

// Header match tiers, strongest first.
const (
	tierNone = iota
	tierWordOverlap
	tierContains
	tierEqual
)

const (
	MethodHeader = "header"
	MethodSniff  = "sniff"
)

var criticalFields = map[internal.ReportKind][]internal.Field{
	internal.ReportLoad:  {internal.FieldConsign, internal.FieldCartonsSent},
	internal.ReportSales: {internal.FieldSupplierRef, internal.FieldReceived},
}

type Options struct {
	SampleRows     int
	SniffThreshold float64
	ClassifyFloor  float64
}

type Inferencer struct {
	rules  *compiled
	opts   Options
	logger *slog.Logger
}

// ColumnScore records why a field was resolved to a column.
type ColumnScore struct {
	Field  internal.Field `json:"field"`
	Column string         `json:"column"`
	Method string         `json:"method"`
	Score  float64        `json:"score"`
}

type Schema struct {
	Kind           internal.ReportKind    `json:"kind"`
	Mapping        internal.ColumnMapping `json:"mapping"`
	Scores         []ColumnScore          `json:"scores"`
	Classification Classification         `json:"classification"`
	Missing        []internal.Field       `json:"missing,omitempty"`
}

func NewInferencer(patterns Patterns, opts Options, logger *slog.Logger) (*Inferencer, error) {
	rules, err := patterns.compile()
	if err != nil {
		return nil, err
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = 10
	}
	if opts.SniffThreshold <= 0 {
		opts.SniffThreshold = 0.6
	}
	if opts.ClassifyFloor <= 0 {
		opts.ClassifyFloor = 2.0
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Inferencer{rules: rules, opts: opts, logger: logger}, nil
}

// Infer classifies the sheet and resolves the fields its kind needs.
func (i *Inferencer) Infer(sheet internal.Sheet) Schema {
	cls := i.Classify(sheet)
	out := Schema{Kind: cls.Kind, Classification: cls, Mapping: internal.ColumnMapping{}}
	if cls.Kind == internal.ReportUnknown {
		return out
	}
	return i.InferAs(sheet, cls.Kind, cls)
}

// InferAs resolves the mapping for an explicitly chosen kind.
func (i *Inferencer) InferAs(sheet internal.Sheet, kind internal.ReportKind, cls Classification) Schema {
	fields := internal.LoadFields
	if kind == internal.ReportSales {
		fields = internal.SalesFields
	}
	mapping, scores := i.InferMapping(sheet, fields)
	out := Schema{Kind: kind, Classification: cls, Mapping: mapping, Scores: scores}
	for _, f := range criticalFields[kind] {
		if _, ok := mapping.Column(f); !ok {
			out.Missing = append(out.Missing, f)
		}
	}
	return out
}

// InferMapping resolves each field independently against the headers, then
// falls back to content sniffing for fields no header matched.
func (i *Inferencer) InferMapping(sheet internal.Sheet, fields []internal.Field) (internal.ColumnMapping, []ColumnScore) {
	ctx := context.Background()
	mapping := internal.ColumnMapping{}
	scores := []ColumnScore{}

	headerKeys := make([]string, len(sheet.Headers))
	headerTokens := make([][]string, len(sheet.Headers))
	for idx, h := range sheet.Headers {
		headerKeys[idx] = util.NormalizeKey(h)
		headerTokens[idx] = i.rules.significantTokens(h)
	}

	claimed := map[string]struct{}{}
	unresolved := []internal.Field{}
	for _, field := range fields {
		col, tier := i.bestHeader(field, sheet.Headers, headerKeys, headerTokens)
		if tier == tierNone {
			unresolved = append(unresolved, field)
			continue
		}
		mapping[field] = col
		claimed[col] = struct{}{}
		scores = append(scores, ColumnScore{Field: field, Column: col, Method: MethodHeader, Score: float64(tier)})
		if i.logger.Enabled(ctx, slog.LevelDebug) {
			i.logger.DebugContext(ctx, "field resolved by header", "field", field, "column", col, "tier", tier)
		}
	}

	if len(unresolved) == 0 {
		return mapping, scores
	}

	sample := sampleRows(sheet.Rows, i.opts.SampleRows)
	for _, field := range unresolved {
		rule, ok := i.rules.sniff[field]
		if !ok {
			continue
		}
		bestCol, bestScore := "", 0.0
		for _, h := range sheet.Headers {
			if _, taken := claimed[h]; taken {
				continue
			}
			score := sniffColumn(rule, h, sample)
			if i.logger.Enabled(ctx, slog.LevelDebug) {
				i.logger.DebugContext(ctx, "sniff score", "field", field, "column", h, "score", score)
			}
			if score > bestScore {
				bestCol, bestScore = h, score
			}
		}
		if bestCol == "" || bestScore < i.opts.SniffThreshold {
			continue
		}
		mapping[field] = bestCol
		claimed[bestCol] = struct{}{}
		scores = append(scores, ColumnScore{Field: field, Column: bestCol, Method: MethodSniff, Score: bestScore})
	}

	return mapping, scores
}

// bestHeader ranks by tier, then pattern order, then header order.
func (i *Inferencer) bestHeader(field internal.Field, headers, keys []string, tokens [][]string) (string, int) {
	bestTier, bestPattern, bestCol := tierNone, math.MaxInt, -1
	for p, pat := range i.rules.fields[field] {
		for idx := range headers {
			tier := headerTier(keys[idx], tokens[idx], pat)
			if tier == tierNone {
				continue
			}
			if tier > bestTier || (tier == bestTier && p < bestPattern) {
				bestTier, bestPattern, bestCol = tier, p, idx
			}
		}
	}
	if bestCol < 0 {
		return "", tierNone
	}
	return headers[bestCol], bestTier
}

func headerTier(colKey string, colTokens []string, pat patternKey) int {
	if colKey == "" {
		return tierNone
	}
	if colKey == pat.key {
		return tierEqual
	}
	if len(pat.key) >= 3 && strings.Contains(colKey, pat.key) {
		return tierContains
	}
	if len(colKey) >= 3 && strings.Contains(pat.key, colKey) {
		return tierContains
	}
	for _, ct := range colTokens {
		for _, pt := range pat.tokens {
			if ct == pt {
				return tierWordOverlap
			}
		}
	}
	return tierNone
}

// sniffColumn is the fraction of non-empty sampled cells that have the field's shape.
func sniffColumn(rule compiledSniff, column string, rows []internal.RawRow) float64 {
	nonEmpty, hits := 0, 0
	for _, row := range rows {
		cell := row[column]
		if cell.IsEmpty() {
			continue
		}
		nonEmpty++
		if cellHasShape(rule, cell) {
			hits++
		}
	}
	if nonEmpty == 0 {
		return 0
	}
	return float64(hits) / float64(nonEmpty)
}

func cellHasShape(rule compiledSniff, cell internal.CellValue) bool {
	if cell.Kind == internal.CellNumber {
		if rule.integerBelow > 0 && cell.Number >= 0 && cell.Number < rule.integerBelow && cell.Number == math.Trunc(cell.Number) {
			return true
		}
		if rule.fractional && cell.Number != math.Trunc(cell.Number) {
			return true
		}
	}
	if cell.Kind == internal.CellText && rule.integerBelow > 0 {
		// "100" typed as text by some exporters.
		if f, ok := util.ParseNumber(cell); ok && f >= 0 && f < rule.integerBelow && f == math.Trunc(f) && util.StripNumeric(cell.Text) == strings.TrimSpace(cell.Text) {
			return true
		}
	}
	text := cell.String()
	for _, re := range rule.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func sampleRows(rows []internal.RawRow, n int) []internal.RawRow {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}
