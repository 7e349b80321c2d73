package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"consignrecon/internal"
	"consignrecon/internal/decode"
	"consignrecon/internal/schema"
)

// FileInput is one uploaded report. Sheet optionally forces a workbook sheet.
type FileInput struct {
	Name  string
	Data  []byte
	Sheet string
}

// RunRecorder receives a summary of every successful run.
type RunRecorder interface {
	InsertRun(run internal.RunSummary) error
}

type Result struct {
	TraceID     string                   `json:"traceId"`
	LoadFile    string                   `json:"loadFile"`
	SalesFile   string                   `json:"salesFile"`
	Swapped     bool                     `json:"swapped"`
	LoadSchema  schema.Schema            `json:"loadSchema"`
	SalesSchema schema.Schema            `json:"salesSchema"`
	Records     []internal.MatchedRecord `json:"records"`
	Stats       internal.Statistics      `json:"stats"`
	Timings     map[string]float64       `json:"timings"`
}

type Analyzer struct {
	decoder    *decode.Decoder
	inferencer *schema.Inferencer
	matcher    *Matcher
	recorder   RunRecorder
	logger     *slog.Logger
}

func NewAnalyzer(decoder *decode.Decoder, inferencer *schema.Inferencer, matcher *Matcher, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{decoder: decoder, inferencer: inferencer, matcher: matcher, logger: logger}
}

func (a *Analyzer) WithRecorder(r RunRecorder) *Analyzer {
	a.recorder = r
	return a
}

// Analyze runs one reconciliation. Any error aborts the whole run and no
// partial result is returned.
func (a *Analyzer) Analyze(ctx context.Context, load, sales FileInput) (Result, error) {
	start := time.Now()
	res := Result{TraceID: uuid.New().String(), Timings: map[string]float64{}}
	logger := a.logger.With("trace_id", res.TraceID)
	lap := func(stage string, since time.Time) {
		res.Timings[stage+"Ms"] = float64(time.Since(since).Microseconds()) / 1000
	}

	t := time.Now()
	loadSheet, err := a.decode(load)
	if err != nil {
		return Result{}, err
	}
	salesSheet, err := a.decode(sales)
	if err != nil {
		return Result{}, err
	}
	lap("decode", t)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	t = time.Now()
	loadCls := a.inferencer.Classify(loadSheet)
	salesCls := a.inferencer.Classify(salesSheet)
	if loadCls.Kind == internal.ReportSales && salesCls.Kind == internal.ReportLoad {
		logger.Warn("files look swapped, reading them the other way round", "load_file", load.Name, "sales_file", sales.Name)
		load, sales = sales, load
		loadSheet, salesSheet = salesSheet, loadSheet
		loadCls, salesCls = salesCls, loadCls
		res.Swapped = true
	}
	res.LoadFile, res.SalesFile = load.Name, sales.Name

	res.LoadSchema, err = a.schemaFor(load.Name, loadSheet, internal.ReportLoad, loadCls)
	if err != nil {
		return Result{}, err
	}
	res.SalesSchema, err = a.schemaFor(sales.Name, salesSheet, internal.ReportSales, salesCls)
	if err != nil {
		return Result{}, err
	}
	lap("infer", t)
	logger.Info("schemas resolved",
		"load_mapping", res.LoadSchema.Mapping, "load_score", loadCls.LoadScore,
		"sales_mapping", res.SalesSchema.Mapping, "sales_score", salesCls.SalesScore)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	t = time.Now()
	loads := NormalizeLoad(loadSheet.Rows, res.LoadSchema.Mapping)
	salesRecs := NormalizeSales(salesSheet.Rows, res.SalesSchema.Mapping)
	lap("normalize", t)

	t = time.Now()
	records, err := a.matcher.Match(loads, salesRecs)
	if err != nil {
		return Result{}, err
	}
	lap("match", t)

	res.Records = records
	res.Stats = Aggregate(records)
	lap("total", start)

	logger.Info("run finished",
		"records", res.Stats.TotalRecords, "matched", res.Stats.MatchedCount,
		"split", res.Stats.SplitCount, "unmatched", res.Stats.UnmatchedCount,
		"match_rate", res.Stats.MatchRate, "total_ms", res.Timings["totalMs"])

	if a.recorder != nil {
		err := a.recorder.InsertRun(internal.RunSummary{
			TraceID:   res.TraceID,
			LoadFile:  res.LoadFile,
			SalesFile: res.SalesFile,
			Stats:     res.Stats,
			Timings:   res.Timings,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			logger.Warn("audit insert failed", "err", err)
		}
	}
	return res, nil
}

// InspectFile decodes and classifies a single file on disk without matching.
func (a *Analyzer) InspectFile(path, sheet string) (internal.Sheet, schema.Schema, error) {
	d := a.decoder
	if sheet != "" {
		d = d.WithSheet(sheet)
	}
	decoded, err := d.DecodeFile(path)
	if err != nil {
		return internal.Sheet{}, schema.Schema{}, err
	}
	return decoded, a.inferencer.Infer(decoded), nil
}

func (a *Analyzer) decode(in FileInput) (internal.Sheet, error) {
	d := a.decoder
	if in.Sheet != "" {
		d = d.WithSheet(in.Sheet)
	}
	return d.Decode(in.Name, in.Data)
}

func (a *Analyzer) schemaFor(name string, sheet internal.Sheet, want internal.ReportKind, cls schema.Classification) (schema.Schema, error) {
	if cls.Kind != want {
		return schema.Schema{}, &SchemaError{File: name, Kind: cls.Kind, Expected: want, Reason: cls.Reason}
	}
	s := a.inferencer.InferAs(sheet, want, cls)
	if len(s.Missing) > 0 {
		return schema.Schema{}, &SchemaError{File: name, Kind: cls.Kind, Expected: want, Missing: s.Missing, Reason: "missing critical fields"}
	}
	return s, nil
}
