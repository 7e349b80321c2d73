package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"consignrecon/internal"
	"consignrecon/internal/config"
	"consignrecon/internal/decode"
	"consignrecon/internal/pipeline"
	"consignrecon/internal/schema"
	"consignrecon/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	logger := cfg.Logger()

	cmd := os.Args[1]
	switch cmd {
	case "analyze":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		loadPath := fs.String("load", "", "load report file")
		salesPath := fs.String("sales", "", "sales report file")
		loadSheet := fs.String("load-sheet", "", "sheet name in the load workbook")
		salesSheet := fs.String("sales-sheet", "", "sheet name in the sales workbook")
		out := fs.String("out", "", "output xlsx path (default OUTPUT_DIR/reconciliation-<trace>.xlsx)")
		asJSON := fs.Bool("json", false, "print result as JSON")
		status := fs.String("status", "", "matched|unmatched|split")
		reconciled := fs.String("reconciled", "", "yes|no")
		search := fs.String("search", "", "substring over consign, reference, variety, carton type")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*loadPath) == "" || strings.TrimSpace(*salesPath) == "" {
			must(fmt.Errorf("--load and --sales are required"))
		}
		filter, err := buildFilter(*status, *reconciled, *search)
		must(err)

		analyzer, closeAudit := newAnalyzer(cfg, logger)
		defer closeAudit()

		load, err := readInput(*loadPath, *loadSheet)
		must(err)
		sales, err := readInput(*salesPath, *salesSheet)
		must(err)

		res, err := analyzer.Analyze(context.Background(), load, sales)
		must(err)

		shown := filter.Apply(res.Records)
		outPath := *out
		if outPath == "" {
			outPath = filepath.Join(cfg.OutputDir, "reconciliation-"+res.TraceID[:8]+".xlsx")
		}
		must(pipeline.ExportRecordsToXLSX(shown, outPath, pipeline.ExportOptions{CurrencySymbol: cfg.CurrencySymbol}))

		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			must(enc.Encode(map[string]any{
				"traceId":     res.TraceID,
				"loadFile":    res.LoadFile,
				"salesFile":   res.SalesFile,
				"swapped":     res.Swapped,
				"loadSchema":  res.LoadSchema,
				"salesSchema": res.SalesSchema,
				"stats":       res.Stats,
				"timings":     res.Timings,
				"records":     pipeline.Views(shown),
				"output":      outPath,
			}))
			return
		}
		printer := pipeline.NewPrinter(cfg.DisplayLocale, cfg.CurrencySymbol)
		if res.Swapped {
			fmt.Printf("note: %s looks like the load report, files were swapped\n", res.LoadFile)
		}
		printer.WriteSummary(os.Stdout, res.Stats)
		fmt.Println()
		must(printer.WriteTable(os.Stdout, shown))
		fmt.Printf("\nexported %d of %d rows to %s\n", len(shown), len(res.Records), outPath)
	case "inspect":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		path := fs.String("file", "", "report file")
		sheet := fs.String("sheet", "", "sheet name")
		asJSON := fs.Bool("json", false, "print as JSON")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*path) == "" {
			must(fmt.Errorf("--file is required"))
		}
		analyzer, closeAudit := newAnalyzer(cfg, logger)
		defer closeAudit()
		decoded, inferred, err := analyzer.InspectFile(*path, *sheet)
		must(err)
		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			must(enc.Encode(map[string]any{"sheet": decoded.Name, "headers": decoded.Headers, "rows": len(decoded.Rows), "schema": inferred}))
			return
		}
		printInspect(decoded, inferred)
	case "verify":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		path := fs.String("file", "", "exported xlsx")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*path) == "" {
			must(fmt.Errorf("--file is required"))
		}
		fh, err := os.Open(*path)
		must(err)
		defer fh.Close()
		records, err := pipeline.ReadExport(fh)
		if err != nil {
			must(&pipeline.DecodeError{File: *path, Err: err})
		}
		pipeline.NewPrinter(cfg.DisplayLocale, cfg.CurrencySymbol).WriteSummary(os.Stdout, pipeline.Aggregate(records))
		fmt.Printf("verified %d rows in %s\n", len(records), *path)
	case "runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(os.Args[2:])
		db, err := storage.Open(cfg.AuditDBPath)
		must(err)
		defer db.Close()
		runs, err := db.ListRuns(*limit)
		must(err)
		printer := pipeline.NewPrinter(cfg.DisplayLocale, cfg.CurrencySymbol)
		for _, r := range runs {
			fmt.Printf("%s  %s  load=%s sales=%s records=%d match_rate=%.1f%% value=%s\n",
				r.CreatedAt, r.TraceID, r.LoadFile, r.SalesFile, r.Stats.TotalRecords, r.Stats.MatchRate,
				printer.Money(r.Stats.TotalValue.InexactFloat64()))
		}
		fmt.Printf("runs=%d\n", len(runs))
	case "patterns:dump":
		patterns, err := loadPatterns(cfg)
		must(err)
		blob, err := patterns.Marshal()
		must(err)
		_, _ = os.Stdout.Write(blob)
	default:
		usage()
		os.Exit(1)
	}
}

func newAnalyzer(cfg config.Config, logger *slog.Logger) (*pipeline.Analyzer, func()) {
	patterns, err := loadPatterns(cfg)
	must(err)
	inferencer, err := schema.NewInferencer(patterns, schema.Options{
		SampleRows:     cfg.SchemaSampleRows,
		SniffThreshold: cfg.SniffThreshold,
		ClassifyFloor:  cfg.ClassifyFloor,
	}, logger)
	must(err)

	var sheetPattern *regexp.Regexp
	if cfg.SheetNamePattern != "" {
		sheetPattern, err = regexp.Compile(cfg.SheetNamePattern)
		must(err)
	}
	decoder := decode.NewDecoder(decode.Options{SheetPattern: sheetPattern, HeaderScanRows: cfg.HeaderScanRows}, logger)
	matcher := pipeline.NewMatcher(pipeline.MatchConfig{
		SplitTolerance:          cfg.SplitTolerance,
		InvalidReferenceMarkers: patterns.InvalidReferenceMarkers,
	}, logger)

	analyzer := pipeline.NewAnalyzer(decoder, inferencer, matcher, logger)
	if !cfg.AuditEnabled {
		return analyzer, func() {}
	}
	must(cfg.Require("AUDIT_DB_PATH", cfg.AuditDBPath))
	db, err := storage.Open(cfg.AuditDBPath)
	must(err)
	return analyzer.WithRecorder(db), func() { _ = db.Close() }
}

func loadPatterns(cfg config.Config) (schema.Patterns, error) {
	if cfg.FieldPatternsPath != "" {
		return schema.LoadPatterns(cfg.FieldPatternsPath)
	}
	return schema.DefaultPatterns()
}

func readInput(path, sheet string) (pipeline.FileInput, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return pipeline.FileInput{}, &pipeline.DecodeError{File: path, Err: err}
	}
	return pipeline.FileInput{Name: filepath.Base(path), Data: blob, Sheet: sheet}, nil
}

func buildFilter(status, reconciled, search string) (pipeline.Filter, error) {
	s, ok := pipeline.ParseStatus(status)
	if !ok {
		return pipeline.Filter{}, fmt.Errorf("--status must be matched, unmatched or split")
	}
	f := pipeline.Filter{Status: s, Query: search}
	switch strings.ToLower(strings.TrimSpace(reconciled)) {
	case "":
	case "yes", "true":
		v := true
		f.Reconciled = &v
	case "no", "false":
		v := false
		f.Reconciled = &v
	default:
		return pipeline.Filter{}, fmt.Errorf("--reconciled must be yes or no")
	}
	return f, nil
}

func printInspect(sheet internal.Sheet, s schema.Schema) {
	fmt.Printf("source=%s sheet=%s rows=%d\n", sheet.Source, sheet.Name, len(sheet.Rows))
	fmt.Printf("headers: %s\n", strings.Join(sheet.Headers, " | "))
	c := s.Classification
	fmt.Printf("kind=%s load_score=%.1f sales_score=%.1f reason=%s\n", c.Kind, c.LoadScore, c.SalesScore, c.Reason)
	for _, sc := range s.Scores {
		fmt.Printf("  %-12s <- %q (%s %.2f)\n", sc.Field, sc.Column, sc.Method, sc.Score)
	}
	for _, f := range s.Missing {
		fmt.Printf("  %-12s <- MISSING\n", f)
	}
}

func usage() {
	fmt.Println("usage: consignrecon <command>")
	fmt.Println("commands:")
	fmt.Println("  analyze --load=load.xlsx --sales=sales.xlsx [--load-sheet=...] [--sales-sheet=...] [--out=...xlsx] [--json]")
	fmt.Println("          [--status=matched|unmatched|split] [--reconciled=yes|no] [--search=...]")
	fmt.Println("  inspect --file=report.xlsx [--sheet=...] [--json]")
	fmt.Println("  verify --file=./out/reconciliation.xlsx")
	fmt.Println("  runs [--limit=20]")
	fmt.Println("  patterns:dump")
}

// exitCode separates unreadable files, unrecognized schemas and internal bugs.
func exitCode(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrDecode):
		return 2
	case errors.Is(err, pipeline.ErrSchemaInference):
		return 3
	case errors.Is(err, pipeline.ErrMatchInput):
		return 4
	default:
		return 1
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(exitCode(err))
}
