package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/housepulse/housepulse/internal/api"
	"github.com/housepulse/housepulse/internal/csvparser"
	"github.com/housepulse/housepulse/internal/database"
	"github.com/housepulse/housepulse/internal/dataset"
	"github.com/housepulse/housepulse/internal/engine"
	"github.com/housepulse/housepulse/internal/jsonlparser"
	"github.com/housepulse/housepulse/internal/model"
	"github.com/housepulse/housepulse/internal/query"
)

// Version is the application version string.
const Version = "1.0.0"

// App wires the parser, store, and engines together. Each CLI verb maps
// onto one of its methods.
type App struct {
	store database.Store
	log   *slog.Logger
}

// NewApp creates an App logging through the given logger.
func NewApp(log *slog.Logger) *App {
	return &App{log: log}
}

// Open attaches an existing store.
func (a *App) Open(driver, pathOrConnStr string) error {
	store, err := database.OpenStore(driver, pathOrConnStr)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

// Create creates a new store with the full schema and attaches it.
func (a *App) Create(driver, pathOrConnStr string) error {
	store, err := database.CreateStore(driver, pathOrConnStr)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

// Close releases the attached store.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}

func (a *App) requireStore() error {
	if a.store == nil {
		return fmt.Errorf("no database open")
	}
	return nil
}

// ImportReport summarizes one CSV import.
type ImportReport struct {
	SourcePath string        `json:"source_path"`
	Imported   int           `json:"imported"`
	Excluded   int           `json:"excluded"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Supported import formats.
const (
	FormatAuto     = "auto"
	FormatRaw      = "raw"
	FormatHeadered = "headered"
	FormatJSONL    = "jsonl"
)

// detectFormat picks an import format from the file name. JSONL files are
// recognised by extension; CSVs with a recognisable header row are read
// by column name, everything else by the raw download layout.
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	}
	if csvparser.ValidateHeader(path) == nil {
		return FormatHeadered
	}
	return FormatRaw
}

// Import reads a price paid file, cleans and enriches the rows, inserts
// them, and records the run for provenance. format selects the reader;
// FormatAuto detects it from the file. dateFrom and dateTo optionally
// restrict the import to a date range; limit caps the number of rows
// read (0 means no cap).
func (a *App) Import(path, format, dateFrom, dateTo string, limit int) (*ImportReport, error) {
	if err := a.requireStore(); err != nil {
		return nil, err
	}

	if format == "" || format == FormatAuto {
		format = detectFormat(path)
	}

	run := database.NewImportRun(path)
	a.log.Info("reading source", "path", path, "format", format)

	onProgress := func(count int) {
		a.log.Info("reading source", "rows", count)
	}

	var records []model.Record
	var excluded int
	switch format {
	case FormatRaw:
		result, err := csvparser.ReadTransactions(path, dateFrom, dateTo, limit, onProgress)
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		records, excluded = result.Records, result.Excluded
	case FormatHeadered:
		result, err := csvparser.ReadHeadered(path, dateFrom, dateTo, limit, onProgress)
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		records, excluded = result.Records, result.Excluded
	case FormatJSONL:
		result, err := jsonlparser.ReadTransactions(path, dateFrom, dateTo, limit, onProgress)
		if err != nil {
			return nil, fmt.Errorf("reading JSONL: %w", err)
		}
		records, excluded = result.Records, result.Excluded
	default:
		return nil, fmt.Errorf("unsupported import format: %s", format)
	}
	a.log.Info("source read", "kept", len(records), "excluded", excluded)

	inserted, err := a.store.InsertRecords(records, func(count int) {
		a.log.Info("inserting records", "rows", count, "total", len(records))
	})
	if err != nil {
		return nil, fmt.Errorf("inserting records: %w", err)
	}

	run.Finish(inserted, excluded)
	if err := a.store.RecordImportRun(run); err != nil {
		return nil, fmt.Errorf("recording import run: %w", err)
	}

	report := &ImportReport{
		SourcePath: path,
		Imported:   inserted,
		Excluded:   excluded,
		Elapsed:    run.FinishedAt.Sub(run.StartedAt),
	}
	a.log.Info("import complete", "imported", report.Imported, "excluded", report.Excluded)
	return report, nil
}

// StoreInfo summarizes the attached store.
type StoreInfo struct {
	Path    string `json:"path"`
	Count   int64  `json:"count"`
	MinDate string `json:"min_date"`
	MaxDate string `json:"max_date"`
}

// Info returns the record count and date range of the attached store.
func (a *App) Info() (*StoreInfo, error) {
	if err := a.requireStore(); err != nil {
		return nil, err
	}

	count, err := a.store.CountTransactions(nil)
	if err != nil {
		return nil, err
	}
	minDate, maxDate, err := a.store.MinMaxDate()
	if err != nil {
		return nil, err
	}
	return &StoreInfo{
		Path:    a.store.Path(),
		Count:   count,
		MinDate: minDate,
		MaxDate: maxDate,
	}, nil
}

// FilterItem is one equality or comparison filter supplied on the
// command line as field=value, field!=value, etc.
type FilterItem struct {
	Field    string
	Operator query.Operator
	Value    string
}

// buildPredicate combines filter items with AND.
func buildPredicate(filters []FilterItem, dateFrom, dateTo string) *query.Predicate {
	var preds []*query.Predicate
	for _, f := range filters {
		preds = append(preds, query.Simple(f.Field, f.Operator, f.Value))
	}
	if dateFrom != "" || dateTo != "" {
		if dateFrom == "" {
			dateFrom = "0001-01-01"
		}
		if dateTo == "" {
			dateTo = "9999-12-31"
		}
		dateField := model.TransactionSchema().Names()[model.TransactionSchema().DateField()]
		preds = append(preds, query.DateRange(dateField, dateFrom, dateTo))
	}
	return query.Combine(preds, query.AND)
}

func (a *App) loadFiltered(filters []FilterItem, dateFrom, dateTo string) (*dataset.Store, error) {
	if err := a.requireStore(); err != nil {
		return nil, err
	}
	return a.store.LoadDataset(buildPredicate(filters, dateFrom, dateTo))
}

// Aggregate groups the filtered transactions and returns one summary row
// per group. If saveAs is non-empty the result is also persisted under
// that name.
func (a *App) Aggregate(filters []FilterItem, dateFrom, dateTo string, groups []string, measure, saveAs string) ([]engine.AggregateResult, error) {
	ds, err := a.loadFiltered(filters, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	a.log.Info("aggregating", "records", ds.Len(), "groups", groups, "measure", measure)

	results, err := engine.Aggregate(ds, groups, measure)
	if err != nil {
		return nil, err
	}

	if saveAs != "" {
		if err := a.store.SaveSummary(saveAs, results); err != nil {
			return nil, err
		}
		a.log.Info("summary saved", "name", saveAs, "rows", len(results))
	}
	return results, nil
}

// bucketSeries aggregates by a time bucket and extracts one statistic.
func (a *App) bucketSeries(filters []FilterItem, dateFrom, dateTo, bucket, measure string, stat engine.Stat) (engine.TimeSeries, error) {
	ds, err := a.loadFiltered(filters, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	results, err := engine.Aggregate(ds, []string{bucket}, measure)
	if err != nil {
		return nil, err
	}
	return engine.SeriesFrom(results, stat)
}

// YearOverYear returns the percentage change of a bucketed statistic
// against the same bucket one year earlier.
func (a *App) YearOverYear(filters []FilterItem, dateFrom, dateTo, bucket, measure string, stat engine.Stat, skipZero bool) (engine.TimeSeries, error) {
	series, err := a.bucketSeries(filters, dateFrom, dateTo, bucket, measure, stat)
	if err != nil {
		return nil, err
	}
	if skipZero {
		return engine.YearOverYearSkipZero(series)
	}
	return engine.YearOverYear(series)
}

// Rolling returns the trailing moving average of a bucketed statistic.
func (a *App) Rolling(filters []FilterItem, dateFrom, dateTo, bucket, measure string, stat engine.Stat, window int) (engine.TimeSeries, error) {
	series, err := a.bucketSeries(filters, dateFrom, dateTo, bucket, measure, stat)
	if err != nil {
		return nil, err
	}
	return engine.RollingAverage(series, window)
}

// DistinctValue is one distinct field value with its frequency.
type DistinctValue struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// DistinctValues returns the distinct values of a category field in
// sorted order with their frequencies.
func (a *App) DistinctValues(field string) ([]DistinctValue, error) {
	if err := a.requireStore(); err != nil {
		return nil, err
	}
	counts, err := a.store.DistinctValues(field)
	if err != nil {
		return nil, err
	}

	values := make([]DistinctValue, 0, len(counts))
	for _, v := range model.SortedKeys(counts) {
		values = append(values, DistinctValue{Value: v, Count: counts[v]})
	}
	return values, nil
}

// Summaries lists persisted summary names.
func (a *App) Summaries() ([]string, error) {
	if err := a.requireStore(); err != nil {
		return nil, err
	}
	return a.store.SummaryNames()
}

// LoadSummary reads back a persisted summary.
func (a *App) LoadSummary(name string) ([]engine.AggregateResult, error) {
	if err := a.requireStore(); err != nil {
		return nil, err
	}
	return a.store.LoadSummary(name)
}

// ImportRuns lists the recorded imports, most recent first.
func (a *App) ImportRuns() ([]database.ImportRun, error) {
	if err := a.requireStore(); err != nil {
		return nil, err
	}
	return a.store.ImportRuns()
}

// Serve runs the HTTP query API until the listener fails.
func (a *App) Serve(addr string) error {
	if err := a.requireStore(); err != nil {
		return err
	}
	a.log.Info("serving", "addr", addr)
	return http.ListenAndServe(addr, api.NewServer(a.store).Router())
}
