package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/housepulse/housepulse/internal/dataset"
	"github.com/housepulse/housepulse/internal/engine"
	"github.com/housepulse/housepulse/internal/model"
	"github.com/housepulse/housepulse/internal/query"
)

// ImportRun records one CSV import into the database: which file was
// loaded, how many records survived cleaning, and when.
type ImportRun struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	Imported   int       `json:"imported"`
	Excluded   int       `json:"excluded"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewImportRun starts a new import run record for a source file.
// The caller fills in the counts and calls Finish before persisting it.
func NewImportRun(sourcePath string) ImportRun {
	return ImportRun{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		StartedAt:  time.Now().UTC(),
	}
}

// Finish stamps the completion time and counts on the run.
func (r *ImportRun) Finish(imported, excluded int) {
	r.Imported = imported
	r.Excluded = excluded
	r.FinishedAt = time.Now().UTC()
}

// Store defines the interface for all database operations the application
// needs, so callers depend on the interface rather than a concrete
// database type. Both backends (SQLite, PostgreSQL) implement it via *DB.
type Store interface {
	// Transaction persistence
	InsertRecords(records []model.Record, onProgress func(int)) (int, error)
	LoadDataset(pred *query.Predicate) (*dataset.Store, error)
	CountTransactions(pred *query.Predicate) (int64, error)

	// Metadata
	DistinctValues(field string) (map[string]int64, error)
	MinMaxDate() (string, string, error)

	// Derived summaries, persisted for external consumers
	SaveSummary(name string, results []engine.AggregateResult) error
	LoadSummary(name string) ([]engine.AggregateResult, error)
	SummaryNames() ([]string, error)

	// Import provenance
	RecordImportRun(run ImportRun) error
	ImportRuns() ([]ImportRun, error)

	// Lifecycle
	Close() error
	Path() string
}
