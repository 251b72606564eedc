package database

import "fmt"

// SQLiteDialect implements the Dialect interface for SQLite databases.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string             { return "sqlite" }
func (d *SQLiteDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *SQLiteDialect) Placeholder(index int) string    { return "?" }

func (d *SQLiteDialect) CreateTransactionsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS transactions (
		transaction_id TEXT,
		price REAL,
		date_of_transfer TEXT,
		postcode TEXT,
		property_type TEXT,
		property_type_name TEXT,
		old_new TEXT,
		district TEXT,
		county TEXT,
		region TEXT,
		price_band TEXT
	)`
}

func (d *SQLiteDialect) CreateSummariesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS summaries (
		name TEXT,
		group_parts TEXT,
		record_count INTEGER,
		total REAL,
		mean REAL,
		minimum REAL,
		maximum REAL
	)`
}

func (d *SQLiteDialect) CreateImportRunsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		source_path TEXT,
		imported INTEGER,
		excluded INTEGER,
		started_at TEXT,
		finished_at TEXT
	)`
}

func (d *SQLiteDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}
