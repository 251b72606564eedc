package database

import "fmt"

// PostgresDialect implements the Dialect interface for PostgreSQL.
// Connections use the pgx stdlib driver.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string             { return "pgx" }
func (d *PostgresDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) CreateTransactionsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS transactions (
		transaction_id TEXT,
		price DOUBLE PRECISION,
		date_of_transfer DATE,
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

func (d *PostgresDialect) CreateSummariesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS summaries (
		name TEXT,
		group_parts TEXT,
		record_count BIGINT,
		total DOUBLE PRECISION,
		mean DOUBLE PRECISION,
		minimum DOUBLE PRECISION,
		maximum DOUBLE PRECISION
	)`
}

func (d *PostgresDialect) CreateImportRunsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		source_path TEXT,
		imported BIGINT,
		excluded BIGINT,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	)`
}

func (d *PostgresDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}
