package database

import "strings"

// Dialect abstracts the database-specific SQL each backend needs.
// Everything else in this package is written against plain SQL with "?"
// placeholders, rewritten per dialect before execution.
type Dialect interface {
	// DriverName returns the database/sql driver name ("sqlite", "pgx").
	DriverName() string

	// DSN returns the data source name for opening a connection.
	// For SQLite this is the file path; for PostgreSQL a connection string.
	DSN(pathOrConnStr string) string

	// Placeholder returns the parameter placeholder for the given 1-based
	// index. SQLite: "?" (ignoring the index), PostgreSQL: "$1", "$2", etc.
	Placeholder(index int) string

	// CreateTransactionsTableSQL returns DDL for the transactions table.
	CreateTransactionsTableSQL() string

	// CreateSummariesTableSQL returns DDL for the summaries table holding
	// persisted aggregate rows.
	CreateSummariesTableSQL() string

	// CreateImportRunsTableSQL returns DDL for the import provenance table.
	CreateImportRunsTableSQL() string

	// CreateIndexSQL returns DDL to create an index on a table column.
	CreateIndexSQL(indexName, tableName, column string) string
}

// rewritePlaceholders converts "?" placeholders to the dialect's numbered
// form. A no-op for dialects whose placeholder is "?". Safe here because
// all values travel as parameters; the SQL text never embeds literals that
// could contain a question mark.
func rewritePlaceholders(sql string, d Dialect) string {
	if d.Placeholder(1) == "?" {
		return sql
	}
	var b strings.Builder
	n := 0
	for _, c := range sql {
		if c == '?' {
			n++
			b.WriteString(d.Placeholder(n))
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}
