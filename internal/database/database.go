// Package database persists cleaned transaction records and derived
// summaries behind a Store interface with SQLite and PostgreSQL backends.
// All SQL is written once against "?" placeholders and adapted to each
// backend through the Dialect interface.
package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/housepulse/housepulse/internal/dataset"
	"github.com/housepulse/housepulse/internal/engine"
	"github.com/housepulse/housepulse/internal/model"
	"github.com/housepulse/housepulse/internal/query"
)

// DefaultIndexFields are the columns indexed when creating a new database.
// They cover the group keys and filters the analyses use most.
var DefaultIndexFields = []string{
	"district", "property_type", "date_of_transfer", "region", "price_band",
}

// DB implements the Store interface over a database/sql connection.
// Backend differences are confined to the Dialect.
type DB struct {
	path    string
	conn    *sql.DB
	dialect Dialect
	schema  *model.Schema
}

func open(d Dialect, pathOrConnStr string) (*DB, error) {
	conn, err := sql.Open(d.DriverName(), d.DSN(pathOrConnStr))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &DB{
		path:    pathOrConnStr,
		conn:    conn,
		dialect: d,
		schema:  model.TransactionSchema(),
	}, nil
}

// createSchema builds all tables and indexes for a new database.
// indexFields specifies which columns to index; nil uses DefaultIndexFields.
func (db *DB) createSchema(indexFields []string) error {
	stmts := []string{
		db.dialect.CreateTransactionsTableSQL(),
		db.dialect.CreateSummariesTableSQL(),
		db.dialect.CreateImportRunsTableSQL(),
	}
	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}

	if indexFields == nil {
		indexFields = DefaultIndexFields
	}
	for _, field := range indexFields {
		if _, _, ok := db.schema.Lookup(field); !ok {
			return fmt.Errorf("%w: cannot index %s", dataset.ErrUnknownField, field)
		}
		stmt := db.dialect.CreateIndexSQL("idx_"+field, "transactions", field)
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("creating index on %s: %w", field, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the file path or connection string the store was opened with.
func (db *DB) Path() string { return db.path }

// insertSQL builds the parameterized INSERT for one transaction record.
func (db *DB) insertSQL() string {
	names := db.schema.Names()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	sqlText := fmt.Sprintf("INSERT INTO transactions (%s) VALUES (%s)",
		strings.Join(names, ", "), marks)
	return rewritePlaceholders(sqlText, db.dialect)
}

// InsertRecords inserts transaction records in a single transaction.
// Records must match the transaction schema. An onProgress callback is
// called every 10,000 rows if non-nil. Returns the number inserted.
func (db *DB) InsertRecords(records []model.Record, onProgress func(int)) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(db.insertSQL())
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if r.Len() != db.schema.Len() {
			return 0, fmt.Errorf("%w: record %d has %d values, schema has %d fields",
				dataset.ErrSchema, i, r.Len(), db.schema.Len())
		}
		args := make([]interface{}, db.schema.Len())
		for j := 0; j < db.schema.Len(); j++ {
			switch db.schema.FieldAt(j).Type {
			case model.FieldMeasure:
				args[j] = r.At(j).Num
			case model.FieldDate:
				args[j] = r.At(j).Date.String()
			default:
				args[j] = r.At(j).Str
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return 0, fmt.Errorf("inserting record %d: %w", i, err)
		}
		if onProgress != nil && (i+1)%10000 == 0 {
			onProgress(i + 1)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing insert: %w", err)
	}
	return len(records), nil
}

// LoadDataset loads transactions into an in-memory record store,
// optionally pushing a predicate down as a WHERE clause. Pass nil to load
// everything.
func (db *DB) LoadDataset(pred *query.Predicate) (*dataset.Store, error) {
	sqlText := "SELECT " + strings.Join(db.schema.Names(), ", ") + " FROM transactions"
	where, args, err := pred.WhereClause(db.schema)
	if err != nil {
		return nil, err
	}
	if where != "" {
		sqlText += " WHERE " + where
	}

	rows, err := db.conn.Query(rewritePlaceholders(sqlText, db.dialect), args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	dest := make([]interface{}, db.schema.Len())
	for i := range dest {
		dest[i] = new(interface{})
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		values := make([]model.Value, db.schema.Len())
		for j := 0; j < db.schema.Len(); j++ {
			raw := *(dest[j].(*interface{}))
			v, err := scanValue(db.schema.FieldAt(j), raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", db.schema.FieldAt(j).Name, err)
			}
			values[j] = v
		}
		records = append(records, model.NewRecord(values...))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}

	return dataset.New(db.schema, records)
}

// scanValue converts a scanned database value into a typed field value.
func scanValue(f model.Field, raw interface{}) (model.Value, error) {
	switch f.Type {
	case model.FieldMeasure:
		switch v := raw.(type) {
		case float64:
			return model.NumberValue(v), nil
		case int64:
			return model.NumberValue(float64(v)), nil
		default:
			return model.Value{}, fmt.Errorf("unexpected measure type %T", raw)
		}

	case model.FieldDate:
		switch v := raw.(type) {
		case time.Time:
			return model.DateValue(model.Date{Year: v.Year(), Month: v.Month(), Day: v.Day()}), nil
		case string:
			d, err := model.ParseDate(v)
			if err != nil {
				return model.Value{}, err
			}
			return model.DateValue(d), nil
		case []byte:
			d, err := model.ParseDate(string(v))
			if err != nil {
				return model.Value{}, err
			}
			return model.DateValue(d), nil
		default:
			return model.Value{}, fmt.Errorf("unexpected date type %T", raw)
		}

	default:
		switch v := raw.(type) {
		case string:
			return model.StringValue(v), nil
		case []byte:
			return model.StringValue(string(v)), nil
		case nil:
			return model.StringValue(""), nil
		default:
			return model.Value{}, fmt.Errorf("unexpected string type %T", raw)
		}
	}
}

// CountTransactions counts stored transactions matching the predicate.
// Pass nil to count everything.
func (db *DB) CountTransactions(pred *query.Predicate) (int64, error) {
	sqlText := "SELECT COUNT(*) FROM transactions"
	where, args, err := pred.WhereClause(db.schema)
	if err != nil {
		return 0, err
	}
	if where != "" {
		sqlText += " WHERE " + where
	}

	var count int64
	err = db.conn.QueryRow(rewritePlaceholders(sqlText, db.dialect), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return count, nil
}

// DistinctValues returns the distinct values of a category or ID field
// with their frequencies. The field name is validated against the schema
// before it reaches the SQL text.
func (db *DB) DistinctValues(field string) (map[string]int64, error) {
	f, _, ok := db.schema.Lookup(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownField, field)
	}
	if f.Type != model.FieldCategory && f.Type != model.FieldID {
		return nil, fmt.Errorf("%w: %s is a %s field", dataset.ErrTypeMismatch, field, f.Type)
	}

	rows, err := db.conn.Query(fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM transactions GROUP BY %s", field, field))
	if err != nil {
		return nil, fmt.Errorf("querying distinct %s: %w", field, err)
	}
	defer rows.Close()

	values := make(map[string]int64)
	for rows.Next() {
		var value string
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return nil, fmt.Errorf("scanning distinct %s: %w", field, err)
		}
		values[value] = count
	}
	return values, rows.Err()
}

// MinMaxDate returns the earliest and latest transfer dates as
// "2006-01-02" strings, or empty strings for an empty table.
func (db *DB) MinMaxDate() (string, string, error) {
	var minRaw, maxRaw interface{}
	err := db.conn.QueryRow(
		"SELECT MIN(date_of_transfer), MAX(date_of_transfer) FROM transactions",
	).Scan(&minRaw, &maxRaw)
	if err != nil {
		return "", "", fmt.Errorf("querying date range: %w", err)
	}

	minDate, err := dateString(minRaw)
	if err != nil {
		return "", "", err
	}
	maxDate, err := dateString(maxRaw)
	if err != nil {
		return "", "", err
	}
	return minDate, maxDate, nil
}

func dateString(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case time.Time:
		return v.Format("2006-01-02"), nil
	case string:
		if len(v) > 10 {
			v = v[:10]
		}
		return v, nil
	case []byte:
		return dateString(string(v))
	default:
		return "", fmt.Errorf("unexpected date type %T", raw)
	}
}

// SaveSummary persists aggregate rows under a name, replacing any prior
// summary with the same name. External consumers (report writers,
// dashboards) read these tables directly.
func (db *DB) SaveSummary(name string, results []engine.AggregateResult) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	del := rewritePlaceholders("DELETE FROM summaries WHERE name = ?", db.dialect)
	if _, err := tx.Exec(del, name); err != nil {
		return fmt.Errorf("clearing summary %s: %w", name, err)
	}

	ins := rewritePlaceholders(`INSERT INTO summaries
		(name, group_parts, record_count, total, mean, minimum, maximum)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, db.dialect)
	stmt, err := tx.Prepare(ins)
	if err != nil {
		return fmt.Errorf("preparing summary insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		// The escaped group-key form round-trips parts exactly.
		parts := string(model.MakeGroupKey(r.Parts))
		if _, err := stmt.Exec(name, parts, r.Count, r.Sum, r.Mean, r.Min, r.Max); err != nil {
			return fmt.Errorf("inserting summary row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing summary %s: %w", name, err)
	}
	return nil
}

// LoadSummary reads back a persisted summary, ordered by group key.
func (db *DB) LoadSummary(name string) ([]engine.AggregateResult, error) {
	sqlText := rewritePlaceholders(`SELECT group_parts, record_count, total, mean, minimum, maximum
		FROM summaries WHERE name = ? ORDER BY group_parts`, db.dialect)

	rows, err := db.conn.Query(sqlText, name)
	if err != nil {
		return nil, fmt.Errorf("querying summary %s: %w", name, err)
	}
	defer rows.Close()

	var results []engine.AggregateResult
	for rows.Next() {
		var parts string
		var r engine.AggregateResult
		if err := rows.Scan(&parts, &r.Count, &r.Sum, &r.Mean, &r.Min, &r.Max); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		r.Key = model.GroupKey(parts)
		r.Parts = model.SplitGroupKey(r.Key)
		results = append(results, r)
	}
	return results, rows.Err()
}

// SummaryNames lists the names of persisted summaries.
func (db *DB) SummaryNames() ([]string, error) {
	rows, err := db.conn.Query("SELECT DISTINCT name FROM summaries ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying summary names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning summary name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RecordImportRun persists an import run.
func (db *DB) RecordImportRun(run ImportRun) error {
	sqlText := rewritePlaceholders(`INSERT INTO import_runs
		(id, source_path, imported, excluded, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)`, db.dialect)

	_, err := db.conn.Exec(sqlText,
		run.ID, run.SourcePath, run.Imported, run.Excluded,
		run.StartedAt.Format(time.RFC3339), run.FinishedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording import run: %w", err)
	}
	return nil
}

// ImportRuns returns all recorded import runs, most recent first.
func (db *DB) ImportRuns() ([]ImportRun, error) {
	rows, err := db.conn.Query(`SELECT id, source_path, imported, excluded, started_at, finished_at
		FROM import_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying import runs: %w", err)
	}
	defer rows.Close()

	var runs []ImportRun
	for rows.Next() {
		var run ImportRun
		var started, finished interface{}
		if err := rows.Scan(&run.ID, &run.SourcePath, &run.Imported, &run.Excluded, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning import run: %w", err)
		}
		if run.StartedAt, err = scanTime(started); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = scanTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanTime(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.RFC3339, v)
	case []byte:
		return time.Parse(time.RFC3339, string(v))
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", raw)
	}
}
