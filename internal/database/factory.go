package database

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported driver names for OpenStore and CreateStore.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenSQLite opens an existing SQLite database file.
func OpenSQLite(path string) (*DB, error) {
	return open(&SQLiteDialect{}, path)
}

// CreateSQLite creates a new SQLite database at path with the full schema.
// indexFields specifies which columns to index; nil uses DefaultIndexFields.
func CreateSQLite(path string, indexFields []string) (*DB, error) {
	db, err := open(&SQLiteDialect{}, path)
	if err != nil {
		return nil, err
	}
	if err := db.createSchema(indexFields); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenPostgres opens an existing PostgreSQL database.
func OpenPostgres(connStr string) (*DB, error) {
	return open(&PostgresDialect{}, connStr)
}

// CreatePostgres connects to a PostgreSQL database and creates the full
// schema. indexFields specifies which columns to index; nil uses
// DefaultIndexFields.
func CreatePostgres(connStr string, indexFields []string) (*DB, error) {
	db, err := open(&PostgresDialect{}, connStr)
	if err != nil {
		return nil, err
	}
	if err := db.createSchema(indexFields); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenStore opens a store by driver name.
func OpenStore(driver, pathOrConnStr string) (Store, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(pathOrConnStr)
	case DriverPostgres:
		return OpenPostgres(pathOrConnStr)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// CreateStore creates a store and its schema by driver name.
func CreateStore(driver, pathOrConnStr string) (Store, error) {
	switch driver {
	case DriverSQLite:
		return CreateSQLite(pathOrConnStr, nil)
	case DriverPostgres:
		return CreatePostgres(pathOrConnStr, nil)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
