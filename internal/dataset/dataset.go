// Package dataset provides the immutable in-memory record store that the
// aggregation and window engines operate on. A store is built once from an
// external source (CSV parser, database load, raw maps) and is read-only
// for its lifetime; Filter returns new stores and never mutates the receiver,
// so one store can back any number of concurrent analyses.
package dataset

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/housepulse/housepulse/internal/model"
)

// Sentinel errors for load-time and field-resolution failures.
// Callers match these with errors.Is.
var (
	// ErrSchema indicates records that do not agree with the store's schema
	// at load time: wrong arity, missing or extra fields, unconvertible values.
	ErrSchema = errors.New("schema mismatch")

	// ErrUnknownField indicates a query referenced a field the schema
	// does not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrTypeMismatch indicates a field was used in a role its type does not
	// permit, such as a category field as an aggregation measure.
	ErrTypeMismatch = errors.New("field type mismatch")
)

// Virtual time-bucket group keys. These resolve against the schema's first
// date field rather than a declared column.
const (
	BucketYear      = "year"       // "2024"
	BucketQuarter   = "quarter"    // "2024-Q1"
	BucketYearMonth = "year_month" // "2024-03"
)

// Store is an immutable collection of records sharing one schema.
type Store struct {
	schema  *model.Schema
	records []model.Record
}

// New builds a store after validating every record against the schema.
// A record with the wrong number of values, or a zero date in a date field,
// fails with ErrSchema. The record slice is not retained; the store owns
// its own copy.
func New(schema *model.Schema, records []model.Record) (*Store, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrSchema)
	}
	owned := make([]model.Record, len(records))
	for i, r := range records {
		if r.Len() != schema.Len() {
			return nil, fmt.Errorf("%w: record %d has %d values, schema has %d fields",
				ErrSchema, i, r.Len(), schema.Len())
		}
		for j := 0; j < schema.Len(); j++ {
			if schema.FieldAt(j).Type == model.FieldDate && r.At(j).Date.IsZero() {
				return nil, fmt.Errorf("%w: record %d has no value for date field %s",
					ErrSchema, i, schema.FieldAt(j).Name)
			}
		}
		owned[i] = r
	}
	return &Store{schema: schema, records: owned}, nil
}

// FromMaps builds a store from flat field-name → value maps, the ingestion
// boundary for external loaders. Every row must carry exactly the schema's
// fields; values are coerced to the field's declared type. Any missing field,
// extra field, or unconvertible value fails with ErrSchema.
func FromMaps(schema *model.Schema, rows []map[string]any) (*Store, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrSchema)
	}
	records := make([]model.Record, 0, len(rows))
	for i, row := range rows {
		if len(row) != schema.Len() {
			return nil, fmt.Errorf("%w: row %d has %d fields, schema has %d",
				ErrSchema, i, len(row), schema.Len())
		}
		values := make([]model.Value, schema.Len())
		for j := 0; j < schema.Len(); j++ {
			f := schema.FieldAt(j)
			raw, ok := row[f.Name]
			if !ok {
				return nil, fmt.Errorf("%w: row %d is missing field %s", ErrSchema, i, f.Name)
			}
			v, err := coerce(f, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d field %s: %v", ErrSchema, i, f.Name, err)
			}
			values[j] = v
		}
		records = append(records, model.NewRecord(values...))
	}
	return &Store{schema: schema, records: records}, nil
}

// coerce converts a raw loader value into a typed field value.
func coerce(f model.Field, raw any) (model.Value, error) {
	switch f.Type {
	case model.FieldMeasure:
		n, err := cast.ToFloat64E(raw)
		if err != nil {
			return model.Value{}, err
		}
		return model.NumberValue(n), nil

	case model.FieldDate:
		if t, ok := raw.(time.Time); ok {
			return model.DateValue(model.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}), nil
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return model.Value{}, err
		}
		d, err := model.ParseDate(s)
		if err != nil {
			return model.Value{}, err
		}
		return model.DateValue(d), nil

	default: // FieldID, FieldCategory
		s, err := cast.ToStringE(raw)
		if err != nil {
			return model.Value{}, err
		}
		return model.StringValue(s), nil
	}
}

// Schema returns the store's schema.
func (s *Store) Schema() *model.Schema { return s.schema }

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Record returns the record at position i.
func (s *Store) Record(i int) model.Record { return s.records[i] }

// Filter returns a new store holding only the records the predicate accepts.
// The receiver is never modified and remains valid.
func (s *Store) Filter(keep func(model.Record) bool) *Store {
	matched := make([]model.Record, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			matched = append(matched, r)
		}
	}
	return &Store{schema: s.schema, records: matched}
}

// MeasureIndex resolves a measure field name to its position.
// Unknown names fail with ErrUnknownField; fields that are not measures
// fail with ErrTypeMismatch.
func (s *Store) MeasureIndex(name string) (int, error) {
	f, idx, ok := s.schema.Lookup(name)
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if f.Type != model.FieldMeasure {
		return -1, fmt.Errorf("%w: %s is a %s field, not a measure", ErrTypeMismatch, name, f.Type)
	}
	return idx, nil
}

// KeyFunc resolves a group-key name to a function extracting that key's
// value from a record. The name may be an ID or category field, a date
// field (keyed by full date), or one of the virtual time buckets
// (BucketYear, BucketQuarter, BucketYearMonth), which require the schema
// to declare a date field.
func (s *Store) KeyFunc(name string) (func(model.Record) string, error) {
	switch name {
	case BucketYear, BucketQuarter, BucketYearMonth:
		di := s.schema.DateField()
		if di == -1 {
			return nil, fmt.Errorf("%w: bucket %s needs a date field in the schema",
				ErrUnknownField, name)
		}
		return bucketFunc(name, di), nil
	}

	f, idx, ok := s.schema.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	switch f.Type {
	case model.FieldID, model.FieldCategory:
		return func(r model.Record) string { return r.At(idx).Str }, nil
	case model.FieldDate:
		return func(r model.Record) string { return r.At(idx).Date.String() }, nil
	default:
		return nil, fmt.Errorf("%w: %s is a %s field and cannot be a group key",
			ErrTypeMismatch, name, f.Type)
	}
}

func bucketFunc(bucket string, dateIdx int) func(model.Record) string {
	switch bucket {
	case BucketYear:
		// Zero-padded so bucket labels sort chronologically.
		return func(r model.Record) string {
			return fmt.Sprintf("%04d", r.At(dateIdx).Date.Year)
		}
	case BucketQuarter:
		return func(r model.Record) string {
			d := r.At(dateIdx).Date
			return fmt.Sprintf("%04d-Q%d", d.Year, d.Quarter())
		}
	default: // BucketYearMonth
		return func(r model.Record) string {
			return r.At(dateIdx).Date.YearMonth()
		}
	}
}
