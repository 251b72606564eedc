package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FieldType classifies a schema field. The type decides how a field may be
// used in queries: only FieldMeasure fields can be aggregated, and only
// FieldID/FieldCategory fields (plus time buckets derived from a FieldDate)
// can serve as group keys.
type FieldType int

const (
	FieldID       FieldType = iota // opaque row identifier
	FieldCategory                  // low-cardinality string, usable as a group key
	FieldDate                      // calendar date, day granularity
	FieldMeasure                   // numeric value, usable as an aggregation measure
)

func (t FieldType) String() string {
	switch t {
	case FieldID:
		return "id"
	case FieldCategory:
		return "category"
	case FieldDate:
		return "date"
	case FieldMeasure:
		return "measure"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field is a single named, typed column in a Schema.
type Field struct {
	Name string
	Type FieldType
}

// Schema is an ordered set of fields shared by every record in a store.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema from an ordered field list.
// Field names must be unique and non-empty.
func NewSchema(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema needs at least one field")
	}
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has an empty name", i)
		}
		if _, dup := index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field name: %s", f.Name)
		}
		index[f.Name] = i
	}
	return &Schema{fields: append([]Field(nil), fields...), index: index}, nil
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// FieldAt returns the field at position i.
func (s *Schema) FieldAt(i int) Field { return s.fields[i] }

// Lookup finds a field by name, returning the field, its position,
// and whether it exists.
func (s *Schema) Lookup(name string) (Field, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, -1, false
	}
	return s.fields[i], i, true
}

// Names returns the field names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// DateField returns the position of the first FieldDate field, or -1 if
// the schema has none. Time-bucket group keys resolve against this field.
func (s *Schema) DateField() int {
	for i, f := range s.fields {
		if f.Type == FieldDate {
			return i
		}
	}
	return -1
}

// Equal reports whether two schemas declare the same fields, in the same
// order, with the same types.
func (s *Schema) Equal(o *Schema) bool {
	if o == nil || len(s.fields) != len(o.fields) {
		return false
	}
	for i, f := range s.fields {
		if o.fields[i] != f {
			return false
		}
	}
	return true
}

// Date is a calendar date at day granularity.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "2006-01-02", optionally followed by a time portion
// which is ignored ("2006-01-02 15:04" or RFC 3339 timestamps).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Quarter returns the calendar quarter (1-4).
func (d Date) Quarter() int { return (int(d.Month)-1)/3 + 1 }

// YearMonth returns the date truncated to month, formatted "2006-01".
func (d Date) YearMonth() string { return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month)) }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// Value is one cell of a record. Exactly one of the members is meaningful,
// decided by the field's type: Str for FieldID/FieldCategory, Num for
// FieldMeasure, Date for FieldDate.
type Value struct {
	Str  string
	Num  float64
	Date Date
}

// StringValue wraps an identifier or category value.
func StringValue(s string) Value { return Value{Str: s} }

// NumberValue wraps a measure value.
func NumberValue(n float64) Value { return Value{Num: n} }

// DateValue wraps a calendar date value.
func DateValue(d Date) Value { return Value{Date: d} }

// Record is one immutable row. Values are positional and must line up with
// the store's schema; the store validates the length at load time.
type Record struct {
	values []Value
}

// NewRecord builds a record from positional values.
func NewRecord(values ...Value) Record {
	return Record{values: append([]Value(nil), values...)}
}

// Len returns the number of values in the record.
func (r Record) Len() int { return len(r.values) }

// At returns the value at position i.
func (r Record) At(i int) Value { return r.values[i] }

// GroupKey is the bucket identity for one aggregation group: the group-key
// field values joined in key order. Two records fall in the same bucket iff
// their key parts are all equal.
type GroupKey string

// Group keys join parts with keySep. Occurrences of either byte inside a
// part are escaped with keyEscape, so two distinct part tuples never join
// to the same key.
const (
	keySep    = '\x1f'
	keyEscape = '\x1e'
)

var keyEscaper = strings.NewReplacer(
	string(keyEscape), string(keyEscape)+string(keyEscape),
	string(keySep), string(keyEscape)+string(keySep),
)

// MakeGroupKey joins ordered key parts into a GroupKey.
func MakeGroupKey(parts []string) GroupKey {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = keyEscaper.Replace(p)
	}
	return GroupKey(strings.Join(escaped, string(keySep)))
}

// SplitGroupKey recovers the ordered parts a GroupKey was made from.
// The empty key decodes to nil, matching MakeGroupKey(nil).
func SplitGroupKey(key GroupKey) []string {
	if key == "" {
		return nil
	}
	var parts []string
	var b strings.Builder
	s := string(key)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case keyEscape:
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case keySep:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteByte(s[i])
		}
	}
	return append(parts, b.String())
}

// SortedKeys returns map keys in sorted order, for deterministic iteration.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
