// Package query builds filter predicates over record schemas. A predicate
// tree can be bound to a schema for in-memory filtering of a dataset, or
// rendered as a parameterized SQL WHERE fragment for pushing the same
// filter down to a database load. Predicates are validated against the
// schema at bind time, never trusted as raw SQL.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/housepulse/housepulse/internal/dataset"
	"github.com/housepulse/housepulse/internal/model"
)

// Logic determines how multiple predicates are combined.
type Logic int

const (
	AND Logic = iota
	OR
)

// Operator represents a comparison operator.
type Operator string

const (
	Equal          Operator = "="
	NotEqual       Operator = "!="
	Like           Operator = "LIKE"
	NotLike        Operator = "NOT LIKE"
	GreaterOrEqual Operator = ">="
	LessOrEqual    Operator = "<="
)

// validOperators is the set of allowed operators for validation.
var validOperators = map[Operator]bool{
	Equal: true, NotEqual: true, Like: true, NotLike: true,
	GreaterOrEqual: true, LessOrEqual: true,
}

// Predicate represents a single filter condition or a composite of
// conditions. SQL rendering uses parameterized values throughout.
type Predicate struct {
	kind  predicateKind
	field string
	op    Operator
	value string
	date1 string
	date2 string
	left  *Predicate
	right *Predicate
	logic Logic
}

type predicateKind int

const (
	predNone predicateKind = iota
	predSimple
	predDate
	predComposite
)

// Simple creates a predicate comparing a field to a value.
// Returns nil if the operator is unrecognized; the field name is validated
// later, when the predicate is bound to a schema or rendered to SQL.
func Simple(field string, op Operator, value string) *Predicate {
	if field == "" || !validOperators[op] {
		return nil
	}
	return &Predicate{
		kind:  predSimple,
		field: field,
		op:    op,
		value: value,
	}
}

// DateRange creates a predicate keeping records whose date field falls
// between two dates, inclusive. Dates use "2006-01-02" form.
func DateRange(field, from, to string) *Predicate {
	if field == "" {
		return nil
	}
	return &Predicate{
		kind:  predDate,
		field: field,
		date1: from,
		date2: to,
	}
}

// Combine joins multiple predicates with the given logic (AND or OR).
// Returns nil for an empty slice. Returns the single predicate if only one
// is given. Nil predicates in the slice are skipped.
func Combine(preds []*Predicate, logic Logic) *Predicate {
	filtered := make([]*Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			filtered = append(filtered, p)
		}
	}

	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}

	// Build a right-leaning tree
	result := &Predicate{
		kind:  predComposite,
		left:  filtered[0],
		right: filtered[1],
		logic: logic,
	}
	for i := 2; i < len(filtered); i++ {
		result = &Predicate{
			kind:  predComposite,
			left:  result,
			right: filtered[i],
			logic: logic,
		}
	}
	return result
}

// Bind validates the predicate tree against a schema and returns a matcher
// for in-memory filtering. Unknown field references fail with
// dataset.ErrUnknownField; comparisons a field's type cannot support fail
// with dataset.ErrTypeMismatch. The matcher is pure and safe for
// concurrent use.
func (p *Predicate) Bind(schema *model.Schema) (func(model.Record) bool, error) {
	if p == nil {
		return func(model.Record) bool { return true }, nil
	}

	switch p.kind {
	case predNone:
		return func(model.Record) bool { return true }, nil

	case predSimple:
		return p.bindSimple(schema)

	case predDate:
		return p.bindDate(schema)

	case predComposite:
		left, err := p.left.Bind(schema)
		if err != nil {
			return nil, err
		}
		right, err := p.right.Bind(schema)
		if err != nil {
			return nil, err
		}
		if p.logic == OR {
			return func(r model.Record) bool { return left(r) || right(r) }, nil
		}
		return func(r model.Record) bool { return left(r) && right(r) }, nil

	default:
		return nil, fmt.Errorf("unknown predicate kind %d", p.kind)
	}
}

func (p *Predicate) bindSimple(schema *model.Schema) (func(model.Record) bool, error) {
	f, idx, ok := schema.Lookup(p.field)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownField, p.field)
	}

	switch f.Type {
	case model.FieldMeasure:
		want, err := strconv.ParseFloat(p.value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: comparing measure %s to non-numeric %q",
				dataset.ErrTypeMismatch, p.field, p.value)
		}
		switch p.op {
		case Equal:
			return func(r model.Record) bool { return r.At(idx).Num == want }, nil
		case NotEqual:
			return func(r model.Record) bool { return r.At(idx).Num != want }, nil
		case GreaterOrEqual:
			return func(r model.Record) bool { return r.At(idx).Num >= want }, nil
		case LessOrEqual:
			return func(r model.Record) bool { return r.At(idx).Num <= want }, nil
		default:
			return nil, fmt.Errorf("%w: operator %s not supported on measure %s",
				dataset.ErrTypeMismatch, p.op, p.field)
		}

	case model.FieldDate:
		// Zero-padded date strings compare correctly.
		want := p.value
		switch p.op {
		case Equal:
			return func(r model.Record) bool { return r.At(idx).Date.String() == want }, nil
		case NotEqual:
			return func(r model.Record) bool { return r.At(idx).Date.String() != want }, nil
		case GreaterOrEqual:
			return func(r model.Record) bool { return r.At(idx).Date.String() >= want }, nil
		case LessOrEqual:
			return func(r model.Record) bool { return r.At(idx).Date.String() <= want }, nil
		default:
			return nil, fmt.Errorf("%w: operator %s not supported on date %s",
				dataset.ErrTypeMismatch, p.op, p.field)
		}

	default: // FieldID, FieldCategory
		want := p.value
		switch p.op {
		case Equal:
			return func(r model.Record) bool { return r.At(idx).Str == want }, nil
		case NotEqual:
			return func(r model.Record) bool { return r.At(idx).Str != want }, nil
		case Like:
			sub := strings.ToLower(want)
			return func(r model.Record) bool {
				return strings.Contains(strings.ToLower(r.At(idx).Str), sub)
			}, nil
		case NotLike:
			sub := strings.ToLower(want)
			return func(r model.Record) bool {
				return !strings.Contains(strings.ToLower(r.At(idx).Str), sub)
			}, nil
		case GreaterOrEqual:
			return func(r model.Record) bool { return r.At(idx).Str >= want }, nil
		case LessOrEqual:
			return func(r model.Record) bool { return r.At(idx).Str <= want }, nil
		default:
			return nil, fmt.Errorf("%w: operator %s not supported on %s",
				dataset.ErrTypeMismatch, p.op, p.field)
		}
	}
}

func (p *Predicate) bindDate(schema *model.Schema) (func(model.Record) bool, error) {
	f, idx, ok := schema.Lookup(p.field)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownField, p.field)
	}
	if f.Type != model.FieldDate {
		return nil, fmt.Errorf("%w: %s is a %s field, not a date",
			dataset.ErrTypeMismatch, p.field, f.Type)
	}

	from, to := p.date1, p.date2
	return func(r model.Record) bool {
		d := r.At(idx).Date.String()
		return d >= from && d <= to
	}, nil
}

// WhereClause returns the SQL WHERE fragment and its parameter values,
// using "?" placeholders. Backends rewrite placeholders for dialects that
// number them. Field names are validated against the schema so no
// unchecked identifier reaches the SQL text.
func (p *Predicate) WhereClause(schema *model.Schema) (string, []interface{}, error) {
	if p == nil {
		return "", nil, nil
	}

	switch p.kind {
	case predNone:
		return "", nil, nil

	case predSimple:
		if _, _, ok := schema.Lookup(p.field); !ok {
			return "", nil, fmt.Errorf("%w: %s", dataset.ErrUnknownField, p.field)
		}
		if p.op == Like || p.op == NotLike {
			return fmt.Sprintf("(%s %s ?)", p.field, p.op),
				[]interface{}{"%" + p.value + "%"}, nil
		}
		return fmt.Sprintf("(%s %s ?)", p.field, p.op),
			[]interface{}{p.value}, nil

	case predDate:
		f, _, ok := schema.Lookup(p.field)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", dataset.ErrUnknownField, p.field)
		}
		if f.Type != model.FieldDate {
			return "", nil, fmt.Errorf("%w: %s is a %s field, not a date",
				dataset.ErrTypeMismatch, p.field, f.Type)
		}
		return fmt.Sprintf("(%s BETWEEN ? AND ?)", p.field),
			[]interface{}{p.date1, p.date2}, nil

	case predComposite:
		leftSQL, leftArgs, err := p.left.WhereClause(schema)
		if err != nil {
			return "", nil, err
		}
		rightSQL, rightArgs, err := p.right.WhereClause(schema)
		if err != nil {
			return "", nil, err
		}

		if leftSQL == "" && rightSQL == "" {
			return "", nil, nil
		}
		if leftSQL == "" {
			return rightSQL, rightArgs, nil
		}
		if rightSQL == "" {
			return leftSQL, leftArgs, nil
		}

		logicStr := "AND"
		if p.logic == OR {
			logicStr = "OR"
		}
		sql := fmt.Sprintf("(%s %s %s)", leftSQL, logicStr, rightSQL)
		return sql, append(leftArgs, rightArgs...), nil

	default:
		return "", nil, fmt.Errorf("unknown predicate kind %d", p.kind)
	}
}

// Fields returns the distinct field names referenced by this predicate tree.
func (p *Predicate) Fields() []string {
	if p == nil {
		return nil
	}

	switch p.kind {
	case predSimple, predDate:
		return []string{p.field}
	case predComposite:
		seen := make(map[string]bool)
		var result []string
		for _, f := range append(p.left.Fields(), p.right.Fields()...) {
			if !seen[f] {
				seen[f] = true
				result = append(result, f)
			}
		}
		return result
	default:
		return nil
	}
}
