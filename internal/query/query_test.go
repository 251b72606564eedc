package query

import (
	"errors"
	"testing"

	"github.com/housepulse/housepulse/internal/dataset"
	"github.com/housepulse/housepulse/internal/model"
)

func testSchema(t *testing.T) *model.Schema {
	t.Helper()
	s, err := model.NewSchema(
		model.Field{Name: "district", Type: model.FieldCategory},
		model.Field{Name: "date_of_transfer", Type: model.FieldDate},
		model.Field{Name: "price", Type: model.FieldMeasure},
	)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func rec(t *testing.T, district, date string, price float64) model.Record {
	t.Helper()
	d, err := model.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	return model.NewRecord(
		model.StringValue(district),
		model.DateValue(d),
		model.NumberValue(price),
	)
}

func TestSimpleInvalidOperator(t *testing.T) {
	if p := Simple("district", "HACK", "value"); p != nil {
		t.Error("expected nil for invalid operator")
	}
}

func TestSimpleEmptyField(t *testing.T) {
	if p := Simple("", Equal, "value"); p != nil {
		t.Error("expected nil for empty field name")
	}
}

func TestBindEqual(t *testing.T) {
	match, err := Simple("district", Equal, "CAMDEN").Bind(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if !match(rec(t, "CAMDEN", "2024-01-01", 1)) {
		t.Error("expected CAMDEN to match")
	}
	if match(rec(t, "SUTTON", "2024-01-01", 1)) {
		t.Error("expected SUTTON not to match")
	}
}

func TestBindLike(t *testing.T) {
	match, err := Simple("district", Like, "ham").Bind(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	// Substring match is case-insensitive, as SQL LIKE is for ASCII
	if !match(rec(t, "HAMMERSMITH AND FULHAM", "2024-01-01", 1)) {
		t.Error("expected substring match")
	}
	if match(rec(t, "SUTTON", "2024-01-01", 1)) {
		t.Error("expected no match")
	}
}

func TestBindNotLike(t *testing.T) {
	match, err := Simple("district", NotLike, "ham").Bind(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if match(rec(t, "HAMMERSMITH AND FULHAM", "2024-01-01", 1)) {
		t.Error("expected NOT LIKE to reject substring match")
	}
	if !match(rec(t, "SUTTON", "2024-01-01", 1)) {
		t.Error("expected NOT LIKE to accept non-match")
	}
}

func TestBindMeasureComparison(t *testing.T) {
	match, err := Simple("price", GreaterOrEqual, "500000").Bind(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if !match(rec(t, "CAMDEN", "2024-01-01", 850000)) {
		t.Error("expected 850000 >= 500000")
	}
	if match(rec(t, "CAMDEN", "2024-01-01", 100000)) {
		t.Error("expected 100000 < 500000")
	}
}

func TestBindMeasureNonNumericValue(t *testing.T) {
	_, err := Simple("price", GreaterOrEqual, "expensive").Bind(testSchema(t))
	if !errors.Is(err, dataset.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestBindMeasureLikeRejected(t *testing.T) {
	_, err := Simple("price", Like, "5000").Bind(testSchema(t))
	if !errors.Is(err, dataset.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestBindUnknownField(t *testing.T) {
	_, err := Simple("borough", Equal, "CAMDEN").Bind(testSchema(t))
	if !errors.Is(err, dataset.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestBindDateRange(t *testing.T) {
	match, err := DateRange("date_of_transfer", "2024-01-01", "2024-06-30").Bind(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if !match(rec(t, "CAMDEN", "2024-03-15", 1)) {
		t.Error("expected date inside range to match")
	}
	if !match(rec(t, "CAMDEN", "2024-01-01", 1)) {
		t.Error("expected range to be inclusive at the start")
	}
	if !match(rec(t, "CAMDEN", "2024-06-30", 1)) {
		t.Error("expected range to be inclusive at the end")
	}
	if match(rec(t, "CAMDEN", "2023-12-31", 1)) {
		t.Error("expected date before range not to match")
	}
}

func TestBindDateRangeOnNonDateField(t *testing.T) {
	_, err := DateRange("district", "2024-01-01", "2024-06-30").Bind(testSchema(t))
	if !errors.Is(err, dataset.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestBindCombineAND(t *testing.T) {
	p := Combine([]*Predicate{
		Simple("district", Equal, "CAMDEN"),
		Simple("price", GreaterOrEqual, "500000"),
	}, AND)

	match, err := p.Bind(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if !match(rec(t, "CAMDEN", "2024-01-01", 850000)) {
		t.Error("expected both conditions to match")
	}
	if match(rec(t, "CAMDEN", "2024-01-01", 100000)) {
		t.Error("expected price condition to fail")
	}
	if match(rec(t, "SUTTON", "2024-01-01", 850000)) {
		t.Error("expected district condition to fail")
	}
}

func TestBindCombineOR(t *testing.T) {
	p := Combine([]*Predicate{
		Simple("district", Equal, "CAMDEN"),
		Simple("district", Equal, "SUTTON"),
	}, OR)

	match, err := p.Bind(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if !match(rec(t, "CAMDEN", "2024-01-01", 1)) || !match(rec(t, "SUTTON", "2024-01-01", 1)) {
		t.Error("expected either district to match")
	}
	if match(rec(t, "BROMLEY", "2024-01-01", 1)) {
		t.Error("expected BROMLEY not to match")
	}
}

func TestBindNilPredicate(t *testing.T) {
	var p *Predicate
	match, err := p.Bind(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if !match(rec(t, "CAMDEN", "2024-01-01", 1)) {
		t.Error("nil predicate should match everything")
	}
}

func TestCombineSkipsNils(t *testing.T) {
	p := Combine([]*Predicate{nil, Simple("district", Equal, "CAMDEN"), nil}, AND)
	match, err := p.Bind(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if !match(rec(t, "CAMDEN", "2024-01-01", 1)) {
		t.Error("expected single surviving predicate to apply")
	}
}

func TestCombineEmpty(t *testing.T) {
	if p := Combine(nil, AND); p != nil {
		t.Error("expected nil for empty combine")
	}
}

func TestWhereClauseSimple(t *testing.T) {
	sql, args, err := Simple("district", Equal, "CAMDEN").WhereClause(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if sql != "(district = ?)" {
		t.Errorf("expected '(district = ?)', got %q", sql)
	}
	if len(args) != 1 || args[0] != "CAMDEN" {
		t.Errorf("expected args [CAMDEN], got %v", args)
	}
}

func TestWhereClauseLike(t *testing.T) {
	sql, args, err := Simple("district", Like, "HAM").WhereClause(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if sql != "(district LIKE ?)" {
		t.Errorf("unexpected sql: %s", sql)
	}
	if len(args) != 1 || args[0] != "%HAM%" {
		t.Errorf("expected wrapped wildcard arg, got %v", args)
	}
}

func TestWhereClauseDateRange(t *testing.T) {
	sql, args, err := DateRange("date_of_transfer", "2024-01-01", "2024-06-30").WhereClause(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	if sql != "(date_of_transfer BETWEEN ? AND ?)" {
		t.Errorf("unexpected sql: %s", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestWhereClauseComposite(t *testing.T) {
	p := Combine([]*Predicate{
		Simple("district", Equal, "CAMDEN"),
		Simple("price", GreaterOrEqual, "500000"),
		Simple("price", LessOrEqual, "2000000"),
	}, AND)

	sql, args, err := p.WhereClause(testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	want := "(((district = ?) AND (price >= ?)) AND (price <= ?))"
	if sql != want {
		t.Errorf("expected %q, got %q", want, sql)
	}
	if len(args) != 3 {
		t.Errorf("expected 3 args, got %d", len(args))
	}
}

func TestWhereClauseUnknownField(t *testing.T) {
	_, _, err := Simple("borough", Equal, "CAMDEN").WhereClause(testSchema(t))
	if !errors.Is(err, dataset.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestFields(t *testing.T) {
	p := Combine([]*Predicate{
		Simple("district", Equal, "CAMDEN"),
		Simple("price", GreaterOrEqual, "500000"),
		DateRange("date_of_transfer", "2024-01-01", "2024-12-31"),
		Simple("district", NotEqual, "SUTTON"),
	}, AND)

	fields := p.Fields()
	want := map[string]bool{"district": true, "price": true, "date_of_transfer": true}
	if len(fields) != len(want) {
		t.Fatalf("expected %d distinct fields, got %v", len(want), fields)
	}
	for _, f := range fields {
		if !want[f] {
			t.Errorf("unexpected field %s", f)
		}
	}
}
