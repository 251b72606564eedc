package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/housepulse/housepulse/internal/model"
)

// Raw rows follow the Land Registry price paid layout:
// id, price, date, postcode, type, old/new, duration, paon, saon,
// street, locality, town, district, county, ppd category, record status.
const sampleCSV = `"{A1}","850000","2024-01-15 00:00","NW1 8XY","F","N","L","10","","PARK ROAD","","LONDON","CAMDEN","GREATER LONDON","A","A"
"{A2}","500000","2024-02-20 00:00","SM1 1AB","T","N","F","22","","HIGH STREET","","SUTTON","Sutton","GREATER LONDON","A","A"
"{A3}","5000","2024-03-01 00:00","BR1 1AA","D","N","F","3","","OAK LANE","","BROMLEY","BROMLEY","GREATER LONDON","A","A"
"{A4}","750000","2023-06-10 00:00","","S","Y","F","7","","ELM ROAD","","LONDON","CAMDEN","GREATER LONDON","A","A"
"{A1}","850000","2024-01-15 00:00","NW1 8XY","F","N","L","10","","PARK ROAD","","LONDON","CAMDEN","GREATER LONDON","A","A"
"{A5}","2500000","2023-11-05 00:00","W8 5BU","D","N","F","1","","PALACE GREEN","","LONDON","KENSINGTON AND CHELSEA","GREATER LONDON","A","A"
`

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pp-monthly.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadTransactions(t *testing.T) {
	result, err := ReadTransactions(writeTempCSV(t, sampleCSV), "", "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	// A3 (price below bound), A4 (missing postcode), and the duplicate A1
	// are excluded; A1, A2, A5 survive.
	if result.Count != 3 {
		t.Fatalf("expected 3 records, got %d", result.Count)
	}
	if result.Excluded != 3 {
		t.Errorf("expected 3 excluded, got %d", result.Excluded)
	}

	schema := model.TransactionSchema()
	r := result.Records[0]
	if r.Len() != schema.Len() {
		t.Fatalf("record arity %d does not match schema %d", r.Len(), schema.Len())
	}

	get := func(rec model.Record, field string) model.Value {
		t.Helper()
		_, idx, ok := schema.Lookup(field)
		if !ok {
			t.Fatalf("schema missing %s", field)
		}
		return rec.At(idx)
	}

	if got := get(r, "transaction_id").Str; got != "{A1}" {
		t.Errorf("expected {A1}, got %s", got)
	}
	if got := get(r, "price").Num; got != 850000 {
		t.Errorf("expected 850000, got %f", got)
	}
	if got := get(r, "date_of_transfer").Date.String(); got != "2024-01-15" {
		t.Errorf("expected 2024-01-15, got %s", got)
	}
	if got := get(r, "property_type_name").Str; got != "Flat/Maisonette" {
		t.Errorf("expected Flat/Maisonette, got %s", got)
	}
	if got := get(r, "region").Str; got != "Central" {
		t.Errorf("expected Central, got %s", got)
	}
	if got := get(r, "price_band").Str; got != "£750k-£1M" {
		t.Errorf("expected £750k-£1M, got %s", got)
	}

	// District names are upper-cased during cleaning
	if got := get(result.Records[1], "district").Str; got != "SUTTON" {
		t.Errorf("expected SUTTON, got %s", got)
	}

	// Top band classification
	if got := get(result.Records[2], "price_band").Str; got != "Over £2M" {
		t.Errorf("expected Over £2M, got %s", got)
	}
}

func TestReadTransactionsDateFilter(t *testing.T) {
	result, err := ReadTransactions(writeTempCSV(t, sampleCSV), "2024-01-01", "2024-12-31", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Only A1 and A2 fall in 2024
	if result.Count != 2 {
		t.Fatalf("expected 2 records in 2024, got %d", result.Count)
	}
}

func TestReadTransactionsLimit(t *testing.T) {
	result, err := ReadTransactions(writeTempCSV(t, sampleCSV), "", "", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 {
		t.Fatalf("expected limit of 1 record, got %d", result.Count)
	}
}

func TestReadTransactionsBadDate(t *testing.T) {
	bad := `"{B1}","850000","not a date","NW1 8XY","F","N","L","10","","PARK ROAD","","LONDON","CAMDEN","GREATER LONDON","A","A"
`
	result, err := ReadTransactions(writeTempCSV(t, bad), "", "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 0 || result.Excluded != 1 {
		t.Errorf("expected bad date row excluded, got count=%d excluded=%d", result.Count, result.Excluded)
	}
}

func TestReadTransactionsShortRow(t *testing.T) {
	short := `"{C1}","850000","2024-01-15 00:00","NW1 8XY"
`
	result, err := ReadTransactions(writeTempCSV(t, short), "", "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 0 || result.Excluded != 1 {
		t.Errorf("expected short row excluded, got count=%d excluded=%d", result.Count, result.Excluded)
	}
}

func TestReadTransactionsNullBytes(t *testing.T) {
	// Null bytes in the stream are stripped before CSV parsing
	corrupted := strings.ReplaceAll(sampleCSV, `"{A2}"`, "\"{A2}\x00\"")
	result, err := ReadTransactions(writeTempCSV(t, corrupted), "", "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 3 {
		t.Errorf("expected 3 records, got %d", result.Count)
	}
}

func TestWriteTransactions(t *testing.T) {
	result, err := ReadTransactions(writeTempCSV(t, sampleCSV), "", "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "cleaned.csv")
	if err := WriteTransactions(out, result.Records); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 1+result.Count {
		t.Fatalf("expected header plus %d rows, got %d lines", result.Count, len(lines))
	}
	if !strings.HasPrefix(lines[0], "transaction_id,price,date_of_transfer") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "850000") || !strings.Contains(lines[1], "2024-01-15") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
}
