// Package csvparser reads Land Registry price paid CSV files into cleaned
// transaction records. The raw files are headerless; the column layout is
// fixed by the Land Registry download format. Cleaning mirrors the
// preparation the analyses expect: rows missing essential fields or with
// implausible prices are excluded (and counted), district names are
// normalised, and the derived category columns (property type name, region,
// price band) are attached.
package csvparser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/housepulse/housepulse/internal/model"
)

// Raw price paid column positions, per the Land Registry download format.
const (
	colTransactionID = 0
	colPrice         = 1
	colDate          = 2
	colPostcode      = 3
	colPropertyType  = 4
	colOldNew        = 5
	colDistrict      = 12
	colCounty        = 13
)

// rawColumnCount is the number of columns in a raw price paid row.
const rawColumnCount = 16

// Price bounds for outlier removal. Transactions outside this range are
// data-entry noise or non-market transfers.
const (
	minPrice = 10_000
	maxPrice = 50_000_000
)

// ReadResult contains the outcome of a CSV import operation.
type ReadResult struct {
	Records  []model.Record
	Count    int
	Excluded int
}

// ReadTransactions reads and cleans all transactions from a raw price paid
// CSV file, producing records in model.TransactionSchema order.
// Optionally filters by transfer date range (pass empty strings to skip)
// and limits the number of records (pass 0 for no limit). Duplicate
// transaction IDs are kept first-wins. An onProgress callback is called
// every 10,000 accepted records if non-nil.
func ReadTransactions(path string, dateFrom, dateTo string, limit int, onProgress func(count int)) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return readTransactions(f, dateFrom, dateTo, limit, onProgress)
}

func readTransactions(r io.Reader, dateFrom, dateTo string, limit int, onProgress func(count int)) (*ReadResult, error) {
	reader := csv.NewReader(newNullStripper(r))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable field counts

	filterByDate := dateFrom != "" && dateTo != ""
	seen := make(map[string]bool)
	result := &ReadResult{}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", result.Count+result.Excluded+1, err)
		}

		if limit > 0 && result.Count >= limit {
			break
		}

		rec, ok := rowToRecord(row)
		if !ok {
			result.Excluded++
			continue
		}

		id := safeIndex(row, colTransactionID)
		if seen[id] {
			result.Excluded++
			continue
		}
		seen[id] = true

		if filterByDate {
			date := rec.At(dateFieldIndex).Date.String()
			if date < dateFrom || date > dateTo {
				result.Excluded++
				continue
			}
		}

		result.Records = append(result.Records, rec)
		result.Count++

		if onProgress != nil && result.Count%10000 == 0 {
			onProgress(result.Count)
		}
	}

	return result, nil
}

// dateFieldIndex is the position of date_of_transfer in the cleaned
// transaction schema.
var dateFieldIndex = func() int {
	_, idx, ok := model.TransactionSchema().Lookup("date_of_transfer")
	if !ok {
		panic("transaction schema missing date_of_transfer")
	}
	return idx
}()

// rowToRecord converts one raw price paid row into a cleaned transaction
// record. Returns false for rows that fail cleaning: too few columns,
// missing essential fields, unparseable dates, or prices outside the
// plausible range.
func rowToRecord(row []string) (model.Record, bool) {
	if len(row) < rawColumnCount {
		return model.Record{}, false
	}

	id := strings.TrimSpace(safeIndex(row, colTransactionID))
	postcode := strings.TrimSpace(safeIndex(row, colPostcode))
	district := strings.ToUpper(strings.TrimSpace(safeIndex(row, colDistrict)))
	if id == "" || postcode == "" || district == "" {
		return model.Record{}, false
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(safeIndex(row, colPrice)), 64)
	if err != nil || price < minPrice || price > maxPrice {
		return model.Record{}, false
	}

	date, err := model.ParseDate(safeIndex(row, colDate))
	if err != nil {
		return model.Record{}, false
	}

	ptype := strings.TrimSpace(safeIndex(row, colPropertyType))

	return model.NewRecord(
		model.StringValue(id),
		model.NumberValue(price),
		model.DateValue(date),
		model.StringValue(postcode),
		model.StringValue(ptype),
		model.StringValue(model.PropertyTypeName(ptype)),
		model.StringValue(strings.TrimSpace(safeIndex(row, colOldNew))),
		model.StringValue(district),
		model.StringValue(strings.ToUpper(strings.TrimSpace(safeIndex(row, colCounty)))),
		model.StringValue(model.Region(district)),
		model.StringValue(model.PriceBand(price)),
	), true
}

// WriteTransactions writes cleaned transaction records to a CSV file with
// a header row, in transaction schema order. This is the export format the
// summary consumers read.
func WriteTransactions(path string, records []model.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	schema := model.TransactionSchema()
	if err := writer.Write(schema.Names()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range records {
		row := make([]string, schema.Len())
		for i := 0; i < schema.Len(); i++ {
			switch schema.FieldAt(i).Type {
			case model.FieldMeasure:
				row[i] = strconv.FormatFloat(r.At(i).Num, 'f', -1, 64)
			case model.FieldDate:
				row[i] = r.At(i).Date.String()
			default:
				row[i] = r.At(i).Str
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	return nil
}

// safeIndex returns the value at index i, or empty string if out of bounds.
func safeIndex(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// nullStripper wraps a reader and strips null bytes from the stream.
// Raw downloads occasionally contain them and they break csv.Reader.
type nullStripper struct {
	r io.Reader
}

func newNullStripper(r io.Reader) io.Reader {
	return &nullStripper{r: r}
}

func (ns *nullStripper) Read(p []byte) (int, error) {
	n, err := ns.r.Read(p)
	if n > 0 {
		cleaned := strings.ReplaceAll(string(p[:n]), "\x00", "")
		copy(p, cleaned)
		n = len(cleaned)
	}
	return n, err
}
