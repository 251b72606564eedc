// Package jsonlparser reads transactions from JSON Lines files, one JSON
// object per line. This is the interchange format exported by scraping
// and enrichment jobs upstream of the store. Field typing is loose: price
// may arrive as a number or a string, and unknown keys are ignored.
// Cleaning matches the CSV path: rows missing essential fields or with
// implausible prices are excluded and counted, and the derived category
// columns are attached.
package jsonlparser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/housepulse/housepulse/internal/model"
)

// ReadResult contains the outcome of a JSONL import operation.
type ReadResult struct {
	Records  []model.Record
	Count    int
	Excluded int
}

// Price bounds for outlier removal, matching the CSV import path.
const (
	minPrice = 10_000
	maxPrice = 50_000_000
)

// jsonTransaction is the loose wire shape of one line. Upstream jobs vary
// in how they type and name fields, so several aliases are accepted.
type jsonTransaction struct {
	TransactionID string      `json:"transaction_id"`
	ID            string      `json:"id"`
	Price         interface{} `json:"price"`
	Date          string      `json:"date_of_transfer"`
	DateAlt       string      `json:"date"`
	Postcode      string      `json:"postcode"`
	PropertyType  string      `json:"property_type"`
	OldNew        string      `json:"old_new"`
	District      string      `json:"district"`
	County        string      `json:"county"`
}

// ReadTransactions reads and cleans all transactions from a JSONL file,
// producing records in model.TransactionSchema order. Optionally filters
// by transfer date range (pass empty strings to skip) and limits the
// number of records (pass 0 for no limit). Duplicate transaction IDs are
// kept first-wins. An onProgress callback is called every 10,000 accepted
// records if non-nil.
func ReadTransactions(path string, dateFrom, dateTo string, limit int, onProgress func(count int)) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return readTransactions(f, dateFrom, dateTo, limit, onProgress)
}

func readTransactions(r io.Reader, dateFrom, dateTo string, limit int, onProgress func(count int)) (*ReadResult, error) {
	scanner := bufio.NewScanner(r)
	// Lines are small but allow for verbose upstream exports.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	filterByDate := dateFrom != "" && dateTo != ""
	seen := make(map[string]bool)
	result := &ReadResult{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if limit > 0 && result.Count >= limit {
			break
		}

		var tx jsonTransaction
		if err := json.Unmarshal([]byte(line), &tx); err != nil {
			result.Excluded++
			continue
		}

		rec, id, ok := txToRecord(tx)
		if !ok {
			result.Excluded++
			continue
		}

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
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
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

// txToRecord converts one parsed line into a cleaned transaction record
// and its transaction ID. Returns false for lines that fail cleaning.
func txToRecord(tx jsonTransaction) (model.Record, string, bool) {
	id := strings.TrimSpace(tx.TransactionID)
	if id == "" {
		id = strings.TrimSpace(tx.ID)
	}
	postcode := strings.TrimSpace(tx.Postcode)
	district := strings.ToUpper(strings.TrimSpace(tx.District))
	if id == "" || postcode == "" || district == "" {
		return model.Record{}, "", false
	}

	price, ok := toFloat(tx.Price)
	if !ok || price < minPrice || price > maxPrice {
		return model.Record{}, "", false
	}

	rawDate := tx.Date
	if rawDate == "" {
		rawDate = tx.DateAlt
	}
	date, err := model.ParseDate(rawDate)
	if err != nil {
		return model.Record{}, "", false
	}

	ptype := strings.TrimSpace(tx.PropertyType)

	return model.NewRecord(
		model.StringValue(id),
		model.NumberValue(price),
		model.DateValue(date),
		model.StringValue(postcode),
		model.StringValue(ptype),
		model.StringValue(model.PropertyTypeName(ptype)),
		model.StringValue(strings.TrimSpace(tx.OldNew)),
		model.StringValue(district),
		model.StringValue(strings.ToUpper(strings.TrimSpace(tx.County))),
		model.StringValue(model.Region(district)),
		model.StringValue(model.PriceBand(price)),
	), id, true
}

// toFloat coerces a loosely typed price to a float64.
func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
