package csvparser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Header aliases for headered CSV files. Maps possible column names to
// raw column positions, covering both our own export format and the
// column names the Land Registry uses in its documented downloads.
var headerAliases = map[string]int{
	"transaction_id":                colTransactionID,
	"transaction unique identifier": colTransactionID,
	"id":                            colTransactionID,
	"price":                         colPrice,
	"price_paid":                    colPrice,
	"date_of_transfer":              colDate,
	"date of transfer":              colDate,
	"deed_date":                     colDate,
	"date":                          colDate,
	"postcode":                      colPostcode,
	"property_type":                 colPropertyType,
	"property type":                 colPropertyType,
	"old_new":                       colOldNew,
	"old/new":                       colOldNew,
	"district":                      colDistrict,
	"local_authority":               colDistrict,
	"county":                        colCounty,
}

// Essential columns a headered file must carry to be importable.
var requiredColumns = []int{colTransactionID, colPrice, colDate, colPostcode, colDistrict}

// ValidateHeader checks that a headered CSV carries the essential
// transaction columns under recognized names.
func ValidateHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(newNullStripper(f))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	colMap := buildColumnMap(header)
	for _, col := range requiredColumns {
		if _, ok := colMap[col]; !ok {
			return fmt.Errorf("header missing required column (found: %s)",
				strings.Join(header, ", "))
		}
	}
	return nil
}

// buildColumnMap maps raw column positions to source column indices.
// First recognized alias wins for each position.
func buildColumnMap(header []string) map[int]int {
	colMap := make(map[int]int)
	for i, col := range header {
		col = strings.TrimSpace(strings.ToLower(col))
		if pos, ok := headerAliases[col]; ok {
			if _, taken := colMap[pos]; !taken {
				colMap[pos] = i
			}
		}
	}
	return colMap
}

// ReadHeadered reads transactions from a headered CSV file, mapping
// columns by name instead of position. This covers re-imports of our own
// exports and third-party extracts whose column order differs from the
// raw download format. Cleaning, dedup, and filtering match
// ReadTransactions.
func ReadHeadered(path string, dateFrom, dateTo string, limit int, onProgress func(count int)) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return readHeadered(f, dateFrom, dateTo, limit, onProgress)
}

func readHeadered(r io.Reader, dateFrom, dateTo string, limit int, onProgress func(count int)) (*ReadResult, error) {
	reader := csv.NewReader(newNullStripper(r))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	colMap := buildColumnMap(header)
	for _, col := range requiredColumns {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("header missing required column (found: %s)",
				strings.Join(header, ", "))
		}
	}

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

		rec, ok := rowToRecord(rawRow(row, colMap))
		if !ok {
			result.Excluded++
			continue
		}

		id := safeIndex(row, colMap[colTransactionID])
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

// rawRow rearranges a headered row into raw download column positions so
// the positional cleaning path can process it.
func rawRow(row []string, colMap map[int]int) []string {
	raw := make([]string, rawColumnCount)
	for pos, src := range colMap {
		raw[pos] = safeIndex(row, src)
	}
	return raw
}
