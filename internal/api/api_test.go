package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/housepulse/housepulse/internal/database"
	"github.com/housepulse/housepulse/internal/engine"
	"github.com/housepulse/housepulse/internal/model"
)

func txRecord(id string, price float64, date, district, propertyType string) model.Record {
	d, err := model.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return model.NewRecord(
		model.StringValue(id),
		model.NumberValue(price),
		model.DateValue(d),
		model.StringValue("SW1A 1AA"),
		model.StringValue(propertyType),
		model.StringValue(model.PropertyTypeName(propertyType)),
		model.StringValue("N"),
		model.StringValue(district),
		model.StringValue("GREATER LONDON"),
		model.StringValue(model.Region(district)),
		model.StringValue(model.PriceBand(price)),
	)
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.CreateSQLite(filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	records := []model.Record{
		txRecord("T1", 800000, "2023-04-10", "CAMDEN", "F"),
		txRecord("T2", 850000, "2024-04-12", "CAMDEN", "F"),
		txRecord("T3", 400000, "2024-04-20", "SUTTON", "T"),
		txRecord("T4", 440000, "2024-05-02", "SUTTON", "T"),
	}
	_, err = db.InsertRecords(records, nil)
	require.NoError(t, err)

	return NewServer(db).Router()
}

func doGet(t *testing.T, router http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := doGet(t, testRouter(t), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestFields(t *testing.T) {
	w := doGet(t, testRouter(t), "/api/fields")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Fields []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
		Buckets []string `json:"buckets"`
		MinDate string   `json:"min_date"`
		MaxDate string   `json:"max_date"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Len(t, resp.Fields, model.TransactionSchema().Len())
	assert.Contains(t, resp.Buckets, "year")
	assert.Contains(t, resp.Buckets, "quarter")
	assert.Contains(t, resp.Buckets, "year_month")
	assert.Equal(t, "2023-04-10", resp.MinDate)
	assert.Equal(t, "2024-05-02", resp.MaxDate)
}

func TestAggregateByDistrict(t *testing.T) {
	w := doGet(t, testRouter(t), "/api/aggregate?group=district&measure=price")
	require.Equal(t, http.StatusOK, w.Code)

	var results []engine.AggregateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)

	// Results are sorted by group key.
	assert.Equal(t, []string{"CAMDEN"}, results[0].Parts)
	assert.Equal(t, int64(2), results[0].Count)
	assert.Equal(t, 1650000.0, results[0].Sum)
	assert.Equal(t, 825000.0, results[0].Mean)

	assert.Equal(t, []string{"SUTTON"}, results[1].Parts)
	assert.Equal(t, 420000.0, results[1].Mean)
}

func TestAggregateWithFilters(t *testing.T) {
	w := doGet(t, testRouter(t), "/api/aggregate?group=district&district=CAMDEN&from=2024-01-01")
	require.Equal(t, http.StatusOK, w.Code)

	var results []engine.AggregateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Count)
	assert.Equal(t, 850000.0, results[0].Sum)
}

func TestAggregateTotalRow(t *testing.T) {
	w := doGet(t, testRouter(t), "/api/aggregate")
	require.Equal(t, http.StatusOK, w.Code)

	var results []engine.AggregateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, int64(4), results[0].Count)
}

func TestAggregateUnknownField(t *testing.T) {
	w := doGet(t, testRouter(t), "/api/aggregate?group=bogus")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "bogus")
}

func TestYearOverYearSeries(t *testing.T) {
	w := doGet(t, testRouter(t), "/api/series/yoy?bucket=year&district=CAMDEN&stat=mean")
	require.Equal(t, http.StatusOK, w.Code)

	var series engine.TimeSeries
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	require.Len(t, series, 1)
	assert.Equal(t, "2024", series[0].Bucket)
	assert.InDelta(t, 6.25, series[0].Value, 1e-9)
}

func TestRollingSeries(t *testing.T) {
	w := doGet(t, testRouter(t), "/api/series/rolling?bucket=year_month&district=SUTTON&stat=mean&window=2")
	require.Equal(t, http.StatusOK, w.Code)

	var series engine.TimeSeries
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	require.Len(t, series, 1)
	assert.Equal(t, "2024-05", series[0].Bucket)
	assert.InDelta(t, 420000, series[0].Value, 1e-9)
}

func TestRollingWindowValidation(t *testing.T) {
	router := testRouter(t)

	w := doGet(t, router, "/api/series/rolling?bucket=year&window=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(t, router, "/api/series/rolling?bucket=year&window=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
