package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/spf13/cast"

	"github.com/housepulse/housepulse/internal/dataset"
	"github.com/housepulse/housepulse/internal/engine"
	"github.com/housepulse/housepulse/internal/model"
	"github.com/housepulse/housepulse/internal/query"
)

// Date bounds substituted when only one end of a range is given.
const (
	openDateFrom = "0001-01-01"
	openDateTo   = "9999-12-31"
)

type fieldInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type fieldsResponse struct {
	Fields  []fieldInfo `json:"fields"`
	Buckets []string    `json:"buckets"`
	MinDate string      `json:"min_date,omitempty"`
	MaxDate string      `json:"max_date,omitempty"`
}

// handleFields describes the queryable surface: schema fields, virtual
// time buckets, and the stored date range.
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	resp := fieldsResponse{
		Buckets: []string{dataset.BucketYear, dataset.BucketQuarter, dataset.BucketYearMonth},
	}
	for i := 0; i < s.schema.Len(); i++ {
		f := s.schema.FieldAt(i)
		resp.Fields = append(resp.Fields, fieldInfo{Name: f.Name, Type: f.Type.String()})
	}

	minDate, maxDate, err := s.store.MinMaxDate()
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err)
		return
	}
	resp.MinDate = minDate
	resp.MaxDate = maxDate
	render.JSON(w, r, resp)
}

// parsePredicate builds a filter from URL parameters. Each category field
// of the schema doubles as a parameter name for an equality filter, and
// from/to bound the transfer date.
func (s *Server) parsePredicate(r *http.Request) *query.Predicate {
	var preds []*query.Predicate
	q := r.URL.Query()

	for i := 0; i < s.schema.Len(); i++ {
		f := s.schema.FieldAt(i)
		if f.Type != model.FieldCategory {
			continue
		}
		if v := q.Get(f.Name); v != "" {
			preds = append(preds, query.Simple(f.Name, query.Equal, v))
		}
	}

	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		if from == "" {
			from = openDateFrom
		}
		if to == "" {
			to = openDateTo
		}
		dateField := s.schema.FieldAt(s.schema.DateField()).Name
		preds = append(preds, query.DateRange(dateField, from, to))
	}

	return query.Combine(preds, query.AND)
}

// loadFiltered loads the matching records into an in-memory store.
func (s *Server) loadFiltered(r *http.Request) (*dataset.Store, error) {
	return s.store.LoadDataset(s.parsePredicate(r))
}

func measureParam(r *http.Request) string {
	if m := r.URL.Query().Get("measure"); m != "" {
		return m
	}
	return "price"
}

// groupParams reads the repeatable "group" parameter, also accepting a
// single comma-separated value.
func groupParams(r *http.Request) []string {
	var groups []string
	for _, raw := range r.URL.Query()["group"] {
		for _, g := range strings.Split(raw, ",") {
			if g = strings.TrimSpace(g); g != "" {
				groups = append(groups, g)
			}
		}
	}
	return groups
}

// handleAggregate groups the filtered records and returns one summary row
// per group. With no group parameter it returns a single total row.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	ds, err := s.loadFiltered(r)
	if err != nil {
		renderError(w, r, queryStatus(err), err)
		return
	}

	results, err := engine.Aggregate(ds, groupParams(r), measureParam(r))
	if err != nil {
		renderError(w, r, queryStatus(err), err)
		return
	}
	render.JSON(w, r, results)
}

// bucketSeries aggregates the filtered records by a time bucket and
// extracts one statistic as an ordered series.
func (s *Server) bucketSeries(r *http.Request) (engine.TimeSeries, error) {
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = dataset.BucketYear
	}

	statName := r.URL.Query().Get("stat")
	if statName == "" {
		statName = "mean"
	}
	stat, err := engine.ParseStat(statName)
	if err != nil {
		return nil, err
	}

	ds, err := s.loadFiltered(r)
	if err != nil {
		return nil, err
	}
	results, err := engine.Aggregate(ds, []string{bucket}, measureParam(r))
	if err != nil {
		return nil, err
	}
	return engine.SeriesFrom(results, stat)
}

// handleYearOverYear returns the percentage change of a bucketed statistic
// against the same bucket one year earlier. With skip_zero=true, buckets
// whose base value is zero are omitted instead of failing the request.
func (s *Server) handleYearOverYear(w http.ResponseWriter, r *http.Request) {
	series, err := s.bucketSeries(r)
	if err != nil {
		renderError(w, r, queryStatus(err), err)
		return
	}

	yoy := engine.YearOverYear
	if cast.ToBool(r.URL.Query().Get("skip_zero")) {
		yoy = engine.YearOverYearSkipZero
	}
	out, err := yoy(series)
	if err != nil {
		renderError(w, r, queryStatus(err), err)
		return
	}
	render.JSON(w, r, out)
}

// handleRolling returns the trailing moving average of a bucketed
// statistic. The window parameter is required and must be at least 1.
func (s *Server) handleRolling(w http.ResponseWriter, r *http.Request) {
	window, err := cast.ToIntE(r.URL.Query().Get("window"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, fmt.Errorf("invalid window: %w", err))
		return
	}

	series, err := s.bucketSeries(r)
	if err != nil {
		renderError(w, r, queryStatus(err), err)
		return
	}
	out, err := engine.RollingAverage(series, window)
	if err != nil {
		renderError(w, r, queryStatus(err), err)
		return
	}
	render.JSON(w, r, out)
}

// queryStatus classifies an error as a bad request or a server fault.
func queryStatus(err error) int {
	switch {
	case errors.Is(err, dataset.ErrUnknownField),
		errors.Is(err, dataset.ErrTypeMismatch),
		errors.Is(err, dataset.ErrSchema),
		errors.Is(err, engine.ErrWindowSize),
		errors.Is(err, engine.ErrZeroDenominator),
		errors.Is(err, engine.ErrUnorderedSeries):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
