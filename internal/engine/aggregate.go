// Package engine computes grouped summary statistics and derived time
// series over immutable record stores. Every operation is a pure function
// of its inputs: no state is held between calls, so independent
// aggregations and window computations can run concurrently over the
// same store without coordination.
package engine

import (
	"sort"

	"github.com/housepulse/housepulse/internal/dataset"
	"github.com/housepulse/housepulse/internal/model"
)

// AggregateResult is one summary row per distinct group key.
// Count is always >= 1: empty groups are never materialized.
// Mean is derived as Sum/Count at finalization, never computed separately.
type AggregateResult struct {
	Key   model.GroupKey `json:"-"`
	Parts []string       `json:"group"`
	Count int64          `json:"count"`
	Sum   float64        `json:"sum"`
	Mean  float64        `json:"mean"`
	Min   float64        `json:"min"`
	Max   float64        `json:"max"`
}

// accumulator holds the running statistics for one bucket during the
// single-pass scan.
type accumulator struct {
	parts []string
	count int64
	sum   float64
	min   float64
	max   float64
}

// Aggregate computes count/sum/mean/min/max of the measure field for every
// distinct combination of the group-key values. Group keys may be category
// or ID fields, a date field, or virtual time buckets (dataset.BucketYear,
// dataset.BucketQuarter, dataset.BucketYearMonth). An empty groupKeys list
// aggregates the whole store into a single row.
//
// Field references are validated before any work happens: an unknown group
// key fails with dataset.ErrUnknownField and a non-measure measure field
// fails with dataset.ErrTypeMismatch. An empty store yields an empty slice.
//
// Results are sorted by group key so the output is deterministic, but
// callers must not rely on any particular ordering beyond that; sum, min,
// and max are commutative, so the values are identical for any permutation
// of the input records.
func Aggregate(store *dataset.Store, groupKeys []string, measure string) ([]AggregateResult, error) {
	measureIdx, err := store.MeasureIndex(measure)
	if err != nil {
		return nil, err
	}
	keyFuncs := make([]func(model.Record) string, len(groupKeys))
	for i, name := range groupKeys {
		kf, err := store.KeyFunc(name)
		if err != nil {
			return nil, err
		}
		keyFuncs[i] = kf
	}

	buckets := make(map[model.GroupKey]*accumulator)
	parts := make([]string, len(keyFuncs))

	for i := 0; i < store.Len(); i++ {
		r := store.Record(i)
		for j, kf := range keyFuncs {
			parts[j] = kf(r)
		}
		key := model.MakeGroupKey(parts)
		v := r.At(measureIdx).Num

		acc, ok := buckets[key]
		if !ok {
			acc = &accumulator{
				parts: append([]string(nil), parts...),
				min:   v,
				max:   v,
			}
			buckets[key] = acc
		} else {
			if v < acc.min {
				acc.min = v
			}
			if v > acc.max {
				acc.max = v
			}
		}
		acc.count++
		acc.sum += v
	}

	results := make([]AggregateResult, 0, len(buckets))
	for key, acc := range buckets {
		results = append(results, AggregateResult{
			Key:   key,
			Parts: acc.parts,
			Count: acc.count,
			Sum:   acc.sum,
			Mean:  acc.sum / float64(acc.count),
			Min:   acc.min,
			Max:   acc.max,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}
