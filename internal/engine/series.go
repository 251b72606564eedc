package engine

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrZeroDenominator indicates a year-over-year computation found a
	// prior-year value of exactly zero.
	ErrZeroDenominator = errors.New("prior-year value is zero")

	// ErrUnorderedSeries indicates a time series violated the
	// strictly-increasing, no-duplicate-bucket invariant.
	ErrUnorderedSeries = errors.New("series buckets are not strictly increasing")

	// ErrWindowSize indicates a non-positive rolling window size.
	ErrWindowSize = errors.New("window size must be positive")
)

// Point is one (time bucket, value) pair in a series.
type Point struct {
	Bucket string  `json:"bucket"`
	Value  float64 `json:"value"`
}

// TimeSeries is an ordered sequence of points, strictly increasing by
// bucket with no duplicates. Gaps are represented by omission, never by
// placeholder entries, so consumers must handle non-contiguous buckets.
//
// Buckets are the zero-padded forms the dataset package produces ("2024",
// "2024-03", "2024-Q1", "2024-03-15"), which order correctly as strings.
type TimeSeries []Point

// validate checks the ordering invariant.
func (ts TimeSeries) validate() error {
	for i := 1; i < len(ts); i++ {
		if ts[i].Bucket <= ts[i-1].Bucket {
			return fmt.Errorf("%w: %q follows %q", ErrUnorderedSeries, ts[i].Bucket, ts[i-1].Bucket)
		}
	}
	return nil
}

// priorYearBucket rewrites a bucket label to the same bucket one year
// earlier: "2024" → "2023", "2024-03" → "2023-03", "2024-Q1" → "2023-Q1".
// Returns false for labels that do not start with a four-digit year.
func priorYearBucket(bucket string) (string, bool) {
	if len(bucket) < 4 {
		return "", false
	}
	year, err := strconv.Atoi(bucket[:4])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%04d%s", year-1, bucket[4:]), true
}

// YearOverYear computes the percentage change of each bucket against the
// matching bucket one year earlier: (current - prior) / prior * 100.
// Buckets with no prior-year entry in the input are omitted from the
// output, never emitted as zero. A prior value of exactly zero fails with
// ErrZeroDenominator; use YearOverYearSkipZero to omit those buckets
// instead.
func YearOverYear(series TimeSeries) (TimeSeries, error) {
	return yearOverYear(series, false)
}

// YearOverYearSkipZero is YearOverYear with zero-denominator buckets
// omitted rather than failing the whole computation.
func YearOverYearSkipZero(series TimeSeries) (TimeSeries, error) {
	return yearOverYear(series, true)
}

func yearOverYear(series TimeSeries, skipZero bool) (TimeSeries, error) {
	if err := series.validate(); err != nil {
		return nil, err
	}

	// The series is ordered, so a prior-year bucket always appears before
	// the bucket that joins to it; one forward scan suffices.
	seen := make(map[string]float64, len(series))
	var out TimeSeries
	for _, p := range series {
		prior, ok := priorYearBucket(p.Bucket)
		if ok {
			if base, present := seen[prior]; present {
				if base == 0 {
					if !skipZero {
						return nil, fmt.Errorf("%w: bucket %q", ErrZeroDenominator, p.Bucket)
					}
				} else {
					out = append(out, Point{
						Bucket: p.Bucket,
						Value:  (p.Value - base) / base * 100,
					})
				}
			}
		}
		seen[p.Bucket] = p.Value
	}
	return out, nil
}

// RollingAverage computes the trailing moving average of the given window
// size. The output holds one point per input position at which a full
// window is available, labelled with the bucket at the window's end;
// positions before the first full window are omitted, not zero-padded.
// Output length is max(0, len(series)-window+1).
func RollingAverage(series TimeSeries, window int) (TimeSeries, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: %d", ErrWindowSize, window)
	}
	if err := series.validate(); err != nil {
		return nil, err
	}
	if len(series) < window {
		return nil, nil
	}

	out := make(TimeSeries, 0, len(series)-window+1)
	var sum float64
	for i, p := range series {
		sum += p.Value
		if i >= window {
			sum -= series[i-window].Value
		}
		if i >= window-1 {
			out = append(out, Point{Bucket: p.Bucket, Value: sum / float64(window)})
		}
	}
	return out, nil
}

// Stat selects which aggregate statistic feeds a derived time series.
type Stat int

const (
	StatCount Stat = iota
	StatSum
	StatMean
	StatMin
	StatMax
)

// ParseStat maps a statistic name to its Stat value.
func ParseStat(name string) (Stat, error) {
	switch name {
	case "count":
		return StatCount, nil
	case "sum":
		return StatSum, nil
	case "mean", "avg":
		return StatMean, nil
	case "min":
		return StatMin, nil
	case "max":
		return StatMax, nil
	default:
		return 0, fmt.Errorf("unknown statistic: %s", name)
	}
}

func (s Stat) String() string {
	switch s {
	case StatCount:
		return "count"
	case StatSum:
		return "sum"
	case StatMean:
		return "mean"
	case StatMin:
		return "min"
	case StatMax:
		return "max"
	default:
		return fmt.Sprintf("Stat(%d)", int(s))
	}
}

// SeriesFrom turns time-bucketed aggregate rows into a TimeSeries carrying
// the chosen statistic. The results must come from a single-group-key
// aggregation whose key is a time bucket; multi-part keys are rejected.
// Aggregate output is already sorted by key, so the resulting series
// satisfies the ordering invariant.
func SeriesFrom(results []AggregateResult, stat Stat) (TimeSeries, error) {
	series := make(TimeSeries, 0, len(results))
	for _, r := range results {
		if len(r.Parts) != 1 {
			return nil, fmt.Errorf("series needs single-part group keys, got %d parts", len(r.Parts))
		}
		var v float64
		switch stat {
		case StatCount:
			v = float64(r.Count)
		case StatSum:
			v = r.Sum
		case StatMean:
			v = r.Mean
		case StatMin:
			v = r.Min
		case StatMax:
			v = r.Max
		default:
			return nil, fmt.Errorf("unknown statistic: %v", stat)
		}
		series = append(series, Point{Bucket: r.Parts[0], Value: v})
	}
	if err := series.validate(); err != nil {
		return nil, err
	}
	return series, nil
}
