package ingest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Digest summarizes a numeric series with the descriptive statistics the
// stats widgets render. Variance is the sample variance. Returns nil for an
// empty series.
func Digest(series []float64) map[string]interface{} {
	if len(series) == 0 {
		return nil
	}

	variance := 0.0
	if len(series) > 1 {
		variance = stat.Variance(series, nil)
	}

	return map[string]interface{}{
		"count":    len(series),
		"mean":     stat.Mean(series, nil),
		"median":   median(series),
		"stddev":   math.Sqrt(variance),
		"variance": variance,
		"min":      floats.Min(series),
		"max":      floats.Max(series),
	}
}

func median(series []float64) float64 {
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
