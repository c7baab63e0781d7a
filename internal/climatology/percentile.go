package climatology

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/heatcheck/internal/models"
)

// Quantiles is the fixed sequence estimated for every variable. The 50th
// percentile is included for display but never used as a classification break.
var Quantiles = []float64{0.05, 0.10, 0.40, 0.50, 0.60, 0.90, 0.95}

// QuantileLabels are the display keys for the table, aligned with Quantiles.
var QuantileLabels = []string{"5%", "10%", "40%", "50%", "60%", "90%", "95%"}

// Cutpoints holds the estimated quantiles for one variable, in the order of
// Quantiles. Values are non-decreasing by construction.
type Cutpoints struct {
	P5, P10, P40, P50, P60, P90, P95 float64
}

// Sequence returns the cutpoints in quantile order, for display and for
// monotonicity checks.
func (c Cutpoints) Sequence() []float64 {
	return []float64{c.P5, c.P10, c.P40, c.P50, c.P60, c.P90, c.P95}
}

// PercentileTable holds per-variable cutpoints over a windowed historical
// sample. A variable with fewer than two non-missing observations is nil.
type PercentileTable struct {
	TempMax *Cutpoints
	TempMin *Cutpoints
	TempAvg *Cutpoints
}

// Display flattens the table into quantile-label -> variable -> cutpoint form
// for the stats output consumed by the distribution plot.
func (t PercentileTable) Display() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(QuantileLabels))
	for i, label := range QuantileLabels {
		row := make(map[string]float64, 3)
		if t.TempMax != nil {
			row["Tmax"] = t.TempMax.Sequence()[i]
		}
		if t.TempMin != nil {
			row["Tmin"] = t.TempMin.Sequence()[i]
		}
		if t.TempAvg != nil {
			row["Tavg"] = t.TempAvg.Sequence()[i]
		}
		out[label] = row
	}
	return out
}

// ComputeTable estimates the quantile table over a windowed historical sample,
// independently per variable. Missing observations are excluded from each
// variable's sample, not zero-filled. A variable whose sample shrinks below
// two values is left nil rather than failing the whole table; the caller
// decides which variables it needs.
func ComputeTable(window []models.DailyObservation) PercentileTable {
	var tmax, tmin, tavg []float64
	for _, day := range window {
		if day.TempMax.Valid {
			tmax = append(tmax, day.TempMax.Float64)
		}
		if day.TempMin.Valid {
			tmin = append(tmin, day.TempMin.Float64)
		}
		if day.TempAvg.Valid {
			tavg = append(tavg, day.TempAvg.Float64)
		}
	}
	return PercentileTable{
		TempMax: computeCutpoints(tmax),
		TempMin: computeCutpoints(tmin),
		TempAvg: computeCutpoints(tavg),
	}
}

func computeCutpoints(sample []float64) *Cutpoints {
	if len(sample) < 2 {
		return nil
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	return &Cutpoints{
		P5:  Quantile(sorted, 0.05),
		P10: Quantile(sorted, 0.10),
		P40: Quantile(sorted, 0.40),
		P50: Quantile(sorted, 0.50),
		P60: Quantile(sorted, 0.60),
		P90: Quantile(sorted, 0.90),
		P95: Quantile(sorted, 0.95),
	}
}

// Quantile estimates the q-th quantile of a sorted sample by linear
// interpolation between order statistics (h = (n-1)q), the same estimator as
// R's type 7 and NumPy's default, so cutpoints reproduce bit-for-bit.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// CutpointsFor returns the cutpoints for a named variable, or
// ErrInsufficientData if that variable's sample was too small.
func (t PercentileTable) CutpointsFor(variable string) (*Cutpoints, error) {
	var c *Cutpoints
	switch variable {
	case "Tmax":
		c = t.TempMax
	case "Tmin":
		c = t.TempMin
	case "Tavg":
		c = t.TempAvg
	default:
		return nil, fmt.Errorf("unknown variable %q", variable)
	}
	if c == nil {
		return nil, fmt.Errorf("variable %s: %w", variable, ErrInsufficientData)
	}
	return c, nil
}
