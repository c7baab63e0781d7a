package climatology

import (
	"database/sql"
	"math"
)

// Category is one of the seven ordered answer bins, coldest to hottest.
type Category int

const (
	BloodyCold Category = iota
	ReallyCold
	Cold
	Average
	Hot
	ReallyHot
	BloodyHot
)

// Sentinel bounds closing the classification scale. No plausible screen-level
// air temperature falls outside them, which makes classification total.
const (
	ScaleMin = -100.0
	ScaleMax = 100.0
)

var categoryText = [...]struct {
	code    string
	answer  string
	comment string
}{
	BloodyCold: {"bc", "Hell no!", "It's bloody cold"},
	ReallyCold: {"rc", "No!", "It's really cold"},
	Cold:       {"c", "No", "It's colder than average"},
	Average:    {"a", "Not really", "It's about average"},
	Hot:        {"h", "Yup", "It's warmer than average"},
	ReallyHot:  {"rh", "Yeah!", "It's really hot"},
	BloodyHot:  {"bh", "Hell yeah!", "It's bloody hot"},
}

func (c Category) String() string  { return categoryText[c].code }
func (c Category) Answer() string  { return categoryText[c].answer }
func (c Category) Comment() string { return categoryText[c].comment }

// Breakpoints returns the full break vector [-100, p5, p10, p40, p60, p90,
// p95, 100]. The median is deliberately excluded: six cutpoints yield seven
// bins, while p50 stays in the table for display.
func Breakpoints(cuts Cutpoints) []float64 {
	return []float64{ScaleMin, cuts.P5, cuts.P10, cuts.P40, cuts.P60, cuts.P90, cuts.P95, ScaleMax}
}

// Classify maps today's Tavg to a category using half-open, left-closed
// intervals over the six classification cutpoints: a Tavg exactly equal to a
// cutpoint belongs to the bin that starts there. Missing Tavg returns
// ErrMissingCurrentObservation and no category.
func Classify(tavg sql.NullFloat64, cuts Cutpoints) (Category, error) {
	if !tavg.Valid {
		return 0, ErrMissingCurrentObservation
	}

	bin := 0
	for _, cut := range []float64{cuts.P5, cuts.P10, cuts.P40, cuts.P60, cuts.P90, cuts.P95} {
		if tavg.Float64 >= cut {
			bin++
		}
	}
	return Category(bin), nil
}

// AveragePercent is the empirical-CDF percentile rank of today's Tavg against
// the station's full historical Tavg sample, as a whole percent. Today's value
// joins the pool it is ranked against (in memory only, never written back), so
// the result is the rank today would take among n+1 days. Independent of the
// classification bins.
func AveragePercent(sample []float64, tavg float64) int {
	rank := 1
	for _, v := range sample {
		if v <= tavg {
			rank++
		}
	}
	return int(math.Round(float64(rank) / float64(len(sample)+1) * 100))
}
