package regression

import "math"

// Point is one chart coordinate (X observed, Y predicted).
type Point struct{ X, Y float64 }

// Overlay holds the 1:1 line and the fitted line evaluated at the minimum and
// maximum of all predicted and observed values. It is used for plotting only.
type Overlay struct {
	OneToOne   [2]Point
	Regression [2]Point
}

// MinMaxLine builds the overlay for s over the combined range of predicted
// and observed. NaN values are ignored. It reports false when s is nil or no
// finite value exists.
func MinMaxLine(s *Stats, predicted, observed []float64) (Overlay, bool) {
	if s == nil {
		return Overlay{}, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, series := range [][]float64{predicted, observed} {
		for _, v := range series {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return Overlay{}, false
	}
	return Overlay{
		OneToOne:   [2]Point{{lo, lo}, {hi, hi}},
		Regression: [2]Point{{lo, s.Slope*lo + s.Intercept}, {hi, s.Slope*hi + s.Intercept}},
	}, true
}

// Refit recovers slope and intercept from the two regression points.
// Both are NaN when the range is a single point.
func (o Overlay) Refit() (slope, intercept float64) {
	a, b := o.Regression[0], o.Regression[1]
	if a.X == b.X {
		return math.NaN(), math.NaN()
	}
	slope = (b.Y - a.Y) / (b.X - a.X)
	return slope, a.Y - slope*a.X
}
