// Package regression fits predicted against observed values by ordinary least
// squares and reports goodness-of-fit statistics.
package regression

import (
	"math"
	"sort"
)

// Stats is the fit of one (predicted, observed) series pair.
type Stats struct {
	Name        string
	N           int
	Slope       float64
	Intercept   float64
	SEslope     float64
	SEintercept float64
	R2          float64
	RMSE        float64
	NSE         float64
	ME          float64
	MAE         float64
	RSR         float64
}

// Stat names one reported statistic and reads it from a Stats record.
type Stat struct {
	Name  string
	Value func(*Stats) float64
}

// StatList is the ordered set of statistics reported per variable.
var StatList = []Stat{
	{"n", func(s *Stats) float64 { return float64(s.N) }},
	{"Slope", func(s *Stats) float64 { return s.Slope }},
	{"Intercept", func(s *Stats) float64 { return s.Intercept }},
	{"SEslope", func(s *Stats) float64 { return s.SEslope }},
	{"SEintercept", func(s *Stats) float64 { return s.SEintercept }},
	{"R2", func(s *Stats) float64 { return s.R2 }},
	{"RMSE", func(s *Stats) float64 { return s.RMSE }},
	{"NSE", func(s *Stats) float64 { return s.NSE }},
	{"ME", func(s *Stats) float64 { return s.ME }},
	{"MAE", func(s *Stats) float64 { return s.MAE }},
	{"RSR", func(s *Stats) float64 { return s.RSR }},
}

type pair struct{ o, p float64 }

// Compute fits predicted = Slope*observed + Intercept.
//
// It returns nil when the series are empty, differ in length, or contain no
// pair where both values are present. Pairs with a NaN on either side are
// excluded before fitting. Degenerate inputs (e.g. constant observed values)
// yield NaN for the affected fields rather than an error.
func Compute(name string, predicted, observed []float64) *Stats {
	if len(predicted) == 0 || len(predicted) != len(observed) {
		return nil
	}
	pairs := make([]pair, 0, len(predicted))
	for i := range predicted {
		if math.IsNaN(predicted[i]) || math.IsNaN(observed[i]) {
			continue
		}
		pairs = append(pairs, pair{o: observed[i], p: predicted[i]})
	}
	if len(pairs) == 0 {
		return nil
	}
	// Summing in a canonical order makes the result independent of input order.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].o == pairs[j].o {
			return pairs[i].p < pairs[j].p
		}
		return pairs[i].o < pairs[j].o
	})

	n := float64(len(pairs))
	var sumO, sumP float64
	for _, x := range pairs {
		sumO += x.o
		sumP += x.p
	}
	meanO, meanP := sumO/n, sumP/n

	var sxx, syy, sxy, sse, sumDiff, sumAbs float64
	for _, x := range pairs {
		do, dp := x.o-meanO, x.p-meanP
		sxx += do * do
		syy += dp * dp
		sxy += do * dp
		d := x.p - x.o
		sse += d * d
		sumDiff += d
		sumAbs += math.Abs(d)
	}

	s := &Stats{Name: name, N: len(pairs)}
	s.Slope = div(sxy, sxx)
	s.Intercept = meanP - s.Slope*meanO
	s.R2 = div(sxy*sxy, sxx*syy)
	s.RMSE = math.Sqrt(sse / n)
	s.NSE = 1 - div(sse, sxx)
	s.ME = sumDiff / n
	s.MAE = sumAbs / n
	s.RSR = math.NaN()
	if len(pairs) > 1 {
		s.RSR = div(s.RMSE, math.Sqrt(sxx/(n-1)))
	}

	s.SEslope, s.SEintercept = math.NaN(), math.NaN()
	if len(pairs) > 2 && sxx > 0 {
		var ssr float64
		for _, x := range pairs {
			r := x.p - (s.Intercept + s.Slope*x.o)
			ssr += r * r
		}
		se := math.Sqrt(ssr / (n - 2))
		s.SEslope = se / math.Sqrt(sxx)
		s.SEintercept = se * math.Sqrt(1/n+meanO*meanO/sxx)
	}
	return s
}

func div(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}
