package report

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/KaramelBytes/predobs-cli/internal/regression"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoPoints is returned when a plot has no finite predicted/observed pair.
var ErrNoPoints = errors.New("no points to plot")

// pointStyle renders points only, without connecting lines. A zero stroke
// width would inherit the series default, so the stroke is disabled outright.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color, dashed bool) chart.Style {
	st := chart.Style{StrokeWidth: 1.5, StrokeColor: col}
	if dashed {
		st.StrokeDashArray = []float64{5, 5}
	}
	return st
}

// Scatter renders observed (x) against predicted (y) as a PNG, with the 1:1
// line and the fitted regression line over the data range.
func Scatter(title, variable string, predicted, observed []float64, s *regression.Stats) ([]byte, error) {
	var xs, ys []float64
	for i := range predicted {
		if i >= len(observed) || !finite(predicted[i]) || !finite(observed[i]) {
			continue
		}
		xs = append(xs, observed[i])
		ys = append(ys, predicted[i])
	}
	if len(xs) == 0 {
		return nil, ErrNoPoints
	}
	if s == nil {
		s = regression.Compute(variable, ys, xs)
	}

	series := []chart.Series{
		chart.ContinuousSeries{Name: "Points", XValues: xs, YValues: ys, Style: pointStyle(chart.ColorBlue)},
	}
	lo, hi := bounds(xs, ys)
	if ov, ok := regression.MinMaxLine(s, ys, xs); ok {
		lo, hi = ov.OneToOne[0].X, ov.OneToOne[1].X
		series = append(series, chart.ContinuousSeries{
			Name:    "1:1",
			XValues: []float64{ov.OneToOne[0].X, ov.OneToOne[1].X},
			YValues: []float64{ov.OneToOne[0].Y, ov.OneToOne[1].Y},
			Style:   lineStyle(chart.ColorAlternateGray, true),
		})
		// A fit over a single distinct x has no slope.
		if a, b := ov.Regression[0], ov.Regression[1]; finite(a.Y) && finite(b.Y) {
			series = append(series, chart.ContinuousSeries{
				Name:    fmt.Sprintf("Fit (R2 %.3f)", s.R2),
				XValues: []float64{a.X, b.X},
				YValues: []float64{a.Y, b.Y},
				Style:   lineStyle(chart.ColorRed, false),
			})
			lo, hi = math.Min(lo, math.Min(a.Y, b.Y)), math.Max(hi, math.Max(a.Y, b.Y))
		}
	}
	// go-chart rejects a zero-width range, so widen degenerate data.
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.05, 1)
	}
	rng := &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}

	ch := chart.Chart{
		Title:      title,
		Width:      800,
		Height:     800,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Observed " + variable, Range: rng},
		YAxis:      chart.YAxis{Name: "Predicted " + variable, Range: rng},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func bounds(series ...[]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	return lo, hi
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
