// Package compare groups the merged dataset by source, model and variable,
// fits each group and lines up the statistics of two sources side by side.
package compare

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/predobs-cli/internal/canonical"
	"github.com/KaramelBytes/predobs-cli/internal/dataset"
	"github.com/KaramelBytes/predobs-cli/internal/regression"
)

// Tolerance is the fraction of the baseline value a difference may reach
// before it is flagged.
const Tolerance = 0.01

// Value is an optional number; OK is false when the cell is blank.
type Value struct {
	V  float64
	OK bool
}

func some(v float64) Value { return Value{V: v, OK: true} }

// Row is one (variable, statistic) line of a comparison.
type Row struct {
	Variable string
	Stat     string
	// Values holds one cell per source, in source order.
	Values []Value
	// Diff is Values[0]-Values[1]; set only for two sources with both cells present.
	Diff Value
	// Flagged marks a Diff whose magnitude exceeds Tolerance of the baseline
	// (the second source).
	Flagged bool
}

// Table is the full comparison for one model.
type Table struct {
	Model   string
	Sources []string
	Rows    []Row
}

// Flagged returns the flagged rows.
func (t *Table) Flagged() []Row {
	var out []Row
	for _, r := range t.Rows {
		if r.Flagged {
			out = append(out, r)
		}
	}
	return out
}

// Sources lists the distinct source ids in sorted order.
func Sources(t *dataset.Table) ([]string, error) {
	return t.Unique(canonical.ColFileName)
}

// Models lists the distinct model names in sorted order.
func Models(t *dataset.Table) ([]string, error) {
	return t.Unique(canonical.ColModel)
}

// Variables lists, in sorted order, every variable seen for model in any of
// sources. With no sources given every source in the table counts.
func Variables(t *dataset.Table, model string, sources ...string) ([]string, error) {
	v := t.Filter(dataset.Eq(canonical.ColModel, model))
	if len(sources) > 0 {
		matches := make([]dataset.Predicate, len(sources))
		for i, s := range sources {
			matches[i] = dataset.Eq(canonical.ColFileName, s)
		}
		v = v.Filter(dataset.Or(matches...))
	}
	return v.Unique(canonical.ColVariable)
}

// View selects the observations of one (source, model, variable) group.
func View(t *dataset.Table, source, model, variable string) *dataset.View {
	return t.Filter(dataset.And(
		dataset.Eq(canonical.ColFileName, source),
		dataset.Eq(canonical.ColModel, model),
		dataset.Eq(canonical.ColVariable, variable),
	))
}

// Series returns the predicted and observed columns of a view.
func Series(v *dataset.View) (predicted, observed []float64, err error) {
	predicted, err = v.ColumnAsNumbers(canonical.ColPredicted)
	if err != nil {
		return nil, nil, err
	}
	observed, err = v.ColumnAsNumbers(canonical.ColObserved)
	if err != nil {
		return nil, nil, err
	}
	return predicted, observed, nil
}

// StatsFor fits one group. A group with no rows yields nil stats and no error.
func StatsFor(t *dataset.Table, source, model, variable string) (*regression.Stats, error) {
	predicted, observed, err := Series(View(t, source, model, variable))
	if err != nil {
		return nil, fmt.Errorf("%s/%s/%s: %w", source, model, variable, err)
	}
	return regression.Compute(variable, predicted, observed), nil
}

// Compare builds one row per variable and statistic for model across sources.
// Missing groups leave blank cells; they never abort the comparison.
func Compare(t *dataset.Table, sources []string, model string) (*Table, error) {
	vars, err := Variables(t, model, sources...)
	if err != nil {
		return nil, err
	}
	out := &Table{Model: model, Sources: append([]string(nil), sources...)}
	for _, variable := range vars {
		stats := make([]*regression.Stats, len(sources))
		for k, src := range sources {
			s, err := StatsFor(t, src, model, variable)
			if err != nil {
				return nil, err
			}
			stats[k] = s
		}
		for _, st := range regression.StatList {
			row := Row{Variable: variable, Stat: st.Name, Values: make([]Value, len(sources))}
			for k, s := range stats {
				if s != nil {
					row.Values[k] = some(st.Value(s))
				}
			}
			if len(sources) == 2 && row.Values[0].OK && row.Values[1].OK {
				diff := row.Values[0].V - row.Values[1].V
				row.Diff = some(diff)
				row.Flagged = Exceeds(diff, row.Values[1].V)
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// Exceeds reports whether |diff| is strictly greater than Tolerance of
// baseline. The tolerance keeps the sign of baseline, so a negative baseline
// flags every non-zero diff.
func Exceeds(diff, baseline float64) bool {
	if math.IsNaN(diff) {
		return false
	}
	tol := baseline * Tolerance
	if math.IsNaN(tol) {
		return false
	}
	return math.Abs(diff) > tol
}
