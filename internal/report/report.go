// Package report renders comparison tables and scatter plots.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KaramelBytes/predobs-cli/internal/compare"
	"gopkg.in/yaml.v3"
)

// Markdown renders a comparison as a markdown table. Values use three
// decimals; flagged differences are wrapped in ** so they stand out.
func Markdown(t *compare.Table) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("## %s\n\n", t.Model))
	if len(t.Rows) == 0 {
		b.WriteString("(no data)\n")
		return b.String()
	}
	header := append([]string{"Variable", "Stat"}, t.Sources...)
	if len(t.Sources) == 2 {
		header = append(header, "Diff")
	}
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, r := range t.Rows {
		cells := []string{safeCell(r.Variable), r.Stat}
		for _, v := range r.Values {
			cells = append(cells, fmtValue(v, "%.3f"))
		}
		if len(t.Sources) == 2 {
			d := fmtValue(r.Diff, "%.3f")
			if r.Flagged {
				d = "**" + d + "**"
			}
			cells = append(cells, d)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if n := len(t.Flagged()); n > 0 {
		b.WriteString(fmt.Sprintf("\n%d statistic(s) changed by more than %.0f%% of the baseline.\n", n, compare.Tolerance*100))
	}
	return b.String()
}

// WriteCSV writes one record per comparison row with full precision. The
// tables must share a source list; the header is taken from the first.
func WriteCSV(w io.Writer, tables ...*compare.Table) error {
	if len(tables) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	header := append([]string{"Model", "Variable", "Stat"}, tables[0].Sources...)
	header = append(header, "Diff", "Flagged")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range tables {
		if len(t.Sources) != len(tables[0].Sources) {
			return fmt.Errorf("model %s: source count %d does not match header", t.Model, len(t.Sources))
		}
		for _, r := range t.Rows {
			rec := []string{t.Model, r.Variable, r.Stat}
			for _, v := range r.Values {
				rec = append(rec, fmtValue(v, ""))
			}
			rec = append(rec, fmtValue(r.Diff, ""), strconv.FormatBool(r.Flagged))
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

type yamlRow struct {
	Variable string              `yaml:"variable"`
	Stat     string              `yaml:"stat"`
	Values   map[string]*float64 `yaml:"values"`
	Diff     *float64            `yaml:"diff,omitempty"`
	Flagged  bool                `yaml:"flagged,omitempty"`
}

type yamlTable struct {
	Model   string    `yaml:"model"`
	Sources []string  `yaml:"sources"`
	Rows    []yamlRow `yaml:"rows"`
}

// YAML renders a comparison as a YAML document. Blank cells are null.
func YAML(t *compare.Table) ([]byte, error) {
	doc := yamlTable{Model: t.Model, Sources: t.Sources}
	for _, r := range t.Rows {
		yr := yamlRow{Variable: r.Variable, Stat: r.Stat, Values: map[string]*float64{}, Flagged: r.Flagged}
		for k, v := range r.Values {
			yr.Values[t.Sources[k]] = ptr(v)
		}
		yr.Diff = ptr(r.Diff)
		doc.Rows = append(doc.Rows, yr)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return out, nil
}

func ptr(v compare.Value) *float64 {
	if !v.OK {
		return nil
	}
	f := v.V
	return &f
}

func fmtValue(v compare.Value, layout string) string {
	if !v.OK {
		return ""
	}
	if layout == "" {
		return strconv.FormatFloat(v.V, 'g', -1, 64)
	}
	return fmt.Sprintf(layout, v.V)
}

// safeCell keeps pipes in variable names from breaking the table layout.
func safeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
