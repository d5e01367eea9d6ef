package dataset

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind is the declared value type of a column.
type Kind int

const (
	String Kind = iota
	Float
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Float:
		return "float64"
	default:
		return "unknown"
	}
}

// Column describes one named, typed column.
type Column struct {
	Name string
	Kind Kind
}

var (
	// ErrDuplicateColumn is returned when a column name is already in use.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrUnknownColumn is returned when a column name is not part of the table.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrShape is returned when a row was built for a different column set.
	ErrShape = errors.New("row shape does not match table columns")
	// ErrKind is returned when a value does not match the column kind.
	ErrKind = errors.New("value kind does not match column")
	// ErrReadOnly is returned when mutating a row that already belongs to a table.
	ErrReadOnly = errors.New("row is read-only")
)

// CellError reports a cell that could not be coerced to a number.
type CellError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("column %q row %d: malformed number %q: %v", e.Column, e.Row, e.Value, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Table is an in-memory table with typed named columns.
// Every stored row holds exactly len(Columns()) values.
type Table struct {
	cols  []Column
	index map[string]int
	rows  [][]any
	// gen changes whenever the column set changes so stale rows are rejected.
	gen int
}

// New returns a table with the given columns.
func New(cols ...Column) (*Table, error) {
	t := &Table{index: map[string]int{}}
	for _, c := range cols {
		if err := t.AddColumn(c.Name, c.Kind); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddColumn appends a column. Existing rows get NaN or "" for it.
func (t *Table) AddColumn(name string, kind Kind) error {
	if t.index == nil {
		t.index = map[string]int{}
	}
	if _, ok := t.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
	}
	t.index[name] = len(t.cols)
	t.cols = append(t.cols, Column{Name: name, Kind: kind})
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], zero(kind))
	}
	t.gen++
	return nil
}

// Columns returns a copy of the column set.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// NewRow returns an empty row bound to the current column set.
func (t *Table) NewRow() Row {
	vals := make([]any, len(t.cols))
	for i, c := range t.cols {
		vals[i] = zero(c.Kind)
	}
	return Row{table: t, gen: t.gen, vals: vals}
}

// AddRow appends a row created by NewRow for the current column set.
func (t *Table) AddRow(r Row) error {
	if r.table != t || r.gen != t.gen || len(r.vals) != len(t.cols) {
		return ErrShape
	}
	if r.frozen {
		return ErrReadOnly
	}
	vals := make([]any, len(r.vals))
	copy(vals, r.vals)
	t.rows = append(t.rows, vals)
	return nil
}

// All iterates over the stored rows in insertion order. Yielded rows are read-only.
func (t *Table) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, vals := range t.rows {
			if !yield(Row{table: t, gen: t.gen, vals: vals, frozen: true}) {
				return
			}
		}
	}
}

// Filter returns a lazy view over the rows matching p.
func (t *Table) Filter(p Predicate) *View {
	return &View{table: t, pred: p}
}

// ColumnAsNumbers returns the named column coerced to float64.
func (t *Table) ColumnAsNumbers(name string) ([]float64, error) {
	return columnAsNumbers(t, t.All(), name)
}

// ColumnAsStrings returns the named column rendered as strings.
func (t *Table) ColumnAsStrings(name string) ([]string, error) {
	return columnAsStrings(t, t.All(), name)
}

// Unique returns the sorted distinct string values of a column.
func (t *Table) Unique(name string) ([]string, error) {
	return unique(t, t.All(), name)
}

// View is a filtered, lazily evaluated window on a table. It shares the
// table's storage and can be iterated any number of times.
type View struct {
	table *Table
	pred  Predicate
}

// Filter narrows the view further.
func (v *View) Filter(p Predicate) *View {
	return &View{table: v.table, pred: And(v.pred, p)}
}

// All iterates over matching rows.
func (v *View) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for r := range v.table.All() {
			if !match(v.pred, r) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Len counts matching rows.
func (v *View) Len() int {
	n := 0
	for range v.All() {
		n++
	}
	return n
}

func (v *View) ColumnAsNumbers(name string) ([]float64, error) {
	return columnAsNumbers(v.table, v.All(), name)
}

func (v *View) ColumnAsStrings(name string) ([]string, error) {
	return columnAsStrings(v.table, v.All(), name)
}

func (v *View) Unique(name string) ([]string, error) {
	return unique(v.table, v.All(), name)
}

func columnAsNumbers(t *Table, rows iter.Seq[Row], name string) ([]float64, error) {
	idx, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	kind := t.cols[idx].Kind
	out := []float64{}
	i := 0
	for r := range rows {
		switch kind {
		case Float:
			out = append(out, r.vals[idx].(float64))
		default:
			s := strings.TrimSpace(r.vals[idx].(string))
			if s == "" {
				out = append(out, math.NaN())
				break
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &CellError{Column: name, Row: i, Value: s, Err: err}
			}
			out = append(out, f)
		}
		i++
	}
	return out, nil
}

func columnAsStrings(t *Table, rows iter.Seq[Row], name string) ([]string, error) {
	idx, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	out := []string{}
	for r := range rows {
		out = append(out, format(r.vals[idx]))
	}
	return out, nil
}

func unique(t *Table, rows iter.Seq[Row], name string) ([]string, error) {
	vals, err := columnAsStrings(t, rows, name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(vals))
	out := []string{}
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func zero(k Kind) any {
	if k == Float {
		return math.NaN()
	}
	return ""
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
