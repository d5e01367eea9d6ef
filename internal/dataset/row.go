package dataset

import (
	"fmt"
	"math"
)

// Row is one record bound to the column set of the table that created it.
// Rows yielded by iteration are read-only views of table storage.
type Row struct {
	table  *Table
	gen    int
	vals   []any
	frozen bool
}

// Value returns the raw cell value (string or float64).
func (r Row) Value(name string) (any, bool) {
	if r.table == nil {
		return nil, false
	}
	i, ok := r.table.index[name]
	if !ok || i >= len(r.vals) {
		return nil, false
	}
	return r.vals[i], true
}

// String returns a string cell, or "" when the column is missing or numeric.
func (r Row) String(name string) string {
	v, _ := r.Value(name)
	s, _ := v.(string)
	return s
}

// Float returns a numeric cell, or NaN when the column is missing or textual.
func (r Row) Float(name string) float64 {
	v, _ := r.Value(name)
	f, ok := v.(float64)
	if !ok {
		return math.NaN()
	}
	return f
}

// Set assigns a value whose Go type matches the column kind.
func (r Row) Set(name string, v any) error {
	if r.frozen {
		return ErrReadOnly
	}
	if r.table == nil {
		return ErrShape
	}
	i, ok := r.table.index[name]
	if !ok || i >= len(r.vals) {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	switch r.table.cols[i].Kind {
	case Float:
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("%w: %s wants float64, got %T", ErrKind, name, v)
		}
		r.vals[i] = f
	default:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: %s wants string, got %T", ErrKind, name, v)
		}
		r.vals[i] = s
	}
	return nil
}

func (r Row) SetString(name, v string) error { return r.Set(name, v) }

func (r Row) SetFloat(name string, v float64) error { return r.Set(name, v) }
