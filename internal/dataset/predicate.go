package dataset

// Predicate selects rows. Predicates are composed from values rather than
// filter-expression strings, so user-supplied names never need escaping.
//
// A nil Predicate matches every row wherever one is accepted.
type Predicate interface {
	Match(r Row) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(Row) bool

func (f PredicateFunc) Match(r Row) bool { return f(r) }

func match(p Predicate, r Row) bool { return p == nil || p.Match(r) }

type eq struct {
	column string
	value  any
}

func (p eq) Match(r Row) bool {
	v, ok := r.Value(p.column)
	return ok && v == p.value
}

// Eq matches rows whose column equals value. Strings compare against string
// columns; float64 and the integer and float32 types compare against float
// columns after conversion to float64. Any other type matches no row.
func Eq(column string, value any) Predicate {
	switch x := value.(type) {
	case int:
		value = float64(x)
	case int32:
		value = float64(x)
	case int64:
		value = float64(x)
	case float32:
		value = float64(x)
	}
	return eq{column: column, value: value}
}

type and []Predicate

func (ps and) Match(r Row) bool {
	for _, p := range ps {
		if !match(p, r) {
			return false
		}
	}
	return true
}

// And matches when every predicate matches. And() matches every row.
func And(ps ...Predicate) Predicate { return and(ps) }

type or []Predicate

func (ps or) Match(r Row) bool {
	for _, p := range ps {
		if match(p, r) {
			return true
		}
	}
	return false
}

// Or matches when any predicate matches. Or() matches no row.
func Or(ps ...Predicate) Predicate { return or(ps) }

type not struct{ p Predicate }

func (n not) Match(r Row) bool { return !match(n.p, r) }

// Not inverts p. Not(nil) matches no row.
func Not(p Predicate) Predicate { return not{p: p} }
