package bptree

// Op is a predicate comparison operator for IndexScan (spec.md §4.6).
type Op int

const (
	Equal Op = iota
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
	NotEqual
)

// Predicate selects the subset of tuples an index scan should return:
// every tuple t for which compareKeys(t.Key, Key) satisfies Op.
type Predicate struct {
	Op  Op
	Key int64
}

// satisfies reports whether key matches the predicate.
func (p Predicate) satisfies(key int64) bool {
	c := compareKeys(key, p.Key)
	switch p.Op {
	case Equal:
		return c == 0
	case GreaterThan:
		return c > 0
	case GreaterThanOrEqual:
		return c >= 0
	case LessThan:
		return c < 0
	case LessThanOrEqual:
		return c <= 0
	case NotEqual:
		return c != 0
	default:
		return false
	}
}

// entersByFindLeaf reports whether this predicate's matching region starts
// at the leaf findLeaf(Key) would locate (EQUALS/GREATER_THAN/
// GREATER_THAN_OR_EQ), as opposed to needing the leftmost leaf in the
// whole tree (LESS_THAN/LESS_THAN_OR_EQ/NOT_EQUAL) — spec.md §4.6.
func (p Predicate) entersByFindLeaf() bool {
	switch p.Op {
	case Equal, GreaterThan, GreaterThanOrEqual:
		return true
	default:
		return false
	}
}
