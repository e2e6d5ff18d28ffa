package devirt

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ExprSet is a set of Expressions under structural equality.
type ExprSet map[Expression]struct{}

// NewExprSet returns a set containing the given terms.
func NewExprSet(es ...Expression) ExprSet {
	s := make(ExprSet, len(es))
	for _, e := range es {
		s[e] = struct{}{}
	}
	return s
}

// Add inserts e and reports whether it was absent.
func (s ExprSet) Add(e Expression) bool {
	if _, found := s[e]; found {
		return false
	}
	s[e] = struct{}{}
	return true
}

func (s ExprSet) Has(e Expression) bool {
	_, found := s[e]
	return found
}

// HasAny reports whether some member of o is in s.
func (s ExprSet) HasAny(o ExprSet) bool {
	if len(o) > len(s) {
		s, o = o, s
	}
	for e := range o {
		if s.Has(e) {
			return true
		}
	}
	return false
}

func (s ExprSet) Remove(e Expression) {
	delete(s, e)
}

// AddAll inserts every member of o and reports whether s grew.
func (s ExprSet) AddAll(o ExprSet) bool {
	grew := false
	for e := range o {
		if s.Add(e) {
			grew = true
		}
	}
	return grew
}

func (s ExprSet) Clone() ExprSet {
	c := make(ExprSet, len(s))
	for e := range s {
		c[e] = struct{}{}
	}
	return c
}

func (s ExprSet) Equal(o ExprSet) bool {
	if len(s) != len(o) {
		return false
	}
	for e := range s {
		if !o.Has(e) {
			return false
		}
	}
	return true
}

// Sorted returns the members in a deterministic order.
func (s ExprSet) Sorted() []Expression {
	es := maps.Keys(s)
	slices.SortFunc(es, func(a, b Expression) bool {
		return a.sortKey() < b.sortKey()
	})
	return es
}

func (s ExprSet) String() string {
	strs := make([]string, 0, len(s))
	for _, e := range s.Sorted() {
		strs = append(strs, e.String())
	}
	return "{" + strings.Join(strs, ", ") + "}"
}

// Alias maps an Expression to the Expressions it may currently hold the same
// value as.
type Alias map[Expression]ExprSet

// Lookup returns the alias set of e, which is nil if e has no entry.
func (a Alias) Lookup(e Expression) ExprSet {
	return a[e]
}

// Add records that key may alias target and reports whether this is new.
func (a Alias) Add(key, target Expression) bool {
	set, found := a[key]
	if !found {
		set = ExprSet{}
		a[key] = set
	}
	return set.Add(target)
}

// Merge unions every entry of o into a, key by key.
func (a Alias) Merge(o Alias) bool {
	grew := false
	for key, targets := range o {
		if len(targets) == 0 {
			continue
		}
		set, found := a[key]
		if !found {
			a[key] = targets.Clone()
			grew = true
			continue
		}
		if set.AddAll(targets) {
			grew = true
		}
	}
	return grew
}

// Clone returns a deep copy of a.
func (a Alias) Clone() Alias {
	c := make(Alias, len(a))
	for key, targets := range a {
		c[key] = targets.Clone()
	}
	return c
}

// Equal compares two relations key by key and member by member.
func (a Alias) Equal(o Alias) bool {
	if len(a) != len(o) {
		return false
	}
	for key, targets := range a {
		otargets, found := o[key]
		if !found || !targets.Equal(otargets) {
			return false
		}
	}
	return true
}

// HasSelfAlias reports whether some member d of s is recorded as aliasing
// itself.
func (a Alias) HasSelfAlias(s ExprSet) bool {
	for d := range s {
		if a[d].Has(d) {
			return true
		}
	}
	return false
}

// Keys returns the keys in a deterministic order.
func (a Alias) Keys() []Expression {
	keys := maps.Keys(a)
	slices.SortFunc(keys, func(x, y Expression) bool {
		return x.sortKey() < y.sortKey()
	})
	return keys
}

func (a Alias) String() string {
	strs := make([]string, 0, len(a))
	for _, key := range a.Keys() {
		strs = append(strs, key.String()+" ↦ "+a[key].String())
	}
	return "[" + strings.Join(strs, "; ") + "]"
}
