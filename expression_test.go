package devirt

import (
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

// name is a comparable Value for hand-built terms.
type name string

func (n name) Name() string { return string(n) }

var (
	tInt = types.Typ[types.Int]
	tPtr = types.NewPointer(tInt)
)

func sampleTerms() []Expression {
	x, y, f := name("x"), name("y"), name("f")
	return []Expression{
		Var(x, tInt),
		Var(x, tPtr),
		Var(y, tInt),
		Arg(x, tInt),
		Deref(x, tPtr),
		FieldOf(x, f, tInt, true),
		FieldOf(x, f, tInt, false),
		AddrOf(x, tPtr),
		Var(x, tInt).AddressForm(),
		Opaque(tInt),
	}
}

func TestEqualIsEquivalence(t *testing.T) {
	terms := sampleTerms()
	for _, a := range terms {
		assert.True(t, a.Equal(a), "reflexive: %v", a)
		for _, b := range terms {
			assert.Equal(t, a.Equal(b), b.Equal(a), "symmetric: %v, %v", a, b)
			for _, c := range terms {
				if a.Equal(b) && b.Equal(c) {
					assert.True(t, a.Equal(c), "transitive: %v, %v, %v", a, b, c)
				}
			}
		}
	}
}

func TestEqualComparesAllFields(t *testing.T) {
	terms := sampleTerms()
	for i, a := range terms {
		for j, b := range terms {
			assert.Equal(t, i == j, a.Equal(b), "%v vs %v", a, b)
		}
	}

	// Rebuilding a term yields the same map key.
	set := NewExprSet(terms...)
	assert.Len(t, set, len(terms))
	assert.False(t, set.Add(Deref(name("x"), tPtr)))
}

func TestDerivation(t *testing.T) {
	x, f := name("x"), name("f")
	arrow := FieldOf(x, f, tInt, true)

	assert.True(t, arrow.CanPoint())
	assert.True(t, Deref(x, tPtr).CanPoint())
	assert.False(t, Var(x, tInt).CanPoint())
	assert.False(t, AddrOf(x, tPtr).CanPoint())

	simple := arrow.SimpleForm()
	assert.Equal(t, Var(x, tInt), simple)
	assert.Equal(t, Arrow, arrow.Symbol, "derivation copies")

	addr := simple.AddressForm()
	assert.Equal(t, Address, addr.Symbol)
	assert.True(t, addr.RHSIsAddress)
	assert.NotEqual(t, AddrOf(x, tInt), addr)
	assert.Equal(t, simple, addr.SimpleForm())

	assert.Equal(t, x, Arg(x, tInt).Root())
	assert.Nil(t, Opaque(tInt).Root())
}

func TestExpressionString(t *testing.T) {
	x, f := name("x"), name("f")
	for _, tc := range []struct {
		e    Expression
		want string
	}{
		{Var(x, tInt), "x"},
		{Deref(x, tPtr), "*x"},
		{FieldOf(x, f, tInt, true), "x->f"},
		{FieldOf(x, f, tInt, false), "x.f"},
		{AddrOf(x, tPtr), "&x"},
		{Opaque(tInt), "constant"},
		{Expression{Symbol: Simple}, "?"},
	} {
		assert.Equal(t, tc.want, tc.e.String())
	}
}
