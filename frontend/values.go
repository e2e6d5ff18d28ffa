package frontend

import (
	"fmt"
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// The synthetic identities below give names to locations that have no SSA
// value of their own. All of them are comparable.

// TypeDesc stands for the method table of a concrete type. Converting a
// value of type T to an interface stores the address of TypeDesc(T) in the
// interface.
type TypeDesc struct {
	T types.Type
}

func (td *TypeDesc) Name() string {
	return "typedesc(" + td.T.String() + ")"
}

// returnSlot is the location a function stores its index'th result in.
type returnSlot struct {
	fn    *ssa.Function
	index int
}

func (r returnSlot) Name() string {
	return fmt.Sprintf("ret(%s, %d)", r.fn.Name(), r.index)
}

// method selects the method of an interface value, like a vtable slot.
type method struct {
	m *types.Func
}

func (m method) Name() string {
	return m.m.Name()
}

// element selects an arbitrary element of an array or slice.
type element struct{}

func (element) Name() string {
	return "[*]"
}
