package frontend

import (
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMayHoldPointers(t *testing.T) {
	intT := types.Typ[types.Int]
	field := func(name string, typ types.Type) *types.Var {
		return types.NewField(token.NoPos, nil, name, typ, false)
	}
	named := types.NewNamed(types.NewTypeName(token.NoPos, nil, "T", nil), nil, nil)
	named.SetUnderlying(types.NewStruct([]*types.Var{
		field("n", intT),
		field("next", types.NewPointer(named)),
	}, nil))

	for _, tc := range []struct {
		typ  types.Type
		want bool
	}{
		{intT, false},
		{types.Typ[types.String], false},
		{types.Typ[types.UnsafePointer], true},
		{types.NewPointer(intT), true},
		{types.NewSlice(intT), true},
		{types.NewMap(intT, intT), true},
		{types.NewArray(intT, 4), false},
		{types.NewArray(types.NewPointer(intT), 4), true},
		{types.NewStruct([]*types.Var{field("a", intT)}, nil), false},
		{named, true},
		{types.NewInterfaceType(nil, nil), true},
		{types.NewTuple(types.NewVar(token.NoPos, nil, "", intT)), false},
	} {
		assert.Equal(t, tc.want, mayHoldPointers(tc.typ), "%v", tc.typ)
	}
}
