package frontend

import "go/types"

// mayHoldPointers reports whether values of type t can contain pointers.
// Moving values of other types cannot change what any pointer aliases, so no
// nodes are built for them.
func mayHoldPointers(t types.Type) bool {
	switch t := t.Underlying().(type) {
	case *types.Pointer,
		*types.Map,
		*types.Chan,
		*types.Slice,
		*types.Interface,
		*types.Signature:
		return true
	case *types.Basic:
		return t.Kind() == types.UnsafePointer
	case *types.Array:
		return mayHoldPointers(t.Elem())
	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			if mayHoldPointers(t.Field(i).Type()) {
				return true
			}
		}
		return false
	case *types.Tuple:
		for i := 0; i < t.Len(); i++ {
			if mayHoldPointers(t.At(i).Type()) {
				return true
			}
		}
		return false
	default:
		// Type parameters may be instantiated with anything.
		return true
	}
}
