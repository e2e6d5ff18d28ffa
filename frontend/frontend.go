// Package frontend lowers Go SSA functions to the program graph consumed by
// the devirt analysis.
//
// Every interface method call in invoke mode becomes a seeded virtual call.
// Converting a concrete value to an interface is modelled as storing the
// address of the concrete type's method table in the interface, so resolving
// the receiver of a call to a TypeDesc identifies the dynamic type.
package frontend

import (
	"go/token"
	"go/types"

	"github.com/BarrensZeppelin/devirt"
	"github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"
)

type Options struct {
	// Include decides whether calls into a function follow its body. Calls
	// to excluded functions are no-ops for the analysis. When nil, every
	// function with a body is included.
	Include func(*ssa.Function) bool

	Log *logrus.Entry
}

type Frontend struct {
	Program *devirt.Program

	prog    *ssa.Program
	include func(*ssa.Function) bool
	log     *logrus.Entry

	funcs map[*ssa.Function]*devirt.Function
	// Call nodes of interface method calls and their call instructions.
	sites map[*devirt.Node]ssa.CallInstruction
	calls map[ssa.CallInstruction]*devirt.Node

	typeDescs    typeutil.Map
	addressTaken map[ssa.Value]bool
}

func New(prog *ssa.Program, opts Options) *Frontend {
	include := opts.Include
	if include == nil {
		include = func(*ssa.Function) bool { return true }
	}

	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Frontend{
		Program: devirt.NewProgram(),
		prog:    prog,
		include: include,
		log:     log,

		funcs:        make(map[*ssa.Function]*devirt.Function),
		sites:        make(map[*devirt.Node]ssa.CallInstruction),
		calls:        make(map[ssa.CallInstruction]*devirt.Node),
		addressTaken: make(map[ssa.Value]bool),
	}
}

// IsVirtualCall reports whether instr dispatches dynamically on the type of
// an interface value.
func IsVirtualCall(instr ssa.Instruction) bool {
	call, ok := instr.(ssa.CallInstruction)
	return ok && call.Common().IsInvoke()
}

// Function returns the graph of fn, building it on first use. Callees that
// are included and have a body are built transitively.
func (fe *Frontend) Function(fn *ssa.Function) *devirt.Function {
	if f, ok := fe.funcs[fn]; ok {
		return f
	}

	f := fe.Program.NewFunction(fn.String())
	fe.funcs[fn] = f

	if len(fn.Blocks) != 0 {
		b := &builder{fe: fe, fn: fn, f: f}
		b.build()
		fe.log.WithField("func", fn.String()).
			Debugf("built %d nodes from %d blocks", len(f.Nodes), len(fn.Blocks))
	}
	return f
}

// Site returns the call instruction of an interface method call node.
func (fe *Frontend) Site(n *devirt.Node) (ssa.CallInstruction, bool) {
	site, ok := fe.sites[n]
	return site, ok
}

// Node returns the call node built for an interface method call.
func (fe *Frontend) Node(call ssa.CallInstruction) *devirt.Node {
	return fe.calls[call]
}

func (fe *Frontend) Position(pos token.Pos) token.Position {
	return fe.prog.Fset.Position(pos)
}

// typeDesc returns the unique TypeDesc for types identical to t.
func (fe *Frontend) typeDesc(t types.Type) *TypeDesc {
	if td := fe.typeDescs.At(t); td != nil {
		return td.(*TypeDesc)
	}
	td := &TypeDesc{T: t}
	fe.typeDescs.Set(t, td)
	return td
}

// AddressTaken reports whether the location of addr may be reached through a
// pointer other than its own name. Globals are always address taken. Local
// allocations are address taken when the address escapes into anything but
// loads, stores to it and field or element selections.
func (fe *Frontend) AddressTaken(addr devirt.Expression) bool {
	v, ok := addr.Root().(ssa.Value)
	if !ok {
		return false
	}

	switch v := v.(type) {
	case *ssa.Global:
		return true
	case *ssa.Alloc:
		if taken, ok := fe.addressTaken[v]; ok {
			return taken
		}
		taken := allocEscapes(v)
		fe.addressTaken[v] = taken
		return taken
	default:
		return false
	}
}

func allocEscapes(alloc *ssa.Alloc) bool {
	refs := alloc.Referrers()
	if refs == nil {
		return false
	}

	for _, ref := range *refs {
		switch ref := ref.(type) {
		case *ssa.Store:
			if ref.Val == alloc {
				return true
			}
		case *ssa.UnOp:
			if ref.Op != token.MUL {
				return true
			}
		case *ssa.FieldAddr, *ssa.IndexAddr, *ssa.DebugRef:
		default:
			return true
		}
	}
	return false
}
