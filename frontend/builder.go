package frontend

import (
	"go/token"
	"go/types"

	"github.com/BarrensZeppelin/devirt"
	"golang.org/x/tools/go/ssa"
)

type builder struct {
	fe *Frontend
	fn *ssa.Function
	f  *devirt.Function

	// Nodes of each basic block in order, indexed by block index.
	blocks [][]*devirt.Node

	// Phi copies placed on control flow edges whose source block has more
	// than one successor, in creation order.
	edges     map[edge][]*devirt.Node
	edgeOrder []edge
}

type edge struct {
	from, to *ssa.BasicBlock
}

func (b *builder) build() {
	b.blocks = make([][]*devirt.Node, len(b.fn.Blocks))
	for _, block := range b.fn.Blocks {
		for _, instr := range block.Instrs {
			b.blocks[block.Index] = append(b.blocks[block.Index], b.instr(instr)...)
		}
	}

	// Phi nodes become copies at the end of the predecessor blocks. Go SSA
	// does not split critical edges, so a predecessor that branches elsewhere
	// too gets the copies on the edge into the phi's block instead.
	b.edges = make(map[edge][]*devirt.Node)
	for _, block := range b.fn.Blocks {
		for _, instr := range block.Instrs {
			phi, ok := instr.(*ssa.Phi)
			if !ok {
				continue
			}
			if !mayHoldPointers(phi.Type()) {
				continue
			}
			for i, pred := range block.Preds {
				n := b.f.Update(b.register(phi), b.operand(phi.Edges[i]))
				if len(pred.Succs) == 1 {
					b.blocks[pred.Index] = append(b.blocks[pred.Index], n)
					continue
				}
				e := edge{pred, block}
				if _, ok := b.edges[e]; !ok {
					b.edgeOrder = append(b.edgeOrder, e)
				}
				b.edges[e] = append(b.edges[e], n)
			}
		}
	}

	for _, n := range b.firsts(b.fn.Blocks[0], nil) {
		b.f.Edge(b.f.Entry, n)
	}

	for _, block := range b.fn.Blocks {
		nodes := b.blocks[block.Index]
		if len(nodes) == 0 {
			continue
		}

		b.f.Chain(nodes...)
		last := nodes[len(nodes)-1]
		if returns(block) {
			b.f.Edge(last, b.f.Exit)
			continue
		}
		for _, succ := range block.Succs {
			for _, n := range b.enter(block, succ, nil) {
				b.f.Edge(last, n)
			}
		}
	}

	for _, e := range b.edgeOrder {
		copies := b.edges[e]
		b.f.Chain(copies...)
		for _, n := range b.firsts(e.to, nil) {
			b.f.Edge(copies[len(copies)-1], n)
		}
	}
}

// enter returns the nodes control reaches first when flowing from one block
// into its successor to.
func (b *builder) enter(from, to *ssa.BasicBlock, seen map[*ssa.BasicBlock]bool) []*devirt.Node {
	if copies := b.edges[edge{from, to}]; len(copies) != 0 {
		return copies[:1]
	}
	return b.firsts(to, seen)
}

func returns(block *ssa.BasicBlock) bool {
	if len(block.Instrs) == 0 {
		return false
	}
	_, ok := block.Instrs[len(block.Instrs)-1].(*ssa.Return)
	return ok
}

// firsts returns the nodes control reaches first when entering block. Blocks
// without nodes are skipped over.
func (b *builder) firsts(block *ssa.BasicBlock, seen map[*ssa.BasicBlock]bool) []*devirt.Node {
	if nodes := b.blocks[block.Index]; len(nodes) != 0 {
		return nodes[:1]
	}
	if returns(block) {
		return []*devirt.Node{b.f.Exit}
	}

	if seen == nil {
		seen = make(map[*ssa.BasicBlock]bool)
	}
	if seen[block] {
		return nil
	}
	seen[block] = true

	var res []*devirt.Node
	for _, succ := range block.Succs {
		res = append(res, b.enter(block, succ, seen)...)
	}
	return res
}

// rooted builds a term rooted at v. Parameters are tracked as function
// arguments.
func rooted(v ssa.Value, sym devirt.Symbol, sel devirt.Value, typ types.Type) devirt.Expression {
	e := devirt.Expression{Symbol: sym, Optional: sel, Type: typ}
	if _, ok := v.(*ssa.Parameter); ok {
		e.FunctionArg = v
	} else {
		e.Base = v
	}
	return e
}

// isLocation reports whether v is the address of a named memory location.
func isLocation(v ssa.Value) bool {
	switch v.(type) {
	case *ssa.Alloc, *ssa.Global:
		return true
	}
	return false
}

// register is the term for the value held by v.
func (b *builder) register(v ssa.Value) devirt.Expression {
	return rooted(v, devirt.Simple, nil, v.Type())
}

// operand is the term for v used as the right-hand side of an assignment.
func (b *builder) operand(v ssa.Value) devirt.Expression {
	switch v := v.(type) {
	case *ssa.Const:
		return devirt.Opaque(v.Type())
	case *ssa.Alloc, *ssa.Global, *ssa.Function:
		return devirt.AddrOf(v, v.Type())
	default:
		return b.register(v)
	}
}

// location is the term for the memory addr points to.
func (b *builder) location(addr ssa.Value) devirt.Expression {
	switch a := addr.(type) {
	case *ssa.Alloc, *ssa.Global:
		return devirt.Var(a, a.Type())
	case *ssa.FieldAddr:
		sel, typ := fieldOf(a.X.Type(), a.Field)
		return selection(a.X, sel, typ)
	case *ssa.IndexAddr:
		return selection(a.X, element{}, elemOf(a.X.Type()))
	default:
		return rooted(addr, devirt.Pointer, nil, addr.Type())
	}
}

// selection is x.sel for a named location x and x->sel otherwise.
func selection(x ssa.Value, sel devirt.Value, typ types.Type) devirt.Expression {
	if isLocation(x) {
		return devirt.FieldOf(x, sel, typ, false)
	}
	return rooted(x, devirt.Arrow, sel, typ)
}

// fieldOf returns the selector and type of a struct field. Field and element
// selectors of types whose structure is unknown, such as type parameters,
// collapse to a single selector.
func fieldOf(typ types.Type, index int) (devirt.Value, types.Type) {
	if ptr, ok := typ.Underlying().(*types.Pointer); ok {
		typ = ptr.Elem()
	}
	if st, ok := typ.Underlying().(*types.Struct); ok && index < st.NumFields() {
		field := st.Field(index)
		return field, field.Type()
	}
	return element{}, nil
}

func elemOf(typ types.Type) types.Type {
	if ptr, ok := typ.Underlying().(*types.Pointer); ok {
		typ = ptr.Elem()
	}
	switch t := typ.Underlying().(type) {
	case *types.Array:
		return t.Elem()
	case *types.Slice:
		return t.Elem()
	}
	return nil
}

// slotTerm is the term for the index'th result of fn. Its type is taken from
// the signature so that both sides of the call agree on it.
func slotTerm(fn *ssa.Function, index int) devirt.Expression {
	return devirt.Var(returnSlot{fn, index}, fn.Signature.Results().At(index).Type())
}

func (b *builder) copy(dst ssa.Value, src ssa.Value) []*devirt.Node {
	if !mayHoldPointers(dst.Type()) {
		return nil
	}
	return []*devirt.Node{b.f.Update(b.register(dst), b.operand(src))}
}

// instr translates a single instruction. Instructions that neither move
// pointers nor call anything produce no nodes.
func (b *builder) instr(instr ssa.Instruction) []*devirt.Node {
	switch i := instr.(type) {
	case *ssa.Store:
		if !mayHoldPointers(i.Val.Type()) {
			return nil
		}
		return []*devirt.Node{b.f.Update(b.location(i.Addr), b.operand(i.Val))}

	case *ssa.UnOp:
		if i.Op == token.MUL && mayHoldPointers(i.Type()) {
			return []*devirt.Node{b.f.Update(b.register(i), b.location(i.X))}
		}

	case *ssa.MakeInterface:
		td := b.fe.typeDesc(i.X.Type())
		return []*devirt.Node{b.f.Update(b.register(i), devirt.AddrOf(td, td.T))}

	case *ssa.MakeClosure:
		return b.copy(i, i.Fn)

	case *ssa.ChangeInterface:
		return b.copy(i, i.X)
	case *ssa.ChangeType:
		return b.copy(i, i.X)
	case *ssa.Convert:
		return b.copy(i, i.X)
	case *ssa.TypeAssert:
		return b.copy(i, i.X)

	case *ssa.Field:
		if !mayHoldPointers(i.Type()) {
			return nil
		}
		sel, typ := fieldOf(i.X.Type(), i.Field)
		return []*devirt.Node{b.f.Update(b.register(i), rooted(i.X, devirt.Dot, sel, typ))}

	case *ssa.Extract:
		if !mayHoldPointers(i.Type()) {
			return nil
		}
		if call, ok := i.Tuple.(*ssa.Call); ok {
			if callee := b.enteredCallee(call.Common()); callee != nil {
				return []*devirt.Node{b.f.Update(b.register(i), slotTerm(callee, i.Index))}
			}
		}
		return b.copy(i, i.Tuple)

	case *ssa.Return:
		var nodes []*devirt.Node
		for idx, res := range i.Results {
			if mayHoldPointers(res.Type()) {
				nodes = append(nodes, b.f.Update(slotTerm(b.fn, idx), b.operand(res)))
			}
		}
		return nodes

	case *ssa.Call:
		return b.call(i)

	case *ssa.Go, *ssa.Defer:
		// The callee does not run in line, so only interface method calls
		// are kept, for resolution.
		if IsVirtualCall(i) {
			return []*devirt.Node{b.virtualCall(i.(ssa.CallInstruction))}
		}
	}

	return nil
}

// enteredCallee returns the static callee of call if the analysis follows
// its body.
func (b *builder) enteredCallee(common *ssa.CallCommon) *ssa.Function {
	sc := common.StaticCallee()
	if sc == nil || len(sc.Blocks) == 0 || !b.fe.include(sc) {
		return nil
	}
	return sc
}

func (b *builder) virtualCall(site ssa.CallInstruction) *devirt.Node {
	common := site.Common()
	recv := common.Value
	callee := rooted(recv, devirt.Arrow, method{common.Method}, common.Signature())
	n := b.f.VirtualCall(callee, b.operand(recv))
	b.fe.sites[n] = site
	b.fe.calls[site] = n
	return n
}

func (b *builder) call(call *ssa.Call) []*devirt.Node {
	common := call.Common()

	switch {
	case common.IsInvoke():
		return []*devirt.Node{b.virtualCall(call)}

	case common.StaticCallee() != nil:
		sc := common.StaticCallee()
		if b.enteredCallee(common) == nil {
			return []*devirt.Node{b.f.Call(b.operand(sc), devirt.DirectCall, nil)}
		}

		// Arguments are passed by value into the parameters.
		var nodes []*devirt.Node
		for idx, arg := range common.Args {
			if idx < len(sc.Params) && mayHoldPointers(arg.Type()) {
				nodes = append(nodes, b.f.Update(b.register(sc.Params[idx]), b.operand(arg)))
			}
		}

		target := b.fe.Function(sc)
		nodes = append(nodes, b.f.Call(b.operand(sc), devirt.DirectCall, target))

		if results := sc.Signature.Results(); results.Len() == 1 && mayHoldPointers(results.At(0).Type()) {
			nodes = append(nodes, b.f.Update(b.register(call), slotTerm(sc, 0)))
		}
		return nodes

	case isBuiltin(common.Value):
		return []*devirt.Node{b.f.Call(b.register(common.Value), devirt.IntrinsicCall, nil)}

	default:
		return []*devirt.Node{b.f.Call(b.operand(common.Value), devirt.IndirectCall, nil)}
	}
}

func isBuiltin(v ssa.Value) bool {
	_, ok := v.(*ssa.Builtin)
	return ok
}
