package devirt

import (
	"fmt"
	"log"

	"github.com/BarrensZeppelin/devirt/internal/slices"
	"github.com/yourbasic/graph"
)

// This file contains the program model consumed by the analysis: a control
// flow graph of nodes per function, where every node is either an assignment
// or a call. Call nodes link to the callee's entry and exit nodes, which is
// how the analysis crosses function boundaries.

type NodeKind uint8

const (
	EntryNode NodeKind = iota
	ExitNode
	UpdateNode
	CallNode
)

func (k NodeKind) String() string {
	switch k {
	case EntryNode:
		return "entry"
	case ExitNode:
		return "exit"
	case UpdateNode:
		return "update"
	case CallNode:
		return "call"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

type CallKind uint8

const (
	// DirectCall has a statically known callee.
	DirectCall CallKind = iota
	// VirtualCall is dispatched through a vtable-like indirection.
	VirtualCall
	// IndirectCall has an unknown callee.
	IndirectCall
	// IntrinsicCall is treated as a no-op.
	IntrinsicCall
)

func (k CallKind) String() string {
	switch k {
	case DirectCall:
		return "direct"
	case VirtualCall:
		return "virtual"
	case IndirectCall:
		return "indirect"
	case IntrinsicCall:
		return "intrinsic"
	default:
		return fmt.Sprintf("CallKind(%d)", uint8(k))
	}
}

// Assignment is a decoded LHS = RHS.
type Assignment struct {
	LHS, RHS Expression
}

func (a Assignment) String() string {
	return a.LHS.String() + " = " + a.RHS.String()
}

type Node struct {
	ID   int
	Kind NodeKind
	Func *Function

	// Assign is the decoding of an update node. It is nil when the ingestion
	// could not decode the instruction, in which case the node is a no-op.
	Assign *Assignment

	// Callee is the called value of a call node.
	Callee Expression
	Call   CallKind
	// Target is the callee of a direct call, if it is part of the program.
	Target *Function
	// Origin is the vtable pointer term of a detected virtual call.
	Origin *Expression

	Preds, Succs []*Node

	// position in Func.Nodes
	index int
}

// Label returns a short unique name for the node.
func (n *Node) Label() string {
	return fmt.Sprintf("n%d", n.ID)
}

func (n *Node) String() string {
	switch n.Kind {
	case EntryNode:
		return "entry " + n.Func.Name
	case ExitNode:
		return "exit " + n.Func.Name
	case UpdateNode:
		if n.Assign == nil {
			return "<undecoded>"
		}
		return n.Assign.String()
	case CallNode:
		callee := n.Callee.String()
		if n.Target != nil {
			callee = n.Target.Name
		}
		return fmt.Sprintf("%s call %s", n.Call, callee)
	default:
		return n.Kind.String()
	}
}

// enters reports whether the analysis follows the call into the callee body.
func (n *Node) enters() bool {
	return n.Kind == CallNode && n.Call == DirectCall &&
		n.Target != nil && !n.Target.Intrinsic
}

// barrier reports whether flow stops at the node: the callee of an indirect
// or virtual call is unknown.
func (n *Node) barrier() bool {
	return n.Kind == CallNode && (n.Call == VirtualCall || n.Call == IndirectCall)
}

type Function struct {
	Name    string
	Program *Program

	Entry, Exit *Node
	// Nodes in creation order. Nodes[0] is Entry and Nodes[1] is Exit.
	Nodes []*Node

	// Calls to intrinsic functions are skipped by the analysis.
	Intrinsic bool
}

type Program struct {
	Functions []*Function
	nextID    int
}

func NewProgram() *Program {
	return &Program{}
}

// NewFunction creates an empty function consisting of its entry and exit
// nodes.
func (p *Program) NewFunction(name string) *Function {
	f := &Function{Name: name, Program: p}
	f.Entry = f.newNode(EntryNode)
	f.Exit = f.newNode(ExitNode)
	p.Functions = append(p.Functions, f)
	return f
}

func (f *Function) newNode(kind NodeKind) *Node {
	n := &Node{
		ID:    f.Program.nextID,
		Kind:  kind,
		Func:  f,
		index: len(f.Nodes),
	}
	f.Program.nextID++
	f.Nodes = append(f.Nodes, n)
	return n
}

// Update adds the assignment lhs = rhs.
func (f *Function) Update(lhs, rhs Expression) *Node {
	n := f.newNode(UpdateNode)
	n.Assign = &Assignment{LHS: lhs, RHS: rhs}
	return n
}

// Undecoded adds an update node whose operands are unknown.
func (f *Function) Undecoded() *Node {
	return f.newNode(UpdateNode)
}

// Call adds a call node. target may be nil when the callee is not part of the
// program.
func (f *Function) Call(callee Expression, kind CallKind, target *Function) *Node {
	n := f.newNode(CallNode)
	n.Callee = callee
	n.Call = kind
	n.Target = target
	return n
}

// VirtualCall adds a virtual call node seeded with origin.
func (f *Function) VirtualCall(callee, origin Expression) *Node {
	n := f.Call(callee, VirtualCall, nil)
	n.Origin = &origin
	return n
}

// Edge adds a control flow edge between two nodes of f.
func (f *Function) Edge(from, to *Node) {
	if from.Func != f || to.Func != f {
		log.Panicf("edge %v -> %v crosses function %s", from, to, f.Name)
	}
	for _, s := range from.Succs {
		if s == to {
			return
		}
	}
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// Chain connects consecutive nodes with edges.
func (f *Function) Chain(nodes ...*Node) {
	for i := 1; i < len(nodes); i++ {
		f.Edge(nodes[i-1], nodes[i])
	}
}

// VirtualCalls returns the seeded virtual call nodes of f.
func (f *Function) VirtualCalls() []*Node {
	return slices.Filter(f.Nodes, func(n *Node) bool {
		return n.Kind == CallNode && n.Call == VirtualCall && n.Origin != nil
	})
}

// Order implements graph.Iterator over the intraprocedural edges.
func (f *Function) Order() int {
	return len(f.Nodes)
}

// Visit implements graph.Iterator.
func (f *Function) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, s := range f.Nodes[v].Succs {
		if do(s.index, 0) {
			return true
		}
	}
	return false
}

// Acyclic reports whether the control flow graph of f has no loops.
func (f *Function) Acyclic() bool {
	return graph.Acyclic(f)
}

// Loops returns the strongly connected components of f that contain a cycle.
func (f *Function) Loops() [][]*Node {
	var loops [][]*Node
	for _, comp := range graph.StrongComponents(f) {
		if len(comp) == 1 {
			n := f.Nodes[comp[0]]
			selfLoop := false
			for _, s := range n.Succs {
				selfLoop = selfLoop || s == n
			}
			if !selfLoop {
				continue
			}
		}
		loop := make([]*Node, len(comp))
		for i, v := range comp {
			loop[i] = f.Nodes[v]
		}
		loops = append(loops, loop)
	}
	return loops
}
