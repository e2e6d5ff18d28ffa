package frontend

import (
	"github.com/BarrensZeppelin/devirt"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// Resolution is the outcome of the analysis for one interface method call.
type Resolution struct {
	Site ssa.CallInstruction
	Run  *devirt.Run
	// Concrete methods the call may dispatch to, ordered by name. Empty when
	// the receiver could not be traced to a conversion to the interface.
	Callees []*ssa.Function
}

func (r Resolution) Resolved() bool {
	return len(r.Callees) != 0
}

// Types returns the concrete receiver types the run traced the call to.
func Types(run *devirt.Run) []*TypeDesc {
	var tds []*TypeDesc
	for _, target := range run.Targets() {
		if td, ok := target.Root().(*TypeDesc); ok && !slices.Contains(tds, td) {
			tds = append(tds, td)
		}
	}
	return tds
}

// Callees returns the methods the virtual call of run may dispatch to.
func (fe *Frontend) Callees(run *devirt.Run) []*ssa.Function {
	site, ok := fe.sites[run.Call]
	if !ok {
		return nil
	}
	m := site.Common().Method

	var callees []*ssa.Function
	for _, td := range Types(run) {
		sel := fe.prog.MethodSets.MethodSet(td.T).Lookup(m.Pkg(), m.Name())
		if sel == nil {
			continue
		}
		if fn := fe.prog.MethodValue(sel); fn != nil && !slices.Contains(callees, fn) {
			callees = append(callees, fn)
		}
	}

	slices.SortFunc(callees, func(a, b *ssa.Function) bool {
		return a.String() < b.String()
	})
	return callees
}

// Resolutions pairs the runs of res with their call sites, ordered by
// position.
func (fe *Frontend) Resolutions(res devirt.Result) []Resolution {
	var rs []Resolution
	for _, run := range res.Runs {
		if run == nil {
			continue
		}
		site, ok := fe.sites[run.Call]
		if !ok {
			continue
		}
		rs = append(rs, Resolution{Site: site, Run: run, Callees: fe.Callees(run)})
	}

	slices.SortFunc(rs, func(a, b Resolution) bool {
		pa, pb := fe.Position(a.Site.Pos()), fe.Position(b.Site.Pos())
		if pa.Filename != pb.Filename {
			return pa.Filename < pb.Filename
		}
		if pa.Offset != pb.Offset {
			return pa.Offset < pb.Offset
		}
		return a.Run.Call.ID < b.Run.Call.ID
	})
	return rs
}

// CallGraph returns a call graph of the built functions. Static calls get an
// edge to their callee and interface method calls get an edge to every
// resolved method.
func (fe *Frontend) CallGraph(res devirt.Result) *callgraph.Graph {
	cg := callgraph.New(nil)

	for fun := range fe.funcs {
		n := cg.CreateNode(fun)
		for _, block := range fun.Blocks {
			for _, insn := range block.Instrs {
				call, ok := insn.(ssa.CallInstruction)
				if !ok {
					continue
				}
				if sc := call.Common().StaticCallee(); sc != nil {
					callgraph.AddEdge(n, call, cg.CreateNode(sc))
				}
			}
		}
	}

	for _, r := range fe.Resolutions(res) {
		caller := cg.CreateNode(r.Site.Parent())
		for _, callee := range r.Callees {
			callgraph.AddEdge(caller, r.Site, cg.CreateNode(callee))
		}
	}
	return cg
}

// Unresolved counts the resolutions without callees.
func Unresolved(rs []Resolution) int {
	n := 0
	for _, r := range rs {
		if !r.Resolved() {
			n++
		}
	}
	return n
}
