package devirt

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Facts holds the dataflow facts of a run, keyed by node. Nodes that were
// never visited have no entry.
type Facts struct {
	// Terms whose values are needed before and after each node.
	DemandIn, DemandOut map[*Node]ExprSet
	// Alias relations before and after each node.
	AliasIn, AliasOut map[*Node]Alias
}

// Run is the outcome of resolving one virtual call.
type Run struct {
	Call   *Node
	Origin Expression
	Facts  Facts

	Converged bool
	Rounds    int

	DemandVisits, AliasVisits int
}

type Result struct {
	Runs []*Run
}

func (ctx *aContext) run(converged bool) *Run {
	return &Run{
		Call:   ctx.call,
		Origin: ctx.origin,
		Facts:  ctx.facts,

		Converged: converged,
		Rounds:    ctx.rounds,

		DemandVisits: ctx.demandVisits,
		AliasVisits:  ctx.aliasVisits,
	}
}

// AliasAtCall returns the alias relation in effect right before the call.
func (r *Run) AliasAtCall() Alias {
	return r.Facts.AliasIn[r.Call]
}

// Targets follows the alias relation before the call transitively from the
// origin and returns the terms that have no aliases of their own, in a
// deterministic order. These are the candidate values of the vtable pointer.
func (r *Run) Targets() []Expression {
	alias := r.AliasAtCall()

	visited := NewExprSet(r.Origin)
	stack := []Expression{r.Origin}
	targets := ExprSet{}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		next := alias.Lookup(e)
		if len(next) == 0 {
			if e != r.Origin {
				targets.Add(e)
			}
			continue
		}

		for a := range next {
			if visited.Add(a) {
				stack = append(stack, a)
			}
		}
	}
	return targets.Sorted()
}

// Visited returns the nodes whose demand or alias facts were computed, ordered
// by ID.
func (r *Run) Visited() []*Node {
	seen := make(map[*Node]bool, len(r.Facts.DemandIn)+len(r.Facts.AliasOut))
	for n := range r.Facts.DemandIn {
		seen[n] = true
	}
	for n := range r.Facts.AliasOut {
		seen[n] = true
	}

	nodes := maps.Keys(seen)
	slices.SortFunc(nodes, func(a, b *Node) bool { return a.ID < b.ID })
	return nodes
}

// Run returns the run of the given call, or nil.
func (r Result) Run(call *Node) *Run {
	for _, run := range r.Runs {
		if run != nil && run.Call == call {
			return run
		}
	}
	return nil
}

// Unconverged returns the runs that hit the round limit.
func (r Result) Unconverged() []*Run {
	var runs []*Run
	for _, run := range r.Runs {
		if run != nil && !run.Converged {
			runs = append(runs, run)
		}
	}
	return runs
}
