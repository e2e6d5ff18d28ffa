package devirt

import (
	"errors"
	"fmt"

	"github.com/BarrensZeppelin/devirt/internal/queue"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConverged = errors.New("analysis did not converge")
	ErrNotVirtual   = errors.New("not a seeded virtual call")
)

type AnalysisConfig struct {
	Program *Program

	// Functions restricts the virtual calls that are resolved by Analyze to
	// the ones in the given functions. When empty, every function of Program
	// is scanned.
	Functions []*Function

	// MaxRounds bounds the number of demand/alias rounds of a single run.
	// Zero means no bound.
	MaxRounds int

	// When PreserveAliasTargets is true, renaming *p or p->f through an alias
	// of p keeps the base and type of the alias instead of replacing them with
	// those of p.
	PreserveAliasTargets bool

	// AddressTaken reports whether the location of an address term may be
	// referenced through a pointer. A nil predicate answers false.
	AddressTaken func(addr Expression) bool

	Log *logrus.Entry

	// OnDemand, when set, is called after every demand transfer with the
	// demand before the node from the previous and the current visit.
	OnDemand func(n *Node, before, after ExprSet)
}

// Per-run state of the fixpoint computation for one virtual call.
type aContext struct {
	config AnalysisConfig
	log    *logrus.Entry

	call   *Node
	origin Expression
	root   *Function

	// Call sites through which the run enters each reached function.
	callSites map[*Function][]*Node

	facts Facts

	demandWork, aliasWork queue.Worklist[*Node]

	rounds                    int
	demandVisits, aliasVisits int
}

func newContext(config AnalysisConfig, call *Node) *aContext {
	log := config.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx := &aContext{
		config: config,
		log:    log.WithField("call", call.Label()),
		call:   call,
		origin: *call.Origin,
		root:   call.Func,

		callSites: make(map[*Function][]*Node),
		facts: Facts{
			DemandIn:  make(map[*Node]ExprSet),
			DemandOut: make(map[*Node]ExprSet),
			AliasIn:   make(map[*Node]Alias),
			AliasOut:  make(map[*Node]Alias),
		},
	}
	ctx.collectCallSites()
	return ctx
}

// collectCallSites records the entering call sites of every function that is
// transitively reachable from the root function.
func (ctx *aContext) collectCallSites() {
	var fq queue.Queue[*Function]
	visited := map[*Function]bool{ctx.root: true}
	fq.Push(ctx.root)

	for !fq.Empty() {
		f := fq.Pop()
		for _, n := range f.Nodes {
			if !n.enters() {
				continue
			}

			ctx.callSites[n.Target] = append(ctx.callSites[n.Target], n)
			if !visited[n.Target] {
				visited[n.Target] = true
				fq.Push(n.Target)
			}
		}
	}
}

func (ctx *aContext) tracing() bool {
	return ctx.log.Logger.IsLevelEnabled(logrus.TraceLevel)
}

// succs returns the successors of n in the supergraph of the run. An entering
// call flows into the callee, and the exit of a callee flows back to the
// intraprocedural successors of all of its call sites.
func (ctx *aContext) succs(n *Node) []*Node {
	switch {
	case n.enters():
		return []*Node{n.Target.Entry}
	case n.Kind == ExitNode:
		var succs []*Node
		for _, c := range ctx.callSites[n.Func] {
			succs = append(succs, c.Succs...)
		}
		return succs
	default:
		return n.Succs
	}
}

// preds is the inverse of succs.
func (ctx *aContext) preds(n *Node) []*Node {
	if n.Kind == EntryNode {
		return ctx.callSites[n.Func]
	}

	preds := make([]*Node, 0, len(n.Preds))
	for _, p := range n.Preds {
		if p.enters() {
			p = p.Target.Exit
		}
		preds = append(preds, p)
	}
	return preds
}

func decoded(n *Node) bool {
	return n.Kind != UpdateNode || n.Assign != nil
}

// visitDemand recomputes the demand around n and reports whether the demand
// before n changed. The first visit of a node always counts as a change.
func (ctx *aContext) visitDemand(n *Node) bool {
	if !decoded(n) {
		return false
	}
	ctx.demandVisits++

	out := ExprSet{}
	for _, s := range ctx.succs(n) {
		out.AddAll(ctx.facts.DemandIn[s])
	}
	ctx.facts.DemandOut[n] = out

	var in ExprSet
	switch {
	case n.Kind == UpdateNode:
		in = ctx.findDemand(n, out)
	case n.barrier():
		in = ExprSet{}
		if n == ctx.call {
			in.Add(ctx.origin)
		}
	default:
		in = out.Clone()
	}

	old, seen := ctx.facts.DemandIn[n]
	in.AddAll(old)
	ctx.facts.DemandIn[n] = in

	if ctx.config.OnDemand != nil {
		ctx.config.OnDemand(n, old, in)
	}
	return !seen || !old.Equal(in)
}

// visitAlias recomputes the alias relation around n and reports whether the
// relation after n changed. The first visit of a node always counts as a
// change.
func (ctx *aContext) visitAlias(n *Node) bool {
	if !decoded(n) {
		return false
	}
	ctx.aliasVisits++

	in := Alias{}
	for _, p := range ctx.preds(n) {
		in.Merge(ctx.facts.AliasOut[p])
	}
	ctx.facts.AliasIn[n] = in

	var out Alias
	switch {
	case n.Kind == UpdateNode:
		out = ctx.findAlias(n)
	case n.barrier():
		out = Alias{}
	default:
		out = in.Clone()
	}

	old, seen := ctx.facts.AliasOut[n]
	out.Merge(old)
	ctx.facts.AliasOut[n] = out
	return !seen || !old.Equal(out)
}

// solve runs demand and alias rounds until neither worklist has work left, or
// until the round limit is hit. It reports whether a fixpoint was reached.
func (ctx *aContext) solve() bool {
	ctx.demandWork.Push(ctx.call)
	ctx.aliasWork.Push(ctx.root.Entry)

	for !ctx.demandWork.Empty() || !ctx.aliasWork.Empty() {
		if limit := ctx.config.MaxRounds; limit > 0 && ctx.rounds >= limit {
			return false
		}
		ctx.rounds++

		for !ctx.demandWork.Empty() {
			n := ctx.demandWork.Pop()
			if ctx.visitDemand(n) {
				for _, p := range ctx.preds(n) {
					ctx.demandWork.Push(p)
					ctx.aliasWork.Push(p)
				}
			}
		}

		for !ctx.aliasWork.Empty() {
			n := ctx.aliasWork.Pop()
			if ctx.visitAlias(n) {
				for _, s := range ctx.succs(n) {
					ctx.aliasWork.Push(s)
					ctx.demandWork.Push(s)
				}
			}
		}

		ctx.log.Debugf("round %d: %d demand visits, %d alias visits",
			ctx.rounds, ctx.demandVisits, ctx.aliasVisits)
	}
	return true
}

// Resolve computes the demand and alias facts for one virtual call. The
// returned Run is non-nil whenever call is a seeded virtual call, including
// when the round limit was reached, in which case the error wraps
// ErrNotConverged and the facts are those of the last completed round.
func Resolve(config AnalysisConfig, call *Node) (*Run, error) {
	if call == nil || call.Kind != CallNode || call.Call != VirtualCall || call.Origin == nil {
		return nil, fmt.Errorf("%v: %w", call, ErrNotVirtual)
	}

	ctx := newContext(config, call)
	converged := ctx.solve()
	run := ctx.run(converged)

	if !converged {
		return run, fmt.Errorf("%s in %s after %d rounds: %w",
			call, call.Func.Name, run.Rounds, ErrNotConverged)
	}

	ctx.log.WithFields(logrus.Fields{
		"rounds":  run.Rounds,
		"targets": len(run.Targets()),
	}).Debug("resolved")
	return run, nil
}

// Analyze resolves every seeded virtual call of the configured functions.
// Runs that do not converge are included in the result and logged.
func Analyze(config AnalysisConfig) Result {
	funcs := config.Functions
	if len(funcs) == 0 && config.Program != nil {
		funcs = config.Program.Functions
	}

	log := config.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	var res Result
	for _, f := range funcs {
		for _, call := range f.VirtualCalls() {
			run, err := Resolve(config, call)
			if err != nil {
				log.WithField("func", f.Name).Warn(err)
			}
			res.Runs = append(res.Runs, run)
		}
	}
	return res
}
