package devirt_test

import (
	"errors"
	"io"
	"testing"

	"github.com/BarrensZeppelin/devirt"
	"github.com/BarrensZeppelin/devirt/internal/slices"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type name string

func (n name) Name() string { return string(n) }

var (
	obj  = name("obj")
	vptr = name("vptr")
	vtbl = name("vtbl")
	dvt  = name("Derived_vtable")
	slot = name("slot")
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// scenario builds
//
//	obj->vptr = &Derived_vtable
//	<between>
//	vtbl = obj->vptr
//	vtbl[0](obj)
//
// in a function named f, where between is an optional node of f inserted by
// mid.
type scenario struct {
	prog          *devirt.Program
	f             *devirt.Function
	store, load   *devirt.Node
	between, call *devirt.Node
}

func buildScenario(mid func(f *devirt.Function) *devirt.Node) scenario {
	prog := devirt.NewProgram()
	f := prog.NewFunction("f")

	s := scenario{prog: prog, f: f}
	s.store = f.Update(devirt.FieldOf(obj, vptr, nil, true), devirt.AddrOf(dvt, nil))
	if mid != nil {
		s.between = mid(f)
	}
	s.load = f.Update(devirt.Var(vtbl, nil), devirt.FieldOf(obj, vptr, nil, true))
	s.call = f.VirtualCall(devirt.FieldOf(vtbl, slot, nil, true), devirt.Var(vtbl, nil))

	if s.between != nil {
		f.Chain(f.Entry, s.store, s.between, s.load, s.call, f.Exit)
	} else {
		f.Chain(f.Entry, s.store, s.load, s.call, f.Exit)
	}
	return s
}

func (s scenario) resolve(t *testing.T, preserve bool) *devirt.Run {
	run, err := devirt.Resolve(devirt.AnalysisConfig{
		Program:              s.prog,
		PreserveAliasTargets: preserve,
		Log:                  quietLog(),
	}, s.call)
	require.NoError(t, err)
	require.True(t, run.Converged)
	return run
}

// resolvesTo reports whether some target is rooted at v.
func resolvesTo(targets []devirt.Expression, v devirt.Value) bool {
	for _, target := range targets {
		if target.Root() == v {
			return true
		}
	}
	return false
}

func countNodes(prog *devirt.Program) int {
	n := 0
	for _, f := range prog.Functions {
		n += len(f.Nodes)
	}
	return n
}

func TestScenarioA(t *testing.T) {
	s := buildScenario(nil)
	arrow := devirt.FieldOf(obj, vptr, nil, true)

	t.Run("PreserveAliasTargets", func(t *testing.T) {
		run := s.resolve(t, true)

		assert.True(t, run.Facts.DemandOut[s.store].Has(arrow),
			"the vptr field is demanded at the store")
		assert.True(t, run.Facts.DemandIn[s.call].Has(devirt.Var(vtbl, nil)))

		targets := run.Targets()
		require.NotEmpty(t, targets)
		for _, target := range targets {
			assert.Equal(t, dvt, target.Root(), "%v does not resolve to the vtable", target)
		}

		assert.LessOrEqual(t, run.Rounds, countNodes(s.prog))
	})

	t.Run("Literal", func(t *testing.T) {
		run := s.resolve(t, false)

		assert.True(t, run.Facts.DemandOut[s.store].Has(arrow))
		alias := run.AliasAtCall()
		assert.True(t, alias.Lookup(arrow).Has(devirt.Var(dvt, nil)),
			"the store records the vtable for obj->vptr")
		assert.True(t, alias.Lookup(devirt.Var(vtbl, nil)).Has(
			devirt.Expression{Base: obj, Symbol: devirt.Dot}),
			"renaming obj->vptr stamps obj as the base")
	})
}

func TestScenarioB(t *testing.T) {
	t.Run("DirectCall", func(t *testing.T) {
		var g *devirt.Function
		s := buildScenario(func(f *devirt.Function) *devirt.Node {
			g = f.Program.NewFunction("g")
			u := g.Update(devirt.Var(name("x"), nil), devirt.Var(name("y"), nil))
			g.Chain(g.Entry, u, g.Exit)
			return f.Call(devirt.Var(name("g"), nil), devirt.DirectCall, g)
		})
		arrow := devirt.FieldOf(obj, vptr, nil, true)

		run := s.resolve(t, true)
		assert.True(t, run.Facts.DemandIn[g.Entry].Has(arrow), "demand enters the callee")
		assert.True(t, run.Facts.DemandOut[s.store].Has(arrow), "demand crosses the call")
		assert.True(t, run.Facts.AliasOut[g.Exit].Lookup(arrow).Has(devirt.Var(dvt, nil)),
			"aliases flow through the callee")
		assert.True(t, resolvesTo(run.Targets(), dvt))
		assert.LessOrEqual(t, run.Rounds, countNodes(s.prog))
	})

	t.Run("IndirectCall", func(t *testing.T) {
		s := buildScenario(func(f *devirt.Function) *devirt.Node {
			return f.Call(devirt.Var(name("fp"), nil), devirt.IndirectCall, nil)
		})
		arrow := devirt.FieldOf(obj, vptr, nil, true)

		run := s.resolve(t, true)
		assert.Empty(t, run.Facts.DemandIn[s.between], "demand stops at the call")
		assert.False(t, run.Facts.DemandOut[s.store].Has(arrow))
		assert.Empty(t, run.Facts.AliasOut[s.between])
		assert.False(t, resolvesTo(run.Targets(), dvt))
	})

	for _, tc := range []struct {
		name string
		mid  func(f *devirt.Function) *devirt.Node
	}{
		{"Intrinsic", func(f *devirt.Function) *devirt.Node {
			memcpy := f.Program.NewFunction("memcpy")
			memcpy.Intrinsic = true
			return f.Call(devirt.Var(name("memcpy"), nil), devirt.DirectCall, memcpy)
		}},
		{"External", func(f *devirt.Function) *devirt.Node {
			return f.Call(devirt.Var(name("puts"), nil), devirt.DirectCall, nil)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := buildScenario(tc.mid)
			run := s.resolve(t, true)
			assert.True(t, resolvesTo(run.Targets(), dvt), "the call is a no-op")
		})
	}
}

func TestScenarioC(t *testing.T) {
	prog := devirt.NewProgram()
	f := prog.NewFunction("f")
	u := f.Update(devirt.Var(name("x"), nil), devirt.AddrOf(name("y"), nil))
	c := f.Call(devirt.Var(name("fp"), nil), devirt.IndirectCall, nil)
	f.Chain(f.Entry, u, c, f.Exit)

	res := devirt.Analyze(devirt.AnalysisConfig{Program: prog, Log: quietLog()})
	assert.Empty(t, res.Runs)

	_, err := devirt.Resolve(devirt.AnalysisConfig{Program: prog}, c)
	assert.ErrorIs(t, err, devirt.ErrNotVirtual)
}

func TestUndecodedNode(t *testing.T) {
	s := buildScenario(func(f *devirt.Function) *devirt.Node {
		return f.Undecoded()
	})

	run := s.resolve(t, true)
	assert.NotContains(t, run.Facts.DemandIn, s.between)
	assert.NotContains(t, run.Facts.AliasOut, s.between)
	arrow := devirt.FieldOf(obj, vptr, nil, true)
	assert.False(t, run.Facts.DemandOut[s.store].Has(arrow), "demand does not cross the node")
	assert.Empty(t, run.Facts.DemandOut[s.store])
	assert.False(t, resolvesTo(run.Targets(), dvt))
}

func TestMaxRounds(t *testing.T) {
	s := buildScenario(nil)

	run, err := devirt.Resolve(devirt.AnalysisConfig{
		Program:   s.prog,
		MaxRounds: 1,
		Log:       quietLog(),
	}, s.call)
	require.Error(t, err)
	assert.True(t, errors.Is(err, devirt.ErrNotConverged))
	require.NotNil(t, run)
	assert.False(t, run.Converged)
	assert.Equal(t, 1, run.Rounds)

	res := devirt.Analyze(devirt.AnalysisConfig{
		Program:   s.prog,
		MaxRounds: 1,
		Log:       quietLog(),
	})
	assert.Len(t, res.Unconverged(), 1)
	assert.Same(t, res.Runs[0], res.Run(s.call))
}

func TestDemandIsMonotone(t *testing.T) {
	var g *devirt.Function
	s := buildScenario(func(f *devirt.Function) *devirt.Node {
		g = f.Program.NewFunction("g")
		u := g.Update(devirt.Var(name("x"), nil), devirt.FieldOf(obj, vptr, nil, true))
		w := g.Update(devirt.FieldOf(obj, vptr, nil, true), devirt.Var(name("x"), nil))
		g.Chain(g.Entry, u, w, g.Exit)
		// A loop around the store.
		g.Edge(w, u)
		return f.Call(devirt.Var(name("g"), nil), devirt.DirectCall, g)
	})
	require.False(t, g.Acyclic())
	require.Len(t, g.Loops(), 1)

	visits := 0
	run, err := devirt.Resolve(devirt.AnalysisConfig{
		Program:              s.prog,
		PreserveAliasTargets: true,
		Log:                  quietLog(),
		OnDemand: func(n *devirt.Node, before, after devirt.ExprSet) {
			visits++
			assert.True(t, slices.Subset(before.Sorted(), after.Sorted()),
				"demand before %v shrank from %v to %v", n, before, after)
		},
	}, s.call)
	require.NoError(t, err)
	assert.Equal(t, run.DemandVisits, visits)
	assert.True(t, resolvesTo(run.Targets(), dvt))
}
