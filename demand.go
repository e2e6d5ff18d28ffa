package devirt

import "github.com/sirupsen/logrus"

// absName renames e through the alias relation in effect before n and adds
// the renamed terms to out. *p becomes a simple term and p->f a dot term for
// every alias of e. When e has no aliases, e itself is added.
func (ctx *aContext) absName(e Expression, n *Node, out ExprSet) {
	targets := ctx.facts.AliasIn[n].Lookup(e)
	if len(targets) == 0 {
		out.Add(e)
		return
	}

	for a := range targets {
		var sym Symbol
		switch e.Symbol {
		case Pointer:
			sym = Simple
		case Arrow:
			sym = Dot
		default:
			out.Add(e)
			continue
		}

		renamed := a.WithSymbol(sym)
		if !ctx.config.PreserveAliasTargets {
			renamed.Base, renamed.Type = e.Base, e.Type
		}
		out.Add(renamed)
	}
}

func (ctx *aContext) addressTaken(e Expression) bool {
	return ctx.config.AddressTaken != nil && ctx.config.AddressTaken(e)
}

// leftDemandGen is the demand generated for the right-hand side of an
// assignment whose left-hand side is demanded.
func (ctx *aContext) leftDemandGen(rhs Expression, n *Node) ExprSet {
	gen := ExprSet{}
	switch {
	case rhs.CanPoint():
		v := rhs.SimpleForm()
		gen.Add(v)
		if addr := v.AddressForm(); ctx.addressTaken(addr) {
			gen.Add(addr)
		}
		ctx.absName(rhs, n, gen)

	case rhs.Symbol == Address:
		gen.Add(rhs)

	case rhs.Symbol == Simple, rhs.Symbol == Dot:
		gen.Add(rhs)
		if addr := rhs.AddressForm(); ctx.addressTaken(addr) {
			gen.Add(addr)
		}
	}
	return gen
}

// rightDemandGen is the demand generated for the left-hand side of an
// assignment whose right-hand side is demanded.
func (ctx *aContext) rightDemandGen(lhs Expression) ExprSet {
	gen := ExprSet{}
	if lhs.CanPoint() {
		gen.Add(lhs.SimpleForm())
	}
	if addr := lhs.AddressForm(); ctx.addressTaken(addr) {
		gen.Add(addr)
	}
	return gen
}

// findDemand computes the demand before the update node n from the demand
// after it.
func (ctx *aContext) findDemand(n *Node, out ExprSet) ExprSet {
	lhs, rhs := n.Assign.LHS, n.Assign.RHS

	lbar := NewExprSet(lhs)
	if lhs.CanPoint() {
		ctx.absName(lhs, n, lbar)
	}
	rbar := NewExprSet(rhs)
	if rhs.CanPoint() {
		ctx.absName(rhs, n, rbar)
	}

	lin, rin := out.HasAny(lbar), out.HasAny(rbar)

	gen := ExprSet{}
	switch {
	case lin && rin:
		gen.AddAll(ctx.leftDemandGen(rhs, n))
		gen.AddAll(ctx.rightDemandGen(lhs))
	case lin:
		gen = ctx.leftDemandGen(rhs, n)
	case rin:
		gen = ctx.rightDemandGen(lhs)
	}

	in := out.Clone()
	// Only an assignment to a simple name kills. Writing x does not kill
	// demand for x->f or x.f.
	if lhs.Symbol == Simple {
		in.Remove(lhs)
	}
	in.AddAll(gen)

	if ctx.tracing() {
		ctx.log.WithFields(logrus.Fields{
			"node": n.Label(),
			"lbar": lbar.String(),
			"rbar": rbar.String(),
		}).Tracef("demand %s: in=%v out=%v gen=%v", n, in, out, gen)
	}
	return in
}
