package devirt

import "github.com/sirupsen/logrus"

// findAlias computes the alias relation after the update node n. The relation
// before n must already be stored in AliasIn[n].
func (ctx *aContext) findAlias(n *Node) Alias {
	lhs, rhs := n.Assign.LHS, n.Assign.RHS
	in := ctx.facts.AliasIn[n]
	demand := ctx.facts.DemandOut[n]

	lbar, rbar := ExprSet{}, ExprSet{}
	if lhs.CanPoint() {
		ctx.absName(lhs, n, lbar)
	}
	if rhs.CanPoint() {
		ctx.absName(rhs, n, rbar)
	}
	if len(lbar) == 0 {
		lbar.Add(lhs)
	}
	if len(rbar) == 0 {
		rbar.Add(rhs)
	}

	selfAlias := in.HasSelfAlias(demand)

	gen := Alias{}
	for l := range lbar {
		for r := range rbar {
			if !(demand.Has(l) || demand.Has(r) || selfAlias) {
				continue
			}
			if r.Symbol == Address {
				r = r.WithSymbol(Simple)
			}
			gen.Add(l, r)
		}
	}

	out := in.Clone()
	// x = &y replaces whatever x aliased before.
	if lhs.Symbol == Simple && rhs.Symbol == Address {
		delete(out, lhs)
	}
	out.Merge(gen)

	if ctx.tracing() {
		ctx.log.WithFields(logrus.Fields{
			"node": n.Label(),
			"lbar": lbar.String(),
			"rbar": rbar.String(),
		}).Tracef("alias %s: in=%v gen=%v out=%v", n, in, gen, out)
	}
	return out
}
