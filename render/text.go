package render

import (
	"strings"

	"github.com/BarrensZeppelin/devirt"
	"github.com/BarrensZeppelin/devirt/frontend"
	"github.com/BarrensZeppelin/devirt/internal/slices"
	"golang.org/x/tools/go/ssa"
)

func joinTerms(es []devirt.Expression) string {
	return strings.Join(slices.Map(es, devirt.Expression.String), ", ")
}

// Runs writes one entry per run with the terms the origin was traced to.
func (p *Printer) Runs(runs []*devirt.Run) {
	for _, run := range runs {
		p.printf("%s: %s\n", p.head.Sprint(run.Call.Func.Name), run.Call)
		p.printf("  origin   %s\n", run.Origin)

		if targets := run.Targets(); len(targets) != 0 {
			p.printf("  targets  %s\n", p.good.Sprint(joinTerms(targets)))
		} else {
			p.printf("  targets  %s\n", p.bad.Sprint("(none)"))
		}

		if run.Converged {
			p.printf("  rounds   %d\n", run.Rounds)
		} else {
			p.printf("  rounds   %d %s\n", run.Rounds, p.bad.Sprint("(not converged)"))
		}

		if !p.Verbose {
			continue
		}
		alias := run.AliasAtCall()
		for i, key := range alias.Keys() {
			label := "  alias    "
			if i > 0 {
				label = "           "
			}
			p.printf("%s%s\n", label, p.faint.Sprintf("%s ↦ %s", key, alias[key]))
		}
	}
}

// Resolutions writes one line per interface method call with the methods it
// may dispatch to, followed by a summary. Unresolved calls are listed only
// when withUnresolved is set.
func (p *Printer) Resolutions(fe *frontend.Frontend, rs []frontend.Resolution, withUnresolved bool) {
	for _, r := range rs {
		if !r.Resolved() && !withUnresolved {
			continue
		}

		pos := fe.Position(r.Site.Pos())
		common := r.Site.Common()
		call := common.Value.Name() + "." + common.Method.Name()

		if r.Resolved() {
			names := slices.Map(r.Callees, (*ssa.Function).String)
			p.printf("%s: %s -> %s\n", pos, p.head.Sprint(call), p.good.Sprint(strings.Join(names, ", ")))
		} else {
			p.printf("%s: %s -> %s\n", pos, p.head.Sprint(call), p.bad.Sprint("unresolved"))
		}
	}

	unresolved := frontend.Unresolved(rs)
	p.printf("%s\n", p.faint.Sprintf("%d calls, %d resolved, %d unresolved",
		len(rs), len(rs)-unresolved, unresolved))
}
