package render

import (
	"strconv"
	"strings"

	"github.com/BarrensZeppelin/devirt"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

type dotNode struct {
	n     *devirt.Node
	attrs []encoding.Attribute
}

func (d dotNode) ID() int64                        { return int64(d.n.ID) }
func (d dotNode) DOTID() string                    { return d.n.Label() }
func (d dotNode) Attributes() []encoding.Attribute { return d.attrs }

type dotEdge struct {
	graph.Edge
	attrs []encoding.Attribute
}

func (d dotEdge) Attributes() []encoding.Attribute { return d.attrs }

func attr(key, value string) encoding.Attribute {
	return encoding.Attribute{Key: key, Value: value}
}

func nodeLabel(run *devirt.Run, n *devirt.Node) string {
	lines := []string{n.String()}
	if d, ok := run.Facts.DemandIn[n]; ok && len(d) != 0 {
		lines = append(lines, "demand "+d.String())
	}
	if a, ok := run.Facts.AliasOut[n]; ok && len(a) != 0 {
		lines = append(lines, "alias "+a.String())
	}
	return strconv.Quote(strings.Join(lines, "\n"))
}

// Dot renders the nodes visited by run as a Graphviz digraph. Every node is
// labelled with its demand before and its aliases after it. Edges into and
// out of callees are dashed and the virtual call is highlighted. Self loops
// are omitted.
func Dot(run *devirt.Run, name string) ([]byte, error) {
	g := simple.NewDirectedGraph()

	nodes := make(map[*devirt.Node]dotNode)
	for _, n := range run.Visited() {
		dn := dotNode{n: n, attrs: []encoding.Attribute{attr("label", nodeLabel(run, n))}}
		switch {
		case n == run.Call:
			dn.attrs = append(dn.attrs, attr("color", "red"), attr("shape", "box"))
		case n.Kind == devirt.EntryNode, n.Kind == devirt.ExitNode:
			dn.attrs = append(dn.attrs, attr("shape", "oval"))
		default:
			dn.attrs = append(dn.attrs, attr("shape", "box"))
		}
		nodes[n] = dn
		g.AddNode(dn)
	}

	link := func(from, to *devirt.Node, attrs ...encoding.Attribute) {
		u, ok := nodes[from]
		v, ok2 := nodes[to]
		if !ok || !ok2 || from == to {
			return
		}
		g.SetEdge(dotEdge{Edge: g.NewEdge(u, v), attrs: attrs})
	}

	for n := range nodes {
		if n.Kind == devirt.CallNode && n.Call == devirt.DirectCall &&
			n.Target != nil && !n.Target.Intrinsic {
			link(n, n.Target.Entry, attr("style", "dashed"))
			for _, s := range n.Succs {
				link(n.Target.Exit, s, attr("style", "dashed"))
			}
			continue
		}
		for _, s := range n.Succs {
			link(n, s)
		}
	}

	return dot.Marshal(g, name, "", "  ")
}
