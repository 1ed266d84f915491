package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/pkg/errors"
)

//GraphFormats maps a figure type to a graphviz output format.
var GraphFormats = map[string]graphviz.Format{
	"png": graphviz.PNG,
	"svg": graphviz.SVG,
	"jpg": graphviz.JPG,
}

//unitDescription returns the label of one unit for topology rendering.
func unitDescription(layer int, unit int, spec LayerSpec) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("L%d.%d\n", layer+1, unit))
	sb.WriteString(string(spec.Activation))
	return sb.String()
}

func drawLayer(g *cgraph.Graph, prefix string, labels []string, shape string, previous []*cgraph.Node) ([]*cgraph.Node, error) {
	nodes := make([]*cgraph.Node, len(labels))
	for i, label := range labels {
		node, err := g.CreateNode(fmt.Sprintf("%s_%d", prefix, i))
		if err != nil {
			return nil, err
		}
		node.Set("label", label)
		node.Set("shape", shape)
		for _, parent := range previous {
			if _, err := g.CreateEdge("", parent, node); err != nil {
				return nil, err
			}
		}
		nodes[i] = node
	}
	return nodes, nil
}

//DrawGraph lays the network out as a fully connected graph, one node per unit. inputNames
//label the input nodes; missing names fall back to x0, x1, ...
func (n *Network) DrawGraph(inputNames []string) (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		return nil, nil, err
	}

	inputs := make([]string, n.params.InputDim)
	for i := range inputs {
		if i < len(inputNames) {
			inputs[i] = inputNames[i]
		} else {
			inputs[i] = fmt.Sprintf("x%d", i)
		}
	}
	previous, err := drawLayer(graph, "in", inputs, "plaintext", nil)
	if err != nil {
		return nil, nil, err
	}

	for l, spec := range n.params.Layers {
		labels := make([]string, spec.Units)
		for u := range labels {
			labels[u] = unitDescription(l, u, spec)
		}
		shape := "circle"
		if l == len(n.params.Layers)-1 {
			shape = "doublecircle"
		}
		previous, err = drawLayer(graph, fmt.Sprintf("l%d", l), labels, shape, previous)
		if err != nil {
			return nil, nil, err
		}
	}
	return graphViz, graph, nil
}

//RenderTopology writes the network diagram to w in the given figure type.
func (n *Network) RenderTopology(w io.Writer, inputNames []string, figureType string) error {
	format, ok := GraphFormats[figureType]
	if !ok {
		return errors.Errorf("unknown figure type %q", figureType)
	}
	graphViz, graph, err := n.DrawGraph(inputNames)
	if err != nil {
		return errors.Wrap(err, "draw topology")
	}
	defer func() {
		_ = graph.Close()
		_ = graphViz.Close()
	}()
	return graphViz.Render(graph, format, w)
}
