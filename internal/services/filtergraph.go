package services

import (
	"fmt"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Filter graph intermediate representation
//
// The composition planner builds an explicit list of typed graph nodes with
// named input/output pads instead of formatting filter strings ad hoc. The
// graph is validated (pad references must resolve, output labels must be
// unique, intermediate streams must be consumed) before being serialized
// to the encoder's filter_complex text. Correctness checks stay decoupled
// from string formatting.
// ---------------------------------------------------------------------------

// sourcePadRe matches encoder input pads like "0:v", "2:a", "1:v:0".
var sourcePadRe = regexp.MustCompile(`^\d+:[av](:\d+)?$`)

// FilterNode is one filter invocation: named pads in, filter + args, named
// pads out.
type FilterNode struct {
	Filter  string
	Args    string
	Inputs  []string
	Outputs []string
}

// FilterGraph is an ordered list of filter nodes forming a DAG over named
// stream labels.
type FilterGraph struct {
	nodes []FilterNode
}

func NewFilterGraph() *FilterGraph {
	return &FilterGraph{}
}

// Add appends a node to the graph and returns it for chaining convenience.
func (g *FilterGraph) Add(filter, args string, inputs []string, outputs ...string) *FilterGraph {
	g.nodes = append(g.nodes, FilterNode{
		Filter:  filter,
		Args:    args,
		Inputs:  inputs,
		Outputs: outputs,
	})
	return g
}

// Nodes returns the node list in insertion order.
func (g *FilterGraph) Nodes() []FilterNode {
	return g.nodes
}

// Validate checks the graph against the terminal labels that will be mapped
// into the output container:
//   - every node has a filter name and at least one output
//   - every input pad is either an encoder source pad ("N:v"/"N:a") or the
//     output of an earlier node
//   - no output label is produced twice
//   - every produced label is consumed exactly once, either by a later node
//     or by appearing in terminals
func (g *FilterGraph) Validate(terminals ...string) error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("filter graph is empty")
	}

	produced := map[string]bool{} // label -> consumed
	terminal := map[string]bool{}
	for _, t := range terminals {
		terminal[t] = true
	}

	for i, n := range g.nodes {
		if n.Filter == "" {
			return fmt.Errorf("node %d has no filter name", i)
		}
		if len(n.Outputs) == 0 {
			return fmt.Errorf("node %d (%s) has no output pads", i, n.Filter)
		}

		for _, in := range n.Inputs {
			if sourcePadRe.MatchString(in) {
				continue
			}
			consumed, ok := produced[in]
			if !ok {
				return fmt.Errorf("node %d (%s) reads undefined stream [%s]", i, n.Filter, in)
			}
			if consumed {
				return fmt.Errorf("node %d (%s) reads stream [%s] which was already consumed", i, n.Filter, in)
			}
			produced[in] = true
		}

		for _, out := range n.Outputs {
			if sourcePadRe.MatchString(out) {
				return fmt.Errorf("node %d (%s) output [%s] collides with a source pad name", i, n.Filter, out)
			}
			if _, exists := produced[out]; exists {
				return fmt.Errorf("node %d (%s) redefines stream [%s]", i, n.Filter, out)
			}
			produced[out] = false
		}
	}

	for _, t := range terminals {
		consumed, ok := produced[t]
		if !ok {
			return fmt.Errorf("terminal stream [%s] is never produced", t)
		}
		if consumed {
			return fmt.Errorf("terminal stream [%s] was consumed by another node", t)
		}
	}

	for label, consumed := range produced {
		if !consumed && !terminal[label] {
			return fmt.Errorf("stream [%s] is produced but never consumed", label)
		}
	}

	return nil
}

// String serializes the graph to ffmpeg filter_complex syntax:
// "[in1][in2]filter=args[out];[out]next[final]".
func (g *FilterGraph) String() string {
	parts := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		var sb strings.Builder
		for _, in := range n.Inputs {
			fmt.Fprintf(&sb, "[%s]", in)
		}
		sb.WriteString(n.Filter)
		if n.Args != "" {
			sb.WriteString("=")
			sb.WriteString(n.Args)
		}
		for _, out := range n.Outputs {
			fmt.Fprintf(&sb, "[%s]", out)
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, ";")
}

// escapeFilterPath escapes special characters in file paths for ffmpeg
// filter syntax. Filter strings treat colons, backslashes, and single quotes
// specially.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// escapeDrawtext escapes text for use inside a drawtext filter argument.
func escapeDrawtext(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, "'", "")
	text = strings.ReplaceAll(text, ":", "\\:")
	text = strings.ReplaceAll(text, "%", "\\%")
	return text
}
