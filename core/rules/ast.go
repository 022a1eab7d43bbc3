package rules

import "strings"

// Node is a parsed rule expression.
type Node interface {
	// String renders the node in canonical rule syntax. Parsing the output
	// yields an equivalent tree.
	String() string
	precedence() int
}

// Binding strength used when rendering. Higher binds tighter.
const (
	precOr = iota + 1
	precAnd
	precUnary
)

// TermNode is a single operator/operand pair.
type TermNode struct {
	Operator rune
	Operand  string
	Pos      int
}

func (n *TermNode) String() string {
	return string(n.Operator) + quoteOperand(n.Operand)
}

func (n *TermNode) precedence() int { return precUnary }

// NotNode negates its operand.
type NotNode struct {
	Operand Node
	Pos     int
}

func (n *NotNode) String() string {
	return "!" + wrap(n.Operand, precUnary)
}

func (n *NotNode) precedence() int { return precUnary }

// AndNode holds when all of its operands hold.
type AndNode struct {
	Operands []Node
}

func (n *AndNode) String() string {
	return join(n.Operands, " & ", precAnd)
}

func (n *AndNode) precedence() int { return precAnd }

// OrNode holds when any of its operands holds.
type OrNode struct {
	Operands []Node
}

func (n *OrNode) String() string {
	return join(n.Operands, " | ", precOr)
}

func (n *OrNode) precedence() int { return precOr }

func wrap(n Node, parent int) string {
	if n.precedence() < parent {
		return "(" + n.String() + ")"
	}
	return n.String()
}

func join(nodes []Node, sep string, parent int) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		// Same-kind children are flattened by the parser, so a child with equal
		// precedence only appears when built by hand; parenthesise it to keep
		// the grouping.
		if n.precedence() <= parent && n.precedence() != precUnary {
			parts[i] = "(" + n.String() + ")"
			continue
		}
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}

// Terms returns every term of the tree in source order.
func Terms(n Node) []*TermNode {
	var out []*TermNode
	walk(n, func(t *TermNode) { out = append(out, t) })
	return out
}

// Operators returns the distinct operator characters used by the tree, in
// order of first appearance.
func Operators(n Node) []rune {
	seen := make(map[rune]struct{})
	var out []rune
	walk(n, func(t *TermNode) {
		if _, ok := seen[t.Operator]; ok {
			return
		}
		seen[t.Operator] = struct{}{}
		out = append(out, t.Operator)
	})
	return out
}

func walk(n Node, visit func(*TermNode)) {
	switch node := n.(type) {
	case *TermNode:
		visit(node)
	case *NotNode:
		walk(node.Operand, visit)
	case *AndNode:
		for _, child := range node.Operands {
			walk(child, visit)
		}
	case *OrNode:
		for _, child := range node.Operands {
			walk(child, visit)
		}
	}
}
