package parse

import "github.com/robinpath/robinpath/pkg/diag"

// Node represents a node in the syntax tree. Beyond the semantic fields of
// each concrete type, every node records the exact byte range and source text
// it was parsed from, which is what the round-trip code generator in
// pkg/rewrite relies on.
type Node interface {
	diag.Ranger
	n() *node
}

// node is the base of all node types. It is embedded in all concrete types.
type node struct {
	diag.Ranging
	sourceText string
}

func (n *node) n() *node { return n }

// SourceText returns the part of the source text parsed into the node.
func SourceText(n Node) string { return n.n().sourceText }
