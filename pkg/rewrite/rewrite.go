// Package rewrite exports parsed programs as a JSON-serializable tree and
// patches source text from an edited tree, touching only the spans that
// changed. Together with pkg/parse it forms the round-trip engine: parsing
// then regenerating from an unmodified tree reproduces the source
// byte-for-byte, and a single edited leaf comes back as a single replaced
// span.
package rewrite

import (
	"github.com/robinpath/robinpath/pkg/parse"
)

// GetAST parses the source and returns its serialized statement list. With a
// non-nil resolver, command and call nodes carry a "module" prop naming the
// module they resolve to, following use statements in the source.
func GetAST(src parse.Source, r Resolver) ([]*Node, error) {
	tree, err := parse.Parse(src)
	if err != nil {
		return nil, err
	}
	sr := &serializer{src: src, resolver: r}
	return sr.chunk(tree.Root), nil
}

// UpdateCode applies an edited tree back to the source it was exported from.
// Nodes are matched to the original parse by kind and position: matched nodes
// with changed leaves splice minimally, structural changes re-render the
// enclosing node, nodes without a valid position are insertions, and original
// nodes absent from the edited tree are deletions. Everything outside those
// spans, whitespace, comments and syntax flavor included, survives untouched.
func UpdateCode(src parse.Source, edited []*Node) (string, error) {
	tree, err := parse.Parse(src)
	if err != nil {
		return "", err
	}
	sr := &serializer{src: src}
	orig := sr.chunk(tree.Root)
	d := &differ{src: src}
	d.diffStmts(orig, edited)
	if d.err != nil {
		return "", d.err
	}
	return splice(src.Code, d.edits)
}
