package rewrite

import (
	"github.com/robinpath/robinpath/pkg/parse"
)

// Node is the JSON-serializable form of a syntax tree node exported by
// GetAST and consumed by UpdateCode. Kind identifies the node type, Pos the
// original source span (absent on nodes the caller synthesized), Props the
// scalar fields, and Kids the child node lists keyed by role.
type Node struct {
	Kind  string              `json:"kind"`
	Pos   *parse.CodePosition `json:"pos,omitempty"`
	Props map[string]any      `json:"props,omitempty"`
	Kids  map[string][]*Node  `json:"kids,omitempty"`
}

// Resolver supplies module resolution for bare command names. An
// *eval.Environment satisfies it.
type Resolver interface {
	ResolveModuleIn(name, cursor string) string
}

type serializer struct {
	src      parse.Source
	resolver Resolver
	cursor   string
}

func (sr *serializer) node(kind string, n parse.Node) *Node {
	pos := parse.PositionOf(sr.src.Code, n.Range())
	return &Node{
		Kind:  kind,
		Pos:   &pos,
		Props: make(map[string]any),
		Kids:  make(map[string][]*Node),
	}
}

func (sr *serializer) chunk(c *parse.Chunk) []*Node {
	out := make([]*Node, 0, len(c.Statements))
	for _, st := range c.Statements {
		out = append(out, sr.stmt(st))
	}
	return out
}

func (sr *serializer) stmt(st parse.Statement) *Node {
	var n *Node
	switch st := st.(type) {
	case *parse.CommandStmt:
		n = sr.node("command", st)
		n.Props["name"] = st.Name
		if st.Parenthesized {
			n.Props["parenthesized"] = true
		}
		if st.CallbackKind != "" {
			n.Props["callbackKind"] = st.CallbackKind
		}
		if sr.resolver != nil {
			if mod := sr.resolver.ResolveModuleIn(st.Name, sr.cursor); mod != "" {
				n.Props["module"] = mod
			}
		}
		sr.exprKids(n, "args", st.Args)
		for _, o := range st.Opts {
			n.Kids["opts"] = append(n.Kids["opts"], sr.expr(o))
		}
		if st.Into != nil {
			n.Kids["into"] = []*Node{sr.expr(st.Into)}
		}
		if st.Callback != nil {
			n.Kids["callback"] = sr.chunk(st.Callback)
		}
	case *parse.AssignStmt:
		n = sr.node("assign", st)
		if st.SetStyle {
			n.Props["setStyle"] = true
		}
		if st.HasAs {
			n.Props["hasAs"] = true
		}
		n.Kids["target"] = []*Node{sr.expr(st.Target)}
		n.Kids["value"] = []*Node{sr.expr(st.Value)}
		if st.Fallback != nil {
			n.Kids["fallback"] = []*Node{sr.expr(st.Fallback)}
		}
	case *parse.InlineIfStmt:
		n = sr.node("inlineIf", st)
		n.Kids["cond"] = []*Node{sr.expr(st.Cond)}
		n.Kids["then"] = []*Node{sr.stmt(st.Then)}
		if st.Else != nil {
			n.Kids["else"] = []*Node{sr.stmt(st.Else)}
		}
	case *parse.IfStmt:
		n = sr.node("if", st)
		for _, br := range st.Branches {
			b := sr.node("branch", br)
			b.Kids["cond"] = []*Node{sr.expr(br.Cond)}
			b.Kids["body"] = sr.chunk(br.Body)
			n.Kids["branches"] = append(n.Kids["branches"], b)
		}
		if st.ElseBody != nil {
			n.Kids["else"] = sr.chunk(st.ElseBody)
		}
	case *parse.IfTrueStmt:
		n = sr.node("ifTrue", st)
		if st.Negate {
			n.Props["negate"] = true
		}
		if st.Body != nil {
			n.Kids["body"] = []*Node{sr.stmt(st.Body)}
		}
	case *parse.DefStmt:
		n = sr.node("def", st)
		n.Props["name"] = st.Name
		n.Props["params"] = strList(st.Params)
		n.Kids["body"] = sr.chunk(st.Body)
	case *parse.DoStmt:
		n = sr.doStmt(st)
	case *parse.TogetherStmt:
		n = sr.node("together", st)
		for _, b := range st.Blocks {
			n.Kids["blocks"] = append(n.Kids["blocks"], sr.doStmt(b))
		}
	case *parse.ForStmt:
		n = sr.node("for", st)
		n.Props["var"] = st.VarName
		n.Kids["iterable"] = []*Node{sr.expr(st.Iterable)}
		n.Kids["body"] = sr.chunk(st.Body)
	case *parse.ReturnStmt:
		n = sr.node("return", st)
		if st.Value != nil {
			n.Kids["value"] = []*Node{sr.expr(st.Value)}
		}
	case *parse.BreakStmt:
		n = sr.node("break", st)
	case *parse.ContinueStmt:
		n = sr.node("continue", st)
	case *parse.OnStmt:
		n = sr.node("on", st)
		n.Props["event"] = st.Event
		n.Kids["body"] = sr.chunk(st.Body)
	case *parse.UseStmt:
		n = sr.node("use", st)
		n.Props["module"] = st.Module
		sr.cursor = st.Module
	case *parse.CommentStmt:
		n = sr.node("commentGroup", st)
		for _, c := range st.Comments {
			n.Kids["comments"] = append(n.Kids["comments"], sr.comment(c))
		}
	default:
		n = sr.node("unknown", st)
	}

	for _, d := range parse.Decorators(st) {
		n.Kids["decorators"] = append(n.Kids["decorators"], sr.decorator(d))
	}
	for _, c := range parse.AboveComments(st) {
		n.Kids["aboveComments"] = append(n.Kids["aboveComments"], sr.comment(c))
	}
	if ic := parse.InlineComment(st); ic != nil {
		n.Kids["inlineComment"] = []*Node{sr.comment(ic)}
	}
	return n
}

func (sr *serializer) doStmt(st *parse.DoStmt) *Node {
	n := sr.node("do", st)
	n.Props["params"] = strList(st.Params)
	if st.Into != nil {
		n.Kids["into"] = []*Node{sr.expr(st.Into)}
	}
	n.Kids["body"] = sr.chunk(st.Body)
	return n
}

func (sr *serializer) decorator(d *parse.Decorator) *Node {
	n := sr.node("decorator", d)
	n.Props["name"] = d.Name
	sr.exprKids(n, "args", d.Args)
	return n
}

func (sr *serializer) comment(c *parse.Comment) *Node {
	n := sr.node("comment", c)
	n.Props["text"] = c.Text
	return n
}

func (sr *serializer) exprKids(n *Node, key string, es []parse.Expr) {
	for _, e := range es {
		n.Kids[key] = append(n.Kids[key], sr.expr(e))
	}
}

var quoteNames = map[parse.QuoteKind]string{
	parse.Bareword:     "bareword",
	parse.DoubleQuoted: "double",
	parse.SingleQuoted: "single",
	parse.Fenced:       "fenced",
}

func (sr *serializer) expr(e parse.Expr) *Node {
	switch e := e.(type) {
	case *parse.VarRef:
		n := sr.node("var", e)
		n.Props["name"] = e.Name
		if len(e.Path) > 0 {
			n.Props["path"] = strList(e.Path)
		}
		return n
	case *parse.LastValue:
		return sr.node("lastValue", e)
	case *parse.NumberLit:
		n := sr.node("number", e)
		n.Props["value"] = e.Value
		return n
	case *parse.StringLit:
		n := sr.node("string", e)
		n.Props["value"] = e.Value
		n.Props["quote"] = quoteNames[e.Quote]
		return n
	case *parse.TemplateLit:
		n := sr.node("template", e)
		for _, seg := range e.Segments {
			if txt, ok := seg.(*parse.TemplateText); ok {
				t := sr.node("templateText", txt)
				t.Props["text"] = txt.Text
				n.Kids["segments"] = append(n.Kids["segments"], t)
			} else {
				n.Kids["segments"] = append(n.Kids["segments"], sr.expr(seg.(parse.Expr)))
			}
		}
		return n
	case *parse.BoolLit:
		n := sr.node("bool", e)
		n.Props["value"] = e.Value
		return n
	case *parse.NullLit:
		return sr.node("null", e)
	case *parse.ObjectLit:
		n := sr.node("object", e)
		for _, p := range e.Pairs {
			pn := sr.node("pair", p)
			pn.Props["key"] = p.Key
			pn.Kids["value"] = []*Node{sr.expr(p.Value)}
			n.Kids["pairs"] = append(n.Kids["pairs"], pn)
		}
		return n
	case *parse.ArrayLit:
		n := sr.node("array", e)
		sr.exprKids(n, "elements", e.Elements)
		return n
	case *parse.SubExpr:
		n := sr.node("subExpr", e)
		n.Kids["body"] = sr.chunk(e.Body)
		return n
	case *parse.BinaryExpr:
		n := sr.node("binary", e)
		n.Props["op"] = e.Op
		n.Kids["lhs"] = []*Node{sr.expr(e.LHS)}
		n.Kids["rhs"] = []*Node{sr.expr(e.RHS)}
		return n
	case *parse.UnaryExpr:
		n := sr.node("unary", e)
		n.Props["op"] = e.Op
		n.Kids["operand"] = []*Node{sr.expr(e.Operand)}
		return n
	case *parse.CallExpr:
		n := sr.node("call", e)
		n.Props["name"] = e.Name
		if e.Bare {
			n.Props["bare"] = true
		}
		if sr.resolver != nil {
			if mod := sr.resolver.ResolveModuleIn(e.Name, sr.cursor); mod != "" {
				n.Props["module"] = mod
			}
		}
		sr.exprKids(n, "args", e.Args)
		for _, o := range e.Opts {
			n.Kids["opts"] = append(n.Kids["opts"], sr.expr(o))
		}
		return n
	case *parse.NamedArg:
		n := sr.node("namedArg", e)
		n.Props["name"] = e.Name
		n.Kids["value"] = []*Node{sr.expr(e.Value)}
		return n
	}
	return sr.node("unknown", e)
}

func strList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
