// Package parse implements the RobinPath parser.
//
// The parser builds a statement tree in which every node carries the exact
// byte range and source text it came from. Statements are line-oriented;
// block constructs collect lines until their terminator. Failures are
// classified into "needs more input" and "genuinely malformed" (see Error),
// which is what allows a read-eval loop to buffer input line by line.
package parse

import (
	"strconv"
	"strings"

	"github.com/robinpath/robinpath/pkg/diag"
)

// Tree is the result of parsing a piece of source code. Functions and
// Handlers are side-extracted from the statement tree so that forward
// references work regardless of execution order.
type Tree struct {
	Root      *Chunk
	Functions []*DefStmt
	Handlers  []*OnStmt
	Source    Source
}

// Parse parses the given source. The returned error, if not nil, contains one
// or more *Error values, recoverable with UnpackErrors.
func Parse(src Source) (Tree, error) {
	toks, lexErrs := lex(src)
	ps := &parser{src: src, toks: toks, errors: lexErrs}
	root := ps.chunk(blockEnd{})
	if !ps.atEOF() {
		ps.errorf(ps.cur(), "unexpected %s", describe(ps.cur()))
	}
	tree := Tree{Root: root, Functions: ps.functions, Handlers: ps.handlers, Source: src}
	return tree, packErrors(ps.errors)
}

func describe(t Token) string {
	switch t.Kind {
	case EOF:
		return "end of source"
	case Newline:
		return "newline"
	default:
		return strconv.Quote(t.Text)
	}
}

// blockEnd describes what terminates a chunk: a set of identifier keywords
// (endif, enddef, ...), or a closing paren for subexpressions. WaitingFor is
// reported when the source ends before the terminator.
type blockEnd struct {
	terms      map[string]bool
	rparen     bool
	waitingFor string
}

func endAt(waitingFor string, terms ...string) blockEnd {
	m := make(map[string]bool, len(terms))
	for _, t := range terms {
		m[t] = true
	}
	return blockEnd{terms: m, waitingFor: waitingFor}
}

func (ps *parser) atBlockEnd(end blockEnd) bool {
	t := ps.cur()
	if end.rparen && t.Kind == RParen {
		return true
	}
	return t.Kind == Ident && end.terms != nil && end.terms[t.Text]
}

// chunk parses statements until the given terminator (left unconsumed) or the
// end of the source. It owns the attachment of comments and decorators:
// comments attach to the following statement unless separated from it by a
// blank line, in which case they become standalone CommentStmt nodes.
func (ps *parser) chunk(end blockEnd) *Chunk {
	begin := ps.cur().From
	ch := &Chunk{}

	var pendingComments []*Comment
	var pendingDecos []*Decorator
	newlineRun := 0

	flushComments := func() {
		if len(pendingComments) == 0 {
			return
		}
		cs := &CommentStmt{Comments: pendingComments}
		cs.From = pendingComments[0].From
		cs.To = pendingComments[len(pendingComments)-1].To
		cs.sourceText = ps.src.Code[cs.From:cs.To]
		ch.Statements = append(ch.Statements, cs)
		pendingComments = nil
	}

	for {
		t := ps.cur()
		switch {
		case t.Kind == EOF || ps.atBlockEnd(end):
			if t.Kind == EOF && end.waitingFor != "" {
				ps.partialf(diag.PointRanging(len(ps.src.Code)), end.waitingFor,
					"missing %s", end.waitingFor)
			}
			flushComments()
			if len(pendingDecos) > 0 {
				ps.errorf(pendingDecos[0], "decorator not attached to a statement")
			}
			ps.finish(ch, begin)
			return ch
		case t.Kind == Newline:
			ps.advance()
			newlineRun++
			if newlineRun >= 2 {
				flushComments()
			}
		case t.Kind == CommentText:
			c := &Comment{Text: t.Text}
			c.Ranging = t.Ranging
			c.sourceText = t.Text
			pendingComments = append(pendingComments, c)
			ps.advance()
			newlineRun = 0
		case t.Kind == At:
			pendingDecos = append(pendingDecos, ps.decorator())
			newlineRun = 0
		default:
			st := ps.statement()
			newlineRun = 0
			if st == nil {
				continue
			}
			b := st.base()
			b.AboveComments = pendingComments
			b.Decorators = pendingDecos
			pendingComments, pendingDecos = nil, nil
			if ps.cur().Kind == CommentText {
				ct := ps.advance()
				ic := &Comment{Text: ct.Text}
				ic.Ranging = ct.Ranging
				ic.sourceText = ct.Text
				b.InlineComment = ic
			}
			ch.Statements = append(ch.Statements, st)
		}
	}
}

// blockBody parses the newline-terminated remainder of a block header, the
// body chunk, and the closing keyword.
func (ps *parser) blockBody(term string, alsoEndsAt ...string) *Chunk {
	body := ps.chunk(endAt(term, append([]string{term}, alsoEndsAt...)...))
	if ps.cur().isIdent(term) {
		ps.advance()
	}
	return body
}

func (ps *parser) statement() Statement {
	t := ps.cur()
	switch t.Kind {
	case Var:
		return ps.assignment()
	case Ident:
		switch t.Text {
		case "if":
			return ps.ifStmt()
		case "iftrue", "iffalse":
			return ps.ifTrueStmt()
		case "def":
			return ps.defStmt()
		case "do":
			return ps.doStmt()
		case "together":
			return ps.togetherStmt()
		case "for":
			return ps.forStmt()
		case "on":
			return ps.onStmt()
		case "return":
			return ps.returnStmt()
		case "break":
			st := &BreakStmt{}
			ps.advance()
			ps.finish(st, t.From)
			return st
		case "continue":
			st := &ContinueStmt{}
			ps.advance()
			ps.finish(st, t.From)
			return st
		case "set":
			return ps.setStmt()
		case "use":
			return ps.useStmt()
		default:
			return ps.commandStmt()
		}
	default:
		ps.errorf(t, "unexpected %s at start of statement", describe(t))
		ps.advance()
		ps.skipToNewline()
		return nil
	}
}

// simpleStatement parses the one-line statements allowed as the branches of an
// inline if.
func (ps *parser) simpleStatement() Statement {
	t := ps.cur()
	switch t.Kind {
	case Var:
		return ps.assignment()
	case Ident:
		switch t.Text {
		case "if", "def", "do", "together", "for", "on":
			ps.errorf(t, "%q cannot be used in an inline if", t.Text)
			ps.skipToNewline()
			return nil
		case "return":
			return ps.returnStmt()
		case "break":
			st := &BreakStmt{}
			ps.advance()
			ps.finish(st, t.From)
			return st
		case "continue":
			st := &ContinueStmt{}
			ps.advance()
			ps.finish(st, t.From)
			return st
		case "set":
			return ps.setStmt()
		case "use":
			return ps.useStmt()
		default:
			return ps.commandStmt()
		}
	default:
		ps.errorf(t, "unexpected %s, should be a statement", describe(t))
		ps.skipToNewline()
		return nil
	}
}

func (ps *parser) decorator() *Decorator {
	at := ps.advance() // @
	d := &Decorator{}
	if ps.cur().Kind != Ident {
		ps.errorf(ps.cur(), "should be a decorator name")
		ps.skipToNewline()
		ps.finish(d, at.From)
		return d
	}
	d.Name = ps.advance().Text
	for !ps.endOfStatement(ps.cur()) && !startsTrailer(ps.cur()) {
		arg := ps.primary()
		if arg == nil {
			break
		}
		d.Args = append(d.Args, arg)
	}
	ps.finish(d, at.From)
	return d
}

func startsTrailer(t Token) bool {
	return t.Kind == RParen || t.Kind == RBracket || t.Kind == RBrace || t.Kind == Comma
}

// varRefFromToken splits a $name.path token into a VarRef. It returns nil for
// a lone $.
func (ps *parser) varRefFromToken(t Token) *VarRef {
	text := t.Text[1:]
	if text == "" {
		return nil
	}
	segs := strings.Split(text, ".")
	v := &VarRef{Name: segs[0], Path: segs[1:]}
	v.Ranging = t.Ranging
	v.sourceText = t.Text
	return v
}

func (ps *parser) assignment() Statement {
	t := ps.advance()
	target := ps.varRefFromToken(t)
	if target == nil {
		ps.errorf(t, "cannot assign to the last-value register")
		ps.skipToNewline()
		return nil
	}
	if ps.cur().Kind != Assign {
		ps.errorf(ps.cur(), "should be %q", "=")
		ps.skipToNewline()
		return nil
	}
	ps.advance()
	st := &AssignStmt{Target: target, Value: ps.headerExpr()}
	ps.finish(st, t.From)
	return st
}

func (ps *parser) setStmt() Statement {
	t := ps.advance() // set
	if ps.cur().Kind != Var {
		ps.errorf(ps.cur(), "should be a variable name")
		ps.skipToNewline()
		return nil
	}
	vt := ps.advance()
	target := ps.varRefFromToken(vt)
	if target == nil {
		ps.errorf(vt, "cannot assign to the last-value register")
		ps.skipToNewline()
		return nil
	}
	as := &AssignStmt{Target: target, SetStyle: true}
	if ps.cur().isIdent("as") {
		ps.advance()
		as.HasAs = true
	}
	as.Value = ps.expr()
	if !ps.endOfStatement(ps.cur()) {
		as.Fallback = ps.expr()
	}
	ps.finish(as, t.From)
	return as
}

func (ps *parser) useStmt() Statement {
	t := ps.advance()
	st := &UseStmt{}
	if ps.cur().Kind == Ident {
		st.Module = ps.advance().Text
	} else {
		ps.errorf(ps.cur(), "should be a module name")
		ps.skipToNewline()
	}
	ps.finish(st, t.From)
	return st
}

func (ps *parser) returnStmt() Statement {
	t := ps.advance()
	st := &ReturnStmt{}
	if !ps.endOfStatement(ps.cur()) {
		st.Value = ps.headerExpr()
	}
	ps.finish(st, t.From)
	return st
}

func (ps *parser) ifTrueStmt() Statement {
	t := ps.advance()
	st := &IfTrueStmt{Negate: t.Text == "iffalse"}
	st.Body = ps.simpleStatement()
	ps.finish(st, t.From)
	return st
}

func (ps *parser) ifStmt() Statement {
	t := ps.advance() // if
	var cond Expr
	ps.withStopWords([]string{"then"}, func() { cond = ps.expr() })
	if ps.cur().isIdent("then") {
		ps.advance()
		if !ps.endOfStatement(ps.cur()) {
			// Inline form: `if cond then stmt [else stmt]`.
			st := &InlineIfStmt{Cond: cond}
			ps.withStopWords([]string{"else"}, func() { st.Then = ps.simpleStatement() })
			if ps.cur().isIdent("else") {
				ps.advance()
				st.Else = ps.simpleStatement()
			}
			ps.finish(st, t.From)
			return st
		}
	}

	st := &IfStmt{}
	for {
		br := &IfBranch{Cond: cond}
		condFrom := t.From
		br.Body = ps.chunk(endAt("endif", "elseif", "else", "endif"))
		ps.finish(br, condFrom)
		st.Branches = append(st.Branches, br)

		next := ps.cur()
		if next.isIdent("elseif") {
			ps.advance()
			ps.withStopWords([]string{"then"}, func() { cond = ps.expr() })
			if ps.cur().isIdent("then") {
				ps.advance()
			}
			t = next
			continue
		}
		if next.isIdent("else") {
			ps.advance()
			st.ElseBody = ps.blockBody("endif")
		} else if next.isIdent("endif") {
			ps.advance()
		}
		break
	}
	ps.finish(st, st.Branches[0].From)
	return st
}

func (ps *parser) defStmt() Statement {
	t := ps.advance() // def
	st := &DefStmt{}
	if ps.cur().Kind != Ident {
		ps.errorf(ps.cur(), "should be a function name")
		ps.skipToNewline()
		return nil
	}
	st.Name = ps.advance().Text
	for ps.cur().Kind == Var {
		pt := ps.advance()
		v := ps.varRefFromToken(pt)
		if v == nil || len(v.Path) > 0 {
			ps.errorf(pt, "should be a plain parameter name")
			continue
		}
		st.Params = append(st.Params, v.Name)
	}
	st.Body = ps.blockBody("enddef")
	ps.finish(st, t.From)
	ps.functions = append(ps.functions, st)
	return st
}

func (ps *parser) doStmt() *DoStmt {
	t := ps.advance() // do
	st := &DoStmt{}
	for ps.cur().Kind == Var {
		pt := ps.advance()
		v := ps.varRefFromToken(pt)
		if v == nil || len(v.Path) > 0 {
			ps.errorf(pt, "should be a plain parameter name")
			continue
		}
		st.Params = append(st.Params, v.Name)
	}
	if ps.cur().isIdent("into") {
		ps.advance()
		if ps.cur().Kind == Var {
			st.Into = ps.varRefFromToken(ps.advance())
		}
		if st.Into == nil {
			ps.errorf(ps.cur(), "should be a variable to capture into")
		}
	}
	st.Body = ps.blockBody("enddo")
	ps.finish(st, t.From)
	return st
}

func (ps *parser) togetherStmt() Statement {
	t := ps.advance() // together
	st := &TogetherStmt{}
	for {
		cur := ps.cur()
		switch {
		case cur.Kind == EOF:
			ps.partialf(diag.PointRanging(len(ps.src.Code)), "endtogether",
				"missing endtogether")
			ps.finish(st, t.From)
			return st
		case cur.Kind == Newline || cur.Kind == CommentText:
			ps.advance()
		case cur.isIdent("endtogether"):
			ps.advance()
			ps.finish(st, t.From)
			return st
		case cur.isIdent("do"):
			st.Blocks = append(st.Blocks, ps.doStmt())
		default:
			ps.errorf(cur, "together blocks may only contain do blocks")
			ps.skipToNewline()
		}
	}
}

func (ps *parser) forStmt() Statement {
	t := ps.advance() // for
	st := &ForStmt{}
	if ps.cur().Kind != Var {
		ps.errorf(ps.cur(), "should be a loop variable")
		ps.skipToNewline()
		return nil
	}
	vt := ps.advance()
	v := ps.varRefFromToken(vt)
	if v == nil || len(v.Path) > 0 {
		ps.errorf(vt, "should be a plain loop variable")
		ps.skipToNewline()
		return nil
	}
	st.VarName = v.Name
	if !ps.expectIdent("in") {
		ps.skipToNewline()
		return nil
	}
	st.Iterable = ps.headerExpr()
	st.Body = ps.blockBody("endfor")
	ps.finish(st, t.From)
	return st
}

func (ps *parser) onStmt() Statement {
	t := ps.advance() // on
	st := &OnStmt{}
	if ps.cur().Kind == Str {
		st.Event = ps.advance().Val
	} else if ps.cur().Kind == Ident {
		st.Event = ps.advance().Text
	} else {
		ps.errorf(ps.cur(), "should be an event name")
		ps.skipToNewline()
		return nil
	}
	st.Body = ps.blockBody("endon")
	ps.finish(st, t.From)
	ps.handlers = append(ps.handlers, st)
	return st
}

func (ps *parser) commandStmt() Statement {
	t := ps.advance() // command name
	st := &CommandStmt{Name: t.Text}
	if ps.cur().Kind == LParen && ps.cur().adjacentTo(t) {
		ps.advance()
		st.Parenthesized = true
		ps.callArgs(&st.Args, &st.Opts)
	} else {
		for !ps.endOfStatement(ps.cur()) && !startsTrailer(ps.cur()) {
			cur := ps.cur()
			if cur.isIdent("into") || cur.isIdent("with") || cur.isIdent("do") {
				break
			}
			arg := ps.primary()
			if arg == nil {
				break
			}
			st.Args = append(st.Args, arg)
		}
	}
	if ps.cur().isIdent("into") {
		ps.advance()
		if ps.cur().Kind == Var {
			st.Into = ps.varRefFromToken(ps.advance())
		}
		if st.Into == nil {
			ps.errorf(ps.cur(), "should be a variable to capture into")
		}
	}
	switch {
	case ps.cur().isIdent("with"):
		ps.advance()
		st.CallbackKind = "with"
		st.Callback = ps.blockBody("endwith")
	case ps.cur().isIdent("do"):
		ps.advance()
		st.CallbackKind = "do"
		st.Callback = ps.blockBody("enddo")
	}
	ps.finish(st, t.From)
	return st
}

// callArgs parses a parenthesized argument list, positional or named, with
// the opening paren already consumed. Newlines are permitted inside.
func (ps *parser) callArgs(args *[]Expr, opts *[]*NamedArg) {
	openFrom := ps.prevEnd() - 1
	for {
		ps.skipGroupNewlines()
		cur := ps.cur()
		if cur.Kind == RParen {
			ps.advance()
			return
		}
		if cur.Kind == EOF {
			ps.partialf(diag.Ranging{From: openFrom, To: openFrom + 1}, ")",
				"unclosed parenthesized call")
			return
		}
		if cur.Kind == Ident && ps.la(1).Kind == Assign {
			na := &NamedArg{Name: cur.Text}
			ps.advance()
			ps.advance()
			na.Value = ps.expr()
			ps.finish(na, cur.From)
			*opts = append(*opts, na)
		} else {
			arg := ps.expr()
			if arg == nil {
				ps.advance()
				continue
			}
			*args = append(*args, arg)
		}
		ps.skipGroupNewlines()
		if ps.cur().Kind == Comma {
			ps.advance()
		}
	}
}

func (ps *parser) skipGroupNewlines() {
	for ps.cur().Kind == Newline {
		ps.advance()
	}
}
