package parse

import (
	"strconv"
	"strings"

	"github.com/robinpath/robinpath/pkg/diag"
)

// Operator precedence, loosest first.
var binaryPrec = map[string]int{
	"or":  1,
	"and": 2,
	"==":  3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5, "/": 5, "%": 5,
}

// headerExpr parses the value position of statement headers: assignment
// right-hand sides, for-loop iterables and return values. An identifier head
// followed by arguments is a bare command-style call (`range 1 5`); an
// identifier alone is a bareword string; anything else is an ordinary
// expression.
func (ps *parser) headerExpr() Expr {
	t := ps.cur()
	if t.Kind == Ident && !isExprKeyword(t.Text) && !ps.isStopWord(t) {
		next := ps.la(1)
		if next.Kind == LParen && next.adjacentTo(t) {
			return ps.expr()
		}
		if next.Kind == Op || next.Kind == Assign {
			return ps.expr()
		}
		if ps.endOfStatement(next) || startsTrailer(next) {
			return ps.expr() // bareword string
		}
		// Bare call with arguments.
		ps.advance()
		call := &CallExpr{Name: t.Text, Bare: true}
		for !ps.endOfStatement(ps.cur()) && !startsTrailer(ps.cur()) {
			arg := ps.primary()
			if arg == nil {
				break
			}
			call.Args = append(call.Args, arg)
		}
		ps.finish(call, t.From)
		return call
	}
	return ps.expr()
}

func isExprKeyword(s string) bool {
	switch s {
	case "true", "false", "null", "not":
		return true
	}
	return false
}

// expr parses a full expression with binary operators.
func (ps *parser) expr() Expr {
	return ps.binary(1)
}

func (ps *parser) binary(minPrec int) Expr {
	lhs := ps.unary()
	if lhs == nil {
		return nil
	}
	for {
		t := ps.cur()
		var op string
		switch {
		case t.Kind == Op:
			op = t.Text
		case t.Kind == Ident && (t.Text == "and" || t.Text == "or") && !ps.isStopWord(t):
			op = t.Text
		default:
			return lhs
		}
		prec := binaryPrec[op]
		if prec < minPrec {
			return lhs
		}
		ps.advance()
		rhs := ps.binary(prec + 1)
		if rhs == nil {
			return lhs
		}
		be := &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
		be.Ranging = diag.MixedRanging(lhs, rhs)
		be.sourceText = ps.src.Code[be.From:be.To]
		lhs = be
	}
}

func (ps *parser) unary() Expr {
	t := ps.cur()
	if t.Kind == Op && t.Text == "-" {
		ps.advance()
		operand := ps.unary()
		if operand == nil {
			return nil
		}
		ue := &UnaryExpr{Op: "-", Operand: operand}
		ps.finish(ue, t.From)
		return ue
	}
	if t.isIdent("not") && !ps.isStopWord(t) {
		ps.advance()
		operand := ps.unary()
		if operand == nil {
			return nil
		}
		ue := &UnaryExpr{Op: "not", Operand: operand}
		ps.finish(ue, t.From)
		return ue
	}
	return ps.primary()
}

// primary parses the smallest expression unit, which is also what a bare
// command argument is.
func (ps *parser) primary() Expr {
	t := ps.cur()
	switch t.Kind {
	case Var:
		ps.advance()
		if v := ps.varRefFromToken(t); v != nil {
			return v
		}
		lv := &LastValue{}
		lv.Ranging = t.Ranging
		lv.sourceText = t.Text
		return lv
	case Number:
		ps.advance()
		val, _ := strconv.ParseFloat(t.Text, 64)
		n := &NumberLit{Value: val}
		n.Ranging = t.Ranging
		n.sourceText = t.Text
		return n
	case Str:
		ps.advance()
		s := &StringLit{Value: t.Val, Quote: t.Quote}
		s.Ranging = t.Ranging
		s.sourceText = t.Text
		return s
	case Fence:
		ps.advance()
		s := &StringLit{Value: t.Val, Quote: Fenced}
		s.Ranging = t.Ranging
		s.sourceText = t.Text
		return s
	case Template:
		ps.advance()
		return ps.templateLit(t)
	case DollarLParen:
		return ps.subExpr()
	case LParen:
		ps.advance()
		e := ps.expr()
		if ps.cur().Kind == RParen {
			ps.advance()
		} else if ps.cur().Kind == EOF {
			ps.partialf(t, ")", "unclosed parenthesized expression")
		} else {
			ps.errorf(ps.cur(), "should be %q", ")")
		}
		return e
	case LBrace:
		return ps.objectLit()
	case LBracket:
		return ps.arrayLit()
	case Op:
		if t.Text == "-" {
			return ps.unary()
		}
	case Ident:
		if ps.isStopWord(t) {
			break
		}
		switch t.Text {
		case "true", "false":
			ps.advance()
			b := &BoolLit{Value: t.Text == "true"}
			b.Ranging = t.Ranging
			b.sourceText = t.Text
			return b
		case "null":
			ps.advance()
			nl := &NullLit{}
			nl.Ranging = t.Ranging
			nl.sourceText = t.Text
			return nl
		case "not":
			return ps.unary()
		}
		next := ps.la(1)
		if next.Kind == LParen && next.adjacentTo(t) {
			ps.advance()
			ps.advance()
			call := &CallExpr{Name: t.Text}
			ps.callArgs(&call.Args, &call.Opts)
			ps.finish(call, t.From)
			return call
		}
		ps.advance()
		s := &StringLit{Value: t.Text, Quote: Bareword}
		s.Ranging = t.Ranging
		s.sourceText = t.Text
		return s
	}
	ps.errorf(t, "unexpected %s, should be an expression", describe(t))
	if t.Kind != EOF && t.Kind != Newline {
		ps.advance()
	}
	return nil
}

func (ps *parser) subExpr() Expr {
	t := ps.advance() // $(
	se := &SubExpr{}
	saved := ps.stopWords
	ps.stopWords = nil
	se.Body = ps.chunk(blockEnd{rparen: true, waitingFor: ")"})
	ps.stopWords = saved
	if ps.cur().Kind == RParen {
		ps.advance()
	}
	ps.finish(se, t.From)
	return se
}

func (ps *parser) objectLit() Expr {
	t := ps.advance() // {
	o := &ObjectLit{}
	for {
		ps.skipGroupNewlines()
		cur := ps.cur()
		if cur.Kind == RBrace {
			ps.advance()
			break
		}
		if cur.Kind == EOF {
			ps.partialf(t, "}", "unclosed object literal")
			break
		}
		pair := &ObjectPair{}
		switch cur.Kind {
		case Ident:
			pair.Key = cur.Text
			ps.advance()
		case Str:
			pair.Key = cur.Val
			ps.advance()
		default:
			ps.errorf(cur, "should be an object key")
			ps.advance()
			continue
		}
		if ps.cur().Kind == Colon {
			ps.advance()
		} else {
			ps.errorf(ps.cur(), "should be %q", ":")
		}
		pair.Value = ps.expr()
		ps.finish(pair, cur.From)
		o.Pairs = append(o.Pairs, pair)
		ps.skipGroupNewlines()
		if ps.cur().Kind == Comma {
			ps.advance()
		}
	}
	ps.finish(o, t.From)
	return o
}

func (ps *parser) arrayLit() Expr {
	t := ps.advance() // [
	a := &ArrayLit{}
	for {
		ps.skipGroupNewlines()
		cur := ps.cur()
		if cur.Kind == RBracket {
			ps.advance()
			break
		}
		if cur.Kind == EOF {
			ps.partialf(t, "]", "unclosed array literal")
			break
		}
		el := ps.expr()
		if el == nil {
			ps.advance()
			continue
		}
		a.Elements = append(a.Elements, el)
		ps.skipGroupNewlines()
		if ps.cur().Kind == Comma {
			ps.advance()
		}
	}
	ps.finish(a, t.From)
	return a
}

// templateLit splits a backtick template into literal text segments and
// ${...} interpolations, sub-parsing each interpolation as an expression with
// positions relative to the whole source.
func (ps *parser) templateLit(t Token) Expr {
	tl := &TemplateLit{}
	tl.Ranging = t.Ranging
	tl.sourceText = t.Text
	raw := t.Val
	// The raw text starts one byte after the opening backtick.
	base := t.From + 1

	emitText := func(from, to int) {
		if from == to {
			return
		}
		seg := &TemplateText{Text: unescapeTemplate(raw[from:to])}
		seg.Ranging = diag.Ranging{From: base + from, To: base + to}
		seg.sourceText = raw[from:to]
		tl.Segments = append(tl.Segments, seg)
	}

	i := 0
	for {
		j := indexUnescaped(raw[i:], "${")
		if j == -1 {
			emitText(i, len(raw))
			break
		}
		j += i
		emitText(i, j)
		end := matchBrace(raw, j+2)
		if end == -1 {
			ps.errorf(diag.Ranging{From: base + j, To: base + len(raw)},
				"unclosed ${ in template string")
			emitText(j, len(raw))
			break
		}
		toks, lexErrs := lexRange(ps.src, base+j+2, base+end)
		ps.errors = append(ps.errors, lexErrs...)
		sub := &parser{src: ps.src, toks: toks}
		e := sub.expr()
		if e != nil && !sub.atEOF() {
			sub.errorf(sub.cur(), "unexpected %s in template interpolation", describe(sub.cur()))
		}
		ps.errors = append(ps.errors, sub.errors...)
		if e != nil {
			tl.Segments = append(tl.Segments, e)
		}
		i = end + 1
	}
	return tl
}

func unescapeTemplate(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '`', '\\', '$':
				sb.WriteByte(s[i+1])
				i++
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// indexUnescaped finds the first occurrence of sub in s that is not preceded
// by a backslash.
func indexUnescaped(s, sub string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], sub)
		if i == -1 {
			return -1
		}
		i += offset
		if i > 0 && s[i-1] == '\\' {
			offset = i + 1
			continue
		}
		return i
	}
}

// matchBrace returns the index of the '}' matching an interpolation opened
// just before i, or -1.
func matchBrace(s string, i int) int {
	depth := 1
	for ; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
