package parse

import (
	"fmt"

	"github.com/robinpath/robinpath/pkg/diag"
)

// parser consumes the token stream and produces the statement tree, plus the
// side collections of function definitions and event handlers that make
// forward references work.
type parser struct {
	src    Source
	toks   []Token
	i      int
	errors []*Error

	functions []*DefStmt
	handlers  []*OnStmt

	// Identifiers that terminate the statement being parsed in the current
	// context, e.g. "else" while parsing the then-branch of an inline if.
	stopWords map[string]bool
}

func (ps *parser) cur() Token { return ps.toks[ps.i] }

func (ps *parser) la(n int) Token {
	if ps.i+n >= len(ps.toks) {
		return ps.toks[len(ps.toks)-1]
	}
	return ps.toks[ps.i+n]
}

func (ps *parser) advance() Token {
	t := ps.toks[ps.i]
	if t.Kind != EOF {
		ps.i++
	}
	return t
}

// prevEnd returns the end position of the last consumed token, used to close
// node ranges.
func (ps *parser) prevEnd() int {
	if ps.i == 0 {
		return 0
	}
	return ps.toks[ps.i-1].To
}

func (ps *parser) atEOF() bool { return ps.cur().Kind == EOF }

func (ps *parser) errorf(r diag.Ranger, format string, args ...any) {
	ps.errors = append(ps.errors, &Error{
		Message: fmt.Sprintf(format, args...),
		Context: *diag.NewContext(ps.src.Name, ps.src.Code, r),
	})
}

// partialf records a needs-more-input error: the source ended while waitingFor
// would have completed the construct starting at r.
func (ps *parser) partialf(r diag.Ranger, waitingFor, format string, args ...any) {
	ps.errors = append(ps.errors, &Error{
		Message:    fmt.Sprintf(format, args...),
		Context:    *diag.NewContext(ps.src.Name, ps.src.Code, r),
		Partial:    true,
		WaitingFor: waitingFor,
	})
}

// finish closes a node: sets its end position to the last consumed token and
// slices out its source text.
func (ps *parser) finish(n Node, from int) {
	b := n.n()
	b.From = from
	b.To = ps.prevEnd()
	if b.To < b.From {
		b.To = b.From
	}
	b.sourceText = ps.src.Code[b.From:b.To]
}

func (ps *parser) isStopWord(t Token) bool {
	return t.Kind == Ident && ps.stopWords != nil && ps.stopWords[t.Text]
}

// endOfStatement reports whether t cannot be part of the current simple
// statement.
func (ps *parser) endOfStatement(t Token) bool {
	return t.Kind == Newline || t.Kind == EOF || t.Kind == CommentText || ps.isStopWord(t)
}

// skipToNewline recovers from a syntax error by discarding the rest of the
// logical line.
func (ps *parser) skipToNewline() {
	for {
		k := ps.cur().Kind
		if k == Newline || k == EOF {
			return
		}
		ps.advance()
	}
}

// expectIdent consumes an identifier token with the given text, recording an
// error otherwise.
func (ps *parser) expectIdent(text string) bool {
	if ps.cur().isIdent(text) {
		ps.advance()
		return true
	}
	ps.errorf(ps.cur(), "should be %q", text)
	return false
}

// withStopWords runs f with additional statement stop words in effect.
func (ps *parser) withStopWords(words []string, f func()) {
	saved := ps.stopWords
	ps.stopWords = make(map[string]bool, len(saved)+len(words))
	for w := range saved {
		ps.stopWords[w] = true
	}
	for _, w := range words {
		ps.stopWords[w] = true
	}
	f()
	ps.stopWords = saved
}
