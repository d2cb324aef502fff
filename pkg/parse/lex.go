package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/robinpath/robinpath/pkg/diag"
)

// lexer turns source text into a stream of positioned tokens. Logical lines
// are merged before tokenization: a backslash at the end of a physical line
// suppresses the Newline token. Fenced blocks and string literals are captured
// as single tokens.
type lexer struct {
	name   string
	src    string
	pos    int
	tokens []Token
	errors []*Error
}

const eof rune = -1

func lex(src Source) ([]Token, []*Error) {
	lx := &lexer{name: src.Name, src: src.Code}
	lx.run()
	return lx.tokens, lx.errors
}

// lexRange lexes the given byte range of src, keeping token positions
// relative to the whole source. It backs the sub-parsing of template
// interpolations.
func lexRange(src Source, from, to int) ([]Token, []*Error) {
	lx := &lexer{name: src.Name, src: src.Code[:to], pos: from}
	lx.run()
	return lx.tokens, lx.errors
}

func (lx *lexer) run() {
	for {
		r := lx.peek()
		if r == eof {
			break
		}
		switch {
		case r == ' ' || r == '\t':
			lx.next()
		case r == '\\':
			lx.continuation()
		case r == '\r':
			lx.next()
		case r == '\n':
			begin := lx.pos
			lx.next()
			lx.emit(Newline, begin)
		case r == '#':
			lx.comment()
		case r == '-' && lx.atFence():
			lx.fence()
		case r == '"' || r == '\'':
			lx.quoted(r)
		case r == '`':
			lx.template()
		case r == '$':
			lx.dollar()
		case r == '@':
			begin := lx.pos
			lx.next()
			lx.emit(At, begin)
		case unicode.IsDigit(r):
			lx.number()
		case isIdentStart(r):
			lx.ident()
		default:
			lx.punct(r)
		}
	}
	lx.emit(EOF, lx.pos)
}

func (lx *lexer) peek() rune {
	if lx.pos == len(lx.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(lx.src[lx.pos:])
	return r
}

func (lx *lexer) next() rune {
	if lx.pos == len(lx.src) {
		return eof
	}
	r, s := utf8.DecodeRuneInString(lx.src[lx.pos:])
	lx.pos += s
	return r
}

func (lx *lexer) emit(k TokenKind, begin int) {
	lx.emitVal(k, begin, "", Bareword)
}

func (lx *lexer) emitVal(k TokenKind, begin int, val string, q QuoteKind) {
	lx.tokens = append(lx.tokens, Token{
		Kind:    k,
		Text:    lx.src[begin:lx.pos],
		Val:     val,
		Quote:   q,
		Ranging: diag.Ranging{From: begin, To: lx.pos},
	})
}

func (lx *lexer) errorf(r diag.Ranging, partial bool, waitingFor, format string, args ...any) {
	lx.errors = append(lx.errors, &Error{
		Message:    fmt.Sprintf(format, args...),
		Context:    *diag.NewContext(lx.name, lx.src, r),
		Partial:    partial,
		WaitingFor: waitingFor,
	})
}

// continuation merges logical lines: a backslash immediately before a line
// ending makes the next physical line part of the current logical line.
func (lx *lexer) continuation() {
	begin := lx.pos
	lx.next()
	if lx.peek() == '\r' {
		lx.next()
	}
	if lx.peek() == '\n' {
		lx.next()
		return
	}
	lx.errorf(diag.Ranging{From: begin, To: lx.pos}, false, "",
		"backslash must be followed by a newline")
}

func (lx *lexer) comment() {
	begin := lx.pos
	for {
		r := lx.peek()
		if r == eof || r == '\n' || r == '\r' {
			break
		}
		lx.next()
	}
	lx.emitVal(CommentText, begin, lx.src[begin:lx.pos], Bareword)
}

// atFence reports whether the lexer is at a `---` that is the only content on
// its line, which opens or closes a fenced block.
func (lx *lexer) atFence() bool {
	if !strings.HasPrefix(lx.src[lx.pos:], "---") {
		return false
	}
	// Only whitespace may precede on this line.
	lineStart := strings.LastIndexByte(lx.src[:lx.pos], '\n') + 1
	if strings.TrimSpace(lx.src[lineStart:lx.pos]) != "" {
		return false
	}
	rest := lx.src[lx.pos+3:]
	eol := strings.IndexByte(rest, '\n')
	if eol == -1 {
		eol = len(rest)
	}
	return strings.TrimSpace(rest[:eol]) == ""
}

func (lx *lexer) fence() {
	begin := lx.pos
	lx.pos += 3
	// Skip to the start of the next line.
	nl := strings.IndexByte(lx.src[lx.pos:], '\n')
	if nl == -1 {
		lx.pos = len(lx.src)
		lx.errorf(diag.Ranging{From: begin, To: lx.pos}, true, "---", "fenced block not terminated")
		lx.emitVal(Fence, begin, "", Fenced)
		return
	}
	lx.pos += nl + 1
	contentStart := lx.pos
	for lx.pos < len(lx.src) {
		if lx.atFence() {
			content := lx.src[contentStart:lx.pos]
			// The closing fence line is not part of the content; neither is
			// the newline that precedes it.
			content = strings.TrimSuffix(content, "\n")
			lx.pos += 3
			lx.emitVal(Fence, begin, content, Fenced)
			return
		}
		nl := strings.IndexByte(lx.src[lx.pos:], '\n')
		if nl == -1 {
			lx.pos = len(lx.src)
			break
		}
		lx.pos += nl + 1
	}
	lx.errorf(diag.Ranging{From: begin, To: lx.pos}, true, "---", "fenced block not terminated")
	lx.emitVal(Fence, begin, lx.src[contentStart:lx.pos], Fenced)
}

func (lx *lexer) quoted(q rune) {
	begin := lx.pos
	lx.next()
	var sb strings.Builder
	for {
		r := lx.peek()
		if r == eof || r == '\n' {
			// Incomplete only when nothing but whitespace follows, so that an
			// unclosed quote at the end of a read-eval buffer asks for more
			// input while one in the middle of a script is a plain error.
			partial := strings.TrimSpace(lx.src[lx.pos:]) == ""
			lx.errorf(diag.Ranging{From: begin, To: lx.pos}, partial, string(q),
				"string not terminated")
			lx.emitVal(Str, begin, sb.String(), quoteKind(q))
			return
		}
		lx.next()
		if r == q {
			lx.emitVal(Str, begin, sb.String(), quoteKind(q))
			return
		}
		if r == '\\' && q == '"' {
			esc := lx.next()
			if rr, ok := doubleEscape[esc]; ok {
				sb.WriteRune(rr)
			} else {
				lx.errorf(diag.Ranging{From: lx.pos - 2, To: lx.pos}, false, "",
					"invalid escape sequence \\%c", esc)
			}
			continue
		}
		if r == '\\' && q == '\'' && lx.peek() == '\'' {
			sb.WriteByte('\'')
			lx.next()
			continue
		}
		sb.WriteRune(r)
	}
}

var doubleEscape = map[rune]rune{
	'n': '\n', 't': '\t', 'r': '\r', '\\': '\\', '"': '"',
	'\'': '\'', '`': '`', '$': '$', '0': 0,
}

func quoteKind(q rune) QuoteKind {
	if q == '\'' {
		return SingleQuoted
	}
	return DoubleQuoted
}

// template captures a backtick string verbatim, escapes included; the parser
// splits out the ${...} interpolations afterwards, which requires the raw
// text so that byte offsets keep lining up with the source.
func (lx *lexer) template() {
	begin := lx.pos
	lx.next()
	inner := lx.pos
	for {
		r := lx.peek()
		if r == eof {
			lx.errorf(diag.Ranging{From: begin, To: lx.pos}, true, "`",
				"template string not terminated")
			lx.emitVal(Template, begin, lx.src[inner:lx.pos], Bareword)
			return
		}
		lx.next()
		if r == '`' {
			lx.emitVal(Template, begin, lx.src[inner:lx.pos-1], Bareword)
			return
		}
		if r == '\\' && (lx.peek() == '`' || lx.peek() == '\\') {
			lx.next()
		}
	}
}

func (lx *lexer) dollar() {
	begin := lx.pos
	lx.next()
	if lx.peek() == '(' {
		lx.next()
		lx.emit(DollarLParen, begin)
		return
	}
	for {
		r := lx.peek()
		if isIdentStart(r) || unicode.IsDigit(r) {
			lx.next()
		} else if r == '.' {
			// A path segment must follow; a trailing dot belongs to the
			// surrounding syntax.
			save := lx.pos
			lx.next()
			if rr := lx.peek(); isIdentStart(rr) || unicode.IsDigit(rr) {
				continue
			}
			lx.pos = save
			break
		} else {
			break
		}
	}
	lx.emit(Var, begin)
}

func (lx *lexer) number() {
	begin := lx.pos
	for unicode.IsDigit(lx.peek()) {
		lx.next()
	}
	if lx.peek() == '.' {
		save := lx.pos
		lx.next()
		if unicode.IsDigit(lx.peek()) {
			for unicode.IsDigit(lx.peek()) {
				lx.next()
			}
		} else {
			lx.pos = save
		}
	}
	text := lx.src[begin:lx.pos]
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		lx.errorf(diag.Ranging{From: begin, To: lx.pos}, false, "", "bad number %q", text)
	}
	lx.emit(Number, begin)
}

func (lx *lexer) ident() {
	begin := lx.pos
	for {
		r := lx.peek()
		if isIdentStart(r) || unicode.IsDigit(r) {
			lx.next()
		} else if r == '.' {
			save := lx.pos
			lx.next()
			if rr := lx.peek(); isIdentStart(rr) {
				continue
			}
			lx.pos = save
			break
		} else {
			break
		}
	}
	lx.emit(Ident, begin)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

var punctKinds = map[rune]TokenKind{
	'(': LParen, ')': RParen,
	'[': LBracket, ']': RBracket,
	'{': LBrace, '}': RBrace,
	',': Comma, ':': Colon,
}

func (lx *lexer) punct(r rune) {
	begin := lx.pos
	if k, ok := punctKinds[r]; ok {
		lx.next()
		lx.emit(k, begin)
		return
	}
	switch r {
	case '=', '!', '<', '>':
		lx.next()
		if lx.peek() == '=' {
			lx.next()
			lx.emit(Op, begin)
			return
		}
		if r == '=' {
			lx.emit(Assign, begin)
		} else if r == '!' {
			lx.errorf(diag.Ranging{From: begin, To: lx.pos}, false, "", "unexpected character %q", r)
		} else {
			lx.emit(Op, begin)
		}
	case '+', '-', '*', '/', '%':
		lx.next()
		lx.emit(Op, begin)
	case ';':
		// A semicolon separates statements on one line, mostly useful inside
		// $( ... ) subexpressions.
		lx.next()
		lx.emit(Newline, begin)
	default:
		lx.next()
		lx.errorf(diag.Ranging{From: begin, To: lx.pos}, false, "", "unexpected character %q", r)
	}
}
