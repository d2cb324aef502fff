package parse

import "github.com/robinpath/robinpath/pkg/diag"

// TokenKind enumerates the kinds of tokens produced by the lexer.
type TokenKind int

// Possible values for TokenKind.
const (
	EOF TokenKind = iota
	Newline
	Ident
	Var         // $name[.path], $1, or a lone $
	Number
	Str         // quoted string literal
	Template    // backtick template literal, unprocessed
	Fence       // --- ... --- block, captured verbatim
	CommentText // # comment, not including the trailing newline
	At          // @, introducing a decorator
	DollarLParen
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Comma
	Colon
	Assign // =
	Op     // + - * / % == != < <= > >=
)

// Token is a positioned token. Text is the raw source text; Val is the
// processed value for string-like tokens (escapes applied, delimiters
// stripped).
type Token struct {
	Kind  TokenKind
	Text  string
	Val   string
	Quote QuoteKind
	diag.Ranging
}

func (t Token) isIdent(name string) bool { return t.Kind == Ident && t.Text == name }

// adjacentTo reports whether t starts exactly where prev ends, with no
// intervening text. Call syntax `name(...)` requires the paren to be adjacent
// to the name.
func (t Token) adjacentTo(prev Token) bool { return t.From == prev.To }
