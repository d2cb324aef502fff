package parse

// The syntax tree of a RobinPath program is a closed union of statement types
// and a closed union of expression types. All mixed raw-text forms of the
// original surface syntax are normalized into the structured forms below at
// the parser boundary; the evaluator and the code regenerator never see
// anything else.

// Statement is implemented by all statement nodes.
type Statement interface {
	Node
	base() *stmtBase
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// stmtBase carries what every statement form shares: decorators and attached
// comments. Comments separated from the following statement by a blank line
// become standalone CommentStmt nodes instead.
type stmtBase struct {
	node
	Decorators    []*Decorator
	AboveComments []*Comment
	InlineComment *Comment
}

func (s *stmtBase) base() *stmtBase { return s }

// Decorators returns the decorators attached to a statement.
func Decorators(st Statement) []*Decorator { return st.base().Decorators }

// AboveComments returns the comment lines attached above a statement.
func AboveComments(st Statement) []*Comment { return st.base().AboveComments }

// InlineComment returns the trailing comment on a statement's line, or nil.
func InlineComment(st Statement) *Comment { return st.base().InlineComment }

// Chunk is a sequence of statements: the whole program, or the body of a
// block construct.
type Chunk struct {
	node
	Statements []Statement
}

// Comment is a single '#' comment, including the '#' itself.
type Comment struct {
	node
	Text string
}

// Decorator is a @name annotation line attached to the following statement.
type Decorator struct {
	node
	Name string
	Args []Expr
}

// CommandStmt is a command call: bare (space-separated arguments),
// positional-parenthesized, or named-parenthesized. It may carry a trailing
// `into` capture target and/or a trailing callback block.
type CommandStmt struct {
	stmtBase
	Name          string
	Args          []Expr
	Opts          []*NamedArg
	Parenthesized bool
	Into          *VarRef
	Callback      *Chunk
	CallbackKind  string // "with" or "do"; empty if no callback
}

// AssignStmt is `$x = expr`, `$x.path = expr`, or `set $x [as] expr
// [fallback]`. The shorthand `$x = $` parses as an assignment whose value is a
// LastValue expression.
type AssignStmt struct {
	stmtBase
	Target   *VarRef
	Value    Expr
	SetStyle bool // `set ...` rather than `=`
	HasAs    bool // `set $x as v` rather than `set $x v`
	Fallback Expr // only with SetStyle
}

// InlineIfStmt is a one-line `if cond then stmt [else stmt]`.
type InlineIfStmt struct {
	stmtBase
	Cond Expr
	Then Statement
	Else Statement
}

// IfStmt is a block if/elseif/else terminated by endif.
type IfStmt struct {
	stmtBase
	Branches []*IfBranch
	ElseBody *Chunk
}

// IfBranch is one cond/body pair of an IfStmt.
type IfBranch struct {
	node
	Cond Expr
	Body *Chunk
}

// IfTrueStmt is `iftrue stmt` or `iffalse stmt`, running the wrapped statement
// depending on the truthiness of the current last-value.
type IfTrueStmt struct {
	stmtBase
	Negate bool // iffalse
	Body   Statement
}

// DefStmt is a function definition terminated by enddef.
type DefStmt struct {
	stmtBase
	Name   string
	Params []string
	Body   *Chunk
}

// DoStmt is a scope block terminated by enddo. Without parameters the block is
// transparent; with parameters it is isolated. Into captures the block's
// last-value into the enclosing scope.
type DoStmt struct {
	stmtBase
	Params []string
	Into   *VarRef
	Body   *Chunk
}

// TogetherStmt is a set of do blocks scheduled cooperatively.
type TogetherStmt struct {
	stmtBase
	Blocks []*DoStmt
}

// ForStmt is `for $var in iterable ... endfor`.
type ForStmt struct {
	stmtBase
	VarName  string
	Iterable Expr
	Body     *Chunk
}

// ReturnStmt ends the enclosing function frame. Value may be nil, in which
// case the frame's current last-value becomes the result.
type ReturnStmt struct {
	stmtBase
	Value Expr
}

// BreakStmt exits the innermost for loop.
type BreakStmt struct {
	stmtBase
}

// ContinueStmt skips to the next iteration of the innermost for loop.
type ContinueStmt struct {
	stmtBase
}

// OnStmt registers an event handler; registrations for the same event
// accumulate and never replace each other.
type OnStmt struct {
	stmtBase
	Event string
	Body  *Chunk
}

// UseStmt sets the current-module cursor for bare-name resolution.
type UseStmt struct {
	stmtBase
	Module string
}

// CommentStmt is a standalone comment group, produced when comments are
// separated from the following statement by a blank line. Its range derives
// from its comment list.
type CommentStmt struct {
	stmtBase
	Comments []*Comment
}

// Expressions.

// VarRef is `$name` with an optional attribute path, as in `$obj.a.b`.
// Positional parameters `$1`... have numeric names.
type VarRef struct {
	node
	Name string
	Path []string
}

// LastValue is the `$` reference to the implicit last-value register.
type LastValue struct {
	node
}

// NumberLit is a numeric literal.
type NumberLit struct {
	node
	Value float64
}

// QuoteKind records the surface syntax of a string literal, preserved so the
// code regenerator can reproduce the original flavor.
type QuoteKind int

const (
	// Bareword is an unquoted word used as a string value.
	Bareword QuoteKind = iota
	// DoubleQuoted strings process escape sequences.
	DoubleQuoted
	// SingleQuoted strings are taken verbatim.
	SingleQuoted
	// Fenced strings are multi-line `---` blocks captured verbatim.
	Fenced
)

// StringLit is a string literal without interpolation.
type StringLit struct {
	node
	Value string
	Quote QuoteKind
}

// TemplateLit is a backtick string with ${...} interpolation. Segments
// alternate between *TemplateText and interpolated expressions.
type TemplateLit struct {
	node
	Segments []Node
}

// TemplateText is a literal segment of a TemplateLit.
type TemplateText struct {
	node
	Text string
}

// BoolLit is `true` or `false`.
type BoolLit struct {
	node
	Value bool
}

// NullLit is `null`.
type NullLit struct {
	node
}

// ObjectLit is `{key: value, ...}`.
type ObjectLit struct {
	node
	Pairs []*ObjectPair
}

// ObjectPair is one key/value pair of an ObjectLit.
type ObjectPair struct {
	node
	Key   string
	Value Expr
}

// ArrayLit is `[a, b, ...]`.
type ArrayLit struct {
	node
	Elements []Expr
}

// SubExpr is a `$( ... )` subexpression: a nested statement list whose value
// is its last-value after execution.
type SubExpr struct {
	node
	Body *Chunk
}

// BinaryExpr is a binary operation.
type BinaryExpr struct {
	node
	Op       string
	LHS, RHS Expr
}

// UnaryExpr is `-x` or `not x`.
type UnaryExpr struct {
	node
	Op      string
	Operand Expr
}

// CallExpr is a function call in expression position: `name(a, b)` or, in
// headers like for-loop iterables, a bare `name arg arg` call.
type CallExpr struct {
	node
	Name string
	Args []Expr
	Opts []*NamedArg
	Bare bool
}

// NamedArg is a `key=value` argument.
type NamedArg struct {
	node
	Name  string
	Value Expr
}

func (*VarRef) exprNode()       {}
func (*LastValue) exprNode()    {}
func (*NumberLit) exprNode()    {}
func (*StringLit) exprNode()    {}
func (*TemplateLit) exprNode()  {}
func (*BoolLit) exprNode()      {}
func (*NullLit) exprNode()      {}
func (*ObjectLit) exprNode()    {}
func (*ArrayLit) exprNode()     {}
func (*SubExpr) exprNode()      {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*CallExpr) exprNode()     {}
func (*NamedArg) exprNode()     {}
func (*TemplateText) exprNode() {}
