package rewrite

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/robinpath/robinpath/pkg/diag"
	"github.com/robinpath/robinpath/pkg/parse"
)

// An edit is one splice into the original source. Insertions have from == to.
type edit struct {
	from, to int
	text     string
}

type differ struct {
	src   parse.Source
	edits []edit
	err   error
}

func (d *differ) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

// span resolves a node's recorded position back to a byte range of the
// original source.
func (d *differ) span(n *Node) (diag.Ranging, bool) {
	if n.Pos == nil || !n.Pos.Valid() {
		return diag.Ranging{}, false
	}
	return n.Pos.Ranging(d.src.Code)
}

func samePos(a, b *parse.CodePosition) bool {
	return a != nil && b != nil && *a == *b
}

func sameIdentity(a, b *Node) bool {
	return a.Kind == b.Kind && samePos(a.Pos, b.Pos)
}

var stmtKinds = map[string]bool{
	"command": true, "assign": true, "inlineIf": true, "if": true,
	"ifTrue": true, "def": true, "do": true, "together": true, "for": true,
	"return": true, "break": true, "continue": true, "on": true, "use": true,
	"commentGroup": true,
}

// Kid roles holding statement lists, diffed with insert/delete support.
var stmtListKeys = map[string]bool{
	"body": true, "callback": true, "else": true,
}

// Kid roles attached above or beside a statement rather than inside it.
var attachedKeys = map[string]bool{
	"decorators": true, "aboveComments": true, "inlineComment": true,
}

// diffStmts matches a statement list against its edited form. Statements are
// identified by kind plus original position: an edited statement without a
// valid original position is an insertion, an original statement no edited
// statement claims is a deletion, and a matched pair diffs recursively.
func (d *differ) diffStmts(orig, edited []*Node) {
	used := make([]bool, len(orig))
	find := func(e *Node) int {
		for i, o := range orig {
			if !used[i] && sameIdentity(o, e) {
				return i
			}
		}
		return -1
	}

	lastEnd := -1
	for _, e := range edited {
		i := -1
		if e.Pos != nil && e.Pos.Valid() {
			i = find(e)
		}
		if i < 0 {
			d.insertStmt(lastEnd, e)
			continue
		}
		used[i] = true
		d.diffNode(orig[i], e)
		if r, ok := d.span(orig[i]); ok {
			lastEnd = r.To
		}
	}
	for i, o := range orig {
		if !used[i] {
			d.deleteStmt(o)
		}
	}
}

// insertStmt renders a new statement with canonical formatting and splices it
// on its own line after the previous sibling (or at the top of the file).
func (d *differ) insertStmt(lastEnd int, e *Node) {
	if lastEnd < 0 {
		d.edits = append(d.edits, edit{text: renderStmt(e, "") + "\n"})
		return
	}
	indent := d.lineIndent(lastEnd)
	d.edits = append(d.edits, edit{from: lastEnd, to: lastEnd, text: "\n" + renderStmt(e, indent)})
}

// lineIndent returns the leading whitespace of the line containing idx, used
// to indent inserted or re-rendered siblings like their neighbors.
func (d *differ) lineIndent(idx int) string {
	code := d.src.Code
	start := strings.LastIndexByte(code[:idx], '\n') + 1
	end := start
	for end < len(code) && (code[end] == ' ' || code[end] == '\t') {
		end++
	}
	return code[start:end]
}

// deleteStmt removes a statement's span along with its leading indentation
// and trailing newline.
func (d *differ) deleteStmt(o *Node) {
	r, ok := d.span(o)
	if !ok {
		return
	}
	code := d.src.Code
	from, to := r.From, r.To
	lineStart := strings.LastIndexByte(code[:from], '\n') + 1
	if strings.TrimSpace(code[lineStart:from]) == "" {
		from = lineStart
	}
	if to < len(code) && code[to] == '\r' {
		to++
	}
	if to < len(code) && code[to] == '\n' {
		to++
	}
	d.edits = append(d.edits, edit{from: from, to: to, text: ""})
}

// diffNode compares one matched pair. An identical shape recurses, so a
// changed leaf scalar replaces just its own span; a structural change
// replaces the node's whole span with a canonical re-render.
func (d *differ) diffNode(o, e *Node) {
	if d.needsFullRender(o, e) {
		d.replace(o, e)
		return
	}
	for _, key := range kidKeys(o, e) {
		ok, ek := o.Kids[key], e.Kids[key]
		switch {
		case key == "inlineComment":
			d.diffInline(o, ok, ek)
		case attachedKeys[key]:
			d.diffAttached(o, ok, ek)
		case stmtListKeys[key]:
			d.diffStmts(ok, ek)
		default:
			for i := range ok {
				if sameIdentity(ok[i], ek[i]) {
					d.diffNode(ok[i], ek[i])
				} else {
					d.replaceExpr(ok[i], ek[i])
				}
			}
		}
	}
}

// needsFullRender decides up front whether a matched pair can be diffed
// in place. Emitting child edits first and then discovering the parent needs
// re-rendering would produce overlapping edits.
func (d *differ) needsFullRender(o, e *Node) bool {
	if o.Kind != e.Kind {
		return true
	}
	if !reflect.DeepEqual(normProps(o.Props), normProps(e.Props)) {
		return true
	}
	for _, key := range kidKeys(o, e) {
		if attachedKeys[key] || stmtListKeys[key] {
			continue
		}
		ok, ek := o.Kids[key], e.Kids[key]
		if len(ok) != len(ek) {
			return true
		}
		for i := range ok {
			if sameIdentity(ok[i], ek[i]) {
				continue
			}
			// A mismatched kid can be spliced on its own only when it is an
			// expression with an original span to splice over.
			if key == "branches" || key == "blocks" || stmtKinds[ek[i].Kind] {
				return true
			}
			if _, has := d.span(ok[i]); !has {
				return true
			}
		}
	}
	return false
}

// replace splices a canonical re-render of e over o's original span.
func (d *differ) replace(o, e *Node) {
	r, ok := d.span(o)
	if !ok {
		d.fail("node %q has no original position to replace", o.Kind)
		return
	}
	var text string
	switch {
	case e.Kind == "comment":
		text = pstr(e, "text")
	case e.Kind == "decorator":
		text = renderDecorator(e)
	case stmtKinds[e.Kind]:
		text = renderStmtCore(e, d.lineIndent(r.From))
	default:
		text = renderExpr(e)
	}
	d.edits = append(d.edits, edit{from: r.From, to: r.To, text: text})
}

func (d *differ) replaceExpr(o, e *Node) {
	r, ok := d.span(o)
	if !ok {
		d.fail("node %q has no original position to replace", o.Kind)
		return
	}
	d.edits = append(d.edits, edit{from: r.From, to: r.To, text: renderExpr(e)})
}

// diffAttached handles decorator and above-comment lines. When the lists
// still match one to one they diff in place; otherwise the original lines are
// dropped and the edited list is rendered fresh above the statement.
func (d *differ) diffAttached(parent *Node, ok, ek []*Node) {
	if len(ok) == len(ek) {
		matched := true
		for i := range ok {
			if !sameIdentity(ok[i], ek[i]) {
				matched = false
				break
			}
		}
		if matched {
			for i := range ok {
				d.diffNode(ok[i], ek[i])
			}
			return
		}
	}
	for _, o := range ok {
		d.deleteStmt(o)
	}
	r, has := d.span(parent)
	if !has {
		return
	}
	lineStart := strings.LastIndexByte(d.src.Code[:r.From], '\n') + 1
	indent := d.lineIndent(r.From)
	var sb strings.Builder
	for _, e := range ek {
		sb.WriteString(indent)
		if e.Kind == "decorator" {
			sb.WriteString(renderDecorator(e))
		} else {
			sb.WriteString(pstr(e, "text"))
		}
		sb.WriteString("\n")
	}
	d.edits = append(d.edits, edit{from: lineStart, to: lineStart, text: sb.String()})
}

func (d *differ) diffInline(parent *Node, ok, ek []*Node) {
	switch {
	case len(ok) == 0 && len(ek) == 1:
		if r, has := d.span(parent); has {
			d.edits = append(d.edits, edit{from: r.To, to: r.To, text: " " + pstr(ek[0], "text")})
		}
	case len(ok) == 1 && len(ek) == 0:
		r, has := d.span(ok[0])
		if !has {
			return
		}
		from := r.From
		for from > 0 && (d.src.Code[from-1] == ' ' || d.src.Code[from-1] == '\t') {
			from--
		}
		d.edits = append(d.edits, edit{from: from, to: r.To})
	case len(ok) == 1 && len(ek) == 1:
		if pstr(ok[0], "text") != pstr(ek[0], "text") {
			d.replace(ok[0], ek[0])
		}
	}
}

func kidKeys(o, e *Node) []string {
	seen := make(map[string]bool, len(o.Kids))
	keys := make([]string, 0, len(o.Kids))
	for k := range o.Kids {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range e.Kids {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// normProps treats a missing map and an empty map alike and drops the derived
// module annotation, which does not affect rendering.
func normProps(props map[string]any) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == "module" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// splice applies the edits to the original source in one position-ordered
// pass. Overlapping edits are a bug in the differ.
func splice(code string, edits []edit) (string, error) {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].from < edits[j].from })
	var sb strings.Builder
	pos := 0
	for _, ed := range edits {
		if ed.from < pos {
			return "", fmt.Errorf("overlapping edits at byte %d", ed.from)
		}
		sb.WriteString(code[pos:ed.from])
		sb.WriteString(ed.text)
		pos = ed.to
	}
	sb.WriteString(code[pos:])
	return sb.String(), nil
}
