package rewrite

import (
	"strconv"
	"strings"
)

// The canonical renderer turns a serialized node back into source text. It is
// used for nodes without an original span (insertions) and for nodes whose
// structure changed, where the original formatting cannot be kept. Statements
// render without a trailing newline.

const indentUnit = "  "

func pstr(n *Node, key string) string {
	s, _ := n.Props[key].(string)
	return s
}

func pbool(n *Node, key string) bool {
	b, _ := n.Props[key].(bool)
	return b
}

func plist(n *Node, key string) []string {
	l, _ := n.Props[key].([]any)
	out := make([]string, 0, len(l))
	for _, v := range l {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func kid(n *Node, key string) *Node {
	if ks := n.Kids[key]; len(ks) > 0 {
		return ks[0]
	}
	return nil
}

func renderStmt(n *Node, indent string) string {
	var sb strings.Builder
	for _, c := range n.Kids["aboveComments"] {
		sb.WriteString(indent)
		sb.WriteString(pstr(c, "text"))
		sb.WriteString("\n")
	}
	for _, d := range n.Kids["decorators"] {
		sb.WriteString(indent)
		sb.WriteString(renderDecorator(d))
		sb.WriteString("\n")
	}
	sb.WriteString(indent)
	sb.WriteString(renderStmtCore(n, indent))
	if ic := kid(n, "inlineComment"); ic != nil {
		sb.WriteString(" ")
		sb.WriteString(pstr(ic, "text"))
	}
	return sb.String()
}

func renderDecorator(d *Node) string {
	s := "@" + pstr(d, "name")
	for _, a := range d.Kids["args"] {
		s += " " + renderExpr(a)
	}
	return s
}

func renderChunk(stmts []*Node, indent string) string {
	lines := make([]string, len(stmts))
	for i, st := range stmts {
		lines[i] = renderStmt(st, indent)
	}
	return strings.Join(lines, "\n")
}

func renderStmtCore(n *Node, indent string) string {
	inner := indent + indentUnit
	switch n.Kind {
	case "command":
		return renderCommand(n, indent)
	case "assign":
		target := renderExpr(kid(n, "target"))
		value := renderExpr(kid(n, "value"))
		if pbool(n, "setStyle") {
			s := "set " + target
			if pbool(n, "hasAs") {
				s += " as"
			}
			s += " " + value
			if fb := kid(n, "fallback"); fb != nil {
				s += " " + renderExpr(fb)
			}
			return s
		}
		return target + " = " + value
	case "inlineIf":
		s := "if " + renderExpr(kid(n, "cond")) + " then " + renderStmtCore(kid(n, "then"), indent)
		if e := kid(n, "else"); e != nil {
			s += " else " + renderStmtCore(e, indent)
		}
		return s
	case "if":
		var sb strings.Builder
		for i, br := range n.Kids["branches"] {
			if i == 0 {
				sb.WriteString("if ")
			} else {
				sb.WriteString(indent + "elseif ")
			}
			sb.WriteString(renderExpr(kid(br, "cond")))
			sb.WriteString("\n")
			sb.WriteString(renderChunk(br.Kids["body"], inner))
			sb.WriteString("\n")
		}
		if len(n.Kids["else"]) > 0 {
			sb.WriteString(indent + "else\n")
			sb.WriteString(renderChunk(n.Kids["else"], inner))
			sb.WriteString("\n")
		}
		sb.WriteString(indent + "endif")
		return sb.String()
	case "ifTrue":
		kw := "iftrue"
		if pbool(n, "negate") {
			kw = "iffalse"
		}
		return kw + " " + renderStmtCore(kid(n, "body"), indent)
	case "def":
		s := "def " + pstr(n, "name")
		for _, p := range plist(n, "params") {
			s += " $" + p
		}
		return s + "\n" + renderChunk(n.Kids["body"], inner) + "\n" + indent + "enddef"
	case "do":
		s := "do"
		for _, p := range plist(n, "params") {
			s += " $" + p
		}
		if into := kid(n, "into"); into != nil {
			s += " into " + renderExpr(into)
		}
		return s + "\n" + renderChunk(n.Kids["body"], inner) + "\n" + indent + "enddo"
	case "together":
		var sb strings.Builder
		sb.WriteString("together\n")
		for _, b := range n.Kids["blocks"] {
			sb.WriteString(inner)
			sb.WriteString(renderStmtCore(b, inner))
			sb.WriteString("\n")
		}
		sb.WriteString(indent + "endtogether")
		return sb.String()
	case "for":
		return "for $" + pstr(n, "var") + " in " + renderExpr(kid(n, "iterable")) +
			"\n" + renderChunk(n.Kids["body"], inner) + "\n" + indent + "endfor"
	case "return":
		if v := kid(n, "value"); v != nil {
			return "return " + renderExpr(v)
		}
		return "return"
	case "break":
		return "break"
	case "continue":
		return "continue"
	case "on":
		return "on " + quoteString(pstr(n, "event"), "double") +
			"\n" + renderChunk(n.Kids["body"], inner) + "\n" + indent + "endon"
	case "use":
		return "use " + pstr(n, "module")
	case "commentGroup":
		lines := make([]string, len(n.Kids["comments"]))
		for i, c := range n.Kids["comments"] {
			lines[i] = pstr(c, "text")
		}
		return strings.Join(lines, "\n"+indent)
	}
	return ""
}

func renderCommand(n *Node, indent string) string {
	s := pstr(n, "name")
	if pbool(n, "parenthesized") {
		parts := make([]string, 0, len(n.Kids["args"])+len(n.Kids["opts"]))
		for _, a := range n.Kids["args"] {
			parts = append(parts, renderExpr(a))
		}
		for _, o := range n.Kids["opts"] {
			parts = append(parts, pstr(o, "name")+"="+renderExpr(kid(o, "value")))
		}
		s += "(" + strings.Join(parts, ", ") + ")"
	} else {
		for _, a := range n.Kids["args"] {
			s += " " + renderExpr(a)
		}
	}
	if into := kid(n, "into"); into != nil {
		s += " into " + renderExpr(into)
	}
	if ck := pstr(n, "callbackKind"); ck != "" {
		end := "endwith"
		if ck == "do" {
			end = "enddo"
		}
		s += " " + ck + "\n" + renderChunk(n.Kids["callback"], indent+indentUnit) +
			"\n" + indent + end
	}
	return s
}

func renderExpr(n *Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case "var":
		s := "$" + pstr(n, "name")
		for _, seg := range plist(n, "path") {
			s += "." + seg
		}
		return s
	case "lastValue":
		return "$"
	case "number":
		f, _ := n.Props["value"].(float64)
		return strconv.FormatFloat(f, 'f', -1, 64)
	case "string":
		return quoteString(pstr(n, "value"), pstr(n, "quote"))
	case "template":
		var sb strings.Builder
		sb.WriteString("`")
		for _, seg := range n.Kids["segments"] {
			if seg.Kind == "templateText" {
				sb.WriteString(escapeTemplate(pstr(seg, "text")))
			} else {
				sb.WriteString("${" + renderExpr(seg) + "}")
			}
		}
		sb.WriteString("`")
		return sb.String()
	case "bool":
		if pbool(n, "value") {
			return "true"
		}
		return "false"
	case "null":
		return "null"
	case "object":
		parts := make([]string, len(n.Kids["pairs"]))
		for i, p := range n.Kids["pairs"] {
			parts[i] = pstr(p, "key") + ": " + renderExpr(kid(p, "value"))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case "array":
		parts := make([]string, len(n.Kids["elements"]))
		for i, el := range n.Kids["elements"] {
			parts[i] = renderExpr(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case "subExpr":
		stmts := make([]string, len(n.Kids["body"]))
		for i, st := range n.Kids["body"] {
			stmts[i] = renderStmtCore(st, "")
		}
		return "$(" + strings.Join(stmts, "; ") + ")"
	case "binary":
		return renderExpr(kid(n, "lhs")) + " " + pstr(n, "op") + " " + renderExpr(kid(n, "rhs"))
	case "unary":
		op := pstr(n, "op")
		if op == "not" {
			return "not " + renderExpr(kid(n, "operand"))
		}
		return op + renderExpr(kid(n, "operand"))
	case "call":
		if pbool(n, "bare") {
			s := pstr(n, "name")
			for _, a := range n.Kids["args"] {
				s += " " + renderExpr(a)
			}
			return s
		}
		parts := make([]string, 0, len(n.Kids["args"])+len(n.Kids["opts"]))
		for _, a := range n.Kids["args"] {
			parts = append(parts, renderExpr(a))
		}
		for _, o := range n.Kids["opts"] {
			parts = append(parts, pstr(o, "name")+"="+renderExpr(kid(o, "value")))
		}
		return pstr(n, "name") + "(" + strings.Join(parts, ", ") + ")"
	case "namedArg":
		return pstr(n, "name") + "=" + renderExpr(kid(n, "value"))
	}
	return ""
}

var doubleEscaper = strings.NewReplacer(
	"\\", "\\\\", "\"", "\\\"", "\n", "\\n", "\t", "\\t", "\r", "\\r",
)

func quoteString(s, quote string) string {
	switch quote {
	case "bareword":
		if isBareword(s) {
			return s
		}
	case "single":
		if !strings.ContainsAny(s, "\n\r") {
			return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
		}
	case "fenced":
		return "---\n" + s + "\n---"
	}
	return "\"" + doubleEscaper.Replace(s) + "\""
}

func isBareword(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.':
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	switch s {
	case "true", "false", "null", "not", "and", "or":
		return false
	}
	return true
}

func escapeTemplate(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "`", "\\`")
	return strings.ReplaceAll(s, "${", "\\${")
}
