package eval

import "github.com/robinpath/robinpath/pkg/parse"

// frameKind controls how name lookup walks out of a frame.
type frameKind int

const (
	// transparentFrame reads and writes the enclosing frame's variables.
	transparentFrame frameKind = iota
	// isolatedFrame sees only its own locals.
	isolatedFrame
	// functionFrame sees its own locals (the parameters) and globals.
	functionFrame
)

// frame is one scope on the execution stack. Frames form a parent chain up to
// the root frame, which holds the globals.
type frame struct {
	kind      frameKind
	parent    *frame
	src       parse.Source
	locals    map[string]Value
	forgotten map[string]bool
	last      Value
}

func newFrame(kind frameKind, parent *frame) *frame {
	fm := &frame{kind: kind, parent: parent, locals: make(map[string]Value)}
	if parent != nil {
		fm.src = parent.src
	}
	return fm
}

// up returns the next frame visible from fm, or nil when lookup must stop.
func (fm *frame) up() *frame {
	switch fm.kind {
	case isolatedFrame:
		return nil
	case functionFrame:
		// Function bodies see their parameters and the globals, nothing in
		// between.
		f := fm.parent
		for f != nil && f.parent != nil {
			f = f.parent
		}
		return f
	}
	return fm.parent
}

// lookup resolves a variable by walking the visible frame chain. A name
// forgotten in a frame is invisible from that frame and its descendants.
func (fm *frame) lookup(name string) (Value, bool) {
	for f := fm; f != nil; f = f.up() {
		if f.forgotten[name] {
			return nil, false
		}
		if v, ok := f.locals[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// assign updates an existing visible binding in place, or creates the name in
// the current frame.
func (fm *frame) assign(name string, v Value) {
	for f := fm; f != nil; f = f.up() {
		if f.forgotten[name] {
			break
		}
		if _, ok := f.locals[name]; ok {
			f.locals[name] = v
			return
		}
	}
	if fm.forgotten != nil {
		delete(fm.forgotten, name)
	}
	fm.locals[name] = v
}

// forget hides a name from this frame and its descendants. The binding in the
// enclosing frame, if any, is untouched.
func (fm *frame) forget(name string) {
	if fm.forgotten == nil {
		fm.forgotten = make(map[string]bool)
	}
	fm.forgotten[name] = true
	delete(fm.locals, name)
}
