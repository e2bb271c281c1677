// Package symtab implements the two-scope Jack symbol table: a
// class-scope table (Static/Field) and a subroutine-scope table
// (Argument/Local).
package symtab

import "github.com/sirupsen/logrus"

// Kind is the storage kind of a declared identifier. It maps 1:1 onto a
// VM segment: Static -> static, This -> this, Argument -> argument,
// Local -> local.
type Kind string

const (
	Static   Kind = "static"
	This     Kind = "this" // storage kind for class *fields*, not the `this` keyword
	Argument Kind = "argument"
	Local    Kind = "local"
)

// Entry is one symbol-table row: declared type, storage kind, and the
// dense per-kind index assigned at Define time.
type Entry struct {
	Type  string
	Kind  Kind
	Index int
}

// scope is a single flat mapping from name to Entry, with one running
// counter per Kind so indices stay dense within that scope.
type scope struct {
	entries map[string]Entry
	counts  map[Kind]int
}

func newScope() scope {
	return scope{entries: make(map[string]Entry), counts: make(map[Kind]int)}
}

// define inserts name if and not already present; redefinition is a
// silent no-op. This is required, not incidental: §4.3's method prologue
// calls Define("this", ...) before parameters are parsed, and
// compileParameterList must be able to re-run without disturbing it.
// Reports whether the name was newly inserted, so the caller can log
// only actual declarations and not no-op redefinitions.
func (s *scope) define(name, typ string, kind Kind) bool {
	if _, exists := s.entries[name]; exists {
		return false
	}
	idx := s.counts[kind]
	s.counts[kind] = idx + 1
	s.entries[name] = Entry{Type: typ, Kind: kind, Index: idx}
	return true
}

func (s *scope) count(kind Kind) int {
	return s.counts[kind]
}

func (s *scope) lookup(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

func (s *scope) reset() {
	s.entries = make(map[string]Entry)
	s.counts = make(map[Kind]int)
}

// Table is the compiler's two-scope symbol table. The class scope lives
// for one class; the subroutine scope is reset at the start of every
// subroutine.
type Table struct {
	class      scope
	subroutine scope
}

// New returns an empty Table, ready for a fresh class.
func New() *Table {
	return &Table{class: newScope(), subroutine: newScope()}
}

// StartClass clears the class scope, beginning a new class.
func (t *Table) StartClass() {
	t.class.reset()
}

// StartSubroutine clears the subroutine scope (Argument/Local) at the
// start of every subroutine declaration.
func (t *Table) StartSubroutine() {
	t.subroutine.reset()
}

// Define declares name with the given type and kind in the scope implied
// by kind: Static/This go to class scope, Argument/Local go to
// subroutine scope. A name already defined in its scope is left
// untouched (first definition wins). Every new declaration is logged at
// debug level, the direct descendant of the teacher's
// `fmt.Printf("Registered symbol %q: %q\n", ...)` trace in
// SymbolTable.Declare.
func (t *Table) Define(name, typ string, kind Kind) {
	var inserted bool
	switch kind {
	case Static, This:
		inserted = t.class.define(name, typ, kind)
	case Argument, Local:
		inserted = t.subroutine.define(name, typ, kind)
	}
	if inserted {
		logrus.Debugf("declared symbol %q: type=%s kind=%s index=%d", name, typ, kind, t.VarCount(kind)-1)
	}
}

// VarCount returns the number of entries currently declared with kind,
// within whichever scope that kind belongs to.
func (t *Table) VarCount(kind Kind) int {
	switch kind {
	case Static, This:
		return t.class.count(kind)
	default:
		return t.subroutine.count(kind)
	}
}

// Resolve looks up name, checking subroutine scope before class scope
// (so a local shadows a field of the same name). The second return
// value is false if name is unknown -- the caller (internal/compiler)
// must treat that as a fatal UnknownIdentifierError, never silently
// emit a placeholder.
func (t *Table) Resolve(name string) (Entry, bool) {
	if e, ok := t.subroutine.lookup(name); ok {
		return e, true
	}
	return t.class.lookup(name)
}
