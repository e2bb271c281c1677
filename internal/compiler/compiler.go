// Package compiler implements the recursive-descent Jack parser that
// simultaneously validates grammar and emits VM code. The grammar is
// flat (no operator precedence) and the pass is single, left-to-right,
// with at most two tokens of lookahead.
package compiler

import (
	"errors"
	"fmt"

	"github.com/libklein/jackc/internal/codegen"
	"github.com/libklein/jackc/internal/lexer"
	"github.com/libklein/jackc/internal/symtab"
	"github.com/libklein/jackc/internal/token"
)

// TokenSource is the cursor interface the compiler drives the lexer
// through: current/peek-next/advance/has-more.
type TokenSource interface {
	Current() token.Token
	PeekNext() (token.Token, bool)
	Advance() bool
	HasMore() bool
	Err() error
}

// Sink is the VM emission interface the compiler drives the instruction
// buffer through.
type Sink interface {
	Push(codegen.Segment, int)
	Pop(codegen.Segment, int)
	Arith(codegen.Op)
	Label(string)
	Goto(string)
	IfGoto(string)
	Call(string, int)
	Function(string, int)
	Return()
}

// Compiler is the per-file compilation state: current class name, a
// monotonically increasing label counter (never reset across
// subroutines), and the symbol table. It is not safe for concurrent or
// repeated use across files -- construct a fresh one per file.
type Compiler struct {
	in  TokenSource
	out Sink
	sym *symtab.Table

	className string
	labelID   int
}

// New builds a Compiler reading from in and emitting to out.
func New(in TokenSource, out Sink) *Compiler {
	return &Compiler{in: in, out: out, sym: symtab.New()}
}

// invariantViolation is the internal panic payload for states the
// grammar should make unreachable (e.g. an operator token accepted by
// isBinaryOp but not recognized by the op-lowering switch). It is never
// used for anything representable in Jack source -- those are always
// returned as *Error from the point of detection.
type invariantViolation struct{ msg string }

func (p invariantViolation) String() string { return p.msg }

// Compile parses and lowers exactly one class:
// `class NAME { classVarDec* subroutineDec* }`. It is the sole recover
// boundary: a panic(invariantViolation) anywhere below is converted into
// a returned error instead of crashing the process, while all
// lex/parse/identifier/IO failures are already ordinary returned errors
// by the time they reach here.
func (c *Compiler) Compile() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(invariantViolation); ok {
				err = fmt.Errorf("internal error: %s", iv.msg)
				return
			}
			panic(r)
		}
	}()

	if c.in.Err() != nil {
		return wrapLexError(c.in.Err(), c.cur().Line)
	}
	if !c.in.HasMore() {
		return parseError(0, "", "class")
	}
	return c.compileClass()
}

// wrapLexError converts a lexer failure into a LexError. An unrecognized
// input segment carries its own lexeme and line; any other lexer failure
// (e.g. an unterminated block comment) is reported at line, the line of
// the last token scanned before it.
func wrapLexError(err error, line int) error {
	e := &Error{Kind: LexErrorKind, Line: line, Message: err.Error(), cause: err}
	var le *lexer.Error
	if errors.As(err, &le) {
		e.Lexeme, e.Line, e.Message = le.Lexeme, le.Line, "unrecognized input"
	}
	return e
}

func (c *Compiler) cur() token.Token {
	return c.in.Current()
}

func (c *Compiler) advance() error {
	if !c.in.Advance() {
		if err := c.in.Err(); err != nil {
			return wrapLexError(err, c.cur().Line)
		}
	}
	return nil
}

// eat verifies the current token's literal is one of alternatives,
// advances past it, and returns the consumed literal. A mismatch is a
// fatal ParseError naming the expected pattern.
func (c *Compiler) eat(alternatives ...string) (string, error) {
	t := c.cur()
	for _, alt := range alternatives {
		if t.Literal == alt {
			lit := t.Literal
			if err := c.advance(); err != nil {
				return "", err
			}
			return lit, nil
		}
	}
	return "", parseError(t.Line, t.Literal, joinAlternatives(alternatives))
}

func joinAlternatives(alts []string) string {
	out := ""
	for i, a := range alts {
		if i > 0 {
			out += "|"
		}
		out += a
	}
	return out
}

// eatIdentifier requires the current token to be lexically an
// Identifier (not merely an identifier-shaped keyword) -- a reserved
// word is never valid where only an identifier is grammatically legal.
func (c *Compiler) eatIdentifier() (string, error) {
	t := c.cur()
	if t.Type != token.Identifier {
		return "", parseError(t.Line, t.Literal, "identifier")
	}
	lit := t.Literal
	if err := c.advance(); err != nil {
		return "", err
	}
	return lit, nil
}

// eatType parses `int|char|boolean|IDENT`, additionally allowing `void`
// when allowVoid is set (subroutine return-type position).
func (c *Compiler) eatType(allowVoid bool) (string, error) {
	t := c.cur()
	if t.Literal == "int" || t.Literal == "char" || t.Literal == "boolean" {
		if err := c.advance(); err != nil {
			return "", err
		}
		return t.Literal, nil
	}
	if allowVoid && t.Literal == "void" {
		if err := c.advance(); err != nil {
			return "", err
		}
		return t.Literal, nil
	}
	return c.eatIdentifier()
}

func (c *Compiler) generateLabel(tag string) string {
	id := c.labelID
	c.labelID++
	return fmt.Sprintf("%s_%s_%d", c.className, tag, id)
}

// ---- class-level grammar ----

func (c *Compiler) compileClass() error {
	if _, err := c.eat("class"); err != nil {
		return err
	}

	c.sym.StartClass()

	name, err := c.eatIdentifier()
	if err != nil {
		return err
	}
	c.className = name

	if _, err := c.eat("{"); err != nil {
		return err
	}

	for c.cur().Is("static", "field") {
		if err := c.compileClassVarDec(); err != nil {
			return err
		}
	}
	for c.cur().Is("constructor", "function", "method") {
		if err := c.compileSubroutineDec(); err != nil {
			return err
		}
	}

	if _, err := c.eat("}"); err != nil {
		return err
	}
	if c.in.HasMore() {
		return parseError(c.cur().Line, c.cur().Literal, "end of file")
	}
	return nil
}

func (c *Compiler) compileClassVarDec() error {
	keyword, err := c.eat("static", "field")
	if err != nil {
		return err
	}
	kind := symtab.Static
	if keyword == "field" {
		kind = symtab.This
	}
	return c.compileVarSequence(kind)
}

// compileVarSequence parses `type name (, name)* ;` and declares each
// name at the given storage kind, used for both classVarDec and varDec.
func (c *Compiler) compileVarSequence(kind symtab.Kind) error {
	typ, err := c.eatType(false)
	if err != nil {
		return err
	}
	for {
		name, err := c.eatIdentifier()
		if err != nil {
			return err
		}
		c.sym.Define(name, typ, kind)
		if c.cur().Is(",") {
			if _, err := c.eat(","); err != nil {
				return err
			}
			continue
		}
		break
	}
	_, err = c.eat(";")
	return err
}

// ---- subroutine declarations ----

func (c *Compiler) compileSubroutineDec() error {
	c.sym.StartSubroutine()

	kind, err := c.eat("constructor", "function", "method")
	if err != nil {
		return err
	}

	if kind == "method" {
		// Receiver takes argument index 0, ahead of any formal parameter.
		c.sym.Define("this", c.className, symtab.Argument)
	}

	if _, err := c.eatType(true); err != nil {
		return err
	}
	name, err := c.eatIdentifier()
	if err != nil {
		return err
	}

	if _, err := c.eat("("); err != nil {
		return err
	}
	if !c.cur().Is(")") {
		if err := c.compileParameterList(); err != nil {
			return err
		}
	}
	if _, err := c.eat(")"); err != nil {
		return err
	}

	return c.compileSubroutineBody(name, kind)
}

func (c *Compiler) compileParameterList() error {
	for {
		typ, err := c.eatType(false)
		if err != nil {
			return err
		}
		name, err := c.eatIdentifier()
		if err != nil {
			return err
		}
		c.sym.Define(name, typ, symtab.Argument)
		if c.cur().Is(",") {
			if _, err := c.eat(","); err != nil {
				return err
			}
			continue
		}
		break
	}
	return nil
}

func (c *Compiler) compileSubroutineBody(name, kind string) error {
	if _, err := c.eat("{"); err != nil {
		return err
	}

	for c.cur().Is("var") {
		if err := c.compileVarDec(); err != nil {
			return err
		}
	}

	// The function header can only be emitted once the local count is
	// fully known -- this is why it is emitted here, after all varDecs,
	// rather than when the subroutine's name is first parsed.
	nlocals := c.sym.VarCount(symtab.Local)
	c.out.Function(c.className+"."+name, nlocals)

	switch kind {
	case "constructor":
		nfields := c.sym.VarCount(symtab.This)
		c.out.Push(codegen.Constant, nfields)
		c.out.Call("Memory.alloc", 1)
		c.out.Pop(codegen.Pointer, 0)
	case "method":
		c.out.Push(codegen.Argument, 0)
		c.out.Pop(codegen.Pointer, 0)
	}

	if err := c.compileStatements(); err != nil {
		return err
	}
	_, err := c.eat("}")
	return err
}

func (c *Compiler) compileVarDec() error {
	if _, err := c.eat("var"); err != nil {
		return err
	}
	return c.compileVarSequence(symtab.Local)
}

// variableSegment maps a symbol-table Kind onto its VM segment.
func variableSegment(kind symtab.Kind) codegen.Segment {
	switch kind {
	case symtab.Static:
		return codegen.Static
	case symtab.This:
		return codegen.This
	case symtab.Argument:
		return codegen.Argument
	default:
		return codegen.Local
	}
}

// resolveVariable looks up name and returns its VM segment/index, or a
// fatal UnknownIdentifierError if it is not in scope: an unresolved
// name must abort compilation, never silently emit a placeholder.
func (c *Compiler) resolveVariable(name string, line int) (codegen.Segment, int, error) {
	entry, ok := c.sym.Resolve(name)
	if !ok {
		return "", 0, unknownIdentifierError(name, line)
	}
	return variableSegment(entry.Kind), entry.Index, nil
}
