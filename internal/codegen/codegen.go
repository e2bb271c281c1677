// Package codegen is the VM instruction sink: an append-only buffer of
// stack-machine instructions with typed emit operations.
package codegen

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Segment names one of the eight VM memory segments.
type Segment string

const (
	Constant Segment = "constant"
	Argument Segment = "argument"
	Local    Segment = "local"
	Static   Segment = "static"
	This     Segment = "this"
	That     Segment = "that"
	Pointer  Segment = "pointer"
	Temp     Segment = "temp"
)

// Op is an arithmetic/logical VM command.
type Op string

const (
	Add Op = "add"
	Sub Op = "sub"
	Neg Op = "neg"
	Eq  Op = "eq"
	Gt  Op = "gt"
	Lt  Op = "lt"
	And Op = "and"
	Or  Op = "or"
	Not Op = "not"
)

// Writer is an append-only VM instruction buffer. Each emit method
// (Push, Pop, Arith, Label, Goto, IfGoto, Call, Function, Return)
// appends exactly one line (newline-terminated); Flush serializes the
// buffer to an io.Writer.
type Writer struct {
	buf bytes.Buffer
}

// New returns an empty Writer.
func New() *Writer {
	return &Writer{}
}

func (w *Writer) line(format string, args ...interface{}) {
	fmt.Fprintf(&w.buf, format+"\n", args...)
}

// Push emits "push <segment> <index>".
func (w *Writer) Push(seg Segment, index int) {
	w.line("push %s %d", seg, index)
}

// Pop emits "pop <segment> <index>".
func (w *Writer) Pop(seg Segment, index int) {
	w.line("pop %s %d", seg, index)
}

// Arith emits an arithmetic/logical command, e.g. "add". Multiply and
// divide have no VM opcode of their own (the VM's ALU is two-operand
// add/sub/neg/cmp/bool only); the parser is responsible for lowering
// `*`/`/` to `call Math.multiply 2`/`call Math.divide 2` instead of
// calling Arith for them.
func (w *Writer) Arith(op Op) {
	w.line("%s", op)
}

// Label emits "label <name>".
func (w *Writer) Label(name string) {
	w.line("label %s", name)
}

// Goto emits "goto <name>".
func (w *Writer) Goto(name string) {
	w.line("goto %s", name)
}

// IfGoto emits "if-goto <name>".
func (w *Writer) IfGoto(name string) {
	w.line("if-goto %s", name)
}

// Call emits "call <name> <nargs>".
func (w *Writer) Call(name string, nargs int) {
	w.line("call %s %d", name, nargs)
}

// Function emits "function <name> <nlocals>" -- the mandatory first
// instruction of every compiled subroutine.
func (w *Writer) Function(name string, nlocals int) {
	w.line("function %s %d", name, nlocals)
}

// Return emits "return".
func (w *Writer) Return() {
	w.line("return")
}

// Flush writes the buffered instructions to w: UTF-8 text, one
// instruction per line, no trailing blank lines or comments.
func (w *Writer) Flush(to io.Writer) error {
	if _, err := to.Write(w.buf.Bytes()); err != nil {
		return errors.Wrap(err, "flush VM output")
	}
	return nil
}

// Bytes returns the buffered instructions without flushing, primarily
// for tests asserting on emitted VM text and for idempotence checks
// that re-flush the same buffer twice.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}
