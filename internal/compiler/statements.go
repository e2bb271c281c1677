package compiler

import (
	"fmt"

	"github.com/libklein/jackc/internal/codegen"
)

// compileStatements parses zero or more of let/if/while/do/return.
func (c *Compiler) compileStatements() error {
	for {
		switch {
		case c.cur().Is("let"):
			if err := c.compileLet(); err != nil {
				return err
			}
		case c.cur().Is("if"):
			if err := c.compileIf(); err != nil {
				return err
			}
		case c.cur().Is("while"):
			if err := c.compileWhile(); err != nil {
				return err
			}
		case c.cur().Is("do"):
			if err := c.compileDo(); err != nil {
				return err
			}
		case c.cur().Is("return"):
			if err := c.compileReturn(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// compileLet parses `let name ([ expr ])? = expr ;`.
//
// The subscripted form cannot simply push the RHS then pop into `that
// 0`: if the RHS expression itself contains an array read, evaluating it
// after seating `pointer 1` to the LHS's element address would clobber
// THAT before the store happens. The four-instruction stash-restore
// sequence below is mandatory whenever nested array assignments can
// occur (`let a[i] = a[j];`), not merely a stylistic choice.
func (c *Compiler) compileLet() error {
	if _, err := c.eat("let"); err != nil {
		return err
	}
	nameLine := c.cur().Line
	name, err := c.eatIdentifier()
	if err != nil {
		return err
	}

	isArray := c.cur().Is("[")
	if isArray {
		if _, err := c.eat("["); err != nil {
			return err
		}
		if err := c.compileArrayElementAddress(name, nameLine); err != nil {
			return err
		}
		if _, err := c.eat("]"); err != nil {
			return err
		}
	}

	if _, err := c.eat("="); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	if _, err := c.eat(";"); err != nil {
		return err
	}

	if isArray {
		c.out.Pop(codegen.Temp, 0)
		c.out.Pop(codegen.Pointer, 1)
		c.out.Push(codegen.Temp, 0)
		c.out.Pop(codegen.That, 0)
		return nil
	}

	seg, idx, err := c.resolveVariable(name, nameLine)
	if err != nil {
		return err
	}
	c.out.Pop(seg, idx)
	return nil
}

// compileArrayElementAddress emits `push <seg> <idx>`, compiles the
// bracketed subscript expression, and emits `add`, leaving the element's
// address on top of the stack -- shared by let's LHS and term's
// `name[expr]` read form.
func (c *Compiler) compileArrayElementAddress(name string, line int) error {
	seg, idx, err := c.resolveVariable(name, line)
	if err != nil {
		return err
	}
	c.out.Push(seg, idx)
	if err := c.compileExpression(); err != nil {
		return err
	}
	c.out.Arith(codegen.Add)
	return nil
}

// compileWhile lowers `while ( cond ) { body }` with a two-label loop:
// label BEGIN; cond; not; if-goto EXIT; body; goto BEGIN; label EXIT.
func (c *Compiler) compileWhile() error {
	if _, err := c.eat("while"); err != nil {
		return err
	}
	begin := c.generateLabel("WHILE_EXP")
	end := c.generateLabel("WHILE_END")

	c.out.Label(begin)

	if _, err := c.eat("("); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	if _, err := c.eat(")"); err != nil {
		return err
	}

	c.out.Arith(codegen.Not)
	c.out.IfGoto(end)

	if _, err := c.eat("{"); err != nil {
		return err
	}
	if err := c.compileStatements(); err != nil {
		return err
	}
	if _, err := c.eat("}"); err != nil {
		return err
	}

	c.out.Goto(begin)
	c.out.Label(end)
	return nil
}

// compileIf lowers `if ( cond ) { then } (else { else })?` with the
// canonical three-label scheme: no `not` is inserted before the
// branch, and IF_TRUE/IF_FALSE/IF_END are three distinct labels that
// share one value k of the monotonic counter, rather than negating the
// condition and branching around a single label.
func (c *Compiler) compileIf() error {
	if _, err := c.eat("if"); err != nil {
		return err
	}
	k := c.labelID
	c.labelID++
	ifTrue := fmt.Sprintf("%s_IF_TRUE_%d", c.className, k)
	ifFalse := fmt.Sprintf("%s_IF_FALSE_%d", c.className, k)
	ifEnd := fmt.Sprintf("%s_IF_END_%d", c.className, k)

	if _, err := c.eat("("); err != nil {
		return err
	}
	if err := c.compileExpression(); err != nil {
		return err
	}
	if _, err := c.eat(")"); err != nil {
		return err
	}

	c.out.IfGoto(ifTrue)
	c.out.Goto(ifFalse)
	c.out.Label(ifTrue)

	if _, err := c.eat("{"); err != nil {
		return err
	}
	if err := c.compileStatements(); err != nil {
		return err
	}
	if _, err := c.eat("}"); err != nil {
		return err
	}

	c.out.Goto(ifEnd)
	c.out.Label(ifFalse)

	if c.cur().Is("else") {
		if _, err := c.eat("else"); err != nil {
			return err
		}
		if _, err := c.eat("{"); err != nil {
			return err
		}
		if err := c.compileStatements(); err != nil {
			return err
		}
		if _, err := c.eat("}"); err != nil {
			return err
		}
	}

	c.out.Label(ifEnd)
	return nil
}

// compileDo parses `do subroutineCall ;` and discards the return value
// every subroutine call leaves on the stack.
func (c *Compiler) compileDo() error {
	if _, err := c.eat("do"); err != nil {
		return err
	}
	if err := c.compileSubroutineCall(""); err != nil {
		return err
	}
	c.out.Pop(codegen.Temp, 0)
	_, err := c.eat(";")
	return err
}

// compileReturn parses `return expr? ;`. Void returns still need a
// value on the stack (VM calling convention requires every call to
// leave exactly one value behind), so a bare `return;` pushes constant 0.
func (c *Compiler) compileReturn() error {
	if _, err := c.eat("return"); err != nil {
		return err
	}
	if !c.cur().Is(";") {
		if err := c.compileExpression(); err != nil {
			return err
		}
	} else {
		c.out.Push(codegen.Constant, 0)
	}
	c.out.Return()
	_, err := c.eat(";")
	return err
}
