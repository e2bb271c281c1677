package compiler

import (
	"github.com/libklein/jackc/internal/codegen"
	"github.com/libklein/jackc/internal/token"
)

// binaryOpVM lowers the flat, equal-precedence binary operator
// grammar. `*` and `/` have no VM ALU opcode and are lowered to Math
// calls instead; everything else maps straight onto an Arith op.
var binaryOpVM = map[string]codegen.Op{
	"+": codegen.Add,
	"-": codegen.Sub,
	"&": codegen.And,
	"|": codegen.Or,
	"<": codegen.Lt,
	">": codegen.Gt,
	"=": codegen.Eq,
}

var unaryOpVM = map[string]codegen.Op{
	"-": codegen.Neg,
	"~": codegen.Not,
}

func isBinaryOp(t token.Token) bool {
	switch t.Literal {
	case "+", "-", "*", "/", "&", "|", "<", ">", "=":
		return t.Type == token.Symbol
	}
	return false
}

func isUnaryOp(t token.Token) bool {
	switch t.Literal {
	case "-", "~":
		return t.Type == token.Symbol
	}
	return false
}

// compileExpression parses `term (op term)*`. There is no operator
// precedence in Jack: each `op term` is lowered immediately, left to
// right, giving ordinary postfix stack semantics.
func (c *Compiler) compileExpression() error {
	if err := c.compileTerm(); err != nil {
		return err
	}
	for isBinaryOp(c.cur()) {
		opLit := c.cur().Literal
		if _, err := c.eat(opLit); err != nil {
			return err
		}
		if err := c.compileTerm(); err != nil {
			return err
		}
		switch opLit {
		case "*":
			c.out.Call("Math.multiply", 2)
		case "/":
			c.out.Call("Math.divide", 2)
		default:
			op, ok := binaryOpVM[opLit]
			if !ok {
				panic(invariantViolation{"isBinaryOp accepted an operator with no VM lowering: " + opLit})
			}
			c.out.Arith(op)
		}
	}
	return nil
}

// compileExpressionList parses `(expression (, expression)*)?` and
// returns the number of expressions compiled.
func (c *Compiler) compileExpressionList() (int, error) {
	if c.cur().Is(")") {
		return 0, nil
	}
	n := 0
	for {
		if err := c.compileExpression(); err != nil {
			return n, err
		}
		n++
		if c.cur().Is(",") {
			if _, err := c.eat(","); err != nil {
				return n, err
			}
			continue
		}
		break
	}
	return n, nil
}

// compileTerm parses one term of the expression grammar.
func (c *Compiler) compileTerm() error {
	t := c.cur()
	switch {
	case t.Type == token.IntConst:
		v, err := t.IntValue()
		if err != nil {
			return parseError(t.Line, t.Literal, "integer constant in [0, 32767]")
		}
		c.out.Push(codegen.Constant, int(v))
		return c.advance()

	case t.Type == token.StringConst:
		c.compileStringConstant(t.Literal)
		return c.advance()

	case t.Type == token.Keyword:
		return c.compileKeywordConstant(t)

	case t.Is("("):
		if _, err := c.eat("("); err != nil {
			return err
		}
		if err := c.compileExpression(); err != nil {
			return err
		}
		_, err := c.eat(")")
		return err

	case isUnaryOp(t):
		if _, err := c.eat(t.Literal); err != nil {
			return err
		}
		if err := c.compileTerm(); err != nil {
			return err
		}
		c.out.Arith(unaryOpVM[t.Literal])
		return nil

	case t.Type == token.Identifier:
		return c.compileIdentifierTerm()

	default:
		return parseError(t.Line, t.Literal, "term")
	}
}

// compileStringConstant allocates a String and appends each character.
// Each `appendChar` call returns the receiver, preserving the pointer
// on the stack for the next append.
func (c *Compiler) compileStringConstant(s string) {
	c.out.Push(codegen.Constant, len(s))
	c.out.Call("String.new", 1)
	for _, r := range s {
		c.out.Push(codegen.Constant, int(r))
		c.out.Call("String.appendChar", 2)
	}
}

func (c *Compiler) compileKeywordConstant(t token.Token) error {
	switch t.Literal {
	case "true":
		c.out.Push(codegen.Constant, 0)
		c.out.Arith(codegen.Not)
	case "false", "null":
		c.out.Push(codegen.Constant, 0)
	case "this":
		c.out.Push(codegen.Pointer, 0)
	default:
		return parseError(t.Line, t.Literal, "keyword constant (true|false|null|this)")
	}
	return c.advance()
}

// compileIdentifierTerm resolves the three-way ambiguity of an
// identifier in term position: the token *after* the identifier
// decides whether this is an array access, a subroutine call, or a
// plain variable read.
func (c *Compiler) compileIdentifierTerm() error {
	name := c.cur().Literal
	line := c.cur().Line
	if err := c.advance(); err != nil {
		return err
	}

	switch {
	case c.cur().Is("["):
		if _, err := c.eat("["); err != nil {
			return err
		}
		if err := c.compileArrayElementAddress(name, line); err != nil {
			return err
		}
		if _, err := c.eat("]"); err != nil {
			return err
		}
		c.out.Pop(codegen.Pointer, 1)
		c.out.Push(codegen.That, 0)
		return nil

	case c.cur().Is("("), c.cur().Is("."):
		return c.compileSubroutineCall(name)

	default:
		seg, idx, err := c.resolveVariable(name, line)
		if err != nil {
			return err
		}
		c.out.Push(seg, idx)
		return nil
	}
}

// compileSubroutineCall parses and lowers `f(args)` or `X.f(args)`.
// When name == "" (called directly from a `do` statement) the leading
// identifier is parsed here; when called from compileIdentifierTerm,
// name has already been consumed and the cursor sits on "(" or ".".
func (c *Compiler) compileSubroutineCall(name string) error {
	if name == "" {
		n, err := c.eatIdentifier()
		if err != nil {
			return err
		}
		name = n
	}

	switch {
	case c.cur().Is("."):
		if _, err := c.eat("."); err != nil {
			return err
		}
		methodName, err := c.eatIdentifier()
		if err != nil {
			return err
		}

		nargs := 0
		callee := name
		if entry, ok := c.sym.Resolve(name); ok {
			// name is a variable: push it as the receiver (argument 0).
			nargs = 1
			c.out.Push(variableSegment(entry.Kind), entry.Index)
			callee = entry.Type + "." + methodName
		} else {
			// name is a class; call its function directly.
			callee = name + "." + methodName
		}

		if _, err := c.eat("("); err != nil {
			return err
		}
		n, err := c.compileExpressionList()
		if err != nil {
			return err
		}
		if _, err := c.eat(")"); err != nil {
			return err
		}
		c.out.Call(callee, nargs+n)
		return nil

	case c.cur().Is("("):
		// Bare `f(args)`: a method call on the current object.
		c.out.Push(codegen.Pointer, 0)
		if _, err := c.eat("("); err != nil {
			return err
		}
		n, err := c.compileExpressionList()
		if err != nil {
			return err
		}
		if _, err := c.eat(")"); err != nil {
			return err
		}
		c.out.Call(c.className+"."+name, n+1)
		return nil

	default:
		return parseError(c.cur().Line, c.cur().Literal, "( or . (subroutine call)")
	}
}
