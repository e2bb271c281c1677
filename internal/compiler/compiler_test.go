package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libklein/jackc/internal/codegen"
	"github.com/libklein/jackc/internal/compiler"
	"github.com/libklein/jackc/internal/lexer"
)

func compileSource(t *testing.T, src string) (string, error) {
	t.Helper()
	tok := lexer.New(strings.NewReader(src))
	out := codegen.New()
	c := compiler.New(tok, out)
	err := c.Compile()
	return string(out.Bytes()), err
}

func mustCompile(t *testing.T, src string) []string {
	t.Helper()
	vm, err := compileSource(t, src)
	require.NoError(t, err)
	vm = strings.TrimRight(vm, "\n")
	if vm == "" {
		return nil
	}
	return strings.Split(vm, "\n")
}

// An empty void subroutine still returns the conventional 0.
func TestScenario_EmptyVoidMain(t *testing.T) {
	lines := mustCompile(t, `class M { function void main() { return; } }`)
	require.Equal(t, []string{
		"function M.main 0",
		"push constant 0",
		"return",
	}, lines)
}

// A constructor allocates the object and assigns a field.
func TestScenario_ConstructorWithFieldAssignment(t *testing.T) {
	lines := mustCompile(t, `class P { field int x; constructor P new() { let x = 7; return this; } }`)
	require.Equal(t, []string{
		"function P.new 0",
		"push constant 1",
		"call Memory.alloc 1",
		"pop pointer 0",
		"push constant 7",
		"pop this 0",
		"push pointer 0",
		"return",
	}, lines)
}

// A method reads its receiver-relative argument.
func TestScenario_MethodReturnsArgPlusOne(t *testing.T) {
	lines := mustCompile(t, `class K { method int g(int a) { return a + 1; } }`)
	require.Equal(t, []string{
		"function K.g 0",
		"push argument 0",
		"pop pointer 0",
		"push argument 1",
		"push constant 1",
		"add",
		"return",
	}, lines)
}

// A while loop over a local variable.
func TestScenario_WhileLoop(t *testing.T) {
	lines := mustCompile(t, `class M {
		function void main() {
			var int x;
			while (x < 10) {
				let x = x + 1;
			}
			return;
		}
	}`)
	require.Equal(t, []string{
		"function M.main 1",
		"label M_WHILE_EXP_0",
		"push local 0",
		"push constant 10",
		"lt",
		"not",
		"if-goto M_WHILE_END_1",
		"push local 0",
		"push constant 1",
		"add",
		"pop local 0",
		"goto M_WHILE_EXP_0",
		"label M_WHILE_END_1",
		"push constant 0",
		"return",
	}, lines)
}

// String literal construction via Output.printString.
func TestScenario_DoStringLiteralCall(t *testing.T) {
	lines := mustCompile(t, `class M { function void main() { do Output.printString("Hi"); return; } }`)
	require.Equal(t, []string{
		"function M.main 0",
		"push constant 2",
		"call String.new 1",
		"push constant 72",
		"call String.appendChar 2",
		"push constant 105",
		"call String.appendChar 2",
		"call Output.printString 1",
		"pop temp 0",
		"push constant 0",
		"return",
	}, lines)
}

// Array-to-array assignment must stash the RHS in temp so
// that evaluating the RHS's own array read doesn't clobber THAT before
// the store into the LHS.
func TestScenario_ArrayToArrayAssignment(t *testing.T) {
	lines := mustCompile(t, `class M {
		function void main() {
			var Array a;
			var int i, j;
			let a[i] = a[j];
			return;
		}
	}`)
	require.Equal(t, []string{
		"function M.main 3",
		"push local 0",
		"push local 1",
		"add",
		"push local 0",
		"push local 2",
		"add",
		"pop pointer 1",
		"push that 0",
		"pop temp 0",
		"pop pointer 1",
		"push temp 0",
		"pop that 0",
		"push constant 0",
		"return",
	}, lines)
}

func TestIfElseUsesThreeLabelScheme(t *testing.T) {
	lines := mustCompile(t, `class M {
		function void main() {
			var int x;
			if (x) {
				let x = 1;
			} else {
				let x = 2;
			}
			return;
		}
	}`)
	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, "if-goto M_IF_TRUE_0")
	require.Contains(t, joined, "goto M_IF_FALSE_0")
	require.Contains(t, joined, "label M_IF_TRUE_0")
	require.Contains(t, joined, "goto M_IF_END_0")
	require.Contains(t, joined, "label M_IF_FALSE_0")
	require.Contains(t, joined, "label M_IF_END_0")
	require.NotContains(t, joined, "not", "the canonical three-label scheme never inserts a `not` before the branch")
}

func TestLabelsAreUniqueAcrossSubroutines(t *testing.T) {
	lines := mustCompile(t, `class M {
		function void a() {
			var int x;
			while (true) { let x = x; }
			return;
		}
		function void b() {
			var int x;
			while (true) { let x = x; }
			return;
		}
	}`)
	seen := map[string]bool{}
	for _, l := range lines {
		if strings.HasPrefix(l, "label ") {
			name := strings.TrimPrefix(l, "label ")
			require.False(t, seen[name], "label %q reused", name)
			seen[name] = true
		}
	}
	require.NotEmpty(t, seen)
}

func TestFunctionHeaderReportsLocalCount(t *testing.T) {
	lines := mustCompile(t, `class M {
		function void f() {
			var int a, b, c;
			return;
		}
	}`)
	require.Equal(t, "function M.f 3", lines[0])
}

func TestMethodCallOnVariableReceiver(t *testing.T) {
	lines := mustCompile(t, `class M {
		function void main() {
			var Point p;
			do p.move(1, 2);
			return;
		}
	}`)
	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, "push local 0")
	require.Contains(t, joined, "call Point.move 3")
}

func TestBareCallIsMethodOnCurrentObject(t *testing.T) {
	lines := mustCompile(t, `class M {
		method void helper() { return; }
		method void main() {
			do helper();
			return;
		}
	}`)
	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, "push pointer 0")
	require.Contains(t, joined, "call M.helper 1")
}

func TestKeywordConstants(t *testing.T) {
	lines := mustCompile(t, `class M {
		function boolean f() {
			if (true) {
				return false;
			}
			return null;
		}
	}`)
	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, "push constant 0\nnot")
	require.Contains(t, joined, "push constant 0")
}

func TestUnknownIdentifierIsFatal(t *testing.T) {
	_, err := compileSource(t, `class M { function void f() { let x = 1; return; } } `)
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, compiler.UnknownIdentifierErrorKind, cerr.Kind)
	require.Equal(t, "x", cerr.Lexeme)
}

func TestParseErrorNamesExpectedPattern(t *testing.T) {
	_, err := compileSource(t, `class M { function void f( { return; } }`)
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, compiler.ParseErrorKind, cerr.Kind)
	require.Equal(t, "expected identifier", cerr.Message)
}

func TestKeywordCannotBeUsedAsIdentifier(t *testing.T) {
	_, err := compileSource(t, `class class { function void f() { return; } }`)
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, compiler.ParseErrorKind, cerr.Kind)
}

func TestEmptyClassBody(t *testing.T) {
	lines := mustCompile(t, `class Empty { }`)
	require.Empty(t, lines)
}

func TestLexErrorPropagatesAsError(t *testing.T) {
	_, err := compileSource(t, `class M { function void f() { let x = 1 ` + "`" + ` 2; return; } }`)
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, compiler.LexErrorKind, cerr.Kind)
}

func TestRoundTripIsDeterministic(t *testing.T) {
	src := `class P { field int x, y; constructor P new(int ax, int ay) { let x = ax; let y = ay; return this; } method int getX() { return x; } }`
	first, err := compileSource(t, src)
	require.NoError(t, err)
	second, err := compileSource(t, src)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
