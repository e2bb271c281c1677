// Package lexer strips comments from Jack source and segments the
// remainder into a token stream with one-token (plus occasional
// two-token) lookahead, tracking source line numbers for diagnostics.
package lexer

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/libklein/jackc/internal/token"
)

// Error is a fatal lex error: a segment of text matched no rule.
type Error struct {
	Lexeme string
	Line   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: unrecognized input %q", e.Line, e.Lexeme)
}

type rule struct {
	re   *regexp.Regexp
	kind token.Type
}

// rules are matched by "longest match wins": an identifier like
// "classroom" matches 9 runes as an identifier and does not match the
// word-bounded keyword pattern at all. A reserved word such as "class"
// matches the keyword and identifier rules at the same length; that tie
// goes to the earlier rule, so the keyword rule must stay ahead of the
// identifier rule in this list. The keyword and symbol
// alternations are built from token.Keywords/token.Symbols so the
// reserved-word and punctuation vocabularies have one source of truth.
var rules = []rule{
	{regexp.MustCompile(`^(` + keywordAlternation() + `)\b`), token.Keyword},
	{regexp.MustCompile(`^[` + regexp.QuoteMeta(symbolCharset()) + `]`), token.Symbol},
	{regexp.MustCompile(`^[0-9]+`), token.IntConst},
	{regexp.MustCompile(`^"[^"\n]*"`), token.StringConst},
	{regexp.MustCompile(`^[A-Za-z_]\w*`), token.Identifier},
}

func keywordAlternation() string {
	words := make([]string, 0, len(token.Keywords))
	for w := range token.Keywords {
		words = append(words, w)
	}
	sort.Strings(words)
	return strings.Join(words, "|")
}

func symbolCharset() string {
	chars := make([]byte, 0, len(token.Symbols))
	for s := range token.Symbols {
		chars = append(chars, s)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	return string(chars)
}

// commentStrippingReader removes block (/* ... */) and line (// ...)
// comments from the underlying stream while preserving every newline
// character it consumes, so downstream line counting stays correct even
// across elided comment text. Block comment nesting is not supported.
type commentStrippingReader struct {
	r               *bufio.Reader
	pendingNewlines int
}

func newCommentStrippingReader(r io.Reader) *commentStrippingReader {
	return &commentStrippingReader{r: bufio.NewReader(r)}
}

func (c *commentStrippingReader) Read(b []byte) (int, error) {
	i := 0
	for i < len(b) {
		if c.pendingNewlines > 0 {
			b[i] = '\n'
			i++
			c.pendingNewlines--
			continue
		}
		ch, _, err := c.r.ReadRune()
		if err != nil {
			if i > 0 {
				return i, nil
			}
			return i, err
		}

		if ch == '/' {
			next, _, nextErr := c.r.ReadRune()
			switch {
			case nextErr == nil && next == '/':
				line, _ := c.r.ReadString('\n')
				b[i] = '\n'
				i++
				_ = line
				continue
			case nextErr == nil && next == '*':
				newlines, err := c.consumeBlockComment()
				if err != nil {
					return i, err
				}
				c.pendingNewlines = newlines
				continue
			default:
				if nextErr == nil {
					_ = c.r.UnreadRune()
				}
				b[i] = byte(ch)
				i++
				continue
			}
		}

		b[i] = byte(ch)
		i++
	}
	return i, nil
}

// consumeBlockComment reads up to and including the closing "*/",
// returning the number of newlines seen inside it. An unterminated
// comment is a fatal lex error.
func (c *commentStrippingReader) consumeBlockComment() (int, error) {
	newlines := 0
	prev := byte(0)
	for {
		ch, _, err := c.r.ReadRune()
		if err != nil {
			return newlines, fmt.Errorf("unterminated block comment")
		}
		if ch == '\n' {
			newlines++
		}
		if prev == '*' && ch == '/' {
			return newlines, nil
		}
		prev = byte(ch)
	}
}

// firstWord trims an unmatched chunk down to something readable for an
// error message: up to the next whitespace, or at most the first 32
// bytes of the chunk if it has none.
func firstWord(s string) string {
	if idx := strings.IndexFunc(s, unicode.IsSpace); idx >= 0 {
		return s[:idx]
	}
	if len(s) > 32 {
		return s[:32]
	}
	return s
}

// Tokenizer consumes source text and exposes a current/peek-next/advance
// cursor over the resulting token stream.
type Tokenizer struct {
	scanner *bufio.Scanner
	line    int

	cur    token.Token
	curOK  bool
	peek   token.Token
	peekOK bool
	err    error

	lastKind token.Type
}

// New constructs a Tokenizer over r and primes the cursor with the first
// token (if any).
func New(r io.Reader) *Tokenizer {
	t := &Tokenizer{line: 1}
	t.scanner = bufio.NewScanner(newCommentStrippingReader(r))
	t.scanner.Split(t.splitToken)
	t.curOK = t.fetch(&t.cur)
	return t
}

// splitToken is a bufio.SplitFunc that trims leading whitespace (tallying
// newlines into t.line as it goes) and then matches the longest rule at
// the resulting offset.
func (t *Tokenizer) splitToken(data []byte, atEOF bool) (advance int, tok []byte, err error) {
	trimmed := strings.TrimLeftFunc(string(data), unicode.IsSpace)
	skipped := len(data) - len(trimmed)
	if len(trimmed) == 0 {
		if atEOF {
			t.line += strings.Count(string(data), "\n")
			return len(data), nil, nil
		}
		return 0, nil, nil
	}

	matchLen, kind, matchErr := matchLongest(trimmed)
	if matchErr != nil {
		if atEOF {
			t.line += strings.Count(string(data[:skipped]), "\n")
			lexErr := &Error{Lexeme: firstWord(trimmed), Line: t.line}
			t.err = lexErr
			return 0, nil, lexErr
		}
		// Might just need more data to disambiguate a longer match.
		return 0, nil, nil
	}

	t.line += strings.Count(string(data[:skipped]), "\n")
	t.lastKind = kind
	advance = skipped + matchLen
	tok = []byte(trimmed[:matchLen])
	return advance, tok, nil
}

// matchLongest finds, among rules, the one matching the longest prefix of
// s starting at offset 0. Ties are broken by rule priority (declaration
// order in `rules`), which is only relevant when two rules match the
// exact same length. Each rule's character classes are disjoint in their
// first byte except identifier vs keyword, so the only tie is a reserved
// word, which both rules match in full and the keyword rule wins. A
// longer word that starts with a keyword (e.g. "classroom") fails the
// \b-anchored keyword pattern and lexes as an identifier.
func matchLongest(s string) (length int, kind token.Type, err error) {
	best := -1
	var bestKind token.Type
	for _, r := range rules {
		loc := r.re.FindStringIndex(s)
		if loc == nil || loc[0] != 0 {
			continue
		}
		if loc[1] > best {
			best = loc[1]
			bestKind = r.kind
		}
	}
	if best < 0 {
		return 0, token.Invalid, fmt.Errorf("no rule matches %q", s)
	}
	return best, bestKind, nil
}

// fetch advances the scanner and decodes the next raw token into *out.
// Returns false at end of input.
func (t *Tokenizer) fetch(out *token.Token) bool {
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil && t.err == nil {
			t.err = err
		}
		return false
	}
	lexeme := t.scanner.Text()
	kind := t.lastKind
	literal := lexeme
	if kind == token.StringConst {
		literal = lexeme[1 : len(lexeme)-1]
	}
	*out = token.Token{Type: kind, Literal: literal, Line: t.line}
	return true
}

// Err returns the fatal lex error that stopped the stream, if any.
func (t *Tokenizer) Err() error {
	return t.err
}

// HasMore reports whether Current is a valid token.
func (t *Tokenizer) HasMore() bool {
	return t.curOK
}

// Current returns the token at the cursor.
func (t *Tokenizer) Current() token.Token {
	return t.cur
}

// PeekNext returns the token one position ahead of the cursor, if any.
func (t *Tokenizer) PeekNext() (token.Token, bool) {
	if !t.peekOK {
		t.peekOK = t.fetch(&t.peek)
	}
	return t.peek, t.peekOK
}

// Advance moves the cursor forward one token. Returns false if there is
// no more input.
func (t *Tokenizer) Advance() bool {
	if t.peekOK {
		t.cur, t.curOK = t.peek, true
		t.peekOK = false
		return true
	}
	t.curOK = t.fetch(&t.cur)
	return t.curOK
}
