package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer splits a command into tokens. It works on byte offsets into the
// input, so Token.Pos can be reported back in error messages unchanged.
type Lexer struct {
	src string
	off int
}

// NewLexer returns a Lexer positioned at the start of input.
func NewLexer(input string) *Lexer {
	return &Lexer{src: input}
}

var punctuation = map[rune]TokenType{
	',': TokenComma,
	';': TokenSemicolon,
	'=': TokenEq,
	'-': TokenMinus,
}

// NextToken scans one token. Once the input is used up it keeps returning
// TokenEOF.
func (l *Lexer) NextToken() Token {
	l.skipBlanks()
	start := l.off
	if start >= len(l.src) {
		return Token{Type: TokenEOF, Pos: start}
	}

	r, size := utf8.DecodeRuneInString(l.src[start:])
	if typ, ok := punctuation[r]; ok {
		l.off += size
		return Token{Type: typ, Literal: string(r), Pos: start}
	}
	switch {
	case r == '\'':
		return l.quoted()
	case isDigit(r):
		return Token{Type: TokenIntLit, Literal: l.run(isDigit), Pos: start}
	case r == '_' || unicode.IsLetter(r):
		word := l.run(isWordRune)
		return Token{Type: LookupKeyword(word), Literal: word, Pos: start}
	}
	l.off += size
	return Token{Type: TokenIllegal, Literal: string(r), Pos: start}
}

// skipBlanks moves past whitespace and "--" comments, which run to the end
// of the line.
func (l *Lexer) skipBlanks() {
	for {
		rest := l.src[l.off:]
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		l.off += len(rest) - len(trimmed)
		if !strings.HasPrefix(trimmed, "--") {
			return
		}
		if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
			l.off += nl
		} else {
			l.off = len(l.src)
		}
	}
}

// run consumes the longest prefix whose runes all satisfy accept.
func (l *Lexer) run(accept func(rune) bool) string {
	rest := l.src[l.off:]
	n := strings.IndexFunc(rest, func(r rune) bool { return !accept(r) })
	if n < 0 {
		n = len(rest)
	}
	l.off += n
	return rest[:n]
}

// quoted scans a '...' literal starting at the opening quote. Inside it ''
// is one quote. Reaching the end of input first yields TokenIllegal
// carrying what was read.
func (l *Lexer) quoted() Token {
	start := l.off
	i := start + 1
	var b strings.Builder
	for {
		q := strings.IndexByte(l.src[i:], '\'')
		if q < 0 {
			b.WriteString(l.src[i:])
			l.off = len(l.src)
			return Token{Type: TokenIllegal, Literal: b.String(), Pos: start}
		}
		b.WriteString(l.src[i : i+q])
		i += q + 1
		if i < len(l.src) && l.src[i] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		l.off = i
		return Token{Type: TokenStrLit, Literal: b.String(), Pos: start}
	}
}

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

func isWordRune(r rune) bool {
	return r == '_' || isDigit(r) || unicode.IsLetter(r)
}
