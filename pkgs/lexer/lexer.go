// Package lexer tokenizes xmlang source text.
//
// Tokenization is indentation-aware: every four spaces of leading or
// interior whitespace on a line adds one unit to the depth carried by
// every token emitted from that line (spec §4.1). This is a faithful
// port of a known quirk: a run of spaces only contributes when its
// length is a multiple of four, and depth accumulates across every
// space run encountered on the line, not just the leading one.
package lexer

import (
	"strings"
	"unicode"
)

// Keywords is the set of identifiers that lex as Keyword tokens instead
// of Identifier tokens. Callers parameterize this per spec §4.1's
// guidance that an implementation SHOULD make the keyword set
// configurable; see pkgs/dialect for the concrete sets this repo ships.
type Keywords map[string]bool

// Lexer produces a forward token stream from xmlang source text. Use
// Tokenize for the reversed stream the parser consumes.
type Lexer struct {
	path     string
	lines    []string
	keywords Keywords
}

// New creates a Lexer over source, associating path with every token's
// Location for diagnostics.
func New(path string, source []byte, keywords Keywords) *Lexer {
	text := strings.ReplaceAll(string(source), "\r\n", "\n")
	return &Lexer{
		path:     path,
		lines:    strings.Split(text, "\n"),
		keywords: keywords,
	}
}

// Lines returns the source split into lines, for diagnostics rendering.
func (l *Lexer) Lines() []string { return l.lines }

// Tokenize scans the whole source and returns the token sequence in
// reverse order (last token first), terminated — before reversal — by a
// single EndOfFile token. The parser consumes this stream by
// decrementing a cursor (spec §4.1 contract).
func (l *Lexer) Tokenize() []Token {
	var tokens []Token

	for lineNumber, line := range l.lines {
		tokens = append(tokens, l.scanLine(lineNumber, line)...)
	}

	lastLine := len(l.lines) - 1
	if lastLine < 0 {
		lastLine = 0
	}

	tokens = append(tokens, Token{
		Text:     "EOF",
		Kind:     EndOfFile,
		Location: Location{Path: l.path, Line: lastLine, Column: 0},
		Depth:    0,
	})

	reverse(tokens)
	return tokens
}

func reverse(tokens []Token) {
	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}
}

// scanLine tokenizes a single line, left to right. depth accumulates
// across every whitespace run on the line (the preserved quirk — see
// package doc).
func (l *Lexer) scanLine(lineNumber int, line string) []Token {
	var tokens []Token
	depth := 0
	cursor := 0

	for cursor < len(line) {
		space := 0
		for cursor+space < len(line) && line[cursor+space] == ' ' {
			space++
		}
		if space%4 == 0 {
			depth += space / 4
		}
		cursor += space

		if cursor >= len(line) {
			break
		}

		ch := line[cursor]
		loc := Location{Path: l.path, Line: lineNumber, Column: cursor}

		switch ch {
		case '<':
			tokens = append(tokens, Token{Text: "<", Kind: LeftAngle, Location: loc, Depth: depth})
			cursor++
		case '>':
			tokens = append(tokens, Token{Text: ">", Kind: RightAngle, Location: loc, Depth: depth})
			cursor++
			if tok, next, ok := l.scanTagText(lineNumber, line, cursor, depth); ok {
				tokens = append(tokens, tok)
				cursor = next
			}
		case '/':
			tokens = append(tokens, Token{Text: "/", Kind: Slash, Location: loc, Depth: depth})
			cursor++
		case '=':
			tokens = append(tokens, Token{Text: "=", Kind: Equal, Location: loc, Depth: depth})
			cursor++
		case '"', '\'':
			tokens = append(tokens, Token{Text: string(ch), Kind: Quote, Location: loc, Depth: depth})
			cursor++
			if tok, next, ok := l.scanQuotedText(lineNumber, line, cursor, depth, ch); ok {
				tokens = append(tokens, tok)
				cursor = next
			}
		default:
			tok, next := l.scanWord(lineNumber, line, cursor, depth)
			tokens = append(tokens, tok)
			cursor = next
		}
	}

	for i := range tokens {
		tokens[i].Depth = depth
	}

	return tokens
}

// scanTagText consumes the literal text content that follows a '>' when
// the next character is alphanumeric (spec §4.1 rule 3).
func (l *Lexer) scanTagText(lineNumber int, line string, start, depth int) (Token, int, bool) {
	if start >= len(line) || !isAlnum(line[start]) {
		return Token{}, start, false
	}

	end := start
	for end < len(line) && line[end] != '<' && line[end] != '>' {
		end++
	}

	text := line[start:end]
	if text == "" {
		return Token{}, start, false
	}

	return Token{
		Text:     text,
		Kind:     Literal,
		Location: Location{Path: l.path, Line: lineNumber, Column: end - 1},
		Depth:    depth,
	}, end, true
}

// scanQuotedText consumes a quoted property value, including
// interpolation punctuation, when the next character after the opening
// quote is alphabetic, '$', '{' or '}' (spec §4.1 rule 4, interpolating
// dialect).
func (l *Lexer) scanQuotedText(lineNumber int, line string, start, depth int, quote byte) (Token, int, bool) {
	if start >= len(line) {
		return Token{}, start, false
	}
	c := line[start]
	if !(unicode.IsLetter(rune(c)) || c == '$' || c == '{' || c == '}') {
		return Token{}, start, false
	}

	end := start
	for end < len(line) && line[end] != quote {
		end++
	}

	text := line[start:end]

	return Token{
		Text:     text,
		Kind:     Literal,
		Location: Location{Path: l.path, Line: lineNumber, Column: end - 1},
		Depth:    depth,
	}, end, true
}

// scanWord consumes a run up to the next delimiter and classifies it as
// Keyword or Identifier (spec §4.1 rule 5).
func (l *Lexer) scanWord(lineNumber int, line string, start, depth int) (Token, int) {
	end := start
	for end < len(line) && !isWordDelimiter(line[end]) {
		end++
	}

	text := line[start:end]
	kind := Identifier
	if l.keywords[text] {
		kind = Keyword
	}

	return Token{
		Text:     text,
		Kind:     kind,
		Location: Location{Path: l.path, Line: lineNumber, Column: end - 1},
		Depth:    depth,
	}, end
}

func isWordDelimiter(ch byte) bool {
	return ch == ' ' || ch == '=' || ch == '<' || ch == '>' || ch == '/' || ch == '"' || ch == '\''
}

func isAlnum(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}
