package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var defaultKeywords = Keywords{
	"program": true, "function": true, "let": true,
	"call": true, "arg": true, "return": true,
}

func kinds(tokens []Token) []Kind {
	out := make([]Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeHelloWorld(t *testing.T) {
	source := `<program>
    <function name="main" result="none">
        <call who="println">
            <arg value="hello, world"/>
        </call>
    </function>
</program>
`
	tokens := New("hello.xml", []byte(source), defaultKeywords).Tokenize()

	// Reversed stream: last token first, terminated (before reversal) by
	// EndOfFile — so after reversal EndOfFile is first.
	if tokens[0].Kind != EndOfFile {
		t.Fatalf("expected first element of reversed stream to be EndOfFile, got %v", tokens[0])
	}

	last := tokens[len(tokens)-1]
	if last.Kind != LeftAngle {
		t.Fatalf("expected last element of reversed stream to be the opening '<' of <program>, got %v", last)
	}
}

func TestTokenizeDepthQuirk(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		depth int
	}{
		{"zero spaces", "<program>", 0},
		{"four spaces", "    <let/>", 1},
		{"two spaces does not count", "  <let/>", 0},
		{"eight spaces", "        <let/>", 2},
		{"six spaces does not count", "      <let/>", 0},
		{"four plus four across two runs", "    <let key=\"x\"    value=\"y\"/>", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tokens := New("t.xml", []byte(tc.line), defaultKeywords).Tokenize()
			// reversed; first real (non-EOF) token is the last element.
			first := tokens[len(tokens)-1]
			if first.Depth != tc.depth {
				t.Errorf("line %q: depth = %d, want %d", tc.line, first.Depth, tc.depth)
			}
		})
	}
}

func TestTokenizeKeywordVsIdentifier(t *testing.T) {
	tokens := New("t.xml", []byte(`<function name="main"></function>`), defaultKeywords).Tokenize()

	var sawKeyword, sawIdentifier bool
	for _, tok := range tokens {
		if tok.Kind == Keyword && tok.Text == "function" {
			sawKeyword = true
		}
		if tok.Kind == Identifier && tok.Text == "name" {
			sawIdentifier = true
		}
	}
	if !sawKeyword {
		t.Error("expected 'function' to lex as Keyword")
	}
	if !sawIdentifier {
		t.Error("expected 'name' to lex as Identifier")
	}
}

func TestTokenizeQuotedInterpolation(t *testing.T) {
	tokens := New("t.xml", []byte(`<arg value="${x}"/>`), defaultKeywords).Tokenize()

	var found bool
	for _, tok := range tokens {
		if tok.Kind == Literal && tok.Text == "${x}" {
			found = true
		}
	}
	if !found {
		t.Error("expected the interpolation literal \"${x}\" to be lexed as a single Literal token")
	}
}

func TestTokenizeEndsWithSingleEOF(t *testing.T) {
	tokens := New("t.xml", []byte("<program></program>\n"), defaultKeywords).Tokenize()

	count := 0
	for _, tok := range tokens {
		if tok.Kind == EndOfFile {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one EndOfFile token, got %d", count)
	}
}

func TestTokenizeKindSequenceForEmptyProgram(t *testing.T) {
	tokens := New("t.xml", []byte("<program></program>"), defaultKeywords).Tokenize()

	want := []Kind{
		EndOfFile,
		RightAngle, Keyword, Slash, LeftAngle,
		RightAngle, Keyword, LeftAngle,
	}

	if diff := cmp.Diff(want, kinds(tokens)); diff != "" {
		t.Errorf("kind sequence mismatch (-want +got):\n%s", diff)
	}
}
