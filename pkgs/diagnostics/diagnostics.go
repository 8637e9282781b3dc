// Package diagnostics renders parser/compiler diagnostics with coloured
// source excerpts, following spec §4.5. Diagnostics are plain data
// ({kind, spans}) rendered by a single function — not the generator-based
// "second span" trick the original implementation used (see spec §9).
package diagnostics

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/nyyakko/xmlang/pkgs/lexer"
)

// Kind is the stable taxonomy of diagnostic kinds (spec §4.5).
type Kind int

const (
	UnexpectedTokenReached Kind = iota
	ExpectedTokenMissing
	EnclosingTokenMissing
	EnclosingTokenMismatch
	UnexpectedEndOfFile
	MissingReturnStatement
	MismatchingArgumentCount
	MismatchingArgumentType
	UnexpectedTokenPosition // warning-only kind
)

var kindDescriptions = map[Kind]string{
	UnexpectedTokenReached:  "unexpected token",
	ExpectedTokenMissing:    "missing expected token",
	EnclosingTokenMissing:   "missing enclosing tag",
	EnclosingTokenMismatch:  "mismatched enclosing tag",
	UnexpectedEndOfFile:     "unexpected end of file",
	MissingReturnStatement:  "missing return statement",
	MismatchingArgumentCount: "mismatching argument count",
	MismatchingArgumentType:  "mismatching argument type",
	UnexpectedTokenPosition: "unexpected property position",
}

// Severity distinguishes fatal diagnostics from advisory ones.
type Severity int

const (
	Error Severity = iota
	Warning
)

// Span attaches a free-form message to one token for rendering.
type Span struct {
	Token   lexer.Token
	Message string
}

// Diagnostic is a kind plus one or more spans. Multi-span diagnostics
// (e.g. EnclosingTokenMismatch) render one excerpt per span, in order.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Spans    []Span
}

// New builds a single-span error diagnostic.
func New(kind Kind, token lexer.Token, message string) Diagnostic {
	return Diagnostic{Kind: kind, Severity: Error, Spans: []Span{{Token: token, Message: message}}}
}

// NewWarning builds a single-span warning diagnostic.
func NewWarning(kind Kind, token lexer.Token, message string) Diagnostic {
	return Diagnostic{Kind: kind, Severity: Warning, Spans: []Span{{Token: token, Message: message}}}
}

// NewMultiSpan builds a diagnostic with several related spans, e.g. a
// mismatched closing tag referencing both the opening and closing tokens.
func NewMultiSpan(kind Kind, severity Severity, spans ...Span) Diagnostic {
	return Diagnostic{Kind: kind, Severity: severity, Spans: spans}
}

// Sink collects diagnostics as they are produced and renders them
// on demand. Share it through the *Sink that NewSink returns: a copied
// Sink value records its reports separately. It does not mutate any
// process-wide state (spec §5's per-invocation Context requirement).
type Sink struct {
	lines []string
	diags []Diagnostic
}

// NewSink creates a Sink that renders excerpts from the given source
// lines (the lexer is the natural owner of these; see lexer.Lines).
func NewSink(lines []string) *Sink {
	return &Sink{lines: lines}
}

// Report records a diagnostic.
func (s *Sink) Report(d Diagnostic) { s.diags = append(s.diags, d) }

// HadError reports whether any recorded diagnostic is an Error.
func (s *Sink) HadError() bool {
	for _, d := range s.diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Diagnostics returns every diagnostic recorded so far.
func (s *Sink) Diagnostics() []Diagnostic { return s.diags }

// Flush renders every recorded diagnostic to w, in report order.
func (s *Sink) Flush(w io.Writer) {
	for _, d := range s.diags {
		Render(w, d, s.lines)
	}
}

var (
	errorLabel   = color.New(color.FgRed, color.Bold)
	warningLabel = color.New(color.FgYellow, color.Bold)
	lineNumber   = color.New(color.FgGreen)
	tokenHighlit = color.New(color.FgBlue)
	caretError   = color.New(color.FgRed)
	caretWarning = color.New(color.FgYellow)
)

// Render writes one diagnostic to w: a coloured [error]/[warning] header,
// a locator line, and one source excerpt with a caret underline per span.
func Render(w io.Writer, d Diagnostic, lines []string) {
	label, caret := errorLabel, caretError
	tag := "[error]"
	if d.Severity == Warning {
		label, caret, tag = warningLabel, caretWarning, "[warning]"
	}

	fmt.Fprintf(w, "%s: %s\n\n", label.Sprint(tag), kindDescriptions[d.Kind])

	for _, span := range d.Spans {
		renderSpan(w, span, caret, lines)
	}
}

func renderSpan(w io.Writer, span Span, caret *color.Color, lines []string) {
	tok := span.Token
	loc := tok.Location

	fmt.Fprintf(w, "at %s\n\n", loc)

	if loc.Line < 0 || loc.Line >= len(lines) {
		fmt.Fprintf(w, "    %s\n\n", span.Message)
		return
	}

	line := lines[loc.Line]
	tokenStart := loc.Column - len(tok.Text) + 1
	if tokenStart < 0 {
		tokenStart = 0
	}
	before := ""
	after := ""
	if tokenStart <= len(line) {
		before = line[:tokenStart]
	}
	if tokenStart+len(tok.Text) <= len(line) {
		after = line[tokenStart+len(tok.Text):]
	}

	trimmed := strings.TrimLeft(before, " ")

	fmt.Fprintf(w, "%4d | %s%s%s\n", loc.Line+1, trimmed, tokenHighlit.Sprint(tok.Text), after)
	fmt.Fprintf(w, "     | %s%s %s\n\n", strings.Repeat(" ", len(trimmed)), caret.Sprint(strings.Repeat("^", max(len(tok.Text), 1))), span.Message)
}

// Suggest returns the closest candidate to name by case-insensitive
// Levenshtein distance, for "did you mean" hints on unknown call targets.
// It returns ("", false) if no candidate is within a reasonable edit
// distance.
func Suggest(name string, candidates []string) (string, bool) {
	best, bestDistance := "", -1
	for _, candidate := range candidates {
		distance := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(candidate))
		if bestDistance < 0 || distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	if bestDistance < 0 || bestDistance > len(name)/2+1 {
		return "", false
	}
	return best, true
}
