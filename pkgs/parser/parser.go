// Package parser implements a recursive-descent parser over the reversed
// token stream produced by pkgs/lexer, following spec §4.2.
//
// The cursor decreases monotonically: peek(distance) reads
// tokens[cursor-distance] and advance() returns tokens[cursor] then
// decrements it. This mirrors the original source's consumption
// convention (see spec §9's note that the reversal is purely a
// consumption convenience) rather than reworking it into forward
// iteration, since the depth-based scope tracking below reads naturally
// against a stream that exposes "what's left of this tag's children" as
// "everything above this depth, still to consume".
package parser

import (
	"strings"

	"github.com/nyyakko/xmlang/pkgs/ast"
	"github.com/nyyakko/xmlang/pkgs/dialect"
	"github.com/nyyakko/xmlang/pkgs/diagnostics"
	"github.com/nyyakko/xmlang/pkgs/lexer"
)

// Parser consumes a reversed token stream and builds an AST, reporting
// diagnostics to sink as it goes.
type Parser struct {
	tokens  []lexer.Token
	cursor  int
	sink    *diagnostics.Sink
	dialect dialect.Set
}

// New creates a Parser over tokens (as produced by lexer.Lexer.Tokenize),
// reporting diagnostics to sink.
func New(tokens []lexer.Token, sink *diagnostics.Sink, set dialect.Set) *Parser {
	return &Parser{
		tokens:  tokens,
		cursor:  len(tokens) - 1,
		sink:    sink,
		dialect: set,
	}
}

// Parse runs the parser from the top. On success it returns the
// program's AST. If any diagnostic was reported along the way, it
// returns ErrGaveUp even when a partial AST was produced, per spec §4.2
// / §7's propagation policy.
func (p *Parser) Parse() (*ast.Program, error) {
	program, err := p.parseProgram()
	if err != nil || p.sink.HadError() {
		return nil, ErrGaveUp
	}
	return program, nil
}

// --- token-stream primitives ---

func (p *Parser) at(index int) lexer.Token {
	if index < 0 || index >= len(p.tokens) {
		return lexer.Token{Kind: lexer.EndOfFile}
	}
	return p.tokens[index]
}

// peek reads ahead by distance without moving the cursor.
func (p *Parser) peek(distance int) lexer.Token {
	return p.at(p.cursor - distance)
}

// advance consumes and returns the current token.
func (p *Parser) advance() lexer.Token {
	tok := p.peek(0)
	p.cursor--
	return tok
}

func (p *Parser) expect(kind lexer.Kind, text ...string) bool {
	if p.cursor < 0 {
		return false
	}
	tok := p.peek(0)
	if tok.Kind != kind {
		return false
	}
	if len(text) > 0 && tok.Text != text[0] {
		return false
	}
	return true
}

// advanceIf consumes and returns the current token if it matches kind
// (and, optionally, text); otherwise it reports no match and does not
// move the cursor.
func (p *Parser) advanceIf(kind lexer.Kind, text ...string) (lexer.Token, bool) {
	if p.expect(kind, text...) {
		return p.advance(), true
	}
	return lexer.Token{}, false
}

// synchronize fast-forwards the cursor until either a '<' + Keyword pair
// one depth below anchor, or any token at exactly anchor's depth, is
// reached (spec §4.2).
func (p *Parser) synchronize(anchor lexer.Token) {
	for p.cursor > 2 {
		atChildBoundary := p.peek(0).Kind == lexer.LeftAngle &&
			p.peek(1).Kind == lexer.Keyword &&
			p.peek(0).Depth == anchor.Depth+1
		atSameDepth := p.peek(0).Depth == anchor.Depth

		if atChildBoundary || atSameDepth {
			return
		}
		p.advance()
	}
}

// --- tags ---

// property is one (name, value) pair from an opening tag, in source
// order.
type property struct {
	NameToken  lexer.Token
	ValueToken lexer.Token
}

func (p property) Name() string  { return p.NameToken.Text }
func (p property) Value() string { return p.ValueToken.Text }

func findProperty(props []property, name string) (property, bool) {
	for _, prop := range props {
		if prop.Name() == name {
			return prop, true
		}
	}
	return property{}, false
}

// parseOpeningTag consumes `<` KEYWORD(name) [property]* `>`. For a
// self-closing tag it stops before the trailing `/>`, which
// parseClosingTag then consumes.
func (p *Parser) parseOpeningTag(name string) (lexer.Token, []property, error) {
	if _, ok := p.advanceIf(lexer.LeftAngle); !ok {
		p.sink.Report(diagnostics.New(diagnostics.UnexpectedTokenReached, p.peek(0), "was found instead of a '<'"))
		return lexer.Token{}, nil, fail("expected '<'")
	}

	tag, ok := p.advanceIf(lexer.Keyword, name)
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.UnexpectedTokenReached, p.peek(0), "was found instead of a tag"))
		return lexer.Token{}, nil, fail("expected tag " + name)
	}

	var props []property
	for p.cursor > 1 && p.peek(0).Kind != lexer.RightAngle && p.peek(0).Kind != lexer.Slash {
		nameTok, ok := p.advanceIf(lexer.Identifier)
		if !ok {
			p.sink.Report(diagnostics.New(diagnostics.UnexpectedTokenReached, p.peek(0), "was found instead of a property name"))
			return lexer.Token{}, nil, fail("expected property name")
		}

		if _, ok := p.advanceIf(lexer.Equal); !ok {
			p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, p.peek(0), "was found instead of equals"))
			return lexer.Token{}, nil, fail("expected '='")
		}

		if _, ok := p.advanceIf(lexer.Quote); !ok {
			p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, p.peek(0), "was found instead of quotes"))
			return lexer.Token{}, nil, fail("expected opening quote")
		}

		valueTok, ok := p.advanceIf(lexer.Literal)
		if !ok {
			// A quoted value that doesn't start with a letter (e.g. "7")
			// lexes as an Identifier rather than a Literal.
			valueTok, ok = p.advanceIf(lexer.Identifier)
		}
		if !ok {
			p.sink.Report(diagnostics.New(diagnostics.UnexpectedTokenReached, p.peek(0), "was found instead of a property value"))
			return lexer.Token{}, nil, fail("expected property value")
		}

		if _, ok := p.advanceIf(lexer.Quote); !ok {
			p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, p.peek(0), "was found instead of quotes"))
			return lexer.Token{}, nil, fail("expected closing quote")
		}

		props = append(props, property{NameToken: nameTok, ValueToken: valueTok})
	}

	if p.expect(lexer.Slash) && p.peek(1).Kind == lexer.RightAngle {
		return tag, props, nil
	}

	if _, ok := p.advanceIf(lexer.RightAngle); !ok {
		p.sink.Report(diagnostics.New(diagnostics.UnexpectedTokenReached, p.peek(0), "was found instead of a '>'"))
		return lexer.Token{}, nil, fail("expected '>'")
	}

	return tag, props, nil
}

// parseClosingTag consumes `<` `/` KEYWORD(opening.Text) `>`, or the
// `/>` that ends a self-closing opening tag.
func (p *Parser) parseClosingTag(opening lexer.Token) error {
	if p.expect(lexer.Slash) && p.peek(1).Kind == lexer.RightAngle {
		p.advance()
		p.advance()
		return nil
	}

	if _, ok := p.advanceIf(lexer.LeftAngle); !ok {
		p.sink.Report(diagnostics.New(diagnostics.UnexpectedTokenReached, p.peek(0), "was found instead of a '<'"))
		return fail("expected '<'")
	}

	if _, ok := p.advanceIf(lexer.Slash); !ok {
		p.sink.Report(diagnostics.New(diagnostics.UnexpectedTokenReached, p.peek(0), "was found instead of a '/'"))
		return fail("expected '/'")
	}

	closing, ok := p.advanceIf(lexer.Keyword)
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.UnexpectedTokenReached, p.peek(0), "was found instead of a tag"))
		return fail("expected closing tag")
	}

	if closing.Text != opening.Text {
		p.sink.Report(diagnostics.NewMultiSpan(diagnostics.EnclosingTokenMismatch, diagnostics.Error,
			diagnostics.Span{Token: opening, Message: "this tag"},
			diagnostics.Span{Token: closing, Message: "doesn't match with this one, so it cannot close."},
		))
		return fail("mismatched closing tag")
	}

	if _, ok := p.advanceIf(lexer.RightAngle); !ok {
		p.sink.Report(diagnostics.New(diagnostics.UnexpectedTokenReached, p.peek(0), "was found instead of '>'"))
		return fail("expected '>'")
	}

	return nil
}

// --- dispatch helpers ---

func (p *Parser) isNextStatement() bool {
	switch p.peek(1).Text {
	case "let", "call", "arg", "return":
		return true
	case "new", "if":
		return p.dialect.HasKeyword(p.peek(1).Text)
	}
	return false
}

func (p *Parser) isNextDeclaration() bool {
	switch p.peek(1).Text {
	case "function":
		return true
	case "class", "ctor", "dtor":
		return p.dialect.HasKeyword(p.peek(1).Text)
	}
	return false
}

// parseNode dispatches to the next declaration or statement production,
// returning (nil, nil) when nothing matches so the caller's loop can stop
// cleanly.
func (p *Parser) parseNode() (ast.Node, error) {
	switch {
	case p.isNextDeclaration():
		return p.parseDeclaration()
	case p.isNextStatement():
		return p.parseStatement()
	default:
		return nil, nil
	}
}

// collectScope runs parseNode in a loop while cond holds, synchronizing
// on error and stopping when parseNode returns no node and no error.
func (p *Parser) collectScope(anchor lexer.Token, cond func() bool) []ast.Node {
	var scope []ast.Node

	for cond() {
		node, err := p.parseNode()

		if err == nil && node != nil {
			scope = append(scope, node)
			continue
		}
		if err != nil {
			p.synchronize(anchor)
			continue
		}
		break
	}

	return scope
}

// --- expressions ---

func (p *Parser) parseExpression() (ast.Node, error) {
	if p.expect(lexer.Literal) {
		tok := p.advance()
		return &ast.Literal{Value: tok.Text, Tok: tok}, nil
	}
	return nil, nil
}

// literalFromProperty turns a property's value into an ast.Literal using
// the value token for diagnostics.
func literalFromProperty(prop property) ast.Node {
	return &ast.Literal{Value: prop.Value(), Tok: prop.ValueToken}
}

// --- statements ---

func (p *Parser) parseStatement() (ast.Node, error) {
	switch p.peek(1).Text {
	case "let":
		return p.parseLet()
	case "call":
		return p.parseCall()
	case "arg":
		return p.parseArg()
	case "return":
		return p.parseReturn()
	case "if":
		return p.parseIf()
	case "new":
		return p.parseNew()
	}
	return nil, nil
}

func (p *Parser) parseArg() (ast.Node, error) {
	tag, props, err := p.parseOpeningTag("arg")
	if err != nil {
		return nil, err
	}

	var value ast.Node
	if prop, ok := findProperty(props, "value"); ok {
		value = literalFromProperty(prop)
	} else {
		value, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
		if value == nil {
			p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, p.peek(0), "was found instead of 'value' property"))
			return nil, fail("missing 'value' property")
		}
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return &ast.Arg{Value: value, Tok: tag}, nil
}

func (p *Parser) parseCall() (ast.Node, error) {
	tag, props, err := p.parseOpeningTag("call")
	if err != nil {
		return nil, err
	}

	who, ok := findProperty(props, "who")
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, tag, "requires property 'who'"))
		return nil, fail("missing 'who' property")
	}

	var args []ast.Node
	for p.cursor > 0 && p.peek(0).Depth > tag.Depth {
		arg, err := p.parseArg()
		if err == nil && arg != nil {
			args = append(args, arg)
			continue
		}
		if err != nil {
			p.synchronize(tag)
			continue
		}
		break
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return &ast.Call{Callee: who.Value(), Arguments: args, Tok: tag}, nil
}

func (p *Parser) parseLet() (ast.Node, error) {
	tag, props, err := p.parseOpeningTag("let")
	if err != nil {
		return nil, err
	}

	name, ok := findProperty(props, "name")
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, tag, "requires property 'name'"))
		return nil, fail("missing 'name' property")
	}

	typ, ok := findProperty(props, "type")
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, tag, "requires property 'type'"))
		return nil, fail("missing 'type' property")
	}

	var value ast.Node
	if v, ok := findProperty(props, "value"); ok {
		value = literalFromProperty(v)
	} else {
		value, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
		if value == nil {
			p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, p.peek(0), "was found instead of property 'value'"))
			return nil, fail("missing 'value' property")
		}
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return &ast.Let{Name: name.Value(), Type: typ.Value(), Value: value, Tok: tag}, nil
}

func (p *Parser) parseReturn() (ast.Node, error) {
	tag, props, err := p.parseOpeningTag("return")
	if err != nil {
		return nil, err
	}

	var value ast.Node
	if v, ok := findProperty(props, "value"); ok {
		value = literalFromProperty(v)
	} else {
		value, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return &ast.Return{Value: value, Tok: tag}, nil
}

// parseIf implements the supplemented if/else grammar (not in spec.md's
// source syntax; see SPEC_FULL.md "Supplemented features"). <if>'s own
// children are the true branch directly; a sibling <else> tag following
// </if>'s close, not a child of it, supplies the false branch — there is
// no <then> tag. Reserved: codegen does not lower it.
func (p *Parser) parseIf() (ast.Node, error) {
	tag, props, err := p.parseOpeningTag("if")
	if err != nil {
		return nil, err
	}

	var condition ast.Node
	if cond, ok := findProperty(props, "condition"); ok {
		condition = literalFromProperty(cond)
	} else {
		p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, tag, "requires property 'condition'"))
		return nil, fail("missing 'condition' property")
	}

	trueBranch := p.collectScope(tag, func() bool {
		return p.cursor > 0 && p.peek(0).Depth > tag.Depth
	})

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	var falseBranch []ast.Node
	if p.peek(1).Kind == lexer.Keyword && p.peek(1).Text == "else" {
		falseBranch, err = p.parseElse()
		if err != nil {
			return nil, err
		}
	}

	return &ast.If{Condition: condition, TrueBranch: trueBranch, FalseBranch: falseBranch, Tok: tag}, nil
}

// parseElse consumes a sibling <else> tag following an <if>'s close.
func (p *Parser) parseElse() ([]ast.Node, error) {
	tag, _, err := p.parseOpeningTag("else")
	if err != nil {
		return nil, err
	}

	branch := p.collectScope(tag, func() bool {
		return p.cursor > 0 && p.peek(0).Depth > tag.Depth
	})

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return branch, nil
}

// parseNew implements the supplemented `new` construct (see
// SPEC_FULL.md). Reserved: codegen does not lower it.
func (p *Parser) parseNew() (ast.Node, error) {
	tag, props, err := p.parseOpeningTag("new")
	if err != nil {
		return nil, err
	}

	name, ok := findProperty(props, "name")
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, tag, "requires property 'name'"))
		return nil, fail("missing 'name' property")
	}

	typ, ok := findProperty(props, "type")
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, tag, "requires property 'type'"))
		return nil, fail("missing 'type' property")
	}

	var args []ast.Node
	for p.cursor > 0 && p.peek(0).Depth > tag.Depth {
		arg, err := p.parseArg()
		if err == nil && arg != nil {
			args = append(args, arg)
			continue
		}
		if err != nil {
			p.synchronize(tag)
			continue
		}
		break
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return &ast.New{Name: name.Value(), Type: typ.Value(), Arguments: args, Tok: tag}, nil
}

// --- declarations ---

func (p *Parser) parseDeclaration() (ast.Node, error) {
	switch p.peek(1).Text {
	case "function":
		return p.parseFunction()
	case "class":
		return p.parseClass()
	case "ctor":
		return p.parseCtorOrDtor("ctor")
	case "dtor":
		return p.parseCtorOrDtor("dtor")
	}
	return nil, nil
}

func (p *Parser) parseFunction() (ast.Node, error) {
	tag, props, err := p.parseOpeningTag("function")
	if err != nil {
		return nil, err
	}

	name, ok := findProperty(props, "name")
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, tag, "requires property 'name'"))
		return nil, fail("missing 'name' property")
	}
	if idx := indexOfProperty(props, "name"); idx != 0 {
		p.sink.Report(diagnostics.NewWarning(diagnostics.UnexpectedTokenPosition, name.NameToken, "should appear in first"))
	}

	result, ok := findProperty(props, "result")
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, tag, "requires property 'result'"))
		return nil, fail("missing 'result' property")
	}
	if idx := indexOfProperty(props, "result"); idx != 1 {
		p.sink.Report(diagnostics.NewWarning(diagnostics.UnexpectedTokenPosition, result.NameToken, "should appear in second"))
	}

	var parameters []ast.Parameter
	for _, prop := range props {
		if prop.Name() == "name" || prop.Name() == "result" {
			continue
		}
		parameters = append(parameters, ast.Parameter{Name: prop.Name(), Type: prop.Value()})
	}

	scope := p.collectScope(tag, func() bool {
		return p.cursor > 0 && p.peek(0).Depth > tag.Depth
	})

	scope, err = fixupReturn(scope, result.Value())
	if err != nil {
		p.sink.Report(diagnostics.New(diagnostics.MissingReturnStatement, tag, "function declares a result but never returns one"))
		return nil, err
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return &ast.Function{
		Name:       name.Value(),
		Result:     result.Value(),
		Parameters: parameters,
		Scope:      scope,
		Tok:        tag,
	}, nil
}

// parseCtorOrDtor parses <ctor>/<dtor>, whose bodies may contain both
// declarations and statements (spec §4.2, classes).
func (p *Parser) parseCtorOrDtor(name string) (ast.Node, error) {
	tag, _, err := p.parseOpeningTag(name)
	if err != nil {
		return nil, err
	}

	scope := p.collectScope(tag, func() bool {
		return p.cursor > 0 && p.peek(0).Depth > tag.Depth
	})

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return &ast.Function{Name: name, Result: "none", Scope: scope, Tok: tag}, nil
}

func (p *Parser) parseClass() (ast.Node, error) {
	tag, props, err := p.parseOpeningTag("class")
	if err != nil {
		return nil, err
	}

	name, ok := findProperty(props, "name")
	if !ok {
		p.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, tag, "requires property 'name'"))
		return nil, fail("missing 'name' property")
	}
	if idx := indexOfProperty(props, "name"); idx != 0 {
		p.sink.Report(diagnostics.NewWarning(diagnostics.UnexpectedTokenPosition, name.NameToken, "should appear in first"))
	}

	var inherits []string
	if inh, ok := findProperty(props, "inherits"); ok {
		inherits = strings.Split(inh.Value(), ",")
		if idx := indexOfProperty(props, "inherits"); idx != 1 {
			p.sink.Report(diagnostics.NewWarning(diagnostics.UnexpectedTokenPosition, inh.NameToken, "should appear in second"))
		}
	}

	scope := p.collectScope(tag, func() bool {
		return p.cursor > 0 && p.peek(0).Depth > tag.Depth
	})

	scope = synthesizeCtorDtor(scope, name.Value())

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return &ast.Class{Name: name.Value(), Inherits: inherits, Scope: scope, Tok: tag}, nil
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	tag, _, err := p.parseOpeningTag("program")
	if err != nil {
		return nil, err
	}

	scope := p.collectScope(tag, func() bool {
		return p.cursor > 0 && p.peek(0).Depth == tag.Depth+1
	})

	if hasMainFunction(scope) {
		scope = append(scope, &ast.Call{Callee: "main", Tok: tag})
	}

	if err := p.parseClosingTag(tag); err != nil {
		return nil, err
	}

	return &ast.Program{Scope: scope, Tok: tag}, nil
}

// --- fixups ---

func indexOfProperty(props []property, name string) int {
	for i, prop := range props {
		if prop.Name() == name {
			return i
		}
	}
	return -1
}

// fixupReturn implements spec §4.2's function-body fixups: synthesize an
// empty return if result is "none" and none exists; back-patch an
// existing return's Type otherwise; fail if result isn't "none" and no
// return exists.
func fixupReturn(scope []ast.Node, result string) ([]ast.Node, error) {
	for _, node := range scope {
		if ret, ok := node.(*ast.Return); ok {
			ret.Type = result
			return scope, nil
		}
	}

	if result == "none" {
		return append(scope, &ast.Return{Type: "none", Synthesized: true}), nil
	}

	return scope, fail("missing return statement")
}

// hasMainFunction reports whether scope contains a *ast.Function named
// "main" (spec §9: "iff there is a FunctionDecl named main").
func hasMainFunction(scope []ast.Node) bool {
	for _, node := range scope {
		if fn, ok := node.(*ast.Function); ok && fn.Name == "main" {
			return true
		}
	}
	return false
}

// synthesizeCtorDtor synthesizes a ctor and/or dtor when scope has none,
// and gives the ctor and dtor a (self, className) parameter (spec §4.2,
// Classes). When several ctors (or dtors) are written, none is removed
// and only the last of each gets the self parameter.
func synthesizeCtorDtor(scope []ast.Node, className string) []ast.Node {
	selfParam := ast.Parameter{Name: "self", Type: className}

	ctorIdx := -1
	dtorIdx := -1
	for i, node := range scope {
		if fn, ok := node.(*ast.Function); ok {
			switch fn.Name {
			case "ctor":
				ctorIdx = i
			case "dtor":
				dtorIdx = i
			}
		}
	}

	if ctorIdx >= 0 {
		fn := scope[ctorIdx].(*ast.Function)
		fn.Parameters = append(fn.Parameters, selfParam)
	} else {
		ctor := &ast.Function{Name: "ctor", Result: "none", Parameters: []ast.Parameter{selfParam}}
		scope = append([]ast.Node{ctor}, scope...)
		if dtorIdx >= 0 {
			dtorIdx++
		}
	}

	if dtorIdx >= 0 {
		fn := scope[dtorIdx].(*ast.Function)
		fn.Parameters = append(fn.Parameters, selfParam)
	} else {
		dtor := &ast.Function{Name: "dtor", Result: "none", Parameters: []ast.Parameter{selfParam}}
		insertAt := 1
		if insertAt > len(scope) {
			insertAt = len(scope)
		}
		scope = append(scope[:insertAt], append([]ast.Node{dtor}, scope[insertAt:]...)...)
	}

	return scope
}
