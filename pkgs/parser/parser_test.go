package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyyakko/xmlang/pkgs/ast"
	"github.com/nyyakko/xmlang/pkgs/dialect"
	"github.com/nyyakko/xmlang/pkgs/diagnostics"
	"github.com/nyyakko/xmlang/pkgs/lexer"
)

func parse(t *testing.T, source string) (*ast.Program, *diagnostics.Sink) {
	t.Helper()
	set := dialect.Full()
	lx := lexer.New("t.xml", []byte(source), set.KeywordSet())
	tokens := lx.Tokenize()
	sink := diagnostics.NewSink(lx.Lines())
	p := New(tokens, sink, set)
	program, err := p.Parse()
	if err != nil {
		return nil, sink
	}
	return program, sink
}

func TestParseHelloWorld(t *testing.T) {
	source := `<program>
    <function name="main" result="none">
        <call who="println">
            <arg value="hello, world"/>
        </call>
    </function>
</program>
`
	program, sink := parse(t, source)
	require.False(t, sink.HadError())
	require.NotNil(t, program)
	require.Len(t, program.Scope, 2, "function main + synthesized call main")

	fn, ok := program.Scope[0].(*ast.Function)
	require.True(t, ok)
	assert.Equal(t, "main", fn.Name)
	assert.Equal(t, "none", fn.Result)

	call, ok := program.Scope[1].(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "main", call.Callee)

	require.Len(t, fn.Scope, 2, "the call statement + the synthesized empty return")
	_, isReturn := fn.Scope[1].(*ast.Return)
	assert.True(t, isReturn)
}

func TestParseMismatchedClosingTag(t *testing.T) {
	source := "<function name=\"f\" result=\"none\"></program>"
	set := dialect.Full()
	lx := lexer.New("t.xml", []byte(source), set.KeywordSet())
	tokens := lx.Tokenize()
	sink := diagnostics.NewSink(lx.Lines())
	p := New(tokens, sink, set)

	_, err := p.parseFunction()
	require.Error(t, err)
	require.True(t, sink.HadError())

	found := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diagnostics.EnclosingTokenMismatch {
			found = true
			require.Len(t, d.Spans, 2)
		}
	}
	assert.True(t, found, "expected an EnclosingTokenMismatch diagnostic")
}

func TestParseMissingRequiredProperty(t *testing.T) {
	source := `<function result="none"></function>`
	set := dialect.Full()
	lx := lexer.New("t.xml", []byte(source), set.KeywordSet())
	tokens := lx.Tokenize()
	sink := diagnostics.NewSink(lx.Lines())
	p := New(tokens, sink, set)

	_, err := p.parseFunction()
	require.Error(t, err)
	require.True(t, sink.HadError())

	found := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diagnostics.ExpectedTokenMissing {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParsePropertiesOutOfOrderWarns(t *testing.T) {
	source := `<program>
    <function result="none" name="f">
        <return/>
    </function>
</program>
`
	program, sink := parse(t, source)
	require.False(t, sink.HadError())
	require.NotNil(t, program)

	foundWarning := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diagnostics.UnexpectedTokenPosition && d.Severity == diagnostics.Warning {
			foundWarning = true
		}
	}
	assert.True(t, foundWarning)
}

func TestParseClassSynthesizesCtorAndDtor(t *testing.T) {
	source := `<program>
    <class name="P">
        <ctor>
        </ctor>
    </class>
</program>
`
	program, sink := parse(t, source)
	require.False(t, sink.HadError())
	require.NotNil(t, program)

	class, ok := program.Scope[0].(*ast.Class)
	require.True(t, ok)
	require.Len(t, class.Scope, 2)

	ctor := class.Scope[0].(*ast.Function)
	assert.Equal(t, "ctor", ctor.Name)
	require.Len(t, ctor.Parameters, 1)
	assert.Equal(t, ast.Parameter{Name: "self", Type: "P"}, ctor.Parameters[0])

	dtor := class.Scope[1].(*ast.Function)
	assert.Equal(t, "dtor", dtor.Name)
	assert.Equal(t, "none", dtor.Result)
	require.Len(t, dtor.Parameters, 1)
	assert.Equal(t, ast.Parameter{Name: "self", Type: "P"}, dtor.Parameters[0])
}

func TestParseMissingReturnStatement(t *testing.T) {
	source := `<program>
    <function name="f" result="number">
    </function>
</program>
`
	_, sink := parse(t, source)
	require.True(t, sink.HadError())

	found := false
	for _, d := range sink.Diagnostics() {
		if d.Kind == diagnostics.MissingReturnStatement {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseInterpolatedArgument(t *testing.T) {
	source := `<program>
    <function name="main" result="none">
        <let name="x" type="number" value="7"/>
        <call who="println">
            <arg value="${x}"/>
        </call>
        <return/>
    </function>
</program>
`
	program, sink := parse(t, source)
	require.False(t, sink.HadError())

	fn := program.Scope[0].(*ast.Function)
	let := fn.Scope[0].(*ast.Let)
	assert.Equal(t, "x", let.Name)
	assert.Equal(t, "7", let.Value.(*ast.Literal).Value)

	call := fn.Scope[1].(*ast.Call)
	arg := call.Arguments[0].(*ast.Arg)
	literal := arg.Value.(*ast.Literal)

	name, ok := ast.IsInterpolation(literal.Value)
	assert.True(t, ok)
	assert.Equal(t, "x", name)
}

func TestParseEmptyProgram(t *testing.T) {
	program, sink := parse(t, "<program></program>")
	require.False(t, sink.HadError())
	require.NotNil(t, program)
	assert.Empty(t, program.Scope)
}

func TestParseIfElseIsASiblingNotANestedThen(t *testing.T) {
	source := `<program>
    <function name="main" result="none">
        <if condition="1">
            <call who="println">
                <arg value="yes"/>
            </call>
        </if>
        <else>
            <call who="println">
                <arg value="no"/>
            </call>
        </else>
    </function>
</program>
`
	program, sink := parse(t, source)
	require.False(t, sink.HadError())
	require.NotNil(t, program)

	fn := program.Scope[0].(*ast.Function)
	require.Len(t, fn.Scope, 2)

	ifNode, ok := fn.Scope[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, ifNode.TrueBranch, 1)
	require.Len(t, ifNode.FalseBranch, 1)

	_, ok = ifNode.TrueBranch[0].(*ast.Call)
	assert.True(t, ok, "if's own children are the true branch directly")
	_, ok = ifNode.FalseBranch[0].(*ast.Call)
	assert.True(t, ok, "else's children are the false branch")

	ret, ok := fn.Scope[1].(*ast.Return)
	require.True(t, ok, "fixupReturn synthesizes a return after the if/else, since it only scans top-level scope nodes")
	assert.True(t, ret.Synthesized)
}

func TestParseIfWithoutElse(t *testing.T) {
	source := `<program>
    <function name="main" result="none">
        <if condition="1">
            <call who="println">
                <arg value="yes"/>
            </call>
        </if>
    </function>
</program>
`
	program, sink := parse(t, source)
	require.False(t, sink.HadError())
	require.NotNil(t, program)

	fn := program.Scope[0].(*ast.Function)
	ifNode := fn.Scope[0].(*ast.If)
	assert.Len(t, ifNode.TrueBranch, 1)
	assert.Empty(t, ifNode.FalseBranch)
}
