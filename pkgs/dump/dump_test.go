package dump

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyyakko/xmlang/pkgs/dialect"
	"github.com/nyyakko/xmlang/pkgs/diagnostics"
	"github.com/nyyakko/xmlang/pkgs/lexer"
	"github.com/nyyakko/xmlang/pkgs/parser"
)

const source = `<program>
    <function name="main" result="none">
        <let name="x" type="number" value="7"/>
        <call who="println">
            <arg value="${x}"/>
        </call>
        <return/>
    </function>
</program>
`

func TestTokensRoundTripsKindLocationDepth(t *testing.T) {
	set := dialect.Full()
	lx := lexer.New("t.xml", []byte(source), set.KeywordSet())
	tokens := lx.Tokenize()

	encoded, err := Tokens(tokens)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Len(t, decoded, len(tokens))

	for i, tok := range tokens {
		entry := decoded[len(tokens)-1-i]
		assert.Equal(t, tok.Kind.String(), entry["kind"])
		assert.Equal(t, tok.Text, entry["text"])
		assert.Equal(t, float64(tok.Location.Line), entry["line"])
		assert.Equal(t, float64(tok.Location.Column), entry["column"])
		assert.Equal(t, float64(tok.Depth), entry["depth"])
	}
}

func TestASTValidatesAndRoundTrips(t *testing.T) {
	set := dialect.Full()
	lx := lexer.New("t.xml", []byte(source), set.KeywordSet())
	tokens := lx.Tokenize()
	sink := diagnostics.NewSink(lx.Lines())
	program, err := parser.New(tokens, sink, set).Parse()
	require.NoError(t, err)

	encoded, err := AST(program)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, "Program", decoded["kind"])

	scope, ok := decoded["scope"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, scope)

	fn, ok := scope[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Function", fn["kind"])
	assert.Equal(t, "main", fn["name"])
}

func TestASTRejectsMalformedNode(t *testing.T) {
	schema, err := compileSchema("ast.schema.json")
	require.NoError(t, err)
	assert.Error(t, validate(schema, []byte(`{"missingKind": true}`)))
}
