package assembler

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyyakko/xmlang/pkgs/codegen"
	"github.com/nyyakko/xmlang/pkgs/dialect"
	"github.com/nyyakko/xmlang/pkgs/diagnostics"
	"github.com/nyyakko/xmlang/pkgs/lexer"
	"github.com/nyyakko/xmlang/pkgs/parser"
)

// requireCodeSegmentEqual asserts two assembled code segments are
// byte-identical, dumping both as indexed byte streams on failure — a
// bare []byte diff doesn't show which instruction an offset landed in.
func requireCodeSegmentEqual(t *testing.T, want, got []byte, msg string) {
	t.Helper()
	if !assert.Equal(t, want, got, msg) {
		t.Logf("want:\n%s", spew.Sdump(want))
		t.Logf("got:\n%s", spew.Sdump(got))
	}
}

func compileToImage(t *testing.T, source string) []byte {
	t.Helper()
	set := dialect.Full()
	lx := lexer.New("t.xml", []byte(source), set.KeywordSet())
	tokens := lx.Tokenize()
	sink := diagnostics.NewSink(lx.Lines())
	program, err := parser.New(tokens, sink, set).Parse()
	require.NoError(t, err)
	require.False(t, sink.HadError())

	image, err := Assemble(codegen.Generate(program, set, sink))
	require.NoError(t, err)
	return image
}

func TestAssembleHelloWorld(t *testing.T) {
	source := `<program>
    <function name="main" result="none">
        <call who="println">
            <arg value="hello, world"/>
        </call>
    </function>
</program>
`
	image := compileToImage(t, source)

	require.Len(t, image, 34+16+11)
	assert.Equal(t, "This is a kubo program", string(image[:22]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(image[22:26]), "data-segment start")
	assert.Equal(t, uint32(16), binary.BigEndian.Uint32(image[26:30]), "code-segment start")
	assert.Equal(t, uint32(8), binary.BigEndian.Uint32(image[30:34]), "entrypoint offset")

	data := image[34:50]
	assert.Equal(t, uint32(12), binary.BigEndian.Uint32(data[:4]))
	assert.Equal(t, "hello, world", string(data[4:]))

	code := image[50:]
	requireCodeSegmentEqual(t, []byte{8, 0, 0, 0, 0, 0}, code[:6], "load .data[0]")
	requireCodeSegmentEqual(t, []byte{25, 1}, code[6:8], "call println (intrinsic ordinal 1)")
	requireCodeSegmentEqual(t, []byte{24, 0}, code[8:10], "call main (extrinsic offset 0)")
	assert.Equal(t, byte(40), code[10], "ret")
}

func TestAssembleEmptyProgram(t *testing.T) {
	image := compileToImage(t, "<program></program>")

	require.Len(t, image, 34+1)
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(image[22:26]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(image[26:30]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(image[30:34]), "entrypoint at byte 0 of an empty code segment")
	assert.Equal(t, byte(40), image[34], "ret")
}

func TestAssembleIsDeterministic(t *testing.T) {
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
	first := compileToImage(t, source)
	second := compileToImage(t, source)
	assert.Equal(t, first, second)
}

func TestAssembleRejectsMissingDataHeader(t *testing.T) {
	_, err := Assemble("not an assembly program at all")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedSegment))
}

func TestAssembleRejectsUnknownInstruction(t *testing.T) {
	_, err := Assemble(".data\n\n.code\n\nentrypoint\n\nbogus\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownInstruction))
}

func TestAssembleRejectsUnknownCallTarget(t *testing.T) {
	_, err := Assemble(".data\n\n.code\n\nentrypoint\n\ncall nowhere\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownInstruction))
}
