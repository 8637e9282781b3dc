// Package compiler orchestrates the lexer -> parser -> codegen ->
// assembler pipeline. All of it lives here, not in cmd/xmlang, per the
// CLI's contract of doing argument parsing and file I/O only.
//
// A fresh Sink and set of offset maps live only inside Run's call
// stack — the mutable state the original source kept at module scope
// (spec §5 calls that an accidental coupling to correct in the port)
// never survives past one invocation.
package compiler

import (
	"fmt"
	"os"

	"github.com/nyyakko/xmlang/pkgs/assembler"
	"github.com/nyyakko/xmlang/pkgs/ast"
	"github.com/nyyakko/xmlang/pkgs/codegen"
	"github.com/nyyakko/xmlang/pkgs/dialect"
	"github.com/nyyakko/xmlang/pkgs/diagnostics"
	"github.com/nyyakko/xmlang/pkgs/fingerprint"
	"github.com/nyyakko/xmlang/pkgs/lexer"
	"github.com/nyyakko/xmlang/pkgs/parser"
)

// GiveUpBanner is the last line printed on any failing compile.
const GiveUpBanner = "I give up. ( ; ω ; )"

// Stage names how far through the pipeline Run should go before
// returning, so a `--dump` request doesn't pay for stages it discards.
type Stage int

const (
	StageAssemble Stage = iota // run the whole pipeline (the default)
	StageLex
	StageParse
)

// Outcome is whatever a Run call managed to produce. Fields past the
// requested Stage (or past the stage a failure stopped at) are zero.
type Outcome struct {
	Tokens      []lexer.Token
	Program     *ast.Program
	Image       []byte
	Fingerprint string
}

// Run executes the pipeline over source, attributing diagnostics to
// name, and stops at through (or earlier, on failure). On any failure
// it flushes accumulated diagnostics to stderr, prints GiveUpBanner,
// and returns a non-nil error; it never writes a file itself, so a
// failing compile can never leave a partial binary on disk.
func Run(name string, source []byte, set dialect.Set, through Stage) (*Outcome, error) {
	lx := lexer.New(name, source, set.KeywordSet())
	tokens := lx.Tokenize()
	out := &Outcome{Tokens: tokens}

	if through == StageLex {
		return out, nil
	}

	sink := diagnostics.NewSink(lx.Lines())
	program, err := parser.New(tokens, sink, set).Parse()
	out.Program = program
	if err != nil || sink.HadError() {
		return out, giveUp(sink)
	}

	if through == StageParse {
		return out, nil
	}

	assembly := codegen.Generate(program, set, sink)
	if sink.HadError() {
		return out, giveUp(sink)
	}

	image, err := assembler.Assemble(assembly)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, GiveUpBanner)
		return out, err
	}

	out.Image = image
	out.Fingerprint = fingerprint.Of(image)
	return out, nil
}

func giveUp(sink *diagnostics.Sink) error {
	sink.Flush(os.Stderr)
	fmt.Fprintln(os.Stderr, GiveUpBanner)
	return parser.ErrGaveUp
}

// CompileFile reads path and runs the whole pipeline over it.
func CompileFile(path string, set dialect.Set) (*Outcome, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}
	return Run(path, source, set, StageAssemble)
}

// CompileSource runs the whole pipeline over an in-memory source,
// attributing diagnostics to name.
func CompileSource(name string, source []byte, set dialect.Set) (*Outcome, error) {
	return Run(name, source, set, StageAssemble)
}

// WriteImage opens outputPath for write, writes image, and closes the
// file on every exit path.
func WriteImage(outputPath string, image []byte) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error opening output file %s: %w", outputPath, err)
	}
	defer f.Close()

	if _, err := f.Write(image); err != nil {
		return fmt.Errorf("error writing output file %s: %w", outputPath, err)
	}
	return nil
}
