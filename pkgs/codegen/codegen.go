// Package codegen lowers an AST into the textual `.data`/`.code`
// assembly described by spec §4.3: a two-pass process where pass 1
// collects string literals into an ordered data segment and pass 2
// emits instructions referencing pass 1's byte offsets.
//
// `if`, `arithmetic`, `logical`, `new`, and class bodies are reserved
// AST shapes that this package never lowers (Non-goal: full language
// semantics / full expression grammar) — only top-level functions and
// the program's statement-level calls reach the code segment.
package codegen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nyyakko/xmlang/pkgs/ast"
	"github.com/nyyakko/xmlang/pkgs/dialect"
	"github.com/nyyakko/xmlang/pkgs/diagnostics"
)

// FunctionInfo is what codegen needs to know about a declared function
// to lower calls to it: whether a result is produced, so the emitted
// call can be followed by a `pop` (spec §4.3's lowering table).
type FunctionInfo struct {
	Result string
}

var interpolationPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func rewriteInterpolations(text string) string {
	return interpolationPattern.ReplaceAllString(text, "{}")
}

func isInteger(text string) bool {
	_, err := strconv.Atoi(text)
	return err == nil
}

// --- Pass 1: data segment ---

type dataBuilder struct {
	entries []string
	offsets map[string]int
	bytes   int
}

func (b *dataBuilder) add(key, storedText string) {
	b.offsets[key] = b.bytes
	b.entries = append(b.entries, fmt.Sprintf("%d %s", len(storedText), storedText))
	b.bytes += 4 + len(storedText)
}

func (b *dataBuilder) visitScope(scope []ast.Node) {
	for _, node := range scope {
		b.visit(node)
	}
}

func (b *dataBuilder) visit(node ast.Node) {
	switch n := node.(type) {
	case *ast.Function:
		b.visitScope(n.Scope)
	case *ast.Call:
		for _, arg := range n.Arguments {
			b.visit(arg)
		}
	case *ast.Arg:
		b.visitArg(n)
	case *ast.Let:
		b.visitLet(n)
	case *ast.Return:
		b.visitReturn(n)
		// *ast.Class, *ast.If, *ast.New and their contents are reserved:
		// not lowered, so they never reach the data segment.
	}
}

func (b *dataBuilder) visitArg(arg *ast.Arg) {
	lit, ok := arg.Value.(*ast.Literal)
	if !ok {
		return
	}
	text := lit.Value
	if isInteger(text) {
		return
	}
	if _, bare := ast.IsInterpolation(text); bare {
		return
	}
	b.add(text, rewriteInterpolations(text))
}

func (b *dataBuilder) visitLet(let *ast.Let) {
	if let.Type != "string" {
		return
	}
	lit, ok := let.Value.(*ast.Literal)
	if !ok {
		return
	}
	b.add(let.Name, lit.Value)
}

func (b *dataBuilder) visitReturn(ret *ast.Return) {
	if ret.Type != "string" || ret.Value == nil {
		return
	}
	lit, ok := ret.Value.(*ast.Literal)
	if !ok {
		return
	}
	b.add(lit.Value, lit.Value)
}

// GenerateData walks program and returns the `.data` segment's entry
// text (one `<len> <text>` line per entry, newline-joined) together with
// the byte-offset map later passes index into.
func GenerateData(program *ast.Program) (string, map[string]int) {
	b := &dataBuilder{offsets: map[string]int{}}
	b.visitScope(program.Scope)
	return strings.Join(b.entries, "\n"), b.offsets
}

// --- Pass 2: code segment ---

type codeBuilder struct {
	dataOffsets map[string]int
	symbols     map[string]FunctionInfo
	dialect     dialect.Set
	sink        *diagnostics.Sink
}

// knownCallees is the full set of names a `call` may legally target:
// every declared function plus the dialect's intrinsics.
func (c *codeBuilder) knownCallees() []string {
	names := make([]string, 0, len(c.symbols)+len(c.dialect.Intrinsics))
	for name := range c.symbols {
		names = append(names, name)
	}
	names = append(names, c.dialect.Intrinsics...)
	return names
}

func (c *codeBuilder) checkCallee(call *ast.Call) {
	if c.sink == nil {
		return
	}
	if _, ok := c.symbols[call.Callee]; ok {
		return
	}
	if _, ok := c.dialect.IsIntrinsic(call.Callee); ok {
		return
	}

	message := fmt.Sprintf("'%s' is not a declared function or intrinsic", call.Callee)
	if suggestion, ok := diagnostics.Suggest(call.Callee, c.knownCallees()); ok {
		message += fmt.Sprintf(", did you mean '%s'?", suggestion)
	}
	c.sink.Report(diagnostics.New(diagnostics.ExpectedTokenMissing, call.Tok, message))
}

func collectSymbols(program *ast.Program) map[string]FunctionInfo {
	symbols := map[string]FunctionInfo{}
	for _, node := range program.Scope {
		if fn, ok := node.(*ast.Function); ok {
			symbols[fn.Name] = FunctionInfo{Result: fn.Result}
		}
	}
	return symbols
}

func localIndices(scope []ast.Node) map[string]int {
	indices := map[string]int{}
	next := 0
	for _, node := range scope {
		if let, ok := node.(*ast.Let); ok {
			indices[let.Name] = next
			next++
		}
	}
	return indices
}

func (c *codeBuilder) emitLet(let *ast.Let, index int) []string {
	lit, ok := let.Value.(*ast.Literal)
	if !ok {
		return nil
	}

	var head string
	switch let.Type {
	case "string":
		head = fmt.Sprintf("load .data[%d]", c.dataOffsets[let.Name])
	default:
		head = fmt.Sprintf("push %s", lit.Value)
	}

	return []string{head, fmt.Sprintf("store scope[%d]", index)}
}

func (c *codeBuilder) emitArg(arg *ast.Arg, locals map[string]int) []string {
	lit, ok := arg.Value.(*ast.Literal)
	if !ok {
		return nil
	}
	text := lit.Value

	if name, ok := ast.IsInterpolation(text); ok {
		idx := locals[name]
		return []string{fmt.Sprintf("load scope[%d]", idx)}
	}
	if isInteger(text) {
		return []string{fmt.Sprintf("push %s", text)}
	}

	return []string{fmt.Sprintf("load .data[%d]", c.dataOffsets[text])}
}

func (c *codeBuilder) emitCall(call *ast.Call, locals map[string]int) []string {
	c.checkCallee(call)

	var lines []string

	for _, node := range call.Arguments {
		if arg, ok := node.(*ast.Arg); ok {
			lines = append(lines, c.emitArg(arg, locals)...)
		}
	}

	lines = append(lines, "call "+call.Callee)

	if info, ok := c.symbols[call.Callee]; ok && info.Result != "none" {
		lines = append(lines, "pop")
	}

	return lines
}

func (c *codeBuilder) emitReturn(ret *ast.Return) []string {
	if ret.Value == nil {
		// A synthesized value-less return (spec §4.2's function-body
		// fixup) marks where control falls off the end of a "none"
		// function; it isn't an instruction a user wrote, so it lowers
		// to nothing. A written-out empty <return/> still emits ret.
		if ret.Synthesized {
			return nil
		}
		return []string{"ret"}
	}

	lit, ok := ret.Value.(*ast.Literal)
	if !ok {
		return []string{"ret"}
	}

	var head string
	switch ret.Type {
	case "string":
		head = fmt.Sprintf("load .data[%d]", c.dataOffsets[lit.Value])
	default:
		head = fmt.Sprintf("push %s", lit.Value)
	}

	return []string{head, "ret"}
}

func (c *codeBuilder) emitStatement(node ast.Node, locals map[string]int, letIndex map[*ast.Let]int) []string {
	switch n := node.(type) {
	case *ast.Let:
		return c.emitLet(n, letIndex[n])
	case *ast.Call:
		return c.emitCall(n, locals)
	case *ast.Return:
		return c.emitReturn(n)
	default:
		// *ast.If and *ast.New are reserved; not lowered.
		return nil
	}
}

func (c *codeBuilder) emitFunctionBody(fn *ast.Function) []string {
	locals := localIndices(fn.Scope)

	letIndex := map[*ast.Let]int{}
	for _, node := range fn.Scope {
		if let, ok := node.(*ast.Let); ok {
			letIndex[let] = locals[let.Name]
		}
	}

	var lines []string
	for _, node := range fn.Scope {
		lines = append(lines, c.emitStatement(node, locals, letIndex)...)
	}
	return lines
}

func formatBlock(header string, body []string) string {
	return header + "\n\n" + strings.Join(body, "\n")
}

// GenerateCode walks program's top-level functions and statement-level
// calls, emitting one `function <name>` block per function and a final
// `entrypoint` block (spec §4.3). dataOffsets comes from GenerateData.
// sink may be nil; when set, an unresolved call target is reported with
// a fuzzy-matched "did you mean" suggestion.
func GenerateCode(program *ast.Program, dataOffsets map[string]int, set dialect.Set, sink *diagnostics.Sink) string {
	c := &codeBuilder{
		dataOffsets: dataOffsets,
		symbols:     collectSymbols(program),
		dialect:     set,
		sink:        sink,
	}

	var blocks []string
	for _, node := range program.Scope {
		if fn, ok := node.(*ast.Function); ok {
			blocks = append(blocks, formatBlock("function "+fn.Name, c.emitFunctionBody(fn)))
		}
	}

	var entry []string
	for _, node := range program.Scope {
		if call, ok := node.(*ast.Call); ok {
			entry = append(entry, c.emitCall(call, nil)...)
		}
	}
	entry = append(entry, "ret")

	blocks = append(blocks, formatBlock("entrypoint", entry))

	return strings.Join(blocks, "\n\n")
}

// Generate runs both passes and returns the complete assembly text ready
// for pkgs/assembler. sink may be nil.
func Generate(program *ast.Program, set dialect.Set, sink *diagnostics.Sink) string {
	dataText, offsets := GenerateData(program)
	codeText := GenerateCode(program, offsets, set, sink)

	if dataText == "" {
		return ".data\n\n.code\n\n" + codeText
	}
	return ".data\n\n" + dataText + "\n\n.code\n\n" + codeText
}
