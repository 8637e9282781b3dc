// Package dump renders tokens and the AST as ordered JSON for the
// `--dump` debug side-channel (spec §6). Per spec.md, this format is
// not an API — it exists for inspecting a compile, not for downstream
// tooling to depend on — but it is still validated against an embedded
// JSON Schema before being handed back, so a change to the shape fails
// a test rather than silently emitting malformed JSON.
package dump

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nyyakko/xmlang/pkgs/ast"
	"github.com/nyyakko/xmlang/pkgs/lexer"
)

//go:embed schema/tokens.schema.json schema/ast.schema.json
var schemaFS embed.FS

func compileSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	url := "schema://" + name
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}

	return compiler.Compile(url)
}

func validate(schema *jsonschema.Schema, encoded []byte) error {
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return fmt.Errorf("decoding dump for validation: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("dump does not satisfy its schema: %w", err)
	}
	return nil
}

// Tokens renders tokens (in forward, file order — Tokenize's output is
// reversed for the parser's cursor) as an ordered JSON array, validated
// against tokens.schema.json.
func Tokens(tokens []lexer.Token) ([]byte, error) {
	schema, err := compileSchema("tokens.schema.json")
	if err != nil {
		return nil, err
	}

	entries := make([]map[string]any, len(tokens))
	for i := range tokens {
		tok := tokens[len(tokens)-1-i]
		entries[i] = map[string]any{
			"kind":   tok.Kind.String(),
			"text":   tok.Text,
			"line":   tok.Location.Line,
			"column": tok.Location.Column,
			"depth":  tok.Depth,
		}
	}

	encoded, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := validate(schema, encoded); err != nil {
		return nil, err
	}
	return encoded, nil
}

// AST renders program as a nested JSON object, validated against
// ast.schema.json.
func AST(program *ast.Program) ([]byte, error) {
	schema, err := compileSchema("ast.schema.json")
	if err != nil {
		return nil, err
	}

	encoded, err := json.MarshalIndent(nodeToMap(program), "", "  ")
	if err != nil {
		return nil, err
	}
	if err := validate(schema, encoded); err != nil {
		return nil, err
	}
	return encoded, nil
}

func nodesToSlice(nodes []ast.Node) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = nodeToMap(n)
	}
	return out
}

func nodeToMapOrNil(n ast.Node) any {
	if n == nil {
		return nil
	}
	return nodeToMap(n)
}

func parametersToSlice(params []ast.Parameter) []any {
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = map[string]any{"name": p.Name, "type": p.Type}
	}
	return out
}

func nodeToMap(node ast.Node) map[string]any {
	switch n := node.(type) {
	case *ast.Program:
		return map[string]any{"kind": "Program", "scope": nodesToSlice(n.Scope)}
	case *ast.Function:
		return map[string]any{
			"kind":       "Function",
			"name":       n.Name,
			"result":     n.Result,
			"parameters": parametersToSlice(n.Parameters),
			"scope":      nodesToSlice(n.Scope),
		}
	case *ast.Class:
		inherits := n.Inherits
		if inherits == nil {
			inherits = []string{}
		}
		return map[string]any{
			"kind":     "Class",
			"name":     n.Name,
			"inherits": inherits,
			"scope":    nodesToSlice(n.Scope),
		}
	case *ast.Call:
		return map[string]any{"kind": "Call", "callee": n.Callee, "arguments": nodesToSlice(n.Arguments)}
	case *ast.Arg:
		return map[string]any{"kind": "Arg", "value": nodeToMapOrNil(n.Value)}
	case *ast.Let:
		return map[string]any{"kind": "Let", "name": n.Name, "type": n.Type, "value": nodeToMapOrNil(n.Value)}
	case *ast.Return:
		return map[string]any{"kind": "Return", "type": n.Type, "synthesized": n.Synthesized, "value": nodeToMapOrNil(n.Value)}
	case *ast.If:
		return map[string]any{
			"kind":        "If",
			"condition":   nodeToMapOrNil(n.Condition),
			"trueBranch":  nodesToSlice(n.TrueBranch),
			"falseBranch": nodesToSlice(n.FalseBranch),
		}
	case *ast.New:
		return map[string]any{"kind": "New", "name": n.Name, "type": n.Type, "arguments": nodesToSlice(n.Arguments)}
	case *ast.Literal:
		return map[string]any{"kind": "Literal", "value": n.Value}
	case *ast.Arithmetic:
		return map[string]any{"kind": "Arithmetic", "value": nodeToMapOrNil(n.Value)}
	case *ast.Logical:
		return map[string]any{"kind": "Logical", "value": nodeToMapOrNil(n.Value)}
	default:
		return map[string]any{"kind": fmt.Sprintf("%T", node)}
	}
}
