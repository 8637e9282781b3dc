// Package dialect parameterizes the lexer's keyword set and the list of
// intrinsic call targets, following spec §4.1's guidance that an
// implementation SHOULD make the keyword set configurable rather than
// hard-coding it.
package dialect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nyyakko/xmlang/pkgs/lexer"
)

// Set is a named, configurable keyword set and intrinsic table.
type Set struct {
	Name       string   `yaml:"name"`
	Keywords   []string `yaml:"keywords"`
	Intrinsics []string `yaml:"intrinsics"`
}

// Classic is the older, minimal keyword set (no classes, no control flow).
// It mirrors original_source/xmlc's uppercase-opcode variant.
func Classic() Set {
	return Set{
		Name:       "classic",
		Keywords:   []string{"arg", "call", "function", "let", "program", "return"},
		Intrinsics: []string{"print", "println"},
	}
}

// Full is the richer keyword set, adding classes and control flow. It
// mirrors original_source/xmlang's lowercase-opcode variant and is the
// default used when no --dialect file is given.
func Full() Set {
	return Set{
		Name: "full",
		Keywords: []string{
			"arg", "call", "function", "let", "program", "return",
			"class", "new", "ctor", "dtor", "if", "else",
		},
		Intrinsics: []string{"print", "println", "format"},
	}
}

// Default returns the keyword set used when the caller does not select a
// dialect file explicitly.
func Default() Set { return Full() }

// Load reads a Set from a YAML dialect file of the shape:
//
//	name: full
//	keywords: [arg, call, function, let, program, return, class, new, ctor, dtor, if, else]
//	intrinsics: [print, println, format]
func Load(path string) (Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("dialect: reading %s: %w", path, err)
	}

	var set Set
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return Set{}, fmt.Errorf("dialect: parsing %s: %w", path, err)
	}
	if set.Name == "" {
		return Set{}, fmt.Errorf("dialect: %s: missing required field %q", path, "name")
	}
	if len(set.Keywords) == 0 {
		return Set{}, fmt.Errorf("dialect: %s: missing required field %q", path, "keywords")
	}

	return set, nil
}

// KeywordSet converts the set into the map shape the lexer consumes.
func (s Set) KeywordSet() lexer.Keywords {
	out := make(lexer.Keywords, len(s.Keywords))
	for _, kw := range s.Keywords {
		out[kw] = true
	}
	return out
}

// HasKeyword reports whether name is a keyword in this dialect.
func (s Set) HasKeyword(name string) bool {
	for _, kw := range s.Keywords {
		if kw == name {
			return true
		}
	}
	return false
}

// IsIntrinsic reports whether name names a VM-provided intrinsic in this
// dialect, and if so its index in Intrinsics. The binary encoding does not
// use this index: pkgs/assembler has its own fixed intrinsic table.
func (s Set) IsIntrinsic(name string) (int, bool) {
	for i, in := range s.Intrinsics {
		if in == name {
			return i, true
		}
	}
	return 0, false
}
