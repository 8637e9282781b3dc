// Package assembler turns the textual `.data`/`.code` assembly codegen
// emits into the binary image the "lmx" target loads.
//
// Grounded on original_source/xmlc/source/codegen/Assembler.cpp's
// segmenter and its ENUM_CLASS(Instruction/Intrinsic/Section) tables,
// re-encoded per the richer lowercase opcode dialect (shifted 5-bit
// opcode plus mode/tag bits, 4-byte big-endian operands) rather than the
// older single-byte dialect — the two dialects that original source
// carries side by side.
package assembler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type opcode byte

const (
	opPush opcode = iota
	opLoad
	opStore
	opCall
	opPop
	opRet
)

// Section tags select where a load/store/call operand resolves.
const (
	sectionData   byte = 0
	sectionLocal  byte = 1
	sectionGlobal byte = 2
)

const (
	storeLocal  byte = 0
	storeGlobal byte = 1
)

const (
	callExtrinsic byte = 0
	callIntrinsic byte = 1
)

// intrinsicOrdinals is the target VM's fixed intrinsic table. It is
// independent of the active dialect's keyword spelling — the ISA an
// image runs against doesn't vary with which surface syntax compiled
// it — and mirrors original_source's ENUM_CLASS(Intrinsic, PRINT,
// PRINTLN, FORMAT) ordering.
var intrinsicOrdinals = map[string]byte{
	"print":   0,
	"println": 1,
	"format":  2,
}

const imageHeader = "This is a kubo program"

// ErrUnexpectedSegment and ErrUnknownInstruction are the assembler's two
// fatal failure modes.
var (
	ErrUnexpectedSegment  = errors.New("unexpected segment was reached")
	ErrUnknownInstruction = errors.New("unrecognized instruction")
)

// Assemble encodes the combined `.data\n\n<entries>\n\n.code\n\n<functions>`
// text produced by pkgs/codegen into a binary image:
//
//	offset 0  : 22-byte ASCII header
//	offset 22 : u32 BE data-segment start (always 0)
//	offset 26 : u32 BE code-segment start (= len(data))
//	offset 30 : u32 BE entrypoint offset
//	offset 34 : data-segment bytes, then code-segment bytes
func Assemble(text string) ([]byte, error) {
	dataSource, codeSource := splitSegments(text)

	dataBytes, err := assembleDataSegment(dataSource)
	if err != nil {
		return nil, err
	}

	codeBytes, offsets, err := assembleCodeSegment(codeSource)
	if err != nil {
		return nil, err
	}

	entrypoint, ok := offsets["entrypoint"]
	if !ok {
		return nil, fmt.Errorf("%w: code segment has no entrypoint block", ErrUnexpectedSegment)
	}

	image := make([]byte, 0, 34+len(dataBytes)+len(codeBytes))
	image = append(image, imageHeader...)
	image = binary.BigEndian.AppendUint32(image, 0)
	image = binary.BigEndian.AppendUint32(image, uint32(len(dataBytes)))
	image = binary.BigEndian.AppendUint32(image, uint32(entrypoint))
	image = append(image, dataBytes...)
	image = append(image, codeBytes...)

	return image, nil
}

// splitSegments locates the first non-leading line beginning with '.'
// after at least one byte of `.data` content has been seen; everything
// before that line is the data segment's source, everything from it
// onward is the code segment's source.
func splitSegments(code string) (dataSource, codeSource string) {
	lines := strings.Split(code, "\n")

	var bytes int
	for i, line := range lines {
		if strings.HasPrefix(line, ".") && bytes > 0 {
			return strings.Join(lines[:i], "\n"), strings.Join(lines[i:], "\n")
		}
		bytes += len(line)
		if line != "" {
			bytes++
		}
	}

	return "", ""
}

func assembleDataSegment(source string) ([]byte, error) {
	lines := strings.Split(source, "\n")
	if len(lines) == 0 || lines[0] != ".data" {
		return nil, fmt.Errorf("%w: expected '.data'", ErrUnexpectedSegment)
	}

	var out []byte
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}

		sizeText, text, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data entry '%s'", ErrUnknownInstruction, line)
		}
		size, err := strconv.Atoi(sizeText)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed data entry '%s'", ErrUnknownInstruction, line)
		}

		out = binary.BigEndian.AppendUint32(out, uint32(size))
		out = append(out, text...)
	}

	return out, nil
}

func blockName(line string) (string, bool) {
	if line == "entrypoint" {
		return "entrypoint", true
	}
	if name, ok := strings.CutPrefix(line, "function "); ok {
		return name, true
	}
	return "", false
}

// assembleCodeSegment scans line-by-line: a header starts a new block
// and records its byte offset, a blank line separates the header from
// its body, and instruction lines accumulate until the next blank line
// or EOF. Like the original, a `call` target is resolved against
// whatever offsets have been recorded so far — a call to a function
// whose block comes later in the segment resolves as an intrinsic lookup
// instead of a forward reference. Codegen emits function blocks in
// declaration order, so a call to a function declared later in the
// source fails with ErrUnknownInstruction unless its name is an
// intrinsic.
func assembleCodeSegment(source string) ([]byte, map[string]int, error) {
	lines := strings.Split(source, "\n")
	if len(lines) == 0 || lines[0] != ".code" {
		return nil, nil, fmt.Errorf("%w: expected '.code'", ErrUnexpectedSegment)
	}

	offsets := map[string]int{}
	var out []byte

	i := 1
	for i < len(lines) {
		if lines[i] == "" {
			i++
			continue
		}

		name, ok := blockName(lines[i])
		if !ok {
			return nil, nil, fmt.Errorf("%w: expected a block header, found '%s'", ErrUnexpectedSegment, lines[i])
		}
		offsets[name] = len(out)
		i++

		if i < len(lines) && lines[i] == "" {
			i++
		}

		for i < len(lines) && lines[i] != "" {
			encoded, err := assembleInstruction(lines[i], offsets)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, encoded...)
			i++
		}
	}

	return out, offsets, nil
}

func assembleInstruction(line string, offsets map[string]int) ([]byte, error) {
	mnemonic, operand, _ := strings.Cut(line, " ")
	switch mnemonic {
	case "push":
		return assemblePush(operand)
	case "load":
		return assembleLoad(operand)
	case "store":
		return assembleStore(operand)
	case "call":
		return assembleCall(operand, offsets)
	case "pop":
		return []byte{byte(opPop) << 3}, nil
	case "ret":
		return []byte{byte(opRet) << 3}, nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownInstruction, line)
	}
}

func assemblePush(operand string) ([]byte, error) {
	value, err := strconv.ParseInt(operand, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed push operand '%s'", ErrUnknownInstruction, operand)
	}

	out := []byte{byte(opPush) << 3}
	return binary.BigEndian.AppendUint32(out, uint32(int32(value))), nil
}

var operandPattern = regexp.MustCompile(`^(\.data|scope|global)\[(\d+)\]$`)

func assembleLoad(operand string) ([]byte, error) {
	match := operandPattern.FindStringSubmatch(operand)
	if match == nil {
		return nil, fmt.Errorf("%w: malformed load operand '%s'", ErrUnknownInstruction, operand)
	}

	var tag byte
	switch match[1] {
	case ".data":
		tag = sectionData
	case "scope":
		tag = sectionLocal
	case "global":
		tag = sectionGlobal
	}

	offset, _ := strconv.Atoi(match[2])
	out := []byte{byte(opLoad) << 3, tag}
	return binary.BigEndian.AppendUint32(out, uint32(offset)), nil
}

func assembleStore(operand string) ([]byte, error) {
	match := operandPattern.FindStringSubmatch(operand)
	if match == nil {
		return nil, fmt.Errorf("%w: malformed store operand '%s'", ErrUnknownInstruction, operand)
	}

	var tag byte
	switch match[1] {
	case "scope":
		tag = storeLocal
	case "global":
		tag = storeGlobal
	default:
		return nil, fmt.Errorf("%w: store cannot target '%s'", ErrUnknownInstruction, match[1])
	}

	offset, _ := strconv.Atoi(match[2])
	out := []byte{byte(opStore) << 3, tag}
	return binary.BigEndian.AppendUint32(out, uint32(offset)), nil
}

func assembleCall(name string, offsets map[string]int) ([]byte, error) {
	if target, ok := offsets[name]; ok {
		if target > 0xFF {
			return nil, fmt.Errorf("%w: '%s' is unreachable by a single-byte call operand", ErrUnknownInstruction, name)
		}
		return []byte{byte(opCall)<<3 | callExtrinsic, byte(target)}, nil
	}

	if ordinal, ok := intrinsicOrdinals[name]; ok {
		return []byte{byte(opCall)<<3 | callIntrinsic, ordinal}, nil
	}

	return nil, fmt.Errorf("%w: call target '%s' is neither a declared function nor an intrinsic", ErrUnknownInstruction, name)
}
