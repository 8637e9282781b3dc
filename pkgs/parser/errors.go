package parser

import "errors"

// ErrGaveUp is returned by Parse when one or more diagnostics were
// reported during parsing. It summarizes a (possibly partial) AST that
// the caller must discard rather than pass on to codegen (spec §4.2
// "Failure semantics" / §7 propagation policy).
var ErrGaveUp = errors.New("I give up. ( ; ω ; )")

// parseError is returned by an individual production rule once it has
// already reported a diagnostic to the sink, so callers can distinguish
// "stop, something was already logged" from an unrelated Go error.
type parseError struct {
	reason string
}

func (e *parseError) Error() string { return e.reason }

func fail(reason string) error { return &parseError{reason: reason} }
