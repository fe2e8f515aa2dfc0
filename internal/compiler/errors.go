package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports a definition field the compiler rejected.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError converts a CUE evaluation error into a CompileError
// carrying the first available position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	var pos token.Pos
	if errs := errors.Errors(err); len(errs) > 0 {
		pos = errs[0].Position()
	}
	return &CompileError{
		Field:   "cue",
		Message: errors.Details(err, nil),
		Pos:     pos,
	}
}
