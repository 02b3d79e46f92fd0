package engine

import "fmt"

// ParseError reports malformed formula syntax. It is returned by the
// lexer and parser; the cell-edit path converts it into a stored cell
// error rather than surfacing it to the host.
type ParseError struct {
	Message string
	Pos     int
}

func (e *ParseError) Error() string {
	return e.Message
}

func NewParseError(message string) *ParseError {
	return &ParseError{Message: message}
}

func NewParseErrorAt(message string, pos int) *ParseError {
	return &ParseError{Message: message, Pos: pos}
}

// RefError reports a reference outside the supported grid bounds or a
// structurally invalid address. It is distinguished from ParseError so
// callers can map it to the #REF! error code.
type RefError struct {
	Message string
}

func (e *RefError) Error() string {
	return e.Message
}

func NewRefError(message string) *RefError {
	return &RefError{Message: message}
}

// CircularDependencyError reports that a cell was read while it was
// already mid-evaluation. The evaluator translates it into the #CIRC!
// error value.
type CircularDependencyError struct {
	Addr CellAddress
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency at %s", e.Addr)
}

// errorCodeFor maps a parse-path error to the cell error code recorded
// on a failed edit.
func errorCodeFor(err error) string {
	switch err.(type) {
	case *RefError:
		return ErrRef
	case *CircularDependencyError:
		return ErrCirc
	default:
		return ErrValue
	}
}
