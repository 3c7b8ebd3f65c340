package fm

import "fmt"

// A ParseError is returned when a feature model source is malformed.
type ParseError struct {
	Line int // 1-based line where the error was found, 0 if unknown.
	Msg  string
	Err  error // Underlying error, if any.
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrorf(line int, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
