package loader

import "fmt"

// Position locates a record in a source file.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// ParseError is returned when a record cannot be turned into a transaction.
type ParseError struct {
	Pos   Position
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Pos, e.Err)
	}
	return fmt.Sprintf("%s: invalid %s: %v", e.Pos, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// GetPosition returns where the error occurred.
func (e *ParseError) GetPosition() Position {
	return e.Pos
}
