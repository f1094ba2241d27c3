package docstore

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDocNotFound      = fmt.Errorf("document %w", ErrNotFound)
	ErrLocalDocNotFound = fmt.Errorf("local document %w", ErrNotFound)
	ErrNoSuchFile       = errors.New("no such file")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrCorrupt          = errors.New("corrupt data")
	ErrClosed           = errors.New("database is closed")
	ErrReadOnly         = errors.New("database is read-only")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	if err == nil {
		err = ErrCorrupt
	}
	return &DataError{slices.Clone(data), off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
	}
}

// DocError annotates an error with the document it happened on.
type DocError struct {
	ID  []byte
	Msg string
	Err error
}

func docErrf(id []byte, err error, format string, args ...any) error {
	return &DocError{slices.Clone(id), fmt.Sprintf(format, args...), err}
}

func (e *DocError) Unwrap() error {
	return e.Err
}

func (e *DocError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%q: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("%q: %s: %v", e.ID, e.Msg, e.Err)
}

// Describe returns a short human-readable description of an engine error,
// suitable for embedding into higher-level messages.
func Describe(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrDocNotFound):
		return "document not found"
	case errors.Is(err, ErrLocalDocNotFound):
		return "local document not found"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrNoSuchFile):
		return "no such file"
	case errors.Is(err, ErrInvalidArguments):
		return "invalid arguments: " + err.Error()
	case errors.Is(err, ErrCorrupt):
		return "corrupt: " + err.Error()
	case errors.Is(err, ErrClosed):
		return "database is closed"
	case errors.Is(err, ErrReadOnly):
		return "database is read-only"
	default:
		return err.Error()
	}
}
