package snapshot

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParameter is returned when date, start, or end is empty.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrNoDataForDate is returned when no file name matches the date.
	ErrNoDataForDate = errors.New("no data for date")

	// ErrNoDataInRange is returned when files exist for the date but none
	// fall inside [start, end].
	ErrNoDataInRange = errors.New("no data in range")
)

// QueryError carries a caller-facing message for one of the sentinel errors
// above.
type QueryError struct {
	Kind error
	Msg  string
}

func (e *QueryError) Error() string { return e.Msg }

func (e *QueryError) Unwrap() error { return e.Kind }

func queryErrorf(kind error, format string, args ...any) error {
	return &QueryError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// DecodeError reports a snapshot file that could not be decoded. It is
// logged and the file is left out of the result.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decoding %s: %v", e.Path, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }
