package chain

import (
	"errors"
	"fmt"
)

// ErrTransientQuery marks a failed chain read. Callers degrade to a fallback
// or a short retry instead of aborting.
var ErrTransientQuery = errors.New("transient chain query failure")

// QueryError wraps a failed read with the operation that produced it.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is makes every QueryError match ErrTransientQuery.
func (e *QueryError) Is(target error) bool {
	return target == ErrTransientQuery
}

// NewQueryError wraps err as a transient query failure for op.
func NewQueryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Op: op, Err: err}
}
