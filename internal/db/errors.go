package db

import (
	"errors"
	"fmt"
)

// QueryError reports a failed statement with the label of the
// metric that issued it and the exact SQL and params sent.
type QueryError struct {
	Context string
	SQL     string
	Params  map[string]any
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: query failed: %v", e.Context, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// AsQueryError returns the *QueryError in err's chain, if any.
func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
