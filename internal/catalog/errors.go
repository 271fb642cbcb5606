package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrConnection matches any ConnectionError via errors.Is.
	ErrConnection = errors.New("catalog store unreachable")
	// ErrQuery matches any QueryError via errors.Is.
	ErrQuery = errors.New("malformed catalog query")
)

// ConnectionError is returned when the store could not be reached or the
// connection was lost while an operation was in flight.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrConnection, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// QueryError is returned when the store rejected a filter, update or pipeline.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrQuery, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// Classify maps a raw store error onto the catalog taxonomy. Errors that are
// already classified pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var connErr *ConnectionError
	var queryErr *QueryError
	if errors.As(err, &connErr) || errors.As(err, &queryErr) {
		return err
	}
	if isConnectionFailure(err) {
		return &ConnectionError{Op: op, Err: err}
	}
	return &QueryError{Op: op, Err: err}
}

func isConnectionFailure(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return true
	case errors.Is(err, mongo.ErrClientDisconnected):
		return true
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return true
	}
	return false
}
