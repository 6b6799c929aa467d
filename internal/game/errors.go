package game

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDefinition is returned when a definition id is not registered.
	ErrUnknownDefinition = errors.New("unknown definition")
	// ErrInvalidAction is returned when a chosen action is not offered or
	// its dice do not pay its cost.
	ErrInvalidAction = errors.New("invalid action")
	// ErrGameEnded is returned when an operation needs a running match.
	ErrGameEnded = errors.New("game already ended")
	// ErrMalformedResponse is wrapped by IOError for responses failing
	// shape validation.
	ErrMalformedResponse = errors.New("malformed rpc response")
)

// InvariantError is an engine invariant violation. The Mutator panics with
// it; Game.Run recovers it and terminates the match.
type InvariantError struct {
	Mutation string
	Reason   string
}

func (e *InvariantError) Error() string {
	if e.Mutation == "" {
		return fmt.Sprintf("engine invariant violated: %s", e.Reason)
	}
	return fmt.Sprintf("engine invariant violated by %s: %s", e.Mutation, e.Reason)
}

func invariantf(mutation, format string, args ...any) *InvariantError {
	return &InvariantError{Mutation: mutation, Reason: fmt.Sprintf(format, args...)}
}

// IOError is a failure at the RPC boundary: transport error, cancellation,
// or a response that fails validation.
type IOError struct {
	Who    int
	Method RPCMethod
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("player %d rpc %s: %v", e.Who, e.Method, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
