package service

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrEmptyQuery       = errors.New("query is empty")
	ErrStoreUnavailable = errors.New("listing store unavailable")
	ErrEmbedding        = errors.New("embedding failed")
)

// ValidationError reports caller input the pipeline refuses to process
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RetrievalError is returned when candidates could not be fetched.
// It aborts the request; no partial results are produced.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("candidate retrieval failed: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStoreUnavailable) match any retrieval failure
func (e *RetrievalError) Is(target error) bool { return target == ErrStoreUnavailable }

// InterpretationError wraps a failure of the structured extractor.
// Search absorbs it into a degraded response; it is surfaced for logging.
type InterpretationError struct {
	Interpreter string
	Err         error
}

func (e *InterpretationError) Error() string {
	return fmt.Sprintf("%s interpreter: %v", e.Interpreter, e.Err)
}

func (e *InterpretationError) Unwrap() error { return e.Err }
