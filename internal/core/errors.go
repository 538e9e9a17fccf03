package core

import "fmt"

// External-call failures are converted to one of these types at the component
// boundary so callers can either degrade or surface a message; nothing below
// the API layer produces user-visible text.

// ResolutionError means the geocoder could not resolve a place name.
// Recoverable: the user should re-enter the location.
type ResolutionError struct {
	Place string
	Err   error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %v", e.Place, e.Err)
	}
	return fmt.Sprintf("place %q not found", e.Place)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// CalculationError means the chart could not be computed, typically because
// the birth date falls outside the ephemeris' supported range.
type CalculationError struct {
	Reason string
	Err    error
}

func (e *CalculationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("horoscope calculation: %s: %v", e.Reason, e.Err)
	}
	return "horoscope calculation: " + e.Reason
}

func (e *CalculationError) Unwrap() error { return e.Err }

// RetrievalError means the vector store is unreachable or the index is empty.
// Callers degrade to generation without retrieved context.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("rule retrieval: %v", e.Err) }

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError means the LLM call failed (API error, timeout, rate limit).
// The turn is not committed; the caller surfaces a retryable failure.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation: %v", e.Err) }

func (e *GenerationError) Unwrap() error { return e.Err }
