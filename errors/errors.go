package errors

import "errors"

// Sentinel errors shared across the library.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates a collaborator (index, web search, store)
	// could not be reached; callers are expected to degrade, not abort.
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrGeneration indicates the language model failed to produce a reply.
	ErrGeneration = errors.New("generation failed")
)
