package core

import "errors"

// Error taxonomy. Callers classify failures with errors.Is; concrete causes
// are wrapped with %w so the chain stays inspectable.
var (
	// ErrStorage means the durable medium is unavailable. Fatal to the turn
	// on write paths.
	ErrStorage = errors.New("storage unavailable")

	// ErrInvalidQuery means a structured predicate failed validation and was
	// rejected before execution.
	ErrInvalidQuery = errors.New("invalid query predicate")

	// ErrEmbedding means the embedding provider failed. Retryable.
	ErrEmbedding = errors.New("embedding failed")

	// ErrProvider means a completion provider failed. Retryable on the
	// critical path, swallowed on best-effort branches.
	ErrProvider = errors.New("provider failed")

	// ErrSchemaValidation means a structured-output agent produced a
	// response that does not conform to its declared schema.
	ErrSchemaValidation = errors.New("agent output failed schema validation")

	// ErrGeneration is surfaced to the caller when the primary model fails
	// after retry exhaustion. Internal provider detail is not leaked.
	ErrGeneration = errors.New("could not generate a response")
)
