package models

import "errors"

// Sentinel errors for the gateway. Services wrap these with context via
// fmt.Errorf("...: %w", err); routes map them to HTTP status codes.
var (
	// ErrInvalidInput marks requests rejected before any model or index
	// call: empty text, missing required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedMedia marks content that cannot be processed:
	// unrecognized content type or extension, undecodable image bytes,
	// text that is neither UTF-8 nor UTF-16.
	ErrUnsupportedMedia = errors.New("unsupported media")

	// ErrNotFound marks lookups or deletes that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrDependencyUnavailable marks failures of an external collaborator
	// (vector index, encoder sidecar, reranker). Search paths degrade on
	// this error; ingest paths surface it.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
