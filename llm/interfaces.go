package llm

import (
	"context"
)

// Client provides a provider-neutral interface for making LLM API calls.
// Implementations handle provider-specific request encoding internally.
type Client interface {
	// Synchronous sends a request and returns a complete turn.
	// This is for non-streaming use cases.
	Synchronous(ctx context.Context, req *Request) (*ModelTurn, error)

	// Stream sends a request and returns a stream of raw wire lines.
	// The caller should read from the returned Stream until it's done or
	// an error occurs.
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// Stream represents a streaming response from an LLM as a sequence of raw
// provider wire lines (one SSE field line or one NDJSON object per call).
// Decoding into Deltas is the wire package's job, not the stream's.
type Stream interface {
	// Next advances to the next raw line in the stream.
	// Returns false when the stream is complete or an error occurs.
	Next() bool

	// Line returns the current raw line.
	// Should only be called after Next() returns true.
	Line() string

	// Err returns any error that occurred during streaming.
	Err() error

	// Close closes the stream and releases resources.
	Close() error
}
