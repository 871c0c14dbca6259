// Package streammux merges N labeled upstream chunk producers into one
// totally-ordered (per source) event stream.
package streammux

import "context"

// Type discriminates a Chunk. complete is internal-only and is never
// surfaced on the merged channel.
type Type string

const (
	TypeStart    Type = "start"
	TypeChunk    Type = "chunk"
	TypeDone     Type = "done"
	TypeError    Type = "error"
	typeComplete Type = "complete"
)

// Chunk is one event produced by a single worker's upstream sequence.
type Chunk struct {
	Type Type

	// Content is the incremental delta for TypeChunk.
	Content string

	// Response is the full accumulated text for TypeDone (always populated
	// for the chairman stage; optional elsewhere).
	Response string

	// Message is the error description for TypeError.
	Message string
}

// Labeled pairs a Chunk with the source_id of the worker that produced it.
type Labeled struct {
	Source string
	Chunk  Chunk
}

// Producer is a single worker's chunk sequence. Implementations MUST close
// the returned channel once their sequence ends (after emitting exactly one
// terminal done/error, or after start+error for an immediate failure) and
// MUST respect ctx cancellation as a best-effort abort signal.
//
// Non-streaming adapters are promoted to this shape by emitting exactly
// start, chunk(full content), done.
type Producer func(ctx context.Context) <-chan Chunk
