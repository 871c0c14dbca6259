// Package provider defines the Provider Port: the uniform capability set
// adapters implement to let the orchestrator complete or stream a chat
// against any backend.
package provider

import (
	"context"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/streammux"
)

// Message is one flattened chat turn. Adapters MUST flatten a messages
// list into whatever upstream representation is required.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResult is a non-streaming response.
type CompletionResult struct {
	Content   string
	Reasoning string
}

// Provider is the capability set every adapter implements. Implementations
// MUST NOT raise for "model not found" — Complete returns (nil, nil) and
// Stream emits a single error chunk.
type Provider interface {
	// Complete performs a non-streaming single-shot completion. Returns
	// (nil, nil) if model is unknown to this provider, never an error for
	// that case.
	Complete(ctx context.Context, model string, messages []Message, timeout time.Duration) (*CompletionResult, error)

	// Stream performs a streaming completion, as a streammux.Producer.
	// Adapters that cannot stream upstream MUST promote to
	// start/chunk(full)/done.
	Stream(ctx context.Context, model string, messages []Message, timeout time.Duration) streammux.Producer

	// ListModels enumerates locally available or remotely offered model
	// IDs.
	ListModels(ctx context.Context) ([]string, error)
}
