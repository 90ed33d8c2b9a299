// Package llm defines the vendor-neutral request and result shapes for hosted
// Large Language Model backends, plus the Provider interface the coaching
// layer is written against.
//
// A provider wraps one concrete vendor API (Anthropic Messages, OpenAI Chat
// Completions, or any backend reachable through any-llm-go) and exposes a
// single synchronous Complete call. Swapping vendors means implementing one
// adapter package against these types; callers never see wire formats.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Provider is the abstraction over any LLM backend.
//
// Each Complete call is one-shot and synchronous: no retries, no backoff, no
// streaming. Failover across backends is layered on top (see
// internal/resilience), not baked into providers.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error if the request cannot be built, the transport fails,
	// or ctx is cancelled before the completion arrives. A syntactically
	// malformed but successful vendor response degrades to an empty result
	// rather than an error; downstream callers apply their own fallbacks.
	Complete(ctx context.Context, req Request) (*Result, error)
}
