// Package mock provides a scriptable llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/pitchline-ai/pitchline/pkg/llm"
)

// Provider is a test double for llm.Provider. Responses are served in order;
// after the script is exhausted the last entry repeats. The zero value serves
// empty results.
type Provider struct {
	mu        sync.Mutex
	responses []response
	calls     int
	requests  []llm.Request

	// CompleteFunc, when set, overrides the scripted responses entirely.
	CompleteFunc func(ctx context.Context, req llm.Request) (*llm.Result, error)
}

type response struct {
	result *llm.Result
	err    error
}

var _ llm.Provider = (*Provider)(nil)

// New creates an empty mock provider.
func New() *Provider {
	return &Provider{}
}

// WithText returns a provider scripted to reply with a single text result.
func WithText(text string) *Provider {
	p := New()
	p.QueueText(text)
	return p
}

// WithError returns a provider scripted to fail every call with err.
func WithError(err error) *Provider {
	p := New()
	p.QueueError(err)
	return p
}

// QueueText appends a plain-text result to the script.
func (p *Provider) QueueText(text string) {
	p.QueueResult(&llm.Result{
		ID: "mock",
		Choices: []llm.Choice{{
			Message: llm.ResultMessage{
				Role:    llm.RoleAssistant,
				Content: text,
			},
			FinishReason: "stop",
		}},
	})
}

// QueueResult appends a full result to the script.
func (p *Provider) QueueResult(res *llm.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, response{result: res})
}

// QueueError appends a failing call to the script.
func (p *Provider) QueueError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, response{err: err})
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Result, error) {
	if p.CompleteFunc != nil {
		p.mu.Lock()
		p.calls++
		p.requests = append(p.requests, req)
		p.mu.Unlock()
		return p.CompleteFunc(ctx, req)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.calls
	p.calls++
	p.requests = append(p.requests, req)

	if len(p.responses) == 0 {
		return &llm.Result{}, nil
	}
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	r := p.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

// Calls returns how many times Complete was invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastRequest returns the most recent request, or a zero Request when none
// were made.
func (p *Provider) LastRequest() llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return llm.Request{}
	}
	return p.requests[len(p.requests)-1]
}
