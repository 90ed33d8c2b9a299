package resilience

import (
	"context"

	"github.com/pitchline-ai/pitchline/pkg/llm"
)

// LLMFailover implements llm.Provider with automatic failover across
// configured backends. The coaching layer sees one provider; which vendor
// actually answered is an operational detail.
type LLMFailover struct {
	group *Failover[llm.Provider]
}

var _ llm.Provider = (*LLMFailover)(nil)

// NewLLMFailover creates a failover provider with primary as the preferred
// backend.
func NewLLMFailover(primary llm.Provider, name string, cfg FailoverConfig) *LLMFailover {
	return &LLMFailover{group: NewFailover(primary, name, cfg)}
}

// Add registers an additional backend, tried after all existing ones.
func (f *LLMFailover) Add(name string, provider llm.Provider) {
	f.group.Add(name, provider)
}

// Complete implements llm.Provider.
func (f *LLMFailover) Complete(ctx context.Context, req llm.Request) (*llm.Result, error) {
	return DoWithResult(f.group, func(p llm.Provider) (*llm.Result, error) {
		return p.Complete(ctx, req)
	})
}
