package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitchline-ai/pitchline/pkg/llm"
)

// WrapProvider returns a provider that records the latency of every Complete
// call on the LLMDuration histogram, attributed with the backend name and the
// call outcome.
func (m *Metrics) WrapProvider(name string, next llm.Provider) llm.Provider {
	return &timedProvider{name: name, next: next, metrics: m}
}

type timedProvider struct {
	name    string
	next    llm.Provider
	metrics *Metrics
}

var _ llm.Provider = (*timedProvider)(nil)

func (p *timedProvider) Complete(ctx context.Context, req llm.Request) (*llm.Result, error) {
	start := time.Now()
	res, err := p.next.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("provider", p.name),
		attribute.String("status", status),
	))
	return res, err
}
