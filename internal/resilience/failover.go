package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllBackendsFailed is returned when every entry in a Failover group
// failed or had an open breaker.
var ErrAllBackendsFailed = errors.New("resilience: all backends failed")

// FailoverConfig configures the per-backend breaker created for each entry.
type FailoverConfig struct {
	Breaker BreakerConfig
}

type entry[T any] struct {
	name    string
	backend T
	breaker *Breaker
}

// Failover routes calls across a primary and ordered fallbacks of the same
// backend type, each behind its own breaker. A failing or open primary is
// bypassed in favour of the next healthy entry.
type Failover[T any] struct {
	entries []entry[T]
	cfg     FailoverConfig
}

// NewFailover creates a group with primary as its first entry.
func NewFailover[T any](primary T, name string, cfg FailoverConfig) *Failover[T] {
	fo := &Failover[T]{cfg: cfg}
	fo.add(name, primary)
	return fo
}

// Add appends a fallback backend, tried after all existing entries.
func (fo *Failover[T]) Add(name string, backend T) {
	fo.add(name, backend)
}

func (fo *Failover[T]) add(name string, backend T) {
	bc := fo.cfg.Breaker
	bc.Name = name
	fo.entries = append(fo.entries, entry[T]{
		name:    name,
		backend: backend,
		breaker: NewBreaker(bc),
	})
}

// Do tries fn against each entry in order until one succeeds. Entries with an
// open breaker are skipped. When everything fails the last error is wrapped
// in ErrAllBackendsFailed.
func (fo *Failover[T]) Do(fn func(T) error) error {
	var lastErr error
	for i := range fo.entries {
		e := &fo.entries[i]
		err := e.breaker.Do(func() error { return fn(e.backend) })
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping backend, breaker open", "backend", e.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", e.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// DoWithResult is Do for calls that return a value. Package-level because Go
// has no method-level type parameters.
func DoWithResult[T, R any](fo *Failover[T], fn func(T) (R, error)) (R, error) {
	var result R
	err := fo.Do(func(backend T) error {
		var innerErr error
		result, innerErr = fn(backend)
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
