// Package mock provides a scriptable capture.Engine for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/pitchline-ai/pitchline/pkg/capture"
)

// Engine is a test double for capture.Engine. Tests drive it by calling the
// Emit methods, which deliver events into whatever session is currently
// active. The zero value is ready to use.
type Engine struct {
	mu     sync.Mutex
	events capture.Events
	active bool

	starts int
	stops  int
	audio  [][]byte

	// StartErrs holds per-call Start errors: the nth Start returns
	// StartErrs[n] when set. Entries beyond the slice succeed.
	StartErrs []error
}

var _ capture.Engine = (*Engine)(nil)

// New creates an idle mock engine.
func New() *Engine {
	return &Engine{}
}

// Start implements capture.Engine.
func (e *Engine) Start(ctx context.Context, ev capture.Events) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.starts
	e.starts++
	if idx < len(e.StartErrs) && e.StartErrs[idx] != nil {
		return e.StartErrs[idx]
	}

	e.events = ev
	e.active = true
	return nil
}

// Stop implements capture.Engine. It does not fire OnEnd on its own; tests
// call EmitEnd explicitly to model the service's end event.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
	return nil
}

// SendAudio implements capture.Engine, recording chunks for inspection.
func (e *Engine) SendAudio(chunk []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return errors.New("mock: no active session")
	}
	e.audio = append(e.audio, chunk)
	return nil
}

// EmitResults delivers a result batch into the active session.
func (e *Engine) EmitResults(batch capture.ResultBatch) {
	if ev := e.current(); ev.OnResults != nil {
		ev.OnResults(batch)
	}
}

// EmitError delivers a coded error into the active session.
func (e *Engine) EmitError(code, message string) {
	if ev := e.current(); ev.OnError != nil {
		ev.OnError(capture.EngineError{Code: code, Message: message})
	}
}

// EmitEnd marks the session inactive and fires its end event, modelling the
// recognition service ending the session on its own.
func (e *Engine) EmitEnd() {
	e.mu.Lock()
	ev := e.events
	e.active = false
	e.mu.Unlock()
	if ev.OnEnd != nil {
		ev.OnEnd()
	}
}

// Starts returns how many times Start was called.
func (e *Engine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

// Active reports whether a session is currently running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Audio returns the audio chunks received so far.
func (e *Engine) Audio() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.audio))
	copy(out, e.audio)
	return out
}

func (e *Engine) current() capture.Events {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events
}
