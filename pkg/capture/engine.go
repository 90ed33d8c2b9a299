package capture

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by an engine factory when the current platform or
// configuration cannot provide streaming recognition at all. Callers check it
// once at construction; it never surfaces as a runtime failure mid-session.
var ErrUnsupported = errors.New("capture: streaming recognition not supported")

// Error codes engines attach to recognition errors. NoSpeech and Aborted are
// benign: the capture loop ignores them and keeps listening.
const (
	ErrCodeNoSpeech = "no-speech"
	ErrCodeAborted  = "aborted"
	ErrCodeNetwork  = "network"
	ErrCodeAudio    = "audio-capture"
	ErrCodeDenied   = "not-allowed"
)

// EngineError is a coded recognition error reported by an engine session.
type EngineError struct {
	Code    string
	Message string
}

func (e EngineError) Error() string {
	if e.Message == "" {
		return "capture: engine error: " + e.Code
	}
	return "capture: engine error " + e.Code + ": " + e.Message
}

// Result is one recognition hypothesis within a batch.
type Result struct {
	// Text is the recognized transcript for this slot.
	Text string

	// IsFinal marks the hypothesis as committed. Final results never change;
	// non-final results are volatile and will be revised.
	IsFinal bool
}

// ResultBatch carries the engine's full ordered result list along with the
// index of the first result that changed since the previous batch. Consumers
// iterate from Index; everything before it was already delivered.
type ResultBatch struct {
	Index   int
	Results []Result
}

// Events is the callback set a session delivers into. All callbacks are
// invoked from the engine's own goroutine, never concurrently with each other.
type Events struct {
	// OnResults delivers a recognition batch.
	OnResults func(ResultBatch)

	// OnError reports a coded recognition error. The session may or may not
	// end afterwards; OnEnd fires separately if it does.
	OnError func(EngineError)

	// OnEnd fires exactly once when the session stops delivering results,
	// whether from Stop, an error, or the service ending it on its own.
	OnEnd func()
}

// Engine is a streaming speech recognition backend. One engine value supports
// repeated sessions: Start opens a session, Stop ends it, and Start may be
// called again afterwards.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	// Start opens a new recognition session delivering into ev. It returns an
	// error if a session cannot be established; otherwise events flow until
	// Stop is called or the session ends on its own (signalled via ev.OnEnd).
	Start(ctx context.Context, ev Events) error

	// Stop ends the current session, if any. Safe to call when no session is
	// active. The session's OnEnd still fires.
	Stop() error

	// SendAudio delivers a chunk of raw audio to the active session. Returns
	// an error when no session is active.
	SendAudio(chunk []byte) error
}
