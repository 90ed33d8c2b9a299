// Package capture maintains a live call transcript over a streaming speech
// recognition engine. It keeps an append-only log of finalized segments plus a
// single volatile interim line, and it survives the engine ending sessions on
// its own by restarting as long as the caller still wants to listen.
//
// The central abstraction is Engine: one injected recognition backend (see
// pkg/capture/deepgram for the real one, pkg/capture/mock for tests). Capture
// itself holds no audio or vendor logic.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Segment is one finalized transcript entry. IDs are strictly increasing and
// equal the number of finals recorded since the last Clear.
type Segment struct {
	ID        uint64    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsFinal   bool      `json:"isFinal"`
}

// Update is a state-change notification delivered to the listener registered
// with WithListener. Segment is non-nil only when a new final was appended.
type Update struct {
	Listening bool     `json:"listening"`
	Interim   string   `json:"interim"`
	Segment   *Segment `json:"segment,omitempty"`
}

// Option is a functional option for Capture.
type Option func(*Capture)

// WithListener registers a callback invoked after every observable state
// change. It is called without internal locks held; implementations may call
// back into the Capture.
func WithListener(fn func(Update)) Option {
	return func(c *Capture) {
		c.listener = fn
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Capture) {
		c.log = log
	}
}

// Capture is the transcript state machine. All methods are safe for
// concurrent use.
type Capture struct {
	engine   Engine
	listener func(Update)
	log      *slog.Logger

	mu sync.Mutex

	// listening is the caller's intent to capture. It is the sole guard
	// deciding whether an ended engine session restarts: Stop clears it before
	// touching the engine, so a concurrent end event never resurrects a
	// session the caller just stopped.
	listening bool

	// gen identifies the current engine session. Events carrying a stale
	// generation are dropped, which is how Stop and Start detach the previous
	// session's end handling.
	gen uint64

	ctx      context.Context
	segments []Segment
	interim  string
	nextID   uint64
}

// New creates a Capture over the given engine.
func New(engine Engine, opts ...Option) (*Capture, error) {
	if engine == nil {
		return nil, errors.New("capture: engine must not be nil")
	}
	c := &Capture{
		engine: engine,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Start begins (or restarts) listening. It is idempotent: when a session is
// already active it is torn down first, so at most one session delivers
// events at any time. ctx governs the session and any automatic restarts.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	wasListening := c.listening
	c.gen++
	gen := c.gen
	c.listening = true
	c.interim = ""
	c.ctx = ctx
	c.mu.Unlock()

	if wasListening {
		// The old session's generation is already stale; stopping it just
		// releases the engine resources.
		_ = c.engine.Stop()
	}

	if err := c.engine.Start(ctx, c.events(gen)); err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.listening = false
		}
		c.mu.Unlock()
		c.notify(nil)
		return err
	}

	c.notify(nil)
	return nil
}

// Stop ends listening. The intent flag is cleared before the engine is
// touched so that the session's end event does not trigger a restart.
func (c *Capture) Stop() {
	c.mu.Lock()
	c.listening = false
	c.gen++
	c.interim = ""
	c.mu.Unlock()

	_ = c.engine.Stop()
	c.notify(nil)
}

// Clear empties the finalized transcript, drops any interim text, and resets
// the segment ID counter. Listening state is unaffected.
func (c *Capture) Clear() {
	c.mu.Lock()
	c.segments = nil
	c.interim = ""
	c.nextID = 0
	c.mu.Unlock()
	c.notify(nil)
}

// SendAudio forwards an audio chunk to the active engine session.
func (c *Capture) SendAudio(chunk []byte) error {
	c.mu.Lock()
	listening := c.listening
	c.mu.Unlock()
	if !listening {
		return errors.New("capture: not listening")
	}
	return c.engine.SendAudio(chunk)
}

// Listening reports whether the capture currently intends to listen.
func (c *Capture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Interim returns the current volatile interim text.
func (c *Capture) Interim() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interim
}

// Segments returns a copy of the finalized transcript log.
func (c *Capture) Segments() []Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Segment, len(c.segments))
	copy(out, c.segments)
	return out
}

// Transcript returns the finalized segments joined into one string, oldest
// first, separated by single spaces.
func (c *Capture) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := make([]string, 0, len(c.segments))
	for _, s := range c.segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}

// events builds the callback set for one engine session generation.
func (c *Capture) events(gen uint64) Events {
	return Events{
		OnResults: func(b ResultBatch) { c.onResults(gen, b) },
		OnError:   func(e EngineError) { c.onError(gen, e) },
		OnEnd:     func() { c.onEnd(gen) },
	}
}

// onResults folds a recognition batch into the transcript. Only results from
// the batch's change index onward are examined; finals are appended with the
// next sequential ID and clear the interim line, non-finals accumulate into
// the interim line with the last batch winning.
func (c *Capture) onResults(gen uint64, batch ResultBatch) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	var appended []Segment
	var sawInterim bool
	var interim strings.Builder

	start := batch.Index
	if start < 0 {
		start = 0
	}
	for i := start; i < len(batch.Results); i++ {
		r := batch.Results[i]
		if r.IsFinal {
			c.nextID++
			seg := Segment{
				ID:        c.nextID,
				Text:      strings.TrimSpace(r.Text),
				Timestamp: time.Now(),
				IsFinal:   true,
			}
			c.segments = append(c.segments, seg)
			c.interim = ""
			appended = append(appended, seg)
		} else {
			sawInterim = true
			interim.WriteString(r.Text)
		}
	}
	if sawInterim {
		c.interim = interim.String()
	}
	c.mu.Unlock()

	if len(appended) == 0 {
		if sawInterim {
			c.notify(nil)
		}
		return
	}
	for i := range appended {
		c.notify(&appended[i])
	}
}

// onError handles a coded engine error. Benign codes keep the session going;
// anything else stops listening.
func (c *Capture) onError(gen uint64, ee EngineError) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	switch ee.Code {
	case ErrCodeNoSpeech, ErrCodeAborted:
		c.mu.Unlock()
		c.log.Debug("capture: ignoring benign recognition error", "code", ee.Code)
		return
	}
	c.listening = false
	c.interim = ""
	c.mu.Unlock()

	c.log.Warn("capture: recognition error, stopping", "code", ee.Code, "message", ee.Message)
	c.notify(nil)
}

// onEnd handles the engine session ending. If the caller still wants to
// listen, the session restarts exactly once per end event; a failed restart
// drops to not-listening rather than looping.
func (c *Capture) onEnd(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if !c.listening {
		c.interim = ""
		c.mu.Unlock()
		c.notify(nil)
		return
	}

	c.gen++
	newGen := c.gen
	ctx := c.ctx
	c.interim = ""
	c.mu.Unlock()

	if err := c.engine.Start(ctx, c.events(newGen)); err != nil {
		c.mu.Lock()
		if c.gen == newGen {
			c.listening = false
		}
		c.mu.Unlock()
		c.log.Warn("capture: restart after session end failed", "error", err)
		c.notify(nil)
	}
}

// notify delivers a state snapshot to the registered listener, if any.
func (c *Capture) notify(seg *Segment) {
	if c.listener == nil {
		return
	}
	c.mu.Lock()
	u := Update{
		Listening: c.listening,
		Interim:   c.interim,
		Segment:   seg,
	}
	c.mu.Unlock()
	c.listener(u)
}
