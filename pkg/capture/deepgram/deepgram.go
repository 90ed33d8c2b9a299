// Package deepgram provides a capture.Engine backed by the Deepgram streaming
// WebSocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/pitchline-ai/pitchline/pkg/capture"
)

const (
	defaultEndpoint   = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(e *Engine) {
		e.language = language
	}
}

// WithSampleRate sets the PCM sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(e *Engine) {
		e.sampleRate = rate
	}
}

// WithEndpoint overrides the streaming endpoint URL, e.g. for tests.
func WithEndpoint(endpoint string) Option {
	return func(e *Engine) {
		e.endpoint = endpoint
	}
}

// Engine implements capture.Engine over the Deepgram streaming API. One
// Engine supports repeated sessions; at most one is active at a time.
type Engine struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
	endpoint   string

	mu   sync.Mutex
	sess *session
}

var _ capture.Engine = (*Engine)(nil)

// New creates a new Deepgram Engine. An empty apiKey means streaming
// recognition is unavailable and returns capture.ErrUnsupported so callers
// can fall back at construction rather than fail mid-call.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram: no api key: %w", capture.ErrUnsupported)
	}
	e := &Engine{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		endpoint:   defaultEndpoint,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Start implements capture.Engine. Any previous session is closed first.
func (e *Engine) Start(ctx context.Context, ev capture.Events) error {
	wsURL, err := e.buildURL()
	if err != nil {
		return fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+e.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &session{
		conn:   conn,
		events: ev,
		audio:  make(chan []byte, 256),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	prev := e.sess
	e.sess = sess
	e.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return nil
}

// Stop implements capture.Engine.
func (e *Engine) Stop() error {
	e.mu.Lock()
	sess := e.sess
	e.sess = nil
	e.mu.Unlock()
	if sess != nil {
		sess.close()
	}
	return nil
}

// SendAudio implements capture.Engine.
func (e *Engine) SendAudio(chunk []byte) error {
	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()
	if sess == nil {
		return errors.New("deepgram: no active session")
	}
	return sess.sendAudio(chunk)
}

// buildURL constructs the streaming endpoint URL with recognition parameters.
func (e *Engine) buildURL() (string, error) {
	u, err := url.Parse(e.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", e.model)
	q.Set("language", e.language)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(e.sampleRate))
	q.Set("channels", "1")

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// deepgramMessage is the JSON structure of a Deepgram streaming message. Only
// the fields this engine reads are declared.
type deepgramMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	Description string `json:"description"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is one live Deepgram connection. It bridges the vendor's
// incremental result stream onto the full-list batch shape the capture layer
// consumes by tracking committed finals locally.
type session struct {
	conn   *websocket.Conn
	events capture.Events
	audio  chan []byte

	done    chan struct{}
	once    sync.Once
	endOnce sync.Once
	wg      sync.WaitGroup

	// finals is the committed result prefix, owned by readLoop.
	finals []capture.Result
}

func (s *session) sendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	}
}

// closeGrace bounds how long close waits for the remote to finish the stream
// after CloseStream before the connection is dropped.
var closeGrace = 5 * time.Second

// close terminates the session. The end event fires from readLoop once the
// connection drops.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		// Ask Deepgram to flush pending audio before the connection drops.
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))

		finished := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
			s.conn.Close(websocket.StatusNormalClosure, "session closed")
		case <-time.After(closeGrace):
			// The remote never ended the stream. Dropping the connection
			// unblocks the read loop.
			s.conn.Close(websocket.StatusNormalClosure, "session closed")
			<-finished
		}
	})
}

// writeLoop forwards queued audio chunks as binary frames.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case chunk := <-s.audio:
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives Deepgram messages and dispatches capture events. When the
// connection ends for any reason it fires the session's end event exactly
// once.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer s.endOnce.Do(func() {
		if s.events.OnEnd != nil {
			s.events.OnEnd()
		}
	})

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		var dm deepgramMessage
		if err := json.Unmarshal(msg, &dm); err != nil {
			continue
		}

		switch dm.Type {
		case "Results":
			if batch, ok := s.fold(dm); ok && s.events.OnResults != nil {
				s.events.OnResults(batch)
			}
		case "Error":
			if s.events.OnError != nil {
				s.events.OnError(capture.EngineError{
					Code:    capture.ErrCodeNetwork,
					Message: dm.Description,
				})
			}
		}
	}
}

// fold converts one incremental Deepgram result into a full-list batch: the
// committed finals plus the current hypothesis, with Index pointing at the
// slot that changed.
func (s *session) fold(dm deepgramMessage) (capture.ResultBatch, bool) {
	if len(dm.Channel.Alternatives) == 0 {
		return capture.ResultBatch{}, false
	}
	text := dm.Channel.Alternatives[0].Transcript
	if text == "" && !dm.IsFinal {
		return capture.ResultBatch{}, false
	}

	idx := len(s.finals)
	current := capture.Result{Text: text, IsFinal: dm.IsFinal}

	results := make([]capture.Result, 0, idx+1)
	results = append(results, s.finals...)
	results = append(results, current)

	if dm.IsFinal {
		if text == "" {
			// Deepgram finalizes silence as an empty transcript; drop it
			// rather than logging an empty segment.
			return capture.ResultBatch{}, false
		}
		s.finals = append(s.finals, current)
	}

	return capture.ResultBatch{Index: idx, Results: results}, true
}
