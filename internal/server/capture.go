package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pitchline-ai/pitchline/pkg/capture"
)

// captureWriteTimeout bounds a single update write to a slow client.
const captureWriteTimeout = 5 * time.Second

// captureControl is the JSON control message the client sends on the capture
// stream. Binary frames carry PCM audio; text frames carry these.
type captureControl struct {
	Type string `json:"type"` // "start", "stop", "clear"
}

// handleCaptureStream bridges one websocket connection to a transcription
// session. The client streams binary PCM frames in and receives JSON
// capture.Update events out. Each connection gets its own engine.
func (s *Server) handleCaptureStream(w http.ResponseWriter, r *http.Request) {
	if s.newEngine == nil {
		writeError(w, http.StatusNotImplemented, codeUnsupported, "live transcription is not configured")
		return
	}

	engine, err := s.newEngine()
	if err != nil {
		s.log.Error("capture engine construction failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "capture engine unavailable")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("capture stream accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Updates are forwarded to the client from a single writer goroutine. The
	// channel is buffered; a client that cannot keep up loses intermediate
	// interim updates, never finals ordering.
	updates := make(chan capture.Update, 64)
	cs, err := capture.New(engine,
		capture.WithLogger(s.log),
		capture.WithListener(func(u capture.Update) {
			select {
			case updates <- u:
			case <-ctx.Done():
			}
		}),
	)
	if err != nil {
		s.log.Error("capture setup failed", "error", err)
		return
	}

	if err := cs.Start(ctx); err != nil {
		s.log.Error("capture start failed", "error", err)
		_ = conn.Close(websocket.StatusInternalError, "transcription unavailable")
		return
	}
	s.metrics.CaptureSessionStarted(ctx)
	defer func() {
		cs.Stop()
		s.metrics.CaptureSessionEnded(context.Background())
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				wctx, wcancel := context.WithTimeout(ctx, captureWriteTimeout)
				err := wsjson.Write(wctx, conn, u)
				wcancel()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	s.log.Info("capture stream opened", "remote", r.RemoteAddr)
	err = s.captureReadLoop(ctx, conn, cs)
	if err != nil && !errors.Is(err, context.Canceled) {
		status := websocket.CloseStatus(err)
		if status == -1 {
			s.log.Warn("capture stream read failed", "error", err)
		}
	}
	s.log.Info("capture stream closed", "remote", r.RemoteAddr)
}

// captureReadLoop consumes frames until the connection or context ends.
func (s *Server) captureReadLoop(ctx context.Context, conn *websocket.Conn, cs *capture.Capture) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		switch typ {
		case websocket.MessageBinary:
			if err := cs.SendAudio(data); err != nil {
				s.log.Warn("audio forward failed", "error", err)
			}
		case websocket.MessageText:
			var ctrl captureControl
			if err := json.Unmarshal(data, &ctrl); err != nil {
				s.log.Warn("bad control message", "error", err)
				continue
			}
			switch ctrl.Type {
			case "start":
				if err := cs.Start(ctx); err != nil {
					s.log.Warn("capture restart failed", "error", err)
				}
			case "stop":
				cs.Stop()
			case "clear":
				cs.Clear()
			default:
				s.log.Warn("unknown control message", "type", ctrl.Type)
			}
		}
	}
}
