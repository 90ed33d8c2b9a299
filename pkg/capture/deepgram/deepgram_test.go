package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/pitchline-ai/pitchline/pkg/capture"
)

func TestNew_NoAPIKey(t *testing.T) {
	_, err := New("")
	if !errors.Is(err, capture.ErrUnsupported) {
		t.Fatalf("error = %v, want capture.ErrUnsupported", err)
	}
}

func TestBuildURL(t *testing.T) {
	e, err := New("dg-key", WithModel("base"), WithLanguage("de"), WithSampleRate(48000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	raw, err := e.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	q := u.Query()
	want := map[string]string{
		"model":           "base",
		"language":        "de",
		"sample_rate":     "48000",
		"interim_results": "true",
		"punctuate":       "true",
		"encoding":        "linear16",
		"channels":        "1",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
}

func TestStop_BoundedWhenRemoteHangs(t *testing.T) {
	connected := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		close(connected)
		// Read until the client drops the connection, never closing first.
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	old := closeGrace
	closeGrace = 100 * time.Millisecond
	defer func() { closeGrace = old }()

	e, err := New("dg-key", WithEndpoint("ws"+strings.TrimPrefix(ts.URL, "http")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Start(ctx, capture.Events{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-connected

	stopped := make(chan struct{})
	go func() {
		_ = e.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the close grace elapsed")
	}
}

func resultsMessage(t *testing.T, transcript string, isFinal bool) deepgramMessage {
	t.Helper()
	raw := map[string]any{
		"type":     "Results",
		"is_final": isFinal,
		"channel": map[string]any{
			"alternatives": []map[string]any{{"transcript": transcript}},
		},
	}
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var dm deepgramMessage
	if err := json.Unmarshal(data, &dm); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return dm
}

func TestFold_InterimThenFinal(t *testing.T) {
	s := &session{}

	batch, ok := s.fold(resultsMessage(t, "hello wor", false))
	if !ok {
		t.Fatal("interim batch dropped")
	}
	if batch.Index != 0 || len(batch.Results) != 1 || batch.Results[0].IsFinal {
		t.Errorf("batch = %+v", batch)
	}

	batch, ok = s.fold(resultsMessage(t, "hello world", true))
	if !ok {
		t.Fatal("final batch dropped")
	}
	if batch.Index != 0 || !batch.Results[0].IsFinal {
		t.Errorf("batch = %+v", batch)
	}

	// The next hypothesis lands after the committed final.
	batch, ok = s.fold(resultsMessage(t, "and more", false))
	if !ok {
		t.Fatal("second interim dropped")
	}
	if batch.Index != 1 {
		t.Errorf("index = %d, want 1", batch.Index)
	}
	if len(batch.Results) != 2 || batch.Results[0].Text != "hello world" {
		t.Errorf("results = %+v, want committed final carried forward", batch.Results)
	}
}

func TestFold_DropsEmpty(t *testing.T) {
	s := &session{}

	if _, ok := s.fold(resultsMessage(t, "", false)); ok {
		t.Error("empty interim should be dropped")
	}
	if _, ok := s.fold(resultsMessage(t, "", true)); ok {
		t.Error("empty final should be dropped")
	}
	if len(s.finals) != 0 {
		t.Errorf("finals = %d, want 0", len(s.finals))
	}
}
