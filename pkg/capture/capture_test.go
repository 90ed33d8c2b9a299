package capture_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pitchline-ai/pitchline/pkg/capture"
	"github.com/pitchline-ai/pitchline/pkg/capture/mock"
)

func newStarted(t *testing.T, opts ...capture.Option) (*capture.Capture, *mock.Engine) {
	t.Helper()
	eng := mock.New()
	c, err := capture.New(eng, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c, eng
}

func finalBatch(index int, texts ...string) capture.ResultBatch {
	b := capture.ResultBatch{Index: index}
	for _, txt := range texts {
		b.Results = append(b.Results, capture.Result{Text: txt, IsFinal: true})
	}
	return b
}

func TestNew_NilEngine(t *testing.T) {
	if _, err := capture.New(nil); err == nil {
		t.Fatal("expected error for nil engine")
	}
}

func TestFinalSegments_SequentialIDs(t *testing.T) {
	c, eng := newStarted(t)

	eng.EmitResults(finalBatch(0, "hello there"))
	eng.EmitResults(capture.ResultBatch{
		Index: 1,
		Results: []capture.Result{
			{Text: "hello there", IsFinal: true},
			{Text: " how are you ", IsFinal: true},
		},
	})

	segs := c.Segments()
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if segs[0].ID != 1 || segs[1].ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", segs[0].ID, segs[1].ID)
	}
	if segs[0].Text != "hello there" {
		t.Errorf("segment 0 text = %q", segs[0].Text)
	}
	if segs[1].Text != "how are you" {
		t.Errorf("segment 1 text = %q, want trimmed", segs[1].Text)
	}
	for _, s := range segs {
		if !s.IsFinal {
			t.Errorf("segment %d not marked final", s.ID)
		}
		if s.Timestamp.IsZero() {
			t.Errorf("segment %d has zero timestamp", s.ID)
		}
	}
}

func TestBatchIndex_SkipsAlreadyDelivered(t *testing.T) {
	c, eng := newStarted(t)

	eng.EmitResults(finalBatch(0, "first"))
	// The engine re-sends the full list; only results from Index on count.
	eng.EmitResults(capture.ResultBatch{
		Index: 1,
		Results: []capture.Result{
			{Text: "first", IsFinal: true},
			{Text: "second", IsFinal: true},
		},
	})

	segs := c.Segments()
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2 (index-0 result must not repeat)", len(segs))
	}
	if segs[1].Text != "second" {
		t.Errorf("segment 1 text = %q", segs[1].Text)
	}
}

func TestInterim_AccumulatesAndClearsOnFinal(t *testing.T) {
	c, eng := newStarted(t)

	eng.EmitResults(capture.ResultBatch{
		Index: 0,
		Results: []capture.Result{
			{Text: "we spend about", IsFinal: false},
		},
	})
	if got := c.Interim(); got != "we spend about" {
		t.Errorf("interim = %q", got)
	}

	// A later batch fully replaces the interim line.
	eng.EmitResults(capture.ResultBatch{
		Index: 0,
		Results: []capture.Result{
			{Text: "we spend about ", IsFinal: false},
			{Text: "ten hours", IsFinal: false},
		},
	})
	if got := c.Interim(); got != "we spend about ten hours" {
		t.Errorf("interim = %q", got)
	}

	eng.EmitResults(finalBatch(0, "we spend about ten hours a week"))
	if got := c.Interim(); got != "" {
		t.Errorf("interim = %q, want cleared after final", got)
	}
	if segs := c.Segments(); len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
}

func TestClear_ResetsLogAndIDCounter(t *testing.T) {
	c, eng := newStarted(t)

	eng.EmitResults(finalBatch(0, "one", "two"))
	c.Clear()

	if segs := c.Segments(); len(segs) != 0 {
		t.Fatalf("segments = %d, want 0 after clear", len(segs))
	}
	if got := c.Interim(); got != "" {
		t.Errorf("interim = %q, want empty", got)
	}

	eng.EmitResults(finalBatch(0, "three"))
	segs := c.Segments()
	if len(segs) != 1 || segs[0].ID != 1 {
		t.Fatalf("segments = %+v, want single segment with id 1", segs)
	}
	if !c.Listening() {
		t.Error("clear must not change listening state")
	}
}

func TestAutoRestart_WhileStillListening(t *testing.T) {
	c, eng := newStarted(t)

	eng.EmitEnd()

	if !c.Listening() {
		t.Error("still listening after service-initiated end")
	}
	if got := eng.Starts(); got != 2 {
		t.Errorf("engine starts = %d, want 2 (original + restart)", got)
	}
	if !eng.Active() {
		t.Error("engine session not active after restart")
	}
}

func TestNoRestart_AfterStop(t *testing.T) {
	c, eng := newStarted(t)

	c.Stop()
	eng.EmitEnd()

	if c.Listening() {
		t.Error("listening after stop")
	}
	if got := eng.Starts(); got != 1 {
		t.Errorf("engine starts = %d, want 1 (no restart after stop)", got)
	}
}

func TestRestartFailure_DropsToNotListening(t *testing.T) {
	eng := mock.New()
	eng.StartErrs = []error{nil, errors.New("engine gone")}
	c, err := capture.New(eng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	eng.EmitEnd()

	if c.Listening() {
		t.Error("listening after failed restart")
	}
	if got := eng.Starts(); got != 2 {
		t.Errorf("engine starts = %d, want 2", got)
	}
}

func TestStart_Idempotent(t *testing.T) {
	c, eng := newStarted(t)

	eng.EmitResults(finalBatch(0, "kept"))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if got := eng.Starts(); got != 2 {
		t.Errorf("engine starts = %d, want 2 (restart, not duplicate sessions)", got)
	}
	if segs := c.Segments(); len(segs) != 1 {
		t.Errorf("segments = %d, restart must not drop the log", len(segs))
	}
	if !c.Listening() {
		t.Error("not listening after restart")
	}
}

func TestBenignErrors_Ignored(t *testing.T) {
	c, eng := newStarted(t)

	eng.EmitError("no-speech", "silence timeout")
	if !c.Listening() {
		t.Error("no-speech must not stop listening")
	}

	eng.EmitError("aborted", "aborted by service")
	if !c.Listening() {
		t.Error("aborted must not stop listening")
	}
}

func TestFatalError_StopsListening(t *testing.T) {
	c, eng := newStarted(t)

	eng.EmitResults(capture.ResultBatch{
		Index:   0,
		Results: []capture.Result{{Text: "partial", IsFinal: false}},
	})
	eng.EmitError("not-allowed", "permission denied")

	if c.Listening() {
		t.Error("fatal error must stop listening")
	}
	if got := c.Interim(); got != "" {
		t.Errorf("interim = %q, want cleared", got)
	}
}

func TestStaleSessionEvents_Dropped(t *testing.T) {
	c, eng := newStarted(t)

	// Detach the running session, then replay its events. The old generation
	// must be inert: no restart, no transcript mutation.
	c.Stop()
	eng.EmitResults(finalBatch(0, "late arrival"))
	eng.EmitEnd()

	if c.Listening() {
		t.Error("stale end event restarted a stopped capture")
	}
	if segs := c.Segments(); len(segs) != 0 {
		t.Errorf("segments = %d, stale results must be dropped", len(segs))
	}
}

func TestListener_ReceivesSegmentUpdates(t *testing.T) {
	var updates []capture.Update
	c, eng := newStarted(t, capture.WithListener(func(u capture.Update) {
		updates = append(updates, u)
	}))
	_ = c

	updates = updates[:0]
	eng.EmitResults(finalBatch(0, "noted"))

	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	u := updates[0]
	if u.Segment == nil || u.Segment.Text != "noted" {
		t.Errorf("update = %+v, want segment %q", u, "noted")
	}
	if !u.Listening {
		t.Error("update should report listening")
	}
}

func TestTranscript_JoinsFinals(t *testing.T) {
	c, eng := newStarted(t)

	eng.EmitResults(finalBatch(0, "we use spreadsheets"))
	eng.EmitResults(finalBatch(1, "it takes forever"))

	want := "we use spreadsheets it takes forever"
	if got := c.Transcript(); got != want {
		t.Errorf("transcript = %q, want %q", got, want)
	}
}
