package coach

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pitchline-ai/pitchline/pkg/llm"
	"github.com/pitchline-ai/pitchline/pkg/llm/mock"
)

func TestRankPainPoints_Success(t *testing.T) {
	provider := mock.WithText(`Here is my analysis:
[
  {"pain": "hours lost hunting for clips", "severity": "high", "feature": "instant-search", "evidence": "We waste an hour a day hunting for clips"},
  {"pain": "wins never shared", "severity": "medium", "feature": "highlight-reels", "evidence": "clips live in DMs"},
  {"pain": "invalid entry", "severity": "low", "feature": "not-a-feature", "evidence": "x"}
]`)
	c := New(provider)

	got := c.RankPainPoints(context.Background(), map[string]string{
		"problem-search":  "We waste an hour a day hunting for clips",
		"problem-sharing": "clips live in DMs",
	})

	if len(got.RankedPains) != 2 {
		t.Fatalf("ranked = %d, want 2 (unknown feature dropped)", len(got.RankedPains))
	}
	if got.RankedPains[0].Feature != "instant-search" || got.RankedPains[0].Severity != "high" {
		t.Errorf("first pain = %+v", got.RankedPains[0])
	}
	if len(got.DemoOrder) == 0 || got.DemoOrder[0] != "instant-search" || got.DemoOrder[1] != "highlight-reels" {
		t.Errorf("demo order = %v", got.DemoOrder)
	}
	if provider.Calls() != 1 {
		t.Errorf("gateway calls = %d, want 1", provider.Calls())
	}

	req := provider.LastRequest()
	if req.ResponseFormat == nil || req.ResponseFormat.Kind != llm.ResponseFormatJSON {
		t.Error("pain ranking must request a JSON response format")
	}
}

func TestRankPainPoints_GatewayFailure(t *testing.T) {
	provider := mock.WithError(errors.New("connection refused"))
	c := New(provider)

	got := c.RankPainPoints(context.Background(), map[string]string{
		"problem-1": "We waste an hour a day hunting for clips",
	})

	if len(got.RankedPains) != 0 || len(got.DemoOrder) != 0 {
		t.Errorf("result = %+v, want empty ranking and demo order", got)
	}
	if got.RankedPains == nil || got.DemoOrder == nil {
		t.Error("slices must be empty, not nil, so the JSON shape stays stable")
	}
}

func TestRankPainPoints_NoProblemAnswers_SkipsGateway(t *testing.T) {
	provider := mock.WithText(`[]`)
	c := New(provider)

	got := c.RankPainPoints(context.Background(), map[string]string{
		"intro-role":      "VP Sales",
		"cost-hours":      "10",
		"mirror-confirm":  "yes",
		"close-next-step": "Thursday demo",
	})

	if len(got.RankedPains) != 0 || len(got.DemoOrder) != 0 {
		t.Errorf("result = %+v, want empty", got)
	}
	if provider.Calls() != 0 {
		t.Errorf("gateway calls = %d, want 0", provider.Calls())
	}
}

func TestRankPainPoints_UnparseableReply(t *testing.T) {
	provider := mock.WithText("I could not find any structured pains, sorry.")
	c := New(provider)

	got := c.RankPainPoints(context.Background(), map[string]string{
		"problem-1": "everything is manual",
	})

	if len(got.RankedPains) != 0 || len(got.DemoOrder) != 0 {
		t.Errorf("result = %+v, want empty on parse failure", got)
	}
}

func TestGenerateMirror_Success(t *testing.T) {
	reply := "So what I'm hearing is that your team burns ten hours a week digging through recordings. Did I get that right?"
	provider := mock.WithText(reply)
	c := New(provider)

	got := c.GenerateMirror(context.Background(), []string{"we burn ten hours a week"}, "mirror", nil)
	if got != reply {
		t.Errorf("mirror = %q", got)
	}
}

func TestGenerateMirror_FallbackOnFailure(t *testing.T) {
	c := New(mock.WithError(errors.New("boom")))

	got := c.GenerateMirror(context.Background(), []string{"anything"}, "mirror", nil)
	if got != mirrorFallback {
		t.Errorf("mirror = %q, want fixed fallback", got)
	}
	if !strings.HasPrefix(got, "So what I'm hearing is") {
		t.Errorf("fallback lost the lead-in convention: %q", got)
	}
}

func TestAnalyzeNote_ClassifiesReply(t *testing.T) {
	provider := mock.WithText("That's a strong buying signal. Lock in the demo date now.")
	c := New(provider)

	got := c.AnalyzeNote(context.Background(), "they asked about pricing tiers", "demo", nil, nil)
	if got.Type != GuidancePositive {
		t.Errorf("type = %q, want positive", got.Type)
	}
	if got.Guidance == "" {
		t.Error("guidance must not be empty")
	}
}

func TestAnalyzeNote_CapsPreviousNotes(t *testing.T) {
	provider := mock.WithText("Keep going.")
	c := New(provider)

	notes := []string{"one", "two", "three", "four", "five"}
	c.AnalyzeNote(context.Background(), "new note", "demo", notes, nil)

	prompt := provider.LastRequest().Messages[1].Content
	if strings.Contains(prompt, "- one\n") || strings.Contains(prompt, "- two\n") {
		t.Errorf("prompt includes notes beyond the most recent three:\n%s", prompt)
	}
	for _, want := range []string{"- three\n", "- four\n", "- five\n"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing recent note %q", want)
		}
	}
}

func TestAnalyzeNote_FallbackOnFailure(t *testing.T) {
	c := New(mock.WithError(errors.New("boom")))

	got := c.AnalyzeNote(context.Background(), "note", "demo", nil, nil)
	if got != noteFallback {
		t.Errorf("guidance = %+v, want fixed fallback", got)
	}
	if got.Type != GuidanceNeutral {
		t.Errorf("fallback type = %q, want neutral", got.Type)
	}
}

func TestGenerateObjectionResponse_Success(t *testing.T) {
	provider := mock.WithText(`{"acknowledge": "a", "associate": "b", "ask": "c", "bridge": "d", "reclose": "e"}`)
	c := New(provider)

	got := c.GenerateObjectionResponse(context.Background(), "it's too expensive")
	want := ObjectionResponse{Acknowledge: "a", Associate: "b", Ask: "c", Bridge: "d", Reclose: "e"}
	if got != want {
		t.Errorf("response = %+v", got)
	}

	req := provider.LastRequest()
	if req.ResponseFormat == nil || req.ResponseFormat.Kind != llm.ResponseFormatJSON {
		t.Error("objection generation must request a JSON response format")
	}
}

func TestGenerateObjectionResponse_FallbackOnFailure(t *testing.T) {
	c := New(mock.WithError(errors.New("boom")))

	got := c.GenerateObjectionResponse(context.Background(), "we already have a tool")
	if got != objectionFallback {
		t.Errorf("response = %+v, want exactly the fixed fallback", got)
	}
}

func TestGenerateObjectionResponse_IncompleteJSONFallsBack(t *testing.T) {
	provider := mock.WithText(`{"acknowledge": "fair point", "ask": "what would change your mind?"}`)
	c := New(provider)

	got := c.GenerateObjectionResponse(context.Background(), "no budget")
	if got != objectionFallback {
		t.Errorf("response = %+v, want fallback for incomplete reply", got)
	}
}

type countingRecorder struct {
	parseFailures int
	fallbacks     int
}

func (r *countingRecorder) ParseFailure(string) { r.parseFailures++ }
func (r *countingRecorder) Fallback(string)     { r.fallbacks++ }

func TestRecorder_CountsParseFailures(t *testing.T) {
	rec := &countingRecorder{}
	c := New(mock.WithText("no json here"), WithRecorder(rec))

	c.RankPainPoints(context.Background(), map[string]string{"problem-1": "pain"})

	if rec.parseFailures != 1 {
		t.Errorf("parse failures = %d, want 1", rec.parseFailures)
	}
	if rec.fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", rec.fallbacks)
	}
}
