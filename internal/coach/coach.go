// Package coach implements the four coaching operations: pain-point ranking,
// mirror-statement generation, note analysis, and objection rebuttals. Each
// builds a prompt from caller context, makes one gateway call, parses the
// reply defensively, and falls back to a deterministic value on any failure.
// Coaching never returns an error to its caller; a broken model reply must
// not break the call in progress.
package coach

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pitchline-ai/pitchline/internal/playbook"
	"github.com/pitchline-ai/pitchline/pkg/llm"
)

// maxPreviousNotes caps the note-analysis context window.
const maxPreviousNotes = 3

// RankedPain is one entry in a pain ranking.
type RankedPain struct {
	Pain     string `json:"pain"`
	Severity string `json:"severity"`
	Feature  string `json:"feature"`
	Evidence string `json:"evidence"`
}

// PainRanking is the result of RankPainPoints. Both slices are empty when no
// problem answers exist, when the gateway fails, and when the reply cannot be
// parsed; callers cannot distinguish these cases from the shape alone.
type PainRanking struct {
	RankedPains []RankedPain `json:"rankedPains"`
	DemoOrder   []string     `json:"demoOrder"`
}

// NoteGuidance is the result of AnalyzeNote.
type NoteGuidance struct {
	Guidance string `json:"guidance"`
	Type     string `json:"type"`
}

// ObjectionResponse is the five-part rebuttal structure.
type ObjectionResponse struct {
	Acknowledge string `json:"acknowledge"`
	Associate   string `json:"associate"`
	Ask         string `json:"ask"`
	Bridge      string `json:"bridge"`
	Reclose     string `json:"reclose"`
}

// Fallback values returned whenever a gateway call or parse fails.
var (
	mirrorFallback = "So what I'm hearing is that the current way of working is costing you real time and money every week. Did I get that right?"

	noteFallback = NoteGuidance{
		Guidance: "Noted. Keep the conversation anchored on the pains the prospect already named.",
		Type:     GuidanceNeutral,
	}

	objectionFallback = ObjectionResponse{
		Acknowledge: "That's a completely fair concern, and I'm glad you raised it now.",
		Associate:   "A lot of teams we work with said exactly the same thing before they switched.",
		Ask:         "Can I ask what specifically would need to be true for this to feel like an easy yes?",
		Bridge:      "Based on what you told me earlier, the cost of staying with the current process is the real risk here.",
		Reclose:     "How about we agree on a small next step and you judge the results for yourself?",
	}
)

// Recorder receives coaching failure signals for metrics. Implementations
// must be safe for concurrent use.
type Recorder interface {
	ParseFailure(op string)
	Fallback(op string)
}

type noopRecorder struct{}

func (noopRecorder) ParseFailure(string) {}
func (noopRecorder) Fallback(string)     {}

// Option is a functional option for Coach.
type Option func(*Coach)

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coach) {
		c.log = log
	}
}

// WithRecorder wires failure counters into a metrics sink.
func WithRecorder(rec Recorder) Option {
	return func(c *Coach) {
		c.rec = rec
	}
}

// Coach runs the coaching operations over an LLM provider.
type Coach struct {
	provider llm.Provider
	log      *slog.Logger
	rec      Recorder
}

// New creates a Coach over the given provider.
func New(provider llm.Provider, opts ...Option) *Coach {
	c := &Coach{
		provider: provider,
		log:      slog.Default(),
		rec:      noopRecorder{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RankPainPoints ranks the prospect's pains from their problem-exposure
// answers. Answers whose question IDs lack the problem prefix are ignored;
// with no qualifying answers it returns an empty ranking without calling the
// gateway at all.
func (c *Coach) RankPainPoints(ctx context.Context, answers map[string]string) PainRanking {
	const op = "rank_pains"
	empty := PainRanking{RankedPains: []RankedPain{}, DemoOrder: []string{}}

	problems := playbook.ProblemAnswers(answers)
	if len(problems) == 0 {
		return empty
	}

	reply, err := c.complete(ctx, painRankingPrompt(problems), &llm.ResponseFormat{Kind: llm.ResponseFormatJSON})
	if err != nil {
		c.fail(op, "gateway call failed", err)
		return empty
	}

	raw, ok := firstJSONArray(reply)
	if !ok {
		c.parseFail(op, "no JSON array in reply", reply)
		return empty
	}

	var pains []RankedPain
	if err := json.Unmarshal([]byte(raw), &pains); err != nil {
		c.parseFail(op, "JSON array did not decode", reply)
		return empty
	}

	ranked := make([]RankedPain, 0, 3)
	for _, p := range pains {
		if len(ranked) == 3 {
			break
		}
		if !playbook.ValidFeature(p.Feature) {
			c.log.Warn("coach: dropping pain with unknown feature", "op", op, "feature", p.Feature)
			continue
		}
		switch p.Severity {
		case playbook.SeverityHigh, playbook.SeverityMedium, playbook.SeverityLow:
		default:
			p.Severity = playbook.SeverityMedium
		}
		ranked = append(ranked, p)
	}
	if len(ranked) == 0 {
		return empty
	}

	featureIDs := make([]string, len(ranked))
	for i, p := range ranked {
		featureIDs[i] = p.Feature
	}
	return PainRanking{
		RankedPains: ranked,
		DemoOrder:   playbook.DemoOrder(featureIDs),
	}
}

// GenerateMirror produces one confirming paragraph restating the prospect's
// situation in their own words.
func (c *Coach) GenerateMirror(ctx context.Context, customerAnswers []string, currentStep string, answers map[string]string) string {
	const op = "mirror"

	reply, err := c.complete(ctx, mirrorPrompt(customerAnswers, currentStep, answers), nil)
	if err != nil {
		c.fail(op, "gateway call failed", err)
		return mirrorFallback
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		c.fail(op, "empty reply", nil)
		return mirrorFallback
	}
	return reply
}

// AnalyzeNote produces a short tactical read on a note the seller just took,
// classified into one of the four guidance categories. At most the three most
// recent previous notes are forwarded as context.
func (c *Coach) AnalyzeNote(ctx context.Context, note, currentStep string, previousNotes []string, answers map[string]string) NoteGuidance {
	const op = "note"

	if len(previousNotes) > maxPreviousNotes {
		previousNotes = previousNotes[len(previousNotes)-maxPreviousNotes:]
	}

	reply, err := c.complete(ctx, notePrompt(note, currentStep, previousNotes, answers), nil)
	if err != nil {
		c.fail(op, "gateway call failed", err)
		return noteFallback
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		c.fail(op, "empty reply", nil)
		return noteFallback
	}
	return NoteGuidance{
		Guidance: reply,
		Type:     classifyGuidance(reply),
	}
}

// GenerateObjectionResponse produces the five-field rebuttal for a single
// objection. Any failure, including a structurally incomplete reply, yields
// the fixed fallback set so the caller never sees an empty rebuttal.
func (c *Coach) GenerateObjectionResponse(ctx context.Context, objection string) ObjectionResponse {
	const op = "objection"

	reply, err := c.complete(ctx, objectionPrompt(objection), &llm.ResponseFormat{Kind: llm.ResponseFormatJSON})
	if err != nil {
		c.fail(op, "gateway call failed", err)
		return objectionFallback
	}

	raw, ok := firstJSONObject(reply)
	if !ok {
		c.parseFail(op, "no JSON object in reply", reply)
		return objectionFallback
	}

	var resp ObjectionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		c.parseFail(op, "JSON object did not decode", reply)
		return objectionFallback
	}
	if resp.Acknowledge == "" || resp.Associate == "" || resp.Ask == "" || resp.Bridge == "" || resp.Reclose == "" {
		c.parseFail(op, "rebuttal missing required fields", reply)
		return objectionFallback
	}
	return resp
}

// complete issues one gateway call with the shared persona and a task prompt.
func (c *Coach) complete(ctx context.Context, task string, format *llm.ResponseFormat) (string, error) {
	res, err := c.provider.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			llm.SystemMessage(persona),
			llm.UserMessage(task),
		},
		ResponseFormat: format,
	})
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

func (c *Coach) fail(op, msg string, err error) {
	c.log.Warn("coach: "+msg, "op", op, "error", err)
	c.rec.Fallback(op)
}

func (c *Coach) parseFail(op, msg, reply string) {
	if len(reply) > 200 {
		reply = reply[:200] + "..."
	}
	c.log.Warn("coach: "+msg, "op", op, "reply", reply)
	c.rec.ParseFailure(op)
	c.rec.Fallback(op)
}
