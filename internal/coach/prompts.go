package coach

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pitchline-ai/pitchline/internal/playbook"
)

// persona is the shared system prompt. Every operation layers its task
// instructions on top of this.
const persona = `You are an elite B2B sales coach listening in on a live discovery call.
You are terse, tactical, and specific. You never invent facts the prospect did not state.
You answer in plain language a seller can act on mid-call.`

// mirrorLeadIn and mirrorConfirm bound the mirror-statement convention: open
// in the prospect's corner, close asking for explicit agreement.
const (
	mirrorLeadIn  = "So what I'm hearing is"
	mirrorConfirm = "Did I get that right?"
)

// painRankingPrompt asks for a ranked JSON array over the problem-exposure
// answers. Feature IDs come from the fixed catalog so the reply can be
// validated against known identifiers.
func painRankingPrompt(problemAnswers map[string]string) string {
	var b strings.Builder
	b.WriteString("Rank the prospect's pain points from their discovery answers below.\n\n")
	b.WriteString("Answers:\n")
	for _, id := range sortedKeys(problemAnswers) {
		fmt.Fprintf(&b, "- %s: %s\n", id, problemAnswers[id])
	}
	b.WriteString("\nProduct features you may reference (use the id exactly):\n")
	for _, f := range playbook.Features() {
		fmt.Fprintf(&b, "- %s: %s\n", f.ID, f.Pitch)
	}
	b.WriteString(`
Select at most 3 pains, ordered most severe first. Reply with ONLY a JSON array where each element is:
{"pain": "<short pain summary>", "severity": "high"|"medium"|"low", "feature": "<one feature id from the list>", "evidence": "<verbatim quote from the answers>"}`)
	return b.String()
}

// mirrorPrompt asks for a single confirming paragraph in the prospect's own
// words.
func mirrorPrompt(customerAnswers []string, currentStep string, answers map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The call is at step %q. Write a mirror statement for the seller to say out loud.\n\n", currentStep)
	b.WriteString("The prospect said, in order:\n")
	for _, a := range customerAnswers {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	if len(answers) > 0 {
		b.WriteString("\nEverything captured so far:\n")
		for _, id := range sortedKeys(answers) {
			fmt.Fprintf(&b, "- %s: %s\n", id, answers[id])
		}
	}
	fmt.Fprintf(&b, `
Write ONE natural paragraph that restates their situation using their own words and numbers.
Open with %q and end with the exact question %q. No preamble, no bullet points.`,
		mirrorLeadIn, mirrorConfirm)
	return b.String()
}

// notePrompt asks for a short tactical read on a note the seller just typed.
func notePrompt(note, currentStep string, previousNotes []string, answers map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The call is at step %q. The seller just noted:\n%s\n", currentStep, note)
	if len(previousNotes) > 0 {
		b.WriteString("\nEarlier notes, oldest first:\n")
		for _, n := range previousNotes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	if len(answers) > 0 {
		b.WriteString("\nKnown answers:\n")
		for _, id := range sortedKeys(answers) {
			fmt.Fprintf(&b, "- %s: %s\n", id, answers[id])
		}
	}
	b.WriteString("\nIn at most 3 sentences, tell the seller what this means and what to do next.")
	return b.String()
}

// objectionPrompt asks for the five-field rebuttal structure as strict JSON.
func objectionPrompt(objection string) string {
	return fmt.Sprintf(`The prospect just objected: %q

Build a rebuttal using the acknowledge/associate/ask/bridge/reclose framework:
- acknowledge: validate the concern without conceding.
- associate: relate it to a similar customer who had the same concern.
- ask: one question that isolates the real blocker.
- bridge: connect their stated pain back to the solution.
- reclose: a low-pressure next-step close.

Reply with ONLY a JSON object with exactly these five string fields:
{"acknowledge": "...", "associate": "...", "ask": "...", "bridge": "...", "reclose": "..."}`, objection)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
