// Package playbook holds the scripted call structure: the ordered step tree
// the seller walks through, the questions inside each step, and the fixed
// product feature catalog that pain ranking and demo ordering key into.
//
// Everything here is static data. The UI renders it; the coaching layer reads
// it to build prompts and to validate model output against known identifiers.
package playbook

import "strings"

// ProblemPrefix marks question IDs whose answers describe the prospect's
// problems. Pain ranking only looks at answers under this prefix.
const ProblemPrefix = "problem-"

// Severity levels for ranked pains.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Feature identifies one demoable product capability. Pain ranking tags each
// ranked pain with exactly one feature ID from this catalog.
type Feature struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Pitch string `json:"pitch"`
}

// Question is one scripted prompt the seller asks.
type Question struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Hint   string `json:"hint,omitempty"`
}

// Step is one stage of the call script.
type Step struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Phase     string     `json:"phase"`
	Questions []Question `json:"questions"`
}

// Call phases in script order.
const (
	PhaseDiscovery = "discovery"
	PhaseDemo      = "demo"
	PhaseClose     = "close"
)

var features = []Feature{
	{
		ID:    "instant-search",
		Name:  "Instant Search",
		Pitch: "Find any moment across every recorded call in seconds.",
	},
	{
		ID:    "auto-tagging",
		Name:  "Auto-Tagging",
		Pitch: "Every call is tagged by topic and speaker automatically.",
	},
	{
		ID:    "highlight-reels",
		Name:  "Highlight Reels",
		Pitch: "Turn the best call moments into shareable clips without editing.",
	},
	{
		ID:    "shared-workspaces",
		Name:  "Shared Workspaces",
		Pitch: "The whole team works from one library instead of scattered files.",
	},
	{
		ID:    "usage-analytics",
		Name:  "Usage Analytics",
		Pitch: "See which content actually gets used and what it drives.",
	},
}

var steps = []Step{
	{
		ID:    "opening",
		Title: "Opening",
		Phase: PhaseDiscovery,
		Questions: []Question{
			{ID: "intro-role", Prompt: "What does your role cover day to day?"},
			{ID: "intro-team", Prompt: "How big is the team working with call recordings?"},
		},
	},
	{
		ID:    "problem-exposure",
		Title: "Problem Exposure",
		Phase: PhaseDiscovery,
		Questions: []Question{
			{
				ID:     "problem-workflow",
				Prompt: "Walk me through what happens after a call ends today.",
				Hint:   "Listen for manual steps and handoffs.",
			},
			{
				ID:     "problem-search",
				Prompt: "When someone needs a specific moment from an old call, how do they find it?",
				Hint:   "Listen for time wasted hunting.",
			},
			{
				ID:     "problem-sharing",
				Prompt: "How do wins and key moments get shared across the team?",
				Hint:   "Listen for clips living in DMs and inboxes.",
			},
			{
				ID:     "problem-cost",
				Prompt: "Roughly how many hours a week does the team lose to this?",
				Hint:   "Anchor a number; it feeds the cost breakdown.",
			},
		},
	},
	{
		ID:    "quantify",
		Title: "Quantify the Cost",
		Phase: PhaseDiscovery,
		Questions: []Question{
			{ID: "cost-monthly-spend", Prompt: "What are you spending per month on the current tooling?"},
			{ID: "cost-hours-wasted", Prompt: "And the hours wasted per week we talked about — can we lock that number in?"},
		},
	},
	{
		ID:    "mirror",
		Title: "Mirror & Confirm",
		Phase: PhaseDiscovery,
		Questions: []Question{
			{ID: "mirror-confirm", Prompt: "Restate their pains in their own words and get explicit agreement."},
		},
	},
	{
		ID:    "demo",
		Title: "Targeted Demo",
		Phase: PhaseDemo,
		Questions: []Question{
			{ID: "demo-reaction", Prompt: "After each feature: does this solve what you described?"},
		},
	},
	{
		ID:    "objections",
		Title: "Objections",
		Phase: PhaseClose,
		Questions: []Question{
			{ID: "objection-main", Prompt: "What would stop you from moving forward this week?"},
		},
	},
	{
		ID:    "close",
		Title: "Close",
		Phase: PhaseClose,
		Questions: []Question{
			{ID: "close-next-step", Prompt: "Agree the concrete next step and its date."},
		},
	},
}

// Steps returns the scripted step tree in call order.
func Steps() []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

// Features returns the fixed feature catalog.
func Features() []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	return out
}

// FeatureIDs returns the catalog's identifiers in order.
func FeatureIDs() []string {
	ids := make([]string, len(features))
	for i, f := range features {
		ids[i] = f.ID
	}
	return ids
}

// ValidFeature reports whether id names a catalog feature.
func ValidFeature(id string) bool {
	for _, f := range features {
		if f.ID == id {
			return true
		}
	}
	return false
}

// IsProblemQuestion reports whether a question ID belongs to the problem
// exposure set.
func IsProblemQuestion(id string) bool {
	return strings.HasPrefix(id, ProblemPrefix)
}

// ProblemAnswers filters an answers map down to problem-exposure entries.
func ProblemAnswers(answers map[string]string) map[string]string {
	out := map[string]string{}
	for id, text := range answers {
		if IsProblemQuestion(id) && strings.TrimSpace(text) != "" {
			out[id] = text
		}
	}
	return out
}

// DemoOrder maps ranked pain feature IDs to the order features should be
// demoed: ranked features first, in severity order, then the rest of the
// catalog in its default order. Unknown and duplicate IDs are dropped.
func DemoOrder(rankedFeatureIDs []string) []string {
	seen := map[string]bool{}
	order := make([]string, 0, len(features))
	for _, id := range rankedFeatureIDs {
		if ValidFeature(id) && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, f := range features {
		if !seen[f.ID] {
			seen[f.ID] = true
			order = append(order, f.ID)
		}
	}
	return order
}
