package session

// Suggestion statuses. Pending is the only non-terminal state.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Suggestion confidence levels. Low-confidence inferences are never proposed.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
)

// Suggestion is a proposed answer to a scripted question, inferred from
// conversational text and awaiting the seller's accept/reject decision.
type Suggestion struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	Confidence string `json:"confidence"`
	Evidence   string `json:"evidence"`
	Status     string `json:"status"`
}
