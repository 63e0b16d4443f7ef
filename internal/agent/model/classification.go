package model

// Workflow identifies which execution graph handles a query.
type Workflow string

const (
	// WorkflowMedical runs the translation-augmented literature search graph.
	WorkflowMedical Workflow = "medical"
	// WorkflowGeneral is the safe default for everything else.
	WorkflowGeneral Workflow = "general"
)

// Valid reports whether w names a known workflow.
func (w Workflow) Valid() bool {
	return w == WorkflowMedical || w == WorkflowGeneral
}

// ClassifyMethod records how a classification was produced.
type ClassifyMethod string

const (
	// MethodLLM means the model returned a well-formed JSON decision.
	MethodLLM ClassifyMethod = "llm"
	// MethodFallbackText means JSON extraction failed and a substring scan of
	// the raw response decided the workflow.
	MethodFallbackText ClassifyMethod = "fallback-text"
	// MethodFallbackError means the model call itself failed or timed out.
	MethodFallbackError ClassifyMethod = "fallback-error"
)

// Classification is the outcome of routing a single query.
type Classification struct {
	Workflow   Workflow       `json:"workflow"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	Method     ClassifyMethod `json:"method"`
}

// FallbackClassification is the hardcoded safe default used when the
// classifier cannot produce a decision by any other means.
func FallbackClassification(reason string) *Classification {
	return &Classification{
		Workflow:   WorkflowGeneral,
		Confidence: 0.5,
		Reason:     reason,
		Method:     MethodFallbackError,
	}
}
