package model

import (
	"github.com/cloudwego/eino/schema"
)

// AgentState stores per-turn state for the Eino graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//
// History is append-only: node post-handlers concatenate new messages onto the
// sequence and never edit or delete prior entries.
type AgentState struct {
	ConversationID string
	Query          string // the original (Korean) user query for this turn
	History        []*schema.Message
	ToolCallIDSeq  int // local sequence to synthesize tool_call_id when provider omits
}

// QueryInput is the graph input for one user turn.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// TurnResult is the externally observed outcome of one turn.
type TurnResult struct {
	Answer         string
	ToolTrace      string
	Workflow       Workflow
	Classification *Classification
}
