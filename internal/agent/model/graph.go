package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Do not access AppState directly from outside handlers. For persistence,
//     use repositories/services (e.g., MessagesManager).
type AppState struct {
	ConversationID string
	Conversation   []*schema.Message // persisted user/assistant turns, loaded once per invocation
	RequestText    string            // user text of the request being resolved
	Catalog        []string          // product names known when the request was analyzed
	Analysis       *AnalyzedQuery    // set by parser post-handler

	GenerateSystemPrompt string            // rendered once the request is resolved
	SQLHistory           []*schema.Message // messages exchanged with the query agent
	TableNames           []string          // result of the list-tables step
	QueryRounds          int               // executed query tool rounds
	QueryLimitReached    bool
	ToolCallIDSeq        int    // local sequence to synthesize tool_call_id when provider omits
	Refusal              string // set when a query was blocked by the SQL policy

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// TurnResult is what one graph invocation hands back to a shell.
type TurnResult struct {
	ConversationID string         `json:"conversation_id"`
	Analysis       *AnalyzedQuery `json:"analysis,omitempty"`
	Resolved       bool           `json:"resolved"`
	Reply          string         `json:"reply"`
	Summary        string         `json:"summary,omitempty"`
	FinalReport    string         `json:"final_report,omitempty"`
	Refused        bool           `json:"refused,omitempty"`
	GaveUp         bool           `json:"gave_up,omitempty"`
	CostUSD        float64        `json:"cost_usd"`
}
