package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ExtraTurnResolved marks the assistant message that closed a request.
const ExtraTurnResolved = "turn_resolved"

type ConversationRepository interface {
	// AddMessage adds a message to the conversation history for the given conversation
	AddMessage(ctx context.Context, conversationID string, message *schema.Message) error

	// LoadHistory retrieves the conversation state for a conversation
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// SaveAnalysis replaces the latest analyzed query
	SaveAnalysis(ctx context.Context, conversationID string, analysis AnalyzedQuery) error

	// SaveFinalReport replaces the latest analysis report
	SaveFinalReport(ctx context.Context, conversationID string, report string) error

	// ClearHistory removes all conversation state for a conversation
	ClearHistory(ctx context.Context, conversationID string) error
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
	Analysis       *AnalyzedQuery
	FinalReport    string
}

// IsResolvedTurn reports whether msg closed a request.
func IsResolvedTurn(msg *schema.Message) bool {
	if msg == nil || msg.Role != schema.Assistant || msg.Extra == nil {
		return false
	}
	v, _ := msg.Extra[ExtraTurnResolved].(bool)
	return v
}

// PendingRequest returns the user messages sent after the last resolved turn,
// i.e. the request that is still being clarified or is about to be resolved.
func PendingRequest(messages []*schema.Message) []*schema.Message {
	start := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if IsResolvedTurn(messages[i]) {
			start = i + 1
			break
		}
	}
	var out []*schema.Message
	for _, m := range messages[start:] {
		if m != nil && m.Role == schema.User {
			out = append(out, m)
		}
	}
	return out
}
