package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/stockwise-ai/server/internal/agent/model"
)

const defaultMaxTurns = 20

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, maxTurns int) *MessagesManager {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         maxTurns,
	}
}

// Request is a stored user message together with its conversation.
type Request struct {
	History *model.ConversationHistory
	// Transcript is the tail of the whole conversation, at most maxTurns messages.
	Transcript []*schema.Message
	// UserText is the user's own words since the last resolved turn.
	UserText string
}

// =========== Function for Analyzer ===========

// ProcessUserMessage stores query and returns the conversation it belongs to.
// Earlier requests stay in the transcript for context; only UserText is
// limited to the request still being resolved.
func (cm *MessagesManager) ProcessUserMessage(ctx context.Context, conversationID string, query string) (*Request, error) {
	if err := cm.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(query)); err != nil {
		return nil, err
	}

	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var userText []string
	for _, m := range model.PendingRequest(history.Messages) {
		userText = append(userText, m.Content)
	}

	return &Request{
		History:    history,
		Transcript: trimTail(history.Messages, cm.maxTurns),
		UserText:   strings.Join(userText, "\n"),
	}, nil
}

// BufferString renders messages one per line as "Human: ..." / "AI: ...".
func BufferString(messages []*schema.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("Human: ")
		case schema.Assistant:
			b.WriteString("AI: ")
		default:
			continue
		}
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// =========== Function for Responses ===========

// SaveResponse stores an assistant reply. A resolved reply closes the request.
func (cm *MessagesManager) SaveResponse(ctx context.Context, conversationID string, content string, resolved bool) error {
	msg := schema.AssistantMessage(content, nil)
	if resolved {
		msg.Extra = map[string]any{model.ExtraTurnResolved: true}
	}
	return cm.conversationRepo.AddMessage(ctx, conversationID, msg)
}

func (cm *MessagesManager) SaveAnalysis(ctx context.Context, conversationID string, analysis model.AnalyzedQuery) error {
	return cm.conversationRepo.SaveAnalysis(ctx, conversationID, analysis)
}

func (cm *MessagesManager) SaveFinalReport(ctx context.Context, conversationID string, report string) error {
	return cm.conversationRepo.SaveFinalReport(ctx, conversationID, report)
}

func (cm *MessagesManager) Clear(ctx context.Context, conversationID string) error {
	return cm.conversationRepo.ClearHistory(ctx, conversationID)
}

// ====================== Helper function ======================

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) > maxTurns {
		messages = messages[len(messages)-maxTurns:]
	}
	result := make([]*schema.Message, len(messages))
	copy(result, messages)
	return result
}
