package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/stockwise-ai/server/internal/agent/model"
)

type memoryConversation struct {
	messages []*schema.Message
	analysis *model.AnalyzedQuery
	report   string
}

// MemoryConversationRepository keeps conversation state for the lifetime of
// the process only.
type MemoryConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*memoryConversation
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{conversations: make(map[string]*memoryConversation)}
}

func (r *MemoryConversationRepository) get(conversationID string) *memoryConversation {
	c, ok := r.conversations[conversationID]
	if !ok {
		c = &memoryConversation{}
		r.conversations[conversationID] = c
	}
	return c
}

func (r *MemoryConversationRepository) AddMessage(_ context.Context, conversationID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.get(conversationID)
	c.messages = append(c.messages, message)
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := &model.ConversationHistory{ConversationID: conversationID, Messages: []*schema.Message{}}
	c, ok := r.conversations[conversationID]
	if !ok {
		return history, nil
	}
	history.Messages = append(history.Messages, c.messages...)
	if c.analysis != nil {
		aq := *c.analysis
		history.Analysis = &aq
	}
	history.FinalReport = c.report
	return history, nil
}

func (r *MemoryConversationRepository) SaveAnalysis(_ context.Context, conversationID string, analysis model.AnalyzedQuery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.get(conversationID).analysis = &analysis
	return nil
}

func (r *MemoryConversationRepository) SaveFinalReport(_ context.Context, conversationID string, report string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.get(conversationID).report = report
	return nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conversations, conversationID)
	return nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
