package repo

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise-ai/server/internal/agent/model"
)

func TestMemoryConversationRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository()

	require.NoError(t, r.AddMessage(ctx, "c1", schema.UserMessage("how much tea?")))
	require.NoError(t, r.AddMessage(ctx, "c1", schema.AssistantMessage("40", nil)))
	require.NoError(t, r.SaveAnalysis(ctx, "c1", model.AnalyzedQuery{OperationType: model.OperationQuery}))
	require.NoError(t, r.SaveFinalReport(ctx, "c1", "report"))

	h, err := r.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, h.Messages, 2)
	require.NotNil(t, h.Analysis)
	assert.Equal(t, model.OperationQuery, h.Analysis.OperationType)
	assert.Equal(t, "report", h.FinalReport)

	other, err := r.LoadHistory(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, other.Messages)

	require.NoError(t, r.ClearHistory(ctx, "c1"))
	h, err = r.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, h.Messages)
	assert.Nil(t, h.Analysis)
	assert.Empty(t, h.FinalReport)
}
