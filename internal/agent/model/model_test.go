package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestResolveCurrency(t *testing.T) {
	assert.Equal(t, "₦15,999", ResolveCurrency("naira").Example)
	assert.Equal(t, "$", ResolveCurrency(" Dollar ").Symbol)
	assert.Equal(t, "£12.99", ResolveCurrency("POUND").Example)
	assert.Equal(t, ResolveCurrency(DefaultCurrency), ResolveCurrency("yen"))
}

func TestParseOperationType(t *testing.T) {
	op, ok := ParseOperationType(" sale ")
	assert.True(t, ok)
	assert.Equal(t, OperationSale, op)
	assert.True(t, op.IsTransactional())

	op, ok = ParseOperationType("analysis")
	assert.True(t, ok)
	assert.False(t, op.IsTransactional())

	_, ok = ParseOperationType("refund")
	assert.False(t, ok)
}

func TestPendingRequest(t *testing.T) {
	resolved := schema.AssistantMessage("done", nil)
	resolved.Extra = map[string]any{ExtraTurnResolved: true}

	msgs := []*schema.Message{
		schema.UserMessage("how much tea?"),
		resolved,
		schema.UserMessage("sold 2 tea"),
		schema.AssistantMessage("Which tea?", nil),
		schema.UserMessage("Premium Tea"),
	}

	got := PendingRequest(msgs)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "sold 2 tea", got[0].Content)
		assert.Equal(t, "Premium Tea", got[1].Content)
	}
	assert.Len(t, PendingRequest(msgs[:2]), 0)
	assert.False(t, IsResolvedTurn(schema.UserMessage("x")))
}

func TestCostOf(t *testing.T) {
	c := CostOf("gemini-2.5-flash", &schema.TokenUsage{PromptTokens: 2_000_000, CompletionTokens: 1_000_000})
	assert.True(t, c.Priced)
	assert.InDelta(t, 0.60, c.PromptUSD, 1e-9)
	assert.InDelta(t, 2.50, c.CompletionUSD, 1e-9)
	assert.InDelta(t, 3.10, c.TotalUSD(), 1e-9)

	lite, ok := PriceOf("models/gemini-2.5-flash-lite-preview-09-2025")
	assert.True(t, ok)
	assert.Equal(t, 0.40, lite.Completion)

	unknown := CostOf("local-llama", &schema.TokenUsage{PromptTokens: 500})
	assert.False(t, unknown.Priced)
	assert.Equal(t, 500, unknown.PromptTokens)
	assert.Zero(t, unknown.TotalUSD())

	assert.Zero(t, CostOf("gemini-2.5-pro", nil).TotalUSD())
}
