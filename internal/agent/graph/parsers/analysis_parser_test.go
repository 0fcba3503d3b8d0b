package parsers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise-ai/server/internal/agent/model"
	errx "github.com/stockwise-ai/server/internal/core/error"
)

func TestParseAnalyzedQuery(t *testing.T) {
	t.Run("fenced json with lowercase operation", func(t *testing.T) {
		content := "```json\n{\"operation_type\": \"sale\", \"question\": null, \"enhanced_query\": \"Sold 5 Digestive Biscuits (300g) on 12th September 2024\", \"validation_status\": true, \"product_reference\": \"digestive biscuit\"}\n```"
		got, err := ParseAnalyzedQuery(content)
		require.NoError(t, err)
		assert.Equal(t, model.OperationSale, got.OperationType)
		assert.Empty(t, got.Question)
		assert.True(t, got.ValidationStatus)
		assert.Equal(t, "digestive biscuit", got.ProductReference)
	})

	t.Run("prose around object and string boolean", func(t *testing.T) {
		content := `Here you go: {"operation_type":"QUERY","question":"","enhanced_query":"Most expensive item","validation_status":"True"} done.`
		got, err := ParseAnalyzedQuery(content)
		require.NoError(t, err)
		assert.Equal(t, model.OperationQuery, got.OperationType)
		assert.True(t, got.ValidationStatus)
	})

	t.Run("unknown operation is rejected", func(t *testing.T) {
		_, err := ParseAnalyzedQuery(`{"operation_type":"REFUND","question":"","enhanced_query":"x","validation_status":true}`)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
	})

	t.Run("missing field is rejected", func(t *testing.T) {
		_, err := ParseAnalyzedQuery(`{"operation_type":"QUERY","question":""}`)
		require.Error(t, err)
	})

	t.Run("no json at all", func(t *testing.T) {
		_, err := ParseAnalyzedQuery("I could not understand that")
		require.Error(t, err)
		assert.Equal(t, errx.ModelErrorMessage, errx.MessageOf(err))
	})
}

func TestParseAnalysisResult(t *testing.T) {
	got, err := ParseAnalysisResult("```\n{\"short_summary\":\"Tea leads sales.\",\"detailed_report\":\"# Report\\n- Tea: 40 units\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Tea leads sales.", got.ShortSummary)
	assert.Contains(t, got.DetailedReport, "# Report")

	_, err = ParseAnalysisResult(`{"short_summary":"","detailed_report":"x"}`)
	require.Error(t, err)
}
