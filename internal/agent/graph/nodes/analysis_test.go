package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stockwise-ai/server/internal/agent/model"
)

var testCatalog = []string{"Premium Tea", "Green Tea", "Digestive Biscuits (300g)", "Digestive Biscuits (500g)"}

func TestEnforceAnalysisRules(t *testing.T) {
	t.Run("query never waits", func(t *testing.T) {
		got := EnforceAnalysisRules(model.AnalyzedQuery{
			OperationType: model.OperationQuery,
			Question:      "Which product?",
		}, testCatalog)
		assert.True(t, got.ValidationStatus)
		assert.Empty(t, got.Question)
	})

	t.Run("ambiguous sale is not validated", func(t *testing.T) {
		got := EnforceAnalysisRules(model.AnalyzedQuery{
			OperationType:    model.OperationSale,
			ValidationStatus: true,
			ProductReference: "digestive",
		}, testCatalog)
		assert.False(t, got.ValidationStatus)
		assert.Contains(t, got.Question, "Digestive Biscuits (300g)")
		assert.Contains(t, got.Question, "Digestive Biscuits (500g)")
	})

	t.Run("exact sale keeps model verdict", func(t *testing.T) {
		got := EnforceAnalysisRules(model.AnalyzedQuery{
			OperationType:    model.OperationStock,
			ValidationStatus: true,
			ProductReference: "Premium Tea",
			Question:         "leftover",
		}, testCatalog)
		assert.True(t, got.ValidationStatus)
		assert.Empty(t, got.Question)
	})

	t.Run("missing question gets a default", func(t *testing.T) {
		got := EnforceAnalysisRules(model.AnalyzedQuery{OperationType: model.OperationSale}, testCatalog)
		assert.False(t, got.ValidationStatus)
		assert.Equal(t, defaultClarification, got.Question)
	})
}
