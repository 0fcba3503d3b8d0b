package nodes

import (
	"fmt"
	"strings"

	"github.com/stockwise-ai/server/internal/agent/model"
	"github.com/stockwise-ai/server/internal/inventory"
)

const defaultClarification = "Could you provide more details about your request?"

// EnforceAnalysisRules applies the rules the analyzer model cannot be trusted
// with: QUERY and ANALYSIS never wait for transaction fields, and a SALE or
// STOCK request naming more than one catalog item is never resolved.
func EnforceAnalysisRules(aq model.AnalyzedQuery, catalog []string) model.AnalyzedQuery {
	if !aq.OperationType.IsTransactional() {
		aq.ValidationStatus = true
		aq.Question = ""
		return aq
	}

	if candidates, ambiguous := inventory.IsAmbiguous(aq.ProductReference, catalog); ambiguous {
		aq.ValidationStatus = false
		aq.Question = fmt.Sprintf("%q matches more than one product: %s. Which exact product do you mean?",
			aq.ProductReference, strings.Join(candidates, ", "))
	}

	if aq.ValidationStatus {
		aq.Question = ""
	} else if strings.TrimSpace(aq.Question) == "" {
		aq.Question = defaultClarification
	}
	return aq
}
