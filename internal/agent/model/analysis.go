package model

import "strings"

// OperationType classifies what the user asked for.
type OperationType string

const (
	OperationSale     OperationType = "SALE"
	OperationQuery    OperationType = "QUERY"
	OperationAnalysis OperationType = "ANALYSIS"
	OperationStock    OperationType = "STOCK"
)

// ParseOperationType normalises v and reports whether it names a known operation.
func ParseOperationType(v string) (OperationType, bool) {
	op := OperationType(strings.ToUpper(strings.TrimSpace(v)))
	switch op {
	case OperationSale, OperationQuery, OperationAnalysis, OperationStock:
		return op, true
	}
	return op, false
}

// IsTransactional reports whether the operation writes to the inventory and
// therefore needs product and quantity fields.
func (o OperationType) IsTransactional() bool {
	return o == OperationSale || o == OperationStock
}

// AnalyzedQuery is produced once per analyzer run and always replaced as a whole.
type AnalyzedQuery struct {
	OperationType    OperationType `json:"operation_type"`
	Question         string        `json:"question"`
	EnhancedQuery    string        `json:"enhanced_query"`
	ValidationStatus bool          `json:"validation_status"`
	// ProductReference is the product as the user named it. It is only used to
	// check the reference against the catalog and may be empty.
	ProductReference string `json:"product_reference,omitempty"`
}

// AnalysisResult is the structured form of a completed ANALYSIS report.
type AnalysisResult struct {
	ShortSummary   string `json:"short_summary"`
	DetailedReport string `json:"detailed_report"`
}
