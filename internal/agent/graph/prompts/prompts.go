package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

var (
	//go:embed template/analyzer_prompt.txt
	analyzerPrompt string
	//go:embed template/generate_query_prompt.txt
	generateQueryPrompt string
	//go:embed template/check_query_prompt.txt
	checkQueryPrompt string
	//go:embed template/report_prompt.txt
	reportPrompt string
)

// AnalyzerData fills the analyzer prompt.
type AnalyzerData struct {
	Date     string
	Messages string
	AllItems string
}

// GenerateQueryData fills the query generation prompt.
type GenerateQueryData struct {
	OperationType   string
	Date            string
	Dialect         string
	TopK            int
	Currency        string
	CurrencyExample string
	WriteMarker     string
	Request         string
}

// RenderAnalyzerSystem renders the intent analyzer's system prompt.
func RenderAnalyzerSystem(ctx context.Context, d AnalyzerData) (string, error) {
	return render(ctx, "analyzer", analyzerPrompt, map[string]any{
		"date":      d.Date,
		"messages":  d.Messages,
		"all_items": d.AllItems,
	})
}

// RenderGenerateQuerySystem renders the query agent's system prompt.
func RenderGenerateQuerySystem(ctx context.Context, d GenerateQueryData) (string, error) {
	return render(ctx, "generate_query", generateQueryPrompt, map[string]any{
		"operation_type":   d.OperationType,
		"date":             d.Date,
		"dialect":          d.Dialect,
		"top_k":            d.TopK,
		"currency":         d.Currency,
		"currency_example": d.CurrencyExample,
		"write_marker":     d.WriteMarker,
		"request":          d.Request,
	})
}

// RenderCheckQuerySystem renders the query checker's system prompt.
func RenderCheckQuerySystem(ctx context.Context, dialect string) (string, error) {
	return render(ctx, "check_query", checkQueryPrompt, map[string]any{
		"dialect": dialect,
	})
}

// RenderReportUser renders the instruction that turns an analysis into a report.
func RenderReportUser(ctx context.Context, detailedReport, currency string) (string, error) {
	return render(ctx, "report", reportPrompt, map[string]any{
		"detailed_report": detailedReport,
		"currency":        currency,
	})
}

// render goes through the Eino prompt component so prompt callbacks fire.
func render(ctx context.Context, name, tpl string, vars map[string]any) (string, error) {
	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt: empty result", name)
	}
	return msgs[0].Content, nil
}
