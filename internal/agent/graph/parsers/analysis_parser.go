package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/stockwise-ai/server/internal/agent/model"
	errx "github.com/stockwise-ai/server/internal/core/error"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024
	maxErrSnippet = 200
)

const analyzedQuerySchema = `{
  "type": "object",
  "required": ["operation_type", "question", "enhanced_query", "validation_status"],
  "properties": {
    "operation_type": {"type": "string", "enum": ["SALE", "QUERY", "ANALYSIS", "STOCK"]},
    "question": {"type": "string"},
    "enhanced_query": {"type": "string"},
    "validation_status": {"type": "boolean"},
    "product_reference": {"type": "string"}
  }
}`

const analysisResultSchema = `{
  "type": "object",
  "required": ["short_summary", "detailed_report"],
  "properties": {
    "short_summary": {"type": "string", "minLength": 1},
    "detailed_report": {"type": "string", "minLength": 1}
  }
}`

var (
	analyzedQueryLoader  = gojsonschema.NewStringLoader(analyzedQuerySchema)
	analysisResultLoader = gojsonschema.NewStringLoader(analysisResultSchema)
)

// ParseAnalyzedQuery reads the analyzer's JSON answer. Code fences and
// surrounding prose are ignored; the operation type is case-insensitive.
func ParseAnalyzedQuery(content string) (out *model.AnalyzedQuery, err error) {
	defer recoverParser("analysis_parser", &err)

	doc, err := decodeObject(content)
	if err != nil {
		return nil, err
	}

	if v, ok := doc["operation_type"].(string); ok {
		op, _ := model.ParseOperationType(v)
		doc["operation_type"] = string(op)
	}
	if doc["question"] == nil {
		doc["question"] = ""
	}
	if doc["product_reference"] == nil {
		delete(doc, "product_reference")
	}
	if v, ok := doc["validation_status"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			doc["validation_status"] = true
		case "false":
			doc["validation_status"] = false
		}
	}

	out = &model.AnalyzedQuery{}
	if err := validateInto(analyzedQueryLoader, doc, out); err != nil {
		return nil, err
	}
	out.Question = strings.TrimSpace(out.Question)
	out.EnhancedQuery = strings.TrimSpace(out.EnhancedQuery)
	out.ProductReference = strings.TrimSpace(out.ProductReference)
	return out, nil
}

// ParseAnalysisResult reads the reporter's JSON answer.
func ParseAnalysisResult(content string) (out *model.AnalysisResult, err error) {
	defer recoverParser("report_parser", &err)

	doc, err := decodeObject(content)
	if err != nil {
		return nil, err
	}
	out = &model.AnalysisResult{}
	if err := validateInto(analysisResultLoader, doc, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ===== helpers =====

func recoverParser(component string, err *error) {
	if r := recover(); r != nil {
		logx.Error().Str("component", component).Msgf("panic recovered: %v", r)
		*err = errx.New(fmt.Errorf("%s panic", component), http.StatusInternalServerError, errx.SystemErrorMessage)
	}
}

func invalid(err error) error {
	return errx.New(err, http.StatusBadGateway, errx.ModelErrorMessage)
}

// decodeObject extracts the outermost JSON object from content.
func decodeObject(content string) (map[string]any, error) {
	if len(content) > maxContentLen {
		logx.Warn().
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("model output truncated due to size limit")
		content = content[:maxContentLen]
	}

	body := stripFences(content)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, invalid(fmt.Errorf("no json object in output: %q", safeSnippet(content)))
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body[start:end+1]), &doc); err != nil {
		return nil, invalid(fmt.Errorf("decode output: %w", err))
	}
	return doc, nil
}

func validateInto(schema gojsonschema.JSONLoader, doc map[string]any, dst any) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return invalid(fmt.Errorf("schema validation failed: %w", err))
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return invalid(fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; ")))
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return invalid(err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return invalid(err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
