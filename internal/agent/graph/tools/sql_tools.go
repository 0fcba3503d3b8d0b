package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/stockwise-ai/server/internal/agent/model"
	"github.com/stockwise-ai/server/internal/agent/sqlguard"
	errx "github.com/stockwise-ai/server/internal/core/error"
)

const (
	ToolListTables = "sql_db_list_tables"
	ToolGetSchema  = "sql_db_schema"
	ToolRunQuery   = "sql_db_query"
)

// ===================================
// List Tables Tool
// ===================================

type listTablesTool struct {
	db model.SQLDatabase
}

// NewListTablesTool lists the tables of db.
func NewListTablesTool(db model.SQLDatabase) tool.InvokableTool {
	return &listTablesTool{db: db}
}

func (t *listTablesTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolListTables,
		Desc: "Input is an empty string, output is a comma-separated list of tables in the database.",
	}, nil
}

func (t *listTablesTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return t.db.ListTables(ctx)
}

// ===================================
// Get Schema Tool
// ===================================

type GetSchemaInput struct {
	TableNames string `json:"table_names"`
}

type schemaTool struct {
	db model.SQLDatabase
}

// NewSchemaTool returns the DDL and sample rows of the requested tables.
func NewSchemaTool(db model.SQLDatabase) tool.InvokableTool {
	return &schemaTool{db: db}
}

func (t *schemaTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolGetSchema,
		Desc: "Input to this tool is a comma-separated list of tables, output is the schema and sample rows for those tables. " +
			"Be sure that the tables actually exist by calling " + ToolListTables + " first! Example Input: table1, table2, table3",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"table_names": {
				Type:     "string",
				Desc:     "A comma-separated list of the table names for which to return the schema. Example input: 'table1, table2, table3'",
				Required: true,
			},
		}),
	}, nil
}

func (t *schemaTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in GetSchemaInput
	if err := decodeArgs(argumentsInJSON, &in); err != nil {
		return "", err
	}
	return t.db.TableInfo(ctx, SplitTableNames(in.TableNames))
}

// SplitTableNames turns "a, b,c" into [a b c].
func SplitTableNames(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		name = strings.Trim(strings.TrimSpace(name), `'"`+"`")
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// ===================================
// Run Query Tool
// ===================================

type RunQueryInput struct {
	Query string `json:"query"`
}

// RequestText returns the user's words for the request being answered.
type RequestText func(ctx context.Context) string

type queryTool struct {
	db          model.SQLDatabase
	policy      sqlguard.Policy
	requestText RequestText
}

// NewQueryTool executes a statement against db once policy allows it for the
// current request. Refused statements are answered with an error text
// instead of being run.
func NewQueryTool(db model.SQLDatabase, policy sqlguard.Policy, requestText RequestText) tool.InvokableTool {
	return &queryTool{db: db, policy: policy, requestText: requestText}
}

func (t *queryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolRunQuery,
		Desc: "Input to this tool is a detailed and correct SQL query, output is a result from the database. " +
			"If the query is not correct, an error message will be returned. " +
			"If an error is returned, rewrite the query, check the query, and try again.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "A detailed and correct SQL query.",
				Required: true,
			},
		}),
	}, nil
}

func (t *queryTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	query, err := parseQuery(argumentsInJSON)
	if err != nil {
		return "Error: " + errx.ErrUnreadableQuery.Error(), nil
	}
	var userText string
	if t.requestText != nil {
		userText = t.requestText(ctx)
	}
	if err := t.policy.Authorize(query, userText); err != nil {
		return "Error: " + sqlguard.RefusalMessage(err), nil
	}
	return t.db.RunQuery(ctx, query)
}

// ===================================
// Helpers
// ===================================

func decodeArgs(argumentsInJSON string, v any) error {
	if strings.TrimSpace(argumentsInJSON) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}

// NormalizeArguments is the single form tool arguments take before they are
// authorized and before they are executed. table_names may arrive as a list
// and is joined; query must be a JSON string or the call is rejected.
func NormalizeArguments(name, arguments string) (string, error) {
	var key string
	switch name {
	case ToolRunQuery:
		key = "query"
	case ToolGetSchema:
		key = "table_names"
	default:
		return arguments, nil
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		if name == ToolRunQuery {
			return "", fmt.Errorf("%w: %v", errx.ErrUnreadableQuery, err)
		}
		return arguments, nil
	}

	if v, ok := m[key]; ok {
		switch vv := v.(type) {
		case string:
			m[key] = strings.TrimSpace(vv)
		case []any:
			if name == ToolRunQuery {
				return "", fmt.Errorf("%w: query is a list", errx.ErrUnreadableQuery)
			}
			parts := make([]string, 0, len(vv))
			for _, p := range vv {
				parts = append(parts, strings.TrimSpace(fmt.Sprint(p)))
			}
			m[key] = strings.Join(parts, ", ")
		default:
			if name == ToolRunQuery {
				return "", fmt.Errorf("%w: query is %T", errx.ErrUnreadableQuery, v)
			}
			m[key] = strings.TrimSpace(fmt.Sprint(v))
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode %s arguments: %w", name, err)
	}
	return string(out), nil
}

// ParseQuery returns the statement of a sql_db_query call, normalized the
// same way the tools node normalizes it before running.
func ParseQuery(call schema.ToolCall) (string, error) {
	return parseQuery(call.Function.Arguments)
}

func parseQuery(arguments string) (string, error) {
	normalized, err := NormalizeArguments(ToolRunQuery, arguments)
	if err != nil {
		return "", err
	}
	var in RunQueryInput
	if err := json.Unmarshal([]byte(normalized), &in); err != nil {
		return "", fmt.Errorf("%w: %v", errx.ErrUnreadableQuery, err)
	}
	return in.Query, nil
}

// QueryArguments encodes query as sql_db_query arguments.
func QueryArguments(query string) string {
	b, _ := json.Marshal(RunQueryInput{Query: query})
	return string(b)
}

// SchemaArguments encodes tables as sql_db_schema arguments.
func SchemaArguments(tables []string) string {
	b, _ := json.Marshal(GetSchemaInput{TableNames: strings.Join(tables, ", ")})
	return string(b)
}

// ToolInfos collects the ToolInfo of each tool for binding to a chat model.
func ToolInfos(ctx context.Context, ts ...tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
