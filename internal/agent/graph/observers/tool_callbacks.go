package observers

import (
	"context"
	"encoding/json"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
	"github.com/rs/zerolog"

	"github.com/stockwise-ai/server/internal/agent/graph/tools"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

// newToolHandler logs SQL tool calls: the statement or tables asked for and
// what the database answered.
func newToolHandler() *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			if input != nil {
				sqlToolInput(logx.Debug().Str("tool", info.Name), info.Name, input.ArgumentsInJSON).Msg("SQL tool called")
			}
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			if output != nil {
				sqlToolOutput(logx.Debug().Str("tool", info.Name), info.Name, output.Response).Msg("SQL tool answered")
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("tool", info.Name).Msg("SQL tool failed")
			return ctx
		},
	}
}

func sqlToolInput(ev *zerolog.Event, name, arguments string) *zerolog.Event {
	switch name {
	case tools.ToolRunQuery:
		query, err := tools.ParseQuery(schema.ToolCall{Function: schema.FunctionCall{Name: name, Arguments: arguments}})
		if err != nil {
			return ev.Bool("unreadable", true).Str("arguments", clip(arguments))
		}
		return ev.Str("query", clip(query))
	case tools.ToolGetSchema:
		normalized, err := tools.NormalizeArguments(name, arguments)
		if err != nil {
			return ev.Str("arguments", clip(arguments))
		}
		var in tools.GetSchemaInput
		if err := json.Unmarshal([]byte(normalized), &in); err != nil {
			return ev.Str("arguments", clip(arguments))
		}
		return ev.Strs("table_names", tools.SplitTableNames(in.TableNames))
	default:
		return ev
	}
}

func sqlToolOutput(ev *zerolog.Event, name, response string) *zerolog.Event {
	if strings.HasPrefix(response, "Error:") {
		return ev.Bool("failed", true).Str("error", clip(strings.TrimSpace(strings.TrimPrefix(response, "Error:"))))
	}
	switch name {
	case tools.ToolListTables:
		return ev.Strs("tables", tools.SplitTableNames(response))
	case tools.ToolGetSchema:
		return ev.Int("tables", strings.Count(strings.ToUpper(response), "CREATE TABLE"))
	default:
		return ev.Int("chars", len(response)).Str("result", clip(response))
	}
}
