package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/stockwise-ai/server/internal/agent/graph/conversations"
	"github.com/stockwise-ai/server/internal/agent/graph/parsers"
	"github.com/stockwise-ai/server/internal/agent/graph/prompts"
	"github.com/stockwise-ai/server/internal/agent/graph/tools"
	"github.com/stockwise-ai/server/internal/agent/model"
	"github.com/stockwise-ai/server/internal/agent/sqlguard"
	errx "github.com/stockwise-ai/server/internal/core/error"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

const analyzerInstruction = "Analyze the conversation above and reply with the JSON object."

// ================ Intent analysis ================

// NewInputConverterPreHandler creates the pre-handler for InputConverter node
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		if s.ConversationID == "" {
			s.ConversationID = in.ConversationID
		}
		// Every invocation starts a fresh agent run
		s.Analysis = nil
		s.SQLHistory = nil
		s.TableNames = nil
		s.QueryRounds = 0
		s.QueryLimitReached = false
		s.ToolCallIDSeq = 0
		s.Refusal = ""
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode stores the user message and renders the analyzer
// prompt over the request still being resolved.
func NewInputConverterNode(
	mm *conversations.MessagesManager,
	catalog model.ItemCatalog,
	now func() time.Time,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		req, err := mm.ProcessUserMessage(ctx, input.ConversationID, input.Query)
		if err != nil {
			return nil, fmt.Errorf("error getting conversation context: %w", err)
		}

		items, err := catalog.ItemNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("load item catalog: %w", err)
		}

		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.Conversation = req.History.Messages
			state.RequestText = req.UserText
			state.Catalog = items
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderAnalyzerSystem(ctx, prompts.AnalyzerData{
			Date:     FormatDate(now()),
			Messages: conversations.BufferString(req.Transcript),
			AllItems: strings.Join(items, ", "),
		})
		if err != nil {
			return nil, fmt.Errorf("render analyzer system prompt: %w", err)
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(analyzerInstruction),
		}, nil
	})
}

// NewUsagePostHandler prices the output of a chat model node.
func NewUsagePostHandler(node, modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		recordUsage(state, node, modelName, out)
		return out, nil
	}
}

// NewAnalysisParserNode creates the node that decodes the analyzer output.
func NewAnalysisParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.AnalyzedQuery, error) {
		if resp == nil {
			return model.AnalyzedQuery{}, errx.WrapLLM(fmt.Errorf("analyzer returned no message"))
		}
		result, err := parsers.ParseAnalyzedQuery(resp.Content)
		if err != nil {
			logx.Error().Err(err).Msg("Error parsing analyzer response")
			return model.AnalyzedQuery{}, err
		}
		return *result, nil
	})
}

// NewAnalysisParserPostHandler enforces the analysis rules and records the
// analysis in state and in the conversation store.
func NewAnalysisParserPostHandler(mm *conversations.MessagesManager) func(context.Context, model.AnalyzedQuery, *model.AppState) (model.AnalyzedQuery, error) {
	return func(ctx context.Context, out model.AnalyzedQuery, state *model.AppState) (model.AnalyzedQuery, error) {
		out = EnforceAnalysisRules(out, state.Catalog)
		aq := out
		state.Analysis = &aq

		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Str("operation_type", string(out.OperationType)).
			Bool("validation_status", out.ValidationStatus).
			Str("enhanced_query", out.EnhancedQuery).
			Msg("Request analyzed")

		if err := mm.SaveAnalysis(ctx, state.ConversationID, out); err != nil {
			return out, fmt.Errorf("save analysis: %w", err)
		}
		return out, nil
	}
}

// NewClarifyCondition routes unresolved requests back to the user.
func NewClarifyCondition() func(context.Context, model.AnalyzedQuery) (string, error) {
	return func(ctx context.Context, in model.AnalyzedQuery) (string, error) {
		if !in.ValidationStatus {
			logx.Debug().Str("question", in.Question).Msg("Routing to Clarify - request incomplete")
			return NodeClarify, nil
		}
		logx.Debug().Str("operation_type", string(in.OperationType)).Msg("Routing to ListTables - request resolved")
		return NodeListTables, nil
	}
}

// NewClarifyNode answers with the analyzer's question.
func NewClarifyNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.AnalyzedQuery) (*model.TurnResult, error) {
		return finish(ctx, mm, in.Question, false, nil)
	})
}

// ================ Query agent ================

// NewListTablesNode runs the list tables tool, renders the query agent prompt and
// seeds the agent history with the listing as if the model had asked for it.
func NewListTablesNode(
	db model.SQLDatabase,
	agent model.AgentConfig,
	currency model.Currency,
	policy sqlguard.Policy,
	now func() time.Time,
) *compose.Lambda {
	lister := tools.NewListTablesTool(db)
	return compose.InvokableLambda(func(ctx context.Context, in model.AnalyzedQuery) ([]*schema.Message, error) {
		tables, err := lister.InvokableRun(ctx, "{}")
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}

		var history []*schema.Message
		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			request := in.EnhancedQuery
			if strings.TrimSpace(request) == "" {
				request = state.RequestText
			}

			sys, err := prompts.RenderGenerateQuerySystem(ctx, prompts.GenerateQueryData{
				OperationType:   string(in.OperationType),
				Date:            FormatDate(now()),
				Dialect:         db.Dialect(),
				TopK:            agent.TopK,
				Currency:        currency.Name,
				CurrencyExample: currency.Example,
				WriteMarker:     policy.Marker(),
				Request:         request,
			})
			if err != nil {
				return err
			}

			id := nextToolCallID(state)
			listing := schema.ToolMessage(tables, id)
			listing.ToolName = tools.ToolListTables

			state.GenerateSystemPrompt = sys
			state.TableNames = tools.SplitTableNames(tables)
			state.SQLHistory = []*schema.Message{
				schema.UserMessage(request),
				schema.AssistantMessage("", []schema.ToolCall{toolCall(id, tools.ToolListTables, "{}")}),
				listing,
			}
			history = append(history, state.SQLHistory...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("prepare query agent: %w", err)
		}

		logx.Debug().Str("tables", tables).Msg("Tables listed")
		return history, nil
	})
}

// NewSchemaChatModelPostHandler makes sure the schema step always fetches a
// schema: without a usable tool call it asks for every listed table.
func NewSchemaChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		recordUsage(state, NodeSchemaChatModel, modelName, out)

		var calls []schema.ToolCall
		if out != nil {
			for _, c := range out.ToolCalls {
				if c.Function.Name == tools.ToolGetSchema {
					calls = append(calls, c)
				}
			}
		}
		if len(calls) == 0 {
			logx.Debug().Strs("tables", state.TableNames).Msg("No schema call from model - requesting all tables")
			calls = []schema.ToolCall{toolCall("", tools.ToolGetSchema, tools.SchemaArguments(state.TableNames))}
		}

		msg := schema.AssistantMessage("", calls)
		if out != nil {
			msg.ResponseMeta = out.ResponseMeta
			msg.Extra = out.Extra
		}
		normalizeToolCallIDs(state, msg)
		state.SQLHistory = append(state.SQLHistory, msg)
		return msg, nil
	}
}

// NewGenerateQueryPreHandler appends tool results to the agent history and
// prefixes the system prompt. Once the query limit is reached the model is
// told to wrap up.
func NewGenerateQueryPreHandler(maxRounds int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		fillToolResultIDs(state.SQLHistory, in)
		state.SQLHistory = append(state.SQLHistory, in...)

		if checkAndMarkQueryLimit(state, maxRounds) {
			maxRounds = normalizeMaxQueryRounds(maxRounds)
			state.SQLHistory = append(state.SQLHistory, schema.SystemMessage(fmt.Sprintf(
				"SYSTEM NOTICE: You have reached the maximum number of query rounds (%d). "+
					"Answer using the results you already have and do not call any more tools. "+
					"Say so if the answer is incomplete.",
				maxRounds,
			)))
		}

		msgs := make([]*schema.Message, 0, len(state.SQLHistory)+1)
		msgs = append(msgs, schema.SystemMessage(state.GenerateSystemPrompt))
		msgs = append(msgs, state.SQLHistory...)

		logx.Debug().Int("query_rounds", state.QueryRounds).Msg("Generating query...")
		return msgs, nil
	}
}

// NewGenerateQueryPostHandler records the model turn in the agent history.
func NewGenerateQueryPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, errx.WrapLLM(fmt.Errorf("query generator returned no message"))
		}
		recordUsage(state, NodeGenerateQuery, modelName, out)
		normalizeToolCallIDs(state, out)
		state.SQLHistory = append(state.SQLHistory, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Query requested")
		} else {
			logx.Debug().Msg("Agent answer ready")
		}
		return out, nil
	}
}

// NewGenerateQueryCondition routes query requests through CheckQuery and
// finished answers to Report (ANALYSIS) or Finalize.
func NewGenerateQueryCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, in *schema.Message) (string, error) {
		var (
			limitReached bool
			operation    model.OperationType
		)
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.QueryLimitReached
			if state.Analysis != nil {
				operation = state.Analysis.OperationType
			}
			return nil
		})

		if len(in.ToolCalls) > 0 && !limitReached {
			logx.Debug().Int("tool_count", len(in.ToolCalls)).Msg("Routing to CheckQuery")
			return NodeCheckQuery, nil
		}
		if limitReached {
			logx.Debug().Msg("Query limit reached - finishing")
		}
		if operation == model.OperationAnalysis {
			return NodeReport, nil
		}
		return NodeFinalize, nil
	}
}

// NewCheckQueryNode passes every generated query through the checker model.
// The checked message keeps the original tool call IDs; a query the checker
// does not restate is kept as it was.
func NewCheckQueryNode(checker einomodel.BaseChatModel, dialect, modelName string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*schema.Message, error) {
		sys, err := prompts.RenderCheckQuerySystem(ctx, dialect)
		if err != nil {
			return nil, fmt.Errorf("render check prompt: %w", err)
		}

		checked := &schema.Message{
			Role:      schema.Assistant,
			Content:   in.Content,
			ToolCalls: make([]schema.ToolCall, len(in.ToolCalls)),
		}
		copy(checked.ToolCalls, in.ToolCalls)

		for i, call := range checked.ToolCalls {
			if call.Function.Name != tools.ToolRunQuery {
				continue
			}
			query, err := tools.ParseQuery(call)
			if err != nil {
				// left as is; authorization refuses it
				continue
			}
			resp, err := checker.Generate(ctx, []*schema.Message{
				schema.SystemMessage(sys),
				schema.UserMessage(query),
			})
			if err != nil {
				return nil, errx.WrapLLM(fmt.Errorf("check query: %w", err))
			}
			_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
				recordUsage(state, NodeCheckQuery, modelName, resp)
				return nil
			})

			rewritten := checkedQuery(resp)
			if rewritten == "" || rewritten == query {
				continue
			}
			logx.Debug().Str("original", query).Str("rewritten", rewritten).Msg("Query rewritten by checker")
			checked.ToolCalls[i].Function.Arguments = tools.QueryArguments(rewritten)
		}
		return checked, nil
	})
}

// NewCheckQueryPostHandler replaces the generator turn with the checked one.
func NewCheckQueryPostHandler() func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if n := len(state.SQLHistory); n > 0 && state.SQLHistory[n-1].Role == schema.Assistant {
			state.SQLHistory[n-1] = out
		} else {
			state.SQLHistory = append(state.SQLHistory, out)
		}
		return out, nil
	}
}

// NewAuthorizationCondition sends checked queries to RunQuery only when the
// policy allows every one of them for the current request. A query call whose
// arguments cannot be read is refused.
func NewAuthorizationCondition(policy sqlguard.Policy) func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, in *schema.Message) (string, error) {
		next := NodeRunQuery
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			for _, call := range in.ToolCalls {
				if call.Function.Name != tools.ToolRunQuery {
					continue
				}
				query, err := tools.ParseQuery(call)
				if err == nil {
					err = policy.Authorize(query, state.RequestText)
				}
				if err != nil {
					logx.Warn().
						Str("conversation_id", state.ConversationID).
						Str("query", query).
						Str("arguments", call.Function.Arguments).
						Err(err).
						Msg("Query blocked by SQL policy")
					state.Refusal = refusalMessage(err)
					next = NodeRefuse
					return nil
				}
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		return next, nil
	}
}

// NewRunQueryPreHandler counts query rounds.
func NewRunQueryPreHandler(maxRounds int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		exceeded := incrementQueryRoundAndCheck(state, maxRounds)

		logx.Debug().
			Int("query_rounds", state.QueryRounds).
			Str("conversation_id", state.ConversationID).
			Msg("Query execution attempt")

		if exceeded {
			logx.Warn().
				Int("query_rounds", state.QueryRounds).
				Int("max_query_rounds", normalizeMaxQueryRounds(maxRounds)).
				Str("conversation_id", state.ConversationID).
				Msg("Query round limit exceeded - flagging and continuing")
		}
		return in, nil
	}
}

// ================ Terminal nodes ================

// NewRefuseNode answers with the policy refusal without running anything.
func NewRefuseNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*model.TurnResult, error) {
		return finish(ctx, mm, "", true, func(state *model.AppState, res *model.TurnResult) {
			res.Reply = state.Refusal
			res.Refused = true
		})
	})
}

// NewFinalizeNode answers with the agent's last message.
func NewFinalizeNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*model.TurnResult, error) {
		return finish(ctx, mm, "", true, func(state *model.AppState, res *model.TurnResult) {
			res.Reply = strings.TrimSpace(in.Content)
			if res.Reply != "" {
				return
			}
			if state.QueryLimitReached {
				res.Reply = "I reached the query limit before finishing. Please narrow the request."
			} else {
				res.Reply = "I could not produce an answer for that request."
			}
		})
	})
}

// NewReportNode splits the agent's analysis into a short summary and the
// full report.
func NewReportNode(
	mm *conversations.MessagesManager,
	reporter einomodel.BaseChatModel,
	currency model.Currency,
	modelName string,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*model.TurnResult, error) {
		detailed := strings.TrimSpace(in.Content)

		instruction, err := prompts.RenderReportUser(ctx, detailed, currency.Name)
		if err != nil {
			return nil, fmt.Errorf("render report prompt: %w", err)
		}
		resp, err := reporter.Generate(ctx, []*schema.Message{schema.UserMessage(instruction)})
		if err != nil {
			return nil, errx.WrapLLM(fmt.Errorf("extract report: %w", err))
		}
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			recordUsage(state, NodeReport, modelName, resp)
			return nil
		})

		report, err := parsers.ParseAnalysisResult(resp.Content)
		if err != nil {
			logx.Warn().Err(err).Msg("Report extraction failed - using raw analysis")
			report = &model.AnalysisResult{ShortSummary: firstLines(detailed, 3), DetailedReport: detailed}
		}

		var conversationID string
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			conversationID = state.ConversationID
			return nil
		})
		if err := mm.SaveFinalReport(ctx, conversationID, report.DetailedReport); err != nil {
			return nil, fmt.Errorf("save final report: %w", err)
		}

		return finish(ctx, mm, report.ShortSummary, true, func(_ *model.AppState, res *model.TurnResult) {
			res.Summary = report.ShortSummary
			res.FinalReport = report.DetailedReport
		})
	})
}

// finish builds the turn result from state and stores the reply. edit, when
// set, fills result fields from state before the reply is stored.
func finish(
	ctx context.Context,
	mm *conversations.MessagesManager,
	reply string,
	resolved bool,
	edit func(*model.AppState, *model.TurnResult),
) (*model.TurnResult, error) {
	var res *model.TurnResult
	err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
		res = turnResult(state)
		res.Reply = reply
		res.Resolved = resolved
		if edit != nil {
			edit(state, res)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access state: %w", err)
	}

	if err := mm.SaveResponse(ctx, res.ConversationID, res.Reply, resolved); err != nil {
		return nil, fmt.Errorf("save response: %w", err)
	}
	return res, nil
}

// checkedQuery returns the query the checker asked to run, if any.
func checkedQuery(resp *schema.Message) string {
	if resp == nil {
		return ""
	}
	for _, call := range resp.ToolCalls {
		if call.Function.Name != tools.ToolRunQuery {
			continue
		}
		if query, err := tools.ParseQuery(call); err == nil {
			return strings.TrimSpace(query)
		}
	}
	return ""
}

func refusalMessage(err error) string {
	if errors.Is(err, errx.ErrUnreadableQuery) {
		return errx.ErrUnreadableQuery.Error()
	}
	return sqlguard.RefusalMessage(err)
}
