package nodes

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/stockwise-ai/server/internal/agent/model"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

const DefaultMaxQueryRounds = 10

// DateLayout renders dates like "Fri Oct 16, 2026".
const DateLayout = "Mon Jan 2, 2006"

// ===== Small helpers to keep handlers simple/readable =====

// normalizeMaxQueryRounds returns a sane default when the provided value is invalid.
func normalizeMaxQueryRounds(n int) int {
	if n <= 0 {
		return DefaultMaxQueryRounds
	}
	return n
}

// checkAndMarkQueryLimit evaluates whether another query round would exceed
// the limit and, if so, marks the state. Returns true when marked now.
func checkAndMarkQueryLimit(state *model.AppState, max int) bool {
	max = normalizeMaxQueryRounds(max)
	if !state.QueryLimitReached && state.QueryRounds >= max {
		state.QueryLimitReached = true
		return true
	}
	return false
}

// incrementQueryRoundAndCheck increments the round count and marks the state
// if it exceeds the limit after incrementing. Returns true when exceeded.
func incrementQueryRoundAndCheck(state *model.AppState, max int) bool {
	max = normalizeMaxQueryRounds(max)
	state.QueryRounds++
	if state.QueryRounds > max {
		state.QueryLimitReached = true
		return true
	}
	return false
}

// normalizeToolCallIDs fills tool call IDs the provider left empty.
func normalizeToolCallIDs(state *model.AppState, msg *schema.Message) {
	if msg == nil {
		return
	}
	for i := range msg.ToolCalls {
		if strings.TrimSpace(msg.ToolCalls[i].ID) == "" {
			msg.ToolCalls[i].ID = nextToolCallID(state)
		}
	}
}

func nextToolCallID(state *model.AppState) string {
	state.ToolCallIDSeq++
	return fmt.Sprintf("call_%d", state.ToolCallIDSeq)
}

// fillToolResultIDs gives tool results without a tool_call_id the ID of the
// most recent assistant tool call in history.
func fillToolResultIDs(history []*schema.Message, results []*schema.Message) {
	for _, res := range results {
		if res == nil || res.Role != schema.Tool || strings.TrimSpace(res.ToolCallID) != "" {
			continue
		}
		for i := len(history) - 1; i >= 0; i-- {
			msg := history[i]
			if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
				continue
			}
			res.ToolCallID = msg.ToolCalls[0].ID
			break
		}
	}
}

// toolCall builds an assistant-side function call.
func toolCall(id, name, arguments string) schema.ToolCall {
	return schema.ToolCall{
		ID:   id,
		Type: "function",
		Function: schema.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}

// recordUsage prices the model usage carried by out and adds it to the
// invocation total.
func recordUsage(state *model.AppState, node, modelName string, out *schema.Message) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	cost := model.CostOf(modelName, out.ResponseMeta.Usage)
	state.TotalCostUSD += cost.TotalUSD()

	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["call_cost"] = cost
	out.Extra["turn_cost_usd"] = state.TotalCostUSD

	logx.Debug().
		Str("conversation_id", state.ConversationID).
		Str("node", node).
		Str("model", modelName).
		Bool("priced", cost.Priced).
		Int("prompt_tokens", cost.PromptTokens).
		Int("completion_tokens", cost.CompletionTokens).
		Float64("cost_usd", cost.TotalUSD()).
		Float64("turn_cost_usd", state.TotalCostUSD).
		Msg("Model call priced")
}

// turnResult starts a TurnResult from the invocation state.
func turnResult(state *model.AppState) *model.TurnResult {
	res := &model.TurnResult{
		ConversationID: state.ConversationID,
		CostUSD:        state.TotalCostUSD,
	}
	if state.Analysis != nil {
		aq := *state.Analysis
		res.Analysis = &aq
	}
	return res
}

// FormatDate renders t the way prompts expect it.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// firstLines returns up to n non-empty lines of s.
func firstLines(s string, n int) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == n {
			break
		}
	}
	return strings.Join(out, "\n")
}
