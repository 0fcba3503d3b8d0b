package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// maxLogLen bounds message bodies written to the debug log.
const maxLogLen = 2000

// NewAllCallbacks aggregates all observer handlers (prompt, model, tool) into one callbacks.Handler.
func NewAllCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		Tool(newToolHandler()).
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
}

func clip(s string) string {
	if len(s) <= maxLogLen {
		return s
	}
	return s[:maxLogLen] + "...(truncated)"
}
