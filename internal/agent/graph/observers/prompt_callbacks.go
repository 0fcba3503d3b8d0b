package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/prompt"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
	"github.com/rs/zerolog"

	logx "github.com/stockwise-ai/server/pkg/logger"
)

// promptFields are the template variables worth seeing next to a rendered
// prompt. Catalog listings and transcripts are left out.
var promptFields = []string{"operation_type", "dialect", "currency", "top_k", "request"}

// newPromptHandler logs which request a prompt was rendered for.
func newPromptHandler() *callbackHelper.PromptCallbackHandler {
	return &callbackHelper.PromptCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *prompt.CallbackInput) context.Context {
			if input != nil {
				promptVariables(logx.Debug().Str("node", info.Name), input.Variables).Msg("rendering prompt")
			}
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *prompt.CallbackOutput) context.Context {
			if output != nil && len(output.Result) > 0 && output.Result[0] != nil {
				logx.Debug().
					Str("node", info.Name).
					Int("chars", len(output.Result[0].Content)).
					Str("rendered", clip(output.Result[0].Content)).
					Msg("prompt rendered")
			}
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("node", info.Name).Msg("prompt template failed")
			return ctx
		},
	}
}

func promptVariables(ev *zerolog.Event, vars map[string]any) *zerolog.Event {
	for _, k := range promptFields {
		v, ok := vars[k]
		if !ok {
			continue
		}
		if s, isString := v.(string); isString {
			ev = ev.Str(k, clip(s))
			continue
		}
		ev = ev.Interface(k, v)
	}
	return ev
}
