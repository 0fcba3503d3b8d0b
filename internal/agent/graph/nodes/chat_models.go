package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/stockwise-ai/server/internal/agent/model"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey      string
	BaseURL     string
	AnalyzerCfg *model.AnalyzerModelConfig
	SQLCfg      *model.SQLModelConfig
}

// ChatModels holds one model per role. Schema, Generator and Checker are
// separate instances because each is bound to a different tool set.
type ChatModels struct {
	Analyzer  einomodel.ChatModel
	Schema    einomodel.ChatModel
	Generator einomodel.ChatModel
	Checker   einomodel.ChatModel
	Reporter  einomodel.ChatModel

	AnalyzerModelName string
	SQLModelName      string
}

// NewChatModels creates the Gemini models for every role.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.AnalyzerCfg == nil || config.SQLCfg == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	newModel := func(role, name string, temperature float32, maxTokens int) (*gemini.ChatModel, error) {
		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       name,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: false,
				ThinkingBudget:  genai.Ptr(int32(2000)),
			},
		})
		if err != nil {
			logx.Error().Err(err).Str("role", role).Msg("Error creating chat model")
			return nil, fmt.Errorf("error creating %s model: %w", role, err)
		}
		return cm, nil
	}

	a := config.AnalyzerCfg
	s := config.SQLCfg
	cms := &ChatModels{AnalyzerModelName: a.Model, SQLModelName: s.Model}

	if cms.Analyzer, err = newModel("analyzer", a.Model, a.Temperature, a.MaxTokens); err != nil {
		return nil, err
	}
	if cms.Schema, err = newModel("schema", s.Model, s.Temperature, s.MaxTokens); err != nil {
		return nil, err
	}
	if cms.Generator, err = newModel("generator", s.Model, s.Temperature, s.MaxTokens); err != nil {
		return nil, err
	}
	if cms.Checker, err = newModel("checker", s.Model, s.Temperature, s.MaxTokens); err != nil {
		return nil, err
	}
	if cms.Reporter, err = newModel("reporter", s.Model, s.Temperature, s.MaxTokens); err != nil {
		return nil, err
	}
	return cms, nil
}

// Validate reports whether every role has a model.
func (cm *ChatModels) Validate() error {
	if cm == nil || cm.Analyzer == nil || cm.Schema == nil || cm.Generator == nil || cm.Checker == nil || cm.Reporter == nil {
		return fmt.Errorf("chat models are not properly initialized")
	}
	return nil
}

// BindSQLTools binds the schema tool to the schema model and the query tool
// to the generator and checker.
func (cm *ChatModels) BindSQLTools(ctx context.Context, schemaTool, queryTool *schema.ToolInfo) error {
	bindings := []struct {
		role  string
		model einomodel.ChatModel
		tool  *schema.ToolInfo
	}{
		{"schema", cm.Schema, schemaTool},
		{"generator", cm.Generator, queryTool},
		{"checker", cm.Checker, queryTool},
	}
	for _, b := range bindings {
		if err := b.model.BindTools([]*schema.ToolInfo{b.tool}); err != nil {
			logx.Error().Err(err).Str("role", b.role).Msg("Failed to bind tools")
			return fmt.Errorf("failed to bind tools to %s model: %w", b.role, err)
		}
	}

	logx.Debug().Msg("Successfully bound SQL tools")
	return nil
}
