package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"

	"github.com/stockwise-ai/server/internal/agent/graph/conversations"
	"github.com/stockwise-ai/server/internal/agent/graph/nodes"
	"github.com/stockwise-ai/server/internal/agent/graph/observers"
	"github.com/stockwise-ai/server/internal/agent/graph/tools"
	"github.com/stockwise-ai/server/internal/agent/model"
	"github.com/stockwise-ai/server/internal/agent/sqlguard"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

// Store is the inventory database as the agent sees it.
type Store interface {
	model.SQLDatabase
	model.ItemCatalog
}

// Runner is a thin wrapper to execute the compiled graph with the public QueryInput.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.TurnResult, error)
}

// Config holds everything needed to compose the full agent graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs ChatModels and MessagesManager.
type Config struct {
	APIKey           string
	BaseURL          string
	AnalyzerModel    model.AnalyzerModelConfig
	SQLModel         model.SQLModelConfig
	Agent            model.AgentConfig
	Store            Store
	ConversationRepo model.ConversationRepository
	// MessagesManager is shared with the session layer; built from ConversationRepo when nil.
	MessagesManager *conversations.MessagesManager
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	Store           Store
	Agent           model.AgentConfig
	// Now is the clock used for dates in prompts; time.Now when nil.
	Now func() time.Time
}

// GraphBuilder handles the construction of the agent graph
type GraphBuilder struct {
	config   *GraphConfig
	currency model.Currency
	policy   sqlguard.Policy
	graph    *compose.Graph[model.QueryInput, *model.TurnResult]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.TurnResult]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.TurnResult, error) {
	out, err := r.runnable.Invoke(ctx, model.QueryInput{
		ConversationID: in.ConversationID,
		Query:          in.Query,
	}, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("graph returned no result")
	}
	return out, nil
}

// NewRunner wraps a compiled graph.
func NewRunner(runnable compose.Runnable[model.QueryInput, *model.TurnResult]) Runner {
	return &graphRunner{runnable: runnable}
}

// BuildAgentGraph composes ChatModels, MessagesManager, builds the graph, and returns a Runner.
func BuildAgentGraph(ctx context.Context, cfg Config) (Runner, error) {
	mm := cfg.MessagesManager
	if mm == nil {
		if cfg.ConversationRepo == nil {
			return nil, fmt.Errorf("conversation repo is nil")
		}
		mm = conversations.NewMessagesManager(cfg.ConversationRepo, 0)
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		AnalyzerCfg: &cfg.AnalyzerModel,
		SQLCfg:      &cfg.SQLModel,
	})
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: mm,
		Store:           cfg.Store,
		Agent:           cfg.Agent,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Agent graph built successfully")
	return NewRunner(runnable), nil
}

// BuildGraph constructs and returns the compiled agent graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.TurnResult], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if err := config.ChatModels.Validate(); err != nil {
		return nil, err
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("inventory store is nil")
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	builder := &GraphBuilder{
		config:   config,
		currency: model.ResolveCurrency(config.Agent.CurrencyType),
		policy:   sqlguard.Policy{Token: config.Agent.WriteToken},
		graph: compose.NewGraph[model.QueryInput, *model.TurnResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupTools binds the SQL tools to the models and adds the tool nodes.
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	schemaTool := tools.NewSchemaTool(b.config.Store)
	queryTool := tools.NewQueryTool(b.config.Store, b.policy, requestText)

	infos, err := tools.ToolInfos(ctx, schemaTool, queryTool)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}
	if err := b.config.ChatModels.BindSQLTools(ctx, infos[0], infos[1]); err != nil {
		return err
	}

	schemaNode, err := newToolsNode(ctx, schemaTool)
	if err != nil {
		return err
	}
	queryNode, err := newToolsNode(ctx, queryTool)
	if err != nil {
		return err
	}

	b.graph.AddToolsNode(nodes.NodeGetSchema, schemaNode)
	b.graph.AddToolsNode(nodes.NodeRunQuery, queryNode,
		compose.WithStatePreHandler(nodes.NewRunQueryPreHandler(b.config.Agent.MaxQueryRounds)),
	)
	return nil
}

func newToolsNode(ctx context.Context, t tool.BaseTool) (*compose.ToolsNode, error) {
	node, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               []tool.BaseTool{t},
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			return fmt.Sprintf("Error: unknown tool %q. Only the provided tools can be used.", name), nil
		},
		ToolArgumentsHandler: sanitizeArguments,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return nil, fmt.Errorf("failed to create tools node: %w", err)
	}
	return node, nil
}

// sanitizeArguments applies tools.NormalizeArguments. Arguments it rejects
// are passed through unchanged so the tool answers with an error text.
func sanitizeArguments(ctx context.Context, name, arguments string) (string, error) {
	normalized, err := tools.NormalizeArguments(name, arguments)
	if err != nil {
		logx.Warn().Err(err).Str("tool_name", name).Msg("Tool arguments rejected")
		return arguments, nil
	}
	return normalized, nil
}

// requestText reads the user's words of the current request from graph state.
func requestText(ctx context.Context) string {
	var text string
	_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
		text = state.RequestText
		return nil
	})
	return text
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	cfg := b.config
	cms := cfg.ChatModels
	mm := cfg.MessagesManager

	b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(mm, cfg.Store, cfg.Now),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	)
	b.graph.AddChatModelNode(nodes.NodeAnalyzerChatModel, cms.Analyzer,
		compose.WithStatePostHandler(nodes.NewUsagePostHandler(nodes.NodeAnalyzerChatModel, cms.AnalyzerModelName)),
	)
	b.graph.AddLambdaNode(nodes.NodeAnalysisParser,
		nodes.NewAnalysisParserNode(),
		compose.WithStatePostHandler(nodes.NewAnalysisParserPostHandler(mm)),
	)
	b.graph.AddLambdaNode(nodes.NodeClarify, nodes.NewClarifyNode(mm))

	b.graph.AddLambdaNode(nodes.NodeListTables,
		nodes.NewListTablesNode(cfg.Store, cfg.Agent, b.currency, b.policy, cfg.Now),
	)
	b.graph.AddChatModelNode(nodes.NodeSchemaChatModel, cms.Schema,
		compose.WithStatePostHandler(nodes.NewSchemaChatModelPostHandler(cms.SQLModelName)),
	)
	b.graph.AddChatModelNode(nodes.NodeGenerateQuery, cms.Generator,
		compose.WithStatePreHandler(nodes.NewGenerateQueryPreHandler(cfg.Agent.MaxQueryRounds)),
		compose.WithStatePostHandler(nodes.NewGenerateQueryPostHandler(cms.SQLModelName)),
	)
	b.graph.AddLambdaNode(nodes.NodeCheckQuery,
		nodes.NewCheckQueryNode(cms.Checker, cfg.Store.Dialect(), cms.SQLModelName),
		compose.WithStatePostHandler(nodes.NewCheckQueryPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeRefuse, nodes.NewRefuseNode(mm))
	b.graph.AddLambdaNode(nodes.NodeFinalize, nodes.NewFinalizeNode(mm))
	b.graph.AddLambdaNode(nodes.NodeReport,
		nodes.NewReportNode(mm, cms.Reporter, b.currency, cms.SQLModelName),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeAnalyzerChatModel},
		{nodes.NodeAnalyzerChatModel, nodes.NodeAnalysisParser},
		{nodes.NodeClarify, compose.END},
		{nodes.NodeListTables, nodes.NodeSchemaChatModel},
		{nodes.NodeSchemaChatModel, nodes.NodeGetSchema},
		{nodes.NodeGetSchema, nodes.NodeGenerateQuery},
		{nodes.NodeRunQuery, nodes.NodeGenerateQuery},
		{nodes.NodeRefuse, compose.END},
		{nodes.NodeFinalize, compose.END},
		{nodes.NodeReport, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	branches := []struct {
		from   string
		name   string
		branch *compose.GraphBranch
	}{
		{
			from: nodes.NodeAnalysisParser,
			name: "clarify",
			branch: compose.NewGraphBranch(nodes.NewClarifyCondition(), map[string]bool{
				nodes.NodeClarify:    true,
				nodes.NodeListTables: true,
			}),
		},
		{
			from: nodes.NodeGenerateQuery,
			name: "generate",
			branch: compose.NewGraphBranch(nodes.NewGenerateQueryCondition(), map[string]bool{
				nodes.NodeCheckQuery: true,
				nodes.NodeFinalize:   true,
				nodes.NodeReport:     true,
			}),
		},
		{
			from: nodes.NodeCheckQuery,
			name: "authorization",
			branch: compose.NewGraphBranch(nodes.NewAuthorizationCondition(b.policy), map[string]bool{
				nodes.NodeRunQuery: true,
				nodes.NodeRefuse:   true,
			}),
		},
	}

	for _, br := range branches {
		if err := b.graph.AddBranch(br.from, br.branch); err != nil {
			logx.Error().Err(err).Str("branch", br.name).Msg("Error adding branch")
			return fmt.Errorf("error adding %s branch: %w", br.name, err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.TurnResult], error) {
	// Fixed path plus three steps (generate, check, run) per query round
	maxSteps := 12 + b.config.Agent.MaxQueryRounds*3
	if maxSteps < 30 {
		maxSteps = 30
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
