package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/medsearch-agent/server/internal/agent/collector"
	"github.com/medsearch-agent/server/internal/agent/graph/conversations"
	"github.com/medsearch-agent/server/internal/agent/graph/nodes"
	"github.com/medsearch-agent/server/internal/agent/graph/observers"
	"github.com/medsearch-agent/server/internal/agent/mcp"
	"github.com/medsearch-agent/server/internal/agent/model"
	logx "github.com/medsearch-agent/server/pkg/logger"
)

// Runner executes a compiled workflow graph for one turn.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*schema.Message, error)
}

// Config holds everything needed to build one workflow graph.
type Config struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	MCP             *mcp.Manager
	Collector       *collector.Collector
	// ToolInfos is the catalog snapshot bound to the main model. May be empty
	// when no provider connected; the graph still runs tool-free.
	ToolInfos      []*schema.ToolInfo
	RecursionLimit int
}

// GraphBuilder handles the construction of one workflow graph.
type GraphBuilder struct {
	config   *Config
	workflow model.Workflow
	graph    *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*schema.Message, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
}

// Build constructs and compiles the graph for the given workflow.
func Build(ctx context.Context, workflow model.Workflow, config *Config) (Runner, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Main == nil || config.ChatModels.Translator == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.MCP == nil {
		return nil, fmt.Errorf("mcp manager is nil")
	}
	if config.Collector == nil {
		return nil, fmt.Errorf("collector is nil")
	}
	if !workflow.Valid() {
		return nil, fmt.Errorf("unknown workflow %q", workflow)
	}

	builder := &GraphBuilder{
		config:   config,
		workflow: workflow,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AgentState {
				return &model.AgentState{}
			}),
		),
	}

	if err := builder.addNodes(ctx); err != nil {
		return nil, err
	}
	builder.addEdges()
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	return &graphRunner{runnable: runnable}, nil
}

// addNodes adds all processing nodes for the selected workflow.
func (b *GraphBuilder) addNodes(ctx context.Context) error {
	cfg := b.config

	if b.workflow == model.WorkflowMedical {
		b.graph.AddLambdaNode(nodes.NodeTranslateToEnglish,
			nodes.NewTranslateToEnglishNode(cfg.MessagesManager, cfg.ChatModels.Translator),
			compose.WithStatePreHandler(nodes.NewTurnPreHandler()),
			compose.WithStatePostHandler(nodes.NewPromptPostHandler()),
		)
	} else {
		b.graph.AddLambdaNode(nodes.NodeInputConverter,
			nodes.NewInputConverterNode(cfg.MessagesManager),
			compose.WithStatePreHandler(nodes.NewTurnPreHandler()),
			compose.WithStatePostHandler(nodes.NewPromptPostHandler()),
		)
	}

	agentModel, err := cfg.ChatModels.BindTools(cfg.ToolInfos)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to main model")
		return err
	}
	b.graph.AddChatModelNode(nodes.NodeAgent, agentModel,
		compose.WithStatePostHandler(nodes.NewAgentPostHandler(cfg.ChatModels.MainModelName, cfg.Collector)),
	)

	b.graph.AddLambdaNode(nodes.NodeAction,
		nodes.NewActionNode(cfg.MCP),
		compose.WithStatePostHandler(nodes.NewActionPostHandler(cfg.Collector)),
	)

	b.graph.AddLambdaNode(nodes.NodeDirectAnswer,
		nodes.NewDirectAnswerNode(cfg.MessagesManager, cfg.ChatModels.Translator),
		compose.WithStatePostHandler(nodes.NewFinalPostHandler(cfg.Collector)),
	)

	if b.workflow == model.WorkflowMedical {
		b.graph.AddLambdaNode(nodes.NodeTranslateToKorean,
			nodes.NewTranslateToKoreanNode(cfg.ChatModels.Translator),
			compose.WithStatePostHandler(nodes.NewFinalPostHandler(cfg.Collector)),
		)
	} else {
		b.graph.AddLambdaNode(nodes.NodeFormatResponse,
			nodes.NewFormatResponseNode(),
			compose.WithStatePostHandler(nodes.NewFinalPostHandler(cfg.Collector)),
		)
	}

	return nil
}

// addEdges creates the main flow connections between nodes.
func (b *GraphBuilder) addEdges() {
	var edges [][2]string
	if b.workflow == model.WorkflowMedical {
		edges = [][2]string{
			{compose.START, nodes.NodeTranslateToEnglish},
			{nodes.NodeTranslateToEnglish, nodes.NodeAgent},
			{nodes.NodeAction, nodes.NodeTranslateToKorean},
			{nodes.NodeTranslateToKorean, compose.END},
			{nodes.NodeDirectAnswer, compose.END},
		}
	} else {
		edges = [][2]string{
			{compose.START, nodes.NodeInputConverter},
			{nodes.NodeInputConverter, nodes.NodeAgent},
			{nodes.NodeAction, nodes.NodeFormatResponse},
			{nodes.NodeFormatResponse, compose.END},
			{nodes.NodeDirectAnswer, compose.END},
		}
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches routes the model turn to tool execution or the direct answer.
func (b *GraphBuilder) addBranches() error {
	toolBranch := compose.NewGraphBranch(
		nodes.NewToolRoutingCondition(),
		map[string]bool{
			nodes.NodeAction:       true,
			nodes.NodeDirectAnswer: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeAgent, toolBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tool routing branch")
		return fmt.Errorf("error adding tool routing branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	maxSteps := b.config.RecursionLimit
	if maxSteps <= 0 {
		maxSteps = 100
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Str("workflow", string(b.workflow)).Msg("Graph compiled successfully")
	return runnable, nil
}
