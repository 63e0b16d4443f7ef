package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/medsearch-agent/server/internal/agent/classifier"
	"github.com/medsearch-agent/server/internal/agent/collector"
	"github.com/medsearch-agent/server/internal/agent/graph"
	"github.com/medsearch-agent/server/internal/agent/graph/conversations"
	"github.com/medsearch-agent/server/internal/agent/graph/nodes"
	"github.com/medsearch-agent/server/internal/agent/graph/prompts"
	"github.com/medsearch-agent/server/internal/agent/mcp"
	"github.com/medsearch-agent/server/internal/agent/model"
	errx "github.com/medsearch-agent/server/internal/core/error"
	logx "github.com/medsearch-agent/server/pkg/logger"
)

const noAnswerFallback = "죄송합니다. 응답을 생성할 수 없습니다."

// Session owns one agent's lifetime: the tool provider connections, the
// workflow classifier, and turn-by-turn orchestration. Turns are serialized;
// a second ProcessTurn call blocks until the first finishes.
type Session struct {
	models     *nodes.ChatModels
	mm         *conversations.MessagesManager
	mcpManager *mcp.Manager
	classifier *classifier.Classifier
	turnCfg    model.TurnConfig

	mu        sync.Mutex
	catalog   *mcp.Catalog
	toolInfos []*schema.ToolInfo
}

func New(
	models *nodes.ChatModels,
	mm *conversations.MessagesManager,
	mcpManager *mcp.Manager,
	cls *classifier.Classifier,
	turnCfg model.TurnConfig,
) *Session {
	turnCfg.Normalize()
	return &Session{
		models:     models,
		mm:         mm,
		mcpManager: mcpManager,
		classifier: cls,
		turnCfg:    turnCfg,
		catalog:    &mcp.Catalog{},
	}
}

// Initialize probes the configured tool providers and snapshots the catalog
// used for classification and model binding. The probe connections are closed
// again; tool execution reconnects per turn. A fully failed probe leaves an
// empty catalog and the session still works tool-free.
func (s *Session) Initialize(ctx context.Context) error {
	probe := s.mcpManager.ConnectAllWithRetry(ctx)
	defer probe.Close()

	catalog := probe.Catalog()
	infos, err := catalog.ToolInfos(ctx)
	if err != nil {
		return fmt.Errorf("snapshot tool catalog: %w", err)
	}

	s.mu.Lock()
	s.catalog = catalog
	s.toolInfos = infos
	s.mu.Unlock()

	logx.Info().Int("tools", catalog.Size()).Msg("agent session initialized")
	return nil
}

// Catalog returns the tool catalog snapshot taken at Initialize.
func (s *Session) Catalog() *mcp.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Registry exposes connection status for display.
func (s *Session) Registry() *mcp.StatusRegistry {
	return s.mcpManager.Registry()
}

// ProcessTurn runs one full turn: classify, build the matching workflow
// graph, execute it under the turn deadline, and persist the exchange. The
// conversation is only updated when the turn produced an answer.
func (s *Session) ProcessTurn(ctx context.Context, conversationID, query string) (*model.TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.turnCfg.TimeoutSeconds)*time.Second)
	defer cancel()

	classification := s.classifier.Classify(ctx, query, s.catalog)

	col := collector.New()
	runner, err := graph.Build(ctx, classification.Workflow, &graph.Config{
		ChatModels:      s.models,
		MessagesManager: s.mm,
		MCP:             s.mcpManager,
		Collector:       col,
		ToolInfos:       s.toolInfos,
		RecursionLimit:  s.turnCfg.RecursionLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s workflow graph: %w", classification.Workflow, err)
	}

	out, err := runner.Invoke(ctx, model.QueryInput{ConversationID: conversationID, Query: query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logx.Warn().Str("conversation_id", conversationID).
				Int("timeout_seconds", s.turnCfg.TimeoutSeconds).
				Msg("turn deadline exceeded")
			return nil, errx.New(err, http.StatusGatewayTimeout, errx.TurnTimeoutMessage)
		}
		return nil, fmt.Errorf("execute %s workflow: %w", classification.Workflow, err)
	}

	fallback := ""
	if out != nil {
		fallback = out.Content
	}
	answer := col.FinalAnswer(fallback)
	if answer == "" {
		answer = noAnswerFallback
	}

	result := &model.TurnResult{
		Answer:         answer,
		ToolTrace:      col.ToolTrace(),
		Workflow:       classification.Workflow,
		Classification: classification,
	}

	if err := s.mm.SaveTurn(ctx, conversationID, query, result.Answer, result.ToolTrace); err != nil {
		// The user already has the answer; losing one history entry is the
		// lesser failure.
		logx.Error().Err(err).Str("conversation_id", conversationID).
			Msg("failed to persist turn")
	}

	return result, nil
}

// ProcessBasicTurn answers without classification or tools. It prompts the
// main model directly with the query and recent context, then persists the
// exchange like a normal turn.
func (s *Session) ProcessBasicTurn(ctx context.Context, conversationID, query string) (*model.TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.turnCfg.TimeoutSeconds)*time.Second)
	defer cancel()

	contextSummary, err := s.mm.ContextSummary(ctx, conversationID, 0)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", conversationID).
			Msg("failed to load conversation context for basic turn")
		contextSummary = ""
	}

	promptText, err := prompts.DirectAnswer(ctx, query, contextSummary)
	if err != nil {
		return nil, fmt.Errorf("render direct answer prompt: %w", err)
	}

	resp, err := s.models.Main.Generate(ctx, []*schema.Message{schema.UserMessage(promptText)})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errx.New(err, http.StatusGatewayTimeout, errx.TurnTimeoutMessage)
		}
		return nil, fmt.Errorf("generate basic answer: %w", err)
	}

	answer := resp.Content
	if answer == "" {
		answer = noAnswerFallback
	}

	if err := s.mm.SaveTurn(ctx, conversationID, query, answer, ""); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).
			Msg("failed to persist turn")
	}

	return &model.TurnResult{Answer: answer, Workflow: model.WorkflowGeneral}, nil
}

// ClearHistory wipes the stored conversation.
func (s *Session) ClearHistory(ctx context.Context, conversationID string) error {
	return s.mm.ClearHistory(ctx, conversationID)
}

// MessageCount returns the number of stored messages for a conversation.
func (s *Session) MessageCount(ctx context.Context, conversationID string) (int, error) {
	return s.mm.MessageCount(ctx, conversationID)
}

// Close tears down provider connections.
func (s *Session) Close() {
	s.mcpManager.Close()
}
