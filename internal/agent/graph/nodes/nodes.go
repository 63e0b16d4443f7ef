package nodes

import (
	"context"
	"fmt"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/medsearch-agent/server/internal/agent/collector"
	"github.com/medsearch-agent/server/internal/agent/graph/conversations"
	"github.com/medsearch-agent/server/internal/agent/graph/prompts"
	"github.com/medsearch-agent/server/internal/agent/mcp"
	"github.com/medsearch-agent/server/internal/agent/model"
	logx "github.com/medsearch-agent/server/pkg/logger"
)

// Node keys shared by the graph builder and the branch conditions.
const (
	NodeTranslateToEnglish = "translate_to_english"
	NodeInputConverter     = "input_converter"
	NodeAgent              = "agent"
	NodeAction             = "action"
	NodeTranslateToKorean  = "translate_to_korean"
	NodeDirectAnswer       = "direct_answer"
	NodeFormatResponse     = "format_response"
)

const directAnswerContextTurns = 5

// NewTurnPreHandler creates the pre-handler for the graph's entry node. It
// seeds the per-turn state before any node runs.
func NewTurnPreHandler() func(context.Context, model.QueryInput, *model.AgentState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AgentState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.Query = in.Query
		s.History = nil
		s.ToolCallIDSeq = 0
		return in, nil
	}
}

// NewTranslateToEnglishNode builds the medical workflow's entry node. It
// translates the Korean query into English search keywords and assembles the
// agent prompt around the translation. A failed or empty translation falls
// back to the original query text so the turn still proceeds.
func NewTranslateToEnglishNode(
	mm *conversations.MessagesManager,
	translator einoModel.BaseChatModel,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		contextSummary, err := mm.ContextSummary(ctx, input.ConversationID, 0)
		if err != nil {
			logx.Warn().Err(err).Str("conversation_id", input.ConversationID).
				Msg("failed to load conversation context, translating without it")
			contextSummary = ""
		}

		english := input.Query
		promptText, err := prompts.TranslateEnglish(ctx, input.Query, contextSummary)
		if err == nil {
			resp, genErr := translator.Generate(ctx, []*schema.Message{schema.UserMessage(promptText)})
			if genErr != nil || resp == nil || resp.Content == "" {
				logx.Warn().Err(genErr).Msg("query translation failed, using original query")
			} else {
				english = resp.Content
			}
		} else {
			logx.Warn().Err(err).Msg("render translation prompt failed, using original query")
		}

		systemPrompt, err := prompts.MedicalSystem(ctx)
		if err != nil {
			return nil, fmt.Errorf("render medical system prompt: %w", err)
		}

		window, err := mm.Window(ctx, input.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load conversation window: %w", err)
		}

		messages := make([]*schema.Message, 0, len(window)+2)
		messages = append(messages, schema.SystemMessage(systemPrompt))
		messages = append(messages, window...)
		messages = append(messages, schema.UserMessage(english))
		return messages, nil
	})
}

// NewInputConverterNode builds the general workflow's entry node: the system
// prompt plus the recent conversation window plus the untranslated query.
func NewInputConverterNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		systemPrompt, err := prompts.GeneralSystem(ctx)
		if err != nil {
			return nil, fmt.Errorf("render general system prompt: %w", err)
		}

		window, err := mm.Window(ctx, input.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load conversation window: %w", err)
		}

		messages := make([]*schema.Message, 0, len(window)+2)
		messages = append(messages, schema.SystemMessage(systemPrompt))
		messages = append(messages, window...)
		messages = append(messages, schema.UserMessage(input.Query))
		return messages, nil
	})
}

// NewPromptPostHandler records a node's assembled prompt into the turn
// history. The prompt replays the persisted conversation window, so it is
// never forwarded to the collector: the collector only sees messages newly
// produced this turn.
func NewPromptPostHandler() func(context.Context, []*schema.Message, *model.AgentState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.AgentState) ([]*schema.Message, error) {
		state.History = append(state.History, out...)
		return out, nil
	}
}

// NewAgentPostHandler creates the post-handler for the main chat model node.
// It repairs missing tool call IDs, logs token usage cost, and appends the
// model turn to history.
func NewAgentPostHandler(modelName string, col *collector.Collector) func(context.Context, *schema.Message, *model.AgentState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AgentState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("main model returned no message")
		}

		ensureToolCallIDs(out, state)

		if model.CostEnabled() && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Str("node", NodeAgent).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")
		}

		state.History = append(state.History, out)
		col.OnMessage(out)
		return out, nil
	}
}

// NewToolRoutingCondition routes the model turn to tool execution when the
// model requested tools, and straight to the direct answer otherwise.
func NewToolRoutingCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		if input != nil && len(input.ToolCalls) > 0 {
			logx.Debug().Int("tool_calls", len(input.ToolCalls)).Msg("routing to tool execution")
			return NodeAction, nil
		}
		logx.Debug().Msg("no tool calls requested, routing to direct answer")
		return NodeDirectAnswer, nil
	}
}

// NewActionNode executes the model's tool calls against a fresh provider
// session. Any failure in the round degrades to a synthetic error result
// instead of failing the turn, so the user still gets an explained answer.
func NewActionNode(manager *mcp.Manager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) ([]*schema.Message, error) {
		session := manager.ConnectAll(ctx)
		defer session.Close()

		catalog := session.Catalog()
		if catalog.Empty() {
			return []*schema.Message{errorToolResult(fmt.Errorf("no tools available"))}, nil
		}

		results := make([]*schema.Message, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			inv, ok := catalog.FindInvokable(ctx, tc.Function.Name)
			if !ok {
				logx.Warn().Str("tool", tc.Function.Name).Msg("requested tool not found in catalog")
				return []*schema.Message{errorToolResult(fmt.Errorf("tool %q not found", tc.Function.Name))}, nil
			}

			logx.Debug().Str("tool", tc.Function.Name).Str("arguments", tc.Function.Arguments).
				Msg("executing tool")
			out, err := inv.InvokableRun(ctx, tc.Function.Arguments)
			if err != nil {
				logx.Error().Err(err).Str("tool", tc.Function.Name).Msg("tool execution failed")
				return []*schema.Message{errorToolResult(err)}, nil
			}

			results = append(results, &schema.Message{
				Role:       schema.Tool,
				Content:    out,
				ToolCallID: tc.ID,
			})
		}
		return results, nil
	})
}

// NewActionPostHandler appends the tool round's results to history.
func NewActionPostHandler(col *collector.Collector) func(context.Context, []*schema.Message, *model.AgentState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.AgentState) ([]*schema.Message, error) {
		state.History = append(state.History, out...)
		col.OnMessages(out)
		return out, nil
	}
}

// NewTranslateToKoreanNode renders the turn's findings back into Korean. The
// source text is the latest tool result, or the latest final assistant message
// when no tool produced output.
func NewTranslateToKoreanNode(translator einoModel.BaseChatModel) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		var source string
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AgentState) error {
			for i := len(state.History) - 1; i >= 0; i-- {
				m := state.History[i]
				if m != nil && m.Role == schema.Tool && m.Content != "" {
					source = m.Content
					return nil
				}
			}
			for i := len(state.History) - 1; i >= 0; i-- {
				m := state.History[i]
				if m != nil && m.Role == schema.Assistant && len(m.ToolCalls) == 0 && m.Content != "" {
					source = m.Content
					return nil
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if source == "" {
			return schema.AssistantMessage("죄송합니다. 번역할 내용을 찾을 수 없습니다.", nil), nil
		}

		promptText, err := prompts.TranslateKorean(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("render korean translation prompt: %w", err)
		}

		resp, err := translator.Generate(ctx, []*schema.Message{schema.UserMessage(promptText)})
		if err != nil {
			logx.Error().Err(err).Msg("korean translation failed")
			return schema.AssistantMessage(fmt.Sprintf("번역 중 오류가 발생했습니다: %v", err), nil), nil
		}
		return resp, nil
	})
}

// NewDirectAnswerNode answers without tools. The translator model is
// re-prompted with the original Korean query plus a short slice of recent
// conversation so followups stay coherent.
func NewDirectAnswerNode(
	mm *conversations.MessagesManager,
	translator einoModel.BaseChatModel,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input *schema.Message) (*schema.Message, error) {
		var conversationID, query string
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AgentState) error {
			conversationID = state.ConversationID
			query = state.Query
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		contextSummary, err := mm.ContextSummary(ctx, conversationID, directAnswerContextTurns)
		if err != nil {
			logx.Warn().Err(err).Str("conversation_id", conversationID).
				Msg("failed to load conversation context for direct answer")
			contextSummary = ""
		}

		promptText, err := prompts.DirectAnswer(ctx, query, contextSummary)
		if err != nil {
			return nil, fmt.Errorf("render direct answer prompt: %w", err)
		}

		resp, err := translator.Generate(ctx, []*schema.Message{schema.UserMessage(promptText)})
		if err != nil {
			logx.Error().Err(err).Msg("direct answer generation failed")
			return schema.AssistantMessage("죄송합니다. 응답을 생성할 수 없습니다.", nil), nil
		}
		return resp, nil
	})
}

// NewFormatResponseNode closes the general workflow after a tool round: it
// surfaces the most recent usable content from the turn history.
func NewFormatResponseNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		var answer string
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AgentState) error {
			if content, ok := lastContent(state.History); ok {
				answer = content
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if answer == "" {
			answer = "죄송합니다. 응답을 생성할 수 없습니다."
		}
		return schema.AssistantMessage(answer, nil), nil
	})
}

// NewFinalPostHandler records the terminal node's answer into history.
func NewFinalPostHandler(col *collector.Collector) func(context.Context, *schema.Message, *model.AgentState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AgentState) (*schema.Message, error) {
		if out != nil {
			state.History = append(state.History, out)
			col.OnMessage(out)
		}
		return out, nil
	}
}
