package nodes

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsearch-agent/server/internal/agent/model"
)

// runFormatResponse executes the format_response node in a one-node graph
// with the given turn history preloaded into state.
func runFormatResponse(t *testing.T, history []*schema.Message) *schema.Message {
	t.Helper()
	ctx := context.Background()

	g := compose.NewGraph[[]*schema.Message, *schema.Message](
		compose.WithGenLocalState(func(ctx context.Context) *model.AgentState {
			return &model.AgentState{}
		}),
	)
	g.AddLambdaNode(NodeFormatResponse, NewFormatResponseNode(),
		compose.WithStatePreHandler(func(ctx context.Context, in []*schema.Message, state *model.AgentState) ([]*schema.Message, error) {
			state.History = history
			return in, nil
		}),
	)
	g.AddEdge(compose.START, NodeFormatResponse)
	g.AddEdge(NodeFormatResponse, compose.END)

	runnable, err := g.Compile(ctx)
	require.NoError(t, err)

	out, err := runnable.Invoke(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestFormatResponsePicksLatestToolResult(t *testing.T) {
	out := runFormatResponse(t, []*schema.Message{
		schema.UserMessage("오늘 날씨 어때?"),
		schema.AssistantMessage("", []schema.ToolCall{
			{ID: "call_1", Function: schema.FunctionCall{Name: "get_weather", Arguments: `{"city":"서울"}`}},
		}),
		{Role: schema.Tool, Content: "맑음, 27도", ToolCallID: "call_1"},
	})
	assert.Equal(t, "맑음, 27도", out.Content)
}

func TestFormatResponseFallsBackWhenNoContent(t *testing.T) {
	out := runFormatResponse(t, nil)
	assert.Equal(t, "죄송합니다. 응답을 생성할 수 없습니다.", out.Content)
}

func TestFormatResponseSkipsPendingToolCalls(t *testing.T) {
	// An assistant message still carrying tool calls is not a final answer.
	out := runFormatResponse(t, []*schema.Message{
		schema.AssistantMessage("pending", []schema.ToolCall{
			{ID: "call_1", Function: schema.FunctionCall{Name: "get_weather"}},
		}),
	})
	assert.Equal(t, "죄송합니다. 응답을 생성할 수 없습니다.", out.Content)
}
