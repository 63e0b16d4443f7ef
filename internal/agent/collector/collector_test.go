package collector

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestCollectorAccumulatesAssistantText(t *testing.T) {
	c := New()
	c.OnMessage(schema.AssistantMessage("안녕", nil))
	c.OnMessage(schema.AssistantMessage("하세요", nil))

	assert.Equal(t, "안녕하세요", c.Text())
	assert.Empty(t, c.ToolTrace())
}

func TestCollectorRoutesToolActivityToTrace(t *testing.T) {
	c := New()
	c.OnMessage(schema.AssistantMessage("", []schema.ToolCall{
		{ID: "call_1", Function: schema.FunctionCall{Name: "search_pubmed", Arguments: `{"query":"diabetes"}`}},
	}))
	c.OnMessage(&schema.Message{Role: schema.Tool, ToolCallID: "call_1", Content: `{"results": []}`})

	trace := c.ToolTrace()
	assert.Contains(t, trace, "search_pubmed")
	assert.Contains(t, trace, `{"results": []}`)
	assert.Contains(t, trace, "```json")
	assert.Empty(t, c.Text())
}

func TestFinalAnswerPrefersLatestAssistant(t *testing.T) {
	c := New()
	c.OnMessages([]*schema.Message{
		schema.UserMessage("질문"),
		schema.AssistantMessage("중간 답변", nil),
		{Role: schema.Tool, Content: "tool output"},
		schema.AssistantMessage("최종 답변", nil),
	})

	assert.Equal(t, "최종 답변", c.FinalAnswer("fallback"))
}

func TestFinalAnswerSkipsToolCallRequests(t *testing.T) {
	c := New()
	c.OnMessage(schema.AssistantMessage("진짜 답변", nil))
	c.OnMessage(schema.AssistantMessage("", []schema.ToolCall{{ID: "call_1"}}))

	assert.Equal(t, "진짜 답변", c.FinalAnswer("fallback"))
}

func TestFinalAnswerFallback(t *testing.T) {
	c := New()
	assert.Equal(t, "fallback", c.FinalAnswer("fallback"))

	c.OnMessage(&schema.Message{Role: schema.Tool, Content: "only tools"})
	assert.Equal(t, "fallback", c.FinalAnswer("fallback"))
}

func TestCollectorIgnoresNil(t *testing.T) {
	c := New()
	c.OnMessage(nil)
	c.OnMessages(nil)
	assert.Equal(t, "fallback", c.FinalAnswer("fallback"))
}
