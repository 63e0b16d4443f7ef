package nodes

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/medsearch-agent/server/internal/agent/model"
)

// ===== Small helpers to keep handlers simple/readable =====

// ensureToolCallIDs fills in tool call IDs the provider omitted, using the
// per-turn sequence in state. Tool result messages must echo these IDs back,
// so every call needs one even when the provider is sloppy.
func ensureToolCallIDs(msg *schema.Message, state *model.AgentState) {
	if msg == nil {
		return
	}
	for i := range msg.ToolCalls {
		if strings.TrimSpace(msg.ToolCalls[i].ID) == "" {
			state.ToolCallIDSeq++
			msg.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
		}
	}
}

// errorToolResult wraps a tool round failure as a single synthetic tool
// message so the graph keeps moving toward a user-facing answer instead of
// aborting the turn.
func errorToolResult(err error) *schema.Message {
	return &schema.Message{
		Role:       schema.Tool,
		Content:    fmt.Sprintf("도구 실행 중 오류가 발생했습니다: %v", err),
		ToolCallID: "error",
	}
}

// lastContent walks messages backward and returns the most recent assistant
// or tool content. Assistant messages still waiting on tool calls are skipped.
func lastContent(messages []*schema.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m == nil || m.Content == "" {
			continue
		}
		if m.Role == schema.Assistant && len(m.ToolCalls) == 0 {
			return m.Content, true
		}
		if m.Role == schema.Tool {
			return m.Content, true
		}
	}
	return "", false
}
