package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/medsearch-agent/server/internal/agent/model"
)

// summarySnippetLen bounds each summarized message to its first runes.
const summarySnippetLen = 100

// MessagesManager exposes a windowed, role-tagged view of the persisted
// conversation for prompt construction, and appends completed turns back.
type MessagesManager struct {
	repo         model.ConversationRepository
	memoryTurns  int
	contextTurns int
}

func NewMessagesManager(repo model.ConversationRepository, cfg model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		repo:         repo,
		memoryTurns:  cfg.MemoryTurns,
		contextTurns: cfg.ContextTurns,
	}
}

// Window returns the most recent turns as messages, bounded to the configured
// memory size. Only user and assistant messages count toward the window;
// tool-trace entries are excluded.
func (m *MessagesManager) Window(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	history, err := m.repo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	filtered := make([]*schema.Message, 0, len(history.Messages))
	for _, msg := range history.Messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User, schema.Assistant:
			filtered = append(filtered, msg)
		}
	}

	return trimTail(filtered, m.memoryTurns*2), nil
}

// ContextSummary builds a short textual digest of the latest turns, used to
// condition translation and direct answers. maxTurns <= 0 uses the configured
// context window.
func (m *MessagesManager) ContextSummary(ctx context.Context, conversationID string, maxTurns int) (string, error) {
	if maxTurns <= 0 {
		maxTurns = m.contextTurns
	}

	window, err := m.Window(ctx, conversationID)
	if err != nil {
		return "", err
	}
	recent := trimTail(window, maxTurns*2)
	if len(recent) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, msg := range recent {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("사용자: " + snippet(msg.Content))
		case schema.Assistant:
			b.WriteString("AI: " + snippet(msg.Content))
		}
	}
	return b.String(), nil
}

// SaveTurn persists a completed turn: the user query, the final answer, and
// (when present) the tool-activity transcript as a tool-role entry that the
// window filter skips.
func (m *MessagesManager) SaveTurn(ctx context.Context, conversationID, query, answer, toolTrace string) error {
	if err := m.repo.AddMessage(ctx, conversationID, schema.UserMessage(query)); err != nil {
		return err
	}
	if err := m.repo.AddMessage(ctx, conversationID, schema.AssistantMessage(answer, nil)); err != nil {
		return err
	}
	if toolTrace != "" {
		trace := &schema.Message{Role: schema.Tool, Content: toolTrace}
		if err := m.repo.AddMessage(ctx, conversationID, trace); err != nil {
			return err
		}
	}
	return nil
}

// ClearHistory resets the conversation.
func (m *MessagesManager) ClearHistory(ctx context.Context, conversationID string) error {
	return m.repo.ClearHistory(ctx, conversationID)
}

// MessageCount returns the persisted message count, trace entries included.
func (m *MessagesManager) MessageCount(ctx context.Context, conversationID string) (int, error) {
	return m.repo.GetMessageCount(ctx, conversationID)
}

// ====================== Helper function ======================

func trimTail(messages []*schema.Message, max int) []*schema.Message {
	if max <= 0 || len(messages) <= max {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-max:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}

func snippet(s string) string {
	runes := []rune(s)
	if len(runes) <= summarySnippetLen {
		return s
	}
	return string(runes[:summarySnippetLen]) + "..."
}
