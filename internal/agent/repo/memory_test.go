package repo

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository()

	require.NoError(t, r.AddMessage(ctx, "c1", schema.UserMessage("질문")))
	require.NoError(t, r.AddMessage(ctx, "c1", schema.AssistantMessage("답변", nil)))
	require.NoError(t, r.AddMessage(ctx, "c2", schema.UserMessage("다른 대화")))

	history, err := r.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "질문", history.Messages[0].Content)

	count, err := r.GetMessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, r.ClearHistory(ctx, "c1"))
	count, err = r.GetMessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Other conversations are untouched.
	count, err = r.GetMessageCount(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryRepositoryMissingConversation(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository()

	history, err := r.LoadHistory(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, history.Messages)
}
