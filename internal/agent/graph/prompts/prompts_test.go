package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierEmbedsQueryAndTools(t *testing.T) {
	out, err := Classifier(context.Background(), "당뇨병 논문 찾아줘", "- search_pubmed: Search PubMed")
	require.NoError(t, err)

	assert.Contains(t, out, "당뇨병 논문 찾아줘")
	assert.Contains(t, out, "- search_pubmed: Search PubMed")
	assert.Contains(t, out, `"workflow"`)
	assert.Contains(t, out, "medical")
	assert.Contains(t, out, "general")
}

func TestTranslateEnglishWithAndWithoutContext(t *testing.T) {
	ctx := context.Background()

	plain, err := TranslateEnglish(ctx, "당뇨병 치료", "")
	require.NoError(t, err)
	assert.Contains(t, plain, "당뇨병 치료")
	assert.NotContains(t, plain, "이전 대화 맥락")

	withCtx, err := TranslateEnglish(ctx, "그 부작용은?", "사용자: 당뇨병 치료\nAI: 메트포르민")
	require.NoError(t, err)
	assert.Contains(t, withCtx, "이전 대화 맥락")
	assert.Contains(t, withCtx, "메트포르민")
	assert.Contains(t, withCtx, "그 부작용은?")
}

func TestTranslateKoreanPreservesIdentifierRules(t *testing.T) {
	out, err := TranslateKorean(context.Background(), "PMID: 12345678\nTitle: Effects of metformin")
	require.NoError(t, err)

	// The prompt must instruct the model to keep identifiers and metadata
	// untranslated, and carry the source text verbatim.
	assert.Contains(t, out, "PMID, DOI")
	assert.Contains(t, out, "그대로 유지")
	assert.Contains(t, out, "PMID: 12345678")
	assert.Contains(t, out, "Effects of metformin")
}

func TestDirectAnswerConditionalContext(t *testing.T) {
	ctx := context.Background()

	plain, err := DirectAnswer(ctx, "안녕하세요", "")
	require.NoError(t, err)
	assert.Contains(t, plain, "안녕하세요")
	assert.NotContains(t, plain, "이전 대화 맥락")

	withCtx, err := DirectAnswer(ctx, "더 자세히", "사용자: 감기 증상\nAI: 기침과 발열")
	require.NoError(t, err)
	assert.Contains(t, withCtx, "이전 대화 맥락")
	assert.Contains(t, withCtx, "기침과 발열")
}

func TestSystemPrompts(t *testing.T) {
	ctx := context.Background()

	medical, err := MedicalSystem(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(medical))

	general, err := GeneralSystem(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(general))
	assert.NotEqual(t, medical, general)
}
