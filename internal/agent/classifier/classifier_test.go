package classifier

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsearch-agent/server/internal/agent/mcp"
	"github.com/medsearch-agent/server/internal/agent/model"
)

type fakeChatModel struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
}

func (f *fakeChatModel) Generate(ctx context.Context, msgs []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testCatalog(names ...string) *mcp.Catalog {
	c := &mcp.Catalog{}
	for _, n := range names {
		c.Descriptors = append(c.Descriptors, mcp.ToolDescriptor{Name: n, Description: "desc"})
	}
	return c
}

func TestClassifyJSONVerdict(t *testing.T) {
	fake := &fakeChatModel{content: `{"workflow": "medical", "confidence": 0.92, "reason": "논문 검색 요청"}`}
	cls := New(fake, time.Second)

	result := cls.Classify(context.Background(), "당뇨병 최신 논문 찾아줘", testCatalog("search_pubmed"))

	require.NotNil(t, result)
	assert.Equal(t, model.WorkflowMedical, result.Workflow)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, model.MethodLLM, result.Method)
	assert.Equal(t, "논문 검색 요청", result.Reason)
}

func TestClassifyJSONWithSurroundingProse(t *testing.T) {
	fake := &fakeChatModel{content: "분석 결과는 다음과 같습니다.\n```json\n{\"workflow\": \"general\", \"confidence\": 0.85, \"reason\": \"일반 질문\"}\n```"}
	cls := New(fake, time.Second)

	result := cls.Classify(context.Background(), "안녕하세요", testCatalog())

	assert.Equal(t, model.WorkflowGeneral, result.Workflow)
	assert.Equal(t, model.MethodLLM, result.Method)
}

func TestClassifyDefaultsInvalidConfidence(t *testing.T) {
	fake := &fakeChatModel{content: `{"workflow": "medical", "confidence": 0, "reason": ""}`}
	cls := New(fake, time.Second)

	result := cls.Classify(context.Background(), "PMID 12345", testCatalog())

	assert.Equal(t, model.WorkflowMedical, result.Workflow)
	assert.Equal(t, llmConfidence, result.Confidence)
}

func TestClassifyTextFallback(t *testing.T) {
	fake := &fakeChatModel{content: "이 질문에는 medical 워크플로우가 적합해 보입니다."}
	cls := New(fake, time.Second)

	result := cls.Classify(context.Background(), "고혈압 연구 동향", testCatalog())

	assert.Equal(t, model.WorkflowMedical, result.Workflow)
	assert.Equal(t, textFallbackConfidence, result.Confidence)
	assert.Equal(t, model.MethodFallbackText, result.Method)
}

func TestClassifyUnparseableDefaultsToGeneral(t *testing.T) {
	fake := &fakeChatModel{content: "도무지 알 수 없는 응답"}
	cls := New(fake, time.Second)

	result := cls.Classify(context.Background(), "뭐든 물어봐", testCatalog())

	assert.Equal(t, model.WorkflowGeneral, result.Workflow)
	assert.Equal(t, model.MethodFallbackError, result.Method)
	assert.Equal(t, 0.5, result.Confidence)

	// The model did answer, so the verdict is cached like any other
	// parsed result.
	second := cls.Classify(context.Background(), "뭐든 물어봐", testCatalog())
	assert.Same(t, result, second)
	assert.Equal(t, 1, fake.callCount())
	assert.Equal(t, 1, cls.CacheSize())
}

func TestClassifyModelErrorFallsBack(t *testing.T) {
	fake := &fakeChatModel{err: fmt.Errorf("provider unavailable")}
	cls := New(fake, time.Second)

	result := cls.Classify(context.Background(), "감기 증상", testCatalog())

	require.NotNil(t, result)
	assert.Equal(t, model.WorkflowGeneral, result.Workflow)
	assert.Equal(t, model.MethodFallbackError, result.Method)
	// Transient failures must not poison the cache.
	assert.Equal(t, 0, cls.CacheSize())
}

func TestClassifyCachesByQueryAndCatalog(t *testing.T) {
	fake := &fakeChatModel{content: `{"workflow": "general", "confidence": 0.8, "reason": "ok"}`}
	cls := New(fake, time.Second)
	ctx := context.Background()

	catalog := testCatalog("search_pubmed")
	first := cls.Classify(ctx, "안녕", catalog)
	second := cls.Classify(ctx, "안녕", catalog)

	assert.Same(t, first, second)
	assert.Equal(t, 1, fake.callCount())

	// A different tool set is a different cache entry.
	cls.Classify(ctx, "안녕", testCatalog("search_pubmed", "fetch_abstract"))
	assert.Equal(t, 2, fake.callCount())
	assert.Equal(t, 2, cls.CacheSize())
}

func TestDescribeTools(t *testing.T) {
	catalog := &mcp.Catalog{Descriptors: []mcp.ToolDescriptor{
		{Name: "search_pubmed", Description: "Search PubMed", Parameters: []string{"query", "max_results"}},
		{Name: "bare_tool"},
	}}

	out := describeTools(catalog)
	assert.Contains(t, out, "- search_pubmed: Search PubMed (parameters: query, max_results)")
	assert.Contains(t, out, "- bare_tool")

	assert.Equal(t, "(사용 가능한 도구 없음)", describeTools(&mcp.Catalog{}))
}
