package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/medsearch-agent/server/internal/agent/graph/prompts"
	"github.com/medsearch-agent/server/internal/agent/mcp"
	"github.com/medsearch-agent/server/internal/agent/model"
	logx "github.com/medsearch-agent/server/pkg/logger"
)

const (
	DefaultTimeout = 15 * time.Second

	llmConfidence          = 0.8
	textFallbackConfidence = 0.7
)

// Classifier routes a user query to the medical or general workflow. It asks
// a small model for a JSON verdict and degrades through text matching down to
// a safe general-workflow default, so classification itself can never fail a
// turn.
type Classifier struct {
	model   einoModel.BaseChatModel
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]*model.Classification
}

func New(m einoModel.BaseChatModel, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Classifier{
		model:   m,
		timeout: timeout,
		cache:   make(map[string]*model.Classification),
	}
}

// Classify decides the workflow for the query given the currently available
// tools. Identical query+catalog pairs hit an in-memory cache. The returned
// Classification is never nil.
func (c *Classifier) Classify(ctx context.Context, query string, catalog *mcp.Catalog) *model.Classification {
	key := cacheKey(query, catalog)

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		logx.Debug().Str("workflow", string(cached.Workflow)).Msg("classification cache hit")
		return cached
	}
	c.mu.Unlock()

	result, transient := c.classify(ctx, query, catalog)

	// Every verdict derived from an actual model response is cached, the
	// unparseable dead end included. Invocation failures are transient and
	// deserve a fresh attempt next time.
	if !transient {
		c.mu.Lock()
		c.cache[key] = result
		c.mu.Unlock()
	}

	logx.Debug().
		Str("workflow", string(result.Workflow)).
		Float64("confidence", result.Confidence).
		Str("method", string(result.Method)).
		Str("reason", result.Reason).
		Msg("query classified")
	return result
}

// CacheSize reports how many verdicts are cached.
func (c *Classifier) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// classify runs one classification attempt. The second return value marks
// transient failures (the model call itself failed) that must not be cached.
func (c *Classifier) classify(ctx context.Context, query string, catalog *mcp.Catalog) (*model.Classification, bool) {
	promptText, err := prompts.Classifier(ctx, query, describeTools(catalog))
	if err != nil {
		return model.FallbackClassification(fmt.Sprintf("render classifier prompt: %v", err)), true
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(promptText)})
	if err != nil {
		logx.Warn().Err(err).Msg("classification model call failed, defaulting to general")
		return model.FallbackClassification(fmt.Sprintf("classification failed: %v", err)), true
	}

	return parseVerdict(resp.Content), false
}

// parseVerdict extracts the model's JSON verdict, tolerating surrounding prose
// and code fences. Unparseable responses fall back to plain text matching.
func parseVerdict(content string) *model.Classification {
	if raw, ok := extractJSON(content); ok {
		var verdict struct {
			Workflow   string  `json:"workflow"`
			Confidence float64 `json:"confidence"`
			Reason     string  `json:"reason"`
		}
		if err := json.Unmarshal([]byte(raw), &verdict); err == nil {
			wf := model.Workflow(strings.ToLower(strings.TrimSpace(verdict.Workflow)))
			if wf.Valid() {
				confidence := verdict.Confidence
				if confidence <= 0 || confidence > 1 {
					confidence = llmConfidence
				}
				return &model.Classification{
					Workflow:   wf,
					Confidence: confidence,
					Reason:     verdict.Reason,
					Method:     model.MethodLLM,
				}
			}
		}
	}

	lowered := strings.ToLower(content)
	if strings.Contains(lowered, string(model.WorkflowMedical)) {
		return &model.Classification{
			Workflow:   model.WorkflowMedical,
			Confidence: textFallbackConfidence,
			Reason:     "keyword match in unstructured response",
			Method:     model.MethodFallbackText,
		}
	}
	if strings.Contains(lowered, string(model.WorkflowGeneral)) {
		return &model.Classification{
			Workflow:   model.WorkflowGeneral,
			Confidence: textFallbackConfidence,
			Reason:     "keyword match in unstructured response",
			Method:     model.MethodFallbackText,
		}
	}

	return model.FallbackClassification("unparseable classification response")
}

// extractJSON returns the outermost brace-delimited span of s.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// cacheKey builds the cache key from the query and the tool catalog identity,
// so a changed tool set invalidates prior verdicts.
func cacheKey(query string, catalog *mcp.Catalog) string {
	return fmt.Sprintf("%s_%d_%x", query, catalog.Size(), catalog.Identity())
}

// describeTools renders the catalog for the classifier prompt.
func describeTools(catalog *mcp.Catalog) string {
	if catalog.Empty() {
		return "(사용 가능한 도구 없음)"
	}
	var b strings.Builder
	for _, d := range catalog.Descriptors {
		b.WriteString("- ")
		b.WriteString(d.Name)
		if d.Description != "" {
			b.WriteString(": ")
			b.WriteString(d.Description)
		}
		if len(d.Parameters) > 0 {
			b.WriteString(" (parameters: ")
			b.WriteString(strings.Join(d.Parameters, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
