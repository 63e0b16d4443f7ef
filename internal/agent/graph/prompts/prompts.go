package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/medical_system.txt
var medicalSystemPrompt string

//go:embed template/general_system.txt
var generalSystemPrompt string

//go:embed template/classifier.txt
var classifierPrompt string

//go:embed template/translate_english.txt
var translateEnglishPrompt string

//go:embed template/translate_korean.txt
var translateKoreanPrompt string

//go:embed template/direct_answer.txt
var directAnswerPrompt string

// render formats one template via the Eino prompt component so that prompt
// callbacks fire for every rendered prompt.
func render(ctx context.Context, tplText string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(tplText),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// MedicalSystem returns the system prompt for the medical workflow.
func MedicalSystem(ctx context.Context) (string, error) {
	return render(ctx, medicalSystemPrompt, map[string]any{})
}

// GeneralSystem returns the system prompt for the general workflow.
func GeneralSystem(ctx context.Context) (string, error) {
	return render(ctx, generalSystemPrompt, map[string]any{})
}

// Classifier renders the workflow classification prompt. tools is the
// preformatted catalog listing.
func Classifier(ctx context.Context, query, tools string) (string, error) {
	return render(ctx, classifierPrompt, map[string]any{
		"Query": query,
		"Tools": tools,
	})
}

// TranslateEnglish renders the search-oriented English translation prompt,
// optionally conditioned on a short conversation summary.
func TranslateEnglish(ctx context.Context, query, contextSummary string) (string, error) {
	return render(ctx, translateEnglishPrompt, map[string]any{
		"Query":   query,
		"Context": contextSummary,
	})
}

// TranslateKorean renders the identifier-preserving Korean translation prompt.
func TranslateKorean(ctx context.Context, content string) (string, error) {
	return render(ctx, translateKoreanPrompt, map[string]any{
		"Content": content,
	})
}

// DirectAnswer renders the tool-free Korean answer prompt.
func DirectAnswer(ctx context.Context, query, contextSummary string) (string, error) {
	return render(ctx, directAnswerPrompt, map[string]any{
		"Query":   query,
		"Context": contextSummary,
	})
}
