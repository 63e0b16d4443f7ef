package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/medsearch-agent/server/internal/agent/model"
)

// ChatModels holds the two models a turn needs: the tool-calling main model
// that drives search, and the lighter translator model used for
// Korean/English bridging and direct answers.
type ChatModels struct {
	Main       einoModel.ToolCallingChatModel
	Translator einoModel.BaseChatModel

	MainModelName       string
	TranslatorModelName string
}

func NewChatModels(ctx context.Context, apiKey, baseURL string, mainCfg model.MainModelConfig, trCfg model.TranslatorModelConfig) (*ChatModels, error) {
	main, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       mainCfg.Model,
		MaxTokens:   intPtr(mainCfg.MaxTokens),
		Temperature: float32Ptr(mainCfg.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("create main chat model: %w", err)
	}

	translator, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       trCfg.Model,
		MaxTokens:   intPtr(trCfg.MaxTokens),
		Temperature: float32Ptr(trCfg.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("create translator chat model: %w", err)
	}

	return &ChatModels{
		Main:                main,
		Translator:          translator,
		MainModelName:       mainCfg.Model,
		TranslatorModelName: trCfg.Model,
	}, nil
}

// BindTools returns the main model with the given tool catalog attached.
// An empty catalog returns the unbound model so the provider never sees an
// empty tools array.
func (c *ChatModels) BindTools(infos []*schema.ToolInfo) (einoModel.ToolCallingChatModel, error) {
	if len(infos) == 0 {
		return c.Main, nil
	}
	bound, err := c.Main.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("bind tools to main model: %w", err)
	}
	return bound, nil
}

func intPtr(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func float32Ptr(v float32) *float32 {
	return &v
}
