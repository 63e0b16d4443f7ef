package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/medsearch-agent/server/internal/agent/classifier"
	"github.com/medsearch-agent/server/internal/agent/graph/conversations"
	"github.com/medsearch-agent/server/internal/agent/graph/nodes"
	"github.com/medsearch-agent/server/internal/agent/mcp"
	"github.com/medsearch-agent/server/internal/agent/model"
	"github.com/medsearch-agent/server/internal/agent/repo"
	"github.com/medsearch-agent/server/internal/agent/session"
	"github.com/medsearch-agent/server/internal/core"
	logx "github.com/medsearch-agent/server/pkg/logger"
	pkgredis "github.com/medsearch-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure. An empty REDIS_URL keeps history in process memory.
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	BaseURL string `envconfig:"OPENAI_BASE_URL"`

	// Tool providers
	MCPConfigPath string `envconfig:"MCP_CONFIG_PATH" default:"medical_config.json"`

	// Agent configs
	Main         model.MainModelConfig
	Translator   model.TranslatorModelConfig
	Conversation model.ConversationConfig
	Turn         model.TurnConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	conversationRepo, cleanup, err := buildRepository(&cfg)
	if err != nil {
		log.Fatalf("Failed to initialise conversation store: %v", err)
	}
	defer cleanup()

	mcpCfg, err := mcp.LoadConfig(cfg.MCPConfigPath)
	if err != nil {
		log.Fatalf("Failed to load MCP config %s: %v", cfg.MCPConfigPath, err)
	}

	models, err := nodes.NewChatModels(ctx, cfg.APIKey, cfg.BaseURL, cfg.Main, cfg.Translator)
	if err != nil {
		log.Fatalf("Failed to create chat models: %v", err)
	}

	mm := conversations.NewMessagesManager(conversationRepo, cfg.Conversation)
	manager := mcp.NewManager(mcpCfg, mcp.NewStatusRegistry())
	cls := classifier.New(models.Translator, time.Duration(cfg.Turn.ClassifyTimeout)*time.Second)

	sess := session.New(models, mm, manager, cls, cfg.Turn)
	defer sess.Close()

	if err := sess.Initialize(ctx); err != nil {
		logx.Warn().Err(err).Msg("tool provider initialization failed, continuing without tools")
	}

	runREPL(ctx, sess)
}

func buildRepository(cfg *AppConfig) (model.ConversationRepository, func(), error) {
	if cfg.Redis.URL == "" {
		logx.Info().Msg("REDIS_URL not set, using in-memory conversation store")
		return repo.NewMemoryConversationRepository(), func() {}, nil
	}

	rdb, err := cfg.Redis.New()
	if err != nil {
		return nil, nil, err
	}

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", cfg.Conversation.TTL, err)
	}

	return repo.NewRedisConversationRepository(rdb, ttl), func() { rdb.Close() }, nil
}

func runREPL(ctx context.Context, sess *session.Session) {
	conversationID := uuid.NewString()

	fmt.Println("의료 논문 검색 어시스턴트입니다. 질문을 입력하세요.")
	fmt.Println("명령어: /status /log /clear /new /quit")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return
		case "/new":
			conversationID = uuid.NewString()
			fmt.Println("새 대화를 시작합니다.")
			continue
		case "/clear":
			if err := sess.ClearHistory(ctx, conversationID); err != nil {
				fmt.Printf("대화 기록 삭제 실패: %v\n", err)
			} else {
				fmt.Println("대화 기록을 삭제했습니다.")
			}
			continue
		case "/status":
			printStatus(sess)
			continue
		case "/log":
			for _, entry := range sess.Registry().Log() {
				fmt.Println(entry)
			}
			continue
		}

		// Without a tool catalog there is nothing to classify or route:
		// answer directly with the main model.
		var result *model.TurnResult
		var err error
		if sess.Catalog().Empty() {
			result, err = sess.ProcessBasicTurn(ctx, conversationID, line)
		} else {
			result, err = sess.ProcessTurn(ctx, conversationID, line)
		}
		if err != nil {
			fmt.Printf("오류가 발생했습니다: %v\n", err)
			continue
		}

		if result.Classification != nil {
			fmt.Printf("\n[%s · %.2f]\n%s\n", result.Workflow, result.Classification.Confidence, result.Answer)
		} else {
			fmt.Printf("\n%s\n", result.Answer)
		}
		if result.ToolTrace != "" {
			fmt.Printf("\n--- 도구 실행 내역 ---%s\n", result.ToolTrace)
		}
	}
}

func printStatus(sess *session.Session) {
	records := sess.Registry().Records()
	if len(records) == 0 {
		fmt.Println("설정된 도구 서버가 없습니다.")
		return
	}
	for name, rec := range records {
		line := fmt.Sprintf("%s: %s", name, rec.State)
		if rec.State == mcp.StateConnected {
			line += fmt.Sprintf(" (%d tools)", rec.ToolCount)
		}
		if rec.Err != "" {
			line += " - " + rec.Err
		}
		fmt.Println(line)
	}
	fmt.Printf("catalog: %d tools\n", sess.Catalog().Size())
}
