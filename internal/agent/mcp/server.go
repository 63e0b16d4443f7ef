package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpTool "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/cloudwego/eino/components/tool"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	logx "github.com/medsearch-agent/server/pkg/logger"
)

// initTimeout bounds the MCP protocol handshake per server.
const initTimeout = 30 * time.Second

// Server is one configured tool provider connection.
type Server struct {
	name   string
	config *ServerConfig

	mu     sync.Mutex
	client client.MCPClient
	tools  []tool.BaseTool
}

// NewServer creates a server handle in the disconnected state.
func NewServer(name string, cfg *ServerConfig) *Server {
	return &Server{
		name:   name,
		config: cfg,
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.name
}

// Connect establishes a connection, performs the protocol handshake within
// initTimeout, and discovers the server's tools. Descriptors are refreshed on
// every reconnect; nothing from a prior connection survives.
func (s *Server) Connect(ctx context.Context) ([]tool.BaseTool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.closeLocked()
	}

	cli, err := s.createClient()
	if err != nil {
		return nil, fmt.Errorf("server %q: create client: %w", s.name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "medsearch-agent",
		Version: "0.1.0",
	}

	if _, err := cli.Initialize(initCtx, initReq); err != nil {
		_ = cli.Close()
		if initCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("server %q: handshake timed out after %s", s.name, initTimeout)
		}
		return nil, fmt.Errorf("server %q: initialize: %w", s.name, err)
	}

	tools, err := mcpTool.GetTools(ctx, &mcpTool.Config{
		Cli:          cli,
		ToolNameList: s.config.ToolFilter,
	})
	if err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("server %q: list tools: %w", s.name, err)
	}

	s.client = cli
	s.tools = tools
	return tools, nil
}

// Tools returns the tools discovered by the last successful Connect.
func (s *Server) Tools() []tool.BaseTool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]tool.BaseTool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Close tears down the live connection, if any.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Server) closeLocked() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			logx.Warn().Err(err).Str("server", s.name).Msg("failed to close tool provider client")
		}
		s.client = nil
	}
	s.tools = nil
}

// createClient creates a transport-specific MCP client.
// Must be called with s.mu held.
func (s *Server) createClient() (client.MCPClient, error) {
	switch s.config.Transport {
	case "stdio":
		return client.NewStdioMCPClient(s.config.Command, s.config.Env, s.config.Args...)
	case "sse":
		return client.NewSSEMCPClient(s.config.URL)
	default:
		return nil, fmt.Errorf("unknown transport: %s", s.config.Transport)
	}
}
