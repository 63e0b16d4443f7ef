package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	errx "github.com/medsearch-agent/server/internal/core/error"
	logx "github.com/medsearch-agent/server/pkg/logger"
)

// Config holds the top-level tool provider configuration.
// Compatible with the Claude Desktop / VS Code MCP config format.
//
// File format (medical_config.json):
//
//	{
//	  "mcpServers": {
//	    "pubmed": {
//	      "transport": "stdio",
//	      "command": "npx",
//	      "args": ["-y", "@smithery/cli@latest", "run", "@JackKuo666/pubmed-mcp-server"]
//	    }
//	  }
//	}
type Config struct {
	// MCPServers maps server name → server configuration.
	// Uses "mcpServers" key for Claude Desktop compatibility.
	MCPServers map[string]*ServerConfig `json:"mcpServers"`
}

// ServerConfig defines the configuration for a single tool provider.
// Supports two transport types: "stdio" (subprocess) and "sse" (HTTP SSE).
type ServerConfig struct {
	// Transport is the MCP transport protocol: "stdio" or "sse".
	// Default: "stdio".
	Transport string `json:"transport,omitempty"`

	// Command is the executable to launch (stdio only).
	Command string `json:"command,omitempty"`

	// Args are the command-line arguments (stdio only).
	Args []string `json:"args,omitempty"`

	// Env is the environment variables for the subprocess (stdio only).
	// Format: ["KEY=VALUE", ...].
	Env []string `json:"env,omitempty"`

	// URL is the SSE endpoint URL (sse only).
	URL string `json:"url,omitempty"`

	// ToolFilter is an optional list of tool names to expose.
	// If empty, all tools from the server are exposed.
	ToolFilter []string `json:"toolFilter,omitempty"`
}

// DefaultConfig configures a single PubMed literature-search provider.
func DefaultConfig() *Config {
	return &Config{
		MCPServers: map[string]*ServerConfig{
			"pubmed": {
				Transport: "stdio",
				Command:   "npx",
				Args:      []string{"-y", "@smithery/cli@latest", "run", "@JackKuo666/pubmed-mcp-server"},
			},
		},
	}
}

// LoadConfig loads the tool provider configuration from a JSON file.
// If the file does not exist, the default configuration is written to it
// and returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if werr := SaveConfig(path, cfg); werr != nil {
				logx.Warn().Err(werr).Str("path", path).Msg("failed to write default tool config")
			}
			return cfg, nil
		}
		return nil, errx.New(err, http.StatusInternalServerError, errx.ConfigErrorMessage)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errx.New(fmt.Errorf("parse %q: %w", path, err), http.StatusInternalServerError, errx.ConfigErrorMessage)
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]*ServerConfig)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errx.New(errs[0], http.StatusInternalServerError, errx.ConfigErrorMessage)
	}

	return cfg, nil
}

// SaveConfig writes the configuration back to disk. Called whenever the
// operator edits the tool set.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tool config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write tool config %q: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for obvious errors and fills transport
// defaults in place.
func (c *Config) Validate() []error {
	var errs []error
	for name, srv := range c.MCPServers {
		if srv == nil {
			errs = append(errs, fmt.Errorf("mcpServers.%s: empty server entry", name))
			continue
		}
		if srv.Transport == "" {
			srv.Transport = "stdio"
		}
		switch srv.Transport {
		case "stdio":
			if srv.Command == "" {
				errs = append(errs, fmt.Errorf("mcpServers.%s: command is required for stdio transport", name))
			}
			if srv.Args == nil {
				srv.Args = []string{}
			}
		case "sse":
			if srv.URL == "" {
				errs = append(errs, fmt.Errorf("mcpServers.%s: url is required for sse transport", name))
			}
		default:
			errs = append(errs, fmt.Errorf("mcpServers.%s: unsupported transport %q (must be 'stdio' or 'sse')", name, srv.Transport))
		}
	}
	return errs
}

// Merge adds or replaces the given server entries after validating them.
// Returns the names that were accepted.
func (c *Config) Merge(servers map[string]*ServerConfig) ([]string, error) {
	add := &Config{MCPServers: servers}
	if errs := add.Validate(); len(errs) > 0 {
		return nil, errs[0]
	}
	accepted := make([]string, 0, len(servers))
	for name, srv := range servers {
		c.MCPServers[name] = srv
		accepted = append(accepted, name)
	}
	return accepted, nil
}
