package mcp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/tool"

	logx "github.com/medsearch-agent/server/pkg/logger"
)

const (
	// connectAttempts is how many times the full multi-server connect sequence
	// is retried when the aggregated catalog comes back empty.
	connectAttempts = 2
	// connectBackoff is the pause between those attempts.
	connectBackoff = time.Second
)

// connector is what the manager needs from one provider connection.
type connector interface {
	Name() string
	Connect(ctx context.Context) ([]tool.BaseTool, error)
	Close()
}

// Manager supervises connections to the configured tool providers and
// aggregates their tools into one catalog.
type Manager struct {
	servers  []connector
	registry *StatusRegistry
}

// NewManager creates a manager over the configured servers. Status records
// are created immediately so monitoring can see every configured provider
// before the first connect.
func NewManager(cfg *Config, registry *StatusRegistry) *Manager {
	names := make([]string, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	m := &Manager{registry: registry}
	for _, name := range names {
		m.servers = append(m.servers, NewServer(name, cfg.MCPServers[name]))
		registry.update(name, StateDisconnected, "", 0)
	}
	return m
}

// Registry exposes the status registry for display.
func (m *Manager) Registry() *StatusRegistry {
	return m.registry
}

// ServerNames returns the configured server names in stable order.
func (m *Manager) ServerNames() []string {
	names := make([]string, 0, len(m.servers))
	for _, s := range m.servers {
		names = append(names, s.Name())
	}
	return names
}

// Session is the result of one ConnectAll call: the live connections plus the
// aggregated catalog. All sessions opened together are released together via
// Close, whether or not every sibling connected.
type Session struct {
	catalog *Catalog
	servers []connector

	closeOnce sync.Once
}

// Catalog returns the aggregated tool catalog for this session.
func (s *Session) Catalog() *Catalog {
	return s.catalog
}

// Close releases every connection opened by the ConnectAll call.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, srv := range s.servers {
			srv.Close()
		}
	})
}

// ConnectAll dials every configured server concurrently and aggregates the
// tools of those that succeed. Partial failure is non-fatal: a server that
// fails its handshake is marked Failed and excluded from the catalog while
// its siblings connect normally.
func (m *Manager) ConnectAll(ctx context.Context) *Session {
	results := make([][]tool.BaseTool, len(m.servers))

	var wg sync.WaitGroup
	for i, srv := range m.servers {
		m.registry.update(srv.Name(), StateConnecting, "", 0)

		wg.Add(1)
		go func(i int, srv connector) {
			defer wg.Done()

			tools, err := srv.Connect(ctx)
			if err != nil {
				m.registry.update(srv.Name(), StateFailed, err.Error(), 0)
				logx.Warn().Err(err).Str("server", srv.Name()).Msg("tool provider failed to connect")
				return
			}
			m.registry.update(srv.Name(), StateConnected, "", len(tools))
			results[i] = tools
		}(i, srv)
	}
	wg.Wait()

	var all []tool.BaseTool
	for _, tools := range results {
		all = append(all, tools...)
	}

	catalog := BuildCatalog(ctx, all)
	logx.Info().
		Int("servers", len(m.servers)).
		Int("tools", catalog.Size()).
		Msg("tool provider connect complete")

	return &Session{catalog: catalog, servers: m.servers}
}

// ConnectAllWithRetry retries the full connect sequence when the aggregated
// catalog comes back empty. It never retries per-server.
func (m *Manager) ConnectAllWithRetry(ctx context.Context) *Session {
	var sess *Session
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		sess = m.ConnectAll(ctx)
		if !sess.Catalog().Empty() || attempt == connectAttempts {
			return sess
		}

		sess.Close()
		logx.Warn().Int("attempt", attempt).Msg("empty tool catalog, retrying connect")

		select {
		case <-ctx.Done():
			return sess
		case <-time.After(connectBackoff):
		}
	}
	return sess
}

// Close tears down every server connection.
func (m *Manager) Close() {
	for _, srv := range m.servers {
		srv.Close()
	}
	logx.Info().Msg("all tool providers closed")
}
