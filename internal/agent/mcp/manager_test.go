package mcp

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name string
	out  string
	err  error
}

func (t *fakeTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: t.name, Desc: "fake tool"}, nil
}

func (t *fakeTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	return t.out, t.err
}

type fakeConnector struct {
	mu       sync.Mutex
	name     string
	tools    []tool.BaseTool
	errs     []error // per-attempt; last entry repeats
	attempts int
	closes   int
}

func (c *fakeConnector) Name() string { return c.name }

func (c *fakeConnector) Connect(ctx context.Context) ([]tool.BaseTool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	attempt := c.attempts
	c.attempts++
	if len(c.errs) > 0 {
		idx := attempt
		if idx >= len(c.errs) {
			idx = len(c.errs) - 1
		}
		if c.errs[idx] != nil {
			return nil, c.errs[idx]
		}
	}
	return c.tools, nil
}

func (c *fakeConnector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
}

func (c *fakeConnector) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func newFakeManager(servers ...connector) *Manager {
	registry := NewStatusRegistry()
	for _, s := range servers {
		registry.update(s.Name(), StateDisconnected, "", 0)
	}
	return &Manager{servers: servers, registry: registry}
}

func TestConnectAllAggregatesTools(t *testing.T) {
	m := newFakeManager(
		&fakeConnector{name: "pubmed", tools: []tool.BaseTool{&fakeTool{name: "search_pubmed"}, &fakeTool{name: "fetch_abstract"}}},
		&fakeConnector{name: "scholar", tools: []tool.BaseTool{&fakeTool{name: "search_scholar"}}},
	)

	session := m.ConnectAll(context.Background())
	defer session.Close()

	assert.Equal(t, 3, session.Catalog().Size())

	rec, ok := m.Registry().Record("pubmed")
	require.True(t, ok)
	assert.Equal(t, StateConnected, rec.State)
	assert.Equal(t, 2, rec.ToolCount)
}

func TestConnectAllToleratesPartialFailure(t *testing.T) {
	m := newFakeManager(
		&fakeConnector{name: "pubmed", tools: []tool.BaseTool{&fakeTool{name: "search_pubmed"}}},
		&fakeConnector{name: "broken", errs: []error{fmt.Errorf("connection refused")}},
		&fakeConnector{name: "scholar", tools: []tool.BaseTool{&fakeTool{name: "search_scholar"}}},
	)

	session := m.ConnectAll(context.Background())
	defer session.Close()

	assert.Equal(t, 2, session.Catalog().Size())

	rec, ok := m.Registry().Record("broken")
	require.True(t, ok)
	assert.Equal(t, StateFailed, rec.State)
	assert.Contains(t, rec.Err, "connection refused")

	rec, ok = m.Registry().Record("scholar")
	require.True(t, ok)
	assert.Equal(t, StateConnected, rec.State)
}

func TestConnectAllWithRetryRecoversFromEmptyCatalog(t *testing.T) {
	flaky := &fakeConnector{
		name:  "pubmed",
		tools: []tool.BaseTool{&fakeTool{name: "search_pubmed"}},
		errs:  []error{fmt.Errorf("transient failure"), nil},
	}
	m := newFakeManager(flaky)

	session := m.ConnectAllWithRetry(context.Background())
	defer session.Close()

	assert.Equal(t, 1, session.Catalog().Size())
	assert.Equal(t, 2, flaky.attempts)
}

func TestConnectAllWithRetryGivesUpAfterAttempts(t *testing.T) {
	dead := &fakeConnector{name: "pubmed", errs: []error{fmt.Errorf("permanently down")}}
	m := newFakeManager(dead)

	session := m.ConnectAllWithRetry(context.Background())
	defer session.Close()

	assert.True(t, session.Catalog().Empty())
	assert.Equal(t, connectAttempts, dead.attempts)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	c := &fakeConnector{name: "pubmed", tools: []tool.BaseTool{&fakeTool{name: "search_pubmed"}}}
	m := newFakeManager(c)

	session := m.ConnectAll(context.Background())
	session.Close()
	session.Close()

	assert.Equal(t, 1, c.closeCount())
}

func TestConnectionLogTail(t *testing.T) {
	registry := NewStatusRegistry()
	for i := 0; i < 15; i++ {
		registry.update(fmt.Sprintf("server-%d", i), StateConnected, "", 1)
	}

	lines := registry.Log()
	require.Len(t, lines, logTail)
	assert.Contains(t, lines[len(lines)-1], "server-14")
}
