package mcp

import (
	"fmt"
	"sync"
	"time"
)

// ServerState represents the connection state of a tool provider.
type ServerState int

const (
	StateDisconnected ServerState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ServerState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusRecord is the last observed state of one configured provider.
// Records are overwritten on every transition and never deleted, so
// monitoring can always show the latest attempt.
type StatusRecord struct {
	State       ServerState
	ToolCount   int
	Err         string
	LastUpdated time.Time
}

// logTail is how many connection log lines are surfaced for display.
const logTail = 10

// StatusRegistry tracks per-server connection records plus an append-only
// connection log.
type StatusRegistry struct {
	mu      sync.RWMutex
	records map[string]StatusRecord
	log     []string
}

func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{records: make(map[string]StatusRecord)}
}

func (r *StatusRegistry) update(name string, state ServerState, errText string, toolCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[name] = StatusRecord{
		State:       state,
		ToolCount:   toolCount,
		Err:         errText,
		LastUpdated: time.Now(),
	}

	line := fmt.Sprintf("[%s] %s", name, state)
	if errText != "" {
		line += ": " + errText
	}
	r.log = append(r.log, line)
}

// Record returns the status record for one server.
func (r *StatusRegistry) Record(name string) (StatusRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// Records returns a copy of all status records.
func (r *StatusRegistry) Records() map[string]StatusRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]StatusRecord, len(r.records))
	for k, v := range r.records {
		out[k] = v
	}
	return out
}

// Log returns the most recent connection log lines, newest last.
func (r *StatusRegistry) Log() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := 0
	if len(r.log) > logTail {
		start = len(r.log) - logTail
	}
	out := make([]string, len(r.log)-start)
	copy(out, r.log[start:])
	return out
}
