package collector

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Collector consumes the graph's step-by-step message output and
// incrementally assembles the user-visible answer plus a secondary
// tool-activity transcript. It sees one snapshot per completed node, in
// node-completion order.
type Collector struct {
	mu       sync.Mutex
	text     strings.Builder
	trace    strings.Builder
	observed []*schema.Message
}

func New() *Collector {
	return &Collector{}
}

// OnMessage records the latest message produced by a node. Assistant content
// without pending tool calls grows the answer buffer; tool results and
// tool-call requests grow the trace buffer.
func (c *Collector) OnMessage(msg *schema.Message) {
	if c == nil || msg == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.observed = append(c.observed, msg)

	switch {
	case msg.Role == schema.Assistant && len(msg.ToolCalls) > 0:
		for _, tc := range msg.ToolCalls {
			c.trace.WriteString(fmt.Sprintf("\n```json\n%s(%s)\n```\n", tc.Function.Name, tc.Function.Arguments))
		}
	case msg.Role == schema.Assistant && msg.Content != "":
		c.text.WriteString(msg.Content)
	case msg.Role == schema.Tool && msg.Content != "":
		c.trace.WriteString("\n```json\n" + msg.Content + "\n```\n")
	}
}

// OnMessages records a batch of messages appended by one node.
func (c *Collector) OnMessages(msgs []*schema.Message) {
	for _, m := range msgs {
		c.OnMessage(m)
	}
}

// Text returns the accumulated answer buffer.
func (c *Collector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text.String()
}

// ToolTrace returns the accumulated tool-activity transcript.
func (c *Collector) ToolTrace() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trace.String()
}

// FinalAnswer picks the turn's answer. A backward scan of the observed
// messages for the latest tool-call-free assistant message takes precedence
// over the streamed buffer, which covers node orderings where the real answer
// was emitted before a later non-final node. fallback is used when neither
// exists.
func (c *Collector) FinalAnswer(fallback string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.observed) - 1; i >= 0; i-- {
		msg := c.observed[i]
		if msg.Role == schema.Assistant && msg.Content != "" && len(msg.ToolCalls) == 0 {
			return msg.Content
		}
	}
	if s := c.text.String(); s != "" {
		return s
	}
	return fallback
}
