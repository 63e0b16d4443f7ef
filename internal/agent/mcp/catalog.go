package mcp

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	logx "github.com/medsearch-agent/server/pkg/logger"
)

// ToolDescriptor is the read-only view of one catalog entry. An empty
// Description signals an undocumented tool.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  []string
}

// Catalog aggregates the live tools of all connected providers into one flat
// set. Descriptors are rebuilt from scratch on every connect; they are not
// assumed stable across reconnects.
type Catalog struct {
	Tools       []tool.BaseTool
	Descriptors []ToolDescriptor
}

// BuildCatalog extracts descriptors from the given tools.
func BuildCatalog(ctx context.Context, tools []tool.BaseTool) *Catalog {
	c := &Catalog{Tools: tools}
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil || info == nil {
			logx.Warn().Err(err).Msg("skipping tool with unreadable info")
			continue
		}

		d := ToolDescriptor{Name: info.Name, Description: info.Desc}
		if info.ParamsOneOf != nil {
			if sc, err := info.ParamsOneOf.ToJSONSchema(); err == nil && sc != nil && sc.Properties != nil {
				for pair := sc.Properties.Oldest(); pair != nil; pair = pair.Next() {
					d.Parameters = append(d.Parameters, pair.Key)
				}
				sort.Strings(d.Parameters)
			}
		}
		c.Descriptors = append(c.Descriptors, d)
	}
	return c
}

// Size returns the number of catalog entries.
func (c *Catalog) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Descriptors)
}

// Empty reports whether the catalog has no usable tools.
func (c *Catalog) Empty() bool {
	return c.Size() == 0
}

// Identity hashes the catalog's tool names. Two catalogs with the same
// identity expose the same tool set, which is what classification caching
// keys on.
func (c *Catalog) Identity() uint64 {
	h := fnv.New64a()
	if c != nil {
		for _, d := range c.Descriptors {
			_, _ = h.Write([]byte(d.Name))
			_, _ = h.Write([]byte{0})
		}
	}
	return h.Sum64()
}

// FindInvokable locates a named tool in the catalog and asserts it is
// invokable.
func (c *Catalog) FindInvokable(ctx context.Context, name string) (tool.InvokableTool, bool) {
	if c == nil {
		return nil, false
	}
	for _, t := range c.Tools {
		info, err := t.Info(ctx)
		if err != nil || info == nil || info.Name != name {
			continue
		}
		inv, ok := t.(tool.InvokableTool)
		return inv, ok
	}
	return nil, false
}

// ToolInfos returns the schema-level tool metadata for model binding.
func (c *Catalog) ToolInfos(ctx context.Context) ([]*schema.ToolInfo, error) {
	if c == nil {
		return nil, nil
	}
	infos := make([]*schema.ToolInfo, 0, len(c.Tools))
	for _, t := range c.Tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("read tool info: %w", err)
		}
		if info != nil {
			infos = append(infos, info)
		}
	}
	return infos, nil
}
