package catalog

import (
	"sort"
	"time"

	"tooldispatch/internal/domain"
)

// Catalog is an immutable, id-sorted snapshot of the merged tools. A built
// Catalog is never mutated; reloads produce a new value.
type Catalog struct {
	tools    []domain.Tool
	index    map[string]int
	etag     string
	revision uint64
	builtAt  time.Time
	failures map[string]string
}

// New assembles a catalogue directly from tools. Duplicate ids keep the
// first occurrence. Mostly useful for callers that already hold merged tools.
func New(tools ...domain.Tool) *Catalog {
	return newCatalog(tools, 0, time.Now(), nil)
}

func newCatalog(tools []domain.Tool, revision uint64, builtAt time.Time, failures map[string]string) *Catalog {
	c := &Catalog{
		tools:    make([]domain.Tool, 0, len(tools)),
		index:    make(map[string]int, len(tools)),
		revision: revision,
		builtAt:  builtAt,
		failures: failures,
	}
	for _, tool := range tools {
		if _, dup := c.index[tool.ID]; dup || tool.ID == "" {
			continue
		}
		c.index[tool.ID] = len(c.tools)
		c.tools = append(c.tools, domain.Tool{ToolDescriptor: tool.ToolDescriptor.Clone(), Invoker: tool.Invoker})
	}
	sort.Slice(c.tools, func(i, j int) bool { return c.tools[i].ID < c.tools[j].ID })
	for i, tool := range c.tools {
		c.index[tool.ID] = i
	}
	c.etag = contentETag(c.tools)
	return c
}

// Get returns the tool with the given id.
func (c *Catalog) Get(id string) (domain.Tool, bool) {
	if c == nil {
		return domain.Tool{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return domain.Tool{}, false
	}
	tool := c.tools[i]
	return domain.Tool{ToolDescriptor: tool.ToolDescriptor.Clone(), Invoker: tool.Invoker}, true
}

// Invoker returns the bound callable for id, if any.
func (c *Catalog) Invoker(id string) (domain.Invoker, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.index[id]
	if !ok || c.tools[i].Invoker == nil {
		return nil, false
	}
	return c.tools[i].Invoker, true
}

// ListIDs returns every tool id in ascending order.
func (c *Catalog) ListIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.tools))
	for _, tool := range c.tools {
		ids = append(ids, tool.ID)
	}
	return ids
}

func (c *Catalog) Tools() []domain.Tool {
	if c == nil {
		return nil
	}
	out := make([]domain.Tool, 0, len(c.tools))
	for _, tool := range c.tools {
		out = append(out, domain.Tool{ToolDescriptor: tool.ToolDescriptor.Clone(), Invoker: tool.Invoker})
	}
	return out
}

func (c *Catalog) Descriptors() []domain.ToolDescriptor {
	if c == nil {
		return nil
	}
	out := make([]domain.ToolDescriptor, 0, len(c.tools))
	for _, tool := range c.tools {
		out = append(out, tool.ToolDescriptor.Clone())
	}
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tools)
}

// ETag is a content hash of the merged metadata and of which tools are
// invocable.
func (c *Catalog) ETag() string {
	if c == nil {
		return ""
	}
	return c.etag
}

func (c *Catalog) Revision() uint64 {
	if c == nil {
		return 0
	}
	return c.revision
}

func (c *Catalog) BuiltAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.builtAt
}

// Failures maps source names to the error that kept them out of the build.
func (c *Catalog) Failures() map[string]string {
	if c == nil || len(c.failures) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.failures))
	for name, msg := range c.failures {
		out[name] = msg
	}
	return out
}

// Summary is the JSON view of a catalogue served on /catalog and by the CLI.
type Summary struct {
	Revision uint64            `json:"revision"`
	ETag     string            `json:"etag"`
	BuiltAt  time.Time         `json:"builtAt"`
	Tools    []ToolSummary     `json:"tools"`
	Failures map[string]string `json:"failures,omitempty"`
}

type ToolSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category,omitempty"`
	Invocable  bool     `json:"invocable"`
	Parameters []string `json:"parameters,omitempty"`
}

func (c *Catalog) Summary() Summary {
	summary := Summary{
		Revision: c.Revision(),
		ETag:     c.ETag(),
		BuiltAt:  c.BuiltAt(),
		Tools:    make([]ToolSummary, 0, c.Len()),
		Failures: c.Failures(),
	}
	if c == nil {
		return summary
	}
	for _, tool := range c.tools {
		names := make([]string, 0, len(tool.Parameters))
		for _, p := range tool.Parameters {
			names = append(names, p.Name)
		}
		summary.Tools = append(summary.Tools, ToolSummary{
			ID:         tool.ID,
			Name:       tool.Name,
			Category:   tool.Category,
			Invocable:  tool.Invocable(),
			Parameters: names,
		})
	}
	return summary
}
