package gateway

import (
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"tooldispatch/internal/infra/catalog"
	"tooldispatch/internal/infra/params"
	"tooldispatch/internal/infra/telemetry"
)

// toolRegistry mirrors the invocable catalogue tools onto the MCP server so
// clients can call them directly. Names taken by the dispatch tools are
// never overwritten.
type toolRegistry struct {
	server     *mcp.Server
	handler    func(toolID string) mcp.ToolHandler
	reserved   map[string]struct{}
	logger     *zap.Logger
	mu         sync.Mutex
	etag       string
	registered map[string]struct{}
}

func newToolRegistry(server *mcp.Server, handler func(toolID string) mcp.ToolHandler, reserved []string, logger *zap.Logger) *toolRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make(map[string]struct{}, len(reserved))
	for _, name := range reserved {
		names[name] = struct{}{}
	}
	return &toolRegistry{
		server:     server,
		handler:    handler,
		reserved:   names,
		logger:     logger.Named("tool_registry"),
		registered: make(map[string]struct{}),
	}
}

// Apply registers the tools of cat and removes those no longer present.
// A catalogue with the ETag already applied is a no-op.
func (r *toolRegistry) Apply(cat *catalog.Catalog) {
	if cat == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.etag != "" && cat.ETag() == r.etag {
		return
	}

	next := make(map[string]struct{})
	for _, tool := range cat.Tools() {
		if !tool.Invocable() {
			continue
		}
		if _, taken := r.reserved[tool.ID]; taken {
			r.logger.Warn("skip tool shadowing a gateway tool", telemetry.ToolIDField(tool.ID))
			continue
		}
		r.server.AddTool(&mcp.Tool{
			Name:        tool.ID,
			Title:       tool.Name,
			Description: tool.Description,
			InputSchema: params.SchemaDocument(tool.Parameters),
		}, r.handler(tool.ID))
		next[tool.ID] = struct{}{}
	}

	var remove []string
	for name := range r.registered {
		if _, ok := next[name]; !ok {
			remove = append(remove, name)
		}
	}
	if len(remove) > 0 {
		r.server.RemoveTools(remove...)
	}

	r.registered = next
	r.etag = cat.ETag()
	r.logger.Debug("catalogue tools published", zap.Int("count", len(next)), zap.Uint64("revision", cat.Revision()))
}
