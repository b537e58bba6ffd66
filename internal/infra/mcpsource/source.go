package mcpsource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"tooldispatch/internal/buildinfo"
	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/catalog"
	"tooldispatch/internal/infra/params"
	"tooldispatch/internal/infra/telemetry"
)

var errSourceClosed = errors.New("mcp source closed")

// Source is a programmatic catalogue source backed by one MCP server. The
// session is opened lazily on the first Load and reused until it fails.
type Source struct {
	server  string
	factory transportFactory
	logger  *zap.Logger

	lifetime context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	client  *mcp.Client
	session *mcp.ClientSession
	closed  bool
}

// New builds a source for spec, reached over stdio or streamable HTTP.
func New(spec domain.MCPServerSpec, logger *zap.Logger) *Source {
	return newSource(spec.Name, newTransportFactory(spec), logger)
}

func newSource(server string, factory transportFactory, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	lifetime, cancel := context.WithCancel(context.Background())
	return &Source{
		server:   server,
		factory:  factory,
		logger:   logger.Named("mcp_source").With(zap.String("server", server)),
		lifetime: lifetime,
		cancel:   cancel,
		client:   mcp.NewClient(&mcp.Implementation{Name: buildinfo.Name, Version: buildinfo.Version}, nil),
	}
}

func (s *Source) Name() string            { return "mcp:" + s.server }
func (s *Source) Kind() domain.SourceKind { return domain.SourceProgrammatic }

// Load lists the server's tools. Tools whose schema cannot be expressed as
// scalar parameters are skipped with a warning.
func (s *Source) Load(ctx context.Context) (catalog.Contribution, error) {
	session, err := s.ensureSession(ctx)
	if err != nil {
		return catalog.Contribution{}, err
	}
	tools, err := listTools(ctx, session)
	if err != nil {
		s.dropSession(session)
		return catalog.Contribution{}, fmt.Errorf("list tools: %w", err)
	}

	contribution := catalog.Contribution{
		Tools:    make([]domain.ToolDescriptor, 0, len(tools)),
		Invokers: make(map[string]domain.Invoker, len(tools)),
	}
	for _, tool := range tools {
		desc, err := s.descriptor(tool)
		if err != nil {
			s.logger.Warn("skip mcp tool", telemetry.ToolIDField(tool.Name), zap.Error(err))
			continue
		}
		if _, dup := contribution.Invokers[desc.ID]; dup {
			continue
		}
		contribution.Tools = append(contribution.Tools, desc)
		contribution.Invokers[desc.ID] = s.invoker(tool.Name)
	}
	return contribution, nil
}

// Close ends the session and stops a launched server process.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.session != nil {
		err = s.session.Close()
		s.session = nil
	}
	s.cancel()
	return err
}

func (s *Source) descriptor(tool *mcp.Tool) (domain.ToolDescriptor, error) {
	id := strings.TrimSpace(tool.Name)
	if id == "" {
		return domain.ToolDescriptor{}, errors.New("tool name is empty")
	}
	specs, err := parametersFromSchema(tool.InputSchema)
	if err != nil {
		return domain.ToolDescriptor{}, err
	}
	if problems := params.CheckSpecs(id, specs); len(problems) > 0 {
		return domain.ToolDescriptor{}, errors.New(strings.Join(problems, "; "))
	}
	name := tool.Title
	if name == "" {
		name = id
	}
	return domain.ToolDescriptor{
		ID:          id,
		Name:        name,
		Description: tool.Description,
		Category:    s.server,
		Tags:        []string{"mcp"},
		Parameters:  specs,
	}, nil
}

func (s *Source) invoker(name string) domain.Invoker {
	return func(ctx context.Context, args map[string]any) (any, error) {
		session, err := s.ensureSession(ctx)
		if err != nil {
			return nil, err
		}
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", name, err)
		}
		return toolResult(res)
	}
}

func (s *Source) ensureSession(ctx context.Context) (*mcp.ClientSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSourceClosed
	}
	if s.session != nil {
		return s.session, nil
	}

	transport, err := s.factory(s.lifetime)
	if err != nil {
		return nil, err
	}
	session, err := s.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.server, err)
	}
	s.logger.Info("mcp session established")
	s.session = session
	return session, nil
}

// dropSession forgets a broken session so the next call reconnects.
func (s *Source) dropSession(session *mcp.ClientSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != session {
		return
	}
	_ = session.Close()
	s.session = nil
}

func listTools(ctx context.Context, session *mcp.ClientSession) ([]*mcp.Tool, error) {
	var tools []*mcp.Tool
	listParams := &mcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, listParams)
		if err != nil {
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		listParams = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

// toolResult prefers structured content and falls back to the joined text
// blocks. A result flagged IsError becomes an error carrying that text.
func toolResult(res *mcp.CallToolResult) (any, error) {
	if res == nil {
		return nil, errors.New("empty tool result")
	}
	parts := make([]string, 0, len(res.Content))
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, errors.New(text)
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	return text, nil
}

var _ catalog.Source = (*Source)(nil)
