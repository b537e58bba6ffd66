package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/params"
)

// Source contributes tools to a catalogue build.
type Source interface {
	Name() string
	Kind() domain.SourceKind
	Load(ctx context.Context) (Contribution, error)
}

// Contribution is what one source yields for a build. Invokers are keyed by
// tool id and are ignored for declarative sources.
type Contribution struct {
	Tools    []domain.ToolDescriptor
	Invokers map[string]domain.Invoker
}

// StaticSource serves a fixed declarative tool list, typically the tools
// embedded in the config file.
type StaticSource struct {
	name  string
	tools []domain.ToolDescriptor
}

func NewStaticSource(name string, tools []domain.ToolDescriptor) *StaticSource {
	cloned := make([]domain.ToolDescriptor, 0, len(tools))
	for _, tool := range tools {
		cloned = append(cloned, tool.Clone())
	}
	return &StaticSource{name: name, tools: cloned}
}

func (s *StaticSource) Name() string            { return s.name }
func (s *StaticSource) Kind() domain.SourceKind { return domain.SourceDeclarative }

func (s *StaticSource) Load(ctx context.Context) (Contribution, error) {
	if err := ctx.Err(); err != nil {
		return Contribution{}, err
	}
	tools := make([]domain.ToolDescriptor, 0, len(s.tools))
	for _, tool := range s.tools {
		tools = append(tools, tool.Clone())
	}
	return Contribution{Tools: tools}, nil
}

// FileSource reads a declarative tool file on every Load so edits show up
// on the next build.
type FileSource struct {
	path   string
	logger *zap.Logger
}

func NewFileSource(path string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, logger: logger.Named("tool_file")}
}

func (s *FileSource) Name() string            { return "file:" + s.path }
func (s *FileSource) Kind() domain.SourceKind { return domain.SourceDeclarative }

// Path returns the file the source reads.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Load(ctx context.Context) (Contribution, error) {
	if err := ctx.Err(); err != nil {
		return Contribution{}, err
	}
	tools, missing, err := decodeToolFile(s.path)
	if err != nil {
		return Contribution{}, err
	}
	if len(missing) > 0 {
		s.logger.Warn("missing environment variables in tool file", zap.String("path", s.path), zap.Strings("missing", missing))
	}
	return Contribution{Tools: tools}, nil
}

// Registry is the programmatic source: tools registered in code together
// with their invokers.
type Registry struct {
	name string

	mu       sync.RWMutex
	order    []string
	tools    map[string]domain.ToolDescriptor
	invokers map[string]domain.Invoker
}

func NewRegistry(name string) *Registry {
	if name == "" {
		name = "registry"
	}
	return &Registry{
		name:     name,
		tools:    make(map[string]domain.ToolDescriptor),
		invokers: make(map[string]domain.Invoker),
	}
}

func (r *Registry) Name() string            { return r.name }
func (r *Registry) Kind() domain.SourceKind { return domain.SourceProgrammatic }

// Register adds a tool. Ids must be unique within the registry and the
// parameter list must be well formed.
func (r *Registry) Register(desc domain.ToolDescriptor, invoker domain.Invoker) error {
	desc = desc.Clone()
	desc.ID = strings.TrimSpace(desc.ID)
	if desc.ID == "" {
		return errors.New("tool id is required")
	}
	if invoker == nil {
		return fmt.Errorf("tool %q: invoker is required", desc.ID)
	}
	if desc.Name == "" {
		desc.Name = desc.ID
	}
	for i := range desc.Parameters {
		desc.Parameters[i].Type = domain.NormalizeParamType(string(desc.Parameters[i].Type))
	}
	if errs := params.CheckSpecs(desc.ID, desc.Parameters); len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.ID]; exists {
		return fmt.Errorf("tool %q already registered", desc.ID)
	}
	r.order = append(r.order, desc.ID)
	r.tools[desc.ID] = desc
	r.invokers[desc.ID] = invoker
	return nil
}

// MustRegister is Register for static tool tables.
func (r *Registry) MustRegister(desc domain.ToolDescriptor, invoker domain.Invoker) {
	if err := r.Register(desc, invoker); err != nil {
		panic(err)
	}
}

func (r *Registry) Load(ctx context.Context) (Contribution, error) {
	if err := ctx.Err(); err != nil {
		return Contribution{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Contribution{
		Tools:    make([]domain.ToolDescriptor, 0, len(r.order)),
		Invokers: make(map[string]domain.Invoker, len(r.invokers)),
	}
	for _, id := range r.order {
		out.Tools = append(out.Tools, r.tools[id].Clone())
		out.Invokers[id] = r.invokers[id]
	}
	return out, nil
}

var (
	_ Source = (*StaticSource)(nil)
	_ Source = (*FileSource)(nil)
	_ Source = (*Registry)(nil)
)
