package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/hashutil"
	"tooldispatch/internal/infra/telemetry"
)

type BuildOptions struct {
	// MetadataPrimary selects which source kind wins the descriptive fields
	// when an id is declared by both kinds.
	MetadataPrimary domain.SourceKind
	Metrics         domain.Metrics
	Logger          *zap.Logger
	Revision        uint64
	Now             func() time.Time
}

// declared holds the first descriptor each source kind offered for one id.
type declared struct {
	declarative  *domain.ToolDescriptor
	programmatic *domain.ToolDescriptor
}

// Build merges sources into a catalogue. Sources that fail or panic
// contribute nothing and are recorded in Failures; Build itself never fails.
func Build(ctx context.Context, sources []Source, opts BuildOptions) *Catalog {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("catalog")
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	primary := opts.MetadataPrimary
	if !primary.Valid() {
		primary = domain.DefaultMetadataPrimary
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	var (
		order    []string
		byID     = make(map[string]*declared)
		invokers = make(map[string]domain.Invoker)
		failures = make(map[string]string)
	)

	// Pass 1: metadata.
	for _, source := range sources {
		if source == nil {
			continue
		}
		contribution, err := loadSource(ctx, source)
		if err != nil {
			failures[source.Name()] = err.Error()
			metrics.ObserveCatalogSource(source.Name(), 0, err)
			logger.Warn("catalog source failed",
				telemetry.EventField(telemetry.EventSourceFailed),
				telemetry.SourceField(source.Name()),
				zap.Error(err),
			)
			continue
		}
		metrics.ObserveCatalogSource(source.Name(), len(contribution.Tools), nil)

		kind := source.Kind()
		for i := range contribution.Tools {
			desc := contribution.Tools[i].Clone()
			if desc.ID == "" {
				logger.Warn("catalog tool without id skipped", telemetry.SourceField(source.Name()))
				continue
			}
			entry, ok := byID[desc.ID]
			if !ok {
				entry = &declared{}
				byID[desc.ID] = entry
				order = append(order, desc.ID)
			}
			slot := &entry.declarative
			if kind == domain.SourceProgrammatic {
				slot = &entry.programmatic
			}
			if *slot != nil {
				logger.Warn("duplicate tool id ignored",
					telemetry.ToolIDField(desc.ID),
					telemetry.SourceField(source.Name()),
				)
				continue
			}
			*slot = &desc

			if kind != domain.SourceProgrammatic {
				continue
			}
			if invoker := contribution.Invokers[desc.ID]; invoker != nil {
				invokers[desc.ID] = invoker
			}
		}
		if kind == domain.SourceProgrammatic {
			for id := range contribution.Invokers {
				if _, ok := byID[id]; !ok {
					logger.Warn("invoker without descriptor dropped",
						telemetry.ToolIDField(id),
						telemetry.SourceField(source.Name()),
					)
				}
			}
		}
	}

	// Pass 2: bind callables. Only programmatic sources ever fill invokers.
	tools := make([]domain.Tool, 0, len(order))
	for _, id := range order {
		desc := mergeDescriptor(byID[id], primary)
		tools = append(tools, domain.Tool{ToolDescriptor: desc, Invoker: invokers[id]})
	}

	if len(failures) == 0 {
		failures = nil
	}
	catalog := newCatalog(tools, opts.Revision, now(), failures)
	logger.Debug("catalog built",
		telemetry.EventField(telemetry.EventCatalogBuilt),
		zap.Int("tools", catalog.Len()),
		zap.Int("failed_sources", len(failures)),
		zap.String("etag", catalog.ETag()),
	)
	return catalog
}

func loadSource(ctx context.Context, source Source) (contribution Contribution, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source panicked: %v", r)
		}
	}()
	return source.Load(ctx)
}

func mergeDescriptor(entry *declared, primary domain.SourceKind) domain.ToolDescriptor {
	first, second := entry.declarative, entry.programmatic
	if primary == domain.SourceProgrammatic {
		first, second = second, first
	}
	switch {
	case first == nil:
		return *second
	case second == nil:
		return *first
	}
	merged := *first
	if len(merged.Parameters) == 0 {
		merged.Parameters = second.Parameters
	}
	return merged
}

type etagContent struct {
	Tools     []domain.ToolDescriptor `json:"tools"`
	Invocable []string                `json:"invocable"`
}

// contentETag hashes the descriptors together with the ids that carry an
// invoker, so binding or losing a callable changes the tag.
func contentETag(tools []domain.Tool) string {
	content := etagContent{
		Tools:     make([]domain.ToolDescriptor, 0, len(tools)),
		Invocable: make([]string, 0, len(tools)),
	}
	for _, tool := range tools {
		content.Tools = append(content.Tools, tool.ToolDescriptor)
		if tool.Invocable() {
			content.Invocable = append(content.Invocable, tool.ID)
		}
	}
	return hashutil.ETag(nil, "catalog", content)
}
