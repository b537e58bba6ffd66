package dispatch

import (
	"context"

	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/prompt"
	"tooldispatch/internal/infra/telemetry"
)

// Select asks the oracle which catalogue tools are relevant to query. Ids
// come back in oracle order; an unknown id fails the whole selection.
func (d *Dispatcher) Select(ctx context.Context, catalog Catalog, query string) ([]string, error) {
	ctx, _ = telemetry.EnsureRequestMeta(ctx, "")
	descriptors := catalog.Descriptors()
	if len(descriptors) == 0 {
		return []string{}, nil
	}

	known := make(map[string]struct{}, len(descriptors))
	for _, desc := range descriptors {
		known[desc.ID] = struct{}{}
	}

	reply, err := d.complete(ctx, domain.PurposeSelect, prompt.Select(descriptors, query))
	if err != nil {
		return nil, err
	}
	ids, err := prompt.DecodeSelection(reply, known)
	if err != nil {
		return nil, err
	}
	telemetry.LoggerWithRequest(ctx, d.logger).Debug("tools selected", zap.Strings("tools", ids))
	return ids, nil
}
