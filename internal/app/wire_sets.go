//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
)

var CoreInfraSet = wire.NewSet(
	NewLogger,
	NewConfig,
	NewMetricsRegistry,
	NewMetrics,
	NewHealthTracker,
)

var CatalogSet = wire.NewSet(
	NewBuiltinRegistry,
	NewMCPSources,
	NewCatalogSources,
	NewCatalogProvider,
)

var DispatchSet = wire.NewSet(
	NewOracle,
	NewFilter,
	NewDispatcher,
	NewJournal,
)

var AppSet = wire.NewSet(
	CoreInfraSet,
	CatalogSet,
	DispatchSet,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
