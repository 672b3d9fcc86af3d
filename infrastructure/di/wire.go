//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"bfdb/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracer,
	ProvideAWSConfig,
	ProvideBackend,
	ProvideEventPublisher,
	ProvideNodeCacheFactory,
	ProvideDomainConfig,
	ProvideNodeService,
	ProvideEdgeService,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideJWTValidator,
	ProvideRateLimiter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned
// cleanup closes the storage backend.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
