package di

import (
	"go.uber.org/zap"

	"bfdb/application/commands/bus"
	"bfdb/application/ports"
	querybus "bfdb/application/queries/bus"
	"bfdb/application/services"
	"bfdb/infrastructure/config"
	"bfdb/pkg/auth"
	"bfdb/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Tracer       *observability.Tracer
	Backend      ports.Backend
	Publisher    ports.EventPublisher
	NodeCaches   ports.NodeCacheFactory
	NodeService  *services.NodeService
	EdgeService  *services.EdgeService
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	JWTValidator *auth.JWTValidator
	RateLimiter  *auth.ViewerRateLimiter
}
