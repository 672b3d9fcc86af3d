package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"go.uber.org/zap"

	"bfdb/application/commands"
	"bfdb/application/commands/bus"
	commandhandlers "bfdb/application/commands/handlers"
	"bfdb/application/ports"
	"bfdb/application/queries"
	querybus "bfdb/application/queries/bus"
	queryhandlers "bfdb/application/queries/handlers"
	"bfdb/application/services"
	domainconfig "bfdb/domain/config"
	"bfdb/domain/core/validators"
	"bfdb/infrastructure/cache"
	"bfdb/infrastructure/config"
	"bfdb/infrastructure/messaging/eventbridge"
	"bfdb/infrastructure/messaging/logging"
	"bfdb/infrastructure/persistence/badger"
	"bfdb/infrastructure/persistence/decorators"
	"bfdb/infrastructure/persistence/dynamodb"
	"bfdb/infrastructure/persistence/memory"
	"bfdb/pkg/auth"
	"bfdb/pkg/observability"
)

// ServiceName labels metrics and trace segments
const ServiceName = "bfdb"

// NodeCacheTTL bounds how long a request-scoped cache trusts a loaded node
const NodeCacheTTL = 30 * time.Second

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = level
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", ServiceName)), nil
}

// ProvideMetrics creates the Prometheus collector. It is always built so
// that cache and event counters have somewhere to go; the router only
// exposes /metrics when metrics are enabled.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(ServiceName)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(ServiceName, cfg.EnableTracing)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.EnableTracing {
		awsv2.AWSV2Instrumentor(&awsCfg.APIOptions)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client, honouring an endpoint
// override for DynamoDB Local
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
		}
	})
}

// ProvideBackend opens the configured storage backend and wraps it with
// the circuit breaker and instrumentation decorators. The cleanup closes it.
func ProvideBackend(
	ctx context.Context,
	cfg *config.Config,
	awsCfg aws.Config,
	metrics *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (ports.Backend, func(), error) {
	var backend ports.Backend

	switch cfg.Backend {
	case config.BackendMemory:
		backend = memory.NewAdapter(logger)
	case config.BackendDynamoDB:
		dcfg := dynamodb.DefaultConfig(cfg.DynamoDB.Table)
		dcfg.GidIndex = cfg.DynamoDB.GidIndex
		dcfg.SourceIndex = cfg.DynamoDB.SourceIndex
		dcfg.TargetIndex = cfg.DynamoDB.TargetIndex
		dcfg.SortIndex = cfg.DynamoDB.SortIndex
		dcfg.CreateTable = cfg.DynamoDB.CreateTable
		backend = dynamodb.NewBackend(ProvideDynamoDBClient(awsCfg, cfg), dcfg, logger)
	case config.BackendBadger:
		b, err := badger.NewBackend(badger.DefaultConfig(cfg.BadgerPath), logger)
		if err != nil {
			return nil, nil, err
		}
		backend = b
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if cfg.EnableCircuitBreaker {
		backend = decorators.NewResilientBackend(backend, decorators.DefaultBreakerConfig(cfg.Backend), logger)
	}
	if cfg.EnableMetrics || cfg.EnableTracing {
		backend = decorators.NewInstrumentedBackend(backend, cfg.Backend, metrics, tracer, logger)
	}

	if err := backend.Initialize(ctx); err != nil {
		return nil, nil, err
	}
	logger.Info("Storage backend ready", zap.String("backend", cfg.Backend))

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := backend.Close(closeCtx); err != nil {
			logger.Error("Failed to close storage backend", zap.Error(err))
		}
	}
	return backend, cleanup, nil
}

// ProvideEventPublisher creates the configured publisher. Every publisher
// feeds the domain counters of the metrics collector.
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, metrics *observability.Collector, logger *zap.Logger) ports.EventPublisher {
	var publisher ports.EventPublisher
	switch cfg.EventPublisher {
	case config.PublisherEventBridge:
		client := awseventbridge.NewFromConfig(awsCfg)
		publisher = eventbridge.NewPublisher(client, cfg.EventBusName, cfg.EventSource, logger)
	default:
		publisher = logging.NewPublisher(logger)
	}
	return logging.NewCountingPublisher(publisher, metrics)
}

// ProvideNodeCacheFactory hands out request-scoped node caches that report
// hits and misses to the collector
func ProvideNodeCacheFactory(metrics *observability.Collector) ports.NodeCacheFactory {
	return func() ports.NodeCache {
		return cache.NewNodeCacheWithTTL(NodeCacheTTL, metrics)
	}
}

// ProvideDomainConfig selects the props limits for the environment
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	domainCfg := domainconfig.LoadDomainConfig(cfg.Environment)
	if err := domainCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid domain config: %w", err)
	}
	return domainCfg, nil
}

// ProvideNodeService creates the node service with props validation
func ProvideNodeService(backend ports.Backend, publisher ports.EventPublisher, domainCfg *domainconfig.DomainConfig, logger *zap.Logger) *services.NodeService {
	nodes := services.NewNodeService(backend, publisher, logger)
	nodes.SetPropsValidator(validators.NewPropsValidator(domainCfg))
	return nodes
}

// ProvideEdgeService creates the edge service
func ProvideEdgeService(backend ports.Backend, nodes *services.NodeService, logger *zap.Logger) *services.EdgeService {
	return services.NewEdgeService(backend, nodes, logger)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) error
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) error {
	return a.handler(ctx, cmd)
}

func commandAdapter[C bus.Command](handle func(context.Context, C) error) *CommandHandlerAdapter {
	return &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			typed, ok := cmd.(C)
			if !ok {
				return fmt.Errorf("invalid command type %T", cmd)
			}
			return handle(ctx, typed)
		},
	}
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	backend ports.Backend,
	nodes *services.NodeService,
	edges *services.EdgeService,
	caches ports.NodeCacheFactory,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(bus.LoggingMiddleware(&zapLoggerAdapter{logger.Named("commands")}))

	createNode := commandhandlers.NewCreateNodeHandler(backend, nodes, caches, logger)
	updateNode := commandhandlers.NewUpdateNodeHandler(nodes, logger)
	deleteNode := commandhandlers.NewDeleteNodeHandler(nodes, edges, logger)
	createEdge := commandhandlers.NewCreateEdgeHandler(backend, edges, caches, logger)
	deleteEdge := commandhandlers.NewDeleteEdgeHandler(edges, logger)

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CreateNodeCommand{}, commandAdapter(createNode.Handle)},
		{commands.UpdateNodeCommand{}, commandAdapter(updateNode.Handle)},
		{commands.DeleteNodeCommand{}, commandAdapter(deleteNode.Handle)},
		{commands.CreateEdgeCommand{}, commandAdapter(createEdge.Handle)},
		{commands.DeleteEdgeCommand{}, commandAdapter(deleteEdge.Handle)},
	}
	for _, r := range registrations {
		if err := commandBus.Register(r.cmd, r.handler); err != nil {
			return nil, err
		}
	}

	return commandBus, nil
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

func queryAdapter[Q querybus.Query, R any](handle func(context.Context, Q) (R, error)) *QueryHandlerAdapter {
	return &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			typed, ok := query.(Q)
			if !ok {
				return nil, fmt.Errorf("invalid query type %T", query)
			}
			return handle(ctx, typed)
		},
	}
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	cfg *config.Config,
	nodes *services.NodeService,
	edges *services.EdgeService,
	caches ports.NodeCacheFactory,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(querybus.NewMetricsMiddleware(busMetrics{metrics}))

	nodeQueries := queryhandlers.NewNodeQueryHandler(nodes, caches, logger).
		WithDefaultDepth(cfg.DefaultTraversalDepth)
	edgeQueries := queryhandlers.NewEdgeQueryHandler(edges, caches, logger)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetNodeQuery{}, queryAdapter(nodeQueries.HandleGetNode)},
		{queries.QueryNodesQuery{}, queryAdapter(nodeQueries.HandleQueryNodes)},
		{queries.NodeConnectionQuery{}, queryAdapter(nodeQueries.HandleNodeConnection)},
		{queries.QueryAncestorsQuery{}, queryAdapter(nodeQueries.HandleQueryAncestors)},
		{queries.QueryDescendantsQuery{}, queryAdapter(nodeQueries.HandleQueryDescendants)},
		{queries.QuerySourceInstancesQuery{}, queryAdapter(edgeQueries.HandleSourceInstances)},
		{queries.QueryTargetInstancesQuery{}, queryAdapter(edgeQueries.HandleTargetInstances)},
	}
	for _, r := range registrations {
		if err := queryBus.Register(r.query, r.handler); err != nil {
			return nil, err
		}
	}

	return queryBus, nil
}

// ProvideJWTValidator creates the bearer token validator
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, using the development signing secret")
	}
	return auth.NewJWTValidator(cfg.SigningSecret(), cfg.JWTIssuer)
}

// ProvideRateLimiter creates the per-viewer rate limiter
func ProvideRateLimiter(cfg *config.Config) *auth.ViewerRateLimiter {
	return auth.NewViewerRateLimiter(cfg.RateLimitPerMinute)
}

// busMetrics adapts the collector to the query bus metrics interface
type busMetrics struct {
	*observability.Collector
}

func (m busMetrics) StartTimer(metric, label string) querybus.Timer {
	return m.Collector.StartTimer(metric, label)
}

// zapLoggerAdapter adapts zap.Logger to the bus.Logger interface
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, fields ...interface{}) {
	a.logger.Info(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) Error(msg string, fields ...interface{}) {
	a.logger.Error(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) fieldsToZap(fields ...interface{}) []zap.Field {
	var zapFields []zap.Field
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, _ := fields[i].(string)
			zapFields = append(zapFields, zap.Any(key, fields[i+1]))
		}
	}
	return zapFields
}
