package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends selectable with STORAGE_BACKEND
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendBadger   = "badger"
)

// Event publishers selectable with EVENT_PUBLISHER
const (
	PublisherLog         = "log"
	PublisherEventBridge = "eventbridge"
)

// DevelopmentJWTSecret signs tokens outside production when JWT_SECRET is unset
const DevelopmentJWTSecret = "bfdb-development-secret"

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Storage
	Backend    string         `yaml:"backend"`
	DynamoDB   DynamoDBConfig `yaml:"dynamodb"`
	BadgerPath string         `yaml:"badger_path"`

	// AWS configuration
	AWSRegion      string `yaml:"aws_region"`
	EventPublisher string `yaml:"event_publisher"`
	EventBusName   string `yaml:"event_bus_name"`
	EventSource    string `yaml:"event_source"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Requests per minute allowed for one viewer; zero disables limiting
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// Graph defaults
	DefaultTraversalDepth int `yaml:"default_traversal_depth"`

	// Feature flags
	EnableMetrics        bool `yaml:"enable_metrics"`
	EnableTracing        bool `yaml:"enable_tracing"`
	EnableCORS           bool `yaml:"enable_cors"`
	EnableCircuitBreaker bool `yaml:"enable_circuit_breaker"`
}

// DynamoDBConfig names the table and its indexes
type DynamoDBConfig struct {
	Table       string `yaml:"table"`
	GidIndex    string `yaml:"gid_index"`
	SourceIndex string `yaml:"source_index"`
	TargetIndex string `yaml:"target_index"`
	SortIndex   string `yaml:"sort_index"`
	CreateTable bool   `yaml:"create_table"`

	// Endpoint overrides the service URL, e.g. for DynamoDB Local
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		ServerAddress:   ":8080",
		Environment:     "development",
		ShutdownTimeout: 10 * time.Second,
		Backend:         BackendMemory,
		DynamoDB: DynamoDBConfig{
			Table:       "bfdb",
			GidIndex:    "GidIndex",
			SourceIndex: "SourceIndex",
			TargetIndex: "TargetIndex",
			SortIndex:   "SortIndex",
		},
		BadgerPath:            "./data/bfdb",
		AWSRegion:             "us-west-2",
		EventPublisher:        PublisherLog,
		EventBusName:          "bfdb-events",
		EventSource:           "bfdb.graph",
		LogLevel:              "info",
		JWTIssuer:             "bfdb",
		RateLimitPerMinute:    600,
		DefaultTraversalDepth: 10,
		EnableCORS:            true,
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by BFDB_CONFIG if set, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("BFDB_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", c.Backend))
	c.DynamoDB.Table = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDB.Table))
	c.DynamoDB.GidIndex = getEnv("GID_INDEX_NAME", c.DynamoDB.GidIndex)
	c.DynamoDB.SourceIndex = getEnv("SOURCE_INDEX_NAME", c.DynamoDB.SourceIndex)
	c.DynamoDB.TargetIndex = getEnv("TARGET_INDEX_NAME", c.DynamoDB.TargetIndex)
	c.DynamoDB.SortIndex = getEnv("SORT_INDEX_NAME", c.DynamoDB.SortIndex)
	c.DynamoDB.CreateTable = getEnvBool("DYNAMODB_CREATE_TABLE", c.DynamoDB.CreateTable)
	c.DynamoDB.Endpoint = getEnv("DYNAMODB_ENDPOINT", c.DynamoDB.Endpoint)
	c.BadgerPath = getEnv("BADGER_PATH", c.BadgerPath)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.EventPublisher = strings.ToLower(getEnv("EVENT_PUBLISHER", c.EventPublisher))
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.EventSource = getEnv("EVENT_SOURCE", c.EventSource)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.DefaultTraversalDepth = getEnvInt("DEFAULT_TRAVERSAL_DEPTH", c.DefaultTraversalDepth)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.EnableCircuitBreaker = getEnvBool("ENABLE_CIRCUIT_BREAKER", c.EnableCircuitBreaker)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendBadger, BackendDynamoDB:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be memory, dynamodb or badger, got %q", c.Backend)
	}
	if c.Backend == BackendDynamoDB && c.DynamoDB.Table == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
	}
	if c.Backend == BackendBadger && c.BadgerPath == "" {
		return fmt.Errorf("BADGER_PATH is required for the badger backend")
	}
	switch c.EventPublisher {
	case PublisherLog:
	case PublisherEventBridge:
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required for the eventbridge publisher")
		}
	default:
		return fmt.Errorf("EVENT_PUBLISHER must be log or eventbridge, got %q", c.EventPublisher)
	}
	if c.DefaultTraversalDepth < 1 {
		return fmt.Errorf("DEFAULT_TRAVERSAL_DEPTH must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Backend == BackendMemory {
			return fmt.Errorf("the memory backend is not allowed in production")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SigningSecret returns JWT_SECRET, falling back to DevelopmentJWTSecret
// outside production
func (c *Config) SigningSecret() string {
	if c.JWTSecret == "" && !c.IsProduction() {
		return DevelopmentJWTSecret
	}
	return c.JWTSecret
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
