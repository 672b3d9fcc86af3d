package config

import "fmt"

// DomainConfig holds the limits every stored node and edge must respect.
// Limits apply to the props bag; metadata is bounded by its own types.
type DomainConfig struct {
	// Prop bag constraints
	MaxPropKeys      int
	MaxPropKeyLength int
	MaxPropsBytes    int

	// Keys starting with one of these prefixes are rejected
	ReservedKeyPrefixes []string
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxPropKeys:      256,
		MaxPropKeyLength: 128,
		// DynamoDB caps an item at 400KB including metadata attributes
		MaxPropsBytes:       350 * 1024,
		ReservedKeyPrefixes: []string{"__"},
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()
	cfg.MaxPropKeys = 128
	return cfg
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()
	cfg.MaxPropKeys = 1024
	return cfg
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MaxPropKeys <= 0 {
		return fmt.Errorf("max prop keys must be positive, got %d", c.MaxPropKeys)
	}
	if c.MaxPropKeyLength <= 0 {
		return fmt.Errorf("max prop key length must be positive, got %d", c.MaxPropKeyLength)
	}
	if c.MaxPropsBytes <= 0 {
		return fmt.Errorf("max props bytes must be positive, got %d", c.MaxPropsBytes)
	}
	return nil
}
