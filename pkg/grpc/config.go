package grpc

import "fmt"

// Config holds gRPC server configuration.
type Config struct {
	// Address is the server listening address (e.g., ":9090")
	Address string

	// EnableReflection enables gRPC server reflection for debugging
	EnableReflection bool

	// EnableHealthCheck enables the grpc.health.v1 service
	EnableHealthCheck bool
}

// DefaultConfig returns a default gRPC server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":9090",
		EnableReflection:  false,
		EnableHealthCheck: true,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	return nil
}
