package config

import (
	"fmt"

	grpcpkg "github.com/snapbuy/snapbuy/pkg/grpc"
)

// ToGRPCConfig converts config.GRPCConfig to pkg/grpc.Config
func (g *GRPCConfig) ToGRPCConfig() *grpcpkg.Config {
	return &grpcpkg.Config{
		Address:           fmt.Sprintf(":%d", g.Port),
		EnableReflection:  g.EnableReflection,
		EnableHealthCheck: g.EnableHealthCheck,
	}
}
