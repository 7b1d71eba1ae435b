package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "snapbuy",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			GRPC: GRPCConfig{
				Enabled:           false,
				Port:              9090,
				EnableReflection:  false,
				EnableHealthCheck: true,
			},
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 10 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
				MaxAge:         300,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Saga: SagaConfig{
			MaxConcurrentRuns: 100,
			Timeouts: StageTimeoutsConfig{
				Capture:  12 * time.Second,
				Confirm:  10 * time.Second,
				Sourcing: 18 * time.Second,
				Trust:    12 * time.Second,
				Checkout: 16 * time.Second,
			},
			Compensation: CompensationConfig{
				MaxCompensations:   3,
				TopK:               3,
				PriceWindowPct:     10,
				ExtraLatencyBudget: 500 * time.Millisecond,
			},
		},
		Stages: StagesConfig{
			Mode:         "heuristic",
			SourcingTopK: 5,
			Checkout: CheckoutConfig{
				MaxAmountUSD:      5000,
				BlockedVendors:    []string{"FraudCo", "ScamSupply", "UnknownMart"},
				VelocityThreshold: 5,
				ReceiptTTL:        24 * time.Hour,
			},
			Remote: RemoteStagesConfig{
				RequestsPerSecond: 10,
				Burst:             5,
			},
		},
		Budget: BudgetConfig{
			Policy: "truncate",
			Caps: map[string]int{
				"capture":  800,
				"confirm":  1000,
				"sourcing": 1500,
				"trust":    1200,
				"checkout": 800,
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			Badger: BadgerConfig{
				Path:       "./data/badger",
				SyncWrites: true,
			},
			Redis: RedisConfig{
				Address:  "",
				Password: "",
				DB:       0,
			},
		},
		Sink: SinkConfig{
			Path:       "./data/eval.log",
			BufferSize: 1024,
			MaxSamples: 500,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			SampleRate: 0.1,
			Timeout:    10 * time.Second,
		},
	}
}
