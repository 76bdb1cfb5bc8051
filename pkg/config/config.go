package config

// Config is the root configuration for the service. Precedence is
// defaults < config file < environment variables.
type Config struct {
	Server      ServerConfig      `koanf:"server"      validate:"required"`
	Database    DatabaseConfig    `koanf:"database"    validate:"required"`
	Vision      VisionConfig      `koanf:"vision"`
	Performance PerformanceConfig `koanf:"performance"`
	Context     ContextConfig     `koanf:"context"`
}

type ServerConfig struct {
	// Transport selects how the MCP server is exposed: "stdio" or "sse".
	Transport string `koanf:"transport" validate:"oneof=stdio sse"`
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"      validate:"gte=0,lte=65535"`
	// OperationTimeoutSeconds bounds every tool invocation.
	OperationTimeoutSeconds int `koanf:"operation_timeout_seconds" validate:"gt=0"`
}

type DatabaseConfig struct {
	// Driver selects the repository backend: "postgres" or "memory".
	Driver     string `koanf:"driver" validate:"oneof=postgres memory"`
	ConnString string `koanf:"conn_string"`
	Host       string `koanf:"host"`
	Port       string `koanf:"port"`
	User       string `koanf:"user"`
	Password   string `koanf:"password"`
	Name       string `koanf:"name"`
	SSLMode    string `koanf:"ssl_mode"`
	// AutoMigrate runs embedded goose migrations at startup.
	AutoMigrate bool `koanf:"auto_migrate"`
}

type VisionConfig struct {
	Enabled            bool                     `koanf:"enabled"`
	ContextEnforcement ContextEnforcementConfig `koanf:"context_enforcement"`
	ProgressTracking   ProgressTrackingConfig   `koanf:"progress_tracking"`
	WorkflowHints      WorkflowHintsConfig      `koanf:"workflow_hints"`
	Enrichment         EnrichmentConfig         `koanf:"enrichment"`
}

type ContextEnforcementConfig struct {
	Enabled                  bool `koanf:"enabled"`
	RequireCompletionSummary bool `koanf:"require_completion_summary"`
	MinSummaryLength         int  `koanf:"min_summary_length" validate:"gte=0"`
}

type ProgressTrackingConfig struct {
	Enabled bool `koanf:"enabled"`
}

type WorkflowHintsConfig struct {
	Enabled  bool `koanf:"enabled"`
	MaxHints int  `koanf:"max_hints" validate:"gte=0"`
}

type EnrichmentConfig struct {
	Enabled bool `koanf:"enabled"`
}

type PerformanceConfig struct {
	Cache          CacheConfig          `koanf:"cache"`
	OverheadLimits OverheadLimitsConfig `koanf:"overhead_limits"`
}

type CacheConfig struct {
	Enabled    bool `koanf:"enabled"`
	TTLSeconds int  `koanf:"ttl_seconds" validate:"gte=0"`
	// MaxEntries bounds the inheritance cache size.
	MaxEntries int `koanf:"max_entries" validate:"gte=0"`
}

type OverheadLimitsConfig struct {
	MaxEnrichmentMS int  `koanf:"max_enrichment_ms" validate:"gte=0"`
	FailGracefully  bool `koanf:"fail_gracefully"`
}

type ContextConfig struct {
	// AutoCreateParents toggles silent creation of missing ancestor
	// contexts during create.
	AutoCreateParents bool `koanf:"auto_create_parents"`
}

// Default returns the in-code defaults, the lowest precedence source.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport:               "stdio",
			Host:                    "0.0.0.0",
			Port:                    8000,
			OperationTimeoutSeconds: 30,
		},
		Database: DatabaseConfig{
			Driver:      "postgres",
			Host:        "localhost",
			Port:        "5432",
			User:        "postgres",
			Name:        "dhafnck_mcp",
			SSLMode:     "disable",
			AutoMigrate: true,
		},
		Vision: VisionConfig{
			Enabled: true,
			ContextEnforcement: ContextEnforcementConfig{
				Enabled:                  true,
				RequireCompletionSummary: true,
				MinSummaryLength:         1,
			},
			ProgressTracking: ProgressTrackingConfig{Enabled: true},
			WorkflowHints:    WorkflowHintsConfig{Enabled: true, MaxHints: 5},
			Enrichment:       EnrichmentConfig{Enabled: true},
		},
		Performance: PerformanceConfig{
			Cache: CacheConfig{
				Enabled:    true,
				TTLSeconds: 300,
				MaxEntries: 1024,
			},
			OverheadLimits: OverheadLimitsConfig{
				MaxEnrichmentMS: 100,
				FailGracefully:  true,
			},
		},
		Context: ContextConfig{AutoCreateParents: true},
	}
}
