package config

import "time"

// Config is the umbrella server-level configuration object, the
// council-domain counterpart of tarsy's config.Config (registries of
// agents/chains/mcp_servers). There are no registries here — a council
// deployment has one orchestrator, one store, and a handful of tunables
// — so Config stays flat rather than growing a Stats()/registry shape
// it has no use for.
type Config struct {
	configDir string

	// HTTPAddr is the address the server listens on, e.g. ":8080".
	HTTPAddr string `yaml:"http_addr,omitempty"`

	// StoreBackend selects the Conversation Store Port implementation:
	// "json" (pkg/storage/jsonstore) or "postgres" (pkg/storage/pgstore).
	StoreBackend string `yaml:"store_backend,omitempty"`

	// DataDir is the jsonstore data directory, used when StoreBackend == "json".
	DataDir string `yaml:"data_dir,omitempty"`

	// ContextWindow holds the Context Manager's retention tunables.
	ContextWindow ContextWindowConfig `yaml:"context_window,omitempty"`

	// ModelTimeout bounds a single provider call (stage1/stage2/stage3/title/summary).
	// Set from YAML's "2m"-style duration string by Initialize (see loader.go),
	// matching the RunbooksYAMLConfig.CacheTTL string-duration convention elsewhere in this config loader.
	ModelTimeout time.Duration `yaml:"-"`

	// TitleTimeout bounds the conversation-title-generation call.
	TitleTimeout time.Duration `yaml:"-"`

	// BackgroundPool sizes the Context Manager's background summarization pool.
	BackgroundPool BackgroundPoolConfig `yaml:"background_pool,omitempty"`

	// Providers holds the concrete Provider Port adapter endpoints.
	Providers ProvidersConfig `yaml:"providers,omitempty"`
}

// ContextWindowConfig mirrors pkg/contextmgr's ImmediateContextKeep /
// SummaryRetention constants, made configurable rather than hardwired,
// following the YAML-tunable-system-defaults preference seen elsewhere in this config package
// (Defaults.MaxIterations) over compiled-in constants.
type ContextWindowConfig struct {
	ImmediateKeep    int `yaml:"immediate_keep,omitempty"`
	SummaryRetention int `yaml:"summary_retention,omitempty"`
}

// BackgroundPoolConfig sizes pkg/contextmgr.Pool.
type BackgroundPoolConfig struct {
	Workers int `yaml:"workers,omitempty"`
	Backlog int `yaml:"backlog,omitempty"`
}

// ProvidersConfig holds the base URLs/paths the Provider Port adapters
// are constructed from, generalizing the per-LLM-provider YAML
// registry (LLMProviderConfig) down to the three concrete adapters this
// module ships.
type ProvidersConfig struct {
	RemoteBaseURL   string `yaml:"remote_base_url,omitempty"`
	RemoteAPIKeyEnv string `yaml:"remote_api_key_env,omitempty"`
	LocalBaseURL    string `yaml:"local_base_url,omitempty"`
	LocalCLIPath    string `yaml:"local_cli_path,omitempty"`
}

// ConfigDir returns the configuration directory path Config was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// DefaultConfig returns the built-in defaults, equivalent in role to
// tarsy's GetBuiltinConfig()+Defaults resolution, merged under any
// YAML-provided overrides by Initialize.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:     ":8080",
		StoreBackend: "json",
		DataDir:      "data/conversations",
		ContextWindow: ContextWindowConfig{
			ImmediateKeep:    3,
			SummaryRetention: 3,
		},
		ModelTimeout: 120 * time.Second,
		TitleTimeout: 30 * time.Second,
		BackgroundPool: BackgroundPoolConfig{
			Workers: 2,
			Backlog: 32,
		},
		Providers: ProvidersConfig{
			RemoteBaseURL:   "https://openrouter.ai/api/v1",
			RemoteAPIKeyEnv: "OPENROUTER_API_KEY",
			LocalBaseURL:    "http://localhost:11434",
			LocalCLIPath:    "ollama",
		},
	}
}
