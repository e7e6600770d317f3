// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from ./configs/config.yaml plus an optional
// environment-specific overlay, with env-var overrides on top.
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like LLM_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // overlay is optional

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile probes the usual locations so the loader works from the repo
// root, a cmd directory, or a package test directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	for _, p := range possiblePaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "council-orchestrator"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.LLM.ClerkModel == "" {
		cfg.LLM.ClerkModel = "google/gemini-2.0-flash-exp:free"
	}
	if cfg.LLM.ChairmanModel == "" {
		cfg.LLM.ChairmanModel = "google/gemini-2.0-flash-exp:free"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.LLM.MaxConcurrent == 0 {
		cfg.LLM.MaxConcurrent = 2
	}
	if cfg.LLM.StaggerMillis == 0 {
		cfg.LLM.StaggerMillis = 500
	}
	if cfg.LLM.RequestTimeout == 0 {
		cfg.LLM.RequestTimeout = 60000
	}
	if cfg.LLM.StreamTimeout == 0 {
		cfg.LLM.StreamTimeout = 120000
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.ClerkTemperature == 0 {
		cfg.LLM.ClerkTemperature = 0.2
	}
	if cfg.LLM.ClerkSearchTemperature == 0 {
		cfg.LLM.ClerkSearchTemperature = 0.7
	}
	if cfg.LLM.CouncilTemperature == 0 {
		cfg.LLM.CouncilTemperature = 0.7
	}
	if cfg.LLM.ChairmanTemperature == 0 {
		cfg.LLM.ChairmanTemperature = 0.5
	}

	if cfg.Council.Timeout == 0 {
		cfg.Council.Timeout = 90000
	}
	if len(cfg.Council.Roles) == 0 {
		cfg.Council.Roles = DefaultRoles()
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.FastTopK == 0 {
		cfg.Retrieval.FastTopK = 3
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = 10000
	}
	if cfg.Retrieval.StatutesIndex == "" {
		cfg.Retrieval.StatutesIndex = "legal_statutes"
	}
	if cfg.Retrieval.CasesIndex == "" {
		cfg.Retrieval.CasesIndex = "legal_cases"
	}

	if cfg.Router.CacheTTLSeconds == 0 {
		cfg.Router.CacheTTLSeconds = 300
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Judgments.BaseURL == "" {
		cfg.Judgments.BaseURL = "https://indian-supreme-court-judgments.s3.amazonaws.com"
	}
	if cfg.Judgments.Timeout == 0 {
		cfg.Judgments.Timeout = 120000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// overrideFromEnv fills secrets that are usually provided only through the
// environment, even when the yaml file omits the whole section.
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" && cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = v
	}
	if v := os.Getenv("ELASTICSEARCH_URL"); v != "" && cfg.Database.Elasticsearch.URL == "" {
		cfg.Database.Elasticsearch.URL = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" && cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = v
	}
}

func validateConfig(cfg *Config) error {
	if cfg.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if len(cfg.Council.Roles) == 0 {
		return fmt.Errorf("council.roles must not be empty")
	}
	for i, role := range cfg.Council.Roles {
		if role.Name == "" || role.Model == "" {
			return fmt.Errorf("council.roles[%d]: name and model are required", i)
		}
		switch role.Context {
		case "merged", "statutes", "cases":
		default:
			return fmt.Errorf("council.roles[%d]: unknown context source %q", i, role.Context)
		}
	}
	return nil
}

// DefaultRoles is the standing council roster used when none is configured.
func DefaultRoles() []RoleConfig {
	return []RoleConfig{
		{
			Name:         "Constitutional Expert",
			Model:        "meta-llama/llama-3.3-70b-instruct:free",
			SystemPrompt: "You are a Constitutional Law expert. Analyze the query based on the Constitution of India. Prioritize Fundamental Rights and constitutional validity.",
			Context:      "merged",
		},
		{
			Name:         "Statutory Analyst",
			Model:        "mistralai/mistral-small-3.1-24b-instruct:free",
			SystemPrompt: "You are a Black-letter law expert. Focus strictly on the text, definitions, and penalties in the provided Acts (IPC, CrPC, BNS). Be literal and precise.",
			Context:      "statutes",
		},
		{
			Name:         "Case Law Researcher",
			Model:        "nousresearch/hermes-3-llama-3.1-405b:free",
			SystemPrompt: "You are a Case Law specialist. Look for precedents and interpret how courts typically view these scenarios. If no specific case is in context, apply general judicial logic.",
			Context:      "cases",
			WebSearch:    true,
		},
		{
			Name:         "Devil's Advocate",
			Model:        "deepseek/deepseek-r1-0528:free",
			SystemPrompt: "You are the Devil's Advocate. Your job is to find loopholes, defenses, exceptions, or alternative interpretations that the others might miss. Be critical and skeptical.",
			Context:      "merged",
		},
	}
}
