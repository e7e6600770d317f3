// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Council   CouncilConfig   `mapstructure:"council"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Router    RouterConfig    `mapstructure:"router"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Judgments JudgmentsConfig `mapstructure:"judgments"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	ReadTimeout    int    `mapstructure:"read_timeout"` // milliseconds
	MaxContextSize int    `mapstructure:"max_context_size"`
}

// LLMConfig covers the OpenRouter-compatible chat completions backend used
// by the clerk, the council and the chairman.
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	ClerkModel     string `mapstructure:"clerk_model"`
	ChairmanModel  string `mapstructure:"chairman_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`

	MaxConcurrent  int `mapstructure:"max_concurrent"`
	StaggerMillis  int `mapstructure:"stagger_millis"`
	RequestTimeout int `mapstructure:"request_timeout"` // milliseconds
	StreamTimeout  int `mapstructure:"stream_timeout"`  // milliseconds
	MaxTokens      int `mapstructure:"max_tokens"`

	ClerkTemperature       float32 `mapstructure:"clerk_temperature"`
	ClerkSearchTemperature float32 `mapstructure:"clerk_search_temperature"`
	CouncilTemperature     float32 `mapstructure:"council_temperature"`
	ChairmanTemperature    float32 `mapstructure:"chairman_temperature"`
}

// RoleConfig describes one council seat.
type RoleConfig struct {
	Name         string `mapstructure:"name"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
	Context      string `mapstructure:"context"` // merged | statutes | cases
	WebSearch    bool   `mapstructure:"web_search"`
}

type CouncilConfig struct {
	Timeout int          `mapstructure:"timeout"` // milliseconds, per member
	Roles   []RoleConfig `mapstructure:"roles"`
}

type RetrievalConfig struct {
	TopK     int `mapstructure:"top_k"`
	FastTopK int `mapstructure:"fast_top_k"`
	Timeout  int `mapstructure:"timeout"` // milliseconds, per collection

	StatutesIndex string `mapstructure:"statutes_index"`
	CasesIndex    string `mapstructure:"cases_index"`
}

type RouterConfig struct {
	CacheEnabled    bool `mapstructure:"cache_enabled"`
	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field.
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JudgmentsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
