package config

import "fmt"

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Airtable  AirtableConfig  `mapstructure:"airtable"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
}

// ServerConfig HTTP server configuration.
type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
}

// DatabaseConfig sqlite configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig embedding provider configuration.
type EmbeddingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// CacheConfig optional redis cache for embeddings.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // seconds
}

// AirtableConfig tabular source configuration.
type AirtableConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseID  string `mapstructure:"base_id"`
	BaseURL string `mapstructure:"base_url"`
}

// WebhookConfig outbound automation endpoint configuration.
type WebhookConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	MaxRetries int    `mapstructure:"max_retries"`
	Timeout    int    `mapstructure:"timeout"` // seconds, per attempt
}

// RetrievalConfig defaults for the retrieval engine.
type RetrievalConfig struct {
	TopK                int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxContextTokens    int     `mapstructure:"max_context_tokens"`
}

// Validate checks credentials needed before a sync run may start.
// A missing key or base id is a configuration error: fail fast, no partial work.
func (c *AirtableConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("airtable api_key is not configured")
	}
	if c.BaseID == "" {
		return fmt.Errorf("airtable base_id is not configured")
	}
	return nil
}

// Validate checks the automation endpoint configuration.
func (c *WebhookConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("webhook base_url is not configured")
	}
	return nil
}

// Validate checks the embedding provider configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("embedding api_key is not configured")
	}
	if c.Model == "" {
		return fmt.Errorf("embedding model is not configured")
	}
	return nil
}
