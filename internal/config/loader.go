package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from a YAML file with env overrides.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// default config file search paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.acre")
		v.AddConfigPath("/etc/acre")
	}

	// environment variable overrides
	v.SetEnvPrefix("ACRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// missing config file is fine, defaults + env apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandEnvVars(&config)

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)

	// Database defaults
	v.SetDefault("database.path", "./data/acre.db")

	// Embedding defaults
	v.SetDefault("embedding.enabled", true)
	v.SetDefault("embedding.model", "text-embedding-ada-002")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", 3600)

	// Airtable defaults
	v.SetDefault("airtable.base_url", "https://api.airtable.com")

	// Webhook defaults
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.timeout", 30)

	// Retrieval defaults
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.similarity_threshold", 0.7)
	v.SetDefault("retrieval.max_context_tokens", 4000)
}

// expandEnvVars expands ${VAR} references in credential fields.
func expandEnvVars(config *Config) {
	config.Embedding.APIKey = os.ExpandEnv(config.Embedding.APIKey)
	config.Airtable.APIKey = os.ExpandEnv(config.Airtable.APIKey)
	config.Webhook.APIKey = os.ExpandEnv(config.Webhook.APIKey)
	config.Cache.Password = os.ExpandEnv(config.Cache.Password)
}
