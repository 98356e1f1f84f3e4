// Package config loads process settings (env vars, via envconfig) and the
// four domain artifacts the dialogue core needs at startup (entity
// patterns and funnel via viper, intent keywords via encoding/json, the
// prompt template as a raw file), per SPEC_FULL §4.D/§11.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds process-level settings, derived from the environment.
type Config struct {
	Server struct {
		Port         string        `default:"8080" envconfig:"PORT"`
		ReadTimeout  time.Duration `default:"30s" envconfig:"READ_TIMEOUT"`
		WriteTimeout time.Duration `default:"30s" envconfig:"WRITE_TIMEOUT"`
	}

	Database struct {
		URL             string `required:"true" envconfig:"DATABASE_URL"`
		MaxConns        int    `default:"10" envconfig:"DB_MAX_CONNS"`
		MaxConnIdleTime string `default:"30m" envconfig:"DB_MAX_CONN_IDLE_TIME"`
	}

	OpenAI struct {
		APIKey    string        `required:"true" envconfig:"OPENAI_API_KEY"`
		Model     string        `default:"gpt-4o" envconfig:"OPENAI_MODEL"`
		MaxTokens int           `default:"1024" envconfig:"OPENAI_MAX_TOKENS"`
		Timeout   time.Duration `default:"20s" envconfig:"OPENAI_TIMEOUT"`
	}

	Dialogue struct {
		ConfigDir       string        `default:"./configs/dialogue" envconfig:"DIALOGUE_CONFIG_DIR"`
		SessionTTL      time.Duration `default:"24h" envconfig:"DIALOGUE_SESSION_TTL"`
		SweepInterval   time.Duration `default:"1h" envconfig:"DIALOGUE_SWEEP_INTERVAL"`
		VectorTopK      int           `default:"5" envconfig:"DIALOGUE_VECTOR_TOPK"`
		TruncateWidth   int           `default:"50" envconfig:"DIALOGUE_TRUNCATE_WIDTH"`
		RetrievalTimeout time.Duration `default:"2s" envconfig:"DIALOGUE_RETRIEVAL_TIMEOUT"`
	}

	SessionStore struct {
		Backend  string `default:"memory" envconfig:"SESSION_STORE_BACKEND"` // memory, redis
		RedisURL string `envconfig:"SESSION_STORE_REDIS_URL"`
	}
}

// Load reads process settings from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	return &cfg, nil
}
