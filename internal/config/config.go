// Package config loads the JSON configuration file with ${VAR} and
// ${VAR:default} environment substitution.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Model        ModelConfig     `json:"model"`
	Embedding    EmbeddingConfig `json:"embedding"`
	Memory       MemoryConfig    `json:"memory"`
	Strategy     StrategyConfig  `json:"strategy"`
	Database     DatabaseConfig  `json:"database"`
	SnapshotPath string          `json:"snapshot_path"`
	LogLevel     string          `json:"log_level"`
}

type ModelConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

type EmbeddingConfig struct {
	Endpoint  string `json:"endpoint"`
	APIKey    string `json:"api_key"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	CacheSize int    `json:"cache_size"`
}

type MemoryConfig struct {
	EpisodeCapacity int           `json:"episode_capacity"`
	MaxTriples      int           `json:"max_triples"`
	ThreadTimeout   time.Duration `json:"thread_timeout"`
	RecallK         int           `json:"recall_k"`
}

type StrategyConfig struct {
	Names       []string `json:"names,omitempty"`
	Exploration float64  `json:"exploration"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type QdrantConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Collection string `json:"collection"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable
// references before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
