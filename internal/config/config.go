package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the melodex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Session   SessionConfig   `yaml:"session"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RetrievalConfig holds settings for the external candidate retrieval service.
type RetrievalConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RerankConfig holds settings for the external reranking service.
type RerankConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// OpenAIConfig holds settings for the optional profile summarizer.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RankingConfig holds the curator pool sizes and scoring weights.
type RankingConfig struct {
	CandidateCount    int     `yaml:"candidate_count"`     // retrieved from the search service
	PrerankCount      int     `yaml:"prerank_count"`       // kept after time adjustment
	FinalCount        int     `yaml:"final_count"`         // returned to the caller
	SemanticWeight    float64 `yaml:"semantic_weight"`     // retrieval score share
	PreferenceWeight  float64 `yaml:"preference_weight"`   // profile feature match share
	GenreWeight       float64 `yaml:"genre_weight"`        // genre preference share
	ArtistBonus       float64 `yaml:"artist_bonus"`        // liked-artist adjustment
	ArtistPenalty     float64 `yaml:"artist_penalty"`      // disliked-artist adjustment
	LikeThreshold     int     `yaml:"like_threshold"`      // rating >= threshold counts as positive
	DislikeThreshold  int     `yaml:"dislike_threshold"`   // rating <= threshold counts as negative
	ProfileUpdateEach int     `yaml:"profile_update_each"` // rebuild profile after N new interactions
}

// SessionConfig holds short-term session memory settings.
type SessionConfig struct {
	QueryWindow       int `yaml:"query_window"`        // last K queries kept
	InteractionWindow int `yaml:"interaction_window"`  // last M interactions kept
	IdleTimeoutMin    int `yaml:"idle_timeout_min"`    // sessions evicted after idle
}

// CatalogConfig holds track metadata cache settings.
type CatalogConfig struct {
	CacheTTLHours int `yaml:"cache_ttl_hours"` // 0 disables caching
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "melodex:"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Retrieval.TimeoutSec <= 0 {
		c.Retrieval.TimeoutSec = 10
	}
	if c.Rerank.TimeoutSec <= 0 {
		c.Rerank.TimeoutSec = 5
	}
	if c.Rerank.Model == "" {
		c.Rerank.Model = "rerank-english-v3.0"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Ranking.CandidateCount <= 0 {
		c.Ranking.CandidateCount = 50
	}
	if c.Ranking.PrerankCount <= 0 {
		c.Ranking.PrerankCount = 30
	}
	if c.Ranking.FinalCount <= 0 {
		c.Ranking.FinalCount = 10
	}
	if c.Ranking.SemanticWeight == 0 {
		c.Ranking.SemanticWeight = 0.4
	}
	if c.Ranking.PreferenceWeight == 0 {
		c.Ranking.PreferenceWeight = 0.2
	}
	if c.Ranking.GenreWeight == 0 {
		c.Ranking.GenreWeight = 0.3
	}
	if c.Ranking.ArtistBonus == 0 {
		c.Ranking.ArtistBonus = 0.1
	}
	if c.Ranking.ArtistPenalty == 0 {
		c.Ranking.ArtistPenalty = 0.2
	}
	if c.Ranking.LikeThreshold <= 0 {
		c.Ranking.LikeThreshold = 4
	}
	if c.Ranking.DislikeThreshold <= 0 {
		c.Ranking.DislikeThreshold = 2
	}
	if c.Ranking.ProfileUpdateEach <= 0 {
		c.Ranking.ProfileUpdateEach = 5
	}
	if c.Session.QueryWindow <= 0 {
		c.Session.QueryWindow = 10
	}
	if c.Session.InteractionWindow <= 0 {
		c.Session.InteractionWindow = 20
	}
	if c.Session.IdleTimeoutMin <= 0 {
		c.Session.IdleTimeoutMin = 60
	}
	if c.Catalog.CacheTTLHours < 0 {
		c.Catalog.CacheTTLHours = 0
	} else if c.Catalog.CacheTTLHours == 0 {
		c.Catalog.CacheTTLHours = 24
	}
}

// Validate checks the configuration for correctness.
// Invalid weights and pool sizes are rejected here, at startup, never at request time.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Retrieval.BaseURL == "" {
		return fmt.Errorf("retrieval.base_url is required")
	}
	if c.Rerank.Enabled && c.Rerank.BaseURL == "" {
		return fmt.Errorf("rerank.base_url is required when rerank is enabled")
	}
	r := c.Ranking
	if r.FinalCount > r.PrerankCount || r.PrerankCount > r.CandidateCount {
		return fmt.Errorf(
			"ranking pool sizes must satisfy final <= prerank <= candidate, got %d/%d/%d",
			r.FinalCount, r.PrerankCount, r.CandidateCount,
		)
	}
	for name, w := range map[string]float64{
		"semantic_weight":   r.SemanticWeight,
		"preference_weight": r.PreferenceWeight,
		"genre_weight":      r.GenreWeight,
		"artist_bonus":      r.ArtistBonus,
		"artist_penalty":    r.ArtistPenalty,
	} {
		if w < 0 {
			return fmt.Errorf("ranking.%s must be non-negative, got %v", name, w)
		}
	}
	if r.LikeThreshold < 1 || r.LikeThreshold > 5 {
		return fmt.Errorf("ranking.like_threshold must be between 1 and 5, got %d", r.LikeThreshold)
	}
	if r.DislikeThreshold >= r.LikeThreshold {
		return fmt.Errorf(
			"ranking.dislike_threshold must be below like_threshold, got %d >= %d",
			r.DislikeThreshold, r.LikeThreshold,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
