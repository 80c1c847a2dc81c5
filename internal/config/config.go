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

// Index drivers.
const (
	IndexDriverRedis    = "redis"
	IndexDriverQdrant   = "qdrant"
	IndexDriverPGVector = "pgvector"
)

// Config holds the lectern API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Index    IndexConfig    `yaml:"index"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
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
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"` // must cover the longest stream
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds Redis connection settings (caches, budget counters, redis index).
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Driver      string         `yaml:"driver"` // redis, qdrant, pgvector (default: redis)
	Name        string         `yaml:"name"`   // FT index, Qdrant collection or Postgres table
	VectorField string         `yaml:"vector_field"`
	TopK        int            `yaml:"top_k"`
	MinScore    *float64       `yaml:"min_score"`
	TimeoutSec  int            `yaml:"timeout_sec"`
	Redis       RedisIndex     `yaml:"redis"`
	Qdrant      QdrantConfig   `yaml:"qdrant"`
	Postgres    PostgresConfig `yaml:"postgres"`
}

// RedisIndex tunes KNN queries against the FT index.
type RedisIndex struct {
	Filter    string `yaml:"filter"`     // query-syntax pre-filter, e.g. "@lang:{en}"
	EFRuntime int    `yaml:"ef_runtime"` // HNSW search breadth, 0 = index default
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// PostgresConfig holds pgvector connection settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// AIConfig holds embedding and completion provider settings.
type AIConfig struct {
	Providers         map[string]ProviderConfig `yaml:"providers"`
	Embedding         EmbeddingConfig           `yaml:"embedding"`
	Completion        CompletionConfig          `yaml:"completion"`
	RequestTimeoutSec int                       `yaml:"request_timeout_sec"`
	StreamTimeoutSec  int                       `yaml:"stream_timeout_sec"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ProviderConfig holds AI provider settings.
type ProviderConfig struct {
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
}

// CompletionConfig selects the completion model and per-stage temperatures.
type CompletionConfig struct {
	Provider     string             `yaml:"provider"`
	Model        string             `yaml:"model"`
	Temperatures TemperaturesConfig `yaml:"temperatures"`
}

// TemperaturesConfig holds sampling temperature per stage. Nil means default.
type TemperaturesConfig struct {
	Expand       *float32 `yaml:"expand"`
	Summary      *float32 `yaml:"summary"`
	Related      *float32 `yaml:"related"`
	LearningPath *float32 `yaml:"learning_path"`
	Chat         *float32 `yaml:"chat"`
}

// PipelineConfig holds result-shaping limits.
type PipelineConfig struct {
	SummaryVideos     int    `yaml:"summary_videos"`
	SummaryTimestamps int    `yaml:"summary_timestamps"`
	SummaryTextChars  int    `yaml:"summary_text_chars"`
	PathCandidates    int    `yaml:"path_candidates"`
	PassageChars      int    `yaml:"passage_chars"`
	ThumbnailTemplate string `yaml:"thumbnail_template"` // {video_id} is substituted
}

// CacheConfig holds cache TTLs. A negative TTL disables that cache.
// A zero embedding TTL keeps entries without expiry; a zero expansion TTL
// falls back to one hour, since expansions go stale with the prompt.
type CacheConfig struct {
	EmbeddingTTLSec int `yaml:"embedding_ttl_sec"`
	ExpansionTTLSec int `yaml:"expansion_ttl_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in raw YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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
	c.applyHTTPDefaults()
	c.applyIndexDefaults()
	c.applyAIDefaults()
	c.applyPipelineDefaults()

	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.ExpansionTTLSec == 0 {
		c.Cache.ExpansionTTLSec = 3600
	}
}

func (c *Config) applyHTTPDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

func (c *Config) applyIndexDefaults() {
	if c.Index.Driver == "" {
		c.Index.Driver = IndexDriverRedis
	}
	if c.Index.Name == "" {
		c.Index.Name = "passages"
	}
	if c.Index.VectorField == "" {
		c.Index.VectorField = "vector"
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = 50
	}
	if c.Index.MinScore == nil {
		minScore := 0.35
		c.Index.MinScore = &minScore
	}
	if c.Index.TimeoutSec <= 0 {
		c.Index.TimeoutSec = 10
	}
	if c.Index.Qdrant.Port <= 0 {
		c.Index.Qdrant.Port = 6334
	}
	if c.Index.Postgres.MaxConns <= 0 {
		c.Index.Postgres.MaxConns = 10
	}
}

func (c *Config) applyAIDefaults() {
	if c.AI.Embedding.Provider == "" {
		c.AI.Embedding.Provider = "openai"
	}
	if c.AI.Embedding.Model == "" {
		c.AI.Embedding.Model = "text-embedding-3-small"
	}
	if c.AI.Completion.Provider == "" {
		c.AI.Completion.Provider = "openai"
	}
	if c.AI.Completion.Model == "" {
		c.AI.Completion.Model = "gpt-4o-mini"
	}
	t := &c.AI.Completion.Temperatures
	t.Expand = defaultTemperature(t.Expand, 0.3)
	t.Summary = defaultTemperature(t.Summary, 0.7)
	t.Related = defaultTemperature(t.Related, 0.7)
	t.LearningPath = defaultTemperature(t.LearningPath, 0.7)
	t.Chat = defaultTemperature(t.Chat, 0.7)
	if c.AI.RequestTimeoutSec <= 0 {
		c.AI.RequestTimeoutSec = 30
	}
	if c.AI.StreamTimeoutSec <= 0 {
		c.AI.StreamTimeoutSec = 90
	}
}

func (c *Config) applyPipelineDefaults() {
	p := &c.Pipeline
	if p.SummaryVideos <= 0 {
		p.SummaryVideos = 5
	}
	if p.SummaryTimestamps <= 0 {
		p.SummaryTimestamps = 3
	}
	if p.SummaryTextChars <= 0 {
		p.SummaryTextChars = 100
	}
	if p.PathCandidates <= 0 {
		p.PathCandidates = 20
	}
	if p.PassageChars <= 0 {
		p.PassageChars = 200
	}
	if p.ThumbnailTemplate == "" {
		p.ThumbnailTemplate = "https://img.youtube.com/vi/{video_id}/hqdefault.jpg"
	}
}

func defaultTemperature(v *float32, def float32) *float32 {
	if v != nil {
		return v
	}
	return &def
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateAI(); err != nil {
		return err
	}
	if !strings.Contains(c.Pipeline.ThumbnailTemplate, "{video_id}") {
		return fmt.Errorf("pipeline.thumbnail_template must contain {video_id}")
	}
	return nil
}

func (c *Config) validateIndex() error {
	switch c.Index.Driver {
	case IndexDriverRedis:
		if c.Index.Redis.EFRuntime < 0 {
			return fmt.Errorf("index.redis.ef_runtime must not be negative, got %d", c.Index.Redis.EFRuntime)
		}
	case IndexDriverQdrant:
		if c.Index.Qdrant.Host == "" {
			return fmt.Errorf("index.qdrant.host is required for driver %q", IndexDriverQdrant)
		}
	case IndexDriverPGVector:
		if c.Index.Postgres.DSN == "" {
			return fmt.Errorf("index.postgres.dsn is required for driver %q", IndexDriverPGVector)
		}
	default:
		return fmt.Errorf("index.driver must be one of redis, qdrant, pgvector, got %q", c.Index.Driver)
	}
	if c.Index.TopK <= 0 {
		return fmt.Errorf("index.top_k must be positive, got %d", c.Index.TopK)
	}
	if c.Index.MinScore != nil && (*c.Index.MinScore < 0 || *c.Index.MinScore > 1) {
		return fmt.Errorf("index.min_score must be within [0,1], got %g", *c.Index.MinScore)
	}
	return nil
}

func (c *Config) validateAI() error {
	for name, p := range c.AI.Providers {
		switch p.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"ai.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
	}
	if _, ok := c.AI.Providers[c.AI.Embedding.Provider]; !ok {
		return fmt.Errorf("ai.embedding.provider %q is not configured in ai.providers", c.AI.Embedding.Provider)
	}
	if _, ok := c.AI.Providers[c.AI.Completion.Provider]; !ok {
		return fmt.Errorf("ai.completion.provider %q is not configured in ai.providers", c.AI.Completion.Provider)
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
