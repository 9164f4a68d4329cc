package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for docchat.
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Chunk     ChunkConfig     `yaml:"chunk"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	LLM       LLMConfig       `yaml:"llm"`
	Chat      ChatConfig      `yaml:"chat"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Change detection modes.
const (
	ChangeDetectionStrict = "strict" // mtime, size and content digest
	ChangeDetectionMtime  = "mtime"  // modification time only
)

// CacheConfig holds the persisted index location and staleness policy.
type CacheConfig struct {
	Dir             string `yaml:"dir"`
	ChangeDetection string `yaml:"change_detection"`
}

// UploadsConfig holds the upload area settings.
type UploadsConfig struct {
	Dir      string   `yaml:"dir"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ChunkConfig holds chunking configuration. Units are characters.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "local", "openai", "ollama", "gemini", "mock"
	Model     string `yaml:"model"`       // empty picks the provider default
	APIKeyEnv string `yaml:"api_key_env"` // empty picks the provider default
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"` // local, mock and gemini only; remote models fix their own
	BatchSize int    `yaml:"batch_size"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Backend string `yaml:"backend"` // "flat" or "chromem"
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK              int     `yaml:"top_k"`
	CacheEntries      int     `yaml:"cache_entries"`       // 0 disables the query cache
	MinScoreThreshold float64 `yaml:"min_score_threshold"` // Filter results below this score (0 = disabled)
}

// LLMConfig holds language model configuration.
type LLMConfig struct {
	Provider        string  `yaml:"provider"` // "gemini", "openai", "ollama"
	Model           string  `yaml:"model"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	BaseURL         string  `yaml:"base_url"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	RPM             int     `yaml:"rpm"` // requests per minute, 0 = unlimited
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	DB           string `yaml:"db"`
	HistoryTurns int    `yaml:"history_turns"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir:             filepath.Join(DataDirName, "cache"),
			ChangeDetection: ChangeDetectionStrict,
		},
		Uploads: UploadsConfig{
			Dir:      "uploads",
			Includes: []string{"**/*"},
			Excludes: []string{"**/.*", "**/.*/**", "**/~$*"},
		},
		Chunk: ChunkConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			Dimension: 512,
			BatchSize: 64,
		},
		Index: IndexConfig{
			Backend: "flat",
		},
		Retrieve: RetrieveConfig{
			TopK:         3,
			CacheEntries: 128,
		},
		LLM: LLMConfig{
			Provider:        "gemini",
			Model:           "gemini-2.5-flash",
			APIKeyEnv:       "GEMINI_API_KEY",
			Temperature:     0.2,
			MaxOutputTokens: 1024,
			RPM:             15,
		},
		Chat: ChatConfig{
			DB:           filepath.Join(DataDirName, "chat.db"),
			HistoryTurns: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docchat.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docchat.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DataDirName, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Chunk.Size <= 0 {
		return fmt.Errorf("chunk.size must be positive, got %d", c.Chunk.Size)
	}
	if c.Chunk.Overlap < 0 {
		return fmt.Errorf("chunk.overlap must not be negative, got %d", c.Chunk.Overlap)
	}
	switch c.Cache.ChangeDetection {
	case ChangeDetectionStrict, ChangeDetectionMtime:
	default:
		return fmt.Errorf("cache.change_detection must be %q or %q, got %q",
			ChangeDetectionStrict, ChangeDetectionMtime, c.Cache.ChangeDetection)
	}
	switch c.Index.Backend {
	case "flat", "chromem":
	default:
		return fmt.Errorf("unknown index.backend %q", c.Index.Backend)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DataDirName is the per-project state directory.
const DataDirName = ".docchat"

// Resolve returns p joined to dir unless p is already absolute.
func Resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// EnsureDataDir ensures the .docchat directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDirName), 0755)
}
