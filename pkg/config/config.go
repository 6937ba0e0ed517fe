package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xhad/askdocs/internal/models"
)

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

type VectorStoreConfig struct {
	Backend        string  `yaml:"backend"`
	URL            string  `yaml:"url"`
	APIKey         string  `yaml:"api_key"`
	DatabaseURL    string  `yaml:"database_url"`
	Collection     string  `yaml:"collection"`
	Distance       string  `yaml:"distance"`
	ScoreThreshold float64 `yaml:"score_threshold"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
}

type ProcessorConfig struct {
	DocsPath     string `yaml:"docs_path"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	BatchSize    int    `yaml:"batch_size"`
}

type ScraperConfig struct {
	MaxDepth          int      `yaml:"max_depth"`
	RateLimit         float64  `yaml:"rate_limit"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type AgentConfig struct {
	MaxContextLength int  `yaml:"max_context_length"`
	TopK             int  `yaml:"top_k"`
	HistoryTurns     int  `yaml:"history_turns"`
	MaxHistory       int  `yaml:"max_history"`
	UseHistory       bool `yaml:"use_history"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Processor   ProcessorConfig   `yaml:"processor"`
	Scraper     ScraperConfig     `yaml:"scraper"`
	Agent       AgentConfig       `yaml:"agent"`
	Server      ServerConfig      `yaml:"server"`
}

// LoadConfig reads the YAML file at path, or the first file found in the
// default locations when path is empty, then applies environment overrides
// and defaults. A missing file in the default locations is not an error.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/askdocs/config.yaml"),
			"/etc/askdocs/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.ConfigError("reading config file: %v", err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, models.ConfigError("parsing config file: %v", err)
	}

	if err := mergeWithEnv(config); err != nil {
		return nil, err
	}

	applyDefaults(config)

	return config, nil
}

// unsetOverlap marks a chunk overlap that neither the file nor the
// environment provided, so that an explicit 0 survives applyDefaults.
const unsetOverlap = math.MinInt

// newConfig returns a Config whose zero-able fields carry unset markers.
// YAML keys absent from the file leave the markers in place.
func newConfig() *Config {
	config := &Config{}
	config.LLM.Temperature = math.NaN()
	config.Processor.ChunkOverlap = unsetOverlap
	return config
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	if err := mergeWithEnv(config); err != nil {
		return nil, err
	}
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "qwen-turbo"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if math.IsNaN(config.LLM.Temperature) {
		config.LLM.Temperature = 0.7
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = config.LLM.Provider
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = config.LLM.BaseURL
	}
	if config.Embedding.APIKey == "" {
		config.Embedding.APIKey = config.LLM.APIKey
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "text-embedding-v3"
	}
	if config.Embedding.Dimension == 0 {
		config.Embedding.Dimension = 1024
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 10
	}

	if config.VectorStore.Backend == "" {
		config.VectorStore.Backend = "qdrant"
	}
	if config.VectorStore.URL == "" {
		config.VectorStore.URL = "http://localhost:6333"
	}
	if config.VectorStore.Collection == "" {
		config.VectorStore.Collection = "docs"
	}
	if config.VectorStore.Distance == "" {
		config.VectorStore.Distance = string(models.Cosine)
	}
	if config.VectorStore.TimeoutSecs == 0 {
		config.VectorStore.TimeoutSecs = 15
	}

	if config.Processor.DocsPath == "" {
		config.Processor.DocsPath = "docs"
	}
	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 500
	}
	if config.Processor.ChunkOverlap == unsetOverlap {
		config.Processor.ChunkOverlap = min(50, config.Processor.ChunkSize/10)
	}
	if config.Processor.BatchSize == 0 {
		config.Processor.BatchSize = 10
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 3
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Agent.MaxContextLength == 0 {
		config.Agent.MaxContextLength = 4000
	}
	if config.Agent.TopK == 0 {
		config.Agent.TopK = 5
	}
	if config.Agent.HistoryTurns == 0 {
		config.Agent.HistoryTurns = 10
	}
	if config.Agent.MaxHistory == 0 {
		config.Agent.MaxHistory = 20
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) error {
	stringVars := map[string]*string{
		"LLM_PROVIDER":       &config.LLM.Provider,
		"LLM_API_KEY":        &config.LLM.APIKey,
		"LLM_BASE_URL":       &config.LLM.BaseURL,
		"LLM_MODEL":          &config.LLM.Model,
		"EMBEDDING_PROVIDER": &config.Embedding.Provider,
		"EMBEDDING_API_KEY":  &config.Embedding.APIKey,
		"EMBEDDING_BASE_URL": &config.Embedding.BaseURL,
		"EMBEDDING_MODEL":    &config.Embedding.Model,
		"VECTOR_BACKEND":     &config.VectorStore.Backend,
		"VECTOR_STORE_URL":   &config.VectorStore.URL,
		"DATABASE_URL":       &config.VectorStore.DatabaseURL,
		"COLLECTION_NAME":    &config.VectorStore.Collection,
		"DOCS_PATH":          &config.Processor.DocsPath,
	}
	for key, dst := range stringVars {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"EMBEDDING_DIMENSION": &config.Embedding.Dimension,
		"CHUNK_SIZE":          &config.Processor.ChunkSize,
		"CHUNK_OVERLAP":       &config.Processor.ChunkOverlap,
		"MAX_CONTEXT_LENGTH":  &config.Agent.MaxContextLength,
		"TOP_K_RESULTS":       &config.Agent.TopK,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return models.ConfigError("%s: %q is not an integer", key, v)
		}
		*dst = n
	}

	if v := os.Getenv("TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return models.ConfigError("TEMPERATURE: %q is not a number", v)
		}
		config.LLM.Temperature = f
	}

	return nil
}

// Distance returns the configured metric.
func (c *Config) Distance() models.Distance {
	return models.Distance(c.VectorStore.Distance)
}

func (c *Config) String() string {
	return fmt.Sprintf("llm=%s/%s embedding=%s/%s(%d) store=%s collection=%s",
		c.LLM.Provider, c.LLM.Model, c.Embedding.Provider, c.Embedding.Model,
		c.Embedding.Dimension, c.VectorStore.Backend, c.VectorStore.Collection)
}
