package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
		TimeoutSecs int     `yaml:"timeout_secs"`
	} `yaml:"llm"`

	Embedding struct {
		Model       string `yaml:"model"`
		Dimension   int    `yaml:"dimension"`
		BatchSize   int    `yaml:"batch_size"`
		MaxRetries  int    `yaml:"max_retries"`
		TimeoutSecs int    `yaml:"timeout_secs"`
	} `yaml:"embedding"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Retrieval struct {
		TopK            int     `yaml:"top_k"`
		MaxContextChars int     `yaml:"max_context_chars"`
		MinSimilarity   float64 `yaml:"min_similarity"`
	} `yaml:"retrieval"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Scraper struct {
		URL         string  `yaml:"url"`
		RateLimit   float64 `yaml:"rate_limit"`
		TimeoutSecs int     `yaml:"timeout_secs"`
	} `yaml:"scraper"`

	OCR struct {
		URL         string `yaml:"url"`
		TimeoutSecs int    `yaml:"timeout_secs"`
	} `yaml:"ocr"`

	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// A .env file supplies environment variables when present.
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docqa/config.yaml"),
			"/etc/docqa/config.yaml",
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
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "llama3"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.TimeoutSecs == 0 {
		config.LLM.TimeoutSecs = 120
	}

	if config.Embedding.Model == "" {
		config.Embedding.Model = "all-minilm"
	}
	if config.Embedding.Dimension == 0 {
		config.Embedding.Dimension = 384
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 32
	}
	if config.Embedding.MaxRetries == 0 {
		config.Embedding.MaxRetries = 3
	}
	if config.Embedding.TimeoutSecs == 0 {
		config.Embedding.TimeoutSecs = 30
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}
	if config.Retrieval.MaxContextChars == 0 {
		config.Retrieval.MaxContextChars = 2000
	}
	if config.Retrieval.MinSimilarity == 0 {
		config.Retrieval.MinSimilarity = 0.3
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 500
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 50
	}

	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.TimeoutSecs == 0 {
		config.Scraper.TimeoutSecs = 30
	}

	if config.OCR.TimeoutSecs == 0 {
		config.OCR.TimeoutSecs = 60
	}

	if config.Log.Mode == "" {
		config.Log.Mode = "dev"
	}
}

func mergeWithEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if dim := envInt("EMBEDDING_DIMENSION"); dim > 0 {
		config.Embedding.Dimension = dim
	}
	if k := envInt("TOP_K"); k > 0 {
		config.Retrieval.TopK = k
	}
	if chars := envInt("MAX_CONTEXT_CHARS"); chars > 0 {
		config.Retrieval.MaxContextChars = chars
	}
	if size := envInt("CHUNK_SIZE"); size > 0 {
		config.Processor.ChunkSize = size
	}
	if overlap := envInt("CHUNK_OVERLAP"); overlap > 0 {
		config.Processor.ChunkOverlap = overlap
	}
	if url := os.Getenv("SCRAPE_URL"); url != "" {
		config.Scraper.URL = url
	}
	if url := os.Getenv("OCR_URL"); url != "" {
		config.OCR.URL = url
	}
	if mode := os.Getenv("LOG_MODE"); mode != "" {
		config.Log.Mode = mode
	}
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
