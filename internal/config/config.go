package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	// LLM settings. The default backend is Google's OpenAI-compatible
	// Gemini endpoint; any OpenAI-compatible provider works.
	LLMProvider string `json:"llm_provider"`
	LLMModel    string `json:"llm_model"`
	BackendURL  string `json:"backend_url"`
	MaxTokens   int    `json:"max_tokens"`

	// API keys
	GoogleAPIKey  string `json:"google_api_key"`
	FinnhubAPIKey string `json:"finnhub_api_key"`

	// Data fetch windows
	CandleWindowDays int `json:"candle_window_days"`
	NewsWindowDays   int `json:"news_window_days"`
	NewsLimit        int `json:"news_limit"`

	// Finnhub free tier throttles aggressively; minimum interval between
	// consecutive requests, in milliseconds.
	FinnhubPacingMs int `json:"finnhub_pacing_ms"`

	HTTPListenAddr string `json:"http_listen_addr"`

	CacheEnabled bool `json:"cache_enabled"`
	Debug        bool `json:"debug"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		ResultsDir:   filepath.Join(root, "results"),
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),

		LLMProvider: "gemini",
		LLMModel:    "gemini-1.5-flash",
		BackendURL:  "https://generativelanguage.googleapis.com/v1beta/openai",
		MaxTokens:   8192,

		CandleWindowDays: 365,
		NewsWindowDays:   7,
		NewsLimit:        5,
		FinnhubPacingMs:  500,

		HTTPListenAddr: ":8510",

		CacheEnabled: true,
		Debug:        false,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}

	if val := os.Getenv("GOOGLE_API_KEY"); val != "" {
		c.GoogleAPIKey = val
	}
	if val := os.Getenv("FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}

	if val := os.Getenv("FINSIGHT_LISTEN_ADDR"); val != "" {
		c.HTTPListenAddr = val
	}
	if val := os.Getenv("FINSIGHT_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = enabled
		}
	}

	if val := os.Getenv("CANDLE_WINDOW_DAYS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.CandleWindowDays = v
		}
	}
	if val := os.Getenv("NEWS_WINDOW_DAYS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.NewsWindowDays = v
		}
	}
	if val := os.Getenv("NEWS_LIMIT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.NewsLimit = v
		}
	}
	if val := os.Getenv("FINNHUB_PACING_MS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.FinnhubPacingMs = v
		}
	}
	if val := os.Getenv("MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTokens = v
		}
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProjectDir) == "" {
		return fmt.Errorf("project_dir is required")
	}
	if c.CandleWindowDays <= 0 {
		return fmt.Errorf("candle_window_days must be positive")
	}
	if c.NewsWindowDays <= 0 {
		return fmt.Errorf("news_window_days must be positive")
	}
	if c.NewsLimit <= 0 {
		return fmt.Errorf("news_limit must be positive")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	return nil
}

// FinnhubPacing returns the minimum interval between Finnhub requests.
func (c *Config) FinnhubPacing() time.Duration {
	if c.FinnhubPacingMs <= 0 {
		return 0
	}
	return time.Duration(c.FinnhubPacingMs) * time.Millisecond
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
