package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	configPathEnv = "DAILYARXIV_CONFIG"
	outputDirEnv  = "DAILYARXIV_OUTPUT_DIR"
	llmModelEnv   = "DAILYARXIV_LLM_MODEL"
	apiKeyEnv     = "OPENAI_API_KEY"
)

// Conflict policies for re-persisting an existing run date.
const (
	ConflictReject    = "reject"
	ConflictOverwrite = "overwrite"
)

// Fetch strategies for the paper source.
const (
	StrategyRSS     = "rss"
	StrategyListing = "listing"
)

// Config holds all settings consumed at startup.
type Config struct {
	OutputDir    string          `yaml:"output_dir"`
	Logging      LoggingConfig   `yaml:"logging"`
	Crawler      CrawlerConfig   `yaml:"crawler"`
	Reader       ReaderConfig    `yaml:"reader"`
	Digest       DigestConfig    `yaml:"digest"`
	Dedup        DedupConfig     `yaml:"dedup"`
	Scheduler    SchedulerConfig `yaml:"scheduler"`
	Server       ServerConfig    `yaml:"server"`
	SystemPrompt string          `yaml:"system_prompt"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CrawlerConfig scopes the fetch: which categories, over which transport.
type CrawlerConfig struct {
	Strategy   string   `yaml:"strategy"`
	Categories []string `yaml:"categories"`
}

// ReaderConfig defines how relevance scoring talks to the LLM.
type ReaderConfig struct {
	LLMModel           string `yaml:"llm_model"`
	RelevanceThreshold int    `yaml:"relevance_threshold"`
	Endpoint           string `yaml:"endpoint"`
	APIKey             string `yaml:"api_key"`
	Workers            int    `yaml:"workers"`
	MaxAttempts        int    `yaml:"max_attempts"`
}

// DigestConfig controls persistence of run outputs.
type DigestConfig struct {
	OnConflict string `yaml:"on_conflict"`
}

// DedupConfig locates the seen-paper store.
type DedupConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when recurring runs execute.
type SchedulerConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`

	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// ServerConfig describes the digest-serving HTTP endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DedupPath returns the dedup store location, defaulting under OutputDir.
func (c Config) DedupPath() string {
	if c.Dedup.Path != "" {
		return c.Dedup.Path
	}
	return filepath.Join(c.OutputDir, "dedup.db")
}

// Load reads YAML configuration from path (or the DAILYARXIV_CONFIG env
// var when path is empty) over built-in defaults, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(outputDirEnv); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.Reader.LLMModel = v
	}
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.Reader.APIKey = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func (c Config) validate() error {
	if len(c.Crawler.Categories) == 0 {
		return fmt.Errorf("config: crawler.categories must not be empty")
	}
	switch c.Crawler.Strategy {
	case StrategyRSS, StrategyListing:
	default:
		return fmt.Errorf("config: unknown crawler.strategy %q", c.Crawler.Strategy)
	}
	if c.Reader.RelevanceThreshold < 0 || c.Reader.RelevanceThreshold > 10 {
		return fmt.Errorf("config: reader.relevance_threshold %d outside [0,10]", c.Reader.RelevanceThreshold)
	}
	if c.Reader.Workers <= 0 {
		return fmt.Errorf("config: reader.workers must be positive")
	}
	if c.Reader.MaxAttempts <= 0 {
		return fmt.Errorf("config: reader.max_attempts must be positive")
	}
	switch c.Digest.OnConflict {
	case ConflictReject, ConflictOverwrite:
	default:
		return fmt.Errorf("config: digest.on_conflict must be %q or %q", ConflictReject, ConflictOverwrite)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		OutputDir: "data",
		Logging:   LoggingConfig{Level: "info"},
		Crawler: CrawlerConfig{
			Strategy:   StrategyRSS,
			Categories: []string{"cs.CV", "cs.CL"},
		},
		Reader: ReaderConfig{
			LLMModel:           "gpt-4o",
			RelevanceThreshold: 7,
			Endpoint:           "https://api.openai.com/v1/chat/completions",
			Workers:            8,
			MaxAttempts:        3,
		},
		Digest:    DigestConfig{OnConflict: ConflictReject},
		Scheduler: SchedulerConfig{Cron: "0 6 * * *", Timezone: defaultTimezone},
		Server:    ServerConfig{Addr: ":33678"},
		SystemPrompt: `You have been asked to read a paper's title and abstract. Based on my research interests, you should rate this paper on a scale of 1-10, with a higher score indicating greater relevance. Additionally, please generate a 1-2 sentence summary for this paper explaining why it's relevant to my research interests. The output should be in a JSON format with the following structure:

Example:
1. {"Score": "an integer score out of 10", "Reasons": "1-2 sentence short reasonings"}

My research interests are:
1. Retrieval-Augmented Generation (RAG), especially focuses on Multimodal RAG.
2. Multimodal Retrieval.
3. Long-Context.`,
	}
}
