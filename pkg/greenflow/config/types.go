package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration for the greenflow service
type Config struct {
	App           AppConfig           `yaml:"app"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Stream        StreamConfig        `yaml:"stream"`
	Thresholds    ThresholdConfig     `yaml:"thresholds"`
	Alerts        AlertConfig         `yaml:"alerts"`
	RAG           RAGConfig           `yaml:"rag"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// AppConfig identifies the running service in health responses
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// DatabaseConfig holds relational store settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file path
}

// PipelineConfig holds settings for the batch directory watcher
type PipelineConfig struct {
	InputDir         string        `yaml:"inputDir"`
	OutputFile       string        `yaml:"outputFile"`
	FilePattern      string        `yaml:"filePattern"`  // Glob matched against file names in InputDir
	ScanInterval     time.Duration `yaml:"scanInterval"` // Idle wait between scans
	WatchEvents      bool          `yaml:"watchEvents"`  // Wake early on filesystem notifications
	DefaultSource    string        `yaml:"defaultSource"`
	RestartOnFailure bool          `yaml:"restartOnFailure"`
}

// StreamConfig holds live tail settings
type StreamConfig struct {
	Interval time.Duration `yaml:"interval"`
	DemoMin  float64       `yaml:"demoMin"` // Fallback CO2 range when the output log is empty
	DemoMax  float64       `yaml:"demoMax"`
}

// ThresholdConfig is the process-wide classification configuration.
// It is copied into a single extractor at startup and never changed.
type ThresholdConfig struct {
	Warning         float64 `yaml:"warning"`  // ppm
	Danger          float64 `yaml:"danger"`   // ppm
	Critical        float64 `yaml:"critical"` // ppm
	RiskScoreMax    float64 `yaml:"riskScoreMax"`
	AnomalyBaseline float64 `yaml:"anomalyBaseline"` // ppm
	AnomalyStdDev   float64 `yaml:"anomalyStdDev"`   // ppm
}

// AlertConfig holds alert evaluation settings
type AlertConfig struct {
	CriticalRisk float64 `yaml:"criticalRisk"` // Risk score at or above which CRITICAL_RISK fires
}

// RAGConfig holds settings for the question answering layer
type RAGConfig struct {
	Provider    string        `yaml:"provider"` // auto, openai, gemini, stub or none
	Timeout     time.Duration `yaml:"timeout"`
	TopK        int           `yaml:"topK"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float64       `yaml:"temperature"`
	MaxRetries  int           `yaml:"maxRetries"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
	OpenAI      OpenAIConfig  `yaml:"openai"`
	Gemini      GeminiConfig  `yaml:"gemini"`
}

// OpenAIConfig holds chat completion API settings
type OpenAIConfig struct {
	APIKey string `yaml:"apiKey"`
	URL    string `yaml:"url"`
	Model  string `yaml:"model"`
}

// GeminiConfig holds Google generative AI settings
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// ObservabilityConfig holds configuration for monitoring
type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metricsEnabled"`
	MetricsPath    string `yaml:"metricsPath"`
}

var knownProviders = map[string]bool{
	ProviderAuto:   true,
	ProviderOpenAI: true,
	ProviderGemini: true,
	ProviderStub:   true,
	ProviderNone:   true,
}

const (
	ProviderAuto   = "auto"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderStub   = "stub"
	ProviderNone   = "none"
)

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("allowed origin %q must be \"*\" or an http(s) URL", origin)
		}
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if err := c.validatePipeline(); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}

	if c.Stream.Interval <= 0 {
		return fmt.Errorf("stream interval must be positive")
	}
	if c.Stream.DemoMin < 0 || c.Stream.DemoMin >= c.Stream.DemoMax {
		return fmt.Errorf("stream demo range [%v, %v) is invalid", c.Stream.DemoMin, c.Stream.DemoMax)
	}

	if c.Alerts.CriticalRisk <= 0 {
		return fmt.Errorf("critical risk threshold must be positive")
	}

	if !knownProviders[c.RAG.Provider] {
		return fmt.Errorf("unknown LLM provider %q", c.RAG.Provider)
	}
	if c.RAG.Timeout <= 0 {
		return fmt.Errorf("rag timeout must be positive")
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag topK must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.InputDir == "" {
		return fmt.Errorf("input directory is required")
	}
	if c.Pipeline.OutputFile == "" {
		return fmt.Errorf("output file is required")
	}
	if c.Pipeline.FilePattern == "" {
		return fmt.Errorf("file pattern is required")
	}
	if c.Pipeline.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}
	return nil
}

// Validate checks the ordering warning < danger < critical and the score parameters
func (t ThresholdConfig) Validate() error {
	if t.Warning < 0 {
		return fmt.Errorf("warning threshold must not be negative")
	}
	if t.Warning >= t.Danger {
		return fmt.Errorf("warning threshold (%v) must be below danger threshold (%v)", t.Warning, t.Danger)
	}
	if t.Danger >= t.Critical {
		return fmt.Errorf("danger threshold (%v) must be below critical threshold (%v)", t.Danger, t.Critical)
	}
	if t.RiskScoreMax <= 0 {
		return fmt.Errorf("risk score max must be positive")
	}
	if t.AnomalyStdDev <= 0 {
		return fmt.Errorf("anomaly standard deviation must be positive")
	}
	return nil
}
