package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "GreenFlow AI",
			Version:     "1.0.0",
			Environment: "development",
		},
		Server: ServerConfig{
			ListenAddr:      ":8000",
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "./data/greenflow.db",
		},
		Pipeline: PipelineConfig{
			InputDir:         "./data/input",
			OutputFile:       "./data/output/enriched.jsonl",
			FilePattern:      "*.json",
			ScanInterval:     2 * time.Second,
			WatchEvents:      false,
			DefaultSource:    "pipeline",
			RestartOnFailure: true,
		},
		Stream: StreamConfig{
			Interval: 2 * time.Second,
			DemoMin:  310,
			DemoMax:  520,
		},
		Thresholds: ThresholdConfig{
			Warning:         350,
			Danger:          400,
			Critical:        500,
			RiskScoreMax:    1.0,
			AnomalyBaseline: 350,
			AnomalyStdDev:   30,
		},
		Alerts: AlertConfig{
			CriticalRisk: 0.9,
		},
		RAG: RAGConfig{
			Provider:    ProviderAuto,
			Timeout:     15 * time.Second,
			TopK:        3,
			CacheTTL:    5 * time.Minute,
			MaxTokens:   512,
			Temperature: 0.4,
			MaxRetries:  2,
			RetryDelay:  500 * time.Millisecond,
			OpenAI: OpenAIConfig{
				URL:   "https://api.openai.com/v1/chat/completions",
				Model: "gpt-3.5-turbo",
			},
			Gemini: GeminiConfig{
				Model: "gemini-1.5-flash",
			},
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			MetricsPath:    "/metrics",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file at path,
// and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	klog.V(2).InfoS("Loaded configuration",
		"environment", cfg.App.Environment,
		"inputDir", cfg.Pipeline.InputDir,
		"outputFile", cfg.Pipeline.OutputFile,
		"warning", cfg.Thresholds.Warning,
		"danger", cfg.Thresholds.Danger,
		"critical", cfg.Thresholds.Critical,
		"llmProvider", cfg.RAG.Provider)

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv overlays environment variables on cfg. Unset variables keep the
// value already present.
func applyEnv(cfg *Config) {
	cfg.App.Name = getEnvOrDefault("APP_NAME", cfg.App.Name)
	cfg.App.Version = getEnvOrDefault("APP_VERSION", cfg.App.Version)
	cfg.App.Environment = getEnvOrDefault("APP_ENV", cfg.App.Environment)

	cfg.Server.ListenAddr = getEnvOrDefault("LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.ShutdownTimeout = getDurationOrDefault("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.AllowedOrigins = getListOrDefault("ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Database.Path = getEnvOrDefault("DATABASE_PATH", cfg.Database.Path)

	cfg.Pipeline.InputDir = getEnvOrDefault("PIPELINE_INPUT_DIR", cfg.Pipeline.InputDir)
	cfg.Pipeline.OutputFile = getEnvOrDefault("PIPELINE_OUTPUT_FILE", cfg.Pipeline.OutputFile)
	cfg.Pipeline.FilePattern = getEnvOrDefault("PIPELINE_FILE_PATTERN", cfg.Pipeline.FilePattern)
	cfg.Pipeline.ScanInterval = getDurationOrDefault("PIPELINE_SCAN_INTERVAL", cfg.Pipeline.ScanInterval)
	cfg.Pipeline.WatchEvents = getBoolOrDefault("PIPELINE_WATCH_EVENTS", cfg.Pipeline.WatchEvents)
	cfg.Pipeline.DefaultSource = getEnvOrDefault("PIPELINE_DEFAULT_SOURCE", cfg.Pipeline.DefaultSource)
	cfg.Pipeline.RestartOnFailure = getBoolOrDefault("PIPELINE_RESTART_ON_FAILURE", cfg.Pipeline.RestartOnFailure)

	cfg.Stream.Interval = getDurationOrDefault("STREAM_INTERVAL", cfg.Stream.Interval)
	cfg.Stream.DemoMin = getFloatOrDefault("STREAM_DEMO_MIN", cfg.Stream.DemoMin)
	cfg.Stream.DemoMax = getFloatOrDefault("STREAM_DEMO_MAX", cfg.Stream.DemoMax)

	cfg.Thresholds.Warning = getFloatOrDefault("CO2_WARNING_THRESHOLD", cfg.Thresholds.Warning)
	cfg.Thresholds.Danger = getFloatOrDefault("CO2_DANGER_THRESHOLD", cfg.Thresholds.Danger)
	cfg.Thresholds.Critical = getFloatOrDefault("CO2_CRITICAL_THRESHOLD", cfg.Thresholds.Critical)
	cfg.Thresholds.RiskScoreMax = getFloatOrDefault("RISK_SCORE_MAX", cfg.Thresholds.RiskScoreMax)
	cfg.Thresholds.AnomalyBaseline = getFloatOrDefault("CO2_ANOMALY_BASELINE", cfg.Thresholds.AnomalyBaseline)
	cfg.Thresholds.AnomalyStdDev = getFloatOrDefault("CO2_ANOMALY_STD_DEV", cfg.Thresholds.AnomalyStdDev)

	cfg.Alerts.CriticalRisk = getFloatOrDefault("ALERT_CRITICAL_RISK", cfg.Alerts.CriticalRisk)

	cfg.RAG.Provider = strings.ToLower(getEnvOrDefault("LLM_PROVIDER", cfg.RAG.Provider))
	cfg.RAG.Timeout = getDurationOrDefault("RAG_TIMEOUT", cfg.RAG.Timeout)
	cfg.RAG.TopK = getIntOrDefault("RAG_TOP_K", cfg.RAG.TopK)
	cfg.RAG.CacheTTL = getDurationOrDefault("RAG_CACHE_TTL", cfg.RAG.CacheTTL)
	cfg.RAG.MaxRetries = getIntOrDefault("LLM_MAX_RETRIES", cfg.RAG.MaxRetries)
	cfg.RAG.OpenAI.APIKey = getEnvOrDefault("OPENAI_API_KEY", cfg.RAG.OpenAI.APIKey)
	cfg.RAG.OpenAI.URL = getEnvOrDefault("OPENAI_API_URL", cfg.RAG.OpenAI.URL)
	cfg.RAG.OpenAI.Model = getEnvOrDefault("OPENAI_MODEL", cfg.RAG.OpenAI.Model)
	cfg.RAG.Gemini.APIKey = getEnvOrDefault("GEMINI_API_KEY", cfg.RAG.Gemini.APIKey)
	cfg.RAG.Gemini.Model = getEnvOrDefault("GEMINI_MODEL", cfg.RAG.Gemini.Model)

	cfg.Observability.MetricsEnabled = getBoolOrDefault("METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.MetricsPath = getEnvOrDefault("METRICS_PATH", cfg.Observability.MetricsPath)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.Atoi(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid integer value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseFloat(strValue, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid float value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if strValue := os.Getenv(key); strValue != "" {
		value, err := strconv.ParseBool(strValue)
		if err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid boolean value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid duration value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

// getListOrDefault splits a comma separated variable, dropping empty items
func getListOrDefault(key string, defaultValue []string) []string {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
