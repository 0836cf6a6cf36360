package model

import "time"

// Config holds the complete strata configuration
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Charts   ChartsConfig   `yaml:"charts" mapstructure:"charts"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PathsConfig controls where the pipeline writes its outputs
type PathsConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir" validate:"required"`
	TablesDir string `yaml:"tables_dir" mapstructure:"tables_dir" validate:"required"` // Relative to OutputDir
	PlotsDir  string `yaml:"plots_dir" mapstructure:"plots_dir" validate:"required"`
	ReportDir string `yaml:"report_dir" mapstructure:"report_dir" validate:"required"`
}

// AnalysisConfig controls stratum aggregation
type AnalysisConfig struct {
	MinStratumSize int  `yaml:"min_stratum_size" mapstructure:"min_stratum_size" validate:"min=1"`
	MeaningfulOnly bool `yaml:"meaningful_only" mapstructure:"meaningful_only"` // Drop "unspecified"/"unknown" values before counting
}

// ChartsConfig controls chart rendering
type ChartsConfig struct {
	TopStrata      int    `yaml:"top_strata" mapstructure:"top_strata" validate:"min=1"`
	TopRiskFactors int    `yaml:"top_risk_factors" mapstructure:"top_risk_factors" validate:"min=1"`
	TopSymptoms    int    `yaml:"top_symptoms" mapstructure:"top_symptoms" validate:"min=1"`
	AssetsHost     string `yaml:"assets_host,omitempty" mapstructure:"assets_host"` // Empty uses the go-echarts CDN
}

// LLMConfig holds settings for the optional narrative generation
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=openai amplify ollama"` // Empty disables narratives
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	HeaderName  string        `yaml:"header_name,omitempty" mapstructure:"header_name"` // Auth header for amplify
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature" validate:"min=0,max=2"`

	RetryAttempts     int     `yaml:"retry_attempts" mapstructure:"retry_attempts" validate:"min=1,max=10"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" mapstructure:"burst" validate:"min=1"`
	Workers           int     `yaml:"workers" mapstructure:"workers" validate:"min=1"`
	TopStrata         int     `yaml:"top_strata" mapstructure:"top_strata" validate:"min=1"`

	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig controls the narrative response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// LogConfig controls diagnostic logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			OutputDir: "outputs",
			TablesDir: "tables",
			PlotsDir:  "plots",
			ReportDir: "report",
		},
		Analysis: AnalysisConfig{
			MinStratumSize: 3,
		},
		Charts: ChartsConfig{
			TopStrata:      5,
			TopRiskFactors: 10,
			TopSymptoms:    8,
		},
		LLM: LLMConfig{
			Provider:          "", // Disabled by default
			Model:             "", // Provider default
			Timeout:           60 * time.Second,
			MaxTokens:         300,
			Temperature:       0.2,
			RetryAttempts:     3,
			RequestsPerSecond: 1,
			Burst:             2,
			Workers:           3,
			TopStrata:         3,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".strata-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
