package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ppiankov/strata/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// setDefaults registers every config key so environment variables resolve during Unmarshal
func setDefaults(v *viper.Viper, cfg *model.Config) {
	defaults := map[string]any{
		"paths.output_dir": cfg.Paths.OutputDir,
		"paths.tables_dir": cfg.Paths.TablesDir,
		"paths.plots_dir":  cfg.Paths.PlotsDir,
		"paths.report_dir": cfg.Paths.ReportDir,

		"analysis.min_stratum_size": cfg.Analysis.MinStratumSize,
		"analysis.meaningful_only":  cfg.Analysis.MeaningfulOnly,

		"charts.top_strata":       cfg.Charts.TopStrata,
		"charts.top_risk_factors": cfg.Charts.TopRiskFactors,
		"charts.top_symptoms":     cfg.Charts.TopSymptoms,
		"charts.assets_host":      cfg.Charts.AssetsHost,

		"llm.provider":            cfg.LLM.Provider,
		"llm.model":               cfg.LLM.Model,
		"llm.api_key":             cfg.LLM.APIKey,
		"llm.base_url":            cfg.LLM.BaseURL,
		"llm.header_name":         cfg.LLM.HeaderName,
		"llm.timeout":             cfg.LLM.Timeout,
		"llm.max_tokens":          cfg.LLM.MaxTokens,
		"llm.temperature":         cfg.LLM.Temperature,
		"llm.retry_attempts":      cfg.LLM.RetryAttempts,
		"llm.requests_per_second": cfg.LLM.RequestsPerSecond,
		"llm.burst":               cfg.LLM.Burst,
		"llm.workers":             cfg.LLM.Workers,
		"llm.top_strata":          cfg.LLM.TopStrata,
		"llm.http_proxy":          cfg.LLM.HTTPProxy,
		"llm.https_proxy":         cfg.LLM.HTTPSProxy,

		"cache.enabled":    cfg.Cache.Enabled,
		"cache.dir":        cfg.Cache.Dir,
		"cache.memory_ttl": cfg.Cache.MemoryTTL,
		"cache.disk_ttl":   cfg.Cache.DiskTTL,

		"log.level": cfg.Log.Level,
		"log.json":  cfg.Log.JSON,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// loadConfig resolves the effective configuration and validates it
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateConfig checks the struct tags of cfg and reports every failing field
func validateConfig(cfg *model.Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), tagWithParam(fe), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func tagWithParam(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

var sectionComments = map[string]string{
	"paths":    "Output layout; tables, plots and report are relative to output_dir",
	"analysis": "Strata with fewer unique studies than min_stratum_size are left out of every table",
	"charts":   "How many strata and items the comparison charts show",
	"llm":      "Optional narratives. provider: openai, amplify, ollama, or empty to disable.\nAPI keys come from the environment (STRATA_LLM_API_KEY, OPENAI_API_KEY, AMPLIFY_API_KEY)",
	"cache":    "Narrative response cache (memory + disk)",
	"log":      "Diagnostic logging to stderr",
}

// documentedConfig renders cfg as YAML with a comment above each section
func documentedConfig(cfg *model.Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	humanizeDurations(&doc)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if c, ok := sectionComments[doc.Content[i].Value]; ok {
			doc.Content[i].HeadComment = c
		}
	}
	doc.HeadComment = "Strata configuration\n\nPriority: CLI flags > STRATA_* environment > this file > built-in defaults"

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

var durationKeys = map[string]bool{
	"timeout":    true,
	"memory_ttl": true,
	"disk_ttl":   true,
}

// humanizeDurations rewrites nanosecond integers under duration keys as "1h0m0s" strings
func humanizeDurations(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if durationKeys[key.Value] && val.Kind == yaml.ScalarNode {
				if ns, err := strconv.ParseInt(val.Value, 10, 64); err == nil {
					val.Value = time.Duration(ns).String()
					val.Tag = "!!str"
				}
			}
		}
	}
	for _, c := range n.Content {
		humanizeDurations(c)
	}
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Strata configuration",
	Long: `Manage Strata configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (STRATA_*, e.g. STRATA_ANALYSIS_MIN_STRATUM_SIZE)
3. Config file (~/.strata/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("Configuration file: "+used))
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("No configuration file found (using defaults and environment)"))
		}

		data, err := documentedConfig(appConfig)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, banner("Current Configuration"))
		fmt.Fprintln(out)
		fmt.Fprint(out, string(data))
		return nil
	},
}

var configInitPath string
var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a documented default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("find home directory: %w", err)
			}
			path = filepath.Join(home, ".strata", "config.yaml")
		}

		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		data, err := documentedConfig(model.DefaultConfig())
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, okStyle.Render("✓ Created default configuration: "+path))
		fmt.Fprintf(out, "\nTo view the effective configuration:\n  strata config show\n")
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "where to write the file (default: $HOME/.strata/config.yaml)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
