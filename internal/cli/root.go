package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ppiankov/strata/internal/logging"
	"github.com/ppiankov/strata/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X github.com/ppiankov/strata/internal/cli.Version=..."
var Version = "dev"

var (
	cfgFile   string
	verbose   bool
	outputDir string

	// appConfig is the effective configuration, loaded before any subcommand runs
	appConfig *model.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata - population-stratum analysis of mental health literature",
	Long: `Strata turns LLM-extracted study summaries into a population taxonomy.

It splits the extracted text into fields, assigns every study to one of 51
population strata (age group, sex, clinical cohort, care setting), and
produces per-stratum tables, charts and reports.

Statistics are computed from the data alone. Optional LLM narratives are
commentary and never change a number.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "strata %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.strata/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "log as JSON")
	flags.StringVarP(&outputDir, "output-dir", "o", "", "output root (default: paths.output_dir)")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.json", flags.Lookup("log-json"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the config file and STRATA_* environment variables
func initConfig() {
	// A missing .env is normal
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".strata"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	setDefaults(viper.GetViper(), model.DefaultConfig())

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
		}
	}
}

// bindEnv maps STRATA_* environment variables onto config keys
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setup loads and validates the configuration and configures logging
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logging.Setup(logging.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if used := viper.ConfigFileUsed(); used != "" {
		logging.L().Debug("using config file", "path", used)
	}

	appConfig = cfg
	return nil
}
