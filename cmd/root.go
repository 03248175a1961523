package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	modulesFile   string
	knowledgePath string
	redisURL      string
	dbPath        string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sigcor",
	Short: "Defense signal correlation and risk-scoring engine",
	Long: `Sigcor ingests raw telemetry from perimeter-defense sources (WAF, IDS,
and pluggable sensors), normalizes it into signals, correlates contributions
across sensor modules, enriches them with CVE knowledge, scores aggregate
risk, and emits actionable verdicts for downstream consumers.

Features:
- Pluggable sensor modules configured from a declarative module map
- CVE knowledge-index enrichment and evasion scoring
- Bounded signal/result history with trailing-window analytics
- Redis Streams result publishing and SQLite verdict archiving
- File, folder-watch, and HTTP ingestion surfaces`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sigcor.yaml)")
	rootCmd.PersistentFlags().StringVar(&modulesFile, "modules", "./sigcor-modules.yaml", "Declarative sensor module map")
	rootCmd.PersistentFlags().StringVar(&knowledgePath, "knowledge", "./data/knowledge.json", "CVE knowledge index path")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis connection URL for result publishing (empty disables)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite verdict archive path (empty disables)")

	// Bind flags to viper
	viper.BindPFlag("modules.path", rootCmd.PersistentFlags().Lookup("modules"))
	viper.BindPFlag("knowledge.path", rootCmd.PersistentFlags().Lookup("knowledge"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".sigcor" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sigcor")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Set defaults
	viper.SetDefault("modules.path", "./sigcor-modules.yaml")
	viper.SetDefault("knowledge.path", "./data/knowledge.json")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("database.path", "")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		Modules: ModulesConfig{
			Path: viper.GetString("modules.path"),
		},
		Knowledge: KnowledgeConfig{
			Path: viper.GetString("knowledge.path"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	Modules   ModulesConfig   `mapstructure:"modules"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

type ModulesConfig struct {
	Path string `mapstructure:"path"`
}

type KnowledgeConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}
