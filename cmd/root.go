package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "crewzy"
	envPrefix = "CREWZY"
)

type Config struct {
	Server     *ServerConfig     `mapstructure:"server"`
	Store      *StoreConfig      `mapstructure:"store"`
	AI         *AIConfig         `mapstructure:"ai"`
	Routing    *RoutingConfig    `mapstructure:"routing"`
	Normalizer *NormalizerConfig `mapstructure:"normalizer"`
	Tracing    *TracingConfig    `mapstructure:"tracing"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

type StoreConfig struct {
	Driver   string        `mapstructure:"driver"`
	Path     string        `mapstructure:"path"`
	Timeout  time.Duration `mapstructure:"timeout"`
	SeedFile string        `mapstructure:"seed-file"`
}

type AIConfig struct {
	Provider          string        `mapstructure:"provider"`
	EmbeddingProvider string        `mapstructure:"embedding-provider"`
	MaxLogLength      int           `mapstructure:"max-log-length"`
	Gemini            *GeminiConfig `mapstructure:"gemini"`
	Voyage            *VoyageConfig `mapstructure:"voyage"`
}

type GeminiConfig struct {
	APIKey         string        `mapstructure:"api-key"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding-model"`
	Dimensions     int           `mapstructure:"dimensions"`
	Temperature    *float32      `mapstructure:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type VoyageConfig struct {
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RoutingConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	ClientID         string        `mapstructure:"client-id"`
	ClientIDFile     string        `mapstructure:"client-id-file"`
	ClientSecret     string        `mapstructure:"client-secret"`
	ClientSecretFile string        `mapstructure:"client-secret-file"`
	TokenURL         string        `mapstructure:"token-url"`
	DistanceURL      string        `mapstructure:"distance-url"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type NormalizerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "crewzy assigns field-service tasks to the nearest qualified employee",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is crewzy.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every config key so that CREWZY_* variables are
// honored by Unmarshal even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.shutdown-timeout", 5*time.Second)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", app+".db")
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("store.seed-file", "")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.embedding-provider", "gemini")
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("ai.gemini.embedding-model", "")
	v.SetDefault("ai.gemini.dimensions", 0)
	v.SetDefault("ai.gemini.timeout", 30*time.Second)
	v.SetDefault("ai.voyage.api-key", "")
	v.SetDefault("ai.voyage.api-key-file", "")
	v.SetDefault("ai.voyage.model", "")
	v.SetDefault("ai.voyage.dimensions", 0)
	v.SetDefault("ai.voyage.timeout", 30*time.Second)

	v.SetDefault("routing.enabled", false)
	v.SetDefault("routing.client-id", "")
	v.SetDefault("routing.client-id-file", "")
	v.SetDefault("routing.client-secret", "")
	v.SetDefault("routing.client-secret-file", "")
	v.SetDefault("routing.token-url", "")
	v.SetDefault("routing.distance-url", "")
	v.SetDefault("routing.timeout", 10*time.Second)

	v.SetDefault("normalizer.concurrency", 4)
	v.SetDefault("tracing.enabled", false)
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// A missing default config file is fine: defaults and environment apply.
	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
