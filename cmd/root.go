package cmd

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/internship-recommender/internal/ai/process"
	"github.com/spigell/internship-recommender/internal/filtering"
)

const (
	app = "internship-recommender"
)

type Config struct {
	Catalog   *CatalogConfig    `mapstructure:"catalog"`
	Store     *StoreConfig      `mapstructure:"store"`
	Server    *ServerConfig     `mapstructure:"server"`
	Recommend *RecommendConfig  `mapstructure:"recommend"`
	External  *ExternalConfig   `mapstructure:"external"`
	Filters   *filtering.Config `mapstructure:"filters"`
}

type CatalogConfig struct {
	Path  string `mapstructure:"path"`
	Sheet string `mapstructure:"sheet"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

type RecommendConfig struct {
	TopN int `mapstructure:"top-n"`
}

type ExternalConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Provider string         `mapstructure:"provider"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Python   string         `mapstructure:"python"`
	Process  process.Config `mapstructure:"process"`
	Gemini   *GeminiConfig  `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile        string `mapstructure:"api-key-file"`
	Model             string `mapstructure:"model"`
	MaxRetries        int    `mapstructure:"max-retries"`
	RequestsPerMinute int    `mapstructure:"requests-per-minute"`
	TopK              int    `mapstructure:"top-k"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "internship-recommender ranks internship listings against a student's preferences",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"external.enabled":             "USE_EXTERNAL_RECOMMENDER",
		"external.python":              "PYTHON_EXEC",
		"external.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"catalog.path":                 "RECOMMENDER_CATALOG",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("catalog.path", "synthetic_internships.csv")
	viper.SetDefault("store.path", app+".db")
	viper.SetDefault("server.listen", ":5000")
	viper.SetDefault("server.shutdown-timeout", 10*time.Second)
	viper.SetDefault("recommend.top-n", 10)
	viper.SetDefault("external.enabled", true)
	viper.SetDefault("external.provider", process.Provider)
	viper.SetDefault("external.timeout", 20*time.Second)
	viper.SetDefault("external.process.script", "app.py")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is internship-recommender.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env is fine, the process environment is used as is.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults are enough to run, but a broken or explicitly given file is fatal.
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

	if config.Catalog == nil {
		config.Catalog = &CatalogConfig{}
	}
	if config.Store == nil {
		config.Store = &StoreConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.Recommend == nil {
		config.Recommend = &RecommendConfig{}
	}
	if config.External == nil {
		config.External = &ExternalConfig{}
	}
	if config.Filters == nil {
		config.Filters = &filtering.Config{}
	}

	return config, nil
}
