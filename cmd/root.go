package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/candidate-console/internal/presence"
	"github.com/spigell/candidate-console/internal/view"
	"github.com/spigell/candidate-console/internal/workflow"
)

const (
	app = "candidate-console"
)

type Config struct {
	APIURL    string           `mapstructure:"api-url"`
	Token     string           `mapstructure:"token"`
	TokenFile string           `mapstructure:"token-file"`
	UserAgent string           `mapstructure:"user-agent"`
	LogFile   string           `mapstructure:"log-file"`
	Presence  *PresenceConfig  `mapstructure:"presence"`
	View      *ViewConfig      `mapstructure:"view"`
	Questions *QuestionsConfig `mapstructure:"questions"`
	Metrics   *MetricsConfig   `mapstructure:"metrics"`
}

type PresenceConfig struct {
	PollInterval      time.Duration `mapstructure:"poll-interval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat-interval"`
}

type ViewConfig struct {
	PageSize int `mapstructure:"page-size"`
}

type QuestionsConfig struct {
	Total int `mapstructure:"total"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "candidate-console is a recruiting console for candidates, their presence and scoring",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"api-url":    "CONSOLE_API_URL",
		"token":      "CONSOLE_TOKEN",
		"token-file": "CONSOLE_TOKEN_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("api-url", "http://localhost:3000/api")
	viper.SetDefault("log-file", app+".log")
	viper.SetDefault("presence.poll-interval", presence.DefaultPollInterval)
	viper.SetDefault("presence.heartbeat-interval", presence.DefaultHeartbeatInterval)
	viper.SetDefault("view.page-size", view.DefaultPageSize)
	viper.SetDefault("questions.total", workflow.DefaultQuestionsTotal)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is candidate-console.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	err := viper.ReadInConfig()
	if err == nil {
		return
	}

	// Without an explicit --config the file is optional.
	var notFound viper.ConfigFileNotFoundError
	if cfgFile == "" && errors.As(err, &notFound) {
		return
	}

	log.Fatal(err)
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Presence == nil {
		config.Presence = &PresenceConfig{}
	}
	if config.View == nil {
		config.View = &ViewConfig{}
	}
	if config.Questions == nil {
		config.Questions = &QuestionsConfig{}
	}
	if config.Metrics == nil {
		config.Metrics = &MetricsConfig{}
	}

	return config, nil
}
