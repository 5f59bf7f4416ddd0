package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the main configuration structure for the application.
type Config struct {
	Data      Data            `json:"data"`
	Providers ProviderConfig  `json:"providers"`
	Models    ModelConfig     `json:"models"`
	History   HistoryConfig   `json:"history"`
	TUI       TUIConfig       `json:"tui"`
	Debug     bool            `json:"debug,omitempty"`
}

// Data defines storage configuration.
type Data struct {
	Directory string `json:"directory,omitempty"`
}

// ProviderConfig holds credentials for the generation backend.
type ProviderConfig struct {
	GeminiAPIKey string `json:"geminiApiKey,omitempty"`
}

// ModelConfig names the models used for each generation mode.
type ModelConfig struct {
	Chat  string `json:"chat"`
	Image string `json:"image"`
}

// HistoryConfig bounds the persistent history collections.
type HistoryConfig struct {
	SessionCapacity    int `json:"sessionCapacity"`
	PromptCapacity     int `json:"promptCapacity"`
	AssessmentCapacity int `json:"assessmentCapacity"`
	StoryCapacity      int `json:"storyCapacity"`
}

// TUIConfig defines terminal UI configuration.
type TUIConfig struct {
	Theme string `json:"theme"`
}

const (
	defaultDataDirectory = ".heartguard"
	defaultLogLevel      = "info"
	appName              = "heartguard"

	defaultChatModel  = "gemini-2.5-flash"
	defaultImageModel = "gemini-2.5-flash-image"
)

// Global configuration instance
var cfg *Config

// Load initializes the configuration from environment variables and config
// files. Subsequent calls return the already-loaded instance.
func Load(debug bool) (*Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	cfg = &Config{}

	configureViper()
	setDefaults(debug)

	if err := readConfig(viper.ReadInConfig()); err != nil {
		return cfg, err
	}

	// The environment variable wins over anything in the config file so a
	// key never has to be written to disk.
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.Providers.GeminiAPIKey = apiKey
	}

	if cfg.Data.Directory == "" {
		cfg.Data.Directory = defaultDataDir()
	}

	return cfg, nil
}

// configureViper sets up viper's configuration paths and environment variables.
func configureViper() {
	viper.SetConfigName(fmt.Sprintf(".%s", appName))
	viper.SetConfigType("json")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	viper.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	viper.SetEnvPrefix(strings.ToUpper(appName))
	viper.AutomaticEnv()
}

// setDefaults configures default values for configuration options.
func setDefaults(debug bool) {
	viper.SetDefault("data.directory", "")
	viper.SetDefault("tui.theme", "heartguard")

	viper.SetDefault("models.chat", defaultChatModel)
	viper.SetDefault("models.image", defaultImageModel)

	viper.SetDefault("history.sessionCapacity", 20)
	viper.SetDefault("history.promptCapacity", 8)
	viper.SetDefault("history.assessmentCapacity", 20)
	viper.SetDefault("history.storyCapacity", 20)

	if debug {
		viper.SetDefault("debug", true)
		viper.Set("log.level", "debug")
	} else {
		viper.SetDefault("debug", false)
		viper.SetDefault("log.level", defaultLogLevel)
	}
}

// readConfig reads configuration from file and environment.
func readConfig(err error) error {
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults apply
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}

	return nil
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirectory
	}
	return filepath.Join(homeDir, defaultDataDirectory)
}

// Get returns the global configuration instance.
func Get() *Config {
	return cfg
}

// DatabasePath returns the location of the history database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.Directory, "heartguard.db")
}

// StatePath returns the location of the TOML state file.
func (c *Config) StatePath() string {
	return filepath.Join(c.Data.Directory, "state.toml")
}
