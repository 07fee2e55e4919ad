package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dictate/prompt"
)

var ErrMissingKey = errors.New("missing API key")

type Config struct {
	Mode             string `mapstructure:"mode"`
	PTTKey           string `mapstructure:"ptt_key"`
	AutoPaste        bool   `mapstructure:"auto_paste"`
	RestoreClipboard bool   `mapstructure:"restore_clipboard"`
	Beep             bool   `mapstructure:"beep"`
	Notify           bool   `mapstructure:"notify"`
	AudioFormat      string `mapstructure:"audio_format"`
	Device           string `mapstructure:"device"`
	LogLevel         string `mapstructure:"log_level"`

	Transcriber TranscriberConfig `mapstructure:"transcriber"`
	Rewrite     RewriteConfig     `mapstructure:"rewrite"`

	GroqAPIKey   string `mapstructure:"groq_api_key"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`

	source string
}

// Source is the config file that was read, or "" when only defaults and the
// environment were used.
func (c *Config) Source() string { return c.source }

type TranscriberConfig struct {
	Backend      string `mapstructure:"backend"`
	Language     string `mapstructure:"language"`
	WhisperBin   string `mapstructure:"whisper_bin"`
	WhisperModel string `mapstructure:"whisper_model"`
}

type RewriteConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// APIKey defaults to GROQ_API_KEY when BaseURL points at Groq and to
	// OPENAI_API_KEY otherwise.
	APIKey string `mapstructure:"api_key"`
}

type loadOptions struct {
	configFile string
	envFile    string
	searchDirs []string
}

type Option func(*loadOptions)

// WithConfigFile loads an explicit YAML file instead of searching for one.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile loads an explicit .env file instead of ./.env.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// WithSearchDirs replaces the directories searched for config.yml.
func WithSearchDirs(dirs ...string) Option {
	return func(o *loadOptions) { o.searchDirs = dirs }
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(prompt.ModeMessage))
	v.SetDefault("ptt_key", "ctrl+shift+space")
	v.SetDefault("auto_paste", true)
	v.SetDefault("restore_clipboard", false)
	v.SetDefault("beep", true)
	v.SetDefault("notify", false)
	v.SetDefault("audio_format", "wav")
	v.SetDefault("device", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("transcriber.backend", "groq")
	v.SetDefault("transcriber.language", "en")
	v.SetDefault("transcriber.whisper_bin", "whisper-cli")
	v.SetDefault("transcriber.whisper_model", "")

	v.SetDefault("rewrite.base_url", "")
	v.SetDefault("rewrite.model", "gpt-4o-mini")
	v.SetDefault("rewrite.temperature", 0.3)
	v.SetDefault("rewrite.timeout", 30*time.Second)
	v.SetDefault("rewrite.api_key", "")

	v.SetDefault("groq_api_key", "")
	v.SetDefault("openai_api_key", "")
}

func defaultSearchDirs() []string {
	dirs := []string{".", "./config"}
	if d, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(d, "dictate"))
	}
	return dirs
}

// Load resolves the session configuration. Sources in increasing precedence:
// defaults, config.yml, .env, DICTATE_* environment variables. Flags are
// applied by the caller on the returned value.
func Load(opts ...Option) (*Config, error) {
	lo := loadOptions{envFile: ".env", searchDirs: defaultSearchDirs()}
	for _, opt := range opts {
		opt(&lo)
	}

	v := viper.New()
	setDefaults(v)

	if lo.configFile != "" {
		v.SetConfigFile(lo.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", lo.configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, d := range lo.searchDirs {
			v.AddConfigPath(d)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// .env never overrides variables already set in the environment.
	if lo.envFile != "" {
		if _, err := os.Stat(lo.envFile); err == nil {
			if err := godotenv.Load(lo.envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", lo.envFile, err)
			}
		}
	}

	v.SetEnvPrefix("DICTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"groq_api_key":   "GROQ_API_KEY",
		"openai_api_key": "OPENAI_API_KEY",
	} {
		if err := v.BindEnv(key, "DICTATE_"+env, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if path := v.ConfigFileUsed(); path != "" {
		cfg.source = path
	}
	return &cfg, nil
}
