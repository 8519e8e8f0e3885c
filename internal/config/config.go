// Package config loads wren's key-value configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "wren"
	configFile = "config"
	envPrefix  = "WREN"

	DefaultHTTPAddr     = "127.0.0.1:8080"
	DefaultSummaryModel = "claude-3-5-haiku-latest"
)

// ErrConfig marks a missing-but-required or malformed configuration.
var ErrConfig = errors.New("config error")

type Config struct {
	DataDir  string         `mapstructure:"data_dir" yaml:"data_dir"`
	Editor   string         `mapstructure:"editor" yaml:"editor"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Summary  SummaryConfig  `mapstructure:"summary" yaml:"summary"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-" yaml:"-"`
}

type HTTPConfig struct {
	Addr  string `mapstructure:"addr" yaml:"addr"`
	Token string `mapstructure:"token" yaml:"token"`
}

type TelegramConfig struct {
	Token         string `mapstructure:"token" yaml:"token"`
	AllowedUserID int64  `mapstructure:"allowed_user_id" yaml:"allowed_user_id"`
}

type SummaryConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		HTTP:    HTTPConfig{Addr: DefaultHTTPAddr},
		Summary: SummaryConfig{Model: DefaultSummaryModel, MaxTokens: 1024},
	}
}

// Path returns the config file location: $WREN_CONFIG, else
// <user config dir>/wren/config.
func Path() string {
	if env := strings.TrimSpace(os.Getenv("WREN_CONFIG")); env != "" {
		return expandHome(env)
	}
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName, configFile)
}

// DefaultDataDir is $XDG_DATA_HOME/wren, else ~/.local/share/wren.
func DefaultDataDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return "." + appName
	}
	return filepath.Join(home, ".local", "share", appName)
}

// Load reads the config file at path (defaults when it does not exist) and
// applies WREN_* environment overrides.
func Load(path string) (*Config, error) {
	def := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("editor", def.Editor)
	v.SetDefault("http.addr", def.HTTP.Addr)
	v.SetDefault("http.token", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.allowed_user_id", 0)
	v.SetDefault("summary.api_key", "")
	v.SetDefault("summary.model", def.Summary.Model)
	v.SetDefault("summary.max_tokens", def.Summary.MaxTokens)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrConfig, path, err)
	}
	cfg.Path = path
	cfg.DataDir = expandHome(strings.TrimSpace(cfg.DataDir))
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("%w: data_dir is empty", ErrConfig)
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
	if strings.TrimSpace(cfg.Summary.Model) == "" {
		cfg.Summary.Model = DefaultSummaryModel
	}
	if cfg.Summary.MaxTokens <= 0 {
		cfg.Summary.MaxTokens = 1024
	}
	return cfg, nil
}

// SummaryAPIKey returns the summarization key; ANTHROPIC_API_KEY wins over
// the file.
func (c *Config) SummaryAPIKey() string {
	if env := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); env != "" {
		return env
	}
	return strings.TrimSpace(c.Summary.APIKey)
}

const defaultHeader = `# wren configuration
#
# data_dir holds notes/, done/, postponed/ and cancelled/.
# Every key can be overridden with a WREN_ environment variable,
# e.g. WREN_DATA_DIR or WREN_HTTP_ADDR.
`

// WriteDefault writes the default configuration to path unless a file is
// already there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	b, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(defaultHeader), b...), 0o600)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
