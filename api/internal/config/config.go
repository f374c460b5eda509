package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is read once at startup and passed by value afterwards.
type Config struct {
	Port     string         `mapstructure:"port"`
	Log      LogConfig      `mapstructure:"log"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Request  RequestConfig  `mapstructure:"request"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type VisionConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"` // empty means the public Cloud Vision endpoint
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
}

type RequestConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	// ImageDir enables image_path requests; empty disables them.
	ImageDir string `mapstructure:"image_dir"`
}

var defaults = map[string]any{
	"port":                   "8000",
	"log.level":              "info",
	"log.format":             "json",
	"vision.api_key":         "",
	"vision.endpoint":        "",
	"gemini.api_key":         "",
	"gemini.model":           "gemini-2.5-flash",
	"telegram.bot_token":     "",
	"telegram.admin_chat_id": 0,
	"request.timeout":        30 * time.Second,
	"request.max_body_bytes": 10 << 20,
	"request.image_dir":      "",
}

// Load reads defaults, then config.yaml from the first of paths that has one
// (./configs and . when none are given), then .env, then the environment.
// GEMINI_API_KEY overrides gemini.api_key and so on.
func Load(paths ...string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("config: load .env: %w", err)
		}
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./configs", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Vision.APIKey) == "" {
		errs = append(errs, errors.New("missing required VISION_API_KEY"))
	}
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		errs = append(errs, errors.New("missing required GEMINI_API_KEY"))
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		errs = append(errs, errors.New("gemini.model is empty"))
	}
	if c.Telegram.BotToken != "" && c.Telegram.AdminChatID == 0 {
		errs = append(errs, errors.New("telegram.admin_chat_id is required when telegram.bot_token is set"))
	}
	if c.Request.Timeout <= 0 {
		errs = append(errs, errors.New("request.timeout must be positive"))
	}
	if c.Request.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("request.max_body_bytes must be positive"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
