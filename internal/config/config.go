// Package config loads smartrecipe settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables. Environment keys use the SMARTRECIPE_ prefix with a
// double underscore between sections, so SMARTRECIPE_SESSION__STORE sets
// session.store. SPOONACULAR_API_KEY is read as a fallback for the API key.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SMARTRECIPE_"
	// ConfigPathEnvVar overrides the config file path when no flag is given.
	ConfigPathEnvVar = "SMARTRECIPE_CONFIG"
	// APIKeyEnvVar is the fallback source for spoonacular.api_key.
	APIKeyEnvVar = "SPOONACULAR_API_KEY"

	defaultConfigPath = "config.yaml"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Spoonacular SpoonacularConfig `koanf:"spoonacular"`
	Session     SessionConfig     `koanf:"session"`
	Logging     LoggingConfig     `koanf:"logging"`
}

type ServerConfig struct {
	Addr           string        `koanf:"addr" validate:"required"`
	CORSOrigins    []string      `koanf:"cors_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
}

type SpoonacularConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	APIKey            string        `koanf:"api_key" validate:"required"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	DetailConcurrency int           `koanf:"detail_concurrency" validate:"gte=1,lte=20"`
}

type SessionConfig struct {
	Store       string        `koanf:"store" validate:"oneof=memory redis postgres"`
	CookieName  string        `koanf:"cookie_name" validate:"required"`
	TTL         time.Duration `koanf:"ttl" validate:"gte=0"`
	RedisURL    string        `koanf:"redis_url" validate:"required_if=Store redis"`
	DatabaseURL string        `koanf:"database_url" validate:"required_if=Store postgres"`
}

type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`
	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			CORSOrigins:    []string{"http://localhost:3000"},
			RequestTimeout: 45 * time.Second,
		},
		Spoonacular: SpoonacularConfig{
			BaseURL:           "https://api.spoonacular.com",
			Timeout:           15 * time.Second,
			DetailConcurrency: 4,
		},
		Session: SessionConfig{
			Store:      "memory",
			CookieName: "smartrecipe_session",
			TTL:        24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. path is the file given on the command line;
// when empty, SMARTRECIPE_CONFIG and then ./config.yaml are tried. An
// explicitly named file that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if key := os.Getenv(APIKeyEnvVar); key != "" {
		if err := k.Set("spoonacular.api_key", key); err != nil {
			return nil, fmt.Errorf("failed to set api key: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitList(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
		return path, nil
	}
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("config file %s: %w", envPath, err)
		}
		return envPath, nil
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath, nil
	}
	return "", nil
}

// envTransform maps SMARTRECIPE_SESSION__REDIS_URL to session.redis_url.
func envTransform(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	if key == "CONFIG" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// splitList turns a comma-separated string value into a list.
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}
