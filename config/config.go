package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "CHURN_"
	ConfigFileEnv = "CHURN_CONFIG"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	JWT       JWTConfig       `koanf:"jwt"`
	Redis     RedisConfig     `koanf:"redis"`
	CORS      CORSConfig      `koanf:"cors"`
	Model     ModelConfig     `koanf:"model"`
	LLM       LLMConfig       `koanf:"llm"`
	MQTT      MQTTConfig      `koanf:"mqtt"`
	RiskWatch RiskWatchConfig `koanf:"riskwatch"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Tracing   TracingConfig   `koanf:"tracing"`
}

type ServerConfig struct {
	Port        int    `koanf:"port"`
	Env         string `koanf:"env"`
	MaxUploadMB int    `koanf:"max_upload_mb"`
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
	// Path is the database file when Driver is "sqlite".
	Path string `koanf:"path"`
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// GetURL returns the connection string in URL form, as pgxpool expects it.
func (d DatabaseConfig) GetURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

type JWTConfig struct {
	Secret      string `koanf:"secret"`
	ExpiryHours int    `koanf:"expiry_hours"`
}

type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type CORSConfig struct {
	AllowedOrigins string `koanf:"allowed_origins"`
}

type ModelConfig struct {
	// Kind selects the classifier backend: "logistic" or "onnx".
	Kind        string `koanf:"kind"`
	Path        string `koanf:"path"`
	ONNXLibrary string `koanf:"onnx_library"`
	ONNXInput   string `koanf:"onnx_input"`
	ONNXOutput  string `koanf:"onnx_output"`
}

type LLMConfig struct {
	APIKey     string `koanf:"api_key"`
	BaseURL    string `koanf:"base_url"`
	Model      string `koanf:"model"`
	TimeoutSec int    `koanf:"timeout_sec"`
	MaxRetries int    `koanf:"max_retries"`
}

type MQTTConfig struct {
	URL   string `koanf:"url"`
	Topic string `koanf:"topic"`
}

type RiskWatchConfig struct {
	IntervalSec int     `koanf:"interval_sec"`
	MinDelta    float64 `koanf:"min_delta"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Mode  string `koanf:"mode"`
	Level string `koanf:"level"`
}

type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Env:         "development",
			MaxUploadMB: 20,
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "churn",
			Password: "churn_dev_password",
			Name:     "churn",
			SSLMode:  "disable",
			Path:     "churn.db",
		},
		JWT: JWTConfig{
			Secret:      "dev-secret-change-me",
			ExpiryHours: 24,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		CORS: CORSConfig{
			AllowedOrigins: "*",
		},
		Model: ModelConfig{
			Kind:       "logistic",
			Path:       "artifacts/churn_model.yaml",
			ONNXInput:  "float_input",
			ONNXOutput: "probabilities",
		},
		LLM: LLMConfig{
			BaseURL:    "https://api.groq.com/openai/v1",
			Model:      "llama-3.1-8b-instant",
			TimeoutSec: 30,
			MaxRetries: 2,
		},
		MQTT: MQTTConfig{
			URL:   "tcp://localhost:1883",
			Topic: "churn/features/+",
		},
		RiskWatch: RiskWatchConfig{
			IntervalSec: 300,
			MinDelta:    0.2,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Log: LogConfig{
			Mode:  "dev",
			Level: "info",
		},
		Tracing: TracingConfig{
			SampleRatio: 1.0,
		},
	}
}

// LoadConfig layers defaults, the optional YAML file named by CHURN_CONFIG,
// and CHURN_* environment variables (CHURN_DATABASE_HOST -> database.host).
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps CHURN_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Port <= 0 {
			return fmt.Errorf("invalid database.port: %d", c.Database.Port)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.Model.Kind {
	case "logistic", "onnx":
	default:
		return fmt.Errorf("unknown model.kind %q", c.Model.Kind)
	}
	if c.JWT.ExpiryHours <= 0 {
		return fmt.Errorf("invalid jwt.expiry_hours: %d", c.JWT.ExpiryHours)
	}
	if c.IsProduction() && (c.JWT.Secret == "" || c.JWT.Secret == Default().JWT.Secret) {
		return errors.New("jwt.secret must be set in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}
