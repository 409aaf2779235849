package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Redis struct {
	Addr string `yaml:"addr"` // пусто — in-memory presence/quota
}

type Auth struct {
	Secret string `yaml:"secret"` // HS256
}

type Translate struct {
	GeneralURL  string `yaml:"generalUrl"`  // универсальный MT-бекенд
	CustomURL   string `yaml:"customUrl"`   // модель для low-resource языка
	DetectURL   string `yaml:"detectUrl"`   // определение языка
	LowResource string `yaml:"lowResource"` // код языка кастомной модели
	Timeout     string `yaml:"timeout"`     // "3s"
}

type Assistant struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

type Presence struct {
	TypingTTL string `yaml:"typingTtl"` // "6s"
}

type Quota struct {
	SendLimit  int    `yaml:"sendLimit"` // сообщений в окно; 0 — без лимита
	SendWindow string `yaml:"sendWindow"`
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Logging   Logging   `yaml:"logging"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Auth      Auth      `yaml:"auth"`
	Translate Translate `yaml:"translate"`
	Assistant Assistant `yaml:"assistant"`
	Presence  Presence  `yaml:"presence"`
	Quota     Quota     `yaml:"quota"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if c.Translate.GeneralURL == "" {
		return errors.New("translate.generalUrl is required")
	}
	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Translate.LowResource == "" {
		c.Translate.LowResource = "os" // осетинский — кастомная модель
	}
	return nil
}

func (c *Config) TranslateTimeout() time.Duration {
	return parseDurationOr(3*time.Second, c.Translate.Timeout)
}

func (c *Config) TypingTTL() time.Duration {
	return parseDurationOr(6*time.Second, c.Presence.TypingTTL)
}

func (c *Config) QuotaWindow() time.Duration {
	return parseDurationOr(time.Minute, c.Quota.SendWindow)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
