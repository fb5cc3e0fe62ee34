package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Stripe      StripeConfig      `mapstructure:"stripe"`
	Client      ClientConfig      `mapstructure:"client"`
	LLM         LLMConfig         `mapstructure:"llm"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Entitlement EntitlementConfig `mapstructure:"entitlement"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AuthConfig holds the identity provider (Clerk) settings.
type AuthConfig struct {
	PublishableKey string `mapstructure:"publishable_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Issuer         string `mapstructure:"issuer"`
	JWKSURL        string `mapstructure:"jwks_url"`
	APIBaseURL     string `mapstructure:"api_base_url"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PriceID       string `mapstructure:"price_id"`
}

type ClientConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type LLMConfig struct {
	Provider       string  `mapstructure:"provider"` // openai, gemini
	APIKey         string  `mapstructure:"api_key"`
	GeminiAPIKey   string  `mapstructure:"gemini_api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxRetries     int     `mapstructure:"max_retries"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type EntitlementConfig struct {
	FreeDailyLimit int `mapstructure:"free_daily_limit"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // dev, prod
}

// envBindings maps config keys to the plain environment variable names the
// deployment uses.
var envBindings = map[string]string{
	"server.port":           "PORT",
	"database.url":          "DATABASE_URL",
	"redis.url":             "REDIS_URL",
	"auth.publishable_key":  "CLERK_PUBLISHABLE_KEY",
	"auth.secret_key":       "CLERK_SECRET_KEY",
	"auth.issuer":           "CLERK_ISSUER",
	"auth.jwks_url":         "CLERK_JWKS_URL",
	"stripe.secret_key":     "STRIPE_SECRET_KEY",
	"stripe.webhook_secret": "STRIPE_WEBHOOK_SECRET",
	"stripe.price_id":       "STRIPE_PRICE_ID",
	"client.base_url":       "CLIENT_URL",
	"llm.provider":          "LLM_PROVIDER",
	"llm.api_key":           "OPENAI_API_KEY",
	"llm.gemini_api_key":    "GEMINI_API_KEY",
	"llm.base_url":          "OPENAI_BASE_URL",
	"llm.model":             "OPENAI_MODEL",
	"log.mode":              "LOG_MODE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("auth.api_base_url", "https://api.clerk.com")
	v.SetDefault("client.base_url", "http://localhost:5173")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization"})
	v.SetDefault("entitlement.free_daily_limit", 5)
	v.SetDefault("log.mode", "dev")
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		// config.local.yaml carries real secrets and is not committed
		localConfigPath := filepath.Join(filepath.Dir(configPath), "config.local.yaml")
		if _, err := os.Stat(localConfigPath); err == nil {
			configPath = localConfigPath
		}

		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
