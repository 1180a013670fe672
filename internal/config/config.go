package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	GenAI struct {
		OpenAI ProviderConfig `yaml:"openai"`
		Groq   ProviderConfig `yaml:"groq"`
		Gemini ProviderConfig `yaml:"gemini"`
	} `yaml:"genai"`
	Stripe struct {
		SecretKey     string `yaml:"secret_key"`
		WebhookSecret string `yaml:"webhook_secret"`
		SuccessURL    string `yaml:"success_url"`
		CancelURL     string `yaml:"cancel_url"`
	} `yaml:"stripe"`
	LemonSqueezy struct {
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"lemonsqueezy"`
	Quota struct {
		FreeDailyLimit int `yaml:"free_daily_limit"`
		ProPoints      int `yaml:"pro_points"`
	} `yaml:"quota"`
}

// ProviderConfig holds one inference provider's connection settings.
// TokenBudget bounds the input size; prompts are truncated to fit it.
type ProviderConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TokenBudget int    `yaml:"token_budget"`
}

// Load reads YAML config from path and applies env overrides for secrets.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv lets deployment environments override secrets without editing the
// YAML file.
func applyEnv(cfg *Config) {
	override(&cfg.Postgres.URL, "DATABASE_URL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.GenAI.OpenAI.APIKey, "OPENAI_API_KEY")
	override(&cfg.GenAI.Groq.APIKey, "GROQ_API_KEY")
	override(&cfg.GenAI.Gemini.APIKey, "GEMINI_API_KEY")
	override(&cfg.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	override(&cfg.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	override(&cfg.LemonSqueezy.WebhookSecret, "LEMONSQUEEZY_WEBHOOK_SECRET")
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.GenAI.OpenAI.Model == "" {
		cfg.GenAI.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.GenAI.Groq.Model == "" {
		cfg.GenAI.Groq.Model = "llama-3.3-70b-versatile"
	}
	if cfg.GenAI.Groq.BaseURL == "" {
		cfg.GenAI.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.GenAI.Gemini.Model == "" {
		cfg.GenAI.Gemini.Model = "gemini-1.5-flash"
	}
	if cfg.GenAI.OpenAI.TokenBudget == 0 {
		cfg.GenAI.OpenAI.TokenBudget = 100000
	}
	if cfg.GenAI.Groq.TokenBudget == 0 {
		cfg.GenAI.Groq.TokenBudget = 12000
	}
	if cfg.GenAI.Gemini.TokenBudget == 0 {
		cfg.GenAI.Gemini.TokenBudget = 200000
	}
	if cfg.Quota.FreeDailyLimit == 0 {
		cfg.Quota.FreeDailyLimit = 1
	}
	if cfg.Quota.ProPoints == 0 {
		cfg.Quota.ProPoints = 100
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
