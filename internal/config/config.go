package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PlaceholderSecret is the development default for both secrets. It is refused in production.
const PlaceholderSecret = "change-me-in-production"

const minSecretLen = 32

type Config struct {
	Env    string `yaml:"env"`
	Server struct {
		Port             string   `yaml:"port"`
		AllowedOrigins   []string `yaml:"allowedOrigins"`
		TrustedProxyHops int      `yaml:"trustedProxyHops"`
		MaxBodyBytes     int64    `yaml:"maxBodyBytes"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Security struct {
		HashSecret       string `yaml:"hashSecret"`
		EncryptionSecret string `yaml:"encryptionSecret"`
	} `yaml:"security"`
	Classifier struct {
		APIKey        string `yaml:"apiKey"`
		Model         string `yaml:"model"`
		BaseURL       string `yaml:"baseUrl"`
		MaxConcurrent int    `yaml:"maxConcurrent"`
		DailyBudget   int    `yaml:"dailyBudget"`
		Timeout       string `yaml:"timeout"`
	} `yaml:"classifier"`
	Turnstile struct {
		Secret    string `yaml:"secret"`
		VerifyURL string `yaml:"verifyUrl"`
	} `yaml:"turnstile"`
	Stats struct {
		SeededBaseline int    `yaml:"seededBaseline"`
		FreshFor       string `yaml:"freshFor"`
	} `yaml:"stats"`
}

// Default returns a configuration usable for local development.
func Default() Config {
	cfg := Config{Env: "development"}
	cfg.Server.Port = "8787"
	cfg.Server.MaxBodyBytes = 300 << 10
	cfg.Redis.TTL = "24h"
	cfg.Security.HashSecret = PlaceholderSecret
	cfg.Security.EncryptionSecret = PlaceholderSecret
	cfg.Classifier.MaxConcurrent = 4
	cfg.Classifier.DailyBudget = 500
	cfg.Classifier.Timeout = "45s"
	cfg.Stats.SeededBaseline = 200
	cfg.Stats.FreshFor = "30s"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("APP_ENV", &cfg.Env)
	str("PORT", &cfg.Server.Port)
	str("DATABASE_URL", &cfg.Postgres.URL)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("GEMINI_API_KEY", &cfg.Classifier.APIKey)
	str("GEMINI_MODEL", &cfg.Classifier.Model)
	str("GEMINI_BASE_URL", &cfg.Classifier.BaseURL)
	str("HASH_SECRET", &cfg.Security.HashSecret)
	str("ENCRYPTION_SECRET", &cfg.Security.EncryptionSecret)
	str("TURNSTILE_SECRET", &cfg.Turnstile.Secret)
	str("TURNSTILE_VERIFY_URL", &cfg.Turnstile.VerifyURL)

	if v, ok := lookup("ALLOWED_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("AI_TIMEOUT_MS"); ok && strings.TrimSpace(v) != "" {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("AI_TIMEOUT_MS: %w", err)
		}
		cfg.Classifier.Timeout = (time.Duration(ms) * time.Millisecond).String()
	}

	for key, dst := range map[string]*int{
		"REDIS_DB":          &cfg.Redis.DB,
		"SEEDED_BASELINE":   &cfg.Stats.SeededBaseline,
		"AI_MAX_CONCURRENT": &cfg.Classifier.MaxConcurrent,
		"AI_DAILY_BUDGET":   &cfg.Classifier.DailyBudget,
		"TRUST_PROXY_HOPS":  &cfg.Server.TrustedProxyHops,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// IsProduction reports whether strict startup checks apply.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// Validate performs the fatal startup checks.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Classifier.APIKey) == "" {
		problems = append(problems, "GEMINI_API_KEY is required")
	}
	if c.Security.HashSecret == "" {
		problems = append(problems, "HASH_SECRET is required")
	}
	if c.Security.EncryptionSecret == "" {
		problems = append(problems, "ENCRYPTION_SECRET is required")
	}
	if c.Classifier.MaxConcurrent <= 0 {
		problems = append(problems, "AI_MAX_CONCURRENT must be positive")
	}
	if c.Classifier.DailyBudget <= 0 {
		problems = append(problems, "AI_DAILY_BUDGET must be positive")
	}
	if c.Server.TrustedProxyHops < 0 {
		problems = append(problems, "TRUST_PROXY_HOPS must not be negative")
	}
	if _, err := time.ParseDuration(c.Classifier.Timeout); err != nil || c.ClassifierTimeout() <= 0 {
		problems = append(problems, "classifier timeout must be a positive duration")
	}

	if c.IsProduction() {
		for name, secret := range map[string]string{"HASH_SECRET": c.Security.HashSecret, "ENCRYPTION_SECRET": c.Security.EncryptionSecret} {
			if secret == PlaceholderSecret || len(secret) < minSecretLen {
				problems = append(problems, fmt.Sprintf("%s must be at least %d characters and not the placeholder in production", name, minSecretLen))
			}
		}
		if c.Security.HashSecret != "" && c.Security.HashSecret == c.Security.EncryptionSecret {
			problems = append(problems, "HASH_SECRET and ENCRYPTION_SECRET must differ in production")
		}
		if c.Postgres.URL == "" {
			problems = append(problems, "DATABASE_URL is required in production")
		}
		for _, origin := range c.Server.AllowedOrigins {
			if origin == "*" {
				problems = append(problems, "wildcard ALLOWED_ORIGINS is not allowed in production")
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ClassifierTimeout returns the classifier deadline.
func (c Config) ClassifierTimeout() time.Duration {
	return TTLDuration(c.Classifier.Timeout, 45*time.Second)
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

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
