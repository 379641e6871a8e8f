package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"translation-relay/internal/integrations/completion"
	"translation-relay/internal/language"
	"translation-relay/internal/translation"
)

type Config struct {
	Server     ServerConfig
	Completion CompletionConfig
	Audit      AuditConfig
	Session    SessionConfig
	Languages  LanguageConfig
}

type ServerConfig struct {
	Port        string
	TLSCertPath string
	TLSKeyPath  string
}

type CompletionConfig struct {
	BaseURL  string
	APIKey   string
	KeyParam string
	Model    string
	Timeout  time.Duration
}

type AuditConfig struct {
	StoreURL  string
	Table     string
	Retention time.Duration
}

type SessionConfig struct {
	IdleTimeout   time.Duration
	MaxDuration   time.Duration
	SweepInterval time.Duration
}

type LanguageConfig struct {
	Supported   []string
	DefaultFrom string
	DefaultTo   string
}

// TLSEnabled reports whether both certificate and key paths are set.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertPath != "" && s.TLSKeyPath != ""
}

// Addr is the listen address for the configured port.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// Load reads configuration from the environment, after loading any .env files
// found. Existing environment variables are never overridden by .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	defaultPair := getEnv("DEFAULT_LANGUAGE_PAIR", "en-es")
	from, to, err := language.ParsePair(defaultPair)
	if err != nil {
		return nil, fmt.Errorf("config: DEFAULT_LANGUAGE_PAIR: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8443"),
			TLSCertPath: getEnv("TLS_CERT_PATH", ""),
			TLSKeyPath:  getEnv("TLS_KEY_PATH", ""),
		},
		Completion: CompletionConfig{
			BaseURL:  getEnv("COMPLETION_API_URL", completion.DefaultBaseURL),
			APIKey:   getEnv("COMPLETION_API_KEY", ""),
			KeyParam: getEnv("COMPLETION_API_KEY_PARAM", ""),
			Model:    getEnv("COMPLETION_MODEL", translation.DefaultModel),
			Timeout:  getDurationEnv("COMPLETION_TIMEOUT", completion.DefaultTimeout),
		},
		Audit: AuditConfig{
			StoreURL:  getEnv("AUDIT_STORE_URL", ""),
			Table:     getEnv("AUDIT_TABLE", ""),
			Retention: getDurationEnv("AUDIT_RETENTION", 0),
		},
		Session: SessionConfig{
			IdleTimeout:   time.Duration(getIntEnv("SESSION_TIMEOUT_MINUTES", 30)) * time.Minute,
			MaxDuration:   time.Duration(getIntEnv("MAX_SESSION_DURATION_MINUTES", 120)) * time.Minute,
			SweepInterval: getDurationEnv("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
		Languages: LanguageConfig{
			Supported:   language.ParseCodes(getEnv("SUPPORTED_LANGUAGES", strings.Join(language.DefaultCodes, ","))),
			DefaultFrom: from,
			DefaultTo:   to,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Languages.Supported) == 0 {
		return errors.New("config: SUPPORTED_LANGUAGES must list at least one code")
	}
	if (c.Server.TLSCertPath == "") != (c.Server.TLSKeyPath == "") {
		return errors.New("config: TLS_CERT_PATH and TLS_KEY_PATH must be set together")
	}
	if c.Completion.APIKey == "" && c.Completion.KeyParam == "" {
		return errors.New("config: COMPLETION_API_KEY or COMPLETION_API_KEY_PARAM is required")
	}
	if c.Session.IdleTimeout < 0 {
		return errors.New("config: SESSION_TIMEOUT_MINUTES must not be negative")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}
